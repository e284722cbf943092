// Package archive implements the conversion, resize and purge units of the
// camera archive and the batches built from them.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/EmmettHwang/ssirn/internal/encoder"
	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/EmmettHwang/ssirn/internal/remote"
	"go.uber.org/zap"
)

// Options configures an Engine.
type Options struct {
	Cameras []models.Camera
	Dialer  remote.Dialer
	Encoder encoder.Encoder
	Policy  encoder.Policy
	WorkDir string
	// Poster uploads a thumbnail of the first frame next to each video.
	Poster bool
	Logger *zap.Logger
}

// Engine runs archive units against one remote store. It is safe for
// concurrent use; units touching the same workspace run one at a time.
type Engine struct {
	cameras []models.Camera
	dialer  remote.Dialer
	encoder encoder.Encoder
	policy  encoder.Policy
	workDir string
	poster  bool
	logger  *zap.Logger

	mu   sync.Mutex
	busy map[string]chan struct{}
}

// NewEngine creates an engine.
func NewEngine(o Options) *Engine {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cameras: o.Cameras,
		dialer:  o.Dialer,
		encoder: o.Encoder,
		policy:  o.Policy,
		workDir: o.WorkDir,
		poster:  o.Poster,
		logger:  logger.Named("archive"),
		busy:    make(map[string]chan struct{}),
	}
}

// Cameras lists the registered cameras in configuration order.
func (e *Engine) Cameras() []models.Camera {
	out := make([]models.Camera, len(e.cameras))
	copy(out, e.cameras)
	return out
}

// Camera resolves a camera id.
func (e *Engine) Camera(id string) (models.Camera, error) {
	for _, c := range e.cameras {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Camera{}, fmt.Errorf("%w: %q", ErrUnknownCamera, id)
}

// ValidateUnit checks a (camera, date) pair without touching the remote.
func (e *Engine) ValidateUnit(cameraID, date string) (models.Camera, error) {
	cam, err := e.Camera(cameraID)
	if err != nil {
		return cam, err
	}
	if _, err := ParseDate(date); err != nil {
		return cam, err
	}
	return cam, nil
}

// ValidateRange checks a camera and an inclusive date range.
func (e *Engine) ValidateRange(cameraID, from, to string) error {
	if _, err := e.Camera(cameraID); err != nil {
		return err
	}
	_, _, err := parseRange(from, to)
	return err
}

// workspace claims and creates a fresh scratch directory. The returned
// release function removes it and must be called on every path.
func (e *Engine) workspace(ctx context.Context, name string) (string, func(), error) {
	for {
		e.mu.Lock()
		wait, taken := e.busy[name]
		if !taken {
			done := make(chan struct{})
			e.busy[name] = done
			e.mu.Unlock()
			break
		}
		e.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return "", nil, ctx.Err()
		}
	}

	dir := filepath.Join(e.workDir, name)
	release := func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("Could not remove workspace", zap.String("dir", dir), zap.Error(err))
		}
		e.mu.Lock()
		close(e.busy[name])
		delete(e.busy, name)
		e.mu.Unlock()
	}

	// Leftovers from a crashed run would corrupt the frame sequence.
	if err := os.RemoveAll(dir); err != nil {
		release()
		return "", nil, fmt.Errorf("clear workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		release()
		return "", nil, fmt.Errorf("create workspace: %w", err)
	}
	return dir, release, nil
}

// session opens a remote session for one step.
func (e *Engine) session(ctx context.Context) (remote.Session, error) {
	s, err := e.dialer.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return s, nil
}

// closeSession logs instead of failing; the step's work is already done.
func (e *Engine) closeSession(s remote.Session) {
	if err := s.Close(); err != nil {
		e.logger.Debug("Closing remote session", zap.Error(err))
	}
}

// hasVideo reports whether <root>/videos/<date>.mp4 exists.
func (e *Engine) hasVideo(s remote.Session, cam models.Camera, date string) (bool, error) {
	names, err := listDir(s, VideoDir(cam))
	if err != nil {
		return false, fmt.Errorf("list videos: %w", err)
	}
	want := VideoName(date)
	for _, n := range names {
		if n == want {
			return true, nil
		}
	}
	return false, nil
}

// listDir changes into dir and lists it. A directory that does not exist
// lists as empty on every driver; any other failure is returned.
func listDir(s remote.Session, dir string) ([]string, error) {
	if err := s.ChangeDir(dir); err != nil {
		if remote.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return s.List()
}
