package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/EmmettHwang/ssirn/internal/encoder"
	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/EmmettHwang/ssirn/internal/remote"
	"go.uber.org/zap"
)

// ResizeResult summarizes a resize unit.
type ResizeResult struct {
	OriginalSize int64 `json:"original_size"`
	NewSize      int64 `json:"new_size"`
	Replaced     bool  `json:"replaced"`
}

// Resize re-encodes an archived video and replaces it only when the result
// is strictly smaller.
func (e *Engine) Resize(ctx context.Context, cameraID, date string, r Reporter) (ResizeResult, error) {
	var res ResizeResult
	cam, err := e.ValidateUnit(cameraID, date)
	if err != nil {
		return res, err
	}

	ws, release, err := e.workspace(ctx, resizeWorkspace(cam.ID, date))
	if err != nil {
		return res, err
	}
	defer release()

	original := filepath.Join(ws, "original.mp4")
	if err := e.downloadVideo(ctx, cam, date, original); err != nil {
		return res, err
	}
	info, err := os.Stat(original)
	if err != nil {
		return res, err
	}
	res.OriginalSize = info.Size()
	r.Logf("Downloaded %s (%d bytes)", VideoName(date), res.OriginalSize)

	resized := filepath.Join(ws, VideoName(date))
	r.Logf("Re-encoding")
	if err := e.encoder.Encode(ctx, encoder.VideoFile(original), resized, e.policy); err != nil {
		return res, fmt.Errorf("encode %s: %w", date, err)
	}
	info, err = os.Stat(resized)
	if err != nil {
		return res, fmt.Errorf("encoder produced no output: %w", err)
	}
	res.NewSize = info.Size()

	if res.NewSize >= res.OriginalSize {
		r.Logf("Already optimized (%d bytes, re-encoded %d bytes), keeping original", res.OriginalSize, res.NewSize)
		return res, nil
	}
	if err := e.replaceVideo(ctx, cam, date, resized); err != nil {
		return res, err
	}
	res.Replaced = true
	r.Logf("Replaced %s: %d -> %d bytes", VideoName(date), res.OriginalSize, res.NewSize)
	e.logger.Info("Resized",
		zap.String("camera", cam.ID), zap.String("date", date),
		zap.Int64("from", res.OriginalSize), zap.Int64("to", res.NewSize))
	return res, nil
}

func (e *Engine) downloadVideo(ctx context.Context, cam models.Camera, date, dest string) error {
	s, err := e.session(ctx)
	if err != nil {
		return err
	}
	defer e.closeSession(s)

	ok, err := e.hasVideo(s, cam, date)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, VideoPath(cam, date))
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := s.Retrieve(VideoName(date), f); err != nil {
		f.Close()
		return fmt.Errorf("download video: %w", err)
	}
	return f.Close()
}

func (e *Engine) replaceVideo(ctx context.Context, cam models.Camera, date, file string) error {
	s, err := e.session(ctx)
	if err != nil {
		return err
	}
	defer e.closeSession(s)

	if err := remote.EnsureDir(s, VideoDir(cam)); err != nil {
		return fmt.Errorf("prepare videos directory: %w", err)
	}
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := s.Store(VideoName(date), f); err != nil {
		return fmt.Errorf("upload video: %w", err)
	}
	return nil
}
