package testutil

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/EmmettHwang/ssirn/internal/encoder"
	"github.com/EmmettHwang/ssirn/internal/remote"
)

// JPEGBytes returns a small solid-color JPEG.
func JPEGBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h), nil); err != nil {
		t.Fatalf("Failed to encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

// PNGBytes returns a small solid-color PNG.
func PNGBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h)); err != nil {
		t.Fatalf("Failed to encode test png: %v", err)
	}
	return buf.Bytes()
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	return img
}

// WriteRemoteFile places data at a remote path below a local driver root.
func WriteRemoteFile(t *testing.T, root, remotePath string, data []byte) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(remotePath))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("Failed to create remote dir: %v", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		t.Fatalf("Failed to write remote file '%s': %v", remotePath, err)
	}
}

// ReadRemoteFile reads a remote path below a local driver root.
func ReadRemoteFile(t *testing.T, root, remotePath string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(remotePath)))
	if err != nil {
		t.Fatalf("Failed to read remote file '%s': %v", remotePath, err)
	}
	return data
}

// RemoteExists reports whether a remote path exists below a local root.
func RemoteExists(root, remotePath string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(remotePath)))
	return err == nil
}

// FakeEncoder records calls and writes OutputSize bytes to the output.
type FakeEncoder struct {
	OutputSize int
	Err        error
	// OnEncode, if set, runs before the output is written.
	OnEncode func(in encoder.Input)

	mu     sync.Mutex
	calls  []encoder.Input
	frames []int
}

func (f *FakeEncoder) Encode(ctx context.Context, in encoder.Input, output string, p encoder.Policy) error {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	if in.Sequence {
		matches, _ := filepath.Glob(filepath.Join(in.Path, "*.jpg"))
		f.frames = append(f.frames, len(matches))
	}
	f.mu.Unlock()

	if f.OnEncode != nil {
		f.OnEncode(in)
	}
	if f.Err != nil {
		return f.Err
	}
	return os.WriteFile(output, bytes.Repeat([]byte{0}, f.OutputSize), 0644)
}

// Calls returns the inputs of every Encode call so far.
func (f *FakeEncoder) Calls() []encoder.Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]encoder.Input(nil), f.calls...)
}

// FrameCounts returns how many frames each sequence encode saw.
func (f *FakeEncoder) FrameCounts() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.frames...)
}

// FlakyDialer wraps a dialer and fails every operation whose path contains
// one of FailPaths. It records every directory sessions change into.
type FlakyDialer struct {
	remote.Dialer
	FailPaths []string

	mu      sync.Mutex
	visited []string
	stored  []string
}

func (d *FlakyDialer) Connect(ctx context.Context) (remote.Session, error) {
	s, err := d.Dialer.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &flakySession{Session: s, dialer: d, cwd: "/"}, nil
}

// Visited returns every directory changed into, in order.
func (d *FlakyDialer) Visited() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.visited...)
}

// Stored returns every path written, in order.
func (d *FlakyDialer) Stored() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.stored...)
}

func (d *FlakyDialer) check(op, p string) error {
	for _, f := range d.FailPaths {
		if strings.Contains(p, f) {
			return &remote.TransferError{Op: op, Path: p, Err: errors.New("injected failure")}
		}
	}
	return nil
}

type flakySession struct {
	remote.Session
	dialer *FlakyDialer
	cwd    string
}

func (s *flakySession) abs(name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(s.cwd, name)
}

func (s *flakySession) ChangeDir(dir string) error {
	p := s.abs(dir)
	s.dialer.mu.Lock()
	s.dialer.visited = append(s.dialer.visited, p)
	s.dialer.mu.Unlock()
	if err := s.dialer.check("cwd", p); err != nil {
		return err
	}
	if err := s.Session.ChangeDir(dir); err != nil {
		return err
	}
	s.cwd = p
	return nil
}

func (s *flakySession) Retrieve(name string, w io.Writer) error {
	if err := s.dialer.check("retrieve", s.abs(name)); err != nil {
		return err
	}
	return s.Session.Retrieve(name, w)
}

func (s *flakySession) Store(name string, r io.Reader) error {
	p := s.abs(name)
	if err := s.dialer.check("store", p); err != nil {
		return err
	}
	s.dialer.mu.Lock()
	s.dialer.stored = append(s.dialer.stored, p)
	s.dialer.mu.Unlock()
	return s.Session.Store(name, r)
}

func (s *flakySession) Delete(name string) error {
	if err := s.dialer.check("delete", s.abs(name)); err != nil {
		return err
	}
	return s.Session.Delete(name)
}
