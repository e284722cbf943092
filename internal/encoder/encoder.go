// Package encoder runs ffmpeg to turn frame sequences into video and to
// re-encode existing video to the archive profile.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/EmmettHwang/ssirn/internal/config"
)

// ErrEncode matches every encoder failure.
var ErrEncode = errors.New("encode failed")

// EncodeError is returned when ffmpeg could not be started or exited
// non-zero. Output holds the tail of its combined output.
type EncodeError struct {
	ExitCode int
	Output   string
	Err      error
}

func (e *EncodeError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("encoder exited with code %d: %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("encoder exited with code %d: %v: %s", e.ExitCode, e.Err, e.Output)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func (e *EncodeError) Is(target error) bool { return target == ErrEncode }

// Policy is the fixed output profile of the archive.
type Policy struct {
	FrameRate   int
	Width       int
	Height      int
	Codec       string
	PixelFormat string
	Preset      string
	CRF         int
}

// DefaultPolicy is 10 fps 1280x720 H.264, preset fast, CRF 28.
func DefaultPolicy() Policy {
	return Policy{
		FrameRate:   10,
		Width:       1280,
		Height:      720,
		Codec:       "libx264",
		PixelFormat: "yuv420p",
		Preset:      "fast",
		CRF:         28,
	}
}

// PolicyFromConfig fills unset fields from DefaultPolicy.
func PolicyFromConfig(c config.Encoder) Policy {
	p := DefaultPolicy()
	if c.FrameRate > 0 {
		p.FrameRate = c.FrameRate
	}
	if c.Width > 0 {
		p.Width = c.Width
	}
	if c.Height > 0 {
		p.Height = c.Height
	}
	if c.Codec != "" {
		p.Codec = c.Codec
	}
	if c.PixelFormat != "" {
		p.PixelFormat = c.PixelFormat
	}
	if c.Preset != "" {
		p.Preset = c.Preset
	}
	if c.CRF > 0 {
		p.CRF = c.CRF
	}
	return p
}

// Input is either a directory of %06d.jpg frames or a single video file.
type Input struct {
	Path     string
	Sequence bool
}

// FrameSequence returns the input for a workspace of numbered frames.
func FrameSequence(dir string) Input { return Input{Path: dir, Sequence: true} }

// VideoFile returns the input for an existing video.
func VideoFile(path string) Input { return Input{Path: path} }

// Encoder produces output from in under policy p. It blocks until done.
type Encoder interface {
	Encode(ctx context.Context, in Input, output string, p Policy) error
}

// FFmpeg invokes an ffmpeg binary.
type FFmpeg struct {
	Binary string
}

// NewFFmpeg returns an encoder for binary, "ffmpeg" when empty.
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{Binary: binary}
}

// Args builds the ffmpeg argument list.
func Args(in Input, output string, p Policy) []string {
	args := []string{"-y"}
	if in.Sequence {
		args = append(args,
			"-framerate", strconv.Itoa(p.FrameRate),
			"-i", in.Path+"/%06d.jpg",
		)
	} else {
		args = append(args, "-i", in.Path)
	}
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		p.Width, p.Height, p.Width, p.Height,
	)
	return append(args,
		"-vf", filter,
		"-c:v", p.Codec,
		"-pix_fmt", p.PixelFormat,
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
		output,
	)
}

// Encode runs ffmpeg to completion.
func (f *FFmpeg) Encode(ctx context.Context, in Input, output string, p Policy) error {
	var out tailBuffer
	cmd := exec.CommandContext(ctx, f.Binary, Args(in, output, p)...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &EncodeError{ExitCode: code, Output: out.String(), Err: err}
	}
	return nil
}

const tailSize = 2048

// tailBuffer keeps only the last tailSize bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if extra := t.buf.Len() - tailSize; extra > 0 {
		t.buf.Next(extra)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return string(bytes.TrimSpace(t.buf.Bytes()))
}
