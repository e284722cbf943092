package encoder_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/EmmettHwang/ssirn/internal/config"
	"github.com/EmmettHwang/ssirn/internal/encoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsForFrameSequence(t *testing.T) {
	args := encoder.Args(encoder.FrameSequence("/tmp/ws/cam1_20260204"), "/tmp/ws/cam1_20260204/out.mp4", encoder.DefaultPolicy())

	assert.Equal(t, []string{
		"-y",
		"-framerate", "10",
		"-i", "/tmp/ws/cam1_20260204/%06d.jpg",
		"-vf", "scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", "fast",
		"-crf", "28",
		"/tmp/ws/cam1_20260204/out.mp4",
	}, args)
}

func TestArgsForVideoFile(t *testing.T) {
	args := encoder.Args(encoder.VideoFile("in.mp4"), "out.mp4", encoder.DefaultPolicy())

	assert.Equal(t, []string{"-y", "-i", "in.mp4"}, args[:3])
	assert.NotContains(t, args, "-framerate")
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestPolicyFromConfig(t *testing.T) {
	p := encoder.PolicyFromConfig(config.Encoder{CRF: 23, Width: 1920, Height: 1080})

	assert.Equal(t, 23, p.CRF)
	assert.Equal(t, 1920, p.Width)
	assert.Equal(t, 1080, p.Height)
	// Unset fields fall back to the archive profile.
	assert.Equal(t, 10, p.FrameRate)
	assert.Equal(t, "libx264", p.Codec)
	assert.Equal(t, "fast", p.Preset)
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    string
		wantErr bool
	}{
		{"Ubuntu build", "ffmpeg version 4.4.2-0ubuntu0.22.04.1 Copyright (c) 2000-2021 the FFmpeg developers\nbuilt with gcc 11", "4.4.2", false},
		{"Release tag", "ffmpeg version n6.1 Copyright (c) 2000-2023", "6.1.0", false},
		{"Static build", "ffmpeg version 7.0.1-static https://johnvansickle.com/ffmpeg/", "7.0.1", false},
		{"Git snapshot", "ffmpeg version N-113035-g0b6b6a6 Copyright", "", true},
		{"Garbage", "command not found", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := encoder.ParseVersion(tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestEncodeErrorMatchesSentinel(t *testing.T) {
	err := error(&encoder.EncodeError{ExitCode: 1, Output: "Invalid data found", Err: errors.New("exit status 1")})

	assert.True(t, errors.Is(err, encoder.ErrEncode))
	assert.Contains(t, err.Error(), "Invalid data found")
}

// fakeBinary writes a shell script standing in for ffmpeg.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755))
	return path
}

func TestFFmpegEncodeFailure(t *testing.T) {
	bin := fakeBinary(t, `echo "Invalid data found when processing input" >&2; exit 3`)

	err := encoder.NewFFmpeg(bin).Encode(context.Background(), encoder.VideoFile("in.mp4"), "out.mp4", encoder.DefaultPolicy())

	require.ErrorIs(t, err, encoder.ErrEncode)
	var encErr *encoder.EncodeError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, 3, encErr.ExitCode)
	assert.Contains(t, encErr.Output, "Invalid data found")
}

func TestFFmpegEncodeSuccess(t *testing.T) {
	bin := fakeBinary(t, `exit 0`)

	err := encoder.NewFFmpeg(bin).Encode(context.Background(), encoder.VideoFile("in.mp4"), "out.mp4", encoder.DefaultPolicy())
	assert.NoError(t, err)
}

func TestFFmpegMissingBinary(t *testing.T) {
	err := encoder.NewFFmpeg(filepath.Join(t.TempDir(), "missing")).Encode(context.Background(), encoder.VideoFile("in.mp4"), "out.mp4", encoder.DefaultPolicy())

	require.ErrorIs(t, err, encoder.ErrEncode)
	var encErr *encoder.EncodeError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, -1, encErr.ExitCode)
}

func TestCheckVersion(t *testing.T) {
	bin := fakeBinary(t, `echo "ffmpeg version 4.4.2-0ubuntu0.22.04.1 Copyright"`)

	probe, err := encoder.CheckVersion(context.Background(), bin, "4.0.0")
	require.NoError(t, err)
	assert.Equal(t, "4.4.2", probe.Version)
	assert.Equal(t, bin, probe.Path)

	_, err = encoder.CheckVersion(context.Background(), bin, "5.0.0")
	assert.ErrorIs(t, err, encoder.ErrUnsupportedVersion)
}

func TestCheckVersionAcceptsSnapshotBuild(t *testing.T) {
	bin := fakeBinary(t, `echo "ffmpeg version N-113035-g0b6b6a6 Copyright"`)

	probe, err := encoder.CheckVersion(context.Background(), bin, "4.0.0")
	require.NoError(t, err)
	assert.Empty(t, probe.Version)
}

func TestCheckVersionMissingBinary(t *testing.T) {
	_, err := encoder.CheckVersion(context.Background(), "definitely-not-ffmpeg-"+strings.Repeat("x", 8), "4.0.0")
	assert.Error(t, err)
}
