package archive

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
)

const (
	frameQuality  = 95
	posterWidth   = 480
	posterHeight  = 270
	posterQuality = 80
)

// frameName is the workspace name of the n-th frame, matching the %06d.jpg
// pattern handed to the encoder.
func frameName(n int) string {
	return fmt.Sprintf("%06d.jpg", n)
}

// writeFrame validates one downloaded image and stores it as a JPEG frame.
// JPEG data is written unchanged; other formats are re-encoded.
func writeFrame(data []byte, dest string) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("empty image %dx%d", cfg.Width, cfg.Height)
	}
	if format == "jpeg" {
		return os.WriteFile(dest, data, 0644)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode %s: %w", format, err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: frameQuality}); err != nil {
		return fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return os.WriteFile(dest, buf.Bytes(), 0644)
}

// makePoster renders a small JPEG thumbnail of the first frame in dir.
func makePoster(dir string) ([]byte, error) {
	f, err := os.Open(filepath.Join(dir, frameName(0)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	thumb := resize.Thumbnail(posterWidth, posterHeight, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: posterQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
