package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/EmmettHwang/ssirn/internal/encoder"
	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/EmmettHwang/ssirn/internal/remote"
	"go.uber.org/zap"
)

// ConvertResult summarizes a conversion unit.
type ConvertResult struct {
	Images    int   `json:"images"`
	Frames    int   `json:"frames"`
	Skipped   int   `json:"skipped"`
	Uploaded  bool  `json:"uploaded"`
	VideoSize int64 `json:"video_size"`
	// Purge is set when originals were deleted after the upload.
	Purge *PurgeResult `json:"purge,omitempty"`
}

// Convert turns one day of camera images into <root>/videos/<date>.mp4.
// A day without images is not an error. When deleteOriginals is set the
// images are purged once the video is uploaded.
func (e *Engine) Convert(ctx context.Context, cameraID, date string, deleteOriginals bool, r Reporter) (ConvertResult, error) {
	var res ConvertResult
	cam, err := e.ValidateUnit(cameraID, date)
	if err != nil {
		return res, err
	}
	log := e.logger.With(zap.String("camera", cam.ID), zap.String("date", date))

	ws, release, err := e.workspace(ctx, convertWorkspace(cam.ID, date))
	if err != nil {
		return res, err
	}
	defer release()

	names, err := e.listImages(ctx, cam, date)
	if err != nil {
		return res, err
	}
	res.Images = len(names)
	if len(names) == 0 {
		r.Logf("No images found in %s", ImageDir(cam, date))
		return res, nil
	}
	r.Logf("Found %d images", len(names))
	r.SetTotal(len(names))

	frames, skipped, err := e.downloadFrames(ctx, cam, date, names, ws, r)
	if err != nil {
		return res, err
	}
	res.Frames, res.Skipped = frames, skipped
	if frames == 0 {
		return res, fmt.Errorf("%w: all %d images of %s were unreadable", ErrNoFrames, len(names), date)
	}
	r.Logf("Downloaded %d frames (%d skipped)", frames, skipped)

	output := filepath.Join(ws, VideoName(date))
	r.Logf("Encoding %d frames", frames)
	if err := e.encoder.Encode(ctx, encoder.FrameSequence(ws), output, e.policy); err != nil {
		return res, fmt.Errorf("encode %s: %w", date, err)
	}
	info, err := os.Stat(output)
	if err != nil {
		return res, fmt.Errorf("encoder produced no output: %w", err)
	}
	res.VideoSize = info.Size()

	var poster []byte
	if e.poster {
		if poster, err = makePoster(ws); err != nil {
			// The video matters; a missing poster does not.
			r.Logf("Could not create poster: %v", err)
			poster = nil
		}
	}
	if err := e.uploadVideo(ctx, cam, date, output, poster); err != nil {
		return res, err
	}
	res.Uploaded = true
	r.Logf("Uploaded %s (%d bytes)", VideoPath(cam, date), res.VideoSize)
	log.Info("Converted", zap.Int("frames", frames), zap.Int64("bytes", res.VideoSize))

	if deleteOriginals {
		// Only the images in the video; later uploads stay for the next run.
		purge, err := e.deleteOriginals(ctx, cam, date, names, r)
		if err != nil {
			return res, err
		}
		res.Purge = &purge
	}
	return res, nil
}

// listImages returns the frame file names of a day in capture order.
// Camera file names embed a fixed-width timestamp, so lexical order is
// capture order. A day the camera never uploaded has no images.
func (e *Engine) listImages(ctx context.Context, cam models.Camera, date string) ([]string, error) {
	s, err := e.session(ctx)
	if err != nil {
		return nil, err
	}
	defer e.closeSession(s)

	names, err := imageNames(s, cam, date)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// downloadFrames fetches names into ws as a contiguous frame sequence.
// Unreadable images are skipped; a transfer failure aborts.
func (e *Engine) downloadFrames(ctx context.Context, cam models.Camera, date string, names []string, ws string, r Reporter) (int, int, error) {
	s, err := e.session(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer e.closeSession(s)

	if err := s.ChangeDir(ImageDir(cam, date)); err != nil {
		return 0, 0, fmt.Errorf("open image directory: %w", err)
	}

	frames, skipped := 0, 0
	var buf bytes.Buffer
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return frames, skipped, err
		}
		buf.Reset()
		if err := s.Retrieve(name, &buf); err != nil {
			return frames, skipped, fmt.Errorf("download %s: %w", name, err)
		}
		if err := writeFrame(buf.Bytes(), filepath.Join(ws, frameName(frames))); err != nil {
			r.Logf("Skipping %s: %v", name, err)
			skipped++
		} else {
			frames++
		}
		r.SetProgress(i + 1)
	}
	return frames, skipped, nil
}

func (e *Engine) uploadVideo(ctx context.Context, cam models.Camera, date, file string, poster []byte) error {
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
	if poster != nil {
		if err := s.Store(PosterName(date), bytes.NewReader(poster)); err != nil {
			return fmt.Errorf("upload poster: %w", err)
		}
	}
	return nil
}
