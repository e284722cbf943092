package archive

import (
	"context"
	"fmt"

	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/EmmettHwang/ssirn/internal/remote"
)

// PurgeResult summarizes a purge of original images.
type PurgeResult struct {
	Deleted int      `json:"deleted"`
	Failed  []string `json:"failed,omitempty"`
	// Skipped is set when no video exists and nothing was touched.
	Skipped bool `json:"skipped"`
}

// DeleteOriginals removes a day's images, but only after confirming its
// video is archived. Each image is deleted independently; failures are
// collected and logged rather than aborting the purge.
func (e *Engine) DeleteOriginals(ctx context.Context, cameraID, date string, r Reporter) (PurgeResult, error) {
	cam, err := e.ValidateUnit(cameraID, date)
	if err != nil {
		return PurgeResult{}, err
	}
	return e.deleteOriginals(ctx, cam, date, nil, r)
}

// deleteOriginals purges the images of a day. When only is non-nil, just
// those names are deleted.
func (e *Engine) deleteOriginals(ctx context.Context, cam models.Camera, date string, only []string, r Reporter) (PurgeResult, error) {
	var res PurgeResult
	s, err := e.session(ctx)
	if err != nil {
		return res, err
	}
	defer e.closeSession(s)

	ok, err := e.hasVideo(s, cam, date)
	if err != nil {
		return res, err
	}
	if !ok {
		r.Logf("No video for %s, keeping original images", date)
		res.Skipped = true
		return res, nil
	}

	names, err := imageNames(s, cam, date)
	if err != nil {
		return res, err
	}
	if only != nil {
		names = intersect(names, only)
	}
	for _, name := range names {
		if err := s.Delete(name); err != nil {
			r.Logf("Could not delete %s: %v", name, err)
			res.Failed = append(res.Failed, name)
			continue
		}
		res.Deleted++
	}
	r.Logf("Deleted %d original images (%d failed)", res.Deleted, len(res.Failed))
	return res, nil
}

// imageNames lists the frame files of a day, leaving the session in the
// images directory.
func imageNames(s remote.Session, cam models.Camera, date string) ([]string, error) {
	all, err := listDir(s, ImageDir(cam, date))
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	var names []string
	for _, n := range all {
		if isImage(n) {
			names = append(names, n)
		}
	}
	return names, nil
}

func intersect(names, keep []string) []string {
	set := make(map[string]struct{}, len(keep))
	for _, n := range keep {
		set[n] = struct{}{}
	}
	var out []string
	for _, n := range names {
		if _, ok := set[n]; ok {
			out = append(out, n)
		}
	}
	return out
}
