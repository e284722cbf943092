package archive

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// BatchResult counts the units of a batch.
type BatchResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ListVideoDates returns the dates of every archived video of a camera in
// ascending order. A camera without a videos directory has none.
func (e *Engine) ListVideoDates(ctx context.Context, cameraID string) ([]string, error) {
	cam, err := e.Camera(cameraID)
	if err != nil {
		return nil, err
	}
	s, err := e.session(ctx)
	if err != nil {
		return nil, err
	}
	defer e.closeSession(s)

	names, err := listDir(s, VideoDir(cam))
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	var dates []string
	for _, n := range names {
		if d, ok := videoDate(n); ok {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// ResizeAll resizes every archived video of a camera. A failing video is
// logged and skipped; only a failure to enumerate fails the batch.
func (e *Engine) ResizeAll(ctx context.Context, cameraID string, r Reporter) (BatchResult, error) {
	var res BatchResult
	dates, err := e.ListVideoDates(ctx, cameraID)
	if err != nil {
		return res, err
	}
	res.Total = len(dates)
	r.SetTotal(len(dates))
	r.Logf("Found %d videos to resize", len(dates))

	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r.SetCurrent(date)
		if _, err := e.Resize(ctx, cameraID, date, prefixed{Reporter: r, label: date}); err != nil {
			r.Logf("[%s] Failed: %v", date, err)
			res.Failed++
		} else {
			res.Succeeded++
		}
		r.SetProgress(i + 1)
	}
	r.Logf("Resize finished: %d succeeded, %d failed", res.Succeeded, res.Failed)
	return res, nil
}

// ConvertRange converts every day from from to to, inclusive. A failing
// day is logged and the next one is attempted.
func (e *Engine) ConvertRange(ctx context.Context, cameraID, from, to string, deleteOriginals bool, r Reporter) (BatchResult, error) {
	var res BatchResult
	if _, err := e.Camera(cameraID); err != nil {
		return res, err
	}
	dates, err := DateRange(from, to)
	if err != nil {
		return res, err
	}
	res.Total = len(dates)
	r.SetTotal(len(dates))
	r.Logf("Converting %d days from %s to %s", len(dates), from, to)

	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r.SetCurrent(date)
		if _, err := e.Convert(ctx, cameraID, date, deleteOriginals, prefixed{Reporter: r, label: date}); err != nil {
			r.Logf("[%s] Failed: %v", date, err)
			res.Failed++
		} else {
			res.Succeeded++
		}
		r.SetProgress(i + 1)
	}
	r.Logf("Conversion finished: %d succeeded, %d failed", res.Succeeded, res.Failed)
	return res, nil
}

// DateRange expands an inclusive range of YYYYMMDD dates.
func DateRange(from, to string) ([]string, error) {
	start, end, err := parseRange(from, to)
	if err != nil {
		return nil, err
	}
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	start, err := ParseDate(from)
	if err != nil {
		return start, start, err
	}
	end, err := ParseDate(to)
	if err != nil {
		return start, end, err
	}
	if start.After(end) {
		return start, end, fmt.Errorf("%w: %s is after %s", ErrInvalidDate, from, to)
	}
	return start, end, nil
}
