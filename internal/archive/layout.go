package archive

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/EmmettHwang/ssirn/internal/util"
)

// DateLayout is the YYYYMMDD form used in remote paths.
const DateLayout = "20060102"

var (
	dateRe      = regexp.MustCompile(`^\d{8}$`)
	videoNameRe = regexp.MustCompile(`^(\d{8})\.mp4$`)
)

// ParseDate validates an archive date.
func ParseDate(date string) (time.Time, error) {
	if !dateRe.MatchString(date) {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYYMMDD", ErrInvalidDate, date)
	}
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar day", ErrInvalidDate, date)
	}
	return t, nil
}

// ImageDir is where a camera's images for date are uploaded.
func ImageDir(cam models.Camera, date string) string {
	return path.Join(cam.Root, date, "images")
}

// VideoDir holds every converted video of a camera.
func VideoDir(cam models.Camera) string {
	return path.Join(cam.Root, "videos")
}

// VideoName is the file name of the video for date.
func VideoName(date string) string { return date + ".mp4" }

// PosterName is the file name of the poster thumbnail for date.
func PosterName(date string) string { return date + ".jpg" }

// VideoPath is the full remote path of the video for date.
func VideoPath(cam models.Camera, date string) string {
	return path.Join(VideoDir(cam), VideoName(date))
}

// convertWorkspace and resizeWorkspace name the private scratch directories
// of a unit below the workspace root.
func convertWorkspace(cameraID, date string) string {
	return util.SanitizeName(cameraID) + "_" + date
}

func resizeWorkspace(cameraID, date string) string {
	return "resize_" + util.SanitizeName(cameraID) + "_" + date
}

// isImage reports whether name has a frame extension.
func isImage(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// videoDate returns the date of a YYYYMMDD.mp4 name.
func videoDate(name string) (string, bool) {
	m := videoNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}
