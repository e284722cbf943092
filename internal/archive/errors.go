package archive

import "errors"

var (
	// ErrUnknownCamera is returned when a camera id is not registered.
	ErrUnknownCamera = errors.New("unknown camera")
	// ErrInvalidDate is returned for dates that are not YYYYMMDD calendar
	// days, and for ranges whose start is after their end.
	ErrInvalidDate = errors.New("invalid date")
	// ErrNotFound is returned when a unit's source does not exist remotely.
	ErrNotFound = errors.New("not found")
	// ErrNoFrames is returned when none of a date's images could be decoded.
	ErrNoFrames = errors.New("no usable frames")
)
