package encoder

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrUnsupportedVersion is returned by CheckVersion when the installed
// binary is older than required.
var ErrUnsupportedVersion = errors.New("unsupported encoder version")

// Matches "ffmpeg version 4.4.2-0ubuntu0.22.04.1" and "ffmpeg version n6.1".
var versionLine = regexp.MustCompile(`version\s+n?(\d+(?:\.\d+){0,2})`)

// ParseVersion extracts the release number from `ffmpeg -version` output.
// Distribution suffixes are dropped. Git snapshot builds ("N-113035-g...")
// carry no release number and yield an error.
func ParseVersion(output string) (*semver.Version, error) {
	firstLine, _, _ := strings.Cut(output, "\n")
	m := versionLine.FindStringSubmatch(firstLine)
	if m == nil {
		return nil, fmt.Errorf("no version number in %q", firstLine)
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid version %s: %w", m[1], err)
	}
	return v, nil
}

// Probe describes the encoder found at startup.
type Probe struct {
	Path    string
	Version string // empty when the build does not report one
}

// CheckVersion looks binary up in PATH and compares its version against
// minVersion. An unparseable version is accepted since snapshot builds are
// newer than any release.
func CheckVersion(ctx context.Context, binary, minVersion string) (Probe, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return Probe{}, fmt.Errorf("encoder %q not found in PATH: %w", binary, err)
	}
	probe := Probe{Path: path}

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return probe, fmt.Errorf("run %s -version: %w", binary, err)
	}
	v, err := ParseVersion(string(out))
	if err != nil {
		return probe, nil
	}
	probe.Version = v.String()

	if minVersion == "" {
		return probe, nil
	}
	min, err := semver.NewVersion(strings.TrimPrefix(minVersion, "v"))
	if err != nil {
		return probe, fmt.Errorf("invalid encoder.min_version %s: %w", minVersion, err)
	}
	if v.LessThan(min) {
		return probe, fmt.Errorf("%w: %s %s is older than %s", ErrUnsupportedVersion, binary, v, min)
	}
	return probe, nil
}
