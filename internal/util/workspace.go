package util

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	invalidChars = regexp.MustCompile(`[\\/:*?"<>|\s]`)
	dashRuns     = regexp.MustCompile(`-+`)
)

// PrepareWorkspace makes sure the scratch directory exists and is
// writable, creating it if needed, and returns its absolute path.
func PrepareWorkspace(workspacePath string) (string, error) {
	if workspacePath == "" {
		return "", fmt.Errorf("workspace path cannot be empty")
	}
	// Check for directory traversal attempts
	if hasParentSegment(workspacePath) {
		return "", fmt.Errorf("workspace path contains invalid directory traversal")
	}

	fullPath, err := filepath.Abs(filepath.Clean(workspacePath))
	if err != nil {
		return "", fmt.Errorf("cannot resolve workspace path: %w", err)
	}

	info, err := os.Stat(fullPath)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("path exists but is not a directory: %s", fullPath)
	case os.IsNotExist(err):
		if err := os.MkdirAll(fullPath, 0755); err != nil {
			return "", fmt.Errorf("cannot create workspace: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("cannot access path: %w", err)
	}

	if err := checkWritePermission(fullPath); err != nil {
		return "", fmt.Errorf("no write permission for workspace: %w", err)
	}
	return fullPath, nil
}

// hasParentSegment reports whether any element of p is "..". Names that
// merely contain two dots, like "ws..old", are fine.
func hasParentSegment(p string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// checkWritePermission checks if we have write permission to a directory
func checkWritePermission(dirPath string) error {
	tempFile := filepath.Join(dirPath, ".ssirn_temp_check")
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}
	file.Close()
	return os.Remove(tempFile)
}

// SanitizeName turns an identifier into something safe to use as a single
// path component. Unsafe characters become dashes.
func SanitizeName(name string) string {
	safe := controlChars.ReplaceAllString(name, "")
	safe = strings.Trim(safe, " .")
	safe = invalidChars.ReplaceAllString(safe, "-")
	safe = dashRuns.ReplaceAllString(safe, "-")
	safe = strings.Trim(safe, "-.")
	if safe == "" {
		return "_"
	}
	return safe
}
