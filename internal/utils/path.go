package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrPathEscapesRoot = errors.New("path escapes content root")

func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	// Expand `~` to the user's home directory
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// Resolve relative paths (.., .) and return an absolute path
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return filepath.Clean(absPath), nil
}

// NormPath normalizes a relative file path to clean, slash-separated form
// with no leading slash.
func NormPath(path string) string {
	path = filepath.Clean(path)
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimLeft(path, "/")
	return path
}

// RootJoin joins a client-supplied relative path onto root and guarantees the
// result stays confined to root. Rejects empty paths, absolute paths and any
// path whose cleaned form climbs out of root.
func RootJoin(root string, relPath string) (string, error) {
	if relPath == "" {
		return "", errors.New("path cannot be empty")
	}
	if filepath.IsAbs(relPath) || strings.HasPrefix(relPath, "/") || strings.HasPrefix(relPath, "\\") {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, relPath)
	}

	norm := NormPath(relPath)
	if norm == ".." || strings.HasPrefix(norm, "../") {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, relPath)
	}

	abs := filepath.Join(root, filepath.FromSlash(norm))

	// Join+Clean collapsed any remaining dot segments. Re-check against root
	// to catch anything that survived normalization.
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, relPath)
	}

	return abs, nil
}

// RootJoinResolved is RootJoin with symbolic links expanded: every component
// of the joined path is resolved and the result is re-checked against the
// resolved root, so a link planted inside root cannot reach outside it. The
// target must exist; a missing file surfaces as os.ErrNotExist.
func RootJoinResolved(root string, relPath string) (string, error) {
	abs, err := RootJoin(root, relPath)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, relPath)
	}
	return resolved, nil
}

func EnsureParent(path string) error {
	dir := filepath.Dir(path)
	return EnsureDir(dir)
}

func EnsureDir(path string) error {
	// already exists
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.MkdirAll(path, 0o755)
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
