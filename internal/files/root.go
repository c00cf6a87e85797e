package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

var (
	// ErrOutsideRoot is returned when a request path escapes the served directory
	ErrOutsideRoot = errors.New("path escapes the served directory")
	// ErrIsDirectory is returned when a file operation targets a directory
	ErrIsDirectory = errors.New("path is a directory")
	// ErrNotDirectory is returned when a directory operation targets a file
	ErrNotDirectory = errors.New("path is not a directory")
	// ErrIsRoot is returned when a request tries to delete the served directory itself
	ErrIsRoot = errors.New("cannot delete the served directory")
)

// Root is the directory tree served over HTTP. Every filesystem path the
// server touches is produced by Resolve and stays inside it.
type Root struct {
	dir string
}

// NewRoot creates a root for the given directory
func NewRoot(dir string) (*Root, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}

	// Compare against the real location so symlinked roots (e.g. /tmp on macOS) work
	realPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	info, err := os.Stat(realPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s: %w", realPath, ErrNotDirectory)
	}

	return &Root{dir: filepath.Clean(realPath)}, nil
}

// Dir returns the absolute path of the served directory
func (r *Root) Dir() string {
	return r.dir
}

// Resolve maps an already percent-decoded URL path onto the filesystem.
// It fails with ErrOutsideRoot if the normalized path, or the target of any
// symlink along it, lies above the root.
func (r *Root) Resolve(urlPath string) (string, error) {
	if strings.ContainsRune(urlPath, 0) {
		return "", ErrOutsideRoot
	}

	rel := filepath.FromSlash(strings.TrimLeft(urlPath, "/"))
	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", ErrOutsideRoot
	}

	full := filepath.Join(r.dir, rel)
	if !r.contains(full) {
		return "", ErrOutsideRoot
	}

	resolved, err := realPrefix(full)
	if err != nil {
		return "", err
	}
	if !r.contains(resolved) {
		return "", ErrOutsideRoot
	}

	return full, nil
}

// IsRoot reports whether a resolved path is the served directory itself
func (r *Root) IsRoot(path string) bool {
	return filepath.Clean(path) == r.dir
}

func (r *Root) contains(path string) bool {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// realPrefix evaluates symlinks on the longest existing prefix of path and
// re-appends the missing tail, so targets that do not exist yet can be checked.
func realPrefix(path string) (string, error) {
	existing := path
	var tail []string
	for {
		_, err := os.Lstat(existing)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
			return "", fmt.Errorf("failed to stat %s: %w", existing, err)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return path, nil
		}
		tail = append([]string{filepath.Base(existing)}, tail...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", existing, err)
	}
	return filepath.Join(append([]string{resolved}, tail...)...), nil
}
