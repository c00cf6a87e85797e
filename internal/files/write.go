package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrShortBody is returned when the request body ends before Content-Length bytes
	ErrShortBody = errors.New("request body shorter than Content-Length")
	// ErrInvalidName is returned for upload names with no usable base name
	ErrInvalidName = errors.New("invalid file name")
)

// WriteExact writes exactly length bytes from body to the resolved path,
// creating missing parent directories. The destination is replaced
// atomically, so a truncated upload never leaves a partial file behind.
func (r *Root) WriteExact(path string, body io.Reader, length int64) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return ErrIsDirectory
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	_, err := writeAtomic(path, io.LimitReader(body, length), length)
	return err
}

// UploadResult describes a stored upload
type UploadResult struct {
	Name     string
	Replaced bool
	Size     int64
}

// SaveUpload stores an uploaded file under the resolved directory dir.
// Only the base name of clientName is used; an existing file of that name
// is replaced.
func (r *Root) SaveUpload(dir, clientName string, src io.Reader) (*UploadResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload directory: %w", err)
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	name, err := SanitizeFilename(clientName)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(dir, name)
	replaced := false
	if existing, err := os.Stat(target); err == nil {
		if existing.IsDir() {
			return nil, ErrIsDirectory
		}
		replaced = true
	}

	n, err := writeAtomic(target, src, -1)
	if err != nil {
		return nil, err
	}
	return &UploadResult{Name: name, Replaced: replaced, Size: n}, nil
}

// SanitizeFilename strips any directory component a client put in an
// upload name, accepting both slash styles.
func SanitizeFilename(name string) (string, error) {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, 0) {
		return "", ErrInvalidName
	}
	return name, nil
}

// Remove deletes a resolved path. Directories are removed recursively;
// a symlink is removed itself, never its target.
func (r *Root) Remove(path string) error {
	if r.IsRoot(path) {
		return ErrIsRoot
	}

	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("failed to stat: %w", err)
	}

	if info.IsDir() {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove directory: %w", err)
		}
		return nil
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// writeAtomic copies src into a temp file next to path and renames it into
// place. When want is non-negative, fewer bytes than want is ErrShortBody.
func writeAtomic(path string, src io.Reader, want int64) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".hftp-upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, src)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		cleanup()
		return n, fmt.Errorf("%w: %v", ErrShortBody, err)
	}
	if err != nil {
		cleanup()
		return n, fmt.Errorf("failed to write file: %w", err)
	}
	if want >= 0 && n < want {
		cleanup()
		return n, fmt.Errorf("%w: got %d of %d bytes", ErrShortBody, n, want)
	}
	if err := tmp.Chmod(0o644); err != nil {
		cleanup()
		return n, fmt.Errorf("failed to chmod file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to move file into place: %w", err)
	}
	return n, nil
}
