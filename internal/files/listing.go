package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxDirEntries is the maximum number of directory entries to return
const MaxDirEntries = 10000

// List returns the entries of a resolved directory: directories first, then
// files, each group ordered case-insensitively. At most MaxDirEntries are
// returned; truncated reports whether any were left out.
func (r *Root) List(dir string) (entries []FileEntry, truncated bool, err error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read directory: %w", err)
	}

	// Order on names and types first so the cap drops the tail of the
	// sorted listing, then stat only what is kept
	candidates := make([]FileEntry, 0, len(dirEntries))
	for _, entry := range dirEntries {
		candidates = append(candidates, FileEntry{
			Name:  entry.Name(),
			IsDir: isDirEntry(dir, entry),
		})
	}
	sortEntries(candidates)

	if len(candidates) > MaxDirEntries {
		candidates = candidates[:MaxDirEntries]
		truncated = true
	}

	entries = make([]FileEntry, 0, len(candidates))
	for _, c := range candidates {
		entries = append(entries, entryInfo(dir, c))
	}
	return entries, truncated, nil
}

// isDirEntry follows symlinks so a link to a directory sorts as one
func isDirEntry(dir string, entry os.DirEntry) bool {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.IsDir()
}

func entryInfo(dir string, candidate FileEntry) FileEntry {
	fullPath := filepath.Join(dir, candidate.Name)
	fe := FileEntry{
		Name:  candidate.Name,
		IsDir: candidate.IsDir,
		Size:  -1,
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if !fe.IsDir {
			fe.Kind = Classify(fe.Name)
		}
		return fe
	}

	fe.ModTime = info.ModTime()
	if !fe.IsDir {
		fe.Size = info.Size()
		fe.Kind = Classify(fe.Name)
		fe.Previewable = info.Mode().IsRegular() && IsText(fullPath)
	}
	return fe
}

func sortEntries(files []FileEntry) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].IsDir != files[j].IsDir {
			return files[i].IsDir
		}
		li, lj := strings.ToLower(files[i].Name), strings.ToLower(files[j].Name)
		if li != lj {
			return li < lj
		}
		return files[i].Name < files[j].Name
	})
}
