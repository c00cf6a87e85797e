package files

import "time"

// Kind is a coarse file classification used to pick a display icon
type Kind string

const (
	KindText    Kind = "text"
	KindCode    Kind = "code"
	KindImage   Kind = "image"
	KindArchive Kind = "archive"
	KindOther   Kind = "other"
)

// FileEntry represents a file or directory in a listing.
// Entries are derived from the filesystem on every request and never cached.
type FileEntry struct {
	Name    string
	IsDir   bool
	Size    int64 // -1 when the entry could not be stat'ed
	ModTime time.Time
	Kind    Kind
	// Previewable is true for files that can be rendered with ?preview=1
	Previewable bool
}
