package files

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// textExtensions lists extensions and bare file names that can be previewed
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true, ".log": true,
	".ini": true, ".cfg": true, ".conf": true, ".json": true, ".xml": true,
	".yaml": true, ".yml": true, ".toml": true, ".py": true, ".js": true,
	".ts": true, ".jsx": true, ".tsx": true, ".css": true, ".scss": true,
	".less": true, ".html": true, ".htm": true, ".c": true, ".cpp": true,
	".h": true, ".hpp": true, ".java": true, ".go": true, ".rs": true,
	".rb": true, ".php": true, ".pl": true, ".lua": true, ".sh": true,
	".bash": true, ".zsh": true, ".fish": true, ".ps1": true, ".bat": true,
	".cmd": true, ".sql": true, ".r": true, ".m": true, ".swift": true,
	".kt": true, ".scala": true, ".clj": true, ".hs": true, ".ex": true,
	".exs": true, ".vue": true, ".svelte": true, ".astro": true, ".env": true,
	".gitignore": true, ".dockerignore": true, ".editorconfig": true,
	".csv": true, ".tsv": true,
	"Makefile": true, "Dockerfile": true, "Vagrantfile": true,
	"Jenkinsfile": true, "Rakefile": true,
}

var textMIMEPrefixes = []string{
	"text/",
	"application/json",
	"application/xml",
	"application/javascript",
}

var (
	textIconExts = map[string]bool{
		".txt": true, ".md": true, ".json": true, ".xml": true, ".yaml": true,
		".yml": true, ".ini": true, ".cfg": true, ".conf": true, ".log": true,
	}
	codeIconExts = map[string]bool{
		".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
		".css": true, ".html": true, ".c": true, ".cpp": true, ".h": true,
		".java": true, ".go": true, ".rs": true, ".rb": true, ".php": true,
		".sh": true,
	}
	imageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
		".svg": true, ".webp": true, ".ico": true,
	}
	archiveExts = map[string]bool{
		".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
		".7z": true, ".rar": true,
	}
)

// Classify returns the display kind of a file name
func Classify(name string) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case textIconExts[ext]:
		return KindText
	case codeIconExts[ext]:
		return KindCode
	case imageExts[ext]:
		return KindImage
	case archiveExts[ext]:
		return KindArchive
	default:
		return KindOther
	}
}

// IsText reports whether the file at path can be shown as a text preview.
// The name is checked first; only files with no known MIME type by
// extension are sniffed.
func IsText(path string) bool {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))
	if textExtensions[base] || textExtensions[ext] {
		return true
	}

	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return hasTextPrefix(byExt)
		}
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	return hasTextPrefix(detected.String())
}

func hasTextPrefix(mimeType string) bool {
	for _, prefix := range textMIMEPrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}
