package files

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/gabriel-vasile/mimetype"
)

// Lexer picks a syntax highlighter for a file: by name first, then by
// analysing the content, then plain text.
func Lexer(name, content string) chroma.Lexer {
	lexer := lexers.Match(filepath.Base(name))
	if lexer == nil {
		lexer = lexers.Analyse(content)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

// ContentType returns a best-effort MIME type for a download. The extension
// is trusted first; unknown extensions are sniffed from the file content.
func ContentType(path string) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		return byExt
	}
	if textExtensions[filepath.Base(path)] {
		return "text/plain; charset=utf-8"
	}
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return detected.String()
}
