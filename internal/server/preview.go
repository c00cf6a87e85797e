package server

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/ngenohkevin/hftp/internal/files"
)

const (
	// DefaultStyle is the chroma style used for previews
	DefaultStyle = "github"
	// MaxPreviewSize is the most bytes of a file shown in a preview
	MaxPreviewSize = 1 << 20
)

// Highlighter renders source text as HTML with chroma
type Highlighter struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
	css       template.CSS
}

// NewHighlighter creates a highlighter using the named chroma style,
// falling back to chroma's default for unknown names.
func NewHighlighter(styleName string) (*Highlighter, error) {
	style := styles.Get(styleName)
	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.WithLineNumbers(true),
		chromahtml.LineNumbersInTable(true),
		chromahtml.TabWidth(4),
	)

	var css bytes.Buffer
	if err := formatter.WriteCSS(&css, style); err != nil {
		return nil, fmt.Errorf("failed to write highlight CSS: %w", err)
	}

	return &Highlighter{
		style:     style,
		formatter: formatter,
		css:       template.CSS(css.String()),
	}, nil
}

// Highlight returns content as highlighted HTML and the detected language
func (h *Highlighter) Highlight(name, content string) (template.HTML, string, error) {
	lexer := files.Lexer(name, content)

	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return "", "", fmt.Errorf("failed to tokenise %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return "", "", fmt.Errorf("failed to format %s: %w", name, err)
	}
	return template.HTML(buf.String()), lexer.Config().Name, nil
}

// Render reads up to MaxPreviewSize bytes of path and builds its preview page
func (h *Highlighter) Render(path string, info os.FileInfo) (*previewPage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxPreviewSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	truncated := len(data) > MaxPreviewSize
	if truncated {
		data = data[:MaxPreviewSize]
	}
	content := strings.ToValidUTF8(string(data), "�")

	code, language, err := h.Highlight(info.Name(), content)
	if err != nil {
		return nil, err
	}

	return &previewPage{
		Name:      info.Name(),
		Size:      files.FormatSize(info.Size()),
		Language:  language,
		Lines:     strings.Count(content, "\n") + 1,
		Truncated: truncated,
		Code:      code,
		CSS:       h.css,
		RawHref:   relativeHref(info.Name()),
	}, nil
}
