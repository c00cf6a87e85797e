package server

import (
	"embed"
	"html/template"
	"net/url"
	"strings"

	"github.com/ngenohkevin/hftp/internal/files"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"plural": func(n int, word string) string {
		if n == 1 {
			return word
		}
		return word + "s"
	},
}

var kindIcons = map[files.Kind]string{
	files.KindText:    "📄",
	files.KindCode:    "📝",
	files.KindImage:   "🖼️",
	files.KindArchive: "📦",
	files.KindOther:   "📎",
}

const dirIcon = "📁"

type crumb struct {
	Name string
	Href string
}

type entryView struct {
	Name        string
	Href        string
	PreviewHref string
	Icon        string
	Size        string
	ModTime     string
	IsDir       bool
	Previewable bool
}

type listingPage struct {
	Path        string
	Breadcrumbs []crumb
	ParentHref  string
	Entries     []entryView
	DirCount    int
	FileCount   int
	Truncated   bool
	DiskFree    string
}

type previewPage struct {
	Name      string
	Size      string
	Language  string
	Lines     int
	Truncated bool
	Code      template.HTML
	CSS       template.CSS
	RawHref   string
}

type uploadPage struct {
	Status string
	Name   string
	Size   string
}

type errorPage struct {
	Status     int
	StatusText string
	Message    string
}

// newListingPage builds the listing view. Links are relative to urlPath,
// which always ends in a slash.
func newListingPage(urlPath string, entries []files.FileEntry, truncated bool) listingPage {
	page := listingPage{
		Path:        urlPath,
		Breadcrumbs: breadcrumbs(urlPath),
		Entries:     make([]entryView, 0, len(entries)),
		Truncated:   truncated,
	}
	if urlPath != "/" {
		page.ParentHref = "../"
	}

	for _, e := range entries {
		href := relativeHref(e.Name)
		view := entryView{
			Name:    e.Name,
			Href:    href,
			ModTime: files.FormatTime(e.ModTime),
			IsDir:   e.IsDir,
		}
		if e.IsDir {
			page.DirCount++
			view.Name += "/"
			view.Href += "/"
			view.Icon = dirIcon
			view.Size = "-"
		} else {
			page.FileCount++
			view.Icon = kindIcons[e.Kind]
			view.Size = files.FormatSize(e.Size)
			view.Previewable = e.Previewable
			if e.Previewable {
				view.PreviewHref = href + "?preview=1"
			}
		}
		page.Entries = append(page.Entries, view)
	}
	return page
}

// relativeHref links to a name in the current directory. The "./" prefix
// keeps a name containing a colon from parsing as a URL scheme.
func relativeHref(name string) string {
	return "./" + url.PathEscape(name)
}

func breadcrumbs(urlPath string) []crumb {
	crumbs := []crumb{{Name: "Home", Href: "/"}}
	href := "/"
	for _, segment := range strings.Split(strings.Trim(urlPath, "/"), "/") {
		if segment == "" {
			continue
		}
		href += url.PathEscape(segment) + "/"
		crumbs = append(crumbs, crumb{Name: segment, Href: href})
	}
	return crumbs
}
