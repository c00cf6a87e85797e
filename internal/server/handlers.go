package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	pathpkg "path"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ngenohkevin/hftp/internal/cache"
	"github.com/ngenohkevin/hftp/internal/files"
	"github.com/ngenohkevin/hftp/internal/log"
	"github.com/ngenohkevin/hftp/internal/system"
)

const (
	previewCacheTTL = 5 * time.Minute
	diskCacheTTL    = 5 * time.Second
)

// Handlers implements the file protocol on top of a served root
type Handlers struct {
	root      *files.Root
	highlight *Highlighter
	previews  *cache.Cache[*previewPage]
	disk      *cache.Cache[*system.DiskUsage]
	methods   map[string]gin.HandlerFunc
	allow     string
}

// NewHandlers creates a new handlers instance
func NewHandlers(root *files.Root) (*Handlers, error) {
	highlight, err := NewHighlighter(DefaultStyle)
	if err != nil {
		return nil, err
	}

	h := &Handlers{
		root:      root,
		highlight: highlight,
		previews:  cache.New[*previewPage](previewCacheTTL),
		disk:      cache.New[*system.DiskUsage](diskCacheTTL),
	}

	h.methods = map[string]gin.HandlerFunc{
		http.MethodGet:    h.Get,
		http.MethodPut:    h.Put,
		http.MethodPost:   h.Post,
		http.MethodDelete: h.Delete,
	}

	allowed := make([]string, 0, len(h.methods))
	for method := range h.methods {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	h.allow = strings.Join(allowed, ", ")

	return h, nil
}

// Dispatch routes a request to the handler for its method
func (h *Handlers) Dispatch(c *gin.Context) {
	handler, ok := h.methods[c.Request.Method]
	if !ok {
		c.Header("Allow", h.allow)
		h.protocolError(c, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed", c.Request.Method))
		return
	}
	handler(c)
}

// Get serves a directory listing, a text preview or the raw file
func (h *Handlers) Get(c *gin.Context) {
	urlPath := c.Request.URL.Path
	path, err := h.root.Resolve(urlPath)
	if err != nil {
		h.respondFileError(c, err)
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		h.respondFileError(c, err)
		return
	}

	if info.IsDir() {
		// Relative links in the listing need the canonical slash form
		canonical := dirPath(urlPath)
		if urlPath != canonical {
			location := (&url.URL{Path: canonical}).EscapedPath()
			if c.Request.URL.RawQuery != "" {
				location += "?" + c.Request.URL.RawQuery
			}
			c.Redirect(http.StatusMovedPermanently, location)
			return
		}
		h.listDirectory(c, path, canonical)
		return
	}

	if c.Query("preview") == "1" && files.IsText(path) {
		h.preview(c, path, info)
		return
	}

	h.download(c, path, info)
}

// Put stores the request body at the request path
func (h *Handlers) Put(c *gin.Context) {
	urlPath := c.Request.URL.Path
	if strings.HasSuffix(urlPath, "/") {
		h.respondError(c, http.StatusBadRequest, "Cannot PUT to directory")
		return
	}

	if !hasContentLength(c.Request) {
		h.protocolError(c, http.StatusLengthRequired, "Content-Length required")
		return
	}

	path, err := h.root.Resolve(urlPath)
	if err != nil {
		h.respondFileError(c, err)
		return
	}

	length := c.Request.ContentLength
	if err := h.root.WriteExact(path, c.Request.Body, length); err != nil {
		switch {
		case errors.Is(err, files.ErrIsDirectory):
			h.respondError(c, http.StatusBadRequest, "Cannot PUT to directory")
		case errors.Is(err, files.ErrShortBody):
			h.protocolError(c, http.StatusBadRequest, "Request body shorter than Content-Length")
		default:
			h.respondFileError(c, err)
		}
		return
	}

	h.invalidateDisk()
	log.Info("File uploaded via PUT: %s (%s)", urlPath, files.FormatSize(length))
	c.Header("Location", c.Request.URL.EscapedPath())
	c.String(http.StatusCreated, "Created %s (%d bytes)\n", urlPath, length)
}

// Post stores a multipart upload in the directory named by the request path
func (h *Handlers) Post(c *gin.Context) {
	dir, err := h.root.Resolve(c.Request.URL.Path)
	if err != nil {
		h.respondFileError(c, err)
		return
	}

	info, err := os.Stat(dir)
	if err != nil {
		h.respondFileError(c, err)
		return
	}
	if !info.IsDir() {
		h.respondError(c, http.StatusBadRequest, "Upload target is not a directory")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		log.Debug("No file in upload: %v", err)
		h.protocolError(c, http.StatusBadRequest, "No file uploaded")
		return
	}

	src, err := header.Open()
	if err != nil {
		h.respondFileError(c, err)
		return
	}
	defer src.Close()

	res, err := h.root.SaveUpload(dir, header.Filename, src)
	if err != nil {
		switch {
		case errors.Is(err, files.ErrInvalidName):
			h.respondError(c, http.StatusBadRequest, "Invalid file name")
		case errors.Is(err, files.ErrIsDirectory):
			h.respondError(c, http.StatusBadRequest, "A directory with that name exists")
		default:
			h.respondFileError(c, err)
		}
		return
	}

	h.invalidateDisk()
	status := "uploaded"
	if res.Replaced {
		status = "replaced"
	}
	log.Info("File %s via POST: %s (%s)", status, res.Name, files.FormatSize(res.Size))

	c.HTML(http.StatusOK, "upload.html", uploadPage{
		Status: status,
		Name:   res.Name,
		Size:   files.FormatSize(res.Size),
	})
}

// Delete removes a file, or a directory and everything under it
func (h *Handlers) Delete(c *gin.Context) {
	urlPath := c.Request.URL.Path
	path, err := h.root.Resolve(urlPath)
	if err != nil {
		h.respondFileError(c, err)
		return
	}

	if err := h.root.Remove(path); err != nil {
		if errors.Is(err, files.ErrIsRoot) {
			h.respondError(c, http.StatusForbidden, "Cannot delete the served directory")
			return
		}
		h.respondFileError(c, err)
		return
	}

	h.invalidateDisk()
	log.Info("Deleted %s", urlPath)
	c.Status(http.StatusNoContent)
}

// Close releases the handler caches
func (h *Handlers) Close() {
	log.Debug("Releasing %d cached preview(s)", h.previews.Len())
	h.previews.Close()
	h.disk.Close()
}

// invalidateDisk drops the cached free-space figure after a write or delete
func (h *Handlers) invalidateDisk() {
	h.disk.Delete(h.root.Dir())
}

func (h *Handlers) listDirectory(c *gin.Context, dir, urlPath string) {
	entries, truncated, err := h.root.List(dir)
	if err != nil {
		log.Debug("Listing %s failed: %v", dir, err)
		h.respondError(c, http.StatusNotFound, "No permission to list directory")
		return
	}

	page := newListingPage(urlPath, entries, truncated)
	if usage, err := h.disk.GetOrSet(h.root.Dir(), func() (*system.DiskUsage, error) {
		return system.GetDiskUsage(c.Request.Context(), h.root.Dir())
	}); err == nil {
		page.DiskFree = fmt.Sprintf("%s free of %s", files.FormatSize(int64(usage.Free)), files.FormatSize(int64(usage.Total)))
	}

	c.HTML(http.StatusOK, "listing.html", page)
}

func (h *Handlers) preview(c *gin.Context, path string, info os.FileInfo) {
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	page, err := h.previews.GetOrSet(key, func() (*previewPage, error) {
		return h.highlight.Render(path, info)
	})
	if err != nil {
		h.respondFileError(c, err)
		return
	}
	c.HTML(http.StatusOK, "preview.html", page)
}

func (h *Handlers) download(c *gin.Context, path string, info os.FileInfo) {
	f, err := os.Open(path)
	if err != nil {
		h.respondFileError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", files.ContentType(path))
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

// respondError writes an error in the format the client prefers
func (h *Handlers) respondError(c *gin.Context, status int, msg string) {
	switch c.NegotiateFormat(gin.MIMEPlain, gin.MIMEHTML, gin.MIMEJSON) {
	case gin.MIMEHTML:
		c.HTML(status, "error.html", errorPage{
			Status:     status,
			StatusText: http.StatusText(status),
			Message:    msg,
		})
	case gin.MIMEJSON:
		c.JSON(status, gin.H{"error": msg})
	default:
		c.String(status, "%d %s: %s\n", status, http.StatusText(status), msg)
	}
	c.Abort()
}

// protocolError answers a malformed request and closes the connection
func (h *Handlers) protocolError(c *gin.Context, status int, msg string) {
	c.Header("Connection", "close")
	h.respondError(c, status, msg)
}

// respondFileError maps a filesystem error onto a status code
func (h *Handlers) respondFileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, files.ErrOutsideRoot):
		h.respondError(c, http.StatusForbidden, "Path outside served directory")
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		h.respondError(c, http.StatusNotFound, "File not found")
	case errors.Is(err, fs.ErrPermission):
		h.respondError(c, http.StatusForbidden, "Permission denied")
	default:
		log.Warn("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		h.respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// dirPath returns the cleaned form of a directory URL path, always rooted
// and ending in a slash
func dirPath(urlPath string) string {
	clean := pathpkg.Clean("/" + urlPath)
	if clean == "/" {
		return clean
	}
	return clean + "/"
}

// hasContentLength reports whether the client sent an explicit length.
// Chunked bodies report -1.
func hasContentLength(r *http.Request) bool {
	if r.ContentLength > 0 {
		return true
	}
	return r.ContentLength == 0 && r.Header.Get("Content-Length") != ""
}
