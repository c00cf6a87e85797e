package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngenohkevin/hftp/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer creates an unstarted server over a fresh temp directory
func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.LoadWithDefaults()
	cfg.RootDir = t.TempDir()
	cfg.Port = 0

	running := &atomic.Bool{}
	running.Store(true)

	s, err := New(cfg, running)
	require.NoError(t, err)
	t.Cleanup(s.handlers.Close)
	return s
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func writeFile(t *testing.T, s *Server, rel, content string) string {
	t.Helper()
	path := filepath.Join(s.Root().Dir(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if filename != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField(field, content))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestPutThenGet_RoundTrip(t *testing.T) {
	s := newTestServer(t)
	payload := "hello\x00world\nbinary-safe"

	w := do(s, httptest.NewRequest(http.MethodPut, "/a/b.txt", strings.NewReader(payload)))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/a/b.txt", w.Header().Get("Location"))

	w = do(s, httptest.NewRequest(http.MethodGet, "/a/b.txt", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, w.Body.String())
	assert.Equal(t, "23", w.Header().Get("Content-Length"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestPut_RequiresContentLength(t *testing.T) {
	s := newTestServer(t)

	w := do(s, httptest.NewRequest(http.MethodPut, "/missing-length.txt", nil))
	assert.Equal(t, http.StatusLengthRequired, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))

	chunked := httptest.NewRequest(http.MethodPut, "/chunked.txt", strings.NewReader("data"))
	chunked.ContentLength = -1
	w = do(s, chunked)
	assert.Equal(t, http.StatusLengthRequired, w.Code)

	assert.NoFileExists(t, filepath.Join(s.Root().Dir(), "missing-length.txt"))
	assert.NoFileExists(t, filepath.Join(s.Root().Dir(), "chunked.txt"))
}

func TestPut_ExplicitZeroLength(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/empty.txt", nil)
	req.Header.Set("Content-Length", "0")
	w := do(s, req)
	require.Equal(t, http.StatusCreated, w.Code)

	info, err := os.Stat(filepath.Join(s.Root().Dir(), "empty.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestPut_RejectsDirectories(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.Mkdir(filepath.Join(s.Root().Dir(), "docs"), 0o755))

	w := do(s, httptest.NewRequest(http.MethodPut, "/docs", strings.NewReader("x")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, httptest.NewRequest(http.MethodPut, "/docs/", strings.NewReader("x")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPut_ShortBodyLeavesNoFile(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/short.bin", strings.NewReader("abc"))
	req.ContentLength = 10
	w := do(s, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoFileExists(t, filepath.Join(s.Root().Dir(), "short.bin"))
}

func TestContainment_RejectsTraversal(t *testing.T) {
	s := newTestServer(t)
	outside := filepath.Dir(s.Root().Dir())

	for _, target := range []string{
		"/../",
		"/../etc/passwd",
		"/a/../../etc/passwd",
		"/%2e%2e/%2e%2e/etc/passwd",
		"/%2E%2E%2Fsecret",
		"/..%2f..%2fsecret",
	} {
		w := do(s, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusForbidden, w.Code, "GET %s", target)

		w = do(s, httptest.NewRequest(http.MethodDelete, target, nil))
		assert.Equal(t, http.StatusForbidden, w.Code, "DELETE %s", target)
	}

	w := do(s, httptest.NewRequest(http.MethodPut, "/%2e%2e/escaped.txt", strings.NewReader("x")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoFileExists(t, filepath.Join(outside, "escaped.txt"))
}

func TestContainment_SymlinkEscape(t *testing.T) {
	s := newTestServer(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0o644))
	if err := os.Symlink(outside, filepath.Join(s.Root().Dir(), "escape")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	w := do(s, httptest.NewRequest(http.MethodGet, "/escape/secret.txt", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(s, httptest.NewRequest(http.MethodPut, "/escape/new.txt", strings.NewReader("x")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoFileExists(t, filepath.Join(outside, "new.txt"))
}

func TestDispatch_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{http.MethodHead, http.MethodPatch, http.MethodOptions, "PROPFIND"} {
		w := do(s, httptest.NewRequest(method, "/", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.Equal(t, "DELETE, GET, POST, PUT", w.Header().Get("Allow"), method)
		assert.Equal(t, "close", w.Header().Get("Connection"), method)
	}
}

func TestGet_DirectoryRedirect(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root().Dir(), "my docs"), 0o755))

	w := do(s, httptest.NewRequest(http.MethodGet, "/my%20docs?sort=name", nil))
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/my%20docs/?sort=name", w.Header().Get("Location"))
}

func TestGet_ListingOrder(t *testing.T) {
	s := newTestServer(t)
	writeFile(t, s, "b.txt", "b")
	writeFile(t, s, "a.txt", "a")
	require.NoError(t, os.Mkdir(filepath.Join(s.Root().Dir(), "A"), 0o755))

	w := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	dirIdx := strings.Index(body, `href="./A/">A/</a>`)
	aIdx := strings.Index(body, `href="./a.txt">a.txt</a>`)
	bIdx := strings.Index(body, `href="./b.txt">b.txt</a>`)
	require.True(t, dirIdx >= 0 && aIdx >= 0 && bIdx >= 0, body)
	assert.Less(t, dirIdx, aIdx)
	assert.Less(t, aIdx, bIdx)

	assert.NotContains(t, body, "Parent directory")
	assert.Contains(t, body, `href="./a.txt?preview=1">VIEW</a>`)
	assert.Contains(t, body, `name="file"`)
}

func TestGet_ListingNameWithColon(t *testing.T) {
	s := newTestServer(t)
	writeFile(t, s, "log 12:30.txt", "entry")

	w := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.NotContains(t, body, "ZgotmplZ")
	assert.Contains(t, body, `href="./log%2012:30.txt">log 12:30.txt</a>`)
	assert.Contains(t, body, `href="./log%2012:30.txt?preview=1">VIEW</a>`)
	assert.Contains(t, body, `data-href="./log%2012:30.txt"`)

	// The link resolves back to the file
	w = do(s, httptest.NewRequest(http.MethodGet, "/log%2012:30.txt", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "entry", w.Body.String())

	w = do(s, httptest.NewRequest(http.MethodGet, "/log%2012:30.txt?preview=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="./log%2012:30.txt"`)
	assert.NotContains(t, w.Body.String(), "ZgotmplZ")
}

func TestGet_DirectoryNonCanonicalPaths(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root().Dir(), "sub", "inner"), 0o755))

	for target, want := range map[string]string{
		"/sub/../":          "/",
		"//sub//inner":      "/sub/inner/",
		"/sub/./inner/":     "/sub/inner/",
		"/sub/inner/..?x=1": "/sub/?x=1",
	} {
		w := do(s, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusMovedPermanently, w.Code, target)
		assert.Equal(t, want, w.Header().Get("Location"), target)
	}
}

func TestGet_ListingSubdirectory(t *testing.T) {
	s := newTestServer(t)
	writeFile(t, s, "docs/guides/intro.md", "# intro")

	w := do(s, httptest.NewRequest(http.MethodGet, "/docs/guides/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `href="../">`)
	assert.Contains(t, body, "Parent directory")
	assert.Contains(t, body, `<a href="/docs/">docs</a>`)
	assert.Contains(t, body, `<a href="/docs/guides/">guides</a>`)
	assert.Contains(t, body, "intro.md")
}

func TestGet_ListingPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	s := newTestServer(t)
	locked := filepath.Join(s.Root().Dir(), "locked")
	require.NoError(t, os.Mkdir(locked, 0o755))
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	w := do(s, httptest.NewRequest(http.MethodGet, "/locked/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGet_Preview(t *testing.T) {
	s := newTestServer(t)
	writeFile(t, s, "main.go", "package main\n\nfunc main() {}\n")

	w := do(s, httptest.NewRequest(http.MethodGet, "/main.go?preview=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "<title>main.go - Preview</title>")
	assert.Contains(t, body, "4 lines")
	assert.Contains(t, body, "Go")
	assert.Contains(t, body, `class="chroma"`)

	// Without the flag the raw bytes are served
	w = do(s, httptest.NewRequest(http.MethodGet, "/main.go", nil))
	assert.Equal(t, "package main\n\nfunc main() {}\n", w.Body.String())
}

func TestGet_PreviewEscapesContent(t *testing.T) {
	s := newTestServer(t)
	writeFile(t, s, "page.html", "<script>alert(1)</script>")

	w := do(s, httptest.NewRequest(http.MethodGet, "/page.html?preview=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<script>alert(1)</script>")
}

func TestGet_PreviewIgnoredForBinary(t *testing.T) {
	s := newTestServer(t)
	writeFile(t, s, "logo.png", "\x89PNG\r\n\x1a\n")

	w := do(s, httptest.NewRequest(http.MethodGet, "/logo.png?preview=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG\r\n\x1a\n", w.Body.String())
}

func TestGet_NotFound(t *testing.T) {
	s := newTestServer(t)

	w := do(s, httptest.NewRequest(http.MethodGet, "/nope.txt", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	writeFile(t, s, "file.txt", "x")
	w = do(s, httptest.NewRequest(http.MethodGet, "/file.txt/child", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPost_UploadAndReplace(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.Mkdir(filepath.Join(s.Root().Dir(), "inbox"), 0o755))

	body, contentType := multipartBody(t, "file", "report.txt", "first")
	req := httptest.NewRequest(http.MethodPost, "/inbox/", body)
	req.Header.Set("Content-Type", contentType)
	w := do(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "File uploaded successfully!")
	assert.Contains(t, w.Body.String(), "report.txt")

	body, contentType = multipartBody(t, "file", "report.txt", "second version")
	req = httptest.NewRequest(http.MethodPost, "/inbox/", body)
	req.Header.Set("Content-Type", contentType)
	w = do(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "File replaced successfully!")

	data, err := os.ReadFile(filepath.Join(s.Root().Dir(), "inbox", "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second version", string(data))
}

func TestPost_UsesBaseNameOnly(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, "file", "../../outside.txt", "x")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	w := do(s, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.FileExists(t, filepath.Join(s.Root().Dir(), "outside.txt"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(s.Root().Dir()), "outside.txt"))
}

func TestPost_NoFileIsClientError(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, "comment", "", "no file here")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	w := do(s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain body"))
	req.Header.Set("Content-Type", "text/plain")
	w = do(s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	entries, err := os.ReadDir(s.Root().Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPost_TargetMustBeDirectory(t *testing.T) {
	s := newTestServer(t)
	writeFile(t, s, "file.txt", "x")

	body, contentType := multipartBody(t, "file", "a.txt", "x")
	req := httptest.NewRequest(http.MethodPost, "/file.txt", body)
	req.Header.Set("Content-Type", contentType)
	w := do(s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelete_File(t *testing.T) {
	s := newTestServer(t)
	path := writeFile(t, s, "old.log", "x")

	w := do(s, httptest.NewRequest(http.MethodDelete, "/old.log", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.NoFileExists(t, path)
}

func TestDelete_EmptyDirectoryThenGet(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.Mkdir(filepath.Join(s.Root().Dir(), "empty"), 0o755))

	w := do(s, httptest.NewRequest(http.MethodDelete, "/empty", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(s, httptest.NewRequest(http.MethodGet, "/empty/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelete_DirectoryTree(t *testing.T) {
	s := newTestServer(t)
	writeFile(t, s, "tree/one.txt", "1")
	writeFile(t, s, "tree/sub/two.txt", "2")
	writeFile(t, s, "tree/sub/deeper/three.txt", "3")
	writeFile(t, s, "keep.txt", "k")

	w := do(s, httptest.NewRequest(http.MethodDelete, "/tree/", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	_, err := os.Stat(filepath.Join(s.Root().Dir(), "tree"))
	assert.True(t, os.IsNotExist(err))

	var remaining []string
	require.NoError(t, filepath.Walk(s.Root().Dir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			remaining = append(remaining, filepath.Base(path))
		}
		return nil
	}))
	assert.Equal(t, []string{"keep.txt"}, remaining)
}

func TestDelete_Errors(t *testing.T) {
	s := newTestServer(t)

	w := do(s, httptest.NewRequest(http.MethodDelete, "/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(s, httptest.NewRequest(http.MethodDelete, "/", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.DirExists(t, s.Root().Dir())
}

func TestDelete_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	s := newTestServer(t)
	writeFile(t, s, "ro/file.txt", "x")
	ro := filepath.Join(s.Root().Dir(), "ro")
	require.NoError(t, os.Chmod(ro, 0o555))
	t.Cleanup(func() { os.Chmod(ro, 0o755) })

	w := do(s, httptest.NewRequest(http.MethodDelete, "/ro/file.txt", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRespondError_Negotiation(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("Accept", "application/json")
	w := do(s, req)
	require.Equal(t, http.StatusNotFound, w.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "File not found", payload["error"])

	req = httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	w = do(s, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>404 Not Found</h1>")

	w = do(s, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, "404 Not Found: File not found\n", w.Body.String())
}

func TestWrites_InvalidateDiskUsage(t *testing.T) {
	s := newTestServer(t)

	listRoot := func() {
		w := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	listRoot()
	if _, ok := s.handlers.disk.Get(s.Root().Dir()); !ok {
		t.Skip("disk usage not available")
	}

	w := do(s, httptest.NewRequest(http.MethodPut, "/new.txt", strings.NewReader("data")))
	require.Equal(t, http.StatusCreated, w.Code)
	_, ok := s.handlers.disk.Get(s.Root().Dir())
	assert.False(t, ok, "PUT keeps stale disk usage")

	listRoot()
	w = do(s, httptest.NewRequest(http.MethodDelete, "/new.txt", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	_, ok = s.handlers.disk.Get(s.Root().Dir())
	assert.False(t, ok, "DELETE keeps stale disk usage")
}
