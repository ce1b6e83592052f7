package centerdevice

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveDocument answers GET /v2/document/<id> with the given headers and body.
func serveDocument(t *testing.T, id string, header map[string]string, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/document/"+id, r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		for k, v := range header {
			w.Header().Set(k, v)
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), partialSuffix), "leftover %s", e.Name())
	}
}

func TestDownloadDocument_Success(t *testing.T) {
	body := strings.Repeat("x", 42)
	srv := serveDocument(t, "doc-1", map[string]string{
		"Content-Length":      "42",
		"Content-Disposition": `attachment; filename="doc.pdf"`,
	}, body)

	dir := t.TempDir()

	var calls int
	var lastDone, lastTotal int64

	n, err := newTestSession(t, srv.URL).DownloadDocument(context.Background(), Download{
		DocumentID: "doc-1",
		Dir:        dir,
		Progress: func(done, total int64) {
			calls++
			lastDone, lastTotal = done, total
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	data, err := os.ReadFile(filepath.Join(dir, "doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
	assertNoPartials(t, dir)

	assert.Positive(t, calls)
	assert.Equal(t, int64(42), lastDone)
	assert.Equal(t, int64(42), lastTotal)
}

func TestDownloadDocument_ShortBody(t *testing.T) {
	srv := serveDocument(t, "doc-1", map[string]string{
		"Content-Length":      "42",
		"Content-Disposition": `attachment; filename="doc.pdf"`,
	}, strings.Repeat("x", 41))

	dir := t.TempDir()

	n, err := newTestSession(t, srv.URL).DownloadDocument(context.Background(), Download{DocumentID: "doc-1", Dir: dir})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	var mismatch *LengthMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(42), mismatch.Expected)
	assert.Equal(t, int64(41), mismatch.Written)
	assert.Equal(t, int64(41), n)

	assert.NoFileExists(t, filepath.Join(dir, "doc.pdf"))
	assertNoPartials(t, dir)
}

func TestWriteVerified_CountMismatch(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.bin")

	_, err := writeVerified(target, strings.NewReader("12345"), 10, nil)
	require.Error(t, err)

	var mismatch *LengthMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(10), mismatch.Expected)
	assert.Equal(t, int64(5), mismatch.Written)

	assert.NoFileExists(t, target)
	assertNoPartials(t, dir)
}

func TestDownloadDocument_FilenameOverride(t *testing.T) {
	srv := serveDocument(t, "doc-1", map[string]string{
		"Content-Length":      "3",
		"Content-Disposition": `attachment; filename="server.pdf"`,
	}, "abc")

	dir := t.TempDir()

	_, err := newTestSession(t, srv.URL).DownloadDocument(context.Background(), Download{
		DocumentID: "doc-1", Dir: dir, Filename: "mine.pdf",
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "mine.pdf"))
	assert.NoFileExists(t, filepath.Join(dir, "server.pdf"))
}

func TestDownloadDocument_ExtendedFilename(t *testing.T) {
	srv := serveDocument(t, "doc-1", map[string]string{
		"Content-Length":      "3",
		"Content-Disposition": `attachment; filename*=UTF-8''Gr%C3%BC%C3%9Fe.txt`,
	}, "abc")

	dir := t.TempDir()

	_, err := newTestSession(t, srv.URL).DownloadDocument(context.Background(), Download{DocumentID: "doc-1", Dir: dir})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "Grüße.txt"))
}

func TestDownloadDocument_NormalizesToNFC(t *testing.T) {
	// "u" + combining diaeresis, percent-encoded.
	srv := serveDocument(t, "doc-1", map[string]string{
		"Content-Length":      "3",
		"Content-Disposition": `attachment; filename*=UTF-8''mu%CC%88de.txt`,
	}, "abc")

	dir := t.TempDir()

	_, err := newTestSession(t, srv.URL).DownloadDocument(context.Background(), Download{DocumentID: "doc-1", Dir: dir})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "müde.txt"))
}

func TestDownloadDocument_FilenameErrors(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
	}{
		{"missing header", ""},
		{"unparsable header", `attachment; filename="unterminated`},
		{"no filename parameter", "attachment"},
		{"dot dot", `attachment; filename=".."`},
		{"path traversal", `attachment; filename="../../etc/passwd"`},
		{"empty", `attachment; filename=""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := map[string]string{"Content-Length": "3"}
			if tt.disposition != "" {
				header["Content-Disposition"] = tt.disposition
			}

			srv := serveDocument(t, "doc-1", header, "abc")
			dir := t.TempDir()

			_, err := newTestSession(t, srv.URL).DownloadDocument(context.Background(), Download{DocumentID: "doc-1", Dir: dir})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFilename)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestDownloadDocument_MissingContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="doc.pdf"`)
		w.WriteHeader(http.StatusOK)
		// Flushing before the body forces chunked encoding.
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("abc"))
	}))
	defer srv.Close()

	_, err := newTestSession(t, srv.URL).DownloadDocument(context.Background(), Download{DocumentID: "doc-1", Dir: t.TempDir()})
	assert.ErrorIs(t, err, ErrContentLength)
}

func TestDownloadDocument_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such document"))
	}))
	defer srv.Close()

	_, err := newTestSession(t, srv.URL).DownloadDocument(context.Background(), Download{DocumentID: "doc-1", Dir: t.TempDir()})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "no such document", apiErr.Body)
}

func TestDownloadDocument_MissingDirectory(t *testing.T) {
	srv := serveDocument(t, "doc-1", map[string]string{
		"Content-Length":      "3",
		"Content-Disposition": `attachment; filename="doc.pdf"`,
	}, "abc")

	_, err := newTestSession(t, srv.URL).DownloadDocument(context.Background(), Download{
		DocumentID: "doc-1",
		Dir:        filepath.Join(t.TempDir(), "does", "not", "exist"),
	})
	assert.ErrorIs(t, err, ErrFileSystem)
}

func TestDownloadDocument_EmptyID(t *testing.T) {
	_, err := newTestSession(t, "http://127.0.0.1:1").DownloadDocument(context.Background(), Download{Dir: t.TempDir()})
	assert.ErrorIs(t, err, ErrPrepareRequest)
}

func TestDownloadDocument_EscapesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/document/a%2Fb", r.URL.EscapedPath())
		w.Header().Set("Content-Length", strconv.Itoa(1))
		w.Header().Set("Content-Disposition", `attachment; filename="x"`)
		_, _ = io.WriteString(w, "1")
	}))
	defer srv.Close()

	_, err := newTestSession(t, srv.URL).DownloadDocument(context.Background(), Download{DocumentID: "a/b", Dir: t.TempDir()})
	require.NoError(t, err)
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"doc.pdf", "doc.pdf", false},
		{"  spaced.txt ", "spaced.txt", false},
		{"", "", true},
		{".", "", true},
		{"..", "", true},
		{"a/b", "", true},
		{`a\b`, "", true},
		{"nul\x00", "", true},
	}

	for _, tt := range tests {
		got, err := safeFilename(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrFilename, "input %q", tt.in)

			continue
		}

		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestDownloadDocument_ConcurrentSameNameNeverMixes(t *testing.T) {
	bodies := map[string]string{
		"doc-a": strings.Repeat("A", 4096),
		"doc-b": strings.Repeat("B", 2048),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := bodies[strings.TrimPrefix(r.URL.Path, "/v2/document/")]

		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))

		// Write in small chunks so both bodies are in flight together.
		for i := 0; i < len(body); i += 256 {
			_, _ = w.Write([]byte(body[i : i+256]))
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(srv.Close)

	sess := newTestSession(t, srv.URL)
	dir := t.TempDir()

	var wg sync.WaitGroup

	errs := make(map[string]error)

	var mu sync.Mutex

	for id := range bodies {
		wg.Add(1)

		go func() {
			defer wg.Done()

			n, err := sess.DownloadDocument(context.Background(), Download{DocumentID: id, Dir: dir})

			mu.Lock()
			errs[id] = err
			mu.Unlock()

			if err == nil {
				assert.Equal(t, int64(len(bodies[id])), n)
			}
		}()
	}

	wg.Wait()

	for id, err := range errs {
		require.NoError(t, err, id)
	}

	data, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)

	got := string(data)
	assert.True(t, got == bodies["doc-a"] || got == bodies["doc-b"],
		"file holds %d bytes that match neither document", len(got))
	assertNoPartials(t, dir)
}

func TestWriteVerified_UniquePartialFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.bin")

	// A stale partial from an older run must be left alone, not reused.
	stale := target + partialSuffix
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o600))

	n, err := writeVerified(target, strings.NewReader("fresh"), 5, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerms), info.Mode().Perm())

	staleData, err := os.ReadFile(stale)
	require.NoError(t, err)
	assert.Equal(t, "stale", string(staleData))
}

func TestDownloadDocument_ClaimRejects(t *testing.T) {
	srv := serveDocument(t, "doc-1", map[string]string{
		"Content-Length":      "3",
		"Content-Disposition": `attachment; filename="doc.pdf"`,
	}, "abc")

	dir := t.TempDir()
	taken := errors.New("taken")

	var claimed string

	_, err := newTestSession(t, srv.URL).DownloadDocument(context.Background(), Download{
		DocumentID: "doc-1",
		Dir:        dir,
		Claim: func(name string) error {
			claimed = name
			return taken
		},
	})
	require.ErrorIs(t, err, ErrFilename)
	require.ErrorIs(t, err, taken)
	assert.Equal(t, "doc.pdf", claimed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
