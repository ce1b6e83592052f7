package centerdevice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// partialSuffix marks a download that has not been verified yet.
const partialSuffix = ".partial"

// filePerms is the mode of a finished download. CreateTemp starts at 0600.
const filePerms = 0o644

// Download describes one document to fetch into Dir. Filename overrides the
// name the server suggests in Content-Disposition.
//
// Claim, when set, is called with the final file name before anything is
// written. Returning an error skips the download. Callers fetching several
// documents into one directory use it to catch two documents with the same
// name.
type Download struct {
	DocumentID string
	Dir        string
	Filename   string
	Progress   ProgressFunc
	Claim      func(name string) error
}

// DownloadDocument streams a document to d.Dir and returns the number of
// bytes written. The body goes to a uniquely named hidden partial file
// first, which is fsynced and renamed into place only after the byte count
// matches Content-Length. On any failure the partial file is removed.
func (s *Session) DownloadDocument(ctx context.Context, d Download) (int64, error) {
	if d.DocumentID == "" {
		return 0, newError(ErrPrepareRequest, "empty document id", nil)
	}

	// Ask for the raw bytes so net/http does not decompress the body and
	// drop Content-Length.
	header := make(http.Header)
	header.Set("Accept-Encoding", "identity")

	resp, err := s.do(ctx, request{
		method:   http.MethodGet,
		url:      s.c.apiURL("/v2/document/" + url.PathEscape(d.DocumentID)),
		header:   header,
		expected: http.StatusOK,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	expected := resp.ContentLength
	if expected < 0 {
		return 0, newError(ErrContentLength, "response has no Content-Length", nil)
	}

	name := d.Filename
	if name == "" {
		name, err = filenameFromDisposition(resp.Header.Get("Content-Disposition"))
		if err != nil {
			return 0, err
		}
	}

	name, err = safeFilename(name)
	if err != nil {
		return 0, err
	}

	if d.Claim != nil {
		if claimErr := d.Claim(name); claimErr != nil {
			return 0, newError(ErrFilename, fmt.Sprintf("claiming %q", name), claimErr)
		}
	}

	target := filepath.Join(d.Dir, name)

	s.c.logger.Info("downloading document",
		slog.String("id", d.DocumentID),
		slog.String("path", target),
		slog.Int64("size", expected),
	)

	written, err := writeVerified(target, resp.Body, expected, d.Progress)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return written, fmt.Errorf("centerdevice: download of %s canceled: %w", d.DocumentID, ctxErr)
		}

		return written, err
	}

	s.c.logger.Info("downloaded document",
		slog.String("id", d.DocumentID),
		slog.String("path", target),
		slog.Int64("bytes", written),
	)

	return written, nil
}

// writeVerified copies body into a fresh ".<name>.*.partial" file next to
// target, checks the count against expected, then fsyncs and renames. Each
// call owns its partial file, so concurrent downloads of the same name never
// share one. The partial file never survives a failure.
func writeVerified(target string, body io.Reader, expected int64, progress ProgressFunc) (written int64, err error) {
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*"+partialSuffix)
	if err != nil {
		return 0, newError(ErrFileSystem, fmt.Sprintf("creating partial file for %s", target), err)
	}

	partial := f.Name()

	closed := false

	defer func() {
		if err != nil {
			if !closed {
				f.Close()
			}

			os.Remove(partial)
		}
	}()

	w := newProgressWriter(f, expected, progress)

	if _, copyErr := io.Copy(w, body); copyErr != nil {
		switch {
		case w.err != nil:
			return w.Written(), newError(ErrFileSystem, fmt.Sprintf("writing %s", partial), copyErr)
		case errors.Is(copyErr, io.ErrUnexpectedEOF):
			// The connection closed before Content-Length bytes arrived.
			return w.Written(), &LengthMismatchError{Expected: expected, Written: w.Written()}
		default:
			return w.Written(), newError(ErrResponse, "reading download body", copyErr)
		}
	}

	if w.Written() != expected {
		return w.Written(), &LengthMismatchError{Expected: expected, Written: w.Written()}
	}

	if err := f.Sync(); err != nil {
		return w.Written(), newError(ErrFileSystem, fmt.Sprintf("syncing %s", partial), err)
	}

	if err := f.Chmod(filePerms); err != nil {
		return w.Written(), newError(ErrFileSystem, fmt.Sprintf("setting mode of %s", partial), err)
	}

	closed = true

	if err := f.Close(); err != nil {
		return w.Written(), newError(ErrFileSystem, fmt.Sprintf("closing %s", partial), err)
	}

	if err := os.Rename(partial, target); err != nil {
		return w.Written(), newError(ErrFileSystem, fmt.Sprintf("renaming %s", partial), err)
	}

	return w.Written(), nil
}

// filenameFromDisposition extracts the filename parameter. RFC 2231
// "filename*" values are decoded by mime.ParseMediaType.
func filenameFromDisposition(disposition string) (string, error) {
	if disposition == "" {
		return "", newError(ErrFilename, "response has no Content-Disposition", nil)
	}

	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return "", newError(ErrFilename, fmt.Sprintf("parsing Content-Disposition %q", disposition), err)
	}

	name, ok := params["filename"]
	if !ok {
		return "", newError(ErrFilename, fmt.Sprintf("no filename in Content-Disposition %q", disposition), nil)
	}

	return name, nil
}

// safeFilename normalizes name to NFC and rejects anything that is not a
// plain file name in the destination directory.
func safeFilename(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))

	switch {
	case name == "", name == ".", name == "..":
		return "", newError(ErrFilename, fmt.Sprintf("unusable filename %q", name), nil)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return "", newError(ErrFilename, fmt.Sprintf("filename %q contains a path separator", name), nil)
	}

	return name, nil
}
