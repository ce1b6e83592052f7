package centerdevice

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ActionsMode controls how empty tag/collection lists appear in upload
// metadata.
type ActionsMode int

const (
	// ActionsAlways emits the actions block with both lists, even when empty.
	ActionsAlways ActionsMode = iota
	// ActionsOmitEmpty drops empty lists, and the whole block when both are empty.
	ActionsOmitEmpty
)

// ParseActionsMode parses the config spelling of an ActionsMode:
// "always" or "omit".
func ParseActionsMode(s string) (ActionsMode, error) {
	switch strings.ToLower(s) {
	case "", "always":
		return ActionsAlways, nil
	case "omit":
		return ActionsOmitEmpty, nil
	default:
		return ActionsAlways, fmt.Errorf("centerdevice: unknown actions mode %q (want \"always\" or \"omit\")", s)
	}
}

func (m ActionsMode) String() string {
	if m == ActionsOmitEmpty {
		return "omit"
	}

	return "always"
}

// Upload describes one file to send. Build it with NewUpload so Size and
// Filename reflect the file on disk; the optional fields may be set after.
type Upload struct {
	Path        string
	MimeType    string
	Filename    string
	Size        int64
	Title       string
	Author      string
	Tags        []string
	Collections []string

	Actions  ActionsMode
	Progress ProgressFunc
}

// NewUpload stats path and fills Size and Filename from it. An empty
// mimeType is detected from the file content. Fails with ErrFileSystem when
// path cannot be stat'ed or is a directory, and with ErrPrepareRequest when
// the MIME type does not parse.
func NewUpload(path, mimeType string) (*Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, newError(ErrFileSystem, fmt.Sprintf("stat %s", path), err)
	}

	if info.IsDir() {
		return nil, newError(ErrFileSystem, fmt.Sprintf("%s is a directory", path), nil)
	}

	if mimeType == "" {
		detected, detectErr := mimetype.DetectFile(path)
		if detectErr != nil {
			return nil, newError(ErrFileSystem, fmt.Sprintf("detecting MIME type of %s", path), detectErr)
		}

		mimeType = detected.String()
	}

	if _, _, err := mime.ParseMediaType(mimeType); err != nil {
		return nil, newError(ErrPrepareRequest, fmt.Sprintf("invalid MIME type %q", mimeType), err)
	}

	return &Upload{
		Path:     path,
		MimeType: mimeType,
		Filename: filepath.Base(path),
		Size:     info.Size(),
	}, nil
}

type uploadMetadata struct {
	Metadata metadataBody `json:"metadata"`
}

type metadataBody struct {
	Document documentMetadata    `json:"document"`
	Actions  map[string][]string `json:"actions,omitempty"`
}

type documentMetadata struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
}

// metadata builds the JSON document for the metadata part.
func (u *Upload) metadata() ([]byte, error) {
	md := uploadMetadata{Metadata: metadataBody{
		Document: documentMetadata{
			Filename: u.Filename,
			Size:     u.Size,
			Title:    u.Title,
			Author:   u.Author,
		},
		Actions: u.actions(),
	}}

	data, err := json.Marshal(md)
	if err != nil {
		return nil, newError(ErrPrepareRequest, "encoding upload metadata", err)
	}

	return data, nil
}

func (u *Upload) actions() map[string][]string {
	if u.Actions == ActionsOmitEmpty {
		actions := make(map[string][]string, 2)
		if len(u.Tags) > 0 {
			actions["add-tag"] = u.Tags
		}

		if len(u.Collections) > 0 {
			actions["add-to-collection"] = u.Collections
		}

		if len(actions) == 0 {
			return nil
		}

		return actions
	}

	// Non-nil slices so empty lists encode as [] rather than null.
	tags := append([]string{}, u.Tags...)
	collections := append([]string{}, u.Collections...)

	return map[string][]string{
		"add-tag":           tags,
		"add-to-collection": collections,
	}
}

// uploadBoundary derives the multipart boundary from the filename. The API's
// multipart parser rejects some characters that random boundaries contain,
// so the boundary is fixed hex. It is 73 bytes long, over the 70 byte cap of
// mime/multipart.Writer, which is why the framing below is written by hand.
func uploadBoundary(filename string) string {
	sum := sha256.Sum256([]byte(filename))

	return "Boundary_" + hex.EncodeToString(sum[:])
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "")

// multipartFraming returns the bytes before and after the file content.
func multipartFraming(boundary string, metadata []byte, filename, mimeType string) (head, tail []byte) {
	var b bytes.Buffer

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Disposition: form-data; name=\"metadata\"\r\n")
	b.WriteString("Content-Type: application/json\r\n\r\n")
	b.Write(metadata)
	fmt.Fprintf(&b, "\r\n--%s\r\n", boundary)
	fmt.Fprintf(&b, "Content-Disposition: form-data; name=\"document\"; filename=\"%s\"\r\n", quoteEscaper.Replace(filename))
	fmt.Fprintf(&b, "Content-Type: %s\r\n\r\n", mimeType)

	return b.Bytes(), []byte("\r\n--" + boundary + "--\r\n")
}

type uploadResponse struct {
	ID string `json:"id"`
}

// UploadDocument sends u as a multipart POST to /v2/documents and returns
// the new document's id. The file is streamed from disk. The request
// Content-Length is computed from u.Size, so a file that changed size since
// NewUpload fails as a transport error.
func (s *Session) UploadDocument(ctx context.Context, u *Upload) (string, error) {
	f, err := os.Open(u.Path)
	if err != nil {
		return "", newError(ErrFileSystem, fmt.Sprintf("opening %s", u.Path), err)
	}
	defer f.Close()

	metadata, err := u.metadata()
	if err != nil {
		return "", err
	}

	boundary := uploadBoundary(u.Filename)
	head, tail := multipartFraming(boundary, metadata, u.Filename, u.MimeType)
	contentLength := int64(len(head)) + u.Size + int64(len(tail))

	var content io.Reader = f
	if u.Progress != nil {
		content = newProgressReader(f, u.Size, u.Progress)
	}

	body := io.MultiReader(bytes.NewReader(head), content, bytes.NewReader(tail))

	header := make(http.Header)
	header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	header.Set("Accept", "application/json; charset=utf-8")

	s.c.logger.Info("uploading document",
		slog.String("filename", u.Filename),
		slog.Int64("size", u.Size),
		slog.String("mime_type", u.MimeType),
	)

	resp, err := s.do(ctx, request{
		method:        http.MethodPost,
		url:           s.c.apiURL("/v2/documents"),
		body:          body,
		contentLength: contentLength,
		header:        header,
		expected:      http.StatusCreated,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var created uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", newError(ErrResponse, "decoding upload response", err)
	}

	if created.ID == "" {
		return "", newError(ErrResponse, "upload response has no document id", nil)
	}

	s.c.logger.Info("uploaded document",
		slog.String("filename", u.Filename),
		slog.String("id", created.ID),
	)

	return created.ID, nil
}
