// Package centerdevice provides an HTTP client for the CenterDevice document
// API: OAuth2 authorization-code login and token refresh, multipart upload,
// streaming download, search, delete, and users/collections lookups. Every
// response passes through CheckResponse, so all operations share one error
// domain.
package centerdevice

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Sentinel errors for failure classification.
// Use errors.Is(err, centerdevice.ErrInvalidToken) to check.
var (
	ErrPrepareRequest  = errors.New("centerdevice: failed to prepare request")
	ErrTransport       = errors.New("centerdevice: HTTP request failed")
	ErrInvalidToken    = errors.New("centerdevice: invalid token")
	ErrTooManyRequests = errors.New("centerdevice: too many requests")
	ErrAPICallFailed   = errors.New("centerdevice: API call failed")
	ErrResponse        = errors.New("centerdevice: failed to process response")
	ErrFileSystem      = errors.New("centerdevice: file system failure")
	ErrContentLength   = errors.New("centerdevice: failed to get content length")
	ErrFilename        = errors.New("centerdevice: failed to get filename")
	ErrLengthMismatch  = errors.New("centerdevice: content length mismatch")
	ErrFailedDocuments = errors.New("centerdevice: failed documents")
	ErrSessionConsumed = errors.New("centerdevice: unauthorized session already consumed")
)

// Error is a local failure (request preparation, transport, response
// decoding, file system) tagged with one of the sentinel kinds. It unwraps to
// both the kind and the underlying cause.
type Error struct {
	Kind   error
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

func newError(kind error, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// APIError is a non-success HTTP response. Err is ErrInvalidToken,
// ErrTooManyRequests or ErrAPICallFailed.
type APIError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration // 429 only; zero when the server sent none
	Err        error
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%v: HTTP %d: %s", e.Err, e.StatusCode, e.Body)
	}

	return fmt.Sprintf("%v: HTTP %d", e.Err, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// FailedDocumentsError reports the documents a delete call could not remove,
// even though the server answered 204.
type FailedDocumentsError struct {
	IDs []string
}

func (e *FailedDocumentsError) Error() string {
	return fmt.Sprintf("%v: ids=%q", ErrFailedDocuments, e.IDs)
}

func (e *FailedDocumentsError) Unwrap() error {
	return ErrFailedDocuments
}

// LengthMismatchError means a download wrote a different number of bytes
// than the response's Content-Length declared.
type LengthMismatchError struct {
	Expected int64
	Written  int64
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("%v: expected %d bytes, wrote %d", ErrLengthMismatch, e.Expected, e.Written)
}

func (e *LengthMismatchError) Unwrap() error {
	return ErrLengthMismatch
}

// CheckResponse classifies resp against the expected success status. It
// returns nil when the status matches and leaves the body untouched for the
// caller to decode. It never closes the body.
func CheckResponse(resp *http.Response, expected int) error {
	if resp.StatusCode == expected {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		drain(resp.Body)

		return &APIError{StatusCode: resp.StatusCode, Err: ErrInvalidToken}

	case http.StatusTooManyRequests:
		drain(resp.Body)

		return &APIError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        ErrTooManyRequests,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(ErrResponse, fmt.Sprintf("reading body of HTTP %d response", resp.StatusCode), err)
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Err:        ErrAPICallFailed,
	}
}

// classifyStatus builds the APIError for a status and body that were already
// read, e.g. by the oauth2 library.
func classifyStatus(code int, body []byte) *APIError {
	switch code {
	case http.StatusUnauthorized:
		return &APIError{StatusCode: code, Err: ErrInvalidToken}
	case http.StatusTooManyRequests:
		return &APIError{StatusCode: code, Err: ErrTooManyRequests}
	default:
		return &APIError{StatusCode: code, Body: string(body), Err: ErrAPICallFailed}
	}
}

// parseRetryAfter reads a Retry-After header given in seconds. HTTP-date
// values and garbage yield zero.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}

	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}

// drain discards the rest of a body so the connection can be reused.
func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, body)
}
