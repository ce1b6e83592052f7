package centerdevice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

type deleteAction struct {
	Action string       `json:"action"`
	Params deleteParams `json:"params"`
}

type deleteParams struct {
	Documents []string `json:"documents"`
}

type failedDocuments struct {
	FailedDocuments []string `json:"failed-documents"`
}

// DeleteDocuments deletes documents by id. The server answers 204 even when
// some documents could not be deleted; those come back as a
// *FailedDocumentsError.
func (s *Session) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return newError(ErrPrepareRequest, "no document ids to delete", nil)
	}

	payload, err := json.Marshal(deleteAction{Action: "delete", Params: deleteParams{Documents: ids}})
	if err != nil {
		return newError(ErrPrepareRequest, "encoding delete", err)
	}

	resp, err := s.do(ctx, request{
		method:   http.MethodPost,
		url:      s.c.apiURL("/v2/documents"),
		body:     bytes.NewReader(payload),
		header:   jsonHeader(),
		expected: http.StatusNoContent,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(ErrResponse, "reading delete response", err)
	}

	if len(bytes.TrimSpace(body)) > 0 {
		var failed failedDocuments
		if err := json.Unmarshal(body, &failed); err != nil {
			return newError(ErrResponse, "decoding delete response", err)
		}

		// An empty list means every document was deleted.
		if len(failed.FailedDocuments) > 0 {
			s.c.logger.Warn("some documents were not deleted",
				slog.Int("requested", len(ids)),
				slog.Int("failed", len(failed.FailedDocuments)),
			)

			return &FailedDocumentsError{IDs: failed.FailedDocuments}
		}
	}

	s.c.logger.Info("deleted documents", slog.Int("count", len(ids)))

	return nil
}

// FailedIDs returns the ids from a *FailedDocumentsError anywhere in err's
// chain, or nil.
func FailedIDs(err error) []string {
	var fd *FailedDocumentsError
	if errors.As(err, &fd) {
		return fd.IDs
	}

	return nil
}
