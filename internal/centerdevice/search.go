package centerdevice

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// NamedSearch selects one of the server's predefined searches.
type NamedSearch int

const (
	NamedSearchNone NamedSearch = iota
	NamedSearchPublicCollections
)

// Search is a document query. Empty fields are left out of the request.
type Search struct {
	Filenames []string
	Tags      []string
	Fulltext  string
	Named     NamedSearch
}

// SearchResult is the server's answer to a document search.
type SearchResult struct {
	Documents []Document `json:"documents"`
	Hits      int        `json:"hits"`
}

type searchAction struct {
	Action string       `json:"action"`
	Params searchParams `json:"params"`
}

type searchParams struct {
	Query  searchQuery   `json:"query"`
	Filter searchFilter  `json:"filter"`
	Named  []namedSearch `json:"named,omitempty"`
}

type searchQuery struct {
	Text string `json:"text,omitempty"`
}

type searchFilter struct {
	Filenames []string `json:"filenames,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

type namedSearch struct {
	Name   string             `json:"name"`
	Params namedSearchInclude `json:"params"`
}

type namedSearchInclude struct {
	Include bool `json:"include"`
}

func (q Search) action() searchAction {
	a := searchAction{
		Action: "search",
		Params: searchParams{
			Query:  searchQuery{Text: q.Fulltext},
			Filter: searchFilter{Filenames: q.Filenames, Tags: q.Tags},
		},
	}

	if q.Named == NamedSearchPublicCollections {
		a.Params.Named = []namedSearch{{Name: "public-collections", Params: namedSearchInclude{Include: true}}}
	}

	return a
}

// SearchDocuments runs a document search.
func (s *Session) SearchDocuments(ctx context.Context, q Search) (*SearchResult, error) {
	payload, err := json.Marshal(q.action())
	if err != nil {
		return nil, newError(ErrPrepareRequest, "encoding search", err)
	}

	resp, err := s.do(ctx, request{
		method:   http.MethodPost,
		url:      s.c.apiURL("/v2/documents"),
		body:     bytes.NewReader(payload),
		header:   jsonHeader(),
		expected: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, newError(ErrResponse, "decoding search result", err)
	}

	s.c.logger.Debug("search complete",
		slog.Int("hits", result.Hits),
		slog.Int("documents", len(result.Documents)),
	)

	return &result, nil
}
