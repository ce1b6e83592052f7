package centerdevice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// CollectionsQuery filters a collections lookup. Zero value lists the
// caller's own collections.
type CollectionsQuery struct {
	IncludePublic bool
	Name          string
	IDs           []string
}

func (q CollectionsQuery) values() url.Values {
	v := url.Values{}
	if q.IncludePublic {
		v.Set("include-public", "true")
	}

	if q.Name != "" {
		v.Set("name", q.Name)
	}

	if len(q.IDs) > 0 {
		v.Set("ids", strings.Join(q.IDs, ","))
	}

	return v
}

// Collection is a named group of documents.
type Collection struct {
	ID     string `json:"id"`
	Public bool   `json:"public"`
	Name   string `json:"name"`
}

type collectionsResult struct {
	Collections []Collection `json:"collections"`
}

// SearchCollections lists collections matching q.
func (s *Session) SearchCollections(ctx context.Context, q CollectionsQuery) ([]Collection, error) {
	u := s.c.apiURL("/v2/collections")
	if v := q.values(); len(v) > 0 {
		u += "?" + v.Encode()
	}

	resp, err := s.do(ctx, request{
		method:   http.MethodGet,
		url:      u,
		header:   jsonHeader(),
		expected: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result collectionsResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, newError(ErrResponse, "decoding collections", err)
	}

	return result.Collections, nil
}
