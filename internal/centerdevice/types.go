package centerdevice

import (
	"encoding/json"
	"fmt"
	"mime"
	"time"
)

// Document is one search hit. The API adds fields over time; unknown ones
// are ignored on decode.
type Document struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	Title        string     `json:"title,omitempty"`
	Author       string     `json:"author,omitempty"`
	Size         int64      `json:"size"`
	MediaType    MediaType  `json:"mimetype"`
	Version      int        `json:"version"`
	Owner        string     `json:"owner,omitempty"`
	UploadDate   time.Time  `json:"upload-date"`
	VersionDate  time.Time  `json:"version-date"`
	DocumentDate *time.Time `json:"document-date,omitempty"`
	Pages        *int       `json:"pages,omitempty"`
	Score        *float64   `json:"score,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Collections  []string   `json:"collections,omitempty"`
}

// MediaType is a MIME type that is known to parse, e.g. "application/pdf".
type MediaType struct {
	Type   string
	Params map[string]string
}

// ParseMediaType parses s with mime.ParseMediaType.
func ParseMediaType(s string) (MediaType, error) {
	mediaType, params, err := mime.ParseMediaType(s)
	if err != nil {
		return MediaType{}, fmt.Errorf("centerdevice: parsing media type %q: %w", s, err)
	}

	return MediaType{Type: mediaType, Params: params}, nil
}

func (m MediaType) String() string {
	if m.Type == "" {
		return ""
	}

	return mime.FormatMediaType(m.Type, m.Params)
}

// MarshalJSON encodes the media type as its string form.
func (m MediaType) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON rejects strings that are not valid media types. An empty
// string decodes to the zero value.
func (m *MediaType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("centerdevice: media type must be a string: %w", err)
	}

	if s == "" {
		*m = MediaType{}

		return nil
	}

	parsed, err := ParseMediaType(s)
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}
