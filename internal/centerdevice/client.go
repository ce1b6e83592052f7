package centerdevice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "centerdevice-go/0.1"

// Endpoints holds the two hosts the API is split across. Production values
// come from EndpointsFor; tests point both at an httptest server.
type Endpoints struct {
	Auth string // e.g. "https://auth.centerdevice.de"
	API  string // e.g. "https://api.centerdevice.de"
}

// EndpointsFor derives the auth and API hosts from a base domain such as
// "centerdevice.de".
func EndpointsFor(baseDomain string) Endpoints {
	return Endpoints{
		Auth: "https://auth." + baseDomain,
		API:  "https://api." + baseDomain,
	}
}

// Credentials is the OAuth2 client identity. It is immutable once built.
type Credentials struct {
	clientID     string
	clientSecret string
}

// NewCredentials builds Credentials from a client id and secret.
func NewCredentials(clientID, clientSecret string) Credentials {
	return Credentials{clientID: clientID, clientSecret: clientSecret}
}

// ClientID returns the OAuth2 client id.
func (c Credentials) ClientID() string {
	return c.clientID
}

// ClientSecret returns the OAuth2 client secret. Never log it.
func (c Credentials) ClientSecret() string {
	return c.clientSecret
}

// String masks the secret so Credentials can be printed safely.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{client_id: %s, client_secret: ***}", c.clientID)
}

// Options configures the HTTP side of a session. Zero values fall back to
// http.DefaultClient, slog.Default() and DefaultUserAgent.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// client is the state shared by both session variants: endpoints, client
// identity, and one connection-pooling HTTP client reused for every call.
type client struct {
	endpoints  Endpoints
	creds      Credentials
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

func newClient(endpoints Endpoints, creds Credentials, opts Options) client {
	c := client{
		endpoints:  endpoints,
		creds:      creds,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		userAgent:  opts.UserAgent,
	}

	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}

	return c
}

func (c *client) apiURL(path string) string {
	return strings.TrimSuffix(c.endpoints.API, "/") + path
}

func (c *client) authURL(path string) string {
	return strings.TrimSuffix(c.endpoints.Auth, "/") + path
}

// request describes one authenticated call. contentLength is only used when
// body is a stream whose size net/http cannot infer (-1 or 0 = unknown).
type request struct {
	method        string
	url           string
	body          io.Reader
	contentLength int64
	header        http.Header
	expected      int
}

// do sends an authenticated request and classifies the response. On success
// the caller owns resp.Body. On failure the body is already closed.
// There is no retry. Re-issuing after ErrInvalidToken or ErrTooManyRequests
// is the caller's decision.
func (s *Session) do(ctx context.Context, r request) (*http.Response, error) {
	body := r.body
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, newError(ErrPrepareRequest, fmt.Sprintf("creating %s request", r.method), err)
	}

	if r.contentLength > 0 {
		req.ContentLength = r.contentLength
	}

	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	req.Header.Set("Authorization", "Bearer "+s.AccessToken())
	req.Header.Set("User-Agent", s.c.userAgent)

	resp, err := s.c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("centerdevice: request canceled: %w", ctx.Err())
		}

		s.c.logger.Warn("request failed",
			slog.String("method", r.method),
			slog.String("url", r.url),
			slog.String("error", err.Error()),
		)

		return nil, newError(ErrTransport, fmt.Sprintf("%s %s", r.method, r.url), err)
	}

	if checkErr := CheckResponse(resp, r.expected); checkErr != nil {
		resp.Body.Close()

		var apiErr *APIError
		if errors.As(checkErr, &apiErr) {
			s.c.logger.Debug("request returned unexpected status",
				slog.String("method", r.method),
				slog.String("url", r.url),
				slog.Int("status", apiErr.StatusCode),
				slog.Int("expected", r.expected),
			)
		}

		return nil, checkErr
	}

	s.c.logger.Debug("request succeeded",
		slog.String("method", r.method),
		slog.String("url", r.url),
		slog.Int("status", resp.StatusCode),
	)

	return resp, nil
}

// jsonHeader is the header set for JSON request bodies.
func jsonHeader() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")

	return h
}
