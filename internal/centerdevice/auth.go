package centerdevice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Token is an access/refresh token pair. ExpiresIn is informational only:
// nothing in this package checks it. Callers refresh after ErrInvalidToken.
type Token struct {
	TokenType    string `json:"token_type,omitempty"`
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in,omitempty"` // seconds; 0 when the server omitted it
	RefreshToken string `json:"refresh_token"`
}

// NewToken builds a Token from a known access/refresh pair, e.g. one read
// from the environment.
func NewToken(accessToken, refreshToken string) Token {
	return Token{AccessToken: accessToken, RefreshToken: refreshToken}
}

// AuthorizationCode is the single-use code returned to the redirect URI.
type AuthorizationCode string

// CodeProvider obtains an authorization code for the given authorization
// URL, typically by sending a human through a browser. It blocks until the
// code is available or ctx ends.
type CodeProvider interface {
	Code(ctx context.Context, authURL *url.URL) (AuthorizationCode, error)
}

// CodeProviderFunc adapts a function to CodeProvider.
type CodeProviderFunc func(ctx context.Context, authURL *url.URL) (AuthorizationCode, error)

// Code calls f.
func (f CodeProviderFunc) Code(ctx context.Context, authURL *url.URL) (AuthorizationCode, error) {
	return f(ctx, authURL)
}

// UnauthorizedSession holds credentials only. Its single use is Authorize,
// which turns it into a Session. After a successful Authorize the handle is
// spent and every further call fails with ErrSessionConsumed.
type UnauthorizedSession struct {
	c client

	mu       sync.Mutex
	consumed bool
}

// NewUnauthorized creates a session that can run the authorization-code flow.
func NewUnauthorized(endpoints Endpoints, creds Credentials, opts Options) *UnauthorizedSession {
	return &UnauthorizedSession{c: newClient(endpoints, creds, opts)}
}

// Session is an authorized handle. All protected operations hang off it.
// It is safe to share between goroutines: token reads take a read lock and
// Refresh swaps the whole token under the write lock.
type Session struct {
	c client

	mu    sync.RWMutex
	token Token

	refreshMu     sync.Mutex // serializes Refresh calls
	onTokenChange func(Token)
}

// NewSession creates an authorized session from a token obtained earlier
// (token file, environment).
func NewSession(endpoints Endpoints, creds Credentials, tok Token, opts Options) *Session {
	return &Session{c: newClient(endpoints, creds, opts), token: tok}
}

// AuthCodeURL builds the authorization URL the user must visit:
// <auth>/authorize?client_id=…&redirect_uri=…&response_type=code.
func (u *UnauthorizedSession) AuthCodeURL(redirectURI string) (*url.URL, error) {
	if _, err := url.ParseRequestURI(redirectURI); err != nil {
		return nil, newError(ErrPrepareRequest, fmt.Sprintf("parsing redirect URI %q", redirectURI), err)
	}

	authURL, err := url.Parse(u.c.authURL("/authorize"))
	if err != nil {
		return nil, newError(ErrPrepareRequest, "parsing authorization endpoint", err)
	}

	q := authURL.Query()
	q.Set("client_id", u.c.creds.clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	authURL.RawQuery = q.Encode()

	return authURL, nil
}

// Authorize runs the authorization-code flow in two round trips:
//  1. Builds the authorization URL and blocks on provider for the code
//  2. Exchanges the code at <auth>/token (HTTP Basic client auth)
//
// No token is kept unless the whole exchange succeeds. On success the
// returned Session owns the credentials and HTTP client, and u is consumed.
// A failed attempt leaves u usable for another try.
func (u *UnauthorizedSession) Authorize(
	ctx context.Context, redirectURI string, provider CodeProvider,
) (*Session, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.consumed {
		return nil, ErrSessionConsumed
	}

	authURL, err := u.AuthCodeURL(redirectURI)
	if err != nil {
		return nil, err
	}

	u.c.logger.Info("starting authorization code flow",
		slog.String("client_id", u.c.creds.clientID),
		slog.String("redirect_uri", redirectURI),
	)

	code, err := provider.Code(ctx, authURL)
	if err != nil {
		return nil, fmt.Errorf("centerdevice: obtaining authorization code: %w", err)
	}

	if code == "" {
		return nil, newError(ErrPrepareRequest, "code provider returned an empty authorization code", nil)
	}

	u.c.logger.Info("received authorization code, exchanging for token")

	cfg := u.c.oauthConfig(redirectURI)

	tok, err := cfg.Exchange(u.c.oauthContext(ctx), string(code))
	if err != nil {
		return nil, u.c.oauthError("exchanging authorization code", err)
	}

	token := tokenFromOAuth2(tok)

	u.c.logger.Info("token exchange successful",
		slog.String("token_type", token.TokenType),
		slog.Int("expires_in", token.ExpiresIn),
	)

	u.consumed = true

	return &Session{c: u.c, token: token}, nil
}

// Token returns a copy of the current token.
func (s *Session) Token() Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// AccessToken returns the current access token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token.AccessToken
}

// OnTokenChange registers fn to run after every successful Refresh, with
// the new token. Used to persist rotated tokens.
func (s *Session) OnTokenChange(fn func(Token)) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.onTokenChange = fn
}

// Refresh trades the current refresh token for a new token pair at
// <auth>/token and swaps it in whole. When the server does not rotate the
// refresh token, the previous one is kept. Concurrent Refresh calls are
// serialized; there is no automatic retry.
func (s *Session) Refresh(ctx context.Context) (Token, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	current := s.Token()
	if current.RefreshToken == "" {
		return Token{}, newError(ErrPrepareRequest, "session has no refresh token", nil)
	}

	s.c.logger.Info("refreshing access token")

	cfg := s.c.oauthConfig("")
	src := cfg.TokenSource(s.c.oauthContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		return Token{}, s.c.oauthError("refreshing access token", err)
	}

	next := tokenFromOAuth2(tok)
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}

	s.mu.Lock()
	s.token = next
	s.mu.Unlock()

	s.c.logger.Info("access token refreshed",
		slog.Int("expires_in", next.ExpiresIn),
		slog.Bool("refresh_token_rotated", next.RefreshToken != current.RefreshToken),
	)

	if s.onTokenChange != nil {
		s.onTokenChange(next)
	}

	return next, nil
}

// oauthConfig builds the oauth2 config for the token endpoint. The client
// id and secret travel as HTTP Basic credentials, never in the form body.
// oauth2 form-encodes them for the header; basicAuthTransport replaces that
// header with the raw pair.
func (c *client) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.creds.clientID,
		ClientSecret: c.creds.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.authURL("/authorize"),
			TokenURL:  c.authURL("/token"),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// oauthContext makes the oauth2 library use the session's HTTP client, with
// the raw client credentials as HTTP Basic auth.
func (c *client) oauthContext(ctx context.Context) context.Context {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	tokenClient := *c.httpClient
	tokenClient.Transport = &basicAuthTransport{
		base:         base,
		clientID:     c.creds.clientID,
		clientSecret: c.creds.clientSecret,
	}

	return context.WithValue(ctx, oauth2.HTTPClient, &tokenClient)
}

// basicAuthTransport sets the Authorization header to the unencoded client
// id and secret, so characters such as "+", "/", ":" or "%" reach the token
// endpoint unchanged.
type basicAuthTransport struct {
	base         http.RoundTripper
	clientID     string
	clientSecret string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.clientID, t.clientSecret)

	return t.base.RoundTrip(r)
}

// oauthError maps oauth2 library failures onto the package's error domain:
// a non-2xx token response goes through the status classifier, a network
// failure is ErrTransport, and anything else means the response could not
// be read or parsed.
func (c *client) oauthError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("centerdevice: %s canceled: %w", op, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		c.logger.Warn("token endpoint rejected request",
			slog.String("op", op),
			slog.Int("status", retrieveErr.Response.StatusCode),
			slog.String("error_code", retrieveErr.ErrorCode),
		)

		return classifyStatus(retrieveErr.Response.StatusCode, retrieveErr.Body)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return newError(ErrTransport, op, err)
	}

	return newError(ErrResponse, op, err)
}

// tokenFromOAuth2 converts a library token. expires_in is read from the raw
// response when present, otherwise derived from the computed expiry.
func tokenFromOAuth2(t *oauth2.Token) Token {
	tok := Token{
		TokenType:    t.TokenType,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}

	switch v := t.Extra("expires_in").(type) {
	case float64:
		tok.ExpiresIn = int(v)
	case int64:
		tok.ExpiresIn = int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			tok.ExpiresIn = int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			tok.ExpiresIn = n
		}
	default:
		if !t.Expiry.IsZero() {
			tok.ExpiresIn = int(math.Round(time.Until(t.Expiry).Seconds()))
		}
	}

	return tok
}
