package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tonimelisma/centerdevice-go/internal/centerdevice"
	"github.com/tonimelisma/centerdevice-go/internal/config"
	"github.com/tonimelisma/centerdevice-go/internal/tokenfile"
)

// errNotLoggedIn is returned when no token is available from the token file
// or the environment.
var errNotLoggedIn = errors.New("not logged in")

const (
	keepAliveInterval = 30 * time.Second
	idleConnTimeout   = 90 * time.Second
)

// newHTTPClient returns the single HTTP client used for a CLI run. There is
// no overall timeout: connect_timeout bounds dialing and the TLS handshake,
// data_timeout bounds the wait for response headers, and bodies stream for
// as long as they need.
func newHTTPClient(cfg *config.Resolved) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: keepAliveInterval,
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.DataTimeout,
			IdleConnTimeout:       idleConnTimeout,
			MaxIdleConnsPerHost:   cfg.ParallelDownloads,
		},
	}
}

// endpoints returns the configured endpoint override pair, or the hosts
// derived from base_domain.
func endpoints(cfg *config.Resolved) centerdevice.Endpoints {
	if cfg.AuthEndpoint != "" && cfg.APIEndpoint != "" {
		return centerdevice.Endpoints{Auth: cfg.AuthEndpoint, API: cfg.APIEndpoint}
	}

	return centerdevice.EndpointsFor(cfg.BaseDomain)
}

func (cc *CLIContext) options() centerdevice.Options {
	return centerdevice.Options{
		HTTPClient: newHTTPClient(cc.Cfg),
		Logger:     cc.Logger,
		UserAgent:  cc.Cfg.UserAgent,
	}
}

func (cc *CLIContext) credentials() (centerdevice.Credentials, error) {
	if err := cc.Cfg.RequireCredentials(); err != nil {
		return centerdevice.Credentials{}, err
	}

	return centerdevice.NewCredentials(cc.Cfg.ClientID, cc.Cfg.ClientSecret), nil
}

// tokenMeta is the metadata written next to a token on every save.
func (cc *CLIContext) tokenMeta() map[string]string {
	return map[string]string{
		tokenfile.MetaBaseDomain: cc.Cfg.BaseDomain,
		tokenfile.MetaClientID:   cc.Cfg.ClientID,
		tokenfile.MetaSavedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// loadToken returns the token to run with. An environment token pair wins
// over the token file; fromEnv reports which source was used.
func (cc *CLIContext) loadToken() (tok centerdevice.Token, fromEnv bool, err error) {
	if cc.Cfg.HasEnvToken() {
		cc.Logger.Debug("using token from environment")
		return centerdevice.NewToken(cc.Cfg.AccessToken, cc.Cfg.RefreshToken), true, nil
	}

	saved, meta, err := tokenfile.Load(cc.Cfg.TokenFile)
	if err != nil {
		return centerdevice.Token{}, false, err
	}

	if saved == nil {
		return centerdevice.Token{}, false, fmt.Errorf("%w: no token at %s", errNotLoggedIn, cc.Cfg.TokenFile)
	}

	if domain := meta[tokenfile.MetaBaseDomain]; domain != "" && domain != cc.Cfg.BaseDomain {
		cc.Logger.Warn("token was issued for a different base domain",
			slog.String("token_domain", domain),
			slog.String("configured_domain", cc.Cfg.BaseDomain),
		)
	}

	return *saved, false, nil
}

// openSession builds an authorized session. Tokens loaded from the token
// file are written back whenever a refresh replaces them; environment
// tokens are never persisted.
func (cc *CLIContext) openSession() (*centerdevice.Session, error) {
	creds, err := cc.credentials()
	if err != nil {
		return nil, err
	}

	tok, fromEnv, err := cc.loadToken()
	if err != nil {
		return nil, err
	}

	sess := centerdevice.NewSession(endpoints(cc.Cfg), creds, tok, cc.options())

	if !fromEnv {
		path := cc.Cfg.TokenFile

		sess.OnTokenChange(func(next centerdevice.Token) {
			if err := tokenfile.Update(path, &next, cc.tokenMeta()); err != nil {
				cc.Logger.Warn("failed to persist refreshed token",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)

				return
			}

			cc.Logger.Debug("persisted refreshed token", slog.String("path", path))
		})
	}

	return sess, nil
}

// withRefresh runs call once and, if the server rejected the access token,
// refreshes it and runs call a second time. There is no further retry. When
// a parallel call already replaced the token, the refresh is skipped.
func withRefresh[T any](
	ctx context.Context, cc *CLIContext, sess *centerdevice.Session,
	call func(context.Context) (T, error),
) (T, error) {
	used := sess.AccessToken()

	result, err := call(ctx)
	if err == nil || !errors.Is(err, centerdevice.ErrInvalidToken) {
		return result, err
	}

	if sess.AccessToken() != used {
		cc.Logger.Debug("token already refreshed, retrying")
		return call(ctx)
	}

	if sess.Token().RefreshToken == "" {
		return result, err
	}

	cc.Logger.Info("access token rejected, refreshing")

	if _, refreshErr := sess.Refresh(ctx); refreshErr != nil {
		var zero T
		return zero, fmt.Errorf("refreshing rejected token: %w", refreshErr)
	}

	return call(ctx)
}
