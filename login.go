package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/browser"

	"github.com/tonimelisma/centerdevice-go/internal/centerdevice"
)

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// callbackResult carries the authorization code or error from the callback handler.
type callbackResult struct {
	code string
	err  error
}

// browserCodeProvider obtains the authorization code by opening the
// authorization URL in a browser and catching the redirect on a localhost
// server bound to the redirect URI's host, port and path.
type browserCodeProvider struct {
	redirect *url.URL
	openURL  func(string) error
	prompt   io.Writer
	logger   *slog.Logger
}

func newBrowserCodeProvider(redirectURI string, prompt io.Writer, logger *slog.Logger) (*browserCodeProvider, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URI: %w", err)
	}

	if !isLoopback(u) {
		return nil, fmt.Errorf("redirect URI %q is not a localhost http URL; use --no-browser", redirectURI)
	}

	return &browserCodeProvider{
		redirect: u,
		openURL:  browser.OpenURL,
		prompt:   prompt,
		logger:   logger,
	}, nil
}

// isLoopback reports whether u can be served by a local callback server.
func isLoopback(u *url.URL) bool {
	if u.Scheme != "http" || u.Port() == "" {
		return false
	}

	host := u.Hostname()
	if host == "localhost" {
		return true
	}

	ip := net.ParseIP(host)

	return ip != nil && ip.IsLoopback()
}

// Code implements centerdevice.CodeProvider.
func (p *browserCodeProvider) Code(ctx context.Context, authURL *url.URL) (centerdevice.AuthorizationCode, error) {
	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("generating state token: %w", err)
	}

	withState := *authURL
	q := withState.Query()
	q.Set("state", state)
	withState.RawQuery = q.Encode()

	resultCh := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+callbackPath(p.redirect), func(w http.ResponseWriter, r *http.Request) {
		handleOAuthCallback(w, r, state, resultCh)
	})

	srv, err := p.startCallbackServer(ctx, mux, resultCh)
	if err != nil {
		return "", err
	}

	defer p.shutdownCallbackServer(srv)

	p.launchBrowser(withState.String())

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return "", err
	}

	return centerdevice.AuthorizationCode(code), nil
}

func callbackPath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}

	return u.Path
}

// startCallbackServer binds the redirect URI's host and port and starts an
// HTTP server with the given mux.
func (p *browserCodeProvider) startCallbackServer(
	ctx context.Context, mux *http.ServeMux, resultCh chan<- callbackResult,
) (*http.Server, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", p.redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("binding callback listener on %s: %w", p.redirect.Host, err)
	}

	p.logger.Info("callback server listening", slog.String("addr", listener.Addr().String()))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			select {
			case resultCh <- callbackResult{err: fmt.Errorf("callback server error: %w", serveErr)}:
			default:
			}
		}
	}()

	return srv, nil
}

// handleOAuthCallback validates the state, extracts the code, and sends the
// result. Only the first result is kept; later hits get a page but are
// otherwise ignored.
func handleOAuthCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	query := r.URL.Query()

	var result callbackResult

	switch {
	case query.Get("state") != state:
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		result.err = errors.New("OAuth2 state mismatch (possible CSRF)")
	case query.Get("error") != "":
		errParam := query.Get("error")
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		result.err = fmt.Errorf("authorization failed: %s: %s", errParam, query.Get("error_description"))
	case query.Get("code") == "":
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		result.err = errors.New("callback missing authorization code")
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><h1>Authentication successful</h1>"+
			"<p>You can close this window and return to the terminal.</p></body></html>")
		result.code = query.Get("code")
	}

	select {
	case resultCh <- result:
	default:
	}
}

func (p *browserCodeProvider) shutdownCallbackServer(srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		p.logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// launchBrowser attempts to open the auth URL. If it fails, the URL is
// printed so the user can copy it.
func (p *browserCodeProvider) launchBrowser(authURL string) {
	p.logger.Info("opening browser for authorization")

	if openErr := p.openURL(authURL); openErr != nil {
		p.logger.Warn("failed to open browser, printing URL", slog.String("error", openErr.Error()))
		fmt.Fprintf(p.prompt, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback fires or the context is canceled.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("browser authorization canceled: %w", ctx.Err())
	}
}

// generateState produces a random hex string for the OAuth2 state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// promptCodeProvider prints the authorization URL and reads the code from
// in. The user may paste either the bare code or the whole redirected URL.
type promptCodeProvider struct {
	in     io.Reader
	prompt io.Writer
}

// Code implements centerdevice.CodeProvider.
func (p *promptCodeProvider) Code(ctx context.Context, authURL *url.URL) (centerdevice.AuthorizationCode, error) {
	fmt.Fprintf(p.prompt, "Open this URL in your browser and sign in:\n%s\n\n", authURL)
	fmt.Fprint(p.prompt, "Paste the code (or the full redirect URL): ")

	lineCh := make(chan callbackResult, 1)

	go func() {
		line, err := bufio.NewReader(p.in).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			lineCh <- callbackResult{err: fmt.Errorf("reading authorization code: %w", err)}
			return
		}

		lineCh <- callbackResult{code: line}
	}()

	select {
	case res := <-lineCh:
		if res.err != nil {
			return "", res.err
		}

		return centerdevice.AuthorizationCode(extractCode(res.code)), nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for authorization code: %w", ctx.Err())
	}
}

// extractCode accepts a bare code or a redirect URL carrying ?code=.
func extractCode(input string) string {
	input = strings.TrimSpace(input)

	if u, err := url.Parse(input); err == nil && u.Scheme != "" {
		return u.Query().Get("code")
	}

	return input
}
