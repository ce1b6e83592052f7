// Bootstraps the token used by the E2E tests. Runs the authorization-code
// flow against the deployment named by --domain (client credentials come
// from the usual CENTERDEVICE_* variables or .env) and writes the token and
// a matching config.toml into .testdata/.
//
// Usage: go run ./cmd/integration-bootstrap --domain sandbox.centerdevice.de
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tonimelisma/centerdevice-go/internal/centerdevice"
	"github.com/tonimelisma/centerdevice-go/internal/config"
	"github.com/tonimelisma/centerdevice-go/internal/tokenfile"
	"github.com/tonimelisma/centerdevice-go/testutil"
)

func main() {
	domain := flag.String("domain", "", "base domain of the test deployment")
	flag.Parse()

	root := testutil.FindModuleRoot(".")
	testutil.LoadDotEnv(filepath.Join(root, ".env"))

	if *domain == "" {
		*domain = os.Getenv("CENTERDEVICE_TEST_DOMAIN")
	}

	if err := run(context.Background(), root, *domain); err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, root, domain string) error {
	if domain == "" {
		return fmt.Errorf("--domain or CENTERDEVICE_TEST_DOMAIN is required")
	}

	cfg, err := config.Resolve(config.ReadEnvOverrides(), config.CLIOverrides{BaseDomain: &domain})
	if err != nil {
		return err
	}

	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	unauth := centerdevice.NewUnauthorized(
		centerdevice.EndpointsFor(cfg.BaseDomain),
		centerdevice.NewCredentials(cfg.ClientID, cfg.ClientSecret),
		centerdevice.Options{Logger: logger},
	)

	sess, err := unauth.Authorize(ctx, cfg.RedirectURI, centerdevice.CodeProviderFunc(promptCode))
	if err != nil {
		return err
	}

	dir := filepath.Join(root, ".testdata")
	tok := sess.Token()

	meta := map[string]string{
		tokenfile.MetaBaseDomain: cfg.BaseDomain,
		tokenfile.MetaClientID:   cfg.ClientID,
		tokenfile.MetaSavedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	if err := tokenfile.Save(filepath.Join(dir, testutil.TokenFileName(cfg.BaseDomain)), &tok, meta); err != nil {
		return err
	}

	configTOML := fmt.Sprintf("[auth]\nbase_domain = %q\nclient_id = %q\nclient_secret = %q\n",
		cfg.BaseDomain, cfg.ClientID, cfg.ClientSecret)

	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(configTOML), tokenfile.FilePerms); err != nil {
		return fmt.Errorf("writing config.toml: %w", err)
	}

	fmt.Printf("Login successful. Credentials saved to %s\n", dir)

	return nil
}

func promptCode(ctx context.Context, authURL *url.URL) (centerdevice.AuthorizationCode, error) {
	fmt.Printf("Open this URL in your browser and sign in:\n%s\n\nPaste the code: ", authURL)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	return centerdevice.AuthorizationCode(strings.TrimSpace(line)), nil
}
