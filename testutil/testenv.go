// Package testutil provides shared test environment helpers for E2E and
// integration tests. It depends only on stdlib so that E2E tests (which
// cannot import internal/) can use it.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ValidateAllowlist crashes the process unless the deployment named by
// domainEnvVar is listed in CENTERDEVICE_ALLOWED_TEST_DOMAINS. Live tests
// upload and delete documents, so they must never run against an
// organization nobody has opted in.
func ValidateAllowlist(domainEnvVar string) string {
	allowlist := os.Getenv("CENTERDEVICE_ALLOWED_TEST_DOMAINS")
	if allowlist == "" {
		fmt.Fprintln(os.Stderr, "FATAL: CENTERDEVICE_ALLOWED_TEST_DOMAINS not set")
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintln(os.Stderr, "Example: CENTERDEVICE_ALLOWED_TEST_DOMAINS=sandbox.centerdevice.de")
		os.Exit(1)
	}

	domain := os.Getenv(domainEnvVar)
	if domain == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", domainEnvVar)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == domain {
			return domain
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in CENTERDEVICE_ALLOWED_TEST_DOMAINS=%q\n",
		domainEnvVar, domain, allowlist)
	os.Exit(1)

	return ""
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// FindTestCredentialDir locates .testdata/ relative to the module root.
// Crashes if the directory does not exist.
func FindTestCredentialDir(moduleRoot string) string {
	dir := filepath.Join(moduleRoot, ".testdata")

	if _, err := os.Stat(dir); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL: .testdata/ directory not found at "+dir)
		fmt.Fprintln(os.Stderr, "Run go run ./cmd/integration-bootstrap to create test credentials.")
		os.Exit(1)
	}

	return dir
}

// TokenFileName returns the token filename for a deployment's base domain,
// e.g. token_sandbox.centerdevice.de.json.
func TokenFileName(baseDomain string) string {
	if baseDomain == "" || strings.ContainsAny(baseDomain, `/\`) {
		fmt.Fprintf(os.Stderr, "FATAL: cannot build token filename for domain %q\n", baseDomain)
		os.Exit(1)
	}

	return "token_" + baseDomain + ".json"
}

// CopyFile copies a file from src to dst with the given permissions.
// Crashes on failure because tests cannot proceed without the file.
func CopyFile(src, dst string, perm os.FileMode) {
	data, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot read %s: %v\n", src, err)
		fmt.Fprintln(os.Stderr, "Run go run ./cmd/integration-bootstrap to create test credentials.")
		os.Exit(1)
	}

	if writeErr := os.WriteFile(dst, data, perm); writeErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: writing %s: %v\n", dst, writeErr)
		os.Exit(1)
	}
}
