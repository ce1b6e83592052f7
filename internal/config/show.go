package config

import (
	"fmt"
	"io"
)

// secretMask replaces secrets in rendered output.
const secretMask = "********"

// RenderEffective writes the resolved configuration as a TOML-like summary
// to w, after all four override layers have been applied. Secrets and
// environment tokens are masked.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", r.ConfigPath)

	renderAuthSection(ew, r)
	renderNetworkSection(ew, r)
	renderLoggingSection(ew, r)
	renderUploadSection(ew, r)
	renderTransfersSection(ew, r)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func mask(s string) string {
	if s == "" {
		return ""
	}

	return secretMask
}

func renderAuthSection(ew *errWriter, r *Resolved) {
	ew.printf("[auth]\n")
	ew.printf("  base_domain   = %q\n", r.BaseDomain)

	if r.AuthEndpoint != "" {
		ew.printf("  auth_endpoint = %q\n", r.AuthEndpoint)
		ew.printf("  api_endpoint  = %q\n", r.APIEndpoint)
	}

	ew.printf("  client_id     = %q\n", r.ClientID)
	ew.printf("  client_secret = %q\n", mask(r.ClientSecret))
	ew.printf("  redirect_uri  = %q\n", r.RedirectURI)
	ew.printf("  token_file    = %q\n", r.TokenFile)

	if r.HasEnvToken() {
		ew.printf("  # token supplied by %s / %s\n", EnvAccessToken, EnvRefreshToken)
	}

	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, r *Resolved) {
	ew.printf("[network]\n")
	ew.printf("  connect_timeout = %q\n", r.ConnectTimeout.String())
	ew.printf("  data_timeout    = %q\n", r.DataTimeout.String())
	ew.printf("  user_agent      = %q\n", r.UserAgent)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, r *Resolved) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", r.LogLevel)
	ew.printf("  log_format = %q\n", r.LogFormat)
	ew.printf("\n")
}

func renderUploadSection(ew *errWriter, r *Resolved) {
	ew.printf("[upload]\n")
	ew.printf("  empty_actions = %q\n", r.EmptyActions)
	ew.printf("\n")
}

func renderTransfersSection(ew *errWriter, r *Resolved) {
	ew.printf("[transfers]\n")
	ew.printf("  download_dir       = %q\n", r.DownloadDir)
	ew.printf("  parallel_downloads = %d\n", r.ParallelDownloads)
}
