package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/centerdevice-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

// configJSON is the JSON schema for `config show --json`. Secrets are
// reported only as present or absent.
type configJSON struct {
	ConfigPath        string `json:"config_path"`
	BaseDomain        string `json:"base_domain"`
	AuthEndpoint      string `json:"auth_endpoint,omitempty"`
	APIEndpoint       string `json:"api_endpoint,omitempty"`
	ClientID          string `json:"client_id"`
	HasClientSecret   bool   `json:"has_client_secret"`
	RedirectURI       string `json:"redirect_uri"`
	TokenFile         string `json:"token_file"`
	EnvToken          bool   `json:"env_token"`
	ConnectTimeout    string `json:"connect_timeout"`
	DataTimeout       string `json:"data_timeout"`
	UserAgent         string `json:"user_agent,omitempty"`
	LogLevel          string `json:"log_level"`
	LogFormat         string `json:"log_format"`
	EmptyActions      string `json:"empty_actions"`
	DownloadDir       string `json:"download_dir"`
	ParallelDownloads int    `json:"parallel_downloads"`
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())
	r := cc.Cfg

	if cc.Flags.JSON {
		return printJSON(cc.Out, configJSON{
			ConfigPath:        r.ConfigPath,
			BaseDomain:        r.BaseDomain,
			AuthEndpoint:      r.AuthEndpoint,
			APIEndpoint:       r.APIEndpoint,
			ClientID:          r.ClientID,
			HasClientSecret:   r.ClientSecret != "",
			RedirectURI:       r.RedirectURI,
			TokenFile:         r.TokenFile,
			EnvToken:          r.HasEnvToken(),
			ConnectTimeout:    r.ConnectTimeout.String(),
			DataTimeout:       r.DataTimeout.String(),
			UserAgent:         r.UserAgent,
			LogLevel:          r.LogLevel,
			LogFormat:         r.LogFormat,
			EmptyActions:      r.EmptyActions,
			DownloadDir:       r.DownloadDir,
			ParallelDownloads: r.ParallelDownloads,
		})
	}

	return config.RenderEffective(r, cc.Out)
}
