package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/centerdevice-go/internal/tokenfile"
)

// Token source constants for status reporting.
const (
	tokenStateMissing = "missing"
	tokenStateFile    = "file"
	tokenStateEnv     = "environment"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the token comes from and which deployment is used",
		Long: `Display the configured deployment and the token state.

Reads local state only. It does not check the token against the server;
run any other command to find out whether the token is still accepted.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	BaseDomain     string `json:"base_domain"`
	AuthEndpoint   string `json:"auth_endpoint"`
	APIEndpoint    string `json:"api_endpoint"`
	ClientID       string `json:"client_id,omitempty"`
	TokenFile      string `json:"token_file"`
	TokenState     string `json:"token_state"`
	SavedAt        string `json:"saved_at,omitempty"`
	TokenDomain    string `json:"token_domain,omitempty"`
	HasRefresh     bool   `json:"has_refresh_token"`
	CredentialsSet bool   `json:"credentials_set"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())

	out, err := collectStatus(cc)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, out)
	}

	printStatusText(cc, out)

	return nil
}

func collectStatus(cc *CLIContext) (statusOutput, error) {
	ep := endpoints(cc.Cfg)

	out := statusOutput{
		BaseDomain:     cc.Cfg.BaseDomain,
		AuthEndpoint:   ep.Auth,
		APIEndpoint:    ep.API,
		ClientID:       cc.Cfg.ClientID,
		TokenFile:      cc.Cfg.TokenFile,
		TokenState:     tokenStateMissing,
		CredentialsSet: cc.Cfg.RequireCredentials() == nil,
	}

	if cc.Cfg.HasEnvToken() {
		out.TokenState = tokenStateEnv
		out.HasRefresh = cc.Cfg.RefreshToken != ""

		return out, nil
	}

	tok, meta, err := tokenfile.Load(cc.Cfg.TokenFile)
	if err != nil {
		return out, fmt.Errorf("status: %w", err)
	}

	if tok != nil {
		out.TokenState = tokenStateFile
		out.HasRefresh = tok.RefreshToken != ""
		out.SavedAt = meta[tokenfile.MetaSavedAt]
		out.TokenDomain = meta[tokenfile.MetaBaseDomain]
	}

	return out, nil
}

func printStatusText(cc *CLIContext, s statusOutput) {
	rows := [][]string{
		{"Base domain", s.BaseDomain},
		{"Auth endpoint", s.AuthEndpoint},
		{"API endpoint", s.APIEndpoint},
		{"Client ID", valueOr(s.ClientID, "(not set)")},
		{"Token file", s.TokenFile},
		{"Token", s.TokenState},
	}

	if s.SavedAt != "" {
		rows = append(rows, []string{"Saved at", s.SavedAt})
	}

	if s.TokenDomain != "" && s.TokenDomain != s.BaseDomain {
		rows = append(rows, []string{"Token domain", s.TokenDomain + " (differs from base domain)"})
	}

	printTable(cc.Out, []string{"SETTING", "VALUE"}, rows)

	if s.TokenState == tokenStateMissing {
		cc.Statusf("Not logged in. Run 'centerdevice-go login'.\n")
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}
