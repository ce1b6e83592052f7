package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/centerdevice-go/internal/centerdevice"
	"github.com/tonimelisma/centerdevice-go/internal/tokenfile"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with CenterDevice and save the token",
		Long: `Run the OAuth2 authorization-code flow and save the resulting token.

By default a browser is opened and the redirect is caught on the local
callback server given by redirect_uri. With --no-browser the URL is printed
and the code is read from the terminal instead.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().Bool("no-browser", false, "print the authorization URL and read the code from stdin")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved token",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Trade the refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE:  runRefresh,
	}
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the current access token",
		Long:  "Print the current access token. With --json the whole token is printed, including the refresh token.",
		Args:  cobra.NoArgs,
		RunE:  runToken,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())

	creds, err := cc.credentials()
	if err != nil {
		return err
	}

	noBrowser, err := cmd.Flags().GetBool("no-browser")
	if err != nil {
		return err
	}

	var provider centerdevice.CodeProvider
	if noBrowser {
		provider = &promptCodeProvider{in: cmd.InOrStdin(), prompt: cmd.ErrOrStderr()}
	} else {
		bp, bpErr := newBrowserCodeProvider(cc.Cfg.RedirectURI, cmd.ErrOrStderr(), cc.Logger)
		if bpErr != nil {
			return bpErr
		}

		provider = bp
	}

	unauth := centerdevice.NewUnauthorized(endpoints(cc.Cfg), creds, cc.options())

	sess, err := unauth.Authorize(cmd.Context(), cc.Cfg.RedirectURI, provider)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	tok := sess.Token()
	if err := tokenfile.Save(cc.Cfg.TokenFile, &tok, cc.tokenMeta()); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	cc.Logger.Info("login successful", slog.String("token_file", cc.Cfg.TokenFile))
	cc.Statusf("Login successful. Token saved to %s\n", cc.Cfg.TokenFile)

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())

	if err := tokenfile.Remove(cc.Cfg.TokenFile); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	cc.Logger.Info("logout successful", slog.String("token_file", cc.Cfg.TokenFile))
	cc.Statusf("Logged out.\n")

	return nil
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())

	sess, err := cc.openSession()
	if err != nil {
		return err
	}

	tok, err := sess.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, tok)
	}

	if cc.Cfg.HasEnvToken() {
		cc.Statusf("Token refreshed. Environment tokens are not saved; new access token:\n")
		fmt.Fprintln(cc.Out, tok.AccessToken)

		return nil
	}

	cc.Statusf("Token refreshed, expires in %d seconds.\n", tok.ExpiresIn)

	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())

	tok, _, err := cc.loadToken()
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, tok)
	}

	fmt.Fprintln(cc.Out, tok.AccessToken)

	return nil
}
