package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/centerdevice-go/internal/centerdevice"
	"github.com/tonimelisma/centerdevice-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagBaseDomain string
	flagTokenFile  string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// CLIFlags is a snapshot of the persistent flags taken after parsing.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Debug      bool
	Quiet      bool
}

// CLIContext carries everything a subcommand needs: parsed flags, the
// resolved configuration, and a logger built from both. It travels in the
// command's context so subcommands never read globals.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Resolved
	Logger *slog.Logger
	Out    io.Writer
}

type cliContextKey struct{}

// cliContextFrom returns the CLIContext stored by the root pre-run.
func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "centerdevice-go",
		Short:   "CenterDevice document CLI",
		Long:    "Search, upload, download and delete documents in CenterDevice from the command line.",
		Version: version,
		// Errors are printed by main so the exit path stays in one place.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "", "config file path")
	pf.StringVar(&flagBaseDomain, "base-domain", "", "API base domain (e.g. centerdevice.de)")
	pf.StringVar(&flagTokenFile, "token-file", "", "token file path")
	pf.BoolVar(&flagJSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "show informational log messages")
	pf.BoolVar(&flagDebug, "debug", false, "show debug log messages")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	cmd.MarkFlagsMutuallyExclusive("debug", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newUsersCmd())
	cmd.AddCommand(newCollectionsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and attaches a CLIContext to the command's context.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	// Only pass flags the user explicitly set, so an empty flag never masks
	// the config file or environment.
	if cmd.Flags().Changed("base-domain") {
		cli.BaseDomain = &flagBaseDomain
	}

	if cmd.Flags().Changed("token-file") {
		cli.TokenFile = &flagTokenFile
	}

	applyCommandOverrides(cmd, &cli)

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	flags := currentFlags()

	cc := &CLIContext{
		Flags:  flags,
		Cfg:    resolved,
		Logger: buildLogger(resolved, flags),
		Out:    cmd.OutOrStdout(),
	}

	cc.Logger.Debug("config resolved",
		slog.String("config_path", resolved.ConfigPath),
		slog.String("base_domain", resolved.BaseDomain),
		slog.String("token_file", resolved.TokenFile),
	)

	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

	return nil
}

// applyCommandOverrides copies download-specific flags into the override
// set. Other commands do not define them.
func applyCommandOverrides(cmd *cobra.Command, cli *config.CLIOverrides) {
	if f := cmd.Flags().Lookup("dir"); f != nil && f.Changed {
		dir := f.Value.String()
		cli.DownloadDir = &dir
	}

	if cmd.Flags().Changed("parallel") {
		if n, err := cmd.Flags().GetInt("parallel"); err == nil {
			cli.ParallelDownloads = &n
		}
	}
}

func currentFlags() CLIFlags {
	return CLIFlags{
		ConfigPath: flagConfigPath,
		JSON:       flagJSON,
		Verbose:    flagVerbose,
		Debug:      flagDebug,
		Quiet:      flagQuiet,
	}
}

// bootstrapLogger is used before the config is loaded. It honors only the
// CLI flags. Default level is Warn.
func bootstrapLogger() *slog.Logger {
	return buildLogger(nil, currentFlags())
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. The config-file log level is the baseline; --verbose, --debug
// and --quiet override it because CLI flags always win.
func buildLogger(cfg *config.Resolved, flags CLIFlags) *slog.Logger {
	level := slog.LevelWarn
	format := "auto"

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}

		format = cfg.LogFormat
	}

	switch {
	case flags.Debug:
		level = slog.LevelDebug
	case flags.Verbose:
		level = slog.LevelInfo
	case flags.Quiet:
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if useJSONLogs(format, os.Stderr.Fd()) {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// useJSONLogs resolves log_format. "auto" picks text for an interactive
// terminal and JSON when stderr is redirected.
func useJSONLogs(format string, fd uintptr) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	default:
		return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	}
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}

	os.Exit(1)
}

// errorHint suggests a next step for the error kinds a user can act on.
func errorHint(err error) string {
	var apiErr *centerdevice.APIError

	switch {
	case errors.Is(err, errNotLoggedIn), errors.Is(err, centerdevice.ErrInvalidToken):
		return "run 'centerdevice-go login' to sign in again"
	case errors.Is(err, config.ErrMissingCredentials):
		return "set client_id and client_secret in the [auth] section or the environment"
	case errors.As(err, &apiErr) && apiErr.RetryAfter > 0:
		return fmt.Sprintf("the server asked to retry after %s", apiErr.RetryAfter)
	case errors.Is(err, centerdevice.ErrLengthMismatch):
		return "the download was cut short; run the command again"
	default:
		return ""
	}
}
