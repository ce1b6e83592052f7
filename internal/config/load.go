package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Resolved is the final configuration after the override chain, with
// durations parsed and paths expanded. It is what the CLI runs on.
type Resolved struct {
	ConfigPath string

	BaseDomain   string
	AuthEndpoint string
	APIEndpoint  string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenFile    string

	// Set only from the environment, never from the config file.
	AccessToken  string
	RefreshToken string

	ConnectTimeout time.Duration
	DataTimeout    time.Duration
	UserAgent      string

	LogLevel  string
	LogFormat string

	EmptyActions string

	DownloadDir       string
	ParallelDownloads int
}

// ErrMissingCredentials is returned by RequireCredentials when the client
// id or secret has not been configured anywhere.
var ErrMissingCredentials = errors.New("config: client_id and client_secret are required")

// RequireCredentials reports whether the OAuth2 client identity is present.
// Commands that talk to the server call it; offline commands do not.
func (r *Resolved) RequireCredentials() error {
	var missing []string
	if r.ClientID == "" {
		missing = append(missing, "client_id ("+EnvClientID+")")
	}

	if r.ClientSecret == "" {
		missing = append(missing, "client_secret ("+EnvClientSecret+")")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrMissingCredentials, missing)
	}

	return nil
}

// HasEnvToken reports whether a token pair was supplied through the
// environment.
func (r *Resolved) HasEnvToken() bool {
	return r.AccessToken != "" || r.RefreshToken != ""
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// Config path: CLI > env > default.
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	applyEnv(cfg, env)
	applyCLI(cfg, cli)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	r := &Resolved{
		ConfigPath:        cfgPath,
		BaseDomain:        cfg.Auth.BaseDomain,
		AuthEndpoint:      cfg.Auth.AuthEndpoint,
		APIEndpoint:       cfg.Auth.APIEndpoint,
		ClientID:          cfg.Auth.ClientID,
		ClientSecret:      cfg.Auth.ClientSecret,
		RedirectURI:       cfg.Auth.RedirectURI,
		TokenFile:         expandTilde(cfg.Auth.TokenFile),
		AccessToken:       env.AccessToken,
		RefreshToken:      env.RefreshToken,
		UserAgent:         cfg.Network.UserAgent,
		LogLevel:          cfg.Logging.LogLevel,
		LogFormat:         cfg.Logging.LogFormat,
		EmptyActions:      cfg.Upload.EmptyActions,
		DownloadDir:       expandTilde(cfg.Transfers.DownloadDir),
		ParallelDownloads: cfg.Transfers.ParallelDownloads,
	}

	if r.TokenFile == "" {
		r.TokenFile = DefaultTokenPath()
	}

	// Both already passed validateNetwork.
	r.ConnectTimeout, _ = time.ParseDuration(cfg.Network.ConnectTimeout)
	r.DataTimeout, _ = time.ParseDuration(cfg.Network.DataTimeout)

	return r, nil
}

func applyEnv(cfg *Config, env EnvOverrides) {
	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	setIf(&cfg.Auth.BaseDomain, env.BaseDomain)
	setIf(&cfg.Auth.ClientID, env.ClientID)
	setIf(&cfg.Auth.ClientSecret, env.ClientSecret)
	setIf(&cfg.Auth.RedirectURI, env.RedirectURI)
	setIf(&cfg.Auth.TokenFile, env.TokenFile)
}

func applyCLI(cfg *Config, cli CLIOverrides) {
	if cli.BaseDomain != nil {
		cfg.Auth.BaseDomain = *cli.BaseDomain
	}

	if cli.TokenFile != nil {
		cfg.Auth.TokenFile = *cli.TokenFile
	}

	if cli.DownloadDir != nil {
		cfg.Transfers.DownloadDir = *cli.DownloadDir
	}

	if cli.ParallelDownloads != nil {
		cfg.Transfers.ParallelDownloads = *cli.ParallelDownloads
	}
}
