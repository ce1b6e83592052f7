// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for centerdevice-go. It supports a
// four-layer override chain (defaults -> config file -> environment -> CLI
// flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth      AuthConfig      `toml:"auth"`
	Network   NetworkConfig   `toml:"network"`
	Logging   LoggingConfig   `toml:"logging"`
	Upload    UploadConfig    `toml:"upload"`
	Transfers TransfersConfig `toml:"transfers"`
}

// AuthConfig identifies the API deployment and the OAuth2 client. The
// client secret may be left out of the file and supplied through
// CENTERDEVICE_CLIENT_SECRET instead.
type AuthConfig struct {
	BaseDomain   string `toml:"base_domain" validate:"required,fqdn"`
	AuthEndpoint string `toml:"auth_endpoint" validate:"omitempty,url"`
	APIEndpoint  string `toml:"api_endpoint" validate:"omitempty,url"`
	ClientID     string `toml:"client_id" validate:"omitempty,max=256"`
	ClientSecret string `toml:"client_secret" validate:"omitempty,max=256"`
	RedirectURI  string `toml:"redirect_uri" validate:"required,url"`
	TokenFile    string `toml:"token_file"`
}

// NetworkConfig controls HTTP client behavior. There is no overall request
// timeout: data_timeout bounds the wait for response headers only, so large
// transfers can stream for as long as they need.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent" validate:"max=256"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `toml:"log_format" validate:"oneof=auto text json"`
}

// UploadConfig controls the upload metadata encoding. empty_actions picks
// whether empty tag/collection lists are sent as [] ("always") or left out
// ("omit").
type UploadConfig struct {
	EmptyActions string `toml:"empty_actions" validate:"oneof=always omit"`
}

// TransfersConfig controls download placement and concurrency.
type TransfersConfig struct {
	DownloadDir       string `toml:"download_dir"`
	ParallelDownloads int    `toml:"parallel_downloads" validate:"min=1,max=16"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath        string  // --config flag (empty = use default)
	BaseDomain        *string // --base-domain flag
	TokenFile         *string // --token-file flag
	DownloadDir       *string // --dir flag on download
	ParallelDownloads *int    // --parallel flag on download
}
