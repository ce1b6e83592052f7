package config

// Default values for configuration options. These are layer 0 of the
// override chain and work without any config file.
const (
	defaultBaseDomain        = "centerdevice.de"
	defaultRedirectURI       = "http://localhost:8787/callback"
	defaultConnectTimeout    = "10s"
	defaultDataTimeout       = "60s"
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultEmptyActions      = "always"
	defaultParallelDownloads = 4
	tokenFileName            = "token.json"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			BaseDomain:  defaultBaseDomain,
			RedirectURI: defaultRedirectURI,
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			DataTimeout:    defaultDataTimeout,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Upload: UploadConfig{
			EmptyActions: defaultEmptyActions,
		},
		Transfers: TransfersConfig{
			DownloadDir:       ".",
			ParallelDownloads: defaultParallelDownloads,
		},
	}
}
