package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig       = "CENTERDEVICE_CONFIG"
	EnvBaseDomain   = "CENTERDEVICE_BASE_DOMAIN"
	EnvClientID     = "CENTERDEVICE_CLIENT_ID"
	EnvClientSecret = "CENTERDEVICE_CLIENT_SECRET"
	EnvRedirectURI  = "CENTERDEVICE_REDIRECT_URI"
	EnvTokenFile    = "CENTERDEVICE_TOKEN_FILE"
	EnvAccessToken  = "CENTERDEVICE_ACCESS_TOKEN"
	EnvRefreshToken = "CENTERDEVICE_REFRESH_TOKEN"
)

// EnvOverrides holds values derived from environment variables. Empty
// strings mean "not set".
type EnvOverrides struct {
	ConfigPath   string
	BaseDomain   string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenFile    string
	AccessToken  string
	RefreshToken string
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		BaseDomain:   os.Getenv(EnvBaseDomain),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		RedirectURI:  os.Getenv(EnvRedirectURI),
		TokenFile:    os.Getenv(EnvTokenFile),
		AccessToken:  os.Getenv(EnvAccessToken),
		RefreshToken: os.Getenv(EnvRefreshToken),
	}
}
