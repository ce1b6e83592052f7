package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
[auth]
base_domain = "example.org"
client_id = "cid"
client_secret = "secret"
redirect_uri = "http://localhost:9000/cb"
token_file = "/tmp/cd-token.json"

[network]
connect_timeout = "5s"
data_timeout = "2m"
user_agent = "test-agent/1.0"

[logging]
log_level = "debug"
log_format = "json"

[upload]
empty_actions = "omit"

[transfers]
download_dir = "/tmp/downloads"
parallel_downloads = 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, AuthConfig{
		BaseDomain:   "example.org",
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:9000/cb",
		TokenFile:    "/tmp/cd-token.json",
	}, cfg.Auth)
	assert.Equal(t, NetworkConfig{ConnectTimeout: "5s", DataTimeout: "2m", UserAgent: "test-agent/1.0"}, cfg.Network)
	assert.Equal(t, LoggingConfig{LogLevel: "debug", LogFormat: "json"}, cfg.Logging)
	assert.Equal(t, "omit", cfg.Upload.EmptyActions)
	assert.Equal(t, TransfersConfig{DownloadDir: "/tmp/downloads", ParallelDownloads: 8}, cfg.Transfers)
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"warn\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.LogLevel)
	assert.Equal(t, "auto", cfg.Logging.LogFormat)
	assert.Equal(t, "centerdevice.de", cfg.Auth.BaseDomain)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, "[auth\nbase_domain = ")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestLoad_ValidationErrorsAccumulate(t *testing.T) {
	path := writeTestConfig(t, `
[logging]
log_level = "verbose"

[transfers]
parallel_downloads = 0

[network]
data_timeout = "1s"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.log_level")
	assert.Contains(t, err.Error(), "transfers.parallel_downloads")
	assert.Contains(t, err.Error(), "network.data_timeout")
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

// isolateEnv clears every override so the host environment cannot leak in.
func isolateEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{
		EnvConfig, EnvBaseDomain, EnvClientID, EnvClientSecret,
		EnvRedirectURI, EnvTokenFile, EnvAccessToken, EnvRefreshToken,
	} {
		t.Setenv(name, "")
	}

	t.Setenv("XDG_DATA_HOME", t.TempDir())
}

func TestResolve_NoConfigFile(t *testing.T) {
	isolateEnv(t)

	r, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: filepath.Join(t.TempDir(), "none.toml")})
	require.NoError(t, err)

	assert.Equal(t, "centerdevice.de", r.BaseDomain)
	assert.Equal(t, 10*time.Second, r.ConnectTimeout)
	assert.Equal(t, 60*time.Second, r.DataTimeout)
	assert.Equal(t, 4, r.ParallelDownloads)
	assert.Equal(t, DefaultTokenPath(), r.TokenFile)
	assert.False(t, r.HasEnvToken())
	assert.ErrorIs(t, r.RequireCredentials(), ErrMissingCredentials)
}

func TestResolve_EnvOverridesFile(t *testing.T) {
	isolateEnv(t)

	path := writeTestConfig(t, `
[auth]
base_domain = "file.example.org"
client_id = "file-id"
client_secret = "file-secret"
`)

	r, err := Resolve(EnvOverrides{
		ConfigPath:   path,
		BaseDomain:   "env.example.org",
		ClientSecret: "env-secret",
		AccessToken:  "at",
		RefreshToken: "rt",
	}, CLIOverrides{})
	require.NoError(t, err)

	assert.Equal(t, path, r.ConfigPath)
	assert.Equal(t, "env.example.org", r.BaseDomain)
	assert.Equal(t, "file-id", r.ClientID)
	assert.Equal(t, "env-secret", r.ClientSecret)
	assert.True(t, r.HasEnvToken())
	assert.Equal(t, "at", r.AccessToken)
	assert.Equal(t, "rt", r.RefreshToken)
	assert.NoError(t, r.RequireCredentials())
}

func TestResolve_CLIOverridesEnv(t *testing.T) {
	isolateEnv(t)

	path := writeTestConfig(t, "[transfers]\nparallel_downloads = 2\n")
	envPath := writeTestConfig(t, "[transfers]\nparallel_downloads = 3\n")

	cliDomain := "cli.example.org"
	cliParallel := 6
	cliDir := "/tmp/cli-dir"

	r, err := Resolve(
		EnvOverrides{ConfigPath: envPath, BaseDomain: "env.example.org"},
		CLIOverrides{ConfigPath: path, BaseDomain: &cliDomain, ParallelDownloads: &cliParallel, DownloadDir: &cliDir},
	)
	require.NoError(t, err)

	assert.Equal(t, path, r.ConfigPath, "--config wins over the environment")
	assert.Equal(t, "cli.example.org", r.BaseDomain)
	assert.Equal(t, 6, r.ParallelDownloads)
	assert.Equal(t, "/tmp/cli-dir", r.DownloadDir)
}

func TestResolve_CLIValueIsValidated(t *testing.T) {
	isolateEnv(t)

	bad := 100

	_, err := Resolve(EnvOverrides{}, CLIOverrides{
		ConfigPath:        filepath.Join(t.TempDir(), "none.toml"),
		ParallelDownloads: &bad,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallel_downloads")
}

func TestResolve_TildeExpansion(t *testing.T) {
	isolateEnv(t)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	path := writeTestConfig(t, "[auth]\ntoken_file = \"~/cd/token.json\"\n")

	r, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cd", "token.json"), r.TokenFile)
}
