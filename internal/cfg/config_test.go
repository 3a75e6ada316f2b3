package cfg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/mergeguard/internal/guarderr"
)

const validCfg = `
http_server_listen_addr = ":8085"
github_webhook_secret = "test-secret"
github_app_client_id = "Iv1.abc"
github_app_private_key_file = "/etc/mergeguard/app.pem"
periodic_refresh = 30
`

func TestLoadSetsDefaults(t *testing.T) {
	config, err := Load(strings.NewReader(validCfg), WithEnvironment(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, ":8085", config.HTTPListenAddr)
	assert.Equal(t, "test-secret", config.GithubWebHookSecret)
	assert.Equal(t, "Iv1.abc", config.GithubAppClientID)
	assert.Equal(t, DefaultWebhookEndpoint, config.HTTPGithubWebhookEndpoint)
	assert.Equal(t, DefaultLogFormat, config.LogFormat)
	assert.Equal(t, DefaultLogLevel, config.LogLevel)
	assert.Equal(t, DefaultRefreshWorkers, config.RefreshWorkers)
	assert.InDelta(t, DefaultSampleRatio, config.OtelSampleRatio, 0.0001)
	assert.Equal(t, 30*time.Second, config.RefreshInterval())

	require.NoError(t, config.Validate())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	config, err := Load(strings.NewReader(validCfg), WithEnvironment(map[string]string{
		"MERGEGUARD_WEBHOOK_SECRET":       "from-env",
		"MERGEGUARD_APP_CLIENT_ID":        "Iv1.env",
		"MERGEGUARD_APP_PRIVATE_KEY_FILE": "/run/secrets/key.pem",
		"MERGEGUARD_GITHUB_API_URL":       "https://ghe.example.com/api/v3/",
	}))
	require.NoError(t, err)

	assert.Equal(t, "from-env", config.GithubWebHookSecret)
	assert.Equal(t, "Iv1.env", config.GithubAppClientID)
	assert.Equal(t, "/run/secrets/key.pem", config.GithubAppPrivateKeyFile)
	assert.Equal(t, "https://ghe.example.com/api/v3/", config.GithubAPIURL)
}

func TestEnvExpansion(t *testing.T) {
	const data = `
http_server_listen_addr = ":8085"
github_webhook_secret = "${SECRET}"
github_app_client_id = "Iv1.abc"
github_app_private_key_file = "${KEY_DIR}/app.pem"
`
	environ := map[string]string{"SECRET": "expanded", "KEY_DIR": "/keys"}

	config, err := Load(strings.NewReader(data), WithEnvironment(environ), WithEnvExpansion())
	require.NoError(t, err)
	assert.Equal(t, "expanded", config.GithubWebHookSecret)
	assert.Equal(t, "/keys/app.pem", config.GithubAppPrivateKeyFile)

	config, err = Load(strings.NewReader(data), WithEnvironment(environ))
	require.NoError(t, err)
	assert.Equal(t, "${SECRET}", config.GithubWebHookSecret)
}

func TestLoadInvalidToml(t *testing.T) {
	_, err := Load(strings.NewReader("http_server_listen_addr = "), WithEnvironment(map[string]string{}))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(validCfg), 0o600))

	config, err := LoadFile(path, WithEnvironment(map[string]string{}))
	require.NoError(t, err)
	assert.Equal(t, "Iv1.abc", config.GithubAppClientID)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tcs := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"missing client id", func(c *Config) { c.GithubAppClientID = "" }, "github_app_client_id"},
		{"missing private key", func(c *Config) { c.GithubAppPrivateKeyFile = "" }, "github_app_private_key_file"},
		{"no listen addr", func(c *Config) { c.HTTPListenAddr = "" }, "http_server_listen_addr"},
		{"https without cert", func(c *Config) { c.HTTPSListenAddr = ":8443"; c.HTTPSKeyFile = "key.pem" }, "https_ssl_cert_file"},
		{"https without key", func(c *Config) { c.HTTPSListenAddr = ":8443"; c.HTTPSCertFile = "cert.pem" }, "https_ssl_key_file"},
		{"negative refresh", func(c *Config) { c.PeriodicRefresh = -1 }, "periodic_refresh"},
		{"no workers", func(c *Config) { c.RefreshWorkers = 0 }, "refresh_workers"},
		{"sample ratio too big", func(c *Config) { c.OtelSampleRatio = 1.5 }, "otel_sample_ratio"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			config, err := Load(strings.NewReader(validCfg), WithEnvironment(map[string]string{}))
			require.NoError(t, err)

			tc.modify(config)

			err = config.Validate()
			var cfgErr *guarderr.ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got: %v", err)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}
