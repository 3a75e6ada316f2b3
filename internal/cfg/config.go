// Package cfg loads and validates the mergeguard configuration file.
package cfg

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml"

	"github.com/simplesurance/mergeguard/internal/guarderr"
)

const (
	DefaultWebhookEndpoint = "/webhook"
	DefaultLogFormat       = "logfmt"
	DefaultLogTimeKey      = "time_iso8601"
	DefaultLogLevel        = "info"
	DefaultRefreshWorkers  = 4
	DefaultSampleRatio     = 1.0
)

type Config struct {
	HTTPListenAddr            string `toml:"http_server_listen_addr"`
	HTTPSListenAddr           string `toml:"https_server_listen_addr"`
	HTTPSCertFile             string `toml:"https_ssl_cert_file"`
	HTTPSKeyFile              string `toml:"https_ssl_key_file"`
	HTTPGithubWebhookEndpoint string `toml:"github_webhook_endpoint" default:"/webhook"`

	GithubWebHookSecret     string `toml:"github_webhook_secret" env:"MERGEGUARD_WEBHOOK_SECRET"`
	GithubAPIURL            string `toml:"github_api_url" env:"MERGEGUARD_GITHUB_API_URL"`
	GithubAppClientID       string `toml:"github_app_client_id" env:"MERGEGUARD_APP_CLIENT_ID"`
	GithubAppPrivateKeyFile string `toml:"github_app_private_key_file" env:"MERGEGUARD_APP_PRIVATE_KEY_FILE"`

	LogFormat  string `toml:"log_format" default:"logfmt"`
	LogTimeKey string `toml:"log_time_key" default:"time_iso8601"`
	LogLevel   string `toml:"log_level" default:"info"`

	// PeriodicRefresh is the refresh interval in seconds, 0 refreshes
	// gates immediately when a check_run event is received.
	PeriodicRefresh int `toml:"periodic_refresh"`
	RefreshWorkers  int `toml:"refresh_workers" default:"4"`

	OtelEndpoint    string  `toml:"otel_endpoint"`
	OtelSampleRatio float64 `toml:"otel_sample_ratio" default:"1.0"`
}

type Option func(*loadOptions)

type loadOptions struct {
	expandEnv bool
	lookupEnv func(string) string
	environ   map[string]string
}

// WithEnvExpansion replaces ${VAR} and $VAR references in the configuration
// file with the values of the environment variables before it is decoded.
func WithEnvExpansion() Option {
	return func(o *loadOptions) {
		o.expandEnv = true
	}
}

// WithEnvironment uses environ instead of the process environment for
// expansion and overrides.
func WithEnvironment(environ map[string]string) Option {
	return func(o *loadOptions) {
		o.environ = environ
		o.lookupEnv = func(k string) string { return environ[k] }
	}
}

func defaults() *Config {
	return &Config{
		HTTPGithubWebhookEndpoint: DefaultWebhookEndpoint,
		LogFormat:                 DefaultLogFormat,
		LogTimeKey:                DefaultLogTimeKey,
		LogLevel:                  DefaultLogLevel,
		RefreshWorkers:            DefaultRefreshWorkers,
		OtelSampleRatio:           DefaultSampleRatio,
	}
}

// Load decodes the configuration from reader and applies environment
// variable overrides. Unset settings have their default values.
// The result is not validated.
func Load(reader io.Reader, opts ...Option) (*Config, error) {
	o := loadOptions{lookupEnv: os.Getenv}
	for _, opt := range opts {
		opt(&o)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if o.expandEnv {
		data = []byte(os.Expand(string(data), o.lookupEnv))
	}

	result := defaults()
	if err := toml.Unmarshal(data, result); err != nil {
		return nil, err
	}

	err = env.ParseWithOptions(result, env.Options{Environment: o.environ})
	if err != nil {
		return nil, fmt.Errorf("parsing environment variables failed: %w", err)
	}

	return result, nil
}

// LoadFile loads the configuration from the file at path.
func LoadFile(path string, opts ...Option) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f, opts...)
}

// Validate returns a *guarderr.ConfigError if a setting is missing or
// invalid.
func (c *Config) Validate() error {
	if c.GithubAppClientID == "" {
		return guarderr.NewConfigError("github_app_client_id", "must be set")
	}

	if c.GithubAppPrivateKeyFile == "" {
		return guarderr.NewConfigError("github_app_private_key_file", "must be set")
	}

	if c.HTTPListenAddr == "" && c.HTTPSListenAddr == "" {
		return guarderr.NewConfigError(
			"http_server_listen_addr",
			"https_server_listen_addr or http_server_listen_addr must be set, both are unset",
		)
	}

	if c.HTTPSListenAddr != "" {
		if c.HTTPSCertFile == "" {
			return guarderr.NewConfigError("https_ssl_cert_file", "must be set when https_server_listen_addr is set")
		}

		if c.HTTPSKeyFile == "" {
			return guarderr.NewConfigError("https_ssl_key_file", "must be set when https_server_listen_addr is set")
		}
	}

	if c.PeriodicRefresh < 0 {
		return guarderr.NewConfigError("periodic_refresh", "must be >= 0")
	}

	if c.RefreshWorkers < 1 {
		return guarderr.NewConfigError("refresh_workers", "must be >= 1")
	}

	if c.OtelSampleRatio < 0 || c.OtelSampleRatio > 1 {
		return guarderr.NewConfigError("otel_sample_ratio", "must be between 0 and 1")
	}

	return nil
}

// RefreshInterval returns PeriodicRefresh as duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.PeriodicRefresh) * time.Second
}
