// Package config provides the configuration schema and loader for the toolbox
// server.
//
// Values come from three layers, later layers winning: built-in defaults
// ([Default]), an optional YAML file, and environment variables read through
// go-envconfig using the `env` struct tags below.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/toolbox/internal/mcp"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel converts l to the matching [slog.Level]. Unknown values map to
// [slog.LevelInfo].
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `yaml:"server" env:", prefix=TOOLBOX_"`
	USPS   USPSConfig   `yaml:"usps"   env:", prefix=USPS_"`
	Jokes  JokesConfig  `yaml:"jokes"`
}

// ServerConfig holds transport and logging settings.
type ServerConfig struct {
	// Transport selects stdio (default) or streamable-http.
	Transport mcp.Transport `yaml:"transport" env:"TRANSPORT"`

	// ListenAddr is the TCP address used by the streamable-http transport.
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`

	LogLevel  LogLevel  `yaml:"log_level"  env:"LOG_LEVEL"`
	LogFormat LogFormat `yaml:"log_format" env:"LOG_FORMAT"`
}

// USPSConfig configures the address verification client.
type USPSConfig struct {
	BaseURL string `yaml:"base_url" env:"BASE_URL"`

	// ClientID and ClientSecret are the OAuth client credentials. Usually
	// supplied through USPS_CLIENT_ID and USPS_CLIENT_SECRET.
	ClientID     string `yaml:"client_id"     env:"CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"CLIENT_SECRET"`

	HTTP HTTPConfig `yaml:"http" env:", prefix=HTTP_"`
}

// JokesConfig configures the joke APIs.
type JokesConfig struct {
	ChuckNorris APIConfig `yaml:"chuck_norris" env:", prefix=CHUCK_NORRIS_"`
	DadJokes    APIConfig `yaml:"dad_jokes"    env:", prefix=DAD_JOKES_"`
}

// APIConfig describes a public HTTP API without credentials.
type APIConfig struct {
	BaseURL string `yaml:"base_url" env:"BASE_URL"`

	// UserAgent identifies the toolbox to the API.
	UserAgent string `yaml:"user_agent" env:"USER_AGENT"`

	HTTP HTTPConfig `yaml:"http" env:", prefix=HTTP_"`
}

// HTTPConfig tunes an upstream HTTP client.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout"        env:"TIMEOUT"`
	RetryCount   int           `yaml:"retry_count"    env:"RETRY_COUNT"`
	RetryWait    time.Duration `yaml:"retry_wait"     env:"RETRY_WAIT"`
	RetryMaxWait time.Duration `yaml:"retry_max_wait" env:"RETRY_MAX_WAIT"`

	Breaker BreakerConfig `yaml:"breaker" env:", prefix=BREAKER_"`
}

// BreakerConfig tunes an upstream circuit breaker.
type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests"         env:"MAX_REQUESTS"`
	Interval            time.Duration `yaml:"interval"             env:"INTERVAL"`
	Timeout             time.Duration `yaml:"timeout"              env:"TIMEOUT"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" env:"CONSECUTIVE_FAILURES"`
}

// Default API hosts and the User-Agent sent to public APIs.
const (
	DefaultUSPSURL        = "https://apis.usps.com"
	DefaultChuckNorrisURL = "https://api.chucknorris.io"
	DefaultDadJokesURL    = "https://icanhazdadjoke.com"
	DefaultUserAgent      = "toolbox (https://github.com/MrWong99/toolbox)"
)

// DefaultHTTP returns the default upstream client settings.
func DefaultHTTP() HTTPConfig {
	return HTTPConfig{
		Timeout:      10 * time.Second,
		RetryCount:   1,
		RetryWait:    200 * time.Millisecond,
		RetryMaxWait: 2 * time.Second,
		Breaker: BreakerConfig{
			MaxRequests:         1,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
		},
	}
}

// Default returns a Config holding every default value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Transport:  mcp.TransportStdio,
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
			LogFormat:  LogFormatText,
		},
		USPS: USPSConfig{
			BaseURL: DefaultUSPSURL,
			HTTP:    DefaultHTTP(),
		},
		Jokes: JokesConfig{
			ChuckNorris: APIConfig{
				BaseURL:   DefaultChuckNorrisURL,
				UserAgent: DefaultUserAgent,
				HTTP:      DefaultHTTP(),
			},
			DadJokes: APIConfig{
				BaseURL:   DefaultDadJokesURL,
				UserAgent: DefaultUserAgent,
				HTTP:      DefaultHTTP(),
			},
		},
	}
}
