package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/toolbox/internal/mcp"
)

// Load builds a validated [Config] from the defaults, the YAML file at path
// and the environment seen through lookuper. An empty path skips the file. A
// nil lookuper reads the process environment.
func Load(ctx context.Context, path string, lookuper envconfig.Lookuper) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
	}
	cfg, err := load(ctx, data, lookuper)
	if err != nil && path != "" {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, err
}

// LoadFromReader decodes a YAML config from r on top of the defaults and
// validates the result. The environment is not consulted. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// load applies the three configuration layers to a fresh default config.
func load(ctx context.Context, data []byte, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(bytes.NewReader(data), cfg); err != nil {
		return nil, err
	}
	if err := ApplyEnv(ctx, cfg, lookuper); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML decodes r into cfg, keeping values the document does not set.
// Unknown keys are rejected; an empty document is accepted.
func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overwrites fields of cfg with the environment variables named by
// their `env` tags. Unset variables leave fields untouched. A nil lookuper
// reads the process environment.
func ApplyEnv(ctx context.Context, cfg *Config, lookuper envconfig.Lookuper) error {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           cfg,
		Lookuper:         lookuper,
		DefaultOverwrite: true,
	}); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("server.transport %q is invalid; valid values: stdio, streamable-http", cfg.Server.Transport))
	}
	if cfg.Server.Transport == mcp.TransportStreamableHTTP && cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required when transport is streamable-http"))
	}
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}

	// Upstreams
	errs = append(errs, validateBaseURL("usps.base_url", cfg.USPS.BaseURL)...)
	errs = append(errs, validateHTTP("usps.http", cfg.USPS.HTTP)...)
	errs = append(errs, validateBaseURL("jokes.chuck_norris.base_url", cfg.Jokes.ChuckNorris.BaseURL)...)
	errs = append(errs, validateHTTP("jokes.chuck_norris.http", cfg.Jokes.ChuckNorris.HTTP)...)
	errs = append(errs, validateBaseURL("jokes.dad_jokes.base_url", cfg.Jokes.DadJokes.BaseURL)...)
	errs = append(errs, validateHTTP("jokes.dad_jokes.http", cfg.Jokes.DadJokes.HTTP)...)

	// Credentials are optional; without them validate_address reports that
	// verification is not configured.
	if cfg.USPS.ClientID == "" || cfg.USPS.ClientSecret == "" {
		slog.Warn("usps.client_id or usps.client_secret is empty; address validation will be unavailable")
	}

	return errors.Join(errs...)
}

func validateBaseURL(field, raw string) []error {
	if raw == "" {
		return []error{fmt.Errorf("%s is required", field)}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("%s %q is not a valid URL: %w", field, raw, err)}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []error{fmt.Errorf("%s %q must be an absolute http or https URL", field, raw)}
	}
	return nil
}

func validateHTTP(prefix string, h HTTPConfig) []error {
	var errs []error
	if h.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", prefix))
	}
	if h.RetryCount < 0 {
		errs = append(errs, fmt.Errorf("%s.retry_count %d must not be negative", prefix, h.RetryCount))
	}
	if h.RetryWait < 0 || h.RetryMaxWait < 0 {
		errs = append(errs, fmt.Errorf("%s retry waits must not be negative", prefix))
	}
	if h.RetryMaxWait > 0 && h.RetryWait > h.RetryMaxWait {
		errs = append(errs, fmt.Errorf("%s.retry_wait %s exceeds retry_max_wait %s", prefix, h.RetryWait, h.RetryMaxWait))
	}
	if h.Breaker.ConsecutiveFailures == 0 {
		errs = append(errs, fmt.Errorf("%s.breaker.consecutive_failures must be at least 1", prefix))
	}
	if h.Breaker.MaxRequests == 0 {
		errs = append(errs, fmt.Errorf("%s.breaker.max_requests must be at least 1", prefix))
	}
	if h.Breaker.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.breaker.timeout must be positive", prefix))
	}
	return errs
}
