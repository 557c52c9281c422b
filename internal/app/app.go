// Package app wires the toolbox subsystems into a running MCP server.
//
// The App struct owns the full lifecycle: New builds the upstream clients and
// registers every tool, Run serves MCP over the configured transport, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithVerifier,
// WithChuckNorris, etc.). When an option is not provided, New creates the
// real HTTP clients from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrWong99/toolbox/internal/address"
	"github.com/MrWong99/toolbox/internal/config"
	"github.com/MrWong99/toolbox/internal/health"
	"github.com/MrWong99/toolbox/internal/jokes"
	"github.com/MrWong99/toolbox/internal/mcp"
	"github.com/MrWong99/toolbox/internal/mcp/tools"
	"github.com/MrWong99/toolbox/internal/mcp/tools/addresstool"
	"github.com/MrWong99/toolbox/internal/mcp/tools/joketool"
	"github.com/MrWong99/toolbox/internal/mcp/toolserver"
	"github.com/MrWong99/toolbox/internal/observe"
	"github.com/MrWong99/toolbox/internal/upstream"
	"github.com/MrWong99/toolbox/internal/usps"
)

// ServerName is announced to MCP clients during initialisation.
const ServerName = "toolbox"

// httpShutdownTimeout bounds the graceful stop of the HTTP listener.
const httpShutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	version  string
	metrics  *observe.Metrics
	registry *prometheus.Registry
	level    *slog.LevelVar

	verifier address.Verifier
	chuck    joketool.ChuckNorrisSource
	dad      joketool.DadJokeSource

	server   *toolserver.Server
	checkers []health.Checker

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithVerifier injects an address verifier instead of the USPS client.
func WithVerifier(v address.Verifier) Option {
	return func(a *App) { a.verifier = v }
}

// WithChuckNorris injects a Chuck Norris joke source.
func WithChuckNorris(s joketool.ChuckNorrisSource) Option {
	return func(a *App) { a.chuck = s }
}

// WithDadJokes injects a dad joke source.
func WithDadJokes(s joketool.DadJokeSource) Option {
	return func(a *App) { a.dad = s }
}

// WithMetrics sets the metric instruments. The default is
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithRegistry serves /metrics from reg instead of the global Prometheus
// registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// WithLevelVar lets [App.ApplyConfig] change the log level at runtime.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithVersion sets the version announced to MCP clients. Default: "dev".
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg and registers every tool.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, version: "dev"}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.initUpstreams()

	a.server = toolserver.New(ServerName, a.version, a.metrics)
	var all []tools.Tool
	all = append(all, addresstool.Tools(a.verifier, a.metrics)...)
	all = append(all, joketool.Tools(a.chuck, a.dad)...)
	for _, t := range all {
		if err := a.server.Register(t); err != nil {
			return nil, fmt.Errorf("app: register tool %q: %w", t.Definition.Name, err)
		}
	}

	observe.Logger(ctx).Info("toolbox ready",
		"tools", len(all),
		"transport", string(cfg.Server.Transport),
		"usps_configured", a.uspsConfigured(),
	)
	return a, nil
}

// initUpstreams builds an HTTP client for every source that was not
// injected and collects the readiness checks.
func (a *App) initUpstreams() {
	if a.verifier == nil {
		api := a.newUpstream("usps", a.cfg.USPS.BaseURL, config.DefaultUserAgent, a.cfg.USPS.HTTP)
		a.verifier = usps.New(api, a.cfg.USPS.ClientID, a.cfg.USPS.ClientSecret)
	}
	if a.chuck == nil {
		c := a.cfg.Jokes.ChuckNorris
		a.chuck = jokes.NewChuckNorris(a.newUpstream("chucknorris", c.BaseURL, c.UserAgent, c.HTTP))
	}
	if a.dad == nil {
		c := a.cfg.Jokes.DadJokes
		a.dad = jokes.NewDadJokes(a.newUpstream("dadjokes", c.BaseURL, c.UserAgent, c.HTTP))
	}

	a.addChecker("usps", a.verifier)
	a.addChecker("chucknorris", a.chuck)
	a.addChecker("dadjokes", a.dad)
}

func (a *App) newUpstream(name, baseURL, userAgent string, h config.HTTPConfig) *upstream.Client {
	c := upstream.New(upstream.Config{
		Name:         name,
		BaseURL:      baseURL,
		UserAgent:    userAgent,
		Timeout:      h.Timeout,
		RetryCount:   h.RetryCount,
		RetryWait:    h.RetryWait,
		RetryMaxWait: h.RetryMaxWait,
		Breaker: upstream.BreakerConfig{
			MaxRequests:         h.Breaker.MaxRequests,
			Interval:            h.Breaker.Interval,
			Timeout:             h.Breaker.Timeout,
			ConsecutiveFailures: h.Breaker.ConsecutiveFailures,
		},
	}, a.metrics)
	a.closers = append(a.closers, c.Close)
	return c
}

// addChecker registers src for /readyz when it can report its own health.
func (a *App) addChecker(name string, src any) {
	if c, ok := src.(interface{ Check(context.Context) error }); ok {
		a.checkers = append(a.checkers, health.Checker{Name: name, Check: c.Check})
	}
}

func (a *App) uspsConfigured() bool {
	c, ok := a.verifier.(interface{ Configured() bool })
	return !ok || c.Configured()
}

// Server returns the tool server.
func (a *App) Server() *toolserver.Server { return a.server }

// ─── Serving ─────────────────────────────────────────────────────────────────

// Handler returns the HTTP surface of the streamable-http transport:
//
//   - /mcp      MCP Streamable HTTP endpoint
//   - /healthz  liveness probe
//   - /readyz   readiness of every upstream
//   - /metrics  Prometheus scrape endpoint
//   - /tools    registered tools with call statistics
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", a.server.HTTPHandler())
	health.New(a.checkers).Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler(observe.ProviderConfig{Registry: a.registry}))
	mux.Handle("GET /tools", a.server.ToolsHandler())
	return observe.Middleware(a.metrics)(mux)
}

// Run serves MCP over the configured transport until ctx is cancelled or, for
// stdio, the client disconnects.
func (a *App) Run(ctx context.Context) error {
	switch a.cfg.Server.Transport {
	case mcp.TransportStdio:
		slog.Info("serving MCP over stdio")
		return a.server.Run(ctx, &mcpsdk.StdioTransport{})
	case mcp.TransportStreamableHTTP:
		ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen on %s: %w", a.cfg.Server.ListenAddr, err)
		}
		return a.Serve(ctx, ln)
	default:
		return fmt.Errorf("app: unsupported transport %q", a.cfg.Server.Transport)
	}
}

// Serve serves [App.Handler] on ln until ctx is cancelled, then stops the
// listener gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("serving MCP over streamable HTTP", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("app: http server: %w", err)
	}
	return nil
}

// ApplyConfig reacts to a reloaded config. Only the log level changes at
// runtime; anything else is logged as needing a restart.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", string(d.NewLogLevel))
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases all upstream clients. It respects the context deadline:
// if ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
