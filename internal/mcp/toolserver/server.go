// Package toolserver exposes in-process tools over the Model Context Protocol.
//
// A [Server] keeps a concurrent-safe registry of [tools.Tool] values and
// mirrors every registration onto an MCP server from the official Go SDK
// (github.com/modelcontextprotocol/go-sdk). Incoming tools/call requests and
// direct [Server.Call] invocations share one execution path, which applies the
// tool's declared timeout, opens a trace span, records metrics and tracks
// per-tool latency in a rolling window.
//
// Typical usage:
//
//	s := toolserver.New("toolbox", "1.0.0", observe.DefaultMetrics())
//	for _, t := range joketool.Tools(cn, dj) {
//	    if err := s.Register(t); err != nil { … }
//	}
//	err := s.Run(ctx, &mcpsdk.StdioTransport{})
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/toolbox/internal/mcp"
	"github.com/MrWong99/toolbox/internal/mcp/tools"
	"github.com/MrWong99/toolbox/internal/observe"
)

// ErrToolNotFound is returned by [Server.Call] for unregistered tool names.
var ErrToolNotFound = errors.New("toolserver: tool not found")

// toolEntry is one registered tool plus its call statistics.
type toolEntry struct {
	tool   tools.Tool
	window *callWindow
}

// Server is an MCP tool server. The zero value is not usable; create
// instances with [New]. All methods are safe for concurrent use.
type Server struct {
	mu      sync.RWMutex
	tools   map[string]*toolEntry
	sdk     *mcpsdk.Server
	metrics *observe.Metrics
}

// New creates a Server announcing itself as name/version. m may be nil, in
// which case no metrics are recorded.
func New(name, version string, m *observe.Metrics) *Server {
	return &Server{
		tools:   make(map[string]*toolEntry),
		sdk:     mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, nil),
		metrics: m,
	}
}

// Register adds t to the registry and announces it to MCP clients. It fails
// for an empty name, a nil handler or a name that is already registered.
func (s *Server) Register(t tools.Tool) error {
	name := t.Definition.Name
	if name == "" {
		return errors.New("toolserver: tool must have a non-empty name")
	}
	if t.Handler == nil {
		return fmt.Errorf("toolserver: tool %q must have a non-nil handler", name)
	}

	s.mu.Lock()
	if _, exists := s.tools[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("toolserver: tool %q is already registered", name)
	}
	s.tools[name] = &toolEntry{tool: t, window: newCallWindow(defaultWindowSize)}
	s.mu.Unlock()

	schema := t.Definition.Parameters
	if schema == nil {
		schema = tools.ObjectSchema(nil)
	}
	openWorld := true
	s.sdk.AddTool(&mcpsdk.Tool{
		Name:        name,
		Description: t.Definition.Description,
		InputSchema: schema,
		Annotations: &mcpsdk.ToolAnnotations{
			ReadOnlyHint:   true,
			IdempotentHint: t.Definition.Idempotent,
			OpenWorldHint:  &openWorld,
		},
	}, s.handle(name))
	return nil
}

// handle adapts [Server.Call] to the SDK handler signature.
func (s *Server) handle(name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := "{}"
		if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
			args = string(req.Params.Arguments)
		}

		res, err := s.Call(ctx, name, args)
		if err != nil {
			return nil, err
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.Content}},
			IsError: res.IsError,
		}, nil
	}
}

// Call executes the named tool in-process with JSON-encoded args.
//
// A non-nil result is returned whenever the tool exists, with IsError set
// when the handler failed or exceeded its declared maximum latency. The only
// Go error is one wrapping [ErrToolNotFound].
func (s *Server) Call(ctx context.Context, name, args string) (*mcp.ToolResult, error) {
	s.mu.RLock()
	entry, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}

	if strings.TrimSpace(args) == "" {
		args = "{}"
	}

	ctx, span := observe.StartSpan(ctx, "tool "+name,
		trace.WithAttributes(attribute.String("tool", name)),
	)

	if entry.tool.DeclaredMax > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(entry.tool.DeclaredMax)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	output, err := entry.tool.Handler(ctx, args)
	elapsed := time.Since(start)

	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("toolserver: tool %q timed out after %dms: %w", name, entry.tool.DeclaredMax, err)
	}
	observe.EndSpan(span, err)

	entry.window.record(elapsed.Milliseconds(), err != nil)
	if s.metrics != nil {
		status := observe.StatusOK
		if err != nil {
			status = observe.StatusError
		}
		s.metrics.RecordToolCall(ctx, name, status, elapsed.Seconds())
	}

	if err != nil {
		observe.Logger(ctx).Debug("tool call failed", "tool", name, "err", err)
		return &mcp.ToolResult{Content: err.Error(), IsError: true, DurationMs: elapsed.Milliseconds()}, nil
	}
	return &mcp.ToolResult{Content: output, DurationMs: elapsed.Milliseconds()}, nil
}

// Definitions returns every registered tool definition sorted by name.
func (s *Server) Definitions() []tools.Definition {
	s.mu.RLock()
	defs := make([]tools.Definition, 0, len(s.tools))
	for _, e := range s.tools {
		defs = append(defs, e.tool.Definition)
	}
	s.mu.RUnlock()

	slices.SortFunc(defs, func(a, b tools.Definition) int {
		return strings.Compare(a.Name, b.Name)
	})
	return defs
}

// Health returns recent call statistics for every tool sorted by name.
func (s *Server) Health() []mcp.ToolHealth {
	s.mu.RLock()
	out := make([]mcp.ToolHealth, 0, len(s.tools))
	for name, e := range s.tools {
		p50, p99, rate, total := e.window.stats()
		out = append(out, mcp.ToolHealth{
			Name:      name,
			P50Ms:     p50,
			P99Ms:     p99,
			CallCount: total,
			ErrorRate: rate,
		})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b mcp.ToolHealth) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Run serves a single MCP session over t until the client disconnects or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context, t mcpsdk.Transport) error {
	if err := s.sdk.Run(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("toolserver: %w", err)
	}
	return nil
}

// Connect starts a session over t without blocking.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.sdk.Connect(ctx, t, nil)
}

// HTTPHandler returns an http.Handler serving the MCP Streamable HTTP
// protocol.
func (s *Server) HTTPHandler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.sdk
	}, nil)
}

// ToolsHandler serves the registered tool definitions with their recent call
// statistics as JSON.
func (s *Server) ToolsHandler() http.Handler {
	type toolInfo struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters,omitempty"`
		Idempotent  bool           `json:"idempotent"`
		Calls       int            `json:"calls"`
		P50Ms       int64          `json:"p50_ms"`
		P99Ms       int64          `json:"p99_ms"`
		ErrorRate   float64        `json:"error_rate"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := make(map[string]mcp.ToolHealth)
		for _, h := range s.Health() {
			health[h.Name] = h
		}

		defs := s.Definitions()
		out := make([]toolInfo, 0, len(defs))
		for _, d := range defs {
			h := health[d.Name]
			out = append(out, toolInfo{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
				Idempotent:  d.Idempotent,
				Calls:       h.CallCount,
				P50Ms:       h.P50Ms,
				P99Ms:       h.P99Ms,
				ErrorRate:   h.ErrorRate,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}
