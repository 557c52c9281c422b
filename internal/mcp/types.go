// Package mcp holds the types shared by the toolbox's Model Context Protocol
// surface: the transport selector and the result of an in-process tool call.
// The tool registry itself lives in package toolserver.
package mcp

// Transport selects how the MCP server is exposed.
type Transport string

const (
	// TransportStdio serves a single session over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP serves the MCP Streamable HTTP protocol at /mcp.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// ToolResult holds the outcome of a single tool execution.
type ToolResult struct {
	// Content is the tool's textual output, or the error message when
	// IsError is set.
	Content string

	// IsError indicates that the tool failed at the application level
	// (bad arguments, upstream failure, timeout).
	IsError bool

	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64
}

// ToolHealth captures the recent runtime performance of one tool.
type ToolHealth struct {
	// Name is the tool name.
	Name string

	// P50Ms and P99Ms are latency percentiles over the recent call window.
	P50Ms int64
	P99Ms int64

	// CallCount is the total number of calls since registration.
	CallCount int

	// ErrorRate is the fraction of recent calls that failed (0.0–1.0).
	ErrorRate float64
}
