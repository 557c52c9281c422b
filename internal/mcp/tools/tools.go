// Package tools defines the shared [Tool] type used by all toolbox tool
// packages. Each sub-package exports a constructor returning a slice of
// [Tool] values ready for registration with the tool server.
package tools

import "context"

// Definition is the caller-facing description of a tool.
type Definition struct {
	// Name is the tool's unique identifier, e.g. "validate_address".
	Name string

	// Description explains what the tool does.
	Description string

	// Parameters is the JSON Schema of the tool's arguments. It must describe
	// an object; nil means "no arguments".
	Parameters map[string]any

	// Idempotent marks tools whose repeated calls with the same arguments
	// have the same effect. Random joke tools are not idempotent.
	Idempotent bool
}

// Tool is a definition plus its handler.
type Tool struct {
	Definition Definition

	// Handler executes the tool with JSON-encoded args and returns the text
	// result, or a descriptive error. Implementations must be safe for
	// concurrent use and must respect context cancellation.
	Handler func(ctx context.Context, args string) (string, error)

	// DeclaredP50 is the expected median latency in milliseconds.
	DeclaredP50 int64

	// DeclaredMax is the p99 upper-bound latency in milliseconds. It is
	// applied as a hard timeout; zero disables the timeout.
	DeclaredMax int64
}

// ObjectSchema builds a JSON Schema object with the given properties and
// required property names.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
