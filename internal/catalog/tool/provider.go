// Package tool exposes catalog lookups to the chat agent as callable tools.
package tool

import (
	"context"
	"encoding/json"

	adktool "google.golang.org/adk/tool"
)

// Declaration is the static description of a tool: what the runtime shows the model.
type Declaration struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the tool arguments.
	Parameters map[string]any
}

// ToolProvider is a capability registered with the agent runtime once at startup.
// The runtime reads Declaration a single time and dispatches calls through
// Invoke (raw JSON arguments) or through the bound ADK tool.
type ToolProvider interface {
	Declaration() Declaration
	Invoke(ctx context.Context, args json.RawMessage) (any, error)
	ADKTool() (adktool.Tool, error)
}
