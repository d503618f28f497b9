package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// objectArg reads a JSON-object string argument. Missing or empty yields nil.
func objectArg(req mcp.CallToolRequest, key string) (map[string]any, error) {
	raw := req.GetString(key, "")
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := parseJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("%s must be a JSON object: %w", key, err)
	}
	return out, nil
}

func requireString(req mcp.CallToolRequest, key string) (string, error) {
	v := req.GetString(key, "")
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func boolPtr(b bool) *bool { return &b }
