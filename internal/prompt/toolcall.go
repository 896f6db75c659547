package prompt

import (
	"encoding/json"
	"strings"
)

// toolCallMarker is the literal prefix the model must emit to request a tool.
const toolCallMarker = "TOOL_CALL:"

// ToolCallRequest is a parsed tool directive from a model reply.
type ToolCallRequest struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

// ParseToolCall scans a model reply for the TOOL_CALL marker and parses the
// trailing JSON object. A missing marker, truncated JSON, or an empty tool
// name all yield (nil, false): malformed directives degrade to plain text
// rather than failing the turn.
func ParseToolCall(reply string) (*ToolCallRequest, bool) {
	idx := strings.Index(reply, toolCallMarker)
	if idx < 0 {
		return nil, false
	}

	payload := reply[idx+len(toolCallMarker):]
	// The contract is a single line; anything after a newline is not part of
	// the directive.
	if nl := strings.IndexByte(payload, '\n'); nl >= 0 {
		payload = payload[:nl]
	}
	payload = strings.TrimSpace(payload)

	var req ToolCallRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return nil, false
	}
	if req.Tool == "" {
		return nil, false
	}
	if req.Parameters == nil {
		req.Parameters = map[string]any{}
	}
	return &req, true
}
