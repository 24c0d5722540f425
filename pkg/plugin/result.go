package plugin

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Outcome is the structured result a plugin reports on stdout. A plugin is
// free to print anything it likes; only the trailing JSON object is the
// protocol.
type Outcome struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`

	// Context is an optional partial context the plugin passes forward to
	// later pipeline steps.
	Context map[string]interface{} `json:"context,omitempty"`
}

// failureOutcome builds the Outcome for an execution that failed outside
// the plugin's own reporting.
func failureOutcome(format string, args ...interface{}) *Outcome {
	return &Outcome{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ExtractTrailingJSON finds the last well-formed JSON object in output.
//
// The scan walks lines backward looking for a non-blank line that starts
// with '{'. For each candidate, the line alone is tried first, then the
// slice from that line to the end of output (multi-line objects). If no
// line anchors an object, the whole trimmed output is tried as a final
// fallback. Log noise before the result is ignored; when several objects
// appear, the last one wins.
func ExtractTrailingJSON(output string) (json.RawMessage, error) {
	lines := strings.Split(output, "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}
		if isJSONObject(line) {
			return json.RawMessage(line), nil
		}
		tail := strings.TrimSpace(strings.Join(lines[i:], "\n"))
		if isJSONObject(tail) {
			return json.RawMessage(tail), nil
		}
	}

	whole := strings.TrimSpace(output)
	if isJSONObject(whole) {
		return json.RawMessage(whole), nil
	}

	return nil, fmt.Errorf("no valid JSON found in plugin output")
}

// ParseOutcome extracts and decodes the plugin's trailing result object.
// JSON that lacks the "success" key is a protocol mismatch and yields a
// failed outcome rather than an error, so callers record it as a step
// failure with the offending payload.
func ParseOutcome(output string) (*Outcome, error) {
	raw, err := ExtractTrailingJSON(output)
	if err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("malformed plugin result: %w", err)
	}
	if _, ok := probe["success"]; !ok {
		return failureOutcome("plugin result missing 'success' field: %s", string(raw)), nil
	}

	var outcome Outcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return nil, fmt.Errorf("malformed plugin result: %w", err)
	}
	return &outcome, nil
}

// isJSONObject reports whether s is a complete JSON object.
func isJSONObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var v map[string]interface{}
	return json.Unmarshal([]byte(s), &v) == nil
}
