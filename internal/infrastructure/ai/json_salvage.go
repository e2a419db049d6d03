package ai

import (
	"encoding/json"
	"regexp"
)

var looseObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSON is a best-effort salvage of the first-to-last brace span.
// The result is display data only; nil when nothing parses.
func extractJSON(text string) map[string]any {
	match := looseObjectPattern.FindString(text)
	if match == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(match), &out); err != nil {
		return nil
	}
	return out
}
