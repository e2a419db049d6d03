// Package extract finds one structured action command inside free-form assistant text.
//
// Two strategies are tried in order and the first match wins:
//   - a fenced code block whose content mentions "action"
//   - the first {..."action":"<name>" span, widened to its balanced closing brace
//
// The result is plain data. It still has to pass the whitelist before anything runs.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/ports"
)

var (
	fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\\n?(.*?)```")
	actionKeyPattern   = regexp.MustCompile(`"action"`)
	inlineStartPattern = regexp.MustCompile(`\{[^{}]*?"action"\s*:\s*"[^"]*"`)
)

// Extractor implements ports.CommandExtractor.
type Extractor struct{}

// New returns a command extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the command embedded in text, or false when the turn is conversational.
func (e *Extractor) Extract(text string) (domain.ActionCommand, bool) {
	if candidate, ok := fencedCandidate(text); ok {
		return parseCommand(candidate)
	}
	if candidate, ok := inlineCandidate(text); ok {
		return parseCommand(candidate)
	}
	return domain.ActionCommand{}, false
}

func fencedCandidate(text string) (string, bool) {
	for _, match := range fencedBlockPattern.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(match[1])
		if actionKeyPattern.MatchString(body) {
			return body, true
		}
	}
	return "", false
}

// inlineCandidate widens the first action-bearing opening to its balanced close.
// Braces inside string values are counted like any other brace.
func inlineCandidate(text string) (string, bool) {
	loc := inlineStartPattern.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	start := loc[0]
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func parseCommand(raw string) (domain.ActionCommand, bool) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.ActionCommand{}, false
	}

	var cmd domain.ActionCommand
	action, ok := payload["action"]
	if !ok || string(action) == "null" || json.Unmarshal(action, &cmd.Action) != nil {
		return domain.ActionCommand{}, false
	}

	cmd.Params = map[string]any{}
	if params, ok := payload["params"]; ok && string(params) != "null" {
		if err := json.Unmarshal(params, &cmd.Params); err != nil {
			return domain.ActionCommand{}, false
		}
	}

	if explanation, ok := payload["explanation"]; ok {
		_ = json.Unmarshal(explanation, &cmd.Explanation)
	}
	cmd.ManualSteps = stringList(payload["manualSteps"])
	cmd.FollowUp = stringList(payload["followUp"])
	return cmd, true
}

// stringList accepts an array of strings or a single string; anything else is dropped.
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

var _ ports.CommandExtractor = (*Extractor)(nil)
