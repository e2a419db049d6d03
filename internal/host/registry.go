// Package host is the host-side half of the bridge: the action registry every
// dispatchAction call lands in, and an in-process script engine that stands in for
// the host application's scripting runtime.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Handler runs one action. params has already passed the action's schema.
// A non-nil result is merged into the envelope even when err is set.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Action is one registry entry.
type Action struct {
	Name    string
	Schema  string
	Handler Handler
}

type registered struct {
	action Action
	schema *gojsonschema.Schema
}

// Registry maps action names to validated handlers.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]registered
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: map[string]registered{}}
}

// Register compiles the action's parameter schema and adds it.
func (r *Registry) Register(actions ...Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, action := range actions {
		if action.Name == "" || action.Handler == nil {
			return fmt.Errorf("register action %q: name and handler are required", action.Name)
		}
		if _, dup := r.actions[action.Name]; dup {
			return fmt.Errorf("register action %q: already registered", action.Name)
		}
		schemaJSON := action.Schema
		if schemaJSON == "" {
			schemaJSON = `{"type": "object"}`
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
		if err != nil {
			return fmt.Errorf("register action %q: schema: %w", action.Name, err)
		}
		r.actions[action.Name] = registered{action: action, schema: schema}
	}
	return nil
}

// Names lists the registered action names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs name with the JSON-encoded params and returns the JSON envelope.
// It never fails: every problem is reported as {"success": false, "error": ...}.
func (r *Registry) Dispatch(ctx context.Context, name, paramsJSON string) (envelope string) {
	r.mu.RLock()
	entry, ok := r.actions[name]
	r.mu.RUnlock()
	if !ok {
		return encodeEnvelope(nil, fmt.Errorf("unknown action: %s", name))
	}

	params := json.RawMessage(strings.TrimSpace(paramsJSON))
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage("{}")
	}
	if err := validate(entry.schema, params); err != nil {
		return encodeEnvelope(nil, fmt.Errorf("invalid params for %s: %w", name, err))
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			envelope = encodeEnvelope(nil, fmt.Errorf("%s failed: %v", name, recovered))
		}
	}()
	result, err := entry.action.Handler(ctx, params)
	return encodeEnvelope(result, err)
}

func validate(schema *gojsonschema.Schema, params json.RawMessage) error {
	if !json.Valid(params) {
		return fmt.Errorf("params are not valid JSON")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(params))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	var problems []string
	for _, problem := range result.Errors() {
		problems = append(problems, problem.String())
	}
	return fmt.Errorf("%s", strings.Join(problems, "; "))
}

func encodeEnvelope(result any, err error) string {
	fields := map[string]any{}
	if result != nil {
		raw, marshalErr := json.Marshal(result)
		if marshalErr == nil {
			marshalErr = json.Unmarshal(raw, &fields)
		}
		if marshalErr != nil {
			fields = map[string]any{"data": result}
		}
	}
	fields["success"] = err == nil
	if err != nil {
		fields["error"] = err.Error()
	}
	out, marshalErr := json.Marshal(fields)
	if marshalErr != nil {
		out, _ = json.Marshal(map[string]any{"success": false, "error": marshalErr.Error()})
	}
	return string(out)
}
