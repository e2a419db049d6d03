package host

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRegistry(t *testing.T) *Registry {
	t.Helper()
	registry := NewRegistry()
	require.NoError(t, registry.Register(
		Action{
			Name: "echo",
			Schema: `{
	"type": "object",
	"properties": {"text": {"type": "string"}},
	"required": ["text"]
}`,
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				var p struct {
					Text string `json:"text"`
				}
				if err := json.Unmarshal(params, &p); err != nil {
					return nil, err
				}
				return map[string]any{"text": p.Text}, nil
			},
		},
		Action{
			Name: "fail",
			Handler: func(context.Context, json.RawMessage) (any, error) {
				return map[string]any{"partial": 1}, errors.New("layer not found")
			},
		},
		Action{
			Name: "explode",
			Handler: func(context.Context, json.RawMessage) (any, error) {
				panic("boom")
			},
		},
	))
	return registry
}

func TestRegistryDispatchEnvelopes(t *testing.T) {
	registry := echoRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		action string
		params string
		want   string
	}{
		{name: "success merges data", action: "echo", params: `{"text":"hi"}`, want: `{"success":true,"text":"hi"}`},
		{name: "schema violation", action: "echo", params: `{}`, want: ""},
		{name: "handler error keeps result", action: "fail", params: ``, want: `{"success":false,"error":"layer not found","partial":1}`},
		{name: "panic becomes failure", action: "explode", params: `{}`, want: `{"success":false,"error":"explode failed: boom"}`},
		{name: "unknown action", action: "deleteProject", params: `{}`, want: `{"success":false,"error":"unknown action: deleteProject"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := registry.Dispatch(ctx, tt.action, tt.params)
			if tt.want == "" {
				var envelope map[string]any
				require.NoError(t, json.Unmarshal([]byte(got), &envelope))
				assert.Equal(t, false, envelope["success"])
				assert.Contains(t, envelope["error"], "invalid params for echo")
				return
			}
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestRegistryRejectsDuplicatesAndBadSchemas(t *testing.T) {
	registry := echoRegistry(t)
	noop := func(context.Context, json.RawMessage) (any, error) { return nil, nil }

	assert.Error(t, registry.Register(Action{Name: "echo", Handler: noop}))
	assert.Error(t, registry.Register(Action{Name: "broken", Schema: `{"type": 12}`, Handler: noop}))
	assert.Equal(t, []string{"echo", "explode", "fail"}, registry.Names())
}

func TestEngineEvaluatesBridgeScripts(t *testing.T) {
	engine := NewEngine(echoRegistry(t))
	ctx := context.Background()

	loaded, err := engine.EvalScript(ctx, `typeof dispatchAction === "function"`)
	require.NoError(t, err)
	assert.Equal(t, "true", loaded)

	names, err := engine.EvalScript(ctx, "registeredActions()")
	require.NoError(t, err)
	assert.JSONEq(t, `["echo","explode","fail"]`, names)

	result, err := engine.EvalScript(ctx, `dispatchAction("echo", "{\"text\":\"a \\\"quoted\\\" } brace\"}")`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"text":"a \"quoted\" } brace"}`, result)

	_, err = engine.EvalScript(ctx, `app.project.close()`)
	assert.ErrorIs(t, err, ErrUnsupportedScript)

	_, err = engine.EvalScript(ctx, `dispatchAction("echo")`)
	assert.ErrorIs(t, err, ErrUnsupportedScript)
}

func TestEngineUnloadedScripts(t *testing.T) {
	engine := NewEngine(echoRegistry(t))
	engine.SetLoaded(false)
	ctx := context.Background()

	loaded, err := engine.EvalScript(ctx, `typeof dispatchAction === "function"`)
	require.NoError(t, err)
	assert.Equal(t, "false", loaded)

	_, err = engine.EvalScript(ctx, `dispatchAction("echo", "{}")`)
	assert.Error(t, err)
}
