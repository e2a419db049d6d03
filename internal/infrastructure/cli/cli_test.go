package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/compai/internal/domain"
)

type stubDispatch struct {
	messages []string
	resp     domain.TurnResponse
	err      error
}

func (s *stubDispatch) Run(req domain.TurnRequest) (domain.TurnResponse, error) {
	s.messages = append(s.messages, req.Message)
	return s.resp, s.err
}

type stubSwitcher struct {
	model  string
	resets int
}

func (s *stubSwitcher) SetChatModel(name string) error {
	s.model = name
	return nil
}

func (s *stubSwitcher) ChatModel() string { return s.model }

func (s *stubSwitcher) Reset() { s.resets++ }

type fixedSnapshot struct {
	snapshot *domain.ProjectSnapshot
}

func (f fixedSnapshot) Current() *domain.ProjectSnapshot { return f.snapshot }

func TestRenderTurn(t *testing.T) {
	var out bytes.Buffer
	RenderTurn(&out, domain.TurnResponse{
		Usage: domain.Usage{PromptTokens: 1200, CompletionTokens: 34, TotalTokens: 1234},
		Messages: []domain.UIMessage{
			{Kind: domain.UIAssistant, Text: "Done."},
			{Kind: domain.UISystem, Text: "Manual steps:\n1. Open the panel"},
			{Kind: domain.UIError, Text: "no response"},
		},
	}, true)

	assert.Equal(t, "Done.\n"+
		"[system] Manual steps:\n"+
		"         1. Open the panel\n"+
		"[error] no response\n"+
		"(1,234 tokens: 1,200 prompt, 34 completion)\n", out.String())
}

func TestRenderActionsGroupsByCategory(t *testing.T) {
	var out bytes.Buffer
	RenderActions(&out, []domain.ActionDescriptor{
		{Name: "addCompMarker", Category: domain.CategoryMarker, Description: "Add a marker."},
		{Name: "addTextLayer", Category: domain.CategoryLayer, Description: "Add text."},
		{Name: "listCompMarkers", Category: domain.CategoryMarker, Description: "List.", ReadOnly: true},
	})

	text := out.String()
	assert.Equal(t, 1, strings.Count(text, "marker:"))
	assert.Less(t, strings.Index(text, "layer:"), strings.Index(text, "marker:"))
	assert.Contains(t, text, "(read-only)")
}

func TestChatSessionCommands(t *testing.T) {
	dispatch := &stubDispatch{resp: domain.TurnResponse{
		Messages: []domain.UIMessage{{Kind: domain.UIAssistant, Text: "Hello there."}},
	}}
	client := &stubSwitcher{model: "gpt-4o-mini"}
	var out bytes.Buffer

	session := &ChatSession{
		Dispatch:  dispatch,
		Client:    client,
		Snapshots: fixedSnapshot{snapshot: &domain.ProjectSnapshot{Name: "Main", Width: 1920, Height: 1080}},
		In:        strings.NewReader("/model llama3\n\nhello\n/snapshot\n/reset\n/quit\nnever sent\n"),
		Out:       &out,
	}
	require.NoError(t, session.Run(context.Background()))

	assert.Equal(t, []string{"hello"}, dispatch.messages)
	assert.Equal(t, "llama3", client.model)
	assert.Equal(t, 1, client.resets)
	assert.Contains(t, out.String(), "Chat model set to llama3")
	assert.Contains(t, out.String(), "Hello there.")
	assert.Contains(t, out.String(), "Active composition: Main (1920x1080)")
	assert.NotContains(t, out.String(), "> ")
}

func TestChatSessionStopsOnDispatchError(t *testing.T) {
	session := &ChatSession{
		Dispatch:  &stubDispatch{err: errors.New("dependencies not satisfied")},
		Client:    &stubSwitcher{},
		Snapshots: fixedSnapshot{},
		In:        strings.NewReader("hi\n"),
		Out:       &bytes.Buffer{},
	}
	assert.Error(t, session.Run(context.Background()))
}

// newEndpoint serves chat completions with a fixed assistant reply.
func newEndpoint(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": reply}}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL, projectPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "endpoint:\n  base_url: " + baseURL + "\n  api_key: sk-test\n" +
		"bridge:\n  mode: local\n  project_path: " + projectPath + "\n" +
		"logging:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(Options{ConfigPath: configPath})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCallThenAskAgainstProjectFile(t *testing.T) {
	project := filepath.Join(t.TempDir(), "project.db")
	srv := newEndpoint(t, "Sure.\n```json\n{\"action\":\"addCompMarker\",\"params\":{\"time\":1.5,\"comment\":\"beat\"}}\n```")
	configPath := writeConfig(t, srv.URL, project)

	out, err := execute(t, configPath, "call", "createComp", `{"name":"Main","width":1920,"height":1080}`)
	require.NoError(t, err)
	assert.Contains(t, out, "[system] Action completed")
	assert.Contains(t, out, `"name": "Main"`)

	out, err = execute(t, configPath, "ask", "--usage", "mark", "the", "beat")
	require.NoError(t, err)
	assert.Contains(t, out, "Sure.")
	assert.Contains(t, out, "[system] Action completed")
	assert.Contains(t, out, "(15 tokens: 10 prompt, 5 completion)")

	out, err = execute(t, configPath, "call", "listCompMarkers")
	require.NoError(t, err)
	assert.Contains(t, out, `"comment": "beat"`)
}

func TestCallRejectsUnknownAction(t *testing.T) {
	configPath := writeConfig(t, "http://127.0.0.1:1", filepath.Join(t.TempDir(), "project.db"))

	out, err := execute(t, configPath, "call", "deleteProject")
	require.Error(t, err)
	assert.Contains(t, out, "[error] Invalid action: deleteProject")
}

func TestBridgeProbeLocalMode(t *testing.T) {
	configPath := writeConfig(t, "http://127.0.0.1:1", filepath.Join(t.TempDir(), "project.db"))

	out, err := execute(t, configPath, "bridge", "probe")
	require.NoError(t, err)
	assert.Contains(t, out, "dispatchAction is available")
	assert.Contains(t, out, "matches the host registry")
}

func TestActionsPrefix(t *testing.T) {
	out, err := execute(t, "", "actions", "addLayer")
	require.NoError(t, err)
	assert.Contains(t, out, "addLayerMarker")
	assert.NotContains(t, out, "addCompMarker")
}

func TestConfigPathAndDiff(t *testing.T) {
	configPath := writeConfig(t, "http://127.0.0.1:1", filepath.Join(t.TempDir(), "project.db"))

	out, err := execute(t, configPath, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, configPath+"\n", out)

	out, err = execute(t, configPath, "config", "diff")
	require.NoError(t, err)
	assert.Contains(t, out, "http://127.0.0.1:1")

	out, err = execute(t, configPath, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-test")
}
