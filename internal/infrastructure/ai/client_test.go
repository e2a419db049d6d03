package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/pkg/logger"
)

type recordingEndpoint struct {
	mu       sync.Mutex
	requests []chatCompletionRequest
	auth     []string
	fail     bool
	reply    func(n int) string
}

func (e *recordingEndpoint) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		e.mu.Lock()
		e.requests = append(e.requests, req)
		e.auth = append(e.auth, r.Header.Get("Authorization"))
		n := len(e.requests)
		fail := e.fail
		e.mu.Unlock()

		if fail {
			http.Error(w, `{"error":"upstream unavailable"}`, http.StatusBadGateway)
			return
		}
		content := fmt.Sprintf("reply %d", n)
		if e.reply != nil {
			content = e.reply(n)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	return mux
}

func (e *recordingEndpoint) last() chatCompletionRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[len(e.requests)-1]
}

func testConfig(baseURL string) domain.Config {
	return domain.Config{
		Endpoint: domain.EndpointSettings{BaseURL: baseURL + "/v1/", APIKey: "test-key"},
		Models:   domain.ModelSettings{Chat: "chat-model", Vision: "vision-model", Temperature: 0.3},
	}
}

func newTestClient(t *testing.T, endpoint *recordingEndpoint) *Client {
	t.Helper()
	server := httptest.NewServer(endpoint.handler(t))
	t.Cleanup(server.Close)
	return NewClient(testConfig(server.URL), "system prompt", logger.NewNop())
}

func TestConverseSendsSystemPromptAndHistory(t *testing.T) {
	endpoint := &recordingEndpoint{}
	client := newTestClient(t, endpoint)

	result := client.Converse(context.Background(), "hello")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "reply 1", result.Content)
	assert.Equal(t, 15, result.Usage.TotalTokens)

	req := endpoint.last()
	assert.Equal(t, "chat-model", req.Model)
	assert.Equal(t, 2000, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "system prompt", req.Messages[0].Content)
	assert.Equal(t, "hello", req.Messages[1].Content)
	assert.Equal(t, "Bearer test-key", endpoint.auth[0])

	assert.Equal(t, []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "reply 1"},
	}, client.History())
}

func TestConverseHistoryStaysBoundedSuffix(t *testing.T) {
	endpoint := &recordingEndpoint{}
	client := newTestClient(t, endpoint)

	var full []domain.ChatMessage
	for i := 1; i <= 12; i++ {
		msg := fmt.Sprintf("turn %d", i)
		result := client.Converse(context.Background(), msg)
		require.True(t, result.Success)
		full = append(full,
			domain.ChatMessage{Role: domain.RoleUser, Content: msg},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: result.Content},
		)

		history := client.History()
		assert.LessOrEqual(t, len(history), domain.HistoryWindow)
		assert.Equal(t, full[len(full)-len(history):], history)

		req := endpoint.last()
		assert.LessOrEqual(t, len(req.Messages)-1, domain.HistoryWindow)
		assert.Equal(t, msg, req.Messages[len(req.Messages)-1].Content)
	}
}

func TestConverseFailureRecordsNothing(t *testing.T) {
	endpoint := &recordingEndpoint{}
	client := newTestClient(t, endpoint)

	require.True(t, client.Converse(context.Background(), "first").Success)
	before := client.History()

	endpoint.mu.Lock()
	endpoint.fail = true
	endpoint.mu.Unlock()

	result := client.Converse(context.Background(), "second")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "HTTP 502")
	assert.Equal(t, before, client.History())
}

func TestConverseReturnsContentVerbatim(t *testing.T) {
	reply := "Sure.\n```json\n{\"action\":\"addCompMarker\",\"params\":{\"time\":2}}\n```"
	endpoint := &recordingEndpoint{reply: func(int) string { return reply }}
	client := newTestClient(t, endpoint)

	result := client.Converse(context.Background(), "add a marker")
	require.True(t, result.Success)
	assert.Equal(t, reply, result.Content)
}

func TestConverseKeepsSurroundingWhitespace(t *testing.T) {
	reply := "\n  Indented answer.\n"
	endpoint := &recordingEndpoint{reply: func(int) string { return reply }}
	client := newTestClient(t, endpoint)

	result := client.Converse(context.Background(), "hi")
	require.True(t, result.Success)
	assert.Equal(t, reply, result.Content)
	assert.Equal(t, reply, client.History()[1].Content)
}

func TestSetChatModelIsUsedForNextTurn(t *testing.T) {
	endpoint := &recordingEndpoint{}
	client := newTestClient(t, endpoint)

	assert.Equal(t, "chat-model", client.ChatModel())
	require.NoError(t, client.SetChatModel("llama3"))
	assert.Equal(t, "llama3", client.ChatModel())

	require.True(t, client.Converse(context.Background(), "hi").Success)
	assert.Equal(t, "llama3", endpoint.last().Model)
}

func TestResetClearsHistory(t *testing.T) {
	endpoint := &recordingEndpoint{}
	client := newTestClient(t, endpoint)

	require.True(t, client.Converse(context.Background(), "hi").Success)
	client.Reset()
	assert.Empty(t, client.History())
}

func TestAnalyzeFrameUsesVisionModelAndSalvagesJSON(t *testing.T) {
	endpoint := &recordingEndpoint{reply: func(int) string {
		return "Here you go: {\"keyLight\": {\"direction\": \"left\"}} hope it helps"
	}}
	client := newTestClient(t, endpoint)

	result := client.AnalyzeFrame(context.Background(), domain.FrameRequest{
		ImageBase64: "aGVsbG8=",
		MimeType:    "image/jpeg",
		Type:        domain.AnalysisLighting,
	})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, map[string]any{"keyLight": map[string]any{"direction": "left"}}, result.Analysis)
	assert.Empty(t, client.History())

	req := endpoint.last()
	assert.Equal(t, "vision-model", req.Model)
	require.Len(t, req.Messages, 1)
	parts, ok := req.Messages[0].Content.([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", image["url"])
}

func TestAnalyzeFrameRejectsUnknownType(t *testing.T) {
	client := NewClient(testConfig("http://127.0.0.1:0"), "", logger.NewNop())
	result := client.AnalyzeFrame(context.Background(), domain.FrameRequest{ImageBase64: "x", Type: "depth"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown analysis type")
}

func TestCheckConnection(t *testing.T) {
	endpoint := &recordingEndpoint{}
	client := newTestClient(t, endpoint)
	assert.NoError(t, client.CheckConnection(context.Background()))

	cfg := client.settings()
	cfg.Endpoint.APIKey = "wrong"
	client.Apply(cfg)
	err := client.CheckConnection(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "HTTP 401"))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]any
	}{
		{name: "embedded", text: `prefix {"a": 1} suffix`, want: map[string]any{"a": float64(1)}},
		{name: "none", text: "no braces here", want: nil},
		{name: "malformed", text: `{"a": }`, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.text))
		})
	}
}

type staticCatalog map[domain.ActionCategory][]domain.ActionDescriptor

func (c staticCatalog) ByCategory() map[domain.ActionCategory][]domain.ActionDescriptor {
	return c
}

func TestRenderSystemPromptListsActions(t *testing.T) {
	prompt, err := RenderSystemPrompt(staticCatalog{
		domain.CategoryMarker: {{
			Name:        "addCompMarker",
			Description: "Add a composition marker",
			Params:      map[string]string{"time": "number", "comment": "string"},
		}},
		domain.CategoryLayer: {{
			Name:                  "setTextContent",
			Description:           "Replace text",
			LayerTypeConstraint:   "text",
			RequiresExistingLayer: true,
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "- addCompMarker(comment: string, time: number): Add a composition marker")
	assert.Contains(t, prompt, "[layer must exist; text layers only]")
	assert.Less(t, strings.Index(prompt, "## layer"), strings.Index(prompt, "## marker"))
}
