// Package ai implements the conversation client for OpenAI-compatible inference endpoints.
//
// The client owns the bounded conversation history and the fixed system instruction:
//   - Converse: chat turn against {base}/chat/completions
//   - AnalyzeFrame: vision request with a base64 data URL and a structured-output instruction
//   - CheckConnection: GET {base}/models as a connectivity probe
//
// Command extraction is not done here; the reply is returned verbatim.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/ports"
)

const maxErrorBody = 512

// Client implements ports.ConversationClient.
type Client struct {
	httpClient *http.Client
	system     string
	history    *History
	logger     ports.Logger

	mu  sync.RWMutex
	cfg domain.Config
}

// NewClient creates a conversation client with a fixed system instruction.
func NewClient(cfg domain.Config, systemPrompt string, logger ports.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.GetEndpointTimeoutSeconds()) * time.Second},
		system:     systemPrompt,
		history:    NewHistory(domain.HistoryWindow),
		logger:     logger,
		cfg:        cfg,
	}
}

// Apply swaps the endpoint and model settings used by subsequent requests.
func (c *Client) Apply(cfg domain.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// SetChatModel overrides the chat model at run time.
func (c *Client) SetChatModel(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.SetChatModel(name)
}

// ChatModel returns the model used for conversation.
func (c *Client) ChatModel() string {
	cfg := c.settings()
	return cfg.ModelFor(domain.PurposeChat)
}

func (c *Client) settings() domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// History returns a copy of the conversation window.
func (c *Client) History() []domain.ChatMessage {
	return c.history.Entries()
}

// Reset clears the conversation window.
func (c *Client) Reset() {
	c.history.Reset()
}

// Converse sends one user turn. The exchange is recorded only when the request succeeds.
func (c *Client) Converse(ctx context.Context, userMessage string) domain.ChatResult {
	cfg := c.settings()
	user := domain.ChatMessage{Role: domain.RoleUser, Content: userMessage}

	payload := chatCompletionRequest{
		Model:       cfg.ModelFor(domain.PurposeChat),
		Messages:    toChatMessages(c.system, c.history.Window(user)),
		Temperature: cfg.Models.Temperature,
		MaxTokens:   cfg.GetMaxTokens(),
	}

	decoded, err := c.complete(ctx, cfg, payload)
	if err != nil {
		c.logger.Warn("chat request failed", map[string]interface{}{
			"model": payload.Model,
			"error": err.Error(),
		})
		return domain.ChatResult{Success: false, Error: err.Error()}
	}

	content := decoded.FirstMessage()
	c.history.AppendExchange(user, domain.ChatMessage{Role: domain.RoleAssistant, Content: content})
	c.logger.Debug("chat response", map[string]interface{}{
		"model":        payload.Model,
		"total_tokens": decoded.Usage.TotalTokens,
		"history":      c.history.Len(),
	})
	return domain.ChatResult{Success: true, Content: content, Usage: decoded.Usage}
}

// AnalyzeFrame sends one image with the instruction for the requested analysis type.
// It does not touch the conversation history.
func (c *Client) AnalyzeFrame(ctx context.Context, req domain.FrameRequest) domain.FrameAnalysis {
	instruction, err := analysisInstruction(req.Type)
	if err != nil {
		return domain.FrameAnalysis{Success: false, Error: err.Error()}
	}
	if req.ImageBase64 == "" {
		return domain.FrameAnalysis{Success: false, Error: "no image data"}
	}

	mime := req.MimeType
	if mime == "" {
		mime = "image/png"
	}

	cfg := c.settings()
	payload := chatCompletionRequest{
		Model: cfg.ModelFor(domain.PurposeVision),
		Messages: []chatMessage{{
			Role: string(domain.RoleUser),
			Content: []contentPart{
				{Type: "text", Text: instruction},
				{Type: "image_url", ImageURL: &imageURL{URL: fmt.Sprintf("data:%s;base64,%s", mime, req.ImageBase64)}},
			},
		}},
		Temperature: cfg.Models.Temperature,
		MaxTokens:   cfg.GetMaxTokens(),
	}

	decoded, err := c.complete(ctx, cfg, payload)
	if err != nil {
		c.logger.Warn("vision request failed", map[string]interface{}{
			"model": payload.Model,
			"type":  string(req.Type),
			"error": err.Error(),
		})
		return domain.FrameAnalysis{Success: false, Error: err.Error()}
	}

	content := decoded.FirstMessage()
	return domain.FrameAnalysis{
		Success:  true,
		Content:  content,
		Analysis: extractJSON(content),
		Usage:    decoded.Usage,
	}
}

// CheckConnection probes GET {base}/models with the bearer token.
func (c *Client) CheckConnection(ctx context.Context) error {
	cfg := c.settings()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL()+"/models", nil)
	if err != nil {
		return fmt.Errorf("create HTTP request: %w", err)
	}
	c.setAuthHeader(httpReq, cfg)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) complete(ctx context.Context, cfg domain.Config, payload chatCompletionRequest) (chatCompletionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return chatCompletionResponse{}, fmt.Errorf("build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL()+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return chatCompletionResponse{}, fmt.Errorf("create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuthHeader(httpReq, cfg)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return chatCompletionResponse{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return chatCompletionResponse{}, statusError(resp)
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return chatCompletionResponse{}, fmt.Errorf("parse response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return chatCompletionResponse{}, fmt.Errorf("parse response: no choices returned")
	}
	return decoded, nil
}

func (c *Client) setAuthHeader(req *http.Request, cfg domain.Config) {
	if key := cfg.ResolveAPIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(bytes.TrimSpace(snippet)) == 0 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
}

var (
	_ ports.ConversationClient  = (*Client)(nil)
	_ ports.ConnectivityChecker = (*Client)(nil)
)
