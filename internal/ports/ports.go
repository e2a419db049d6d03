// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). The dispatch loop only ever sees these interfaces, which
// keeps the inference endpoint, the host bridge and the operator UI replaceable.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., ConversationClient, BridgeTransport)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"

	"github.com/doeshing/compai/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.compai/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// ConversationClient talks to the inference endpoint and owns the bounded history.
type ConversationClient interface {
	Converse(ctx context.Context, userMessage string) domain.ChatResult
	AnalyzeFrame(ctx context.Context, req domain.FrameRequest) domain.FrameAnalysis
	History() []domain.ChatMessage
	Reset()
}

// ConnectivityChecker verifies the inference endpoint is reachable.
type ConnectivityChecker interface {
	CheckConnection(ctx context.Context) error
}

// CommandExtractor finds one structured command in free-form assistant text.
type CommandExtractor interface {
	Extract(text string) (domain.ActionCommand, bool)
}

// ActionAuthorizer is the whitelist: a pure membership test on action names.
type ActionAuthorizer interface {
	IsAuthorized(name string) bool
	Describe(name string) (domain.ActionDescriptor, bool)
}

// BridgeTransport forwards one authorized action to host automation.
type BridgeTransport interface {
	Call(ctx context.Context, action string, params map[string]any) domain.BridgeResult
}

// ScriptHost evaluates host script source and returns the raw string result.
// Implementations are the in-process simulated host and the websocket panel connection.
type ScriptHost interface {
	EvalScript(ctx context.Context, script string) (string, error)
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
