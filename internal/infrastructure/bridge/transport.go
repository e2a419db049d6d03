// Package bridge forwards authorized actions to host automation.
//
// The host only accepts script source, so every call is rendered as
//
//	dispatchAction("<action>", "<params as an escaped JSON string>")
//
// and the returned string is decoded into the result envelope. The transport does not
// time out on its own; the underlying ScriptHost does, and that shows up as "no response".
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/ports"
)

var (
	// ErrHostScriptNotLoaded means the entry point is missing on the host side.
	ErrHostScriptNotLoaded = errors.New("host script not loaded: reload the host scripts and try again")
	// ErrNoResponse means the host returned nothing usable.
	ErrNoResponse = errors.New("no response")
)

const invalidResponsePrefix = "invalid response: "

// SessionHost is implemented by hosts whose connection can be replaced at run time.
// A changed session id forces the entry point to be probed again.
type SessionHost interface {
	Session() string
}

// Transport implements ports.BridgeTransport. Calls are serialized.
type Transport struct {
	host   ports.ScriptHost
	logger ports.Logger

	mu              sync.Mutex
	verifiedSession string
	verified        bool
}

// NewTransport wraps a script host.
func NewTransport(host ports.ScriptHost, logger ports.Logger) *Transport {
	return &Transport{host: host, logger: logger}
}

// Call runs one action on the host and decodes its envelope.
func (t *Transport) Call(ctx context.Context, action string, params map[string]any) domain.BridgeResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	call, err := NewCall(action, params)
	if err != nil {
		return domain.FailedResult(domain.FailureTransport, err.Error())
	}
	fields := map[string]interface{}{"call_id": call.ID, "action": action}

	if err := t.ensureEntryPoint(ctx); err != nil {
		t.logger.Warn("bridge unavailable", withError(fields, err))
		return domain.FailedResult(domain.FailureUnavailable, ErrHostScriptNotLoaded.Error())
	}

	t.logger.Debug("bridge call", withField(fields, "params", call.ParamsJSON))
	raw, err := t.host.EvalScript(ctx, call.Script())
	if err != nil {
		t.logger.Warn("host eval failed", withError(fields, err))
		return domain.FailedResult(domain.FailureNoResponse, ErrNoResponse.Error())
	}

	result := DecodeResult(raw)
	switch result.Kind {
	case domain.FailureNoResponse, domain.FailureDecode:
		t.logger.Warn("bridge decode failed", withField(fields, "error", result.Error))
	case domain.FailureHost:
		t.logger.Info("host reported failure", withField(fields, "error", result.Error))
	}
	return result
}

// EntryPointAvailable probes the host once, without the session cache.
func (t *Transport) EntryPointAvailable(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.verified = false
	return t.ensureEntryPoint(ctx)
}

// RegisteredActions lists the action names known to the host registry.
func (t *Transport) RegisteredActions(ctx context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureEntryPoint(ctx); err != nil {
		return nil, err
	}
	raw, err := t.host.EvalScript(ctx, domain.BridgeRegistryFunction+"()")
	if err != nil {
		return nil, fmt.Errorf("list host actions: %w", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &names); err != nil {
		return nil, fmt.Errorf("list host actions: %s%s", invalidResponsePrefix, raw)
	}
	return names, nil
}

func (t *Transport) ensureEntryPoint(ctx context.Context) error {
	session := ""
	if sh, ok := t.host.(SessionHost); ok {
		session = sh.Session()
	}
	if t.verified && session == t.verifiedSession {
		return nil
	}

	raw, err := t.host.EvalScript(ctx, fmt.Sprintf(`typeof %s === "function"`, domain.BridgeEntryPoint))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHostScriptNotLoaded, err)
	}
	if strings.TrimSpace(raw) != "true" {
		return ErrHostScriptNotLoaded
	}
	t.verified = true
	t.verifiedSession = session
	return nil
}

// Call is the rendered form of one bridge invocation.
type Call struct {
	domain.BridgeCall
}

// NewCall serializes params once; Script embeds that string a second time as a literal.
func NewCall(action string, params map[string]any) (Call, error) {
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return Call{}, fmt.Errorf("encode params for %s: %w", action, err)
	}
	return Call{BridgeCall: domain.BridgeCall{
		ID:         uuid.NewString(),
		Action:     action,
		ParamsJSON: string(paramsJSON),
	}}, nil
}

// Script renders the host source text for the call.
func (c Call) Script() string {
	actionLiteral, _ := json.Marshal(c.Action)
	paramsLiteral, _ := json.Marshal(c.ParamsJSON)
	return fmt.Sprintf("%s(%s, %s)", domain.BridgeEntryPoint, actionLiteral, paramsLiteral)
}

// DecodeResult maps the raw host string onto the result envelope.
func DecodeResult(raw string) domain.BridgeResult {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "undefined" || trimmed == "null" {
		return domain.FailedResult(domain.FailureNoResponse, ErrNoResponse.Error())
	}

	var envelope map[string]any
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return domain.FailedResult(domain.FailureDecode, invalidResponsePrefix+raw)
	}

	result := domain.BridgeResult{}
	result.Success, _ = envelope["success"].(bool)
	result.Error, _ = envelope["error"].(string)
	delete(envelope, "success")
	delete(envelope, "error")
	if len(envelope) > 0 {
		result.Data = envelope
	}
	if !result.Success {
		result.Kind = domain.FailureHost
		if result.Error == "" {
			result.Error = "host action failed"
		}
	}
	return result
}

func withField(fields map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}

func withError(fields map[string]interface{}, err error) map[string]interface{} {
	return withField(fields, "error", err.Error())
}

var _ ports.BridgeTransport = (*Transport)(nil)
