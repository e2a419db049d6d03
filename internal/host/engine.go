package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/ports"
)

// ErrUnsupportedScript is returned for source the engine does not understand.
var ErrUnsupportedScript = errors.New("unsupported script")

// Engine is an in-process ScriptHost. It evaluates exactly the script forms the
// bridge emits and routes dispatchAction calls to the registry one at a time.
type Engine struct {
	registry *Registry

	mu     sync.Mutex
	loaded bool
}

// NewEngine returns an engine with the host scripts loaded.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry, loaded: true}
}

// SetLoaded simulates loading or unloading the host scripts.
func (e *Engine) SetLoaded(loaded bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = loaded
}

// EvalScript evaluates one script and returns its string result.
func (e *Engine) EvalScript(ctx context.Context, script string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	source := strings.TrimSuffix(strings.TrimSpace(script), ";")
	switch {
	case source == fmt.Sprintf(`typeof %s === "function"`, domain.BridgeEntryPoint):
		return fmt.Sprintf("%t", e.loaded), nil
	case source == domain.BridgeRegistryFunction+"()":
		if !e.loaded {
			return "", fmt.Errorf("%s is not defined", domain.BridgeRegistryFunction)
		}
		names, err := json.Marshal(e.registry.Names())
		if err != nil {
			return "", err
		}
		return string(names), nil
	case strings.HasPrefix(source, domain.BridgeEntryPoint+"("):
		if !e.loaded {
			return "", fmt.Errorf("%s is not defined", domain.BridgeEntryPoint)
		}
		action, paramsJSON, err := parseDispatch(source)
		if err != nil {
			return "", err
		}
		return e.registry.Dispatch(ctx, action, paramsJSON), nil
	default:
		return "", fmt.Errorf("%w: %.60s", ErrUnsupportedScript, source)
	}
}

// parseDispatch reads dispatchAction("<action>", "<params json>") back into its two strings.
func parseDispatch(source string) (string, string, error) {
	body := strings.TrimPrefix(source, domain.BridgeEntryPoint+"(")
	if !strings.HasSuffix(body, ")") {
		return "", "", fmt.Errorf("%w: unterminated call", ErrUnsupportedScript)
	}
	body = strings.TrimSuffix(body, ")")

	dec := json.NewDecoder(strings.NewReader(body))
	var action, paramsJSON string
	if err := dec.Decode(&action); err != nil {
		return "", "", fmt.Errorf("%w: action literal: %v", ErrUnsupportedScript, err)
	}

	rest := bytes.TrimSpace([]byte(body[dec.InputOffset():]))
	if len(rest) == 0 || rest[0] != ',' {
		return "", "", fmt.Errorf("%w: expected two arguments", ErrUnsupportedScript)
	}
	dec = json.NewDecoder(bytes.NewReader(rest[1:]))
	if err := dec.Decode(&paramsJSON); err != nil {
		return "", "", fmt.Errorf("%w: params literal: %v", ErrUnsupportedScript, err)
	}
	if tail := bytes.TrimSpace(rest[1+int(dec.InputOffset()):]); len(tail) != 0 {
		return "", "", fmt.Errorf("%w: trailing input %q", ErrUnsupportedScript, tail)
	}
	return action, paramsJSON, nil
}

var _ ports.ScriptHost = (*Engine)(nil)
