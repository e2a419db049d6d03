package domain

import (
	"fmt"
	"os"
	"strings"
)

// ResolveAPIKey returns the inline key, falling back to the configured environment variable
// and finally OPENAI_API_KEY.
func (c *Config) ResolveAPIKey() string {
	if c.Endpoint.APIKey != "" {
		return c.Endpoint.APIKey
	}
	if c.Endpoint.AuthEnvVar != "" {
		if value := os.Getenv(c.Endpoint.AuthEnvVar); value != "" {
			return value
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}

// BaseURL returns the endpoint base without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.Endpoint.BaseURL, "/")
}

// ModelFor returns the model configured for a purpose.
// Vision falls back to the chat model when unset.
func (c *Config) ModelFor(purpose ModelPurpose) string {
	switch purpose {
	case PurposeVision:
		if c.Models.Vision != "" {
			return c.Models.Vision
		}
		return c.Models.Chat
	default:
		return c.Models.Chat
	}
}

// GetMaxTokens returns the completion budget with default fallback.
func (c *Config) GetMaxTokens() int {
	if c.Models.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return c.Models.MaxTokens
}

// GetEndpointTimeoutSeconds returns the inference HTTP timeout.
func (c *Config) GetEndpointTimeoutSeconds() int {
	if c.Endpoint.TimeoutSeconds <= 0 {
		return DefaultEndpointTimeoutSeconds
	}
	return c.Endpoint.TimeoutSeconds
}

// GetBridgeTimeoutSeconds returns the upper wait for one host call.
func (c *Config) GetBridgeTimeoutSeconds() int {
	if c.Bridge.TimeoutSeconds <= 0 {
		return DefaultBridgeTimeoutSeconds
	}
	return c.Bridge.TimeoutSeconds
}

// GetBridgeMode returns the bridge mode, local when unset.
func (c *Config) GetBridgeMode() string {
	if c.Bridge.Mode == "" {
		return BridgeModeLocal
	}
	return strings.ToLower(c.Bridge.Mode)
}

// IsWebsocketBridge reports whether host scripts are reached through a connected panel.
func (c *Config) IsWebsocketBridge() bool {
	return c.GetBridgeMode() == BridgeModeWebsocket
}

// SetChatModel overrides the chat model at run time.
func (c *Config) SetChatModel(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	c.Models.Chat = name
	return nil
}

// ValidateConsistency checks the internal consistency of the configuration.
func (c *Config) ValidateConsistency() error {
	if c.Endpoint.BaseURL == "" {
		return fmt.Errorf("endpoint.base_url must be set")
	}
	if c.Models.Chat == "" {
		return fmt.Errorf("models.chat must be set")
	}
	switch c.GetBridgeMode() {
	case BridgeModeLocal:
		if c.Bridge.ProjectPath == "" {
			return fmt.Errorf("bridge.project_path must be set in local mode")
		}
	case BridgeModeWebsocket:
		if c.Bridge.ListenAddr == "" {
			return fmt.Errorf("bridge.listen_addr must be set in websocket mode")
		}
	default:
		return fmt.Errorf("bridge.mode must be local|websocket, got %s", c.Bridge.Mode)
	}
	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		return fmt.Errorf("models.temperature must be within [0, 2], got %v", c.Models.Temperature)
	}
	return nil
}
