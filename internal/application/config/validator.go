package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/doeshing/compai/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if err := cfg.ValidateConsistency(); err != nil {
		return err
	}
	if err := validateEndpoint(cfg.Endpoint); err != nil {
		return err
	}
	if err := validateModels(cfg.Models); err != nil {
		return err
	}
	if err := validateBridge(cfg); err != nil {
		return err
	}
	return validateLogging(cfg.Logging)
}

func validateEndpoint(endpoint domain.EndpointSettings) error {
	parsed, err := url.Parse(endpoint.BaseURL)
	if err != nil {
		return fmt.Errorf("endpoint.base_url invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint.base_url must be http(s), got %s", endpoint.BaseURL)
	}
	if endpoint.TimeoutSeconds < 0 {
		return fmt.Errorf("endpoint.timeout_seconds must be >= 0")
	}
	return nil
}

func validateModels(models domain.ModelSettings) error {
	if models.MaxTokens < 0 {
		return fmt.Errorf("models.max_tokens must be >= 0")
	}
	return nil
}

func validateBridge(cfg domain.Config) error {
	if cfg.Bridge.TimeoutSeconds < 0 {
		return fmt.Errorf("bridge.timeout_seconds must be >= 0")
	}
	if cfg.IsWebsocketBridge() {
		if _, _, err := net.SplitHostPort(cfg.Bridge.ListenAddr); err != nil {
			return fmt.Errorf("bridge.listen_addr invalid: %w", err)
		}
	}
	return nil
}

func validateLogging(logging domain.LoggingSettings) error {
	if logging.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(logging.Level)); err != nil {
			return fmt.Errorf("logging.level invalid: %s", logging.Level)
		}
	}
	switch strings.ToLower(logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console|json, got %s", logging.Format)
	}
	return nil
}
