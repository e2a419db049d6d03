package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Conversation constants
const (
	// HistoryWindow is the number of chat entries kept for context.
	HistoryWindow = 10
	// DefaultMaxTokens is the default completion budget
	DefaultMaxTokens = 2000
	// DefaultTemperature is the default sampling temperature
	DefaultTemperature = 0.3
)

// Timeout constants
const (
	// DefaultEndpointTimeoutSeconds bounds one inference request
	DefaultEndpointTimeoutSeconds = 120
	// DefaultBridgeTimeoutSeconds bounds one host script evaluation
	DefaultBridgeTimeoutSeconds = 30
	// DefaultDoctorTimeout bounds each diagnostic probe
	DefaultDoctorTimeout = 10 * time.Second
)

// Bridge constants
const (
	// DefaultBridgeListenAddr is where the host panel connects in websocket mode.
	DefaultBridgeListenAddr = "127.0.0.1:8765"
	// BridgeEntryPoint is the host-side function every action goes through.
	BridgeEntryPoint = "dispatchAction"
	// BridgeRegistryFunction lists the host-side action names.
	BridgeRegistryFunction = "registeredActions"
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
