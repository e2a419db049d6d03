package domain

// BridgeCall is one outbound host invocation. ParamsJSON crosses the boundary as one opaque string.
type BridgeCall struct {
	ID         string
	Action     string
	ParamsJSON string
}

// BridgeResult is the decoded host envelope.
type BridgeResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	// Kind classifies failures; empty on success.
	Kind FailureKind `json:"-"`
}

// FailureKind is the error taxonomy surfaced to the operator.
type FailureKind string

const (
	FailureTransport    FailureKind = "transport"
	FailureUnauthorized FailureKind = "unauthorized"
	FailureUnavailable  FailureKind = "bridge_unavailable"
	FailureDecode       FailureKind = "decode"
	FailureNoResponse   FailureKind = "no_response"
	FailureHost         FailureKind = "host"
)

// Failure is a turn-terminal error converted into a user-visible message.
type Failure struct {
	Kind    FailureKind
	Message string
}

// FailedResult builds a failure envelope.
func FailedResult(kind FailureKind, message string) BridgeResult {
	return BridgeResult{Success: false, Error: message, Kind: kind}
}
