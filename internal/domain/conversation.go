// Package domain defines core business entities and value objects for compai.
//
// This file contains the conversation model shared by the chat client and the dispatch
// loop. The domain layer is independent of infrastructure concerns.
package domain

// ChatRole identifies the author of a conversation entry.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one conversation entry.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// Usage reports token accounting returned by the inference endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is the outcome of one converse call.
type ChatResult struct {
	Success bool
	Content string
	Usage   Usage
	Error   string
}

// ModelPurpose selects a model from the per-purpose mapping.
type ModelPurpose string

const (
	PurposeChat   ModelPurpose = "chat"
	PurposeVision ModelPurpose = "vision"
)

// AnalysisType selects the structured-output instruction used for frame analysis.
type AnalysisType string

const (
	AnalysisFull     AnalysisType = "full"
	AnalysisCoin     AnalysisType = "coin"
	AnalysisLighting AnalysisType = "lighting"
	AnalysisColor    AnalysisType = "color"
)

// AnalysisTypes lists the accepted analysis selectors.
func AnalysisTypes() []AnalysisType {
	return []AnalysisType{AnalysisFull, AnalysisCoin, AnalysisLighting, AnalysisColor}
}

// ParseAnalysisType validates a selector, returning false for unknown values.
func ParseAnalysisType(value string) (AnalysisType, bool) {
	for _, t := range AnalysisTypes() {
		if string(t) == value {
			return t, true
		}
	}
	return "", false
}

// FrameRequest carries an encoded frame for vision analysis.
type FrameRequest struct {
	// ImageBase64 is the encoded image without the data URL prefix.
	ImageBase64 string
	// MimeType defaults to image/png.
	MimeType string
	Type     AnalysisType
}

// FrameAnalysis is the outcome of a vision request.
// Analysis is advisory display data and never feeds authorization.
type FrameAnalysis struct {
	Success  bool
	Content  string
	Analysis map[string]any
	Usage    Usage
	Error    string
}
