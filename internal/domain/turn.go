package domain

import "context"

// TurnRequest is one user turn entering the dispatch loop.
type TurnRequest struct {
	Context context.Context
	Message string
}

// UIMessageKind tags messages shown in the chat view.
type UIMessageKind string

const (
	UIAssistant UIMessageKind = "assistant"
	UISystem    UIMessageKind = "system"
	UIError     UIMessageKind = "error"
)

// UIMessage is one line of chat output.
type UIMessage struct {
	Kind UIMessageKind
	Text string
}

// TurnResponse is everything a turn produced.
type TurnResponse struct {
	TurnID   string
	Reply    string
	Usage    Usage
	Command  *ActionCommand
	Result   *BridgeResult
	Failure  *Failure
	Messages []UIMessage
	Snapshot *ProjectSnapshot
}

// DispatchService exposes the use-case boundary for handling a turn.
type DispatchService interface {
	Run(TurnRequest) (TurnResponse, error)
}
