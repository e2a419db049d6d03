package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/ports"
)

// ActionCompleted is shown after a successful host call.
const ActionCompleted = "Action completed"

// Service orchestrates one turn end-to-end: converse, extract, authorize, call, fold back.
type Service struct {
	Conversation ports.ConversationClient
	Extractor    ports.CommandExtractor
	Authorizer   ports.ActionAuthorizer
	Bridge       ports.BridgeTransport
	Snapshots    *SnapshotTracker
	Logger       ports.Logger
}

// Run processes a single user turn. Turn failures are reported on the response;
// the error is reserved for missing dependencies.
func (s *Service) Run(req domain.TurnRequest) (resp domain.TurnResponse, err error) {
	if s.Conversation == nil || s.Extractor == nil || s.Authorizer == nil ||
		s.Bridge == nil || s.Logger == nil {
		return domain.TurnResponse{}, errors.New("dispatch.Service dependencies not satisfied")
	}

	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}

	resp = domain.TurnResponse{TurnID: uuid.NewString()}
	defer func() { resp.Snapshot = s.currentSnapshot() }()

	s.Logger.Debug("turn started", map[string]interface{}{"turn_id": resp.TurnID})
	chat := s.Conversation.Converse(ctx, req.Message)
	if !chat.Success {
		message := fmt.Sprintf("Connection error: %s", chat.Error)
		resp.Failure = &domain.Failure{Kind: domain.FailureTransport, Message: message}
		resp.Messages = append(resp.Messages, domain.UIMessage{Kind: domain.UIError, Text: message})
		return resp, nil
	}

	resp.Reply = chat.Content
	resp.Usage = chat.Usage
	resp.Messages = append(resp.Messages, domain.UIMessage{Kind: domain.UIAssistant, Text: chat.Content})

	cmd, ok := s.Extractor.Extract(chat.Content)
	if !ok {
		return resp, nil
	}
	resp.Command = &cmd

	result, messages := s.Execute(ctx, cmd)
	resp.Result = &result
	resp.Messages = append(resp.Messages, messages...)
	if !result.Success {
		resp.Failure = &domain.Failure{Kind: result.Kind, Message: result.Error}
	}
	return resp, nil
}

// Execute authorizes and runs one command and renders its outcome.
// It is shared by the conversational path and operator-issued calls.
func (s *Service) Execute(ctx context.Context, cmd domain.ActionCommand) (domain.BridgeResult, []domain.UIMessage) {
	var result domain.BridgeResult
	descriptor, _ := s.Authorizer.Describe(cmd.Action)

	if !s.Authorizer.IsAuthorized(cmd.Action) {
		s.Logger.Warn("rejected unauthorized action", map[string]interface{}{"action": cmd.Action})
		result = domain.FailedResult(domain.FailureUnauthorized, "Invalid action: "+cmd.Action)
	} else {
		s.Logger.Info("dispatching action", map[string]interface{}{
			"action":   cmd.Action,
			"category": string(descriptor.Category),
		})
		result = s.Bridge.Call(ctx, cmd.Action, cmd.Params)
	}

	var messages []domain.UIMessage
	if result.Success {
		messages = append(messages, domain.UIMessage{Kind: domain.UISystem, Text: ActionCompleted})
		if !descriptor.ReadOnly && s.Snapshots != nil {
			s.Snapshots.Refresh(ctx)
		}
	} else {
		messages = append(messages, domain.UIMessage{Kind: domain.UIError, Text: result.Error})
	}

	if len(cmd.ManualSteps) > 0 {
		messages = append(messages, domain.UIMessage{Kind: domain.UISystem, Text: numbered("Manual steps:", cmd.ManualSteps)})
	}
	if len(cmd.FollowUp) > 0 {
		messages = append(messages, domain.UIMessage{Kind: domain.UISystem, Text: numbered("Next:", cmd.FollowUp)})
	}
	return result, messages
}

func (s *Service) currentSnapshot() *domain.ProjectSnapshot {
	if s.Snapshots == nil {
		return nil
	}
	return s.Snapshots.Current()
}

func numbered(title string, items []string) string {
	var b strings.Builder
	b.WriteString(title)
	for i, item := range items {
		fmt.Fprintf(&b, "\n%d. %s", i+1, item)
	}
	return b.String()
}

var _ domain.DispatchService = (*Service)(nil)
