package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/doeshing/compai/internal/domain"
)

// ModelSwitcher is the part of the conversation client the REPL controls directly.
type ModelSwitcher interface {
	SetChatModel(name string) error
	ChatModel() string
	Reset()
}

// SnapshotSource reports the last known project snapshot.
type SnapshotSource interface {
	Current() *domain.ProjectSnapshot
}

// ChatSession is the interactive read-eval-print loop over the dispatch service.
type ChatSession struct {
	Dispatch  domain.DispatchService
	Client    ModelSwitcher
	Snapshots SnapshotSource

	In  io.Reader
	Out io.Writer
	// Interactive enables the prompt and the waiting spinner.
	Interactive bool
	ShowUsage   bool
}

const chatHelp = `Commands:
  /reset          forget the conversation
  /model [name]   show or switch the chat model
  /snapshot       show the active composition
  /quit           leave`

// Run reads one message per line until EOF, /quit or ctx is done.
func (s *ChatSession) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if s.Interactive {
			fmt.Fprint(s.Out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := s.command(line); quit {
				return nil
			}
			continue
		}
		if err := s.turn(ctx, line); err != nil {
			return err
		}
	}
}

func (s *ChatSession) turn(ctx context.Context, message string) error {
	var spinner *Spinner
	if s.Interactive {
		spinner = NewSpinner(s.Out, "thinking")
		spinner.Start()
	}
	resp, err := s.Dispatch.Run(domain.TurnRequest{Context: ctx, Message: message})
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}
	RenderTurn(s.Out, resp, s.ShowUsage)
	return nil
}

func (s *ChatSession) command(line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/reset":
		s.Client.Reset()
		fmt.Fprintln(s.Out, "Conversation reset.")
	case "/model":
		if len(fields) == 1 {
			fmt.Fprintf(s.Out, "Chat model: %s\n", s.Client.ChatModel())
			return false
		}
		if err := s.Client.SetChatModel(fields[1]); err != nil {
			fmt.Fprintln(s.Out, indent("[error] ", err.Error()))
			return false
		}
		fmt.Fprintf(s.Out, "Chat model set to %s\n", fields[1])
	case "/snapshot":
		RenderSnapshot(s.Out, s.Snapshots.Current())
	case "/help":
		fmt.Fprintln(s.Out, chatHelp)
	default:
		fmt.Fprintf(s.Out, "Unknown command %s\n%s\n", fields[0], chatHelp)
	}
	return false
}
