package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/compai/internal/domain"
)

// RenderTurn prints the chat messages of one turn in a friendly, ASCII-only format.
func RenderTurn(out io.Writer, resp domain.TurnResponse, showUsage bool) {
	for _, msg := range resp.Messages {
		renderMessage(out, msg)
	}
	if showUsage && resp.Usage.TotalTokens > 0 {
		fmt.Fprintf(out, "(%s tokens: %s prompt, %s completion)\n",
			humanize.Comma(int64(resp.Usage.TotalTokens)),
			humanize.Comma(int64(resp.Usage.PromptTokens)),
			humanize.Comma(int64(resp.Usage.CompletionTokens)))
	}
}

func renderMessage(out io.Writer, msg domain.UIMessage) {
	switch msg.Kind {
	case domain.UISystem:
		fmt.Fprintln(out, indent("[system] ", msg.Text))
	case domain.UIError:
		fmt.Fprintln(out, indent("[error] ", msg.Text))
	default:
		fmt.Fprintln(out, msg.Text)
	}
}

// indent prefixes the first line and aligns the rest under it.
func indent(prefix, text string) string {
	pad := strings.Repeat(" ", len(prefix))
	return prefix + strings.ReplaceAll(text, "\n", "\n"+pad)
}

// RenderSnapshot prints the active composition summary.
func RenderSnapshot(out io.Writer, snapshot *domain.ProjectSnapshot) {
	if snapshot == nil {
		fmt.Fprintln(out, "No active composition.")
		return
	}
	fmt.Fprintf(out, "Active composition: %s (%dx%d)\n", snapshot.Name, snapshot.Width, snapshot.Height)
}

// RenderResult prints an operator-issued call's envelope.
func RenderResult(out io.Writer, result domain.BridgeResult, messages []domain.UIMessage) {
	for _, msg := range messages {
		renderMessage(out, msg)
	}
	if !result.Success || len(result.Data) == 0 {
		return
	}
	data, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintln(out, string(data))
}

// RenderAnalysis prints a frame analysis, with the salvaged fields when present.
func RenderAnalysis(out io.Writer, analysis domain.FrameAnalysis) {
	if !analysis.Success {
		fmt.Fprintln(out, indent("[error] ", analysis.Error))
		return
	}
	if analysis.Analysis == nil {
		fmt.Fprintln(out, analysis.Content)
		return
	}
	keys := make([]string, 0, len(analysis.Analysis))
	for key := range analysis.Analysis {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value, err := json.Marshal(analysis.Analysis[key])
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", key, value)
	}
	if analysis.Usage.TotalTokens > 0 {
		fmt.Fprintf(out, "(%s tokens)\n", humanize.Comma(int64(analysis.Usage.TotalTokens)))
	}
}

// RenderActions prints catalog entries grouped by category.
func RenderActions(out io.Writer, actions []domain.ActionDescriptor) {
	if len(actions) == 0 {
		fmt.Fprintln(out, "No matching actions.")
		return
	}
	sorted := append([]domain.ActionDescriptor(nil), actions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Category < sorted[j].Category })

	var category domain.ActionCategory
	for _, desc := range sorted {
		if desc.Category != category {
			category = desc.Category
			fmt.Fprintf(out, "%s:\n", category)
		}
		mode := ""
		if desc.ReadOnly {
			mode = " (read-only)"
		}
		fmt.Fprintf(out, "  %-22s %s%s\n", desc.Name, desc.Description, mode)
	}
}

// RenderDoctorReport prints one line per check.
func RenderDoctorReport(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		fmt.Fprintf(out, "[%s] %s - %s\n", strings.ToUpper(string(check.Status)), check.Name, check.Details)
	}
}
