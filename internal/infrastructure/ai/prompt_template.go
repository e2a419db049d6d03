package ai

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/doeshing/compai/internal/domain"
)

// CatalogSource exposes the descriptors the system instruction advertises.
type CatalogSource interface {
	ByCategory() map[domain.ActionCategory][]domain.ActionDescriptor
}

const systemPromptTemplate = `You are an assistant embedded in a compositing application.
You can answer questions and you can operate the application by emitting exactly one command.

To run an action, reply with a fenced json block:
` + "```json" + `
{"action": "<name>", "params": {...}, "explanation": "<what it does>", "manualSteps": ["..."], "followUp": ["..."]}
` + "```" + `
Only the actions listed below exist. Never invent action names. Layer and marker indices are 1-based.
If a request cannot be done with these actions, explain the manual steps instead of emitting a command.
{{range .Groups}}
## {{.Category}}
{{range .Actions}}- {{.Name}}{{if .Params}}({{.Params}}){{end}}: {{.Description}}{{if .Notes}} [{{.Notes}}]{{end}}
{{end}}{{end}}`

type promptGroup struct {
	Category string
	Actions  []promptAction
}

type promptAction struct {
	Name        string
	Params      string
	Description string
	Notes       string
}

// RenderSystemPrompt builds the fixed capability description sent with every request.
func RenderSystemPrompt(catalog CatalogSource) (string, error) {
	tmpl, err := template.New("system").Parse(systemPromptTemplate)
	if err != nil {
		return "", err
	}

	grouped := catalog.ByCategory()
	categories := make([]string, 0, len(grouped))
	for category := range grouped {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)

	data := struct{ Groups []promptGroup }{}
	for _, category := range categories {
		group := promptGroup{Category: category}
		for _, desc := range grouped[domain.ActionCategory(category)] {
			group.Actions = append(group.Actions, promptAction{
				Name:        desc.Name,
				Params:      paramsSummary(desc.Params),
				Description: desc.Description,
				Notes:       descriptorNotes(desc),
			})
		}
		data.Groups = append(data.Groups, group)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func paramsSummary(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", key, params[key]))
	}
	return strings.Join(parts, ", ")
}

func descriptorNotes(desc domain.ActionDescriptor) string {
	var notes []string
	if desc.RequiresExistingLayer {
		notes = append(notes, "layer must exist")
	}
	if desc.LayerTypeConstraint != "" {
		notes = append(notes, desc.LayerTypeConstraint+" layers only")
	}
	if desc.ReadOnly {
		notes = append(notes, "read-only")
	}
	return strings.Join(notes, "; ")
}

var analysisInstructions = map[domain.AnalysisType]string{
	domain.AnalysisFull: `Analyze this frame from a composition. Reply with JSON only:
{"summary": string, "subjects": [string], "lighting": {"key": string, "direction": string, "temperature": string},
 "colors": {"dominant": [string], "palette": string}, "issues": [string], "suggestions": [string]}`,
	domain.AnalysisCoin: `Inspect the coin or round object in this frame for tracking and compositing. Reply with JSON only:
{"found": bool, "center": {"x": number, "y": number}, "radius": number, "rotation": number,
 "material": string, "edgeQuality": string, "suggestions": [string]}`,
	domain.AnalysisLighting: `Describe the lighting of this frame so inserted elements can match it. Reply with JSON only:
{"keyLight": {"direction": string, "intensity": string, "color": string}, "fillLight": string,
 "shadows": {"softness": string, "direction": string}, "ambient": string, "suggestions": [string]}`,
	domain.AnalysisColor: `Describe the color grade of this frame. Reply with JSON only:
{"dominant": [string], "shadows": string, "midtones": string, "highlights": string,
 "contrast": string, "saturation": string, "suggestions": [string]}`,
}

func analysisInstruction(kind domain.AnalysisType) (string, error) {
	instruction, ok := analysisInstructions[kind]
	if !ok {
		return "", fmt.Errorf("unknown analysis type %q", kind)
	}
	return instruction, nil
}
