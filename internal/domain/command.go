package domain

// ActionCommand is the structured command extracted from assistant text.
type ActionCommand struct {
	Action      string         `json:"action"`
	Params      map[string]any `json:"params"`
	Explanation string         `json:"explanation,omitempty"`
	ManualSteps []string       `json:"manualSteps,omitempty"`
	FollowUp    []string       `json:"followUp,omitempty"`
}

// ActionCategory groups catalog entries for prompts and listings.
type ActionCategory string

const (
	CategoryProject ActionCategory = "project"
	CategoryLayer   ActionCategory = "layer"
	CategoryMarker  ActionCategory = "marker"
)

// ActionDescriptor is one catalog entry. The full set is the authorization boundary.
type ActionDescriptor struct {
	Name                  string            `yaml:"name" json:"name"`
	Category              ActionCategory    `yaml:"category" json:"category"`
	Description           string            `yaml:"description" json:"description"`
	Params                map[string]string `yaml:"params" json:"params"`
	LayerTypeConstraint   string            `yaml:"layer_type,omitempty" json:"layerType,omitempty"`
	RequiresExistingLayer bool              `yaml:"requires_layer" json:"requiresExistingLayer"`
	ReadOnly              bool              `yaml:"read_only" json:"readOnly"`
}

// Catalog is the versioned action catalog file.
type Catalog struct {
	Version string             `yaml:"version"`
	Actions []ActionDescriptor `yaml:"actions"`
}
