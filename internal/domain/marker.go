package domain

// Marker is one timeline annotation.
type Marker struct {
	Index        int     `json:"index"`
	Time         float64 `json:"time"`
	Comment      string  `json:"comment"`
	Chapter      string  `json:"chapter,omitempty"`
	URL          string  `json:"url,omitempty"`
	FrameTarget  string  `json:"frameTarget,omitempty"`
	CuePointName string  `json:"cuePointName,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	Label        int     `json:"label,omitempty"`
}

// MarkerFields is a partial marker; nil fields are left untouched.
type MarkerFields struct {
	Time         *float64
	Comment      *string
	Chapter      *string
	URL          *string
	FrameTarget  *string
	CuePointName *string
	Duration     *float64
	Label        *int
}

// Overlay applies the supplied fields on top of m.
func (f MarkerFields) Overlay(m Marker) Marker {
	if f.Time != nil {
		m.Time = *f.Time
	}
	if f.Comment != nil {
		m.Comment = *f.Comment
	}
	if f.Chapter != nil {
		m.Chapter = *f.Chapter
	}
	if f.URL != nil {
		m.URL = *f.URL
	}
	if f.FrameTarget != nil {
		m.FrameTarget = *f.FrameTarget
	}
	if f.CuePointName != nil {
		m.CuePointName = *f.CuePointName
	}
	if f.Duration != nil {
		m.Duration = *f.Duration
	}
	if f.Label != nil {
		m.Label = *f.Label
	}
	return m
}

// MarkerTarget addresses a marker timeline: the composition when LayerIndex is 0.
type MarkerTarget struct {
	LayerIndex int
}

// IsComp reports whether the target is the composition timeline.
func (t MarkerTarget) IsComp() bool {
	return t.LayerIndex == 0
}

// Layer is a layer of the active composition, 1-based.
type Layer struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Color string `json:"color,omitempty"`
}

// Layer types.
const (
	LayerTypeNull  = "null"
	LayerTypeText  = "text"
	LayerTypeSolid = "solid"
)

// Composition is the host's project container.
type Composition struct {
	Name        string  `json:"name"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Duration    float64 `json:"duration"`
	FrameRate   float64 `json:"frameRate"`
	CurrentTime float64 `json:"currentTime"`
}
