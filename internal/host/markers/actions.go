package markers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/host"
)

// markerParams is the wire shape of marker attributes. Absent fields stay nil.
type markerParams struct {
	Time         *float64          `json:"time"`
	Comment      *string           `json:"comment"`
	Chapter      *string           `json:"chapter"`
	URL          *string           `json:"url"`
	FrameTarget  *string           `json:"frameTarget"`
	CuePointName *string           `json:"cuePointName"`
	Duration     *float64          `json:"duration"`
	Label        *host.WholeNumber `json:"label"`
}

func (p markerParams) fields() domain.MarkerFields {
	return domain.MarkerFields{
		Time:         p.Time,
		Comment:      p.Comment,
		Chapter:      p.Chapter,
		URL:          p.URL,
		FrameTarget:  p.FrameTarget,
		CuePointName: p.CuePointName,
		Duration:     p.Duration,
		Label:        p.Label.IntPtr(),
	}
}

const markerProperties = `
	"time": {"type": "number", "minimum": 0},
	"comment": {"type": "string"},
	"chapter": {"type": "string"},
	"url": {"type": "string"},
	"frameTarget": {"type": "string"},
	"cuePointName": {"type": "string"},
	"duration": {"type": "number", "minimum": 0},
	"label": {"type": "integer", "minimum": 0, "maximum": 16}`

var (
	addCompMarkerSchema = `{
	"type": "object",
	"properties": {` + markerProperties + `},
	"required": ["comment"]
}`
	addLayerMarkerSchema = `{
	"type": "object",
	"properties": {
		"layerIndex": {"type": "integer"},
		"time": {"type": "number", "minimum": 0},
		"comment": {"type": "string"},
		"duration": {"type": "number", "minimum": 0},
		"label": {"type": "integer", "minimum": 0, "maximum": 16}
	},
	"required": ["layerIndex", "comment"]
}`
	listLayerMarkersSchema = `{
	"type": "object",
	"properties": {"layerIndex": {"type": "integer"}},
	"required": ["layerIndex"]
}`
	removeMarkerSchema = `{
	"type": "object",
	"properties": {
		"layerIndex": {"type": "integer"},
		"markerIndex": {"type": "integer"},
		"time": {"type": "number"}
	},
	"anyOf": [{"required": ["markerIndex"]}, {"required": ["time"]}]
}`
	updateMarkerSchema = `{
	"type": "object",
	"properties": {
		"layerIndex": {"type": "integer"},
		"markerIndex": {"type": "integer"},
		"fields": {"type": "object", "properties": {` + markerProperties + `}, "additionalProperties": false}
	},
	"required": ["markerIndex"]
}`
	addMarkersFromArraySchema = `{
	"type": "object",
	"properties": {
		"markers": {"type": "array", "items": {"type": "object"}}
	},
	"required": ["markers"]
}`
)

// Actions returns the registry entries backed by s.
func (s *Service) Actions() []host.Action {
	return []host.Action{
		{Name: "addCompMarker", Schema: addCompMarkerSchema, Handler: s.handleAddComp},
		{Name: "addLayerMarker", Schema: addLayerMarkerSchema, Handler: s.handleAddLayer},
		{Name: "listCompMarkers", Handler: s.handleListComp},
		{Name: "listLayerMarkers", Schema: listLayerMarkersSchema, Handler: s.handleListLayer},
		{Name: "removeMarker", Schema: removeMarkerSchema, Handler: s.handleRemove},
		{Name: "updateMarker", Schema: updateMarkerSchema, Handler: s.handleUpdate},
		{Name: "addMarkersFromArray", Schema: addMarkersFromArraySchema, Handler: s.handleAddArray},
	}
}

type markerResult struct {
	Marker  domain.Marker `json:"marker"`
	Time    float64       `json:"time"`
	Comment string        `json:"comment"`
	Count   int           `json:"count,omitempty"`
}

type listResult struct {
	Markers []domain.Marker `json:"markers"`
	Count   int             `json:"count"`
}

func (s *Service) handleAddComp(ctx context.Context, raw json.RawMessage) (any, error) {
	var p markerParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	marker, err := s.AddProjectMarker(ctx, p.fields())
	if err != nil {
		return nil, err
	}
	return s.withCount(ctx, domain.MarkerTarget{}, marker)
}

func (s *Service) handleAddLayer(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		markerParams
		LayerIndex host.WholeNumber `json:"layerIndex"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	marker, err := s.AddLayerMarker(ctx, int(p.LayerIndex), p.fields())
	if err != nil {
		return nil, err
	}
	return s.withCount(ctx, domain.MarkerTarget{LayerIndex: int(p.LayerIndex)}, marker)
}

func (s *Service) withCount(ctx context.Context, target domain.MarkerTarget, marker domain.Marker) (any, error) {
	current, err := s.List(ctx, target)
	if err != nil {
		return nil, err
	}
	return markerResult{Marker: marker, Time: marker.Time, Comment: marker.Comment, Count: len(current)}, nil
}

func (s *Service) handleListComp(ctx context.Context, _ json.RawMessage) (any, error) {
	current, err := s.ListProjectMarkers(ctx)
	if err != nil {
		return nil, err
	}
	return listResult{Markers: current, Count: len(current)}, nil
}

func (s *Service) handleListLayer(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		LayerIndex host.WholeNumber `json:"layerIndex"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	current, err := s.ListLayerMarkers(ctx, int(p.LayerIndex))
	if err != nil {
		return nil, err
	}
	return listResult{Markers: current, Count: len(current)}, nil
}

func (s *Service) handleRemove(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		LayerIndex  host.WholeNumber  `json:"layerIndex"`
		MarkerIndex *host.WholeNumber `json:"markerIndex"`
		Time        *float64          `json:"time"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	target := domain.MarkerTarget{LayerIndex: int(p.LayerIndex)}
	removed, err := s.RemoveMarker(ctx, target, Selector{Index: p.MarkerIndex.IntPtr(), Time: p.Time})
	if err != nil {
		return nil, err
	}
	current, err := s.List(ctx, target)
	if err != nil {
		return nil, err
	}
	return struct {
		Removed domain.Marker `json:"removed"`
		Count   int           `json:"count"`
	}{Removed: removed, Count: len(current)}, nil
}

func (s *Service) handleUpdate(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		LayerIndex  host.WholeNumber `json:"layerIndex"`
		MarkerIndex host.WholeNumber `json:"markerIndex"`
		Fields      markerParams     `json:"fields"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	updated, err := s.UpdateMarker(ctx, domain.MarkerTarget{LayerIndex: int(p.LayerIndex)}, int(p.MarkerIndex), p.Fields.fields())
	if err != nil {
		return nil, err
	}
	return markerResult{Marker: updated, Time: updated.Time, Comment: updated.Comment}, nil
}

func (s *Service) handleAddArray(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Markers []json.RawMessage `json:"markers"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	items := make([]domain.MarkerFields, 0, len(p.Markers))
	for i, rawItem := range p.Markers {
		var item markerParams
		if err := json.Unmarshal(rawItem, &item); err != nil {
			// Items before the bad one are still written.
			added, addErr := s.AddMarkersFromArray(ctx, items)
			if addErr != nil {
				return addedResult(added), addErr
			}
			return addedResult(added), fmt.Errorf("marker %d: %w", i+1, err)
		}
		items = append(items, item.fields())
	}

	added, err := s.AddMarkersFromArray(ctx, items)
	return addedResult(added), err
}

func addedResult(n int) any {
	return struct {
		Added int `json:"added"`
	}{Added: n}
}
