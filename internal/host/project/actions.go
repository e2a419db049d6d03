package project

import (
	"context"
	"encoding/json"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/host"
)

const layerIndexSchema = `{
	"type": "object",
	"properties": {"layerIndex": {"type": "integer"}},
	"required": ["layerIndex"]
}`

// Actions returns the registry entries backed by s.
func (s *Service) Actions() []host.Action {
	return []host.Action{
		{Name: "getProjectInfo", Handler: s.handleProjectInfo},
		{Name: "createComp", Handler: s.handleCreateComp, Schema: `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"width": {"type": "integer"},
		"height": {"type": "integer"},
		"duration": {"type": "number", "minimum": 0},
		"frameRate": {"type": "number", "minimum": 0}
	},
	"required": ["name"]
}`},
		{Name: "setActiveComp", Handler: s.handleSetActiveComp, Schema: `{
	"type": "object",
	"properties": {"name": {"type": "string"}},
	"required": ["name"]
}`},
		{Name: "setCurrentTime", Handler: s.handleSetCurrentTime, Schema: `{
	"type": "object",
	"properties": {"time": {"type": "number"}},
	"required": ["time"]
}`},
		{Name: "listLayers", Handler: s.handleListLayers},
		{Name: "addNullLayer", Handler: s.addLayerHandler(domain.LayerTypeNull), Schema: `{
	"type": "object",
	"properties": {"name": {"type": "string"}}
}`},
		{Name: "addTextLayer", Handler: s.addLayerHandler(domain.LayerTypeText), Schema: `{
	"type": "object",
	"properties": {"name": {"type": "string"}, "text": {"type": "string"}},
	"required": ["text"]
}`},
		{Name: "addSolidLayer", Handler: s.addLayerHandler(domain.LayerTypeSolid), Schema: `{
	"type": "object",
	"properties": {"name": {"type": "string"}, "color": {"type": "string"}}
}`},
		{Name: "renameLayer", Handler: s.handleRenameLayer, Schema: `{
	"type": "object",
	"properties": {"layerIndex": {"type": "integer"}, "name": {"type": "string"}},
	"required": ["layerIndex", "name"]
}`},
		{Name: "setTextContent", Handler: s.handleSetTextContent, Schema: `{
	"type": "object",
	"properties": {"layerIndex": {"type": "integer"}, "text": {"type": "string"}},
	"required": ["layerIndex", "text"]
}`},
		{Name: "deleteLayer", Handler: s.handleDeleteLayer, Schema: layerIndexSchema},
	}
}

type layerResult struct {
	Layer domain.Layer `json:"layer"`
}

func (s *Service) handleProjectInfo(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.ProjectInfo(ctx)
}

func (s *Service) handleCreateComp(ctx context.Context, raw json.RawMessage) (any, error) {
	var comp domain.Composition
	if err := json.Unmarshal(raw, &comp); err != nil {
		return nil, err
	}
	created, err := s.CreateComp(ctx, comp)
	if err != nil {
		return nil, err
	}
	return struct {
		Composition domain.Composition `json:"composition"`
	}{created}, nil
}

func (s *Service) handleSetActiveComp(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	comp, err := s.SetActiveComp(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	return struct {
		Composition domain.Composition `json:"composition"`
	}{comp}, nil
}

func (s *Service) handleSetCurrentTime(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Time float64 `json:"time"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	seconds, err := s.SetCurrentTime(ctx, p.Time)
	if err != nil {
		return nil, err
	}
	return struct {
		Time float64 `json:"time"`
	}{seconds}, nil
}

func (s *Service) handleListLayers(ctx context.Context, _ json.RawMessage) (any, error) {
	layers, err := s.ListLayers(ctx)
	if err != nil {
		return nil, err
	}
	return struct {
		Layers []domain.Layer `json:"layers"`
		Count  int            `json:"count"`
	}{Layers: layers, Count: len(layers)}, nil
}

func (s *Service) addLayerHandler(layerType string) host.Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var layer domain.Layer
		if err := json.Unmarshal(raw, &layer); err != nil {
			return nil, err
		}
		layer.Index = 0
		layer.Type = layerType
		added, err := s.AddLayer(ctx, layer)
		if err != nil {
			return nil, err
		}
		return layerResult{Layer: added}, nil
	}
}

type layerParams struct {
	LayerIndex host.WholeNumber `json:"layerIndex"`
	Name       string           `json:"name"`
	Text       string           `json:"text"`
}

func (s *Service) handleRenameLayer(ctx context.Context, raw json.RawMessage) (any, error) {
	var p layerParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	layer, err := s.RenameLayer(ctx, int(p.LayerIndex), p.Name)
	if err != nil {
		return nil, err
	}
	return layerResult{Layer: layer}, nil
}

func (s *Service) handleSetTextContent(ctx context.Context, raw json.RawMessage) (any, error) {
	var p layerParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	layer, err := s.SetTextContent(ctx, int(p.LayerIndex), p.Text)
	if err != nil {
		return nil, err
	}
	return layerResult{Layer: layer}, nil
}

func (s *Service) handleDeleteLayer(ctx context.Context, raw json.RawMessage) (any, error) {
	var p layerParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	layer, err := s.DeleteLayer(ctx, int(p.LayerIndex))
	if err != nil {
		return nil, err
	}
	return struct {
		Removed domain.Layer `json:"removed"`
	}{layer}, nil
}
