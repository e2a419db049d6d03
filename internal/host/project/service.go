// Package project implements the host-side composition and layer actions.
package project

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/host/store"
)

// Composition defaults for createComp.
const (
	DefaultWidth     = 1920
	DefaultHeight    = 1080
	DefaultDuration  = 10.0
	DefaultFrameRate = 30.0
)

var hexColor = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// Service implements the project and layer actions against the project file.
type Service struct {
	store *store.Store
}

// NewService binds the service to a project file.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// Info describes the active composition. Active is false when there is none.
type Info struct {
	Active bool `json:"active"`
	domain.Composition
	NumLayers int `json:"numLayers"`
}

// Snapshot converts Info into the read-only snapshot; nil without an active composition.
func (i Info) Snapshot() *domain.ProjectSnapshot {
	if !i.Active {
		return nil
	}
	return &domain.ProjectSnapshot{Name: i.Name, Width: i.Width, Height: i.Height}
}

// ProjectInfo reports the active composition.
func (s *Service) ProjectInfo(ctx context.Context) (Info, error) {
	q := s.store.DB()
	comp, err := store.ActiveComposition(ctx, q)
	if errors.Is(err, store.ErrNoActiveComposition) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, err
	}
	layers, err := store.Layers(ctx, q, comp.ID)
	if err != nil {
		return Info{}, err
	}
	return Info{Active: true, Composition: comp.Composition, NumLayers: len(layers)}, nil
}

// CreateComp adds a composition and makes it active. Zero sizes take the defaults.
func (s *Service) CreateComp(ctx context.Context, comp domain.Composition) (domain.Composition, error) {
	comp.Name = strings.TrimSpace(comp.Name)
	if comp.Name == "" {
		return domain.Composition{}, fmt.Errorf("composition name is required")
	}
	if comp.Width == 0 {
		comp.Width = DefaultWidth
	}
	if comp.Height == 0 {
		comp.Height = DefaultHeight
	}
	if comp.Duration == 0 {
		comp.Duration = DefaultDuration
	}
	if comp.FrameRate == 0 {
		comp.FrameRate = DefaultFrameRate
	}
	if comp.Width < 4 || comp.Height < 4 || comp.Width > 30000 || comp.Height > 30000 {
		return domain.Composition{}, fmt.Errorf("invalid composition size %dx%d", comp.Width, comp.Height)
	}
	comp.CurrentTime = 0

	err := s.store.WithTx(ctx, func(q store.Querier) error {
		if _, exists, err := store.CompositionByName(ctx, q, comp.Name); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("composition %q already exists", comp.Name)
		}
		id, err := store.InsertComposition(ctx, q, comp)
		if err != nil {
			return err
		}
		return store.Activate(ctx, q, id)
	})
	return comp, err
}

// SetActiveComp activates an existing composition by name.
func (s *Service) SetActiveComp(ctx context.Context, name string) (domain.Composition, error) {
	var comp store.CompRecord
	err := s.store.WithTx(ctx, func(q store.Querier) error {
		found, exists, err := store.CompositionByName(ctx, q, name)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("composition %q not found", name)
		}
		comp = found
		return store.Activate(ctx, q, found.ID)
	})
	return comp.Composition, err
}

// SetCurrentTime moves the playhead within the composition duration.
func (s *Service) SetCurrentTime(ctx context.Context, seconds float64) (float64, error) {
	err := s.store.WithTx(ctx, func(q store.Querier) error {
		comp, err := store.ActiveComposition(ctx, q)
		if err != nil {
			return err
		}
		if seconds < 0 || seconds > comp.Duration {
			return fmt.Errorf("time %gs is outside the composition (0-%gs)", seconds, comp.Duration)
		}
		return store.SetPlayhead(ctx, q, comp.ID, seconds)
	})
	return seconds, err
}

// ListLayers returns the active composition's layers.
func (s *Service) ListLayers(ctx context.Context) ([]domain.Layer, error) {
	q := s.store.DB()
	comp, err := store.ActiveComposition(ctx, q)
	if err != nil {
		return nil, err
	}
	records, err := store.Layers(ctx, q, comp.ID)
	if err != nil {
		return nil, err
	}
	layers := make([]domain.Layer, 0, len(records))
	for _, rec := range records {
		layers = append(layers, rec.Layer)
	}
	return layers, nil
}

// AddLayer appends a layer of the given type and returns it with its index.
func (s *Service) AddLayer(ctx context.Context, layer domain.Layer) (domain.Layer, error) {
	switch layer.Type {
	case domain.LayerTypeNull, domain.LayerTypeText, domain.LayerTypeSolid:
	default:
		return domain.Layer{}, fmt.Errorf("unknown layer type %q", layer.Type)
	}
	if layer.Color != "" {
		if !hexColor.MatchString(layer.Color) {
			return domain.Layer{}, fmt.Errorf("invalid color %q: expected #rrggbb", layer.Color)
		}
		layer.Color = "#" + strings.ToLower(strings.TrimPrefix(layer.Color, "#"))
	}
	if strings.TrimSpace(layer.Name) == "" {
		layer.Name = defaultLayerName(layer)
	}

	var added domain.Layer
	err := s.store.WithTx(ctx, func(q store.Querier) error {
		comp, err := store.ActiveComposition(ctx, q)
		if err != nil {
			return err
		}
		if _, err := store.InsertLayer(ctx, q, comp.ID, layer); err != nil {
			return err
		}
		records, err := store.Layers(ctx, q, comp.ID)
		if err != nil {
			return err
		}
		added = records[len(records)-1].Layer
		return nil
	})
	return added, err
}

func defaultLayerName(layer domain.Layer) string {
	switch layer.Type {
	case domain.LayerTypeText:
		if text := strings.TrimSpace(layer.Text); text != "" {
			return text
		}
		return "Text"
	case domain.LayerTypeSolid:
		return "Solid"
	default:
		return "Null"
	}
}

// RenameLayer sets a layer's name.
func (s *Service) RenameLayer(ctx context.Context, index int, name string) (domain.Layer, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Layer{}, fmt.Errorf("layer name is required")
	}
	return s.editLayer(ctx, index, func(rec *store.LayerRecord) error {
		rec.Name = name
		return nil
	})
}

// SetTextContent replaces the source text of a text layer.
func (s *Service) SetTextContent(ctx context.Context, index int, text string) (domain.Layer, error) {
	return s.editLayer(ctx, index, func(rec *store.LayerRecord) error {
		if rec.Type != domain.LayerTypeText {
			return fmt.Errorf("layer %d is a %s layer, not a text layer", index, rec.Type)
		}
		rec.Text = text
		return nil
	})
}

// DeleteLayer removes a layer and its markers.
func (s *Service) DeleteLayer(ctx context.Context, index int) (domain.Layer, error) {
	var removed domain.Layer
	err := s.store.WithTx(ctx, func(q store.Querier) error {
		comp, rec, err := layerAt(ctx, q, index)
		if err != nil {
			return err
		}
		removed = rec.Layer
		return store.DeleteLayer(ctx, q, comp.ID, rec.ID)
	})
	return removed, err
}

func (s *Service) editLayer(ctx context.Context, index int, edit func(rec *store.LayerRecord) error) (domain.Layer, error) {
	var updated domain.Layer
	err := s.store.WithTx(ctx, func(q store.Querier) error {
		_, rec, err := layerAt(ctx, q, index)
		if err != nil {
			return err
		}
		if err := edit(&rec); err != nil {
			return err
		}
		if err := store.UpdateLayer(ctx, q, rec); err != nil {
			return err
		}
		updated = rec.Layer
		return nil
	})
	return updated, err
}

func layerAt(ctx context.Context, q store.Querier, index int) (store.CompRecord, store.LayerRecord, error) {
	comp, err := store.ActiveComposition(ctx, q)
	if err != nil {
		return store.CompRecord{}, store.LayerRecord{}, err
	}
	records, err := store.Layers(ctx, q, comp.ID)
	if err != nil {
		return store.CompRecord{}, store.LayerRecord{}, err
	}
	if index < 1 || index > len(records) {
		return store.CompRecord{}, store.LayerRecord{}, fmt.Errorf("invalid layer index %d: composition has %d layer(s)", index, len(records))
	}
	return comp, records[index-1], nil
}
