// Package markers is the host-side marker timeline service. Markers live on the active
// composition's timeline or on one of its layers; indices are 1-based in time order.
package markers

import (
	"context"
	"fmt"
	"math"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/host/store"
)

// Service implements the marker actions against the project file.
type Service struct {
	store *store.Store
}

// NewService binds the service to a project file.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// IndexError reports a marker index outside 1..Count.
type IndexError struct {
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("invalid marker index %d: timeline has %d marker(s)", e.Index, e.Count)
}

// LayerIndexError reports a layer index that does not resolve to a layer.
type LayerIndexError struct {
	Index int
	Count int
}

func (e *LayerIndexError) Error() string {
	return fmt.Sprintf("invalid layer index %d: composition has %d layer(s)", e.Index, e.Count)
}

// Selector picks a marker by index, or by nearest time when Index is nil.
type Selector struct {
	Index *int
	Time  *float64
}

// timeline is a resolved marker target.
type timeline struct {
	comp    store.CompRecord
	layerID int64
}

func (s *Service) resolve(ctx context.Context, q store.Querier, target domain.MarkerTarget) (timeline, error) {
	comp, err := store.ActiveComposition(ctx, q)
	if err != nil {
		return timeline{}, err
	}
	if target.IsComp() {
		return timeline{comp: comp}, nil
	}
	layers, err := store.Layers(ctx, q, comp.ID)
	if err != nil {
		return timeline{}, err
	}
	if target.LayerIndex < 1 || target.LayerIndex > len(layers) {
		return timeline{}, &LayerIndexError{Index: target.LayerIndex, Count: len(layers)}
	}
	return timeline{comp: comp, layerID: layers[target.LayerIndex-1].ID}, nil
}

// layerIndexError reports index against the active composition's real layer count.
// Layer actions reach here with 0, which would otherwise address the composition timeline.
func (s *Service) layerIndexError(ctx context.Context, index int) error {
	q := s.store.DB()
	comp, err := store.ActiveComposition(ctx, q)
	if err != nil {
		return err
	}
	layers, err := store.Layers(ctx, q, comp.ID)
	if err != nil {
		return err
	}
	return &LayerIndexError{Index: index, Count: len(layers)}
}

// AddProjectMarker adds a composition marker. Time defaults to the playhead.
func (s *Service) AddProjectMarker(ctx context.Context, fields domain.MarkerFields) (domain.Marker, error) {
	return s.add(ctx, domain.MarkerTarget{}, fields)
}

// AddLayerMarker adds a marker to the layer at layerIndex.
func (s *Service) AddLayerMarker(ctx context.Context, layerIndex int, fields domain.MarkerFields) (domain.Marker, error) {
	if layerIndex == 0 {
		return domain.Marker{}, s.layerIndexError(ctx, layerIndex)
	}
	return s.add(ctx, domain.MarkerTarget{LayerIndex: layerIndex}, fields)
}

func (s *Service) add(ctx context.Context, target domain.MarkerTarget, fields domain.MarkerFields) (domain.Marker, error) {
	var added domain.Marker
	err := s.store.WithTx(ctx, func(q store.Querier) error {
		tl, err := s.resolve(ctx, q, target)
		if err != nil {
			return err
		}
		marker := fields.Overlay(domain.Marker{Time: tl.comp.CurrentTime})
		if err := checkTime(marker.Time); err != nil {
			return err
		}
		if err := store.PutMarker(ctx, q, tl.comp.ID, tl.layerID, marker); err != nil {
			return err
		}
		added, err = find(ctx, q, tl, marker.Time)
		return err
	})
	return added, err
}

// ListProjectMarkers returns the composition timeline.
func (s *Service) ListProjectMarkers(ctx context.Context) ([]domain.Marker, error) {
	return s.List(ctx, domain.MarkerTarget{})
}

// ListLayerMarkers returns one layer's timeline.
func (s *Service) ListLayerMarkers(ctx context.Context, layerIndex int) ([]domain.Marker, error) {
	if layerIndex == 0 {
		return nil, s.layerIndexError(ctx, layerIndex)
	}
	return s.List(ctx, domain.MarkerTarget{LayerIndex: layerIndex})
}

// List returns the target's markers in time order.
func (s *Service) List(ctx context.Context, target domain.MarkerTarget) ([]domain.Marker, error) {
	q := s.store.DB()
	tl, err := s.resolve(ctx, q, target)
	if err != nil {
		return nil, err
	}
	return store.Markers(ctx, q, tl.comp.ID, tl.layerID)
}

// RemoveMarker removes the selected marker and returns it.
func (s *Service) RemoveMarker(ctx context.Context, target domain.MarkerTarget, sel Selector) (domain.Marker, error) {
	var removed domain.Marker
	err := s.store.WithTx(ctx, func(q store.Querier) error {
		tl, err := s.resolve(ctx, q, target)
		if err != nil {
			return err
		}
		current, err := store.Markers(ctx, q, tl.comp.ID, tl.layerID)
		if err != nil {
			return err
		}

		index, err := selectIndex(current, sel)
		if err != nil {
			return err
		}
		removed = current[index-1]
		return store.DeleteMarker(ctx, q, tl.comp.ID, tl.layerID, removed.Time)
	})
	return removed, err
}

// UpdateMarker reads the marker at index, overlays fields and writes a full replacement.
// A changed time moves the marker; moving onto another marker's time is refused.
func (s *Service) UpdateMarker(ctx context.Context, target domain.MarkerTarget, index int, fields domain.MarkerFields) (domain.Marker, error) {
	var updated domain.Marker
	err := s.store.WithTx(ctx, func(q store.Querier) error {
		tl, err := s.resolve(ctx, q, target)
		if err != nil {
			return err
		}
		current, err := store.Markers(ctx, q, tl.comp.ID, tl.layerID)
		if err != nil {
			return err
		}
		if index < 1 || index > len(current) {
			return &IndexError{Index: index, Count: len(current)}
		}

		existing := current[index-1]
		next := fields.Overlay(existing)
		if err := checkTime(next.Time); err != nil {
			return err
		}
		if next.Time != existing.Time {
			for _, other := range current {
				if other.Time == next.Time {
					return fmt.Errorf("marker %d cannot move to %gs: marker %d is already there", index, next.Time, other.Index)
				}
			}
			if err := store.DeleteMarker(ctx, q, tl.comp.ID, tl.layerID, existing.Time); err != nil {
				return err
			}
		}
		if err := store.PutMarker(ctx, q, tl.comp.ID, tl.layerID, next); err != nil {
			return err
		}
		updated, err = find(ctx, q, tl, next.Time)
		return err
	})
	return updated, err
}

// AddMarkersFromArray adds composition markers in order and stops at the first bad item.
// Items written before the failure stay written; the count says how many.
func (s *Service) AddMarkersFromArray(ctx context.Context, items []domain.MarkerFields) (int, error) {
	added := 0
	for i, item := range items {
		if _, err := s.AddProjectMarker(ctx, item); err != nil {
			return added, fmt.Errorf("marker %d: %w", i+1, err)
		}
		added++
	}
	return added, nil
}

func selectIndex(current []domain.Marker, sel Selector) (int, error) {
	if sel.Index != nil {
		if *sel.Index < 1 || *sel.Index > len(current) {
			return 0, &IndexError{Index: *sel.Index, Count: len(current)}
		}
		return *sel.Index, nil
	}
	if sel.Time == nil {
		return 0, fmt.Errorf("markerIndex or time is required")
	}
	if len(current) == 0 {
		return 0, &IndexError{Index: 0, Count: 0}
	}
	best, bestDelta := 1, math.Inf(1)
	for _, m := range current {
		if delta := math.Abs(m.Time - *sel.Time); delta < bestDelta {
			best, bestDelta = m.Index, delta
		}
	}
	return best, nil
}

func find(ctx context.Context, q store.Querier, tl timeline, seconds float64) (domain.Marker, error) {
	current, err := store.Markers(ctx, q, tl.comp.ID, tl.layerID)
	if err != nil {
		return domain.Marker{}, err
	}
	for _, m := range current {
		if m.Time == seconds {
			return m, nil
		}
	}
	return domain.Marker{}, fmt.Errorf("marker at %gs was not written", seconds)
}

func checkTime(seconds float64) error {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("invalid marker time %g", seconds)
	}
	return nil
}
