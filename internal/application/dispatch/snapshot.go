package dispatch

import (
	"context"
	"sync"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/ports"
)

// ProjectInfoAction is the read-only host action the snapshot is built from.
const ProjectInfoAction = "getProjectInfo"

// SnapshotTracker holds the read-only project snapshot. It is replaced wholesale on refresh.
type SnapshotTracker struct {
	bridge ports.BridgeTransport
	logger ports.Logger

	mu      sync.RWMutex
	current *domain.ProjectSnapshot
}

// NewSnapshotTracker creates an empty tracker; call Refresh on load.
func NewSnapshotTracker(bridge ports.BridgeTransport, logger ports.Logger) *SnapshotTracker {
	return &SnapshotTracker{bridge: bridge, logger: logger}
}

// Current returns the last snapshot, nil when there is no active composition.
func (t *SnapshotTracker) Current() *domain.ProjectSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return nil
	}
	snapshot := *t.current
	return &snapshot
}

// Refresh asks the host for project info. A failed call keeps the previous snapshot.
func (t *SnapshotTracker) Refresh(ctx context.Context) *domain.ProjectSnapshot {
	result := t.bridge.Call(ctx, ProjectInfoAction, nil)
	if !result.Success {
		t.logger.Debug("snapshot refresh failed", map[string]interface{}{
			"kind":  string(result.Kind),
			"error": result.Error,
		})
		return t.Current()
	}

	next := snapshotFrom(result.Data)
	t.mu.Lock()
	t.current = next
	t.mu.Unlock()
	return t.Current()
}

func snapshotFrom(data map[string]any) *domain.ProjectSnapshot {
	if active, ok := data["active"].(bool); ok && !active {
		return nil
	}
	name, _ := data["name"].(string)
	if name == "" {
		return nil
	}
	return &domain.ProjectSnapshot{
		Name:   name,
		Width:  intValue(data["width"]),
		Height: intValue(data["height"]),
	}
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
