// Package simhost assembles the in-process host: project file, services, registry and
// script engine. It backs the local bridge mode and the tests of everything above the bridge.
package simhost

import (
	"context"
	"fmt"

	"github.com/doeshing/compai/internal/host"
	"github.com/doeshing/compai/internal/host/markers"
	"github.com/doeshing/compai/internal/host/project"
	"github.com/doeshing/compai/internal/host/store"
)

// Host is a ready-to-use simulated host application.
type Host struct {
	Store    *store.Store
	Registry *host.Registry
	Engine   *host.Engine
	Project  *project.Service
	Markers  *markers.Service
}

// Open opens the project file at path and registers every host action.
func Open(ctx context.Context, path string) (*Host, error) {
	st, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	h := &Host{
		Store:    st,
		Registry: host.NewRegistry(),
		Project:  project.NewService(st),
		Markers:  markers.NewService(st),
	}
	if err := h.Registry.Register(h.Project.Actions()...); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("register project actions: %w", err)
	}
	if err := h.Registry.Register(h.Markers.Actions()...); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("register marker actions: %w", err)
	}
	h.Engine = host.NewEngine(h.Registry)
	return h, nil
}

// Close releases the project file.
func (h *Host) Close() error {
	return h.Store.Close()
}
