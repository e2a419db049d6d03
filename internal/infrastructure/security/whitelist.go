package security

import (
	"fmt"
	"sort"
	"strings"

	"github.com/armon/go-radix"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/ports"
)

// Whitelist implements the ActionAuthorizer port. It is built once and never mutated.
type Whitelist struct {
	version string
	byName  map[string]domain.ActionDescriptor
	names   *radix.Tree
}

// NewWhitelist parses a catalog file and freezes it.
func NewWhitelist(catalogYAML []byte) (*Whitelist, error) {
	var catalog domain.Catalog
	if err := yaml.Unmarshal(catalogYAML, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return FromCatalog(catalog)
}

// FromCatalog freezes an already decoded catalog.
func FromCatalog(catalog domain.Catalog) (*Whitelist, error) {
	if len(catalog.Actions) == 0 {
		return nil, fmt.Errorf("catalog %q has no actions", catalog.Version)
	}

	w := &Whitelist{
		version: catalog.Version,
		byName:  make(map[string]domain.ActionDescriptor, len(catalog.Actions)),
		names:   radix.New(),
	}
	for _, action := range catalog.Actions {
		name := strings.TrimSpace(action.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog entry with empty name")
		}
		if _, dup := w.byName[name]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %s", name)
		}
		action.Name = name
		w.byName[name] = action
		w.names.Insert(name, action)
	}
	return w, nil
}

// IsAuthorized is a pure membership test on the action name.
func (w *Whitelist) IsAuthorized(name string) bool {
	if w == nil {
		return false
	}
	_, ok := w.byName[name]
	return ok
}

// Describe returns the descriptor for an authorized action.
func (w *Whitelist) Describe(name string) (domain.ActionDescriptor, bool) {
	if w == nil {
		return domain.ActionDescriptor{}, false
	}
	desc, ok := w.byName[name]
	return desc, ok
}

// Version is the catalog version string.
func (w *Whitelist) Version() string {
	return w.version
}

// Len is the number of authorized actions.
func (w *Whitelist) Len() int {
	return len(w.byName)
}

// Names returns all authorized names, sorted.
func (w *Whitelist) Names() []string {
	names := make([]string, 0, len(w.byName))
	w.names.Walk(func(name string, _ interface{}) bool {
		names = append(names, name)
		return false
	})
	return names
}

// WithPrefix returns descriptors whose name starts with prefix, sorted by name.
func (w *Whitelist) WithPrefix(prefix string) []domain.ActionDescriptor {
	var out []domain.ActionDescriptor
	w.names.WalkPrefix(prefix, func(_ string, value interface{}) bool {
		out = append(out, value.(domain.ActionDescriptor))
		return false
	})
	return out
}

// ByCategory groups descriptors for prompt rendering.
func (w *Whitelist) ByCategory() map[domain.ActionCategory][]domain.ActionDescriptor {
	grouped := make(map[domain.ActionCategory][]domain.ActionDescriptor)
	for _, name := range w.Names() {
		desc := w.byName[name]
		grouped[desc.Category] = append(grouped[desc.Category], desc)
	}
	return grouped
}

// VerifyAgainst checks the catalog against the host registry by count and set equality.
func (w *Whitelist) VerifyAgainst(hostNames []string) error {
	host := make(map[string]struct{}, len(hostNames))
	for _, name := range hostNames {
		host[name] = struct{}{}
	}

	var unreachable, dead []string
	for name := range host {
		if _, ok := w.byName[name]; !ok {
			unreachable = append(unreachable, name)
		}
	}
	for name := range w.byName {
		if _, ok := host[name]; !ok {
			dead = append(dead, name)
		}
	}

	if len(unreachable) == 0 && len(dead) == 0 && len(host) == len(w.byName) {
		return nil
	}
	sort.Strings(unreachable)
	sort.Strings(dead)
	return &DriftError{
		CatalogCount: len(w.byName),
		HostCount:    len(host),
		Unreachable:  unreachable,
		Dead:         dead,
	}
}

// DriftError reports a catalog that is out of step with the host registry.
type DriftError struct {
	CatalogCount int
	HostCount    int
	// Unreachable actions are registered on the host but missing from the catalog.
	Unreachable []string
	// Dead actions are in the catalog but no longer registered on the host.
	Dead []string
}

func (e *DriftError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("catalog has %d actions, host has %d", e.CatalogCount, e.HostCount))
	if len(e.Unreachable) > 0 {
		parts = append(parts, "missing from catalog: "+strings.Join(e.Unreachable, ", "))
	}
	if len(e.Dead) > 0 {
		parts = append(parts, "not registered on host: "+strings.Join(e.Dead, ", "))
	}
	return "action catalog drift: " + strings.Join(parts, "; ")
}

var _ ports.ActionAuthorizer = (*Whitelist)(nil)
