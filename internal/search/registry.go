package search

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-prospector/internal/model"
)

// Source names accepted in run configurations.
const (
	SourceSIEM       = "siem"
	SourceCANACINTRA = "canacintra"
	SourceGoogleMaps = "google_maps"
)

var sourceAliases = map[string]string{
	"googlemaps":  SourceGoogleMaps,
	"google-maps": SourceGoogleMaps,
	"google maps": SourceGoogleMaps,
	"denue":       SourceSIEM,
}

// Registry resolves source names to adapters. Registration order is the
// order in which "all" expands.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry registers adapters under their Name.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	name := a.Name()
	if _, ok := r.adapters[name]; !ok {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Names returns the registered source names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Resolve maps source names to adapters, expanding "all" and aliases and
// dropping duplicates. Unknown names are an error.
func (r *Registry) Resolve(names []string) ([]Adapter, error) {
	var (
		out  []Adapter
		seen = map[string]struct{}{}
	)
	add := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, r.adapters[name])
	}

	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if alias, ok := sourceAliases[name]; ok {
			name = alias
		}
		switch {
		case name == "":
			continue
		case name == model.SourceAll:
			for _, n := range r.order {
				add(n)
			}
		case r.adapters[name] != nil:
			add(name)
		default:
			return nil, eris.Errorf("search: unknown source %q", raw)
		}
	}
	if len(out) == 0 {
		return nil, eris.New("search: no sources selected")
	}
	return out, nil
}
