package catalog

import (
	"fmt"

	"MovieHarvester/internal/ports"
)

// Registry keeps a mapping from provider names to their catalog sources so
// the harvester can be pointed at a different catalog purely via config.
type Registry struct {
	sources map[string]ports.CatalogSource
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.CatalogSource{}}
}

// Register adds or replaces a catalog source under the given provider name.
func (r *Registry) Register(name string, source ports.CatalogSource) {
	if r.sources == nil {
		r.sources = map[string]ports.CatalogSource{}
	}
	r.sources[name] = source
}

// Resolve returns a source by provider name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.CatalogSource, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("catalog provider %s is not registered", name)
}
