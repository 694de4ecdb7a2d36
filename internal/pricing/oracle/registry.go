package oracle

import (
	"errors"
	"fmt"

	"github.com/vietddude/pricewatch/internal/pricing/health"
)

// ErrEmptyRegistry is returned when a feed has no endpoints.
var ErrEmptyRegistry = errors.New("endpoint registry is empty")

// Registry is the ordered, immutable fallback chain of a feed.
type Registry struct {
	sources []health.Source
}

// NewRegistry builds a registry in priority order. Names must be unique.
func NewRegistry(sources ...health.Source) (*Registry, error) {
	if len(sources) == 0 {
		return nil, ErrEmptyRegistry
	}
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		name := s.Descriptor().Name
		if name == "" {
			return nil, errors.New("endpoint without name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate endpoint %q", name)
		}
		seen[name] = struct{}{}
	}
	return &Registry{sources: append([]health.Source(nil), sources...)}, nil
}

// Sources returns the endpoints in priority order.
func (r *Registry) Sources() []health.Source {
	return append([]health.Source(nil), r.sources...)
}

// Names returns endpoint names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Descriptor().Name
	}
	return names
}

// Len returns the number of endpoints.
func (r *Registry) Len() int {
	return len(r.sources)
}
