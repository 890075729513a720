package filter

import (
	"maps"
	"slices"

	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

// Range is a validated numeric interval. Either bound may be open.
type Range struct {
	From *float64 `json:"from,omitempty"`
	To   *float64 `json:"to,omitempty"`
}

// Set is an ordered collection of validated filters bound to one object type.
// Only a Builder adds to it.
type Set struct {
	objectType domain.ObjectType
	keys       []string
	values     map[string]any
}

func newSet(t domain.ObjectType) *Set {
	return &Set{objectType: t, values: make(map[string]any)}
}

// ObjectType is the type the set was created for.
func (s *Set) ObjectType() domain.ObjectType { return s.objectType }

// Len returns the number of filters.
func (s *Set) Len() int { return len(s.keys) }

// Keys returns filter keys in insertion order.
func (s *Set) Keys() []string { return slices.Clone(s.keys) }

// Get returns the validated value of key: Range, string, []string, bool or
// map[string]string depending on the filter kind.
func (s *Set) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Applied returns a copy of the filters for reporting.
func (s *Set) Applied() map[string]any {
	return maps.Clone(s.values)
}

func (s *Set) put(key string, v any) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
}
