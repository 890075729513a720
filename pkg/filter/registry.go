// Package filter validates catalog search constraints against a static
// registry and serializes them into upstream query parameters.
package filter

import (
	"slices"

	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

// Kind is the value shape a filter accepts.
type Kind string

const (
	KindRange       Kind = "range"
	KindSelect      Kind = "select"
	KindMultiSelect Kind = "multiselect"
	KindBoolean     Kind = "boolean"
	KindNested      Kind = "nested"
)

// Definition describes one filter. An empty Applicable means every type.
type Definition struct {
	Key        string
	Kind       Kind
	Applicable []domain.ObjectType
}

// AppliesTo reports whether the filter may be used with t.
func (d Definition) AppliesTo(t domain.ObjectType) bool {
	return len(d.Applicable) == 0 || slices.Contains(d.Applicable, t)
}

var (
	residential = []domain.ObjectType{domain.TypeComplex, domain.TypeUnit, domain.TypeHouse}
	unitLike    = []domain.ObjectType{domain.TypeUnit, domain.TypeHouse}
)

var definitions = []Definition{
	{Key: "price", Kind: KindRange},
	{Key: "area", Kind: KindRange},
	{Key: "room", Kind: KindMultiSelect, Applicable: unitLike},
	{Key: "floor", Kind: KindRange, Applicable: []domain.ObjectType{domain.TypeUnit, domain.TypeParkingSpace, domain.TypeCommercialUnit}},
	{Key: "district", Kind: KindMultiSelect},
	{Key: "metro", Kind: KindMultiSelect, Applicable: []domain.ObjectType{domain.TypeComplex, domain.TypeUnit, domain.TypeParkingSpace, domain.TypeCommercialUnit}},
	{Key: "deadline", Kind: KindMultiSelect, Applicable: []domain.ObjectType{domain.TypeComplex, domain.TypeUnit}},
	{Key: "builder", Kind: KindMultiSelect, Applicable: []domain.ObjectType{domain.TypeComplex, domain.TypeUnit, domain.TypeHouse, domain.TypeHouseProject, domain.TypeSettlement}},
	{Key: "class", Kind: KindMultiSelect, Applicable: []domain.ObjectType{domain.TypeComplex}},
	{Key: "finishing", Kind: KindMultiSelect, Applicable: unitLike},
	{Key: "mortgage", Kind: KindBoolean, Applicable: residential},
	{Key: "installment", Kind: KindBoolean, Applicable: append(slices.Clone(residential), domain.TypeLandPlot)},
	{Key: "land_area", Kind: KindRange, Applicable: []domain.ObjectType{domain.TypeHouse, domain.TypeLandPlot}},
	{Key: "land_status", Kind: KindSelect, Applicable: []domain.ObjectType{domain.TypeLandPlot}},
	{Key: "purpose", Kind: KindMultiSelect, Applicable: []domain.ObjectType{domain.TypeCommercialUnit}},
	{Key: "parking_type", Kind: KindMultiSelect, Applicable: []domain.ObjectType{domain.TypeParkingSpace}},
	{Key: "house_material", Kind: KindMultiSelect, Applicable: []domain.ObjectType{domain.TypeHouseProject}},
	{Key: "project_floors", Kind: KindRange, Applicable: []domain.ObjectType{domain.TypeHouseProject}},
	{Key: "settlement_type", Kind: KindSelect, Applicable: []domain.ObjectType{domain.TypeSettlement}},
	{Key: "location", Kind: KindNested},
}

// Registry is the static set of filter definitions.
type Registry struct {
	defs map[string]Definition
}

// DefaultRegistry returns the registry of every known filter.
func DefaultRegistry() *Registry {
	return NewRegistry(definitions...)
}

// NewRegistry builds a registry from defs.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		r.defs[d.Key] = d
	}
	return r
}

// Lookup returns the definition for key.
func (r *Registry) Lookup(key string) (Definition, bool) {
	d, ok := r.defs[key]
	return d, ok
}

// For returns the definitions applicable to t, sorted by key.
func (r *Registry) For(t domain.ObjectType) []Definition {
	var out []Definition
	for _, d := range r.defs {
		if d.AppliesTo(t) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b Definition) int {
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})
	return out
}
