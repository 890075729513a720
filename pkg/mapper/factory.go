// Package mapper turns normalized raw payloads into typed domain entities.
package mapper

import (
	"fmt"

	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

// Mapper builds one entity from a raw payload.
type Mapper interface {
	Map(raw map[string]any) (domain.Entity, error)
}

// MapperFunc adapts a function to Mapper.
type MapperFunc func(raw map[string]any) (domain.Entity, error)

// Map calls f.
func (f MapperFunc) Map(raw map[string]any) (domain.Entity, error) {
	return f(raw)
}

// Factory dispatches to the mapper registered for an object type.
type Factory struct {
	mappers map[domain.ObjectType]Mapper
}

// NewFactory returns a factory with a mapper for every object type.
func NewFactory() *Factory {
	return &Factory{mappers: map[domain.ObjectType]Mapper{
		domain.TypeComplex:        MapperFunc(mapComplex),
		domain.TypeUnit:           unitMapper(domain.TypeUnit),
		domain.TypeHouse:          unitMapper(domain.TypeHouse),
		domain.TypeParkingSpace:   MapperFunc(mapParkingSpace),
		domain.TypeLandPlot:       MapperFunc(mapLandPlot),
		domain.TypeCommercialUnit: MapperFunc(mapCommercialUnit),
		domain.TypeHouseProject:   MapperFunc(mapHouseProject),
		domain.TypeSettlement:     MapperFunc(mapSettlement),
	}}
}

// Create maps raw into an entity of type t.
func (f *Factory) Create(t domain.ObjectType, raw map[string]any) (domain.Entity, error) {
	m, ok := f.mappers[t]
	if !ok {
		return nil, fmt.Errorf("no mapper for %q: %w", t, domain.ErrUnsupported)
	}
	return m.Map(raw)
}
