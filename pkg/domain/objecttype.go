// Package domain holds the typed, immutable records the gateway produces from
// raw provider payloads: object types, entities, value objects and media.
package domain

import (
	"fmt"
	"strings"
)

// ObjectType is the closed set of real-estate categories the gateway serves.
// It drives endpoint routing, mapper selection and filter applicability.
type ObjectType string

const (
	// TypeComplex is a residential complex (a group of buildings).
	TypeComplex ObjectType = "complex"

	// TypeUnit is a single apartment within a complex.
	TypeUnit ObjectType = "unit"

	// TypeParkingSpace is a parking place or storage room.
	TypeParkingSpace ObjectType = "parking_space"

	// TypeHouse is a standalone house. Upstream serves houses from the unit
	// catalog, distinguished by room code (see HouseKind).
	TypeHouse ObjectType = "house"

	// TypeLandPlot is a land plot.
	TypeLandPlot ObjectType = "land_plot"

	// TypeCommercialUnit is a commercial premise.
	TypeCommercialUnit ObjectType = "commercial_unit"

	// TypeHouseProject is a catalog house design that can be built on a plot.
	TypeHouseProject ObjectType = "house_project"

	// TypeSettlement is a cottage settlement.
	TypeSettlement ObjectType = "settlement"
)

// AllObjectTypes lists every object type in a stable order.
var AllObjectTypes = []ObjectType{
	TypeComplex,
	TypeUnit,
	TypeParkingSpace,
	TypeHouse,
	TypeLandPlot,
	TypeCommercialUnit,
	TypeHouseProject,
	TypeSettlement,
}

// String implements fmt.Stringer.
func (t ObjectType) String() string {
	return string(t)
}

// Valid reports whether t is one of the known object types.
func (t ObjectType) Valid() bool {
	for _, known := range AllObjectTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseObjectType converts user input into an ObjectType.
// Hyphens and case are tolerated ("Land-Plot" → TypeLandPlot).
func ParseObjectType(s string) (ObjectType, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	t := ObjectType(normalized)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown object type %q", ErrUnsupported, s)
	}
	return t, nil
}
