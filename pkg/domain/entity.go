package domain

import (
	"encoding/json"
	"maps"
	"time"
)

// Entity is the common view of every typed record the gateway returns.
type Entity interface {
	ID() string
	Type() ObjectType
	CreatedAt() *time.Time
	UpdatedAt() *time.Time
	// Raw returns a copy of the original provider payload.
	Raw() map[string]any
	// SourceKeys maps each resolved field to the raw key it was read from.
	SourceKeys() map[string]string
}

// Base carries the identity and provenance shared by all entities.
// It is embedded by value; its fields are set once through NewBase.
type Base struct {
	id         string
	objectType ObjectType
	createdAt  *time.Time
	updatedAt  *time.Time
	raw        map[string]any
	sourceKeys map[string]string
}

// NewBase builds the shared part of an entity. raw and sourceKeys are copied.
func NewBase(id string, t ObjectType, createdAt, updatedAt *time.Time, raw map[string]any, sourceKeys map[string]string) Base {
	return Base{
		id:         id,
		objectType: t,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
		raw:        maps.Clone(raw),
		sourceKeys: maps.Clone(sourceKeys),
	}
}

func (b Base) ID() string                    { return b.id }
func (b Base) Type() ObjectType              { return b.objectType }
func (b Base) CreatedAt() *time.Time         { return b.createdAt }
func (b Base) UpdatedAt() *time.Time         { return b.updatedAt }
func (b Base) Raw() map[string]any           { return maps.Clone(b.raw) }
func (b Base) SourceKeys() map[string]string { return maps.Clone(b.sourceKeys) }

// HouseKind distinguishes houses served from the unit catalog.
type HouseKind string

const (
	HouseKindNone      HouseKind = ""
	HouseKindCottage   HouseKind = "cottage"
	HouseKindTownhouse HouseKind = "townhouse"
)

// Room codes the unit catalog uses for houses.
const (
	RoomCodeCottage   = 30
	RoomCodeTownhouse = 40
)

// HouseKindFromRoomCode maps a unit room code to a HouseKind.
func HouseKindFromRoomCode(code int) HouseKind {
	switch code {
	case RoomCodeCottage:
		return HouseKindCottage
	case RoomCodeTownhouse:
		return HouseKindTownhouse
	default:
		return HouseKindNone
	}
}

// Complex is a residential complex.
type Complex struct {
	Base
	Name           string   `json:"name"`
	Slug           string   `json:"slug,omitempty"`
	Location       Location `json:"location"`
	Developer      string   `json:"developer,omitempty"`
	Class          string   `json:"class,omitempty"`
	Deadline       string   `json:"deadline,omitempty"`
	MinPrice       *Price   `json:"min_price,omitempty"`
	MaxPrice       *Price   `json:"max_price,omitempty"`
	MinArea        *Area    `json:"min_area,omitempty"`
	UnitsCount     *int     `json:"units_count,omitempty"`
	BuildingsCount *int     `json:"buildings_count,omitempty"`
	Advantages     []string `json:"advantages,omitempty"`
	HasParking     *bool    `json:"has_parking,omitempty"`
	Contact        Contact  `json:"contact"`
}

// Unit is an apartment. With a HouseKind set it represents a standalone house
// served through the unit catalog.
type Unit struct {
	Base
	ComplexID     string    `json:"complex_id,omitempty"`
	ComplexName   string    `json:"complex_name,omitempty"`
	Number        string    `json:"number,omitempty"`
	Slug          string    `json:"slug,omitempty"`
	Rooms         *int      `json:"rooms,omitempty"`
	HouseKind     HouseKind `json:"house_kind,omitempty"`
	Floor         *int      `json:"floor,omitempty"`
	FloorsTotal   *int      `json:"floors_total,omitempty"`
	Area          *Area     `json:"area,omitempty"`
	LivingArea    *Area     `json:"living_area,omitempty"`
	KitchenArea   *Area     `json:"kitchen_area,omitempty"`
	LandArea      *Area     `json:"land_area,omitempty"`
	Price         *Price    `json:"price,omitempty"`
	PricePerMeter *Price    `json:"price_per_meter,omitempty"`
	Finishing     string    `json:"finishing,omitempty"`
	Deadline      string    `json:"deadline,omitempty"`
	Status        string    `json:"status,omitempty"`
	Location      Location  `json:"location"`
}

// IsHouse reports whether the unit is a house specialization.
func (u Unit) IsHouse() bool {
	return u.HouseKind != HouseKindNone
}

// ParkingSpace is a parking place or storage room.
type ParkingSpace struct {
	Base
	ComplexID string   `json:"complex_id,omitempty"`
	Number    string   `json:"number,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Level     *int     `json:"level,omitempty"`
	Area      *Area    `json:"area,omitempty"`
	Price     *Price   `json:"price,omitempty"`
	Status    string   `json:"status,omitempty"`
	Location  Location `json:"location"`
}

// LandPlot is a plot of land.
type LandPlot struct {
	Base
	Name           string   `json:"name,omitempty"`
	Slug           string   `json:"slug,omitempty"`
	Number         string   `json:"number,omitempty"`
	SettlementID   string   `json:"settlement_id,omitempty"`
	Area           *Area    `json:"area,omitempty"`
	Price          *Price   `json:"price,omitempty"`
	LandCategory   string   `json:"land_category,omitempty"`
	Communications []string `json:"communications,omitempty"`
	Status         string   `json:"status,omitempty"`
	Location       Location `json:"location"`
}

// CommercialUnit is a commercial premise.
type CommercialUnit struct {
	Base
	ComplexID string   `json:"complex_id,omitempty"`
	Name      string   `json:"name,omitempty"`
	Purpose   string   `json:"purpose,omitempty"`
	Floor     *int     `json:"floor,omitempty"`
	Area      *Area    `json:"area,omitempty"`
	Price     *Price   `json:"price,omitempty"`
	Status    string   `json:"status,omitempty"`
	Location  Location `json:"location"`
}

// HouseProject is a house design from a builder's catalog.
type HouseProject struct {
	Base
	Name      string `json:"name"`
	Slug      string `json:"slug,omitempty"`
	Material  string `json:"material,omitempty"`
	Floors    *int   `json:"floors,omitempty"`
	Bedrooms  *int   `json:"bedrooms,omitempty"`
	Bathrooms *int   `json:"bathrooms,omitempty"`
	Area      *Area  `json:"area,omitempty"`
	Price     *Price `json:"price,omitempty"`
	Builder   string `json:"builder,omitempty"`
}

// Settlement is a cottage settlement.
type Settlement struct {
	Base
	Name        string   `json:"name"`
	Slug        string   `json:"slug,omitempty"`
	Developer   string   `json:"developer,omitempty"`
	Location    Location `json:"location"`
	MinPrice    *Price   `json:"min_price,omitempty"`
	PlotsCount  *int     `json:"plots_count,omitempty"`
	HousesCount *int     `json:"houses_count,omitempty"`
	Contact     Contact  `json:"contact"`
}

// Compile-time checks.
var (
	_ Entity = Complex{}
	_ Entity = Unit{}
	_ Entity = ParkingSpace{}
	_ Entity = LandPlot{}
	_ Entity = CommercialUnit{}
	_ Entity = HouseProject{}
	_ Entity = Settlement{}
)

func (c Complex) MarshalJSON() ([]byte, error) {
	type view Complex
	return marshalEntity(c.Base, view(c))
}

func (u Unit) MarshalJSON() ([]byte, error) {
	type view Unit
	return marshalEntity(u.Base, view(u))
}

func (p ParkingSpace) MarshalJSON() ([]byte, error) {
	type view ParkingSpace
	return marshalEntity(p.Base, view(p))
}

func (l LandPlot) MarshalJSON() ([]byte, error) {
	type view LandPlot
	return marshalEntity(l.Base, view(l))
}

func (c CommercialUnit) MarshalJSON() ([]byte, error) {
	type view CommercialUnit
	return marshalEntity(c.Base, view(c))
}

func (h HouseProject) MarshalJSON() ([]byte, error) {
	type view HouseProject
	return marshalEntity(h.Base, view(h))
}

func (s Settlement) MarshalJSON() ([]byte, error) {
	type view Settlement
	return marshalEntity(s.Base, view(s))
}

// marshalEntity merges the identity fields of b into the JSON object of fields.
func marshalEntity(b Base, fields any) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	obj := make(map[string]any)
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	obj["id"] = b.id
	obj["type"] = b.objectType
	if b.createdAt != nil {
		obj["created_at"] = b.createdAt.Format(time.RFC3339)
	}
	if b.updatedAt != nil {
		obj["updated_at"] = b.updatedAt.Format(time.RFC3339)
	}
	return json.Marshal(obj)
}

func marshalObject(obj map[string]any) ([]byte, error) {
	return json.Marshal(obj)
}
