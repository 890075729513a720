package mapper

import (
	"fmt"
	"strconv"

	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

var complexTable = aliasTable{
	"name":            {"name", "title", "complex_name"},
	"slug":            {"slug", "guid", "alias"},
	"developer":       {"developer", "developer_name", "builder"},
	"class":           {"class", "housing_class", "complex_class"},
	"deadline":        {"deadline", "completion", "finish_date"},
	"min_price":       {"min_price", "price_from", "minPrice", "prices.min"},
	"max_price":       {"max_price", "price_to", "maxPrice", "prices.max"},
	"min_area":        {"min_area", "area_from", "minArea"},
	"units_count":     {"flats_count", "units_count", "apartments_count"},
	"buildings_count": {"buildings_count", "houses_count", "corpus_count"},
	"advantages":      {"advantages", "features"},
	"has_parking":     {"has_parking", "parking"},
}

var unitTable = aliasTable{
	"complex_id":      {"complex_id", "block_id", "complex._id", "complex.id"},
	"complex_name":    {"complex_name", "block_name", "complex.name"},
	"number":          {"number", "flat_number", "num"},
	"slug":            {"slug", "guid"},
	"rooms":           {"rooms", "room", "rooms_count"},
	"floor":           {"floor", "floor_number"},
	"floors_total":    {"floors_total", "floors", "floor_count"},
	"area":            {"area", "area_total", "total_area"},
	"living_area":     {"area_living", "living_area"},
	"kitchen_area":    {"area_kitchen", "kitchen_area"},
	"land_area":       {"land_area", "area_land", "plot_area"},
	"price":           {"price", "cost", "price_total"},
	"price_per_meter": {"price_per_meter", "meter_price", "price_m2"},
	"finishing":       {"finishing", "decoration", "renovation"},
	"deadline":        {"deadline", "completion", "building_deadline"},
	"status":          {"status", "sale_status"},
}

var parkingTable = aliasTable{
	"complex_id": {"complex_id", "block_id", "complex._id"},
	"number":     {"number", "num"},
	"kind":       {"parking_type", "type", "kind"},
	"level":      {"level", "floor"},
	"area":       {"area", "area_total"},
	"price":      {"price", "cost"},
	"status":     {"status", "sale_status"},
}

var landPlotTable = aliasTable{
	"name":           {"name", "title"},
	"slug":           {"slug", "guid"},
	"number":         {"number", "plot_number", "cadastral_number"},
	"settlement_id":  {"settlement_id", "village_id", "settlement._id"},
	"area":           {"area", "area_sotka", "land_area"},
	"price":          {"price", "cost"},
	"land_category":  {"land_category", "category", "land_status"},
	"communications": {"communications", "utilities"},
	"status":         {"status", "sale_status"},
}

var commercialTable = aliasTable{
	"complex_id": {"complex_id", "block_id", "complex._id"},
	"name":       {"name", "title"},
	"purpose":    {"purpose", "usage", "type"},
	"floor":      {"floor", "floor_number"},
	"area":       {"area", "area_total"},
	"price":      {"price", "cost"},
	"status":     {"status", "sale_status"},
}

var houseProjectTable = aliasTable{
	"name":      {"name", "title"},
	"slug":      {"slug", "guid"},
	"material":  {"material", "wall_material", "house_material"},
	"floors":    {"floors", "floors_count"},
	"bedrooms":  {"bedrooms", "bedrooms_count"},
	"bathrooms": {"bathrooms", "bathrooms_count"},
	"area":      {"area", "area_total"},
	"price":     {"price", "cost", "price_from"},
	"builder":   {"builder", "company", "builder_name"},
}

var settlementTable = aliasTable{
	"name":         {"name", "title"},
	"slug":         {"slug", "guid", "alias"},
	"developer":    {"developer", "developer_name"},
	"min_price":    {"min_price", "price_from"},
	"plots_count":  {"plots_count", "lands_count"},
	"houses_count": {"houses_count", "cottages_count"},
}

// identity reads the id and timestamps. The id is mandatory.
func identity(t domain.ObjectType, raw map[string]any, r *resolver) (domain.Base, error) {
	id := ""
	for _, key := range []string{"_id", "id"} {
		switch v := raw[key].(type) {
		case string:
			id = v
		case float64:
			id = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if id != "" {
			r.source["id"] = key
			break
		}
	}
	if id == "" {
		return domain.Base{}, &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("%s payload has neither _id nor id", t)}
	}
	created := r.timestamp("created_at")
	updated := r.timestamp("updated_at")
	return domain.NewBase(id, t, created, updated, raw, r.source), nil
}

// finish rebuilds the base once every field has recorded its source key.
func finish(base domain.Base, r *resolver) (domain.Base, error) {
	if r.err != nil {
		return domain.Base{}, fmt.Errorf("map %s %s: %w", base.Type(), base.ID(), r.err)
	}
	return domain.NewBase(base.ID(), base.Type(), base.CreatedAt(), base.UpdatedAt(), r.raw, r.source), nil
}

func mapComplex(raw map[string]any) (domain.Entity, error) {
	r := newResolver(raw, complexTable)
	base, err := identity(domain.TypeComplex, raw, r)
	if err != nil {
		return nil, err
	}
	c := domain.Complex{
		Name:           r.str("name"),
		Slug:           r.str("slug"),
		Location:       r.location(),
		Developer:      r.str("developer"),
		Class:          r.str("class"),
		Deadline:       r.str("deadline"),
		MinPrice:       r.price("min_price"),
		MaxPrice:       r.price("max_price"),
		MinArea:        r.area("min_area", domain.UnitSquareMeter),
		UnitsCount:     r.integer("units_count"),
		BuildingsCount: r.integer("buildings_count"),
		Advantages:     r.list("advantages"),
		HasParking:     r.boolean("has_parking"),
		Contact:        r.contact(),
	}
	if c.Base, err = finish(base, r); err != nil {
		return nil, err
	}
	return c, nil
}

// unitMapper serves both the unit and the house type; houses are units whose
// room code marks them as a cottage or townhouse.
func unitMapper(t domain.ObjectType) MapperFunc {
	return func(raw map[string]any) (domain.Entity, error) {
		r := newResolver(raw, unitTable)
		base, err := identity(t, raw, r)
		if err != nil {
			return nil, err
		}
		u := domain.Unit{
			ComplexID:     r.str("complex_id"),
			ComplexName:   r.str("complex_name"),
			Number:        r.str("number"),
			Slug:          r.str("slug"),
			Floor:         r.integer("floor"),
			FloorsTotal:   r.integer("floors_total"),
			Area:          r.area("area", domain.UnitSquareMeter),
			LivingArea:    r.area("living_area", domain.UnitSquareMeter),
			KitchenArea:   r.area("kitchen_area", domain.UnitSquareMeter),
			LandArea:      r.area("land_area", domain.UnitSotka),
			Price:         r.price("price"),
			PricePerMeter: r.price("price_per_meter"),
			Finishing:     r.str("finishing"),
			Deadline:      r.str("deadline"),
			Status:        r.str("status"),
			Location:      r.location(),
		}
		if rooms := r.integer("rooms"); rooms != nil {
			u.HouseKind = domain.HouseKindFromRoomCode(*rooms)
			if !u.IsHouse() {
				u.Rooms = rooms
			}
		}
		if u.Base, err = finish(base, r); err != nil {
			return nil, err
		}
		return u, nil
	}
}

func mapParkingSpace(raw map[string]any) (domain.Entity, error) {
	r := newResolver(raw, parkingTable)
	base, err := identity(domain.TypeParkingSpace, raw, r)
	if err != nil {
		return nil, err
	}
	p := domain.ParkingSpace{
		ComplexID: r.str("complex_id"),
		Number:    r.str("number"),
		Kind:      r.str("kind"),
		Level:     r.integer("level"),
		Area:      r.area("area", domain.UnitSquareMeter),
		Price:     r.price("price"),
		Status:    r.str("status"),
		Location:  r.location(),
	}
	if p.Base, err = finish(base, r); err != nil {
		return nil, err
	}
	return p, nil
}

func mapLandPlot(raw map[string]any) (domain.Entity, error) {
	r := newResolver(raw, landPlotTable)
	base, err := identity(domain.TypeLandPlot, raw, r)
	if err != nil {
		return nil, err
	}
	l := domain.LandPlot{
		Name:           r.str("name"),
		Slug:           r.str("slug"),
		Number:         r.str("number"),
		SettlementID:   r.str("settlement_id"),
		Area:           r.area("area", domain.UnitSotka),
		Price:          r.price("price"),
		LandCategory:   r.str("land_category"),
		Communications: r.list("communications"),
		Status:         r.str("status"),
		Location:       r.location(),
	}
	if l.Base, err = finish(base, r); err != nil {
		return nil, err
	}
	return l, nil
}

func mapCommercialUnit(raw map[string]any) (domain.Entity, error) {
	r := newResolver(raw, commercialTable)
	base, err := identity(domain.TypeCommercialUnit, raw, r)
	if err != nil {
		return nil, err
	}
	c := domain.CommercialUnit{
		ComplexID: r.str("complex_id"),
		Name:      r.str("name"),
		Purpose:   r.str("purpose"),
		Floor:     r.integer("floor"),
		Area:      r.area("area", domain.UnitSquareMeter),
		Price:     r.price("price"),
		Status:    r.str("status"),
		Location:  r.location(),
	}
	if c.Base, err = finish(base, r); err != nil {
		return nil, err
	}
	return c, nil
}

func mapHouseProject(raw map[string]any) (domain.Entity, error) {
	r := newResolver(raw, houseProjectTable)
	base, err := identity(domain.TypeHouseProject, raw, r)
	if err != nil {
		return nil, err
	}
	h := domain.HouseProject{
		Name:      r.str("name"),
		Slug:      r.str("slug"),
		Material:  r.str("material"),
		Floors:    r.integer("floors"),
		Bedrooms:  r.integer("bedrooms"),
		Bathrooms: r.integer("bathrooms"),
		Area:      r.area("area", domain.UnitSquareMeter),
		Price:     r.price("price"),
		Builder:   r.str("builder"),
	}
	if h.Base, err = finish(base, r); err != nil {
		return nil, err
	}
	return h, nil
}

func mapSettlement(raw map[string]any) (domain.Entity, error) {
	r := newResolver(raw, settlementTable)
	base, err := identity(domain.TypeSettlement, raw, r)
	if err != nil {
		return nil, err
	}
	s := domain.Settlement{
		Name:        r.str("name"),
		Slug:        r.str("slug"),
		Developer:   r.str("developer"),
		Location:    r.location(),
		MinPrice:    r.price("min_price"),
		PlotsCount:  r.integer("plots_count"),
		HousesCount: r.integer("houses_count"),
		Contact:     r.contact(),
	}
	if s.Base, err = finish(base, r); err != nil {
		return nil, err
	}
	return s, nil
}
