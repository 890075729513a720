package router

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

// HostSet holds the base URL of every upstream provider.
type HostSet struct {
	Complex        string
	Unit           string
	ParkingSpace   string
	LandPlot       string
	CommercialUnit string
	HouseProject   string
	Settlement     string
}

// ComplexSections are the per-complex sub-endpoints fetched for a detail view,
// in addition to OpDetail and the yearly progress albums.
var ComplexSections = []Operation{
	"prices", "apartments_stats", "buildings", "photos", "plans", "videos",
	"documents", "tours", "advantages", "infrastructure", "transport",
	"developer", "mortgage", "sales_office", "parking_stats", "commercial_stats",
}

// OpProgress is the construction-progress album for one year.
const OpProgress Operation = "progress"

// authSections require a token even though the complex host is public.
var authSections = []Operation{"prices", "apartments_stats", "sales_office"}

var catalogOptional = []string{"sort", "order"}

// Router resolves templates. It is immutable after NewRouter.
type Router struct {
	templates map[domain.ObjectType]map[Operation]Template
}

// NewRouter builds every template once.
func NewRouter(hosts HostSet) *Router {
	r := &Router{templates: make(map[domain.ObjectType]map[Operation]Template)}

	r.addCatalog(domain.TypeComplex, hosts.Complex, "v2", "/complexes", false)
	r.add(domain.TypeComplex, OpDictionaries, hosts.Complex, "v2", get("/complexes/filters", nil, nil), false)
	for _, s := range ComplexSections {
		tpl := get("/complexes/{id}/"+string(s), nil, nil, "id")
		r.add(domain.TypeComplex, s, hosts.Complex, "v2", tpl, slices.Contains(authSections, s))
	}
	r.add(domain.TypeComplex, OpProgress, hosts.Complex, "v2",
		get("/complexes/{id}/progress/{year}", nil, nil, "id", "year"), false)

	r.addCatalog(domain.TypeUnit, hosts.Unit, "v1", "/flats", true)
	r.add(domain.TypeUnit, OpDictionaries, hosts.Unit, "v1", get("/flats/filters", nil, nil), true)

	// Houses are served by the unit catalog with house room codes.
	r.addCatalog(domain.TypeHouse, hosts.Unit, "v1", "/flats", true)
	r.add(domain.TypeHouse, OpDictionaries, hosts.Unit, "v1", get("/flats/filters", nil, nil), true)

	r.addCatalog(domain.TypeParkingSpace, hosts.ParkingSpace, "v1", "/parkings", true)
	r.add(domain.TypeParkingSpace, OpDictionaries, hosts.ParkingSpace, "v1", get("/parkings/dictionaries", nil, nil), true)

	r.addCatalog(domain.TypeLandPlot, hosts.LandPlot, "", "/plots", false)
	r.add(domain.TypeLandPlot, OpDictionaries, hosts.LandPlot, "",
		get("/plots/dictionaries/{key}", nil, nil, "key"), false)

	r.addCatalog(domain.TypeCommercialUnit, hosts.CommercialUnit, "v1", "/commercial", true)
	r.add(domain.TypeCommercialUnit, OpDictionaries, hosts.CommercialUnit, "v1", get("/commercial/dictionaries", nil, nil), true)

	r.addCatalog(domain.TypeHouseProject, hosts.HouseProject, "v1", "/projects", false)
	r.addCatalog(domain.TypeSettlement, hosts.Settlement, "v1", "/settlements", false)

	return r
}

func (r *Router) addCatalog(t domain.ObjectType, host, version, base string, auth bool) {
	r.add(t, OpCatalog, host, version, get(base, []string{"offset", "count"}, catalogOptional), auth)
	r.add(t, OpCount, host, version, get(base+"/count", nil, nil), auth)
	r.add(t, OpDetail, host, version, get(base+"/{id}", nil, nil, "id"), auth)
}

func (r *Router) add(t domain.ObjectType, op Operation, host, version string, tpl Template, auth bool) {
	if r.templates[t] == nil {
		r.templates[t] = make(map[Operation]Template)
	}
	tpl.Host = host
	tpl.Version = version
	tpl.AuthRequired = auth
	r.templates[t][op] = tpl
}

// GetEndpoint returns the template for (t, op).
func (r *Router) GetEndpoint(t domain.ObjectType, op Operation) (Template, error) {
	ops, ok := r.templates[t]
	if !ok {
		return Template{}, fmt.Errorf("object type %q: %w", t, domain.ErrUnsupported)
	}
	tpl, ok := ops[op]
	if !ok {
		return Template{}, fmt.Errorf("operation %q for %s: %w", op, t, domain.ErrUnsupported)
	}
	return tpl, nil
}

// HasOperation reports whether t supports op.
func (r *Router) HasOperation(t domain.ObjectType, op Operation) bool {
	_, err := r.GetEndpoint(t, op)
	return err == nil
}

// AuthRequired reports whether any endpoint of t needs a token.
func (r *Router) AuthRequired(t domain.ObjectType) bool {
	for _, tpl := range r.templates[t] {
		if tpl.AuthRequired {
			return true
		}
	}
	return false
}

// houseRoomCodes select houses out of the unit catalog.
var houseRoomCodes = []string{
	strconv.Itoa(domain.RoomCodeCottage),
	strconv.Itoa(domain.RoomCodeTownhouse),
}

// ApplySpecialParams returns a copy of params with the parameters t forces.
// For houses the room filter is narrowed to the house room codes; a caller
// selection outside those codes is replaced by both codes.
func (r *Router) ApplySpecialParams(t domain.ObjectType, params url.Values) url.Values {
	out := url.Values{}
	for k, vs := range params {
		out[k] = append([]string(nil), vs...)
	}
	if t != domain.TypeHouse {
		return out
	}

	var rooms []string
	for _, v := range out["room"] {
		if slices.Contains(houseRoomCodes, v) && !slices.Contains(rooms, v) {
			rooms = append(rooms, v)
		}
	}
	if len(rooms) == 0 {
		rooms = append([]string(nil), houseRoomCodes...)
	}
	out["room"] = rooms
	return out
}
