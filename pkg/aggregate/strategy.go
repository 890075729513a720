package aggregate

import (
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/Sternrassler/realty-gateway/pkg/domain"
	"github.com/Sternrassler/realty-gateway/pkg/mapper"
	"github.com/Sternrassler/realty-gateway/pkg/normalize"
	"github.com/Sternrassler/realty-gateway/pkg/router"
)

// PrimaryEndpoint is the endpoint carrying the entity itself.
const PrimaryEndpoint = "detail"

// ProgressYears is how many construction-progress albums a complex detail
// fetches, counting back from the current year.
const ProgressYears = 5

// Endpoint is one named upstream call of a detail view.
type Endpoint struct {
	Name       string
	Operation  router.Operation
	PathParams map[string]string
}

// Merged is the combined raw view of a detail fetch.
type Merged struct {
	// Entity is the raw entity map handed to the mapper.
	Entity map[string]any
	// Related holds sections that are not entity fields.
	Related map[string]any
	// Media collects media found in the entity and its sections.
	Media []domain.MediaItem
}

// Strategy decides which endpoints a detail view needs and how their
// decoded responses combine.
type Strategy interface {
	EndpointsFor(id string) []Endpoint
	// Merge combines successful decoded responses keyed by endpoint name.
	Merge(id string, responses map[string]any) Merged
}

// singleStrategy fetches the detail endpoint only.
type singleStrategy struct{}

func (singleStrategy) EndpointsFor(id string) []Endpoint {
	return []Endpoint{{Name: PrimaryEndpoint, Operation: router.OpDetail, PathParams: map[string]string{"id": id}}}
}

func (singleStrategy) Merge(id string, responses map[string]any) Merged {
	entity := entityOf(id, responses[PrimaryEndpoint])
	return Merged{
		Entity:  entity,
		Related: map[string]any{},
		Media:   mapper.ExtractMedia(entity),
	}
}

// complexEntitySections are copied into the entity map under their own name.
var complexEntitySections = map[router.Operation]bool{
	"prices":     true,
	"buildings":  true,
	"photos":     true,
	"plans":      true,
	"videos":     true,
	"documents":  true,
	"tours":      true,
	"advantages": true,
}

// complexStrategy fans a complex detail out to its sections and the yearly
// construction-progress albums.
type complexStrategy struct {
	now func() time.Time
}

func (s complexStrategy) EndpointsFor(id string) []Endpoint {
	eps := []Endpoint{{Name: PrimaryEndpoint, Operation: router.OpDetail, PathParams: map[string]string{"id": id}}}
	for _, section := range router.ComplexSections {
		eps = append(eps, Endpoint{Name: string(section), Operation: section, PathParams: map[string]string{"id": id}})
	}
	for _, year := range s.years() {
		eps = append(eps, Endpoint{
			Name:       progressName(year),
			Operation:  router.OpProgress,
			PathParams: map[string]string{"id": id, "year": strconv.Itoa(year)},
		})
	}
	return eps
}

func (s complexStrategy) years() []int {
	current := s.now().Year()
	years := make([]int, 0, ProgressYears)
	for i := 0; i < ProgressYears; i++ {
		years = append(years, current-i)
	}
	return years
}

func progressName(year int) string {
	return fmt.Sprintf("progress_%d", year)
}

func (s complexStrategy) Merge(id string, responses map[string]any) Merged {
	entity := entityOf(id, responses[PrimaryEndpoint])
	related := map[string]any{}

	for _, section := range router.ComplexSections {
		v, ok := responses[string(section)]
		if !ok {
			continue
		}
		data := sectionData(v)
		if complexEntitySections[section] {
			entity[string(section)] = data
		} else {
			related[string(section)] = data
		}
	}

	if list, ok := entity["buildings"].([]any); ok {
		if _, set := entity["buildings_count"]; !set {
			entity["buildings_count"] = float64(len(list))
		}
	}

	media := mapper.ExtractMedia(entity)
	progress := map[string]any{}
	for _, year := range s.years() {
		v, ok := responses[progressName(year)]
		if !ok {
			continue
		}
		data := sectionData(v)
		key := strconv.Itoa(year)
		progress[key] = data
		media = append(media, mapper.MediaItems(progressPhotos(data), domain.MediaPhoto, "progress_"+key)...)
	}
	if len(progress) > 0 {
		related["progress"] = progress
	}

	return Merged{Entity: entity, Related: related, Media: media}
}

// progressPhotos accepts an album list or an object wrapping one.
func progressPhotos(v any) any {
	if obj, ok := v.(map[string]any); ok {
		for _, key := range []string{"photos", "images", "items"} {
			if list, ok := obj[key]; ok {
				return list
			}
		}
	}
	return v
}

// entityOf unwraps the primary response. The id is kept even when the
// primary endpoint failed so the partial entity still maps.
func entityOf(id string, v any) map[string]any {
	entity := map[string]any{}
	if v != nil {
		if obj, err := normalize.UnwrapValue(v); err == nil {
			entity = maps.Clone(obj)
		}
	}
	if _, ok := entity["_id"]; !ok {
		if _, ok := entity["id"]; !ok {
			entity["id"] = id
		}
	}
	return entity
}

// sectionData unwraps a {"data": ...} envelope.
func sectionData(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if _, hasID := obj["id"]; hasID {
		return v
	}
	if data, ok := obj["data"]; ok {
		return data
	}
	return v
}

// DefaultStrategies maps every object type to its strategy.
func DefaultStrategies(now func() time.Time) map[domain.ObjectType]Strategy {
	if now == nil {
		now = time.Now
	}
	return map[domain.ObjectType]Strategy{
		domain.TypeComplex:        complexStrategy{now: now},
		domain.TypeUnit:           singleStrategy{},
		domain.TypeHouse:          singleStrategy{},
		domain.TypeParkingSpace:   singleStrategy{},
		domain.TypeLandPlot:       singleStrategy{},
		domain.TypeCommercialUnit: singleStrategy{},
		domain.TypeHouseProject:   singleStrategy{},
		domain.TypeSettlement:     singleStrategy{},
	}
}
