package domain

// MediaKind is the category a media item belongs to.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
	MediaTour3D    MediaKind = "tour_3d"
	MediaFloorPlan MediaKind = "floor_plan"
	MediaOther     MediaKind = "other"
)

// MediaItem is a single file or link attached to an object.
type MediaItem struct {
	Kind    MediaKind `json:"kind"`
	URL     string    `json:"url"`
	Title   string    `json:"title,omitempty"`
	Preview string    `json:"preview,omitempty"`
	// Group tags items inside a kind, e.g. "progress_2024" for construction photos.
	Group string `json:"group,omitempty"`
}

// MediaCollection groups media by kind. Build it with a MediaBuilder; the
// accessor methods return copies.
type MediaCollection struct {
	photos     []MediaItem
	videos     []MediaItem
	documents  []MediaItem
	tours3D    []MediaItem
	floorPlans []MediaItem
	other      []MediaItem
}

func (m MediaCollection) Photos() []MediaItem     { return cloneItems(m.photos) }
func (m MediaCollection) Videos() []MediaItem     { return cloneItems(m.videos) }
func (m MediaCollection) Documents() []MediaItem  { return cloneItems(m.documents) }
func (m MediaCollection) Tours3D() []MediaItem    { return cloneItems(m.tours3D) }
func (m MediaCollection) FloorPlans() []MediaItem { return cloneItems(m.floorPlans) }
func (m MediaCollection) Other() []MediaItem      { return cloneItems(m.other) }

// Len returns the total number of items across all kinds.
func (m MediaCollection) Len() int {
	return len(m.photos) + len(m.videos) + len(m.documents) +
		len(m.tours3D) + len(m.floorPlans) + len(m.other)
}

// MarshalJSON renders every kind as a (possibly empty) array.
func (m MediaCollection) MarshalJSON() ([]byte, error) {
	return marshalObject(map[string]any{
		"photos":      nonNil(m.photos),
		"videos":      nonNil(m.videos),
		"documents":   nonNil(m.documents),
		"tours_3d":    nonNil(m.tours3D),
		"floor_plans": nonNil(m.floorPlans),
		"other":       nonNil(m.other),
	})
}

// MediaBuilder accumulates items before freezing them into a MediaCollection.
type MediaBuilder struct {
	c MediaCollection
}

// Add appends items, routing each by its Kind. Items without a URL are dropped.
func (b *MediaBuilder) Add(items ...MediaItem) *MediaBuilder {
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		switch item.Kind {
		case MediaPhoto:
			b.c.photos = append(b.c.photos, item)
		case MediaVideo:
			b.c.videos = append(b.c.videos, item)
		case MediaDocument:
			b.c.documents = append(b.c.documents, item)
		case MediaTour3D:
			b.c.tours3D = append(b.c.tours3D, item)
		case MediaFloorPlan:
			b.c.floorPlans = append(b.c.floorPlans, item)
		default:
			item.Kind = MediaOther
			b.c.other = append(b.c.other, item)
		}
	}
	return b
}

// Build returns an independent MediaCollection.
func (b *MediaBuilder) Build() MediaCollection {
	return MediaCollection{
		photos:     cloneItems(b.c.photos),
		videos:     cloneItems(b.c.videos),
		documents:  cloneItems(b.c.documents),
		tours3D:    cloneItems(b.c.tours3D),
		floorPlans: cloneItems(b.c.floorPlans),
		other:      cloneItems(b.c.other),
	}
}

func cloneItems(items []MediaItem) []MediaItem {
	if items == nil {
		return nil
	}
	out := make([]MediaItem, len(items))
	copy(out, items)
	return out
}

func nonNil(items []MediaItem) []MediaItem {
	if items == nil {
		return []MediaItem{}
	}
	return items
}
