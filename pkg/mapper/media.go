package mapper

import (
	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

var mediaKeys = map[domain.MediaKind][]string{
	domain.MediaPhoto:     {"photos", "images", "gallery", "pictures"},
	domain.MediaVideo:     {"videos", "video"},
	domain.MediaDocument:  {"documents", "docs", "files"},
	domain.MediaTour3D:    {"tours", "tours_3d", "panoramas"},
	domain.MediaFloorPlan: {"plans", "floor_plans", "layouts", "plan"},
}

// mediaOrder keeps extraction deterministic.
var mediaOrder = []domain.MediaKind{
	domain.MediaPhoto, domain.MediaVideo, domain.MediaDocument, domain.MediaTour3D, domain.MediaFloorPlan,
}

var (
	urlKeys     = []string{"url", "src", "path", "original", "link", "file"}
	titleKeys   = []string{"title", "name", "description"}
	previewKeys = []string{"preview", "thumb", "thumbnail"}
)

// ExtractMedia collects media items found under the well-known keys of raw.
func ExtractMedia(raw map[string]any) []domain.MediaItem {
	var out []domain.MediaItem
	for _, kind := range mediaOrder {
		for _, key := range mediaKeys[kind] {
			out = append(out, MediaItems(raw[key], kind, "")...)
		}
	}
	return out
}

// MediaItems converts a list of URLs or media objects into items of kind.
func MediaItems(v any, kind domain.MediaKind, group string) []domain.MediaItem {
	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case string, map[string]any:
		list = []any{t}
	default:
		return nil
	}

	out := make([]domain.MediaItem, 0, len(list))
	for _, it := range list {
		item := domain.MediaItem{Kind: kind, Group: group}
		switch t := it.(type) {
		case string:
			item.URL = t
		case map[string]any:
			item.URL = firstString(t, urlKeys)
			item.Title = firstString(t, titleKeys)
			item.Preview = firstString(t, previewKeys)
		}
		if item.URL != "" {
			out = append(out, item)
		}
	}
	return out
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
