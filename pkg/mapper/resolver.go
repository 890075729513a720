package mapper

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

// aliasTable lists, per entity field, the raw keys that may carry it in
// priority order. Dotted keys descend into nested objects.
type aliasTable map[string][]string

// common holds fields shared by every object type.
var common = aliasTable{
	"created_at": {"created_at", "createdAt", "created", "date_create"},
	"updated_at": {"updated_at", "updatedAt", "updated", "date_update"},
	"currency":   {"currency", "price_currency", "price.currency"},
	"lat":        {"lat", "latitude", "location.lat", "coords.lat", "geo.lat"},
	"lng":        {"lng", "lon", "longitude", "location.lng", "location.lon", "coords.lng", "geo.lng"},
	"address":    {"address", "location.address", "addr", "full_address"},
	"district":   {"district", "district_name", "location.district", "district.name"},
	"metro":      {"metro", "metro_name", "subway", "location.metro"},
	"phone":      {"phone", "contact_phone", "contacts.phone"},
	"email":      {"email", "contact_email", "contacts.email"},
	"website":    {"website", "site", "contacts.site", "url"},
}

// resolver reads typed fields from a raw payload and records which raw key
// served each field.
type resolver struct {
	raw    map[string]any
	table  aliasTable
	source map[string]string
	err    error
}

func newResolver(raw map[string]any, table aliasTable) *resolver {
	return &resolver{raw: raw, table: table, source: make(map[string]string)}
}

func (r *resolver) aliases(field string) []string {
	if a, ok := r.table[field]; ok {
		return a
	}
	if a, ok := common[field]; ok {
		return a
	}
	return []string{field}
}

// lookup returns the first non-empty value among field's aliases.
func (r *resolver) lookup(field string) (any, bool) {
	for _, key := range r.aliases(field) {
		v, ok := dig(r.raw, key)
		if !ok || isEmpty(v) {
			continue
		}
		r.source[field] = key
		return v, true
	}
	return nil, false
}

func dig(raw map[string]any, key string) (any, bool) {
	if v, ok := raw[key]; ok {
		return v, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}
	var cur any = raw
	for _, part := range strings.Split(key, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	return false
}

func (r *resolver) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *resolver) str(field string) string {
	v, ok := r.lookup(field)
	if !ok {
		return ""
	}
	return text(v)
}

// text renders scalars, and objects by their name or title.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, k := range []string{"name", "title", "label", "value"} {
			if s, ok := t[k].(string); ok && s != "" {
				return s
			}
		}
	case []any:
		if len(t) > 0 {
			return text(t[0])
		}
	}
	return ""
}

func (r *resolver) float(field string) *float64 {
	v, ok := r.lookup(field)
	if !ok {
		return nil
	}
	f, ok := number(v)
	if !ok {
		return nil
	}
	return &f
}

func (r *resolver) integer(field string) *int {
	f := r.float(field)
	if f == nil {
		return nil
	}
	n := int(math.Round(*f))
	return &n
}

func (r *resolver) boolean(field string) *bool {
	v, ok := r.lookup(field)
	if !ok {
		return nil
	}
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case float64:
		b = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "да":
			b = true
		case "false", "0", "no", "нет":
			b = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &b
}

// number parses JSON numbers and human-formatted strings such as
// "5 000 000 ₽" or "45,5".
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		var b strings.Builder
		for _, c := range t {
			switch {
			case c >= '0' && c <= '9', c == '.', c == '-':
				b.WriteRune(c)
			case c == ',':
				b.WriteRune('.')
			}
		}
		f, err := strconv.ParseFloat(b.String(), 64)
		return f, err == nil
	case map[string]any:
		for _, k := range []string{"value", "amount", "from"} {
			if inner, ok := t[k]; ok {
				return number(inner)
			}
		}
	}
	return 0, false
}

func (r *resolver) price(field string) *domain.Price {
	f := r.float(field)
	if f == nil {
		return nil
	}
	p, err := domain.NewPrice(*f, r.str("currency"))
	if err != nil {
		r.fail(err)
		return nil
	}
	return &p
}

func (r *resolver) area(field, unit string) *domain.Area {
	f := r.float(field)
	if f == nil {
		return nil
	}
	a, err := domain.NewArea(*f, unit)
	if err != nil {
		r.fail(err)
		return nil
	}
	return &a
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (r *resolver) timestamp(field string) *time.Time {
	v, ok := r.lookup(field)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case float64:
		ts := time.Unix(int64(t), 0).UTC()
		return &ts
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return &ts
			}
		}
	}
	return nil
}

func (r *resolver) list(field string) []string {
	v, ok := r.lookup(field)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			if s := text(it); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (r *resolver) location() domain.Location {
	return domain.Location{
		Lat:      r.float("lat"),
		Lng:      r.float("lng"),
		Address:  r.str("address"),
		District: r.str("district"),
		Metro:    r.str("metro"),
	}
}

func (r *resolver) contact() domain.Contact {
	return domain.Contact{
		Phone:   r.str("phone"),
		Email:   r.str("email"),
		Website: r.str("website"),
	}
}
