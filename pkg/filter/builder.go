package filter

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

// Builder creates and fills filter sets against a registry.
type Builder struct {
	registry *Registry
}

// NewBuilder creates a builder. A nil registry uses DefaultRegistry.
func NewBuilder(registry *Registry) *Builder {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Builder{registry: registry}
}

// Create returns an empty set bound to t.
func (b *Builder) Create(t domain.ObjectType) *Set {
	return newSet(t)
}

// AddFilter validates value for key and adds it to set. The key must be
// registered and applicable to the set's type. Range bounds are only checked
// for being numeric, so negative bounds are accepted.
func (b *Builder) AddFilter(set *Set, key string, value any) error {
	def, ok := b.registry.Lookup(key)
	if !ok {
		return &InvalidFilterError{Key: key, ObjectType: set.objectType, Reason: "unknown filter"}
	}
	if !def.AppliesTo(set.objectType) {
		return &InvalidFilterError{Key: key, ObjectType: set.objectType, Reason: "not applicable to this object type"}
	}

	var (
		v      any
		reason string
	)
	switch def.Kind {
	case KindRange:
		v, reason = validateRange(value)
	case KindSelect:
		v, reason = validateSelect(value)
	case KindMultiSelect:
		v, reason = validateMultiSelect(value)
	case KindBoolean:
		v, reason = validateBoolean(value)
	case KindNested:
		v, reason = validateNested(value)
	default:
		reason = fmt.Sprintf("unsupported kind %q", def.Kind)
	}
	if reason != "" {
		return &InvalidFilterError{Key: key, ObjectType: set.objectType, Reason: reason}
	}
	set.put(key, v)
	return nil
}

func validateRange(value any) (any, string) {
	var from, to any
	switch r := value.(type) {
	case Range:
		if r.From == nil && r.To == nil {
			return nil, "range needs from or to"
		}
		return r, ""
	case map[string]any:
		from, to = r["from"], r["to"]
	case map[string]float64:
		if f, ok := r["from"]; ok {
			from = f
		}
		if t, ok := r["to"]; ok {
			to = t
		}
	default:
		return nil, "range must be an object with from/to"
	}
	if from == nil && to == nil {
		return nil, "range needs from or to"
	}
	var out Range
	for _, bound := range []struct {
		name string
		raw  any
		dst  **float64
	}{{"from", from, &out.From}, {"to", to, &out.To}} {
		if bound.raw == nil {
			continue
		}
		f, ok := numeric(bound.raw)
		if !ok {
			return nil, fmt.Sprintf("range %s must be numeric", bound.name)
		}
		*bound.dst = &f
	}
	return out, ""
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func scalar(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		if s == "" {
			return "", false
		}
		return s, true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

func validateSelect(value any) (any, string) {
	s, ok := scalar(value)
	if !ok {
		return nil, "select needs a single scalar value"
	}
	return s, ""
}

func validateMultiSelect(value any) (any, string) {
	var items []any
	switch l := value.(type) {
	case []any:
		items = l
	case []string:
		for _, s := range l {
			items = append(items, s)
		}
	case []int:
		for _, n := range l {
			items = append(items, n)
		}
	case []float64:
		for _, n := range l {
			items = append(items, n)
		}
	default:
		return nil, "multiselect needs a list of scalars"
	}
	if len(items) == 0 {
		return nil, "multiselect needs at least one value"
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := scalar(it)
		if !ok {
			return nil, "multiselect needs a list of scalars"
		}
		out = append(out, s)
	}
	return out, ""
}

func validateBoolean(value any) (any, string) {
	switch v := value.(type) {
	case bool:
		return v, ""
	case string:
		switch v {
		case "true", "1":
			return true, ""
		case "false", "0":
			return false, ""
		}
	}
	return nil, `boolean accepts true/false or "true"/"false"/"1"/"0"`
}

func validateNested(value any) (any, string) {
	var in map[string]any
	switch m := value.(type) {
	case map[string]any:
		in = m
	case map[string]string:
		in = make(map[string]any, len(m))
		for k, v := range m {
			in[k] = v
		}
	default:
		return nil, "nested filter must be an object"
	}
	if len(in) == 0 {
		return nil, "nested filter must not be empty"
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		s, ok := scalar(v)
		if !ok {
			return nil, fmt.Sprintf("nested value %q must be a scalar", k)
		}
		out[k] = s
	}
	return out, ""
}

// ToQueryParams serializes set: range as key[from]/key[to], multiselect as a
// repeated key, boolean as "true"/"false", nested as key[sub].
func (b *Builder) ToQueryParams(set *Set) url.Values {
	q := url.Values{}
	for _, key := range set.keys {
		switch v := set.values[key].(type) {
		case Range:
			if v.From != nil {
				q.Set(key+"[from]", formatFloat(*v.From))
			}
			if v.To != nil {
				q.Set(key+"[to]", formatFloat(*v.To))
			}
		case []string:
			for _, s := range v {
				q.Add(key, s)
			}
		case bool:
			q.Set(key, strconv.FormatBool(v))
		case map[string]string:
			subs := make([]string, 0, len(v))
			for sub := range v {
				subs = append(subs, sub)
			}
			sort.Strings(subs)
			for _, sub := range subs {
				q.Set(key+"["+sub+"]", v[sub])
			}
		case string:
			q.Set(key, v)
		}
	}
	return q
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ReservedParams are query keys that are not filters.
var ReservedParams = []string{"page", "page_size", "sort", "order", "city", "lang"}

// ParseQuery builds a set for t from an inbound query string using the same
// encoding ToQueryParams produces. Reserved parameters are ignored.
func (b *Builder) ParseQuery(t domain.ObjectType, query url.Values) (*Set, error) {
	set := b.Create(t)

	grouped := make(map[string]map[string]string)
	var order []string
	plain := make(map[string][]string)

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, raw := range keys {
		if isReserved(raw) {
			continue
		}
		key, sub, hasSub := splitBracket(raw)
		if _, seen := grouped[key]; !seen && plain[key] == nil {
			order = append(order, key)
		}
		if hasSub {
			if grouped[key] == nil {
				grouped[key] = make(map[string]string)
			}
			grouped[key][sub] = query.Get(raw)
			continue
		}
		plain[key] = query[raw]
	}

	for _, key := range order {
		def, ok := b.registry.Lookup(key)
		var value any
		switch {
		case !ok:
			value = query.Get(key)
		case def.Kind == KindRange:
			r := map[string]any{}
			for sub, v := range grouped[key] {
				r[sub] = v
			}
			value = r
		case def.Kind == KindNested:
			value = grouped[key]
		case def.Kind == KindMultiSelect:
			value = plain[key]
		default:
			if vs := plain[key]; len(vs) > 0 {
				value = vs[0]
			}
		}
		if err := b.AddFilter(set, key, value); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func isReserved(key string) bool {
	for _, r := range ReservedParams {
		if key == r {
			return true
		}
	}
	return false
}

func splitBracket(raw string) (key, sub string, ok bool) {
	open := strings.IndexByte(raw, '[')
	if open <= 0 || !strings.HasSuffix(raw, "]") {
		return raw, "", false
	}
	return raw[:open], raw[open+1 : len(raw)-1], true
}
