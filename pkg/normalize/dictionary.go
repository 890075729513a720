package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Format names a dictionary envelope shape.
type Format string

const (
	// FormatAuto detects the shape from the payload.
	FormatAuto Format = ""
	// FormatNested is {key: [items]}, optionally under "data".
	FormatNested Format = "nested"
	// FormatFlat is {data: [items]} or a bare array.
	FormatFlat Format = "flat"
	// FormatSingle is {name, options|values}.
	FormatSingle Format = "single"
	// FormatFilters is {filters: {key: {values|options}}}.
	FormatFilters Format = "filters"
)

var (
	idKeys     = []string{"id", "_id", "value", "key", "code"}
	nameKeys   = []string{"name", "label", "title", "value"}
	optionKeys = []string{"options", "values"}
	groupKeys  = []string{"dictionary", "group", "type"}
)

// Item is one normalized dictionary value.
type Item struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Data map[string]any `json:"data,omitempty"`
}

// Dictionary is a keyed list of values.
type Dictionary struct {
	Key   string `json:"key"`
	Items []Item `json:"items"`
}

// DictionaryAdapter turns any supported dictionary payload into dictionaries.
// It is stateless and safe for concurrent use.
type DictionaryAdapter struct {
	tag language.Tag
}

// NewDictionaryAdapter creates an adapter using Russian casing for labels.
func NewDictionaryAdapter() *DictionaryAdapter {
	return &DictionaryAdapter{tag: language.Russian}
}

// Normalize decodes raw in the given format. nameHint names the dictionary
// when the payload does not, as in the flat shape.
func (a *DictionaryAdapter) Normalize(raw []byte, format Format, nameHint string) (map[string]Dictionary, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode dictionary: %w", err)
	}
	if format == FormatAuto {
		format = detectFormat(v)
	}

	var out map[string]Dictionary
	var err error
	switch format {
	case FormatNested:
		out, err = a.nested(v)
	case FormatFlat:
		out, err = a.flat(v, nameHint)
	case FormatSingle:
		out, err = a.single(v, nameHint)
	case FormatFilters:
		out, err = a.filters(v)
	default:
		err = fmt.Errorf("dictionary format %q: %w", format, ErrUnrecognizedEnvelope)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func detectFormat(v any) Format {
	switch body := v.(type) {
	case []any:
		return FormatFlat
	case map[string]any:
		if _, ok := body["filters"].(map[string]any); ok {
			return FormatFilters
		}
		if _, ok := body["name"].(string); ok && optionsOf(body) != nil {
			return FormatSingle
		}
		if _, ok := body["data"].([]any); ok {
			return FormatFlat
		}
		return FormatNested
	}
	return ""
}

func (a *DictionaryAdapter) nested(v any) (map[string]Dictionary, error) {
	body, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("nested dictionary: %w", ErrUnrecognizedEnvelope)
	}
	if data, ok := body["data"].(map[string]any); ok {
		body = data
	}
	out := make(map[string]Dictionary)
	for key, val := range body {
		arr, ok := val.([]any)
		if !ok {
			continue
		}
		out[key] = Dictionary{Key: key, Items: a.items(arr)}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("nested dictionary: %w", ErrUnrecognizedEnvelope)
	}
	return out, nil
}

func (a *DictionaryAdapter) flat(v any, nameHint string) (map[string]Dictionary, error) {
	var arr []any
	switch body := v.(type) {
	case []any:
		arr = body
	case map[string]any:
		data, ok := body["data"].([]any)
		if !ok {
			return nil, fmt.Errorf("flat dictionary: %w", ErrUnrecognizedEnvelope)
		}
		arr = data
	default:
		return nil, fmt.Errorf("flat dictionary: %w", ErrUnrecognizedEnvelope)
	}

	// Items tagged with a group go to that dictionary; the rest to nameHint.
	grouped := make(map[string][]any)
	for _, it := range arr {
		key := nameHint
		if obj, ok := it.(map[string]any); ok {
			if g := firstText(obj, groupKeys); g != "" {
				key = g
			}
		}
		grouped[key] = append(grouped[key], it)
	}
	out := make(map[string]Dictionary, len(grouped))
	for key, items := range grouped {
		out[key] = Dictionary{Key: key, Items: a.items(items)}
	}
	if len(out) == 0 {
		out[nameHint] = Dictionary{Key: nameHint, Items: []Item{}}
	}
	return out, nil
}

func (a *DictionaryAdapter) single(v any, nameHint string) (map[string]Dictionary, error) {
	body, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("single dictionary: %w", ErrUnrecognizedEnvelope)
	}
	opts := optionsOf(body)
	if opts == nil {
		return nil, fmt.Errorf("single dictionary: %w", ErrUnrecognizedEnvelope)
	}
	key, _ := body["name"].(string)
	if key == "" {
		key = nameHint
	}
	return map[string]Dictionary{key: {Key: key, Items: a.items(opts)}}, nil
}

func (a *DictionaryAdapter) filters(v any) (map[string]Dictionary, error) {
	body, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("filters dictionary: %w", ErrUnrecognizedEnvelope)
	}
	filters, ok := body["filters"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("filters dictionary: %w", ErrUnrecognizedEnvelope)
	}
	out := make(map[string]Dictionary)
	for key, f := range filters {
		var opts []any
		switch def := f.(type) {
		case map[string]any:
			opts = optionsOf(def)
		case []any:
			opts = def
		}
		if opts == nil {
			continue
		}
		out[key] = Dictionary{Key: key, Items: a.items(opts)}
	}
	return out, nil
}

func optionsOf(obj map[string]any) []any {
	for _, k := range optionKeys {
		if arr, ok := obj[k].([]any); ok {
			return arr
		}
	}
	return nil
}

func (a *DictionaryAdapter) items(arr []any) []Item {
	out := make([]Item, 0, len(arr))
	for _, raw := range arr {
		if it, ok := a.item(raw); ok {
			out = append(out, it)
		}
	}
	return out
}

func (a *DictionaryAdapter) item(raw any) (Item, bool) {
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return Item{}, false
		}
		return Item{ID: v, Name: a.label(v)}, true
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return Item{ID: s, Name: s}, true
	case bool:
		s := strconv.FormatBool(v)
		return Item{ID: s, Name: s}, true
	case map[string]any:
		id := firstText(v, idKeys)
		name := firstText(v, nameKeys)
		if id == "" {
			id = name
		}
		if id == "" {
			return Item{}, false
		}
		if name == "" {
			name = id
		}
		return Item{ID: id, Name: a.label(name), Data: v}, true
	}
	return Item{}, false
}

// label trims, collapses inner whitespace and upper-cases the first letter.
func (a *DictionaryAdapter) label(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	// Casers carry state, so each call gets its own.
	return cases.Upper(a.tag).String(string(r)) + s[size:]
}

func firstText(obj map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// Keys returns the dictionary keys in sorted order.
func Keys(dicts map[string]Dictionary) []string {
	keys := make([]string, 0, len(dicts))
	for k := range dicts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
