// Package normalize collapses the provider-specific response envelopes into
// one shape for catalogs, details and dictionaries.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnrecognizedEnvelope is returned for payloads matching no known shape.
var ErrUnrecognizedEnvelope = errors.New("unrecognized response envelope")

var (
	itemKeys  = []string{"data", "items", "results"}
	totalKeys = []string{"total", "count", "totalCount"}
)

// Catalog is a normalized catalog page.
type Catalog struct {
	Items []map[string]any
	Total int
}

// NormalizeCatalog accepts a bare array (total is its length) or an object
// with the items under data|items|results and the total under
// total|count|totalCount. Non-object items are dropped.
func NormalizeCatalog(raw []byte) (Catalog, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}

	switch body := v.(type) {
	case []any:
		return Catalog{Items: objects(body), Total: len(body)}, nil
	case map[string]any:
		for _, k := range itemKeys {
			arr, ok := body[k].([]any)
			if !ok {
				continue
			}
			total, ok := firstInt(body, totalKeys)
			if !ok {
				total = len(arr)
			}
			return Catalog{Items: objects(arr), Total: total}, nil
		}
	}
	return Catalog{}, fmt.Errorf("catalog: %w", ErrUnrecognizedEnvelope)
}

// ParseTotal reads a count response: a bare number, an object carrying
// total|count|totalCount, or a catalog envelope.
func ParseTotal(raw []byte) (int, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	if n, ok := toInt(v); ok {
		return n, nil
	}
	if obj, ok := v.(map[string]any); ok {
		if n, ok := firstInt(obj, totalKeys); ok {
			return n, nil
		}
		if data, ok := obj["data"].(map[string]any); ok {
			if n, ok := firstInt(data, totalKeys); ok {
				return n, nil
			}
		}
	}
	c, err := NormalizeCatalog(raw)
	if err != nil {
		return 0, err
	}
	return c.Total, nil
}

// UnwrapValue returns the entity object of a decoded detail response. A
// payload whose identity sits under "data" is unwrapped one level.
func UnwrapValue(v any) (map[string]any, error) {
	switch body := v.(type) {
	case map[string]any:
		if _, hasID := body["id"]; !hasID {
			if _, hasID := body["_id"]; !hasID {
				if data, ok := body["data"].(map[string]any); ok {
					return data, nil
				}
			}
		}
		return body, nil
	case []any:
		if len(body) == 1 {
			if obj, ok := body[0].(map[string]any); ok {
				return obj, nil
			}
		}
	}
	return nil, fmt.Errorf("detail: %w", ErrUnrecognizedEnvelope)
}

func objects(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		if obj, ok := it.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func firstInt(obj map[string]any, keys []string) (int, bool) {
	for _, k := range keys {
		if n, ok := toInt(obj[k]); ok {
			return n, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}
