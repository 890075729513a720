package cache

import (
	"strings"
	"time"
)

// Namespace partitions cache keys and fixes their TTL.
type Namespace string

const (
	NamespaceDictionaries Namespace = "dictionaries"
	NamespaceSlugs        Namespace = "slugs"
)

// Namespace TTLs.
const (
	DictionaryTTL = 24 * time.Hour
	SlugTTL       = 1 * time.Hour
)

// TTL returns the namespace's entry lifetime.
func (n Namespace) TTL() time.Duration {
	switch n {
	case NamespaceDictionaries:
		return DictionaryTTL
	case NamespaceSlugs:
		return SlugTTL
	default:
		return time.Hour
	}
}

// Key identifies one cached value.
type Key struct {
	Namespace  Namespace
	ObjectType string
	City       string
	Key        string
}

// String generates a deterministic key.
// Format: realty:<namespace>:<object type>:<city>:<key>, with "-" for empty parts.
//
// Example:
//
//	realty:dictionaries:complex:msk:class
func (k Key) String() string {
	parts := []string{"realty", part(string(k.Namespace)), part(k.ObjectType), part(k.City), part(k.Key)}
	return strings.Join(parts, ":")
}

func part(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, ":", "_")
}
