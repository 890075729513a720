// Package router maps an object type and operation to the upstream request
// template that serves it, and renders templates into URLs.
package router

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// TokenParam is the query parameter carrying the bearer token.
const TokenParam = "auth_token"

// Operation names one upstream call for an object type.
type Operation string

const (
	OpCatalog      Operation = "catalog"
	OpCount        Operation = "count"
	OpDetail       Operation = "detail"
	OpDictionaries Operation = "dictionaries"
)

// Template is an immutable description of one upstream endpoint.
type Template struct {
	// Host is the scheme and authority, e.g. https://api.example.com.
	Host string
	// Version is an optional path segment placed before Path.
	Version    string
	Path       string
	Method     string
	Required   []string
	Optional   []string
	PathParams []string
	// AuthRequired adds the bearer token to the query string.
	AuthRequired bool
}

// BuildURL substitutes path parameters and encodes the query. city and lang
// are always sent; token only when the template requires it. Multi-valued
// parameters become repeated keys.
func BuildURL(tpl Template, pathParams map[string]string, query url.Values, city, lang, token string) (string, error) {
	path := tpl.Path
	for _, name := range tpl.PathParams {
		v, ok := pathParams[name]
		if !ok || v == "" {
			return "", fmt.Errorf("build %s: missing path parameter %q", tpl.Path, name)
		}
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(v))
	}

	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	for _, name := range tpl.Required {
		if name == "city" || name == "lang" {
			continue
		}
		if len(q[name]) == 0 {
			return "", fmt.Errorf("build %s: missing required parameter %q", tpl.Path, name)
		}
	}
	if city != "" {
		q.Set("city", city)
	}
	if lang != "" {
		q.Set("lang", lang)
	}
	q.Del(TokenParam)
	if tpl.AuthRequired && token != "" {
		q.Set(TokenParam, token)
	}

	base := strings.TrimRight(tpl.Host, "/")
	if tpl.Version != "" {
		base += "/" + strings.Trim(tpl.Version, "/")
	}
	u := base + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u, nil
}

func get(path string, required, optional []string, pathParams ...string) Template {
	return Template{
		Path:       path,
		Method:     http.MethodGet,
		Required:   required,
		Optional:   optional,
		PathParams: pathParams,
	}
}
