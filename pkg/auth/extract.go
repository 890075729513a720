package auth

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenKeys are the body fields that may carry the token, in priority order.
var tokenKeys = []string{"auth_token", "token", "access_token"}

// tokenFromBody finds a token at the top level of a JSON object or one level
// down under "data". expiresIn is 0 when the body does not announce it.
func tokenFromBody(body []byte) (token string, expiresIn time.Duration) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", 0
	}
	if tok := firstString(obj, tokenKeys); tok != "" {
		return tok, expiresInOf(obj)
	}
	if data, ok := obj["data"].(map[string]any); ok {
		if tok := firstString(data, tokenKeys); tok != "" {
			exp := expiresInOf(data)
			if exp == 0 {
				exp = expiresInOf(obj)
			}
			return tok, exp
		}
	}
	return "", 0
}

// tokenFromLocation reads the token from a redirect target's query string.
func tokenFromLocation(header http.Header) string {
	loc := header.Get("Location")
	if loc == "" {
		return ""
	}
	u, err := url.Parse(loc)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, k := range tokenKeys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// tokenFromCookies reads an auth_token cookie.
func tokenFromCookies(header http.Header) string {
	resp := &http.Response{Header: header}
	for _, c := range resp.Cookies() {
		if c.Name == "auth_token" && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func expiresInOf(obj map[string]any) time.Duration {
	switch v := obj["expires_in"].(type) {
	case float64:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}

// jwtExpiry decodes the exp claim without verifying the signature.
func jwtExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// NormalizePhone turns Russian phone numbers into +7XXXXXXXXXX.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 11 && d[0] == '8':
		d = "7" + d[1:]
	case len(d) == 10:
		d = "7" + d
	}
	if d == "" {
		return ""
	}
	return "+" + d
}
