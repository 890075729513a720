// Package ratelimit caps concurrent outbound calls per upstream host and
// honours Retry-After cooldowns announced by those hosts.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RedisKeyPrefix prefixes the shared cooldown keys.
const RedisKeyPrefix = "realty:cooldown:"

const (
	// DefaultMaxPerHost is the default number of concurrent calls per host.
	DefaultMaxPerHost = 8

	// DefaultCooldown applies when a 429/503 carries no usable Retry-After.
	DefaultCooldown = 1 * time.Second

	// MaxCooldown caps a single announced cooldown.
	MaxCooldown = 60 * time.Second
)

// HostState is the observed throttling state of one upstream host.
type HostState struct {
	Host string `json:"host"`

	// CooldownUntil is the instant before which new requests must wait.
	CooldownUntil time.Time `json:"cooldown_until"`

	// LastStatus is the status that triggered the cooldown.
	LastStatus int `json:"last_status"`

	LastUpdate time.Time `json:"last_update"`
}

// InCooldown reports whether the host is still cooling down at now.
func (s *HostState) InCooldown(now time.Time) bool {
	return now.Before(s.CooldownUntil)
}

// Remaining returns the cooldown left at now, or 0 once it has passed.
func (s *HostState) Remaining(now time.Time) time.Duration {
	if !s.InCooldown(now) {
		return 0
	}
	return s.CooldownUntil.Sub(now)
}

// ParseRetryAfter reads a Retry-After header in either delta-seconds or
// HTTP-date form. ok is false when the header is absent or unparseable.
func ParseRetryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return clampCooldown(time.Duration(secs) * time.Second), true
	}
	if at, err := http.ParseTime(v); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return clampCooldown(d), true
	}
	return 0, false
}

func clampCooldown(d time.Duration) time.Duration {
	if d > MaxCooldown {
		return MaxCooldown
	}
	return d
}

// triggersCooldown reports whether a status signals upstream overload.
func triggersCooldown(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}
