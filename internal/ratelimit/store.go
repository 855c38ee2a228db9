// Package ratelimit provides the shared fixed-window counter store used by
// the admission controller.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store is the shared counter store. Incr is the single mutation primitive:
// it atomically increments the window counter for key, starting the window
// (and its expiry) only when the key did not previously exist. Subsequent
// increments never refresh the expiry, so a steady request stream cannot
// postpone the window reset.
//
// All counter mutation in the gateway goes through Incr; read-then-write
// against the store is not permitted anywhere.
type Store interface {
	// Incr returns the post-increment count and the remaining time until
	// the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)

	// Close releases the store's resources.
	Close() error
}

// KeyType selects how the admission controller derives the counter key.
type KeyType string

const (
	// KeyTypeUser keys the quota by the verified caller identity. Profiles
	// with this key type require the auth gate to run first.
	KeyTypeUser KeyType = "user"

	// KeyTypeIP keys the quota by the caller's network address.
	KeyTypeIP KeyType = "ip"
)

// Profile is one route's immutable admission-control configuration. Profiles
// are read once at startup and never mutated afterwards.
type Profile struct {
	Name     string  `yaml:"-"`
	WindowMS int64   `yaml:"window_ms"`
	Max      int     `yaml:"max"`
	KeyType  KeyType `yaml:"key_type"`
	Message  string  `yaml:"message"`
}

// Window returns the profile's window length.
func (p Profile) Window() time.Duration {
	return time.Duration(p.WindowMS) * time.Millisecond
}

// Validate checks the profile's invariants.
func (p Profile) Validate() error {
	if p.WindowMS <= 0 {
		return fmt.Errorf("profile %s: window_ms must be positive", p.Name)
	}
	if p.Max <= 0 {
		return fmt.Errorf("profile %s: max must be positive", p.Name)
	}
	switch p.KeyType {
	case KeyTypeUser, KeyTypeIP:
	default:
		return fmt.Errorf("profile %s: key_type must be %q or %q", p.Name, KeyTypeUser, KeyTypeIP)
	}
	return nil
}
