package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pacetrack/gateway/internal/ratelimit"
)

// limitsFile is the on-disk limiter-profile document.
type limitsFile struct {
	Profiles map[string]ratelimit.Profile `yaml:"profiles"`
}

// LoadLimits loads limiter profiles from config/limits.yaml.
func LoadLimits() (map[string]ratelimit.Profile, error) {
	return LoadLimitsFromPath(filepath.Join("config", "limits.yaml"))
}

// LoadLimitsFromPath loads limiter profiles from a specific path. Every
// profile is validated; an invalid profile fails startup rather than being
// silently skipped.
func LoadLimitsFromPath(path string) (map[string]ratelimit.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read limits config: %w", err)
	}

	var f limitsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse limits config: %w", err)
	}

	profiles := make(map[string]ratelimit.Profile, len(f.Profiles))
	for name, p := range f.Profiles {
		p.Name = name
		if err := p.Validate(); err != nil {
			return nil, err
		}
		profiles[name] = p
	}
	return profiles, nil
}

// LoadLimitsOrDefault loads limiter profiles or falls back to the built-in
// set when the file is absent.
func LoadLimitsOrDefault() map[string]ratelimit.Profile {
	profiles, err := LoadLimits()
	if err != nil {
		return DefaultLimits()
	}
	return profiles
}

// DefaultLimits returns the built-in limiter profiles, one per route family.
func DefaultLimits() map[string]ratelimit.Profile {
	profiles := map[string]ratelimit.Profile{
		// User routes.
		"register": {
			WindowMS: 30 * 60 * 1000,
			Max:      5,
			KeyType:  ratelimit.KeyTypeIP,
			Message:  "Too many registrations from this address, try again later.",
		},
		"login": {
			WindowMS: 15 * 60 * 1000,
			Max:      5,
			KeyType:  ratelimit.KeyTypeIP,
			Message:  "Too many login attempts, try again later.",
		},
		"update_user": {
			WindowMS: 10 * 60 * 1000,
			Max:      10,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many profile updates, wait a moment.",
		},
		"add_friend": {
			WindowMS: 10 * 60 * 1000,
			Max:      10,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many friend requests, wait a moment.",
		},
		"get_friends": {
			WindowMS: 10 * 60 * 1000,
			Max:      30,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many friend lookups, wait a moment.",
		},
		"add_event": {
			WindowMS: 30 * 60 * 1000,
			Max:      5,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many events created, wait a moment.",
		},
		"get_events": {
			WindowMS: 10 * 60 * 1000,
			Max:      40,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many event lookups, wait a moment.",
		},
		"get_badges": {
			WindowMS: 10 * 60 * 1000,
			Max:      40,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many badge lookups, wait a moment.",
		},

		// Chatbot routes.
		"classify": {
			WindowMS: 5 * 60 * 1000,
			Max:      20,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many chatbot questions, wait a moment.",
		},
		"get_stats": {
			WindowMS: 10 * 60 * 1000,
			Max:      40,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many stats lookups, wait a moment.",
		},
		"get_stats_weekly": {
			WindowMS: 10 * 60 * 1000,
			Max:      40,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many weekly stats lookups, wait a moment.",
		},
		"get_categories": {
			WindowMS: 10 * 60 * 1000,
			Max:      60,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many category lookups, wait a moment.",
		},

		// Training routes.
		"create_training": {
			WindowMS: 60 * 60 * 1000,
			Max:      10,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many trainings created, wait a moment.",
		},
		"get_training_by_id": {
			WindowMS: 10 * 60 * 1000,
			Max:      60,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many training lookups, wait a moment.",
		},
		"get_trainings_by_user": {
			WindowMS: 10 * 60 * 1000,
			Max:      30,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many user training lookups, wait a moment.",
		},
		"get_weekly_trainings": {
			WindowMS: 10 * 60 * 1000,
			Max:      30,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many weekly training lookups, wait a moment.",
		},

		// Engagement routes.
		"create_engagement_log": {
			WindowMS: 10 * 60 * 1000,
			Max:      60,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many engagement logs, wait a moment.",
		},
		"get_engagement": {
			WindowMS: 10 * 60 * 1000,
			Max:      40,
			KeyType:  ratelimit.KeyTypeUser,
			Message:  "Too many engagement lookups, wait a moment.",
		},

		// Global fallback.
		"general": {
			WindowMS: 15 * 60 * 1000,
			Max:      200,
			KeyType:  ratelimit.KeyTypeIP,
			Message:  "Too many requests, wait a moment.",
		},
	}

	for name, p := range profiles {
		p.Name = name
		profiles[name] = p
	}
	return profiles
}
