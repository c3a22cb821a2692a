package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

// locationsFile is the on-disk shape of the monitored site registry.
type locationsFile struct {
	Locations []domain.Location `yaml:"locations"`
}

// LoadLocations reads the monitored site registry from a YAML file. IDs are
// optional in the file; missing ones are derived from the name so the
// registry stays stable across restarts.
func LoadLocations(path string) ([]domain.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}

	var parsed locationsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse locations file: %w", err)
	}
	if len(parsed.Locations) == 0 {
		return nil, fmt.Errorf("locations file %s lists no locations", path)
	}

	seen := make(map[string]struct{}, len(parsed.Locations))
	for i := range parsed.Locations {
		loc := &parsed.Locations[i]
		if loc.Name == "" {
			return nil, fmt.Errorf("location %d: name is required", i)
		}
		if loc.ID == "" {
			loc.ID = SlugID(loc.Name)
		}
		if loc.Latitude < -90 || loc.Latitude > 90 {
			return nil, fmt.Errorf("location %s: latitude %.4f out of range", loc.ID, loc.Latitude)
		}
		if loc.Longitude < -180 || loc.Longitude > 180 {
			return nil, fmt.Errorf("location %s: longitude %.4f out of range", loc.ID, loc.Longitude)
		}
		if _, dup := seen[loc.ID]; dup {
			return nil, fmt.Errorf("location %s: duplicate id", loc.ID)
		}
		seen[loc.ID] = struct{}{}
	}

	return parsed.Locations, nil
}

// SlugID derives a stable location ID from a display name.
func SlugID(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return "loc-" + strings.Trim(slug, "-")
}
