package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// DefaultProfileID is used when no profile is named.
const DefaultProfileID = "capcut"

// Registry holds all protectable application profiles.
type Registry struct {
	profiles map[string]AppProfile
}

// NewRegistry creates a registry with all default profiles rooted at localAppData.
func NewRegistry(localAppData string) *Registry {
	r := &Registry{
		profiles: make(map[string]AppProfile),
	}

	// Register default profiles
	r.Register(NewCapCutProfile(localAppData))

	return r
}

// NewRegistryWithProfiles creates a registry with custom profiles (for testing).
func NewRegistryWithProfiles(profiles ...AppProfile) *Registry {
	r := &Registry{
		profiles: make(map[string]AppProfile),
	}
	for _, p := range profiles {
		r.Register(p)
	}
	return r
}

// Register adds a profile, replacing any with the same ID.
func (r *Registry) Register(p AppProfile) {
	r.profiles[p.ID()] = p
}

// Get returns a profile by ID.
func (r *Registry) Get(id string) (AppProfile, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// List returns all profile IDs, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup returns the domain profile for id.
func (r *Registry) Lookup(id string) (domain.Profile, error) {
	p, ok := r.Get(id)
	if !ok {
		return domain.Profile{}, fmt.Errorf("profile not found: %s (available: %s)", id, strings.Join(r.List(), ", "))
	}
	return ToProfile(p), nil
}
