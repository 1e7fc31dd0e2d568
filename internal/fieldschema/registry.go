package fieldschema

import (
	"fmt"
	"sort"

	"github.com/matthewbaird/adbatch/internal/types"
)

// Config is the schema configuration of one advertising platform.
type Config struct {
	// PlatformHierarchy lists the active levels in order (1-3 entries).
	PlatformHierarchy []types.EntityType `json:"platformHierarchy"`
	// Levels maps each level to its field schema.
	Levels map[types.EntityType]Schema `json:"levels"`
}

// Validate checks the hierarchy and every level schema.
func (c Config) Validate() error {
	if n := len(c.PlatformHierarchy); n < 1 || n > 3 {
		return fmt.Errorf("platform hierarchy must have 1-3 levels, got %d", n)
	}
	seen := make(map[types.EntityType]bool)
	for _, lvl := range c.PlatformHierarchy {
		if !lvl.IsValid() {
			return fmt.Errorf("unknown level %q in hierarchy", lvl)
		}
		if seen[lvl] {
			return fmt.Errorf("level %q listed twice in hierarchy", lvl)
		}
		seen[lvl] = true
		s, ok := c.Levels[lvl]
		if !ok {
			return fmt.Errorf("level %q has no schema", lvl)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("level %q: %w", lvl, err)
		}
	}
	return nil
}

// HasLevel reports whether the level is part of the hierarchy.
func (c Config) HasLevel(lvl types.EntityType) bool {
	for _, l := range c.PlatformHierarchy {
		if l == lvl {
			return true
		}
	}
	return false
}

// Level returns the schema of an active level.
func (c Config) Level(lvl types.EntityType) (Schema, bool) {
	if !c.HasLevel(lvl) {
		return nil, false
	}
	s, ok := c.Levels[lvl]
	return s, ok
}

// Registry holds schema configurations per platform. It is populated at
// startup and is safe for concurrent read access afterwards.
type Registry struct {
	platforms map[string]*Config
	fallback  *Config
}

// NewRegistry creates a registry that answers unknown platforms with fallback.
func NewRegistry(fallback Config) *Registry {
	return &Registry{
		platforms: make(map[string]*Config),
		fallback:  &fallback,
	}
}

// Register adds a platform configuration after validating it.
func (r *Registry) Register(platform string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("platform %q: %w", platform, err)
	}
	r.platforms[platform] = &cfg
	return nil
}

// Config returns the platform's configuration, or the fallback.
func (r *Registry) Config(platform string) Config {
	if c, ok := r.platforms[platform]; ok {
		return *c
	}
	return *r.fallback
}

// Platforms returns the registered platform names in sorted order.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.platforms))
	for name := range r.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
