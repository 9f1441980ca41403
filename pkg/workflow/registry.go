package workflow

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/polybuild/polybuild/pkg/actions"
)

// Definition describes a registered workflow: the capability it serves, the
// manifests it understands, and how to assemble its binary requirements and
// actions for one build.
type Definition struct {
	// Name identifies the workflow, e.g. "python-pip".
	Name string

	// Capability is the build variant this workflow serves.
	Capability Capability

	// SupportedManifests lists manifest base names the workflow understands.
	// An empty list accepts any manifest.
	SupportedManifests []string

	// NewProvider builds the requirement provider for one build. Nil selects
	// the default provider: the capability's language searched on the PATH
	// and accepted without version validation.
	NewProvider func(cfg Config) RequirementProvider

	// Plan assembles the ordered action list for one build. The binaries map
	// is keyed by binary name; actions keep requirement references and read
	// the resolved paths at execution time, after the gate has run.
	Plan func(cfg Config, binaries map[string]*BinaryRequirement) ([]actions.Action, error)
}

// Validate returns an error if the definition is missing a name or carries
// an incomplete capability.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("definition is nil")
	}
	if d.Name == "" {
		return fmt.Errorf("definition requires a name")
	}
	if err := d.Capability.Validate(); err != nil {
		return fmt.Errorf("definition %s: %w", d.Name, err)
	}
	return nil
}

// IsSupported reports whether the manifest's base name is one the workflow
// understands. A definition with no supported manifests accepts any manifest.
func (d *Definition) IsSupported(manifestPath string) bool {
	if len(d.SupportedManifests) == 0 {
		return true
	}
	base := filepath.Base(manifestPath)
	for _, m := range d.SupportedManifests {
		if m == base {
			return true
		}
	}
	return false
}

// Registry maps capabilities to workflow definitions. Registration happens
// explicitly at startup; lookups during builds only read.
type Registry struct {
	// mu protects the registry state.
	mu sync.RWMutex

	// definitions maps a normalized capability to its workflow definition.
	definitions map[Capability]*Definition

	logger zerolog.Logger
}

// NewRegistry creates an empty workflow registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		definitions: make(map[Capability]*Definition),
		logger:      logger.With().Str("component", "registry").Logger(),
	}
}

// Register inserts a definition under its capability. Registering a second
// definition for an already-used capability replaces the previous one; the
// replacement is logged so surprising shadowing is visible at startup.
func (r *Registry) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return NewRegistrationError("cannot register workflow", err)
	}

	key := def.Capability.normalized()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.definitions[key]; ok {
		r.logger.Warn().
			Str("capability", key.String()).
			Str("previous", existing.Name).
			Str("replacement", def.Name).
			Msg("Replacing registered workflow")
	}
	r.definitions[key] = def

	r.logger.Debug().
		Str("capability", key.String()).
		Str("workflow", def.Name).
		Msg("Registered workflow")
	return nil
}

// Lookup returns the definition registered for the capability.
func (r *Registry) Lookup(capability Capability) (*Definition, error) {
	key := capability.normalized()

	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.definitions[key]
	if !ok {
		return nil, NewRegistrationError(
			fmt.Sprintf("no workflow registered for capability %s", key), nil)
	}
	return def, nil
}

// List returns all registered definitions sorted by workflow name.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.definitions))
	for _, def := range r.definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.definitions)
}

// Match returns the definitions that explicitly list the manifest's base name
// as supported, sorted by workflow name. Definitions with an empty
// supported-manifest list accept any manifest and so are excluded here; Match
// is for detecting a workflow from a manifest, where catch-alls carry no
// signal.
func (r *Registry) Match(manifestPath string) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*Definition
	for _, def := range r.definitions {
		if len(def.SupportedManifests) > 0 && def.IsSupported(manifestPath) {
			matches = append(matches, def)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Name < matches[j].Name
	})
	return matches
}
