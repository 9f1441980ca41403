package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/polybuild/polybuild/pkg/actions"
)

// Observer receives action lifecycle callbacks during Run. Callbacks run
// inline on the build goroutine, in execution order.
type Observer interface {
	// ActionStarted is called immediately before an action executes.
	ActionStarted(ctx context.Context, action actions.Action, index int)

	// ActionCompleted is called after an action finishes, with its duration
	// and error, if any.
	ActionCompleted(ctx context.Context, action actions.Action, index int, duration time.Duration, err error)
}

// Workflow is a configured, runnable build: an ordered action list plus the
// binary requirements that gate it. Construct a fresh instance per build;
// instances are not safe for concurrent or repeated runs.
type Workflow struct {
	def      *Definition
	cfg      Config
	provider RequirementProvider
	binaries map[string]*BinaryRequirement
	actions  []actions.Action
	observer Observer
	logger   zerolog.Logger
}

// New constructs a workflow from its definition and per-build configuration.
// The action plan is assembled immediately; binary paths stay unresolved
// until the validation gate inside Run writes them.
func New(def *Definition, cfg Config, logger zerolog.Logger) (*Workflow, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Workflow{
		def:    def,
		cfg:    cfg,
		logger: logger.With().Str("workflow", def.Name).Logger(),
	}

	if def.NewProvider != nil {
		w.provider = def.NewProvider(cfg)
	} else {
		w.provider = &defaultProvider{capability: def.Capability, cfg: cfg}
	}

	if def.Plan != nil {
		acts, err := def.Plan(cfg, w.Binaries())
		if err != nil {
			return nil, fmt.Errorf("failed to plan actions for workflow %s: %w", def.Name, err)
		}
		w.actions = acts
	}

	return w, nil
}

// Name returns the workflow name.
func (w *Workflow) Name() string {
	return w.def.Name
}

// Capability returns the capability this workflow serves.
func (w *Workflow) Capability() Capability {
	return w.def.Capability
}

// Config returns the per-build configuration.
func (w *Workflow) Config() Config {
	return w.cfg
}

// Actions returns the ordered action list.
func (w *Workflow) Actions() []actions.Action {
	return append([]actions.Action(nil), w.actions...)
}

// IsSupported reports whether the configured manifest belongs to this
// workflow, by base name. A workflow with no declared supported manifests
// accepts any manifest.
func (w *Workflow) IsSupported() bool {
	return w.def.IsSupported(w.cfg.ManifestPath)
}

// SetObserver installs an observer for action lifecycle callbacks.
func (w *Workflow) SetObserver(observer Observer) {
	w.observer = observer
}

// Binaries returns the binary requirements keyed by name. The set is derived
// from the requirement provider on first call and memoized.
func (w *Workflow) Binaries() map[string]*BinaryRequirement {
	if w.binaries == nil {
		w.binaries = requirementsFrom(w.provider)
	}
	return w.binaries
}

// SetBinaries replaces the requirement set, bypassing the provider. Tests use
// this to exercise the gate with controlled resolvers and validators.
func (w *Workflow) SetBinaries(binaries map[string]*BinaryRequirement) {
	w.binaries = binaries
}

// requirementsFrom pairs the provider's resolvers and validators positionally
// and keys the result by each resolver's binary name. Extra entries in the
// longer list are ignored.
func requirementsFrom(provider RequirementProvider) map[string]*BinaryRequirement {
	if provider == nil {
		return map[string]*BinaryRequirement{}
	}

	resolvers := provider.Resolvers()
	validators := provider.Validators()

	n := len(resolvers)
	if len(validators) < n {
		n = len(validators)
	}

	reqs := make(map[string]*BinaryRequirement, n)
	for i := 0; i < n; i++ {
		resolver := resolvers[i]
		reqs[resolver.BinaryName()] = &BinaryRequirement{
			Name:      resolver.BinaryName(),
			Resolver:  resolver,
			Validator: validators[i],
		}
	}
	return reqs
}

// defaultProvider supplies the fallback requirement set: the capability's
// language resolved on the PATH and accepted without version validation.
type defaultProvider struct {
	capability Capability
	cfg        Config
}

func (p *defaultProvider) Resolvers() []Resolver {
	return []Resolver{
		NewPathResolver(p.capability.Language, p.cfg.Runtime, p.cfg.ExecutableSearchPaths...),
	}
}

func (p *defaultProvider) Validators() []Validator {
	return []Validator{NopValidator()}
}

// ValidateBinaries runs the pre-flight gate: every binary requirement must
// resolve to a validated executable before any action may run. Requirements
// are checked in name order. Override paths, when set, replace the resolver's
// candidates entirely. A requirement with no candidates, or none that
// validate, is unsatisfied; one unsatisfied requirement fails the gate for
// the whole workflow. Unexpected validator faults are not swallowed.
func (w *Workflow) ValidateBinaries() error {
	binaries := w.Binaries()

	names := make([]string, 0, len(binaries))
	for name := range binaries {
		names = append(names, name)
	}
	sort.Strings(names)

	satisfied := 0
	var unsatisfied []string

	for _, name := range names {
		req := binaries[name]

		candidates, err := req.candidates()
		if err != nil || len(candidates) == 0 {
			w.logger.Debug().Str("binary", name).Err(err).Msg("No candidates for binary")
			unsatisfied = append(unsatisfied, name)
			continue
		}

		validated := false
		for _, candidate := range candidates {
			validator := req.Validator
			if validator == nil {
				validator = NopValidator()
			}

			resolved, err := validator.Validate(candidate)
			if err == nil {
				req.resolvedPath = resolved
				w.logger.Debug().Str("binary", name).Str("path", resolved).Msg("Binary validated")
				validated = true
				break
			}
			if IsMismatch(err) {
				w.logger.Debug().
					Str("binary", name).
					Str("candidate", candidate).
					Err(err).
					Msg("Candidate rejected")
				continue
			}
			return fmt.Errorf("validating binary %s at %s: %w", name, candidate, err)
		}

		if validated {
			satisfied++
		} else {
			unsatisfied = append(unsatisfied, name)
		}
	}

	if satisfied != len(binaries) {
		return NewBinaryValidationError(
			fmt.Sprintf("binary validation failed for %s", strings.Join(unsatisfied, ", ")), nil).
			WithWorkflow(w.def.Name)
	}
	return nil
}

// Run executes the workflow: the binary validation gate first, then the
// no-actions check, then every action strictly in declared order. The first
// failure stops the run and is returned classified; no retries happen here.
func (w *Workflow) Run(ctx context.Context) error {
	w.logger.Info().
		Str("capability", w.def.Capability.String()).
		Int("actions", len(w.actions)).
		Msg("Starting workflow run")

	if err := w.ValidateBinaries(); err != nil {
		return err
	}

	if len(w.actions) == 0 {
		return NewNoActionsError(
			fmt.Sprintf("workflow %s has no actions registered", w.def.Name)).
			WithWorkflow(w.def.Name)
	}

	for i, action := range w.actions {
		if err := w.runAction(ctx, action, i); err != nil {
			return err
		}
	}

	w.logger.Info().Msg("Workflow run succeeded")
	return nil
}

// runAction executes one action with observer callbacks and classifies its
// failure as expected or unknown.
func (w *Workflow) runAction(ctx context.Context, action actions.Action, index int) error {
	logger := w.logger.With().Str("action", action.Name()).Logger()
	logger.Info().Str("purpose", action.Purpose().String()).Msg("Running action")

	if w.observer != nil {
		w.observer.ActionStarted(ctx, action, index)
	}

	start := time.Now()
	err := action.Execute(ctx)
	duration := time.Since(start)

	if w.observer != nil {
		w.observer.ActionCompleted(ctx, action, index, duration, err)
	}

	if err != nil {
		if actions.IsFailed(err) {
			logger.Error().Err(err).Msg("Action failed")
			return NewActionFailedError("action failed", err).
				WithWorkflow(w.def.Name).
				WithAction(action.Name())
		}
		logger.Error().Err(err).Msg("Action raised an unexpected error")
		return NewUnknownError("unexpected error during action", err).
			WithWorkflow(w.def.Name).
			WithAction(action.Name())
	}

	logger.Debug().Dur("duration", duration).Msg("Action completed")
	return nil
}
