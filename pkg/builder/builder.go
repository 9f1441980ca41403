package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/polybuild/polybuild/pkg/journal"
	"github.com/polybuild/polybuild/pkg/policy"
	"github.com/polybuild/polybuild/pkg/telemetry"
	"github.com/polybuild/polybuild/pkg/workflow"
)

// Request describes one build to run.
type Request struct {
	// Capability selects the workflow explicitly. When language and
	// dependency manager are both empty, the builder detects the workflow
	// from the manifest base name instead.
	Capability workflow.Capability

	// Config is the per-build configuration handed to the workflow.
	Config workflow.Config

	// Overrides pins logical binary names to explicit candidate paths,
	// bypassing path resolution for those requirements.
	Overrides map[string][]string

	// User and Environment feed the admission policy context.
	User        string
	Environment string
}

// Result summarizes a finished build run. Status mirrors what the journal
// recorded.
type Result struct {
	RunID        string
	Workflow     string
	Capability   string
	Status       journal.RunStatus
	StartedAt    time.Time
	Duration     time.Duration
	ArtifactsDir string

	// Warnings carries advisory policy findings that did not block the
	// build.
	Warnings []policy.Violation
}

// Options configures a Builder. Registry is required; a nil journal skips
// history, a nil policy engine admits everything, and nil metrics, tracer or
// events degrade to no-ops.
type Options struct {
	Registry *workflow.Registry
	Journal  journal.Store
	Policies *policy.Engine
	Metrics  *telemetry.Metrics
	Tracer   *telemetry.Tracer
	Events   *telemetry.EventPublisher
	Logger   zerolog.Logger
}

// Builder drives builds end to end: workflow selection, admission, journaled
// execution, and outcome classification.
type Builder struct {
	registry *workflow.Registry
	journal  journal.Store
	policies *policy.Engine
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	events   *telemetry.EventPublisher
	logger   zerolog.Logger
}

// New creates a Builder.
func New(opts Options) (*Builder, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("workflow registry is required")
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics, _ = telemetry.NewMetrics(telemetry.MetricsConfig{})
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer, _ = telemetry.NewTracer(telemetry.TracingConfig{}, "polybuild", "", "")
	}

	events := opts.Events
	if events == nil {
		events, _ = telemetry.NewEventPublisher(telemetry.EventsConfig{})
	}

	return &Builder{
		registry: opts.Registry,
		journal:  opts.Journal,
		policies: opts.Policies,
		metrics:  metrics,
		tracer:   tracer,
		events:   events,
		logger:   opts.Logger.With().Str("component", "builder").Logger(),
	}, nil
}

// Build runs one build end to end. The result is non-nil whenever a run was
// journaled, including denied and failed runs; the error carries the
// classified failure. Errors before admission (unknown capability, invalid
// configuration, bad binary pins) return a nil result and journal nothing.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.New().String()

	def, err := b.selectDefinition(req)
	if err != nil {
		return nil, err
	}

	logger := b.logger.With().
		Str("run_id", runID).
		Str("workflow", def.Name).
		Logger()

	w, err := workflow.New(def, req.Config, b.logger)
	if err != nil {
		return nil, err
	}

	if err := applyOverrides(w.Binaries(), req.Overrides); err != nil {
		return nil, err
	}

	started := time.Now()

	admission, err := b.admit(ctx, def, req)
	if err != nil {
		return nil, err
	}
	if !admission.Allowed {
		return b.deny(ctx, logger, runID, def, req, started, admission)
	}

	run := &journal.Run{
		ID:           runID,
		Workflow:     def.Name,
		Capability:   def.Capability.String(),
		Status:       journal.RunStatusRunning,
		SourceDir:    req.Config.SourceDir,
		ArtifactsDir: req.Config.ArtifactsDir,
		ScratchDir:   req.Config.ScratchDir,
		Runtime:      req.Config.Runtime,
		StartedAt:    started,
	}
	if b.journal != nil {
		if err := b.journal.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to journal run %s: %w", runID, err)
		}
	}

	b.appendEvent(ctx, logger, runID, journal.EventTypeBuildStarted,
		fmt.Sprintf("Starting %s build of %s", def.Name, req.Config.SourceDir), nil)
	_ = b.events.PublishBuildStarted(runID, def.Name)
	for _, warning := range admission.Warnings {
		b.appendEvent(ctx, logger, runID, journal.EventTypePolicyWarning, warning.Message,
			map[string]interface{}{"policy": warning.Policy})
		_ = b.events.PublishPolicyViolation(runID, warning.Policy, warning.Message)
	}

	b.metrics.RecordBuildStarted(def.Name)

	ctx, span := b.tracer.StartBuildSpan(ctx, runID, def.Name)
	defer span.End()

	w.SetObserver(&runObserver{
		journal:  b.journal,
		metrics:  b.metrics,
		tracer:   b.tracer,
		events:   b.events,
		logger:   logger,
		runID:    runID,
		workflow: def.Name,
		binaries: len(w.Binaries()),
		steps:    make(map[int]int64),
		spans:    make(map[int]trace.Span),
	})

	logger.Info().
		Str("capability", def.Capability.String()).
		Int("policies", len(admission.EvaluatedPolicies)).
		Msg("Build admitted")

	runErr := w.Run(ctx)
	duration := time.Since(started)

	result := &Result{
		RunID:        runID,
		Workflow:     def.Name,
		Capability:   def.Capability.String(),
		StartedAt:    started,
		Duration:     duration,
		ArtifactsDir: req.Config.ArtifactsDir,
		Warnings:     admission.Warnings,
	}

	if runErr == nil {
		result.Status = journal.RunStatusSucceeded
		b.finishRun(ctx, logger, runID, journal.Outcome{Status: journal.RunStatusSucceeded})
		b.appendEvent(ctx, logger, runID, journal.EventTypeBuildCompleted,
			fmt.Sprintf("Build succeeded in %s", duration.Round(time.Millisecond)), nil)
		_ = b.events.PublishBuildCompleted(runID, def.Name, string(journal.RunStatusSucceeded), duration)
		b.metrics.RecordBuildCompleted(def.Name, string(journal.RunStatusSucceeded), duration)
		b.metrics.RecordBinaryValidation(def.Name, telemetry.ValidationSatisfied)
		telemetry.RecordSuccess(span)
		logger.Info().Dur("duration", duration).Msg("Build succeeded")
		return result, nil
	}

	class := workflow.ClassOf(runErr)
	result.Status = journal.RunStatusFailed

	msg := runErr.Error()
	outcome := journal.Outcome{
		Status:     journal.RunStatusFailed,
		ErrorClass: string(class),
		Error:      &msg,
	}
	var wfErr *workflow.WorkflowError
	if errors.As(runErr, &wfErr) {
		outcome.ErrorAction = wfErr.Action
	}
	b.finishRun(ctx, logger, runID, outcome)

	if class == workflow.ErrorClassBinaryValidation {
		b.appendEvent(ctx, logger, runID, journal.EventTypeGateFailed, msg, nil)
		_ = b.events.PublishGateFailed(runID, def.Name, msg)
		b.metrics.RecordBinaryValidation(def.Name, telemetry.ValidationUnsatisfied)
	} else {
		b.appendEvent(ctx, logger, runID, journal.EventTypeBuildFailed, msg, nil)
		_ = b.events.PublishBuildFailed(runID, def.Name, msg)
	}
	b.metrics.RecordBuildCompleted(def.Name, string(journal.RunStatusFailed), duration)
	b.metrics.RecordError(string(class))
	telemetry.RecordError(span, runErr)

	logger.Error().
		Err(runErr).
		Str("class", string(class)).
		Dur("duration", duration).
		Msg("Build failed")

	return result, runErr
}

// selectDefinition resolves the workflow to run. An explicit capability wins;
// otherwise the manifest base name must identify exactly one workflow.
func (b *Builder) selectDefinition(req Request) (*workflow.Definition, error) {
	if req.Capability.Language != "" || req.Capability.DependencyManager != "" {
		return b.registry.Lookup(req.Capability)
	}

	if req.Config.ManifestPath == "" {
		return nil, workflow.NewRegistrationError(
			"build request names neither a capability nor a manifest", nil)
	}

	base := filepath.Base(req.Config.ManifestPath)
	matches := b.registry.Match(req.Config.ManifestPath)
	switch len(matches) {
	case 0:
		return nil, workflow.NewRegistrationError(
			fmt.Sprintf("no workflow supports manifest %s", base), nil)
	case 1:
		return matches[0], nil
	}

	names := make([]string, len(matches))
	for i, def := range matches {
		names[i] = def.Name
	}
	return nil, workflow.NewRegistrationError(
		fmt.Sprintf("manifest %s is claimed by multiple workflows (%s); select one with an explicit capability",
			base, strings.Join(names, ", ")), nil)
}

// applyOverrides copies pinned candidate paths onto the matching
// requirements. A pin for a name the workflow does not declare is an error
// listing the names it does.
func applyOverrides(binaries map[string]*workflow.BinaryRequirement, overrides map[string][]string) error {
	for name, paths := range overrides {
		req, ok := binaries[name]
		if !ok {
			known := make([]string, 0, len(binaries))
			for n := range binaries {
				known = append(known, n)
			}
			sort.Strings(known)
			return fmt.Errorf("request pins unknown binary %q (workflow binaries: %s)",
				name, strings.Join(known, ", "))
		}
		req.OverridePaths = append([]string(nil), paths...)
	}
	return nil
}

// admit evaluates admission policies for the request. A nil engine admits
// everything.
func (b *Builder) admit(ctx context.Context, def *workflow.Definition, req Request) (*policy.Result, error) {
	if b.policies == nil {
		return &policy.Result{Allowed: true}, nil
	}

	input := &policy.Input{
		Workflow:   def.Name,
		Capability: def.Capability,
		Config:     req.Config,
		Context: &policy.Context{
			User:        req.User,
			Environment: req.Environment,
			Timestamp:   time.Now(),
		},
	}

	result, err := b.policies.Evaluate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}
	return result, nil
}

// deny journals a denied run and returns the denial as a result and error.
func (b *Builder) deny(ctx context.Context, logger zerolog.Logger, runID string, def *workflow.Definition, req Request, started time.Time, admission *policy.Result) (*Result, error) {
	deniedErr := &DeniedError{
		RunID:      runID,
		Workflow:   def.Name,
		Violations: admission.Violations,
	}

	now := time.Now()
	msg := deniedErr.Error()
	run := &journal.Run{
		ID:           runID,
		Workflow:     def.Name,
		Capability:   def.Capability.String(),
		Status:       journal.RunStatusDenied,
		SourceDir:    req.Config.SourceDir,
		ArtifactsDir: req.Config.ArtifactsDir,
		ScratchDir:   req.Config.ScratchDir,
		Runtime:      req.Config.Runtime,
		StartedAt:    started,
		CompletedAt:  &now,
		ErrorClass:   ErrorClassPolicyDenied,
		Error:        &msg,
	}
	if b.journal != nil {
		if err := b.journal.CreateRun(ctx, run); err != nil {
			logger.Error().Err(err).Msg("Failed to journal denied run")
		}
	}

	for _, violation := range admission.Violations {
		b.metrics.RecordPolicyDenial(violation.Policy)
		_ = b.events.PublishBuildDenied(runID, def.Name, violation.Policy)
		b.appendEvent(ctx, logger, runID, journal.EventTypeBuildDenied, violation.Message,
			map[string]interface{}{
				"policy":   violation.Policy,
				"severity": string(violation.Severity),
			})
	}
	b.metrics.RecordError(ErrorClassPolicyDenied)

	logger.Warn().
		Int("violations", len(admission.Violations)).
		Msg("Build denied by policy")

	return &Result{
		RunID:        runID,
		Workflow:     def.Name,
		Capability:   def.Capability.String(),
		Status:       journal.RunStatusDenied,
		StartedAt:    started,
		Duration:     time.Since(started),
		ArtifactsDir: req.Config.ArtifactsDir,
		Warnings:     admission.Warnings,
	}, deniedErr
}

// appendEvent writes one audit trail entry. Journal failures are logged and
// swallowed.
func (b *Builder) appendEvent(ctx context.Context, logger zerolog.Logger, runID string, eventType journal.EventType, message string, details map[string]interface{}) {
	if b.journal == nil {
		return
	}

	event := &journal.Event{
		RunID:     &runID,
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	}
	if len(details) > 0 {
		if data, err := json.Marshal(details); err == nil {
			s := string(data)
			event.Details = &s
		}
	}

	if err := b.journal.AppendEvent(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to journal event")
	}
}

// finishRun writes the run outcome. Journal failures are logged and
// swallowed; the build outcome already stands.
func (b *Builder) finishRun(ctx context.Context, logger zerolog.Logger, runID string, outcome journal.Outcome) {
	if b.journal == nil {
		return
	}
	if err := b.journal.FinishRun(ctx, runID, outcome); err != nil {
		logger.Error().Err(err).Msg("Failed to journal run outcome")
	}
}
