package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/polybuild/polybuild/pkg/actions"
	"github.com/polybuild/polybuild/pkg/journal"
	"github.com/polybuild/polybuild/pkg/telemetry"
)

// runObserver receives action lifecycle callbacks for one run and fans them
// out to the journal, metrics, trace spans, and the event publisher. Journal
// failures are logged and swallowed.
type runObserver struct {
	journal  journal.Store
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	events   *telemetry.EventPublisher
	logger   zerolog.Logger
	runID    string
	workflow string
	binaries int

	mu    sync.Mutex
	steps map[int]int64
	spans map[int]trace.Span
}

// ActionStarted opens the action span and journals the step. The first
// callback doubles as the gate-passed signal: actions only run once every
// binary requirement validated.
func (o *runObserver) ActionStarted(ctx context.Context, action actions.Action, index int) {
	_, span := o.tracer.StartActionSpan(ctx, o.workflow, action.Name(), action.Purpose().String())

	o.mu.Lock()
	o.spans[index] = span
	o.mu.Unlock()

	if index == 0 {
		_ = o.events.PublishGatePassed(o.runID, o.workflow, o.binaries)
	}
	_ = o.events.PublishActionStarted(o.runID, o.workflow, action.Name(), action.Purpose().String())

	if o.journal == nil {
		return
	}

	step := &journal.Step{
		RunID:   o.runID,
		Index:   index,
		Name:    action.Name(),
		Purpose: action.Purpose().String(),
	}
	if err := o.journal.StartStep(ctx, step); err != nil {
		o.logger.Warn().Err(err).Str("action", action.Name()).Msg("Failed to journal step")
	} else {
		o.mu.Lock()
		o.steps[index] = step.ID
		o.mu.Unlock()
	}

	o.appendEvent(ctx, journal.EventTypeActionStarted,
		fmt.Sprintf("Running action %s", action.Name()), action.Name(), index)
}

// ActionCompleted finishes the journaled step, records the action metrics,
// and closes the action span.
func (o *runObserver) ActionCompleted(ctx context.Context, action actions.Action, index int, duration time.Duration, err error) {
	o.mu.Lock()
	span := o.spans[index]
	delete(o.spans, index)
	stepID, hasStep := o.steps[index]
	delete(o.steps, index)
	o.mu.Unlock()

	status := journal.StepStatusSucceeded
	var errMsg *string
	if err != nil {
		status = journal.StepStatusFailed
		msg := err.Error()
		errMsg = &msg
	}

	o.metrics.RecordActionExecution(o.workflow, action.Name(), string(status), duration)

	if span != nil {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()
	}

	if err != nil {
		_ = o.events.PublishActionFailed(o.runID, o.workflow, action.Name(), err.Error())
	} else {
		_ = o.events.PublishActionCompleted(o.runID, o.workflow, action.Name(), duration)
	}

	if o.journal == nil {
		return
	}

	if hasStep {
		if finishErr := o.journal.FinishStep(ctx, stepID, status, errMsg); finishErr != nil {
			o.logger.Warn().Err(finishErr).Str("action", action.Name()).Msg("Failed to journal step outcome")
		}
	}

	if err != nil {
		o.appendEvent(ctx, journal.EventTypeActionFailed,
			fmt.Sprintf("Action %s failed: %v", action.Name(), err), action.Name(), index)
	} else {
		o.appendEvent(ctx, journal.EventTypeActionCompleted,
			fmt.Sprintf("Action %s completed in %s", action.Name(), duration.Round(time.Millisecond)),
			action.Name(), index)
	}
}

// appendEvent journals one action event on the run's audit trail.
func (o *runObserver) appendEvent(ctx context.Context, eventType journal.EventType, message, action string, index int) {
	event := &journal.Event{
		RunID:     &o.runID,
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	}
	if data, err := json.Marshal(map[string]interface{}{"action": action, "index": index}); err == nil {
		s := string(data)
		event.Details = &s
	}

	if err := o.journal.AppendEvent(ctx, event); err != nil {
		o.logger.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to journal event")
	}
}
