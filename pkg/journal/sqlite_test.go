package journal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupTestJournal creates an in-memory SQLite journal for testing
func setupTestJournal(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize journal: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate journal: %v", err)
	}

	return store
}

// testRun returns a run populated with plausible build metadata
func testRun(id, workflow string, startedAt time.Time) *Run {
	return &Run{
		ID:           id,
		Workflow:     workflow,
		Capability:   "python/pip",
		Status:       RunStatusRunning,
		SourceDir:    "/work/src",
		ArtifactsDir: "/work/artifacts",
		ScratchDir:   "/work/scratch",
		Runtime:      "python3.12",
		StartedAt:    startedAt,
	}
}

// TestJournalLifecycle tests database initialization and closure
func TestJournalLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize journal: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close journal: %v", err)
	}
}

// TestNewSQLiteStore_RequiresPath tests that a path must be provided
func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore(Config{})
	if err == nil {
		t.Fatal("expected error for empty path")
	}
}

// TestJournalMigrations tests that the schema is created and re-runnable
func TestJournalMigrations(t *testing.T) {
	store := setupTestJournal(t)
	defer store.Close()

	ctx := context.Background()

	// Check that tables exist by querying them
	tables := []string{"runs", "steps", "events"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// A second migration run must be a no-op
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("re-running migrations failed: %v", err)
	}
}

// TestRunLifecycle tests creating, finishing and deleting a run
func TestRunLifecycle(t *testing.T) {
	store := setupTestJournal(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Create
	run := testRun("run-001", "python-pip", now)
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	// Read
	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if retrieved.Workflow != run.Workflow {
		t.Errorf("expected Workflow %s, got %s", run.Workflow, retrieved.Workflow)
	}
	if retrieved.Capability != run.Capability {
		t.Errorf("expected Capability %s, got %s", run.Capability, retrieved.Capability)
	}
	if retrieved.Status != RunStatusRunning {
		t.Errorf("expected Status %s, got %s", RunStatusRunning, retrieved.Status)
	}
	if retrieved.SourceDir != run.SourceDir {
		t.Errorf("expected SourceDir %s, got %s", run.SourceDir, retrieved.SourceDir)
	}
	if !retrieved.StartedAt.Equal(run.StartedAt) {
		t.Errorf("expected StartedAt %v, got %v", run.StartedAt, retrieved.StartedAt)
	}
	if retrieved.CompletedAt != nil {
		t.Errorf("expected CompletedAt to be nil, got %v", retrieved.CompletedAt)
	}

	// Finish
	errMsg := "pip install returned exit status 1"
	outcome := Outcome{
		Status:      RunStatusFailed,
		ErrorClass:  "action_failed",
		ErrorAction: "ResolveDependencies",
		Error:       &errMsg,
	}
	if err := store.FinishRun(ctx, run.ID, outcome); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	finished, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get finished run: %v", err)
	}

	if finished.Status != RunStatusFailed {
		t.Errorf("expected Status %s, got %s", RunStatusFailed, finished.Status)
	}
	if finished.ErrorClass != "action_failed" {
		t.Errorf("expected ErrorClass action_failed, got %s", finished.ErrorClass)
	}
	if finished.ErrorAction != "ResolveDependencies" {
		t.Errorf("expected ErrorAction ResolveDependencies, got %s", finished.ErrorAction)
	}
	if finished.Error == nil || *finished.Error != errMsg {
		t.Errorf("expected Error %s, got %v", errMsg, finished.Error)
	}
	if finished.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if finished.Duration() <= 0 {
		t.Errorf("expected positive duration, got %v", finished.Duration())
	}

	// Delete
	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	_, err = store.GetRun(ctx, run.ID)
	if err == nil {
		t.Error("expected error when getting deleted run")
	}
}

// TestCreateRun_Defaults tests that zero fields are filled in on insert
func TestCreateRun_Defaults(t *testing.T) {
	store := setupTestJournal(t)
	defer store.Close()

	ctx := context.Background()

	run := &Run{
		ID:           "run-defaults",
		Workflow:     "go-mod",
		Capability:   "go/modules",
		SourceDir:    "/work/src",
		ArtifactsDir: "/work/artifacts",
		ScratchDir:   "/work/scratch",
	}

	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	if run.Status != RunStatusRunning {
		t.Errorf("expected Status %s, got %s", RunStatusRunning, run.Status)
	}
	if run.StartedAt.IsZero() {
		t.Error("expected StartedAt to be defaulted")
	}
	if run.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be defaulted")
	}
}

// TestCreateRun_InvalidStatus tests that unknown statuses are rejected
func TestCreateRun_InvalidStatus(t *testing.T) {
	store := setupTestJournal(t)
	defer store.Close()

	run := testRun("run-bad-status", "python-pip", time.Now())
	run.Status = RunStatus("exploded")

	err := store.CreateRun(context.Background(), run)
	if err == nil {
		t.Fatal("expected error for invalid status")
	}
	if !strings.Contains(err.Error(), "invalid run status") {
		t.Errorf("expected invalid status error, got %v", err)
	}
}

// TestFinishRun_NonTerminal tests that a run cannot be finished as running
func TestFinishRun_NonTerminal(t *testing.T) {
	store := setupTestJournal(t)
	defer store.Close()

	ctx := context.Background()

	run := testRun("run-nonterminal", "python-pip", time.Now())
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	err := store.FinishRun(ctx, run.ID, Outcome{Status: RunStatusRunning})
	if err == nil {
		t.Fatal("expected error for non-terminal status")
	}
	if !strings.Contains(err.Error(), "non-terminal status") {
		t.Errorf("expected non-terminal status error, got %v", err)
	}
}

// TestFinishRun_NotFound tests finishing a run that does not exist
func TestFinishRun_NotFound(t *testing.T) {
	store := setupTestJournal(t)
	defer store.Close()

	err := store.FinishRun(context.Background(), "run-missing", Outcome{Status: RunStatusSucceeded})
	if err == nil {
		t.Fatal("expected error for missing run")
	}
	if !strings.Contains(err.Error(), "run not found") {
		t.Errorf("expected run not found error, got %v", err)
	}
}

// TestListRuns_FilterAndOrder tests filtering and newest-first ordering
func TestListRuns_FilterAndOrder(t *testing.T) {
	store := setupTestJournal(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now()

	oldest := testRun("run-a", "python-pip", base.Add(-2*time.Hour))
	middle := testRun("run-b", "go-mod", base.Add(-1*time.Hour))
	middle.Capability = "go/modules"
	newest := testRun("run-c", "python-pip", base)

	for _, run := range []*Run{oldest, middle, newest} {
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("failed to create run %s: %v", run.ID, err)
		}
	}

	if err := store.FinishRun(ctx, oldest.ID, Outcome{Status: RunStatusSucceeded}); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	// All runs, newest first
	runs, err := store.ListRuns(ctx, RunFilter{})
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" || runs[2].ID != "run-a" {
		t.Errorf("expected order run-c, run-b, run-a, got %s, %s, %s",
			runs[0].ID, runs[1].ID, runs[2].ID)
	}

	// Filter by workflow
	pipRuns, err := store.ListRuns(ctx, RunFilter{Workflow: "python-pip"})
	if err != nil {
		t.Fatalf("failed to list runs by workflow: %v", err)
	}
	if len(pipRuns) != 2 {
		t.Errorf("expected 2 python-pip runs, got %d", len(pipRuns))
	}

	// Filter by status
	succeeded, err := store.ListRuns(ctx, RunFilter{Status: RunStatusSucceeded})
	if err != nil {
		t.Fatalf("failed to list runs by status: %v", err)
	}
	if len(succeeded) != 1 {
		t.Fatalf("expected 1 succeeded run, got %d", len(succeeded))
	}
	if succeeded[0].ID != "run-a" {
		t.Errorf("expected run-a, got %s", succeeded[0].ID)
	}

	// Limit keeps the newest
	limited, err := store.ListRuns(ctx, RunFilter{Limit: 1})
	if err != nil {
		t.Fatalf("failed to list runs with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 run, got %d", len(limited))
	}
	if limited[0].ID != "run-c" {
		t.Errorf("expected run-c, got %s", limited[0].ID)
	}

	// Invalid status filter is rejected
	if _, err := store.ListRuns(ctx, RunFilter{Status: RunStatus("bogus")}); err == nil {
		t.Error("expected error for invalid status filter")
	}
}

// TestStepLifecycle tests recording steps around actions
func TestStepLifecycle(t *testing.T) {
	store := setupTestJournal(t)
	defer store.Close()

	ctx := context.Background()

	run := testRun("run-steps", "python-pip", time.Now())
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	// Insert out of order to prove listing sorts by index
	steps := []*Step{
		{RunID: run.ID, Index: 1, Name: "ResolveDependencies", Purpose: "RESOLVE_DEPENDENCIES"},
		{RunID: run.ID, Index: 0, Name: "CopySource", Purpose: "COPY_SOURCE"},
		{RunID: run.ID, Index: 2, Name: "CleanUp", Purpose: "CLEAN_UP"},
	}

	for _, step := range steps {
		if err := store.StartStep(ctx, step); err != nil {
			t.Fatalf("failed to start step %s: %v", step.Name, err)
		}
		if step.ID == 0 {
			t.Errorf("expected step ID to be set after insert for %s", step.Name)
		}
		if step.Status != StepStatusRunning {
			t.Errorf("expected Status %s, got %s", StepStatusRunning, step.Status)
		}
	}

	// Finish the first two, one of them with an error
	if err := store.FinishStep(ctx, steps[1].ID, StepStatusSucceeded, nil); err != nil {
		t.Fatalf("failed to finish step: %v", err)
	}

	stepErr := "pip install returned exit status 1"
	if err := store.FinishStep(ctx, steps[0].ID, StepStatusFailed, &stepErr); err != nil {
		t.Fatalf("failed to finish step: %v", err)
	}

	listed, err := store.ListSteps(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list steps: %v", err)
	}

	if len(listed) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(listed))
	}

	names := []string{"CopySource", "ResolveDependencies", "CleanUp"}
	for i, step := range listed {
		if step.Index != i {
			t.Errorf("expected Index %d, got %d", i, step.Index)
		}
		if step.Name != names[i] {
			t.Errorf("expected Name %s, got %s", names[i], step.Name)
		}
	}

	if listed[0].Status != StepStatusSucceeded {
		t.Errorf("expected Status %s, got %s", StepStatusSucceeded, listed[0].Status)
	}
	if listed[0].CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if listed[1].Status != StepStatusFailed {
		t.Errorf("expected Status %s, got %s", StepStatusFailed, listed[1].Status)
	}
	if listed[1].Error == nil || *listed[1].Error != stepErr {
		t.Errorf("expected Error %s, got %v", stepErr, listed[1].Error)
	}
	if listed[2].Status != StepStatusRunning {
		t.Errorf("expected Status %s, got %s", StepStatusRunning, listed[2].Status)
	}

	// A step cannot be finished back into running
	err = store.FinishStep(ctx, steps[2].ID, StepStatusRunning, nil)
	if err == nil {
		t.Error("expected error for non-terminal step status")
	}

	// Finishing a missing step reports it
	err = store.FinishStep(ctx, 9999, StepStatusSucceeded, nil)
	if err == nil || !strings.Contains(err.Error(), "step not found") {
		t.Errorf("expected step not found error, got %v", err)
	}
}

// TestStepIndexUnique tests that one run cannot record two steps at one index
func TestStepIndexUnique(t *testing.T) {
	store := setupTestJournal(t)
	defer store.Close()

	ctx := context.Background()

	run := testRun("run-dup-step", "python-pip", time.Now())
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	first := &Step{RunID: run.ID, Index: 0, Name: "CopySource", Purpose: "COPY_SOURCE"}
	if err := store.StartStep(ctx, first); err != nil {
		t.Fatalf("failed to start step: %v", err)
	}

	dup := &Step{RunID: run.ID, Index: 0, Name: "CopySourceAgain", Purpose: "COPY_SOURCE"}
	if err := store.StartStep(ctx, dup); err == nil {
		t.Error("expected error for duplicate step index")
	}
}

// TestEventTrail tests the append-only audit trail of a run
func TestEventTrail(t *testing.T) {
	store := setupTestJournal(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	run := testRun("run-events", "python-pip", now)
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	details := `{"action":"ResolveDependencies","index":1}`
	events := []*Event{
		{RunID: &run.ID, Type: EventTypeBuildStarted, Message: "build started", Timestamp: now},
		{RunID: &run.ID, Type: EventTypeActionStarted, Message: "action started", Details: &details, Timestamp: now.Add(1 * time.Second)},
		{RunID: &run.ID, Type: EventTypeActionFailed, Message: "action failed", Timestamp: now.Add(2 * time.Second)},
		{RunID: &run.ID, Type: EventTypeBuildCompleted, Message: "build completed", Timestamp: now.Add(3 * time.Second)},
	}

	for _, event := range events {
		if err := store.AppendEvent(ctx, event); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if event.ID == 0 {
			t.Error("expected event ID to be set after insert")
		}
	}

	// An event without a run never shows in the run's trail
	global := &Event{Type: EventTypePolicyWarning, Message: "policy warning", Timestamp: now}
	if err := store.AppendEvent(ctx, global); err != nil {
		t.Fatalf("failed to append global event: %v", err)
	}

	trail, err := store.ListEvents(ctx, run.ID, 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}

	if len(trail) != 4 {
		t.Fatalf("expected 4 events, got %d", len(trail))
	}

	types := []EventType{
		EventTypeBuildStarted,
		EventTypeActionStarted,
		EventTypeActionFailed,
		EventTypeBuildCompleted,
	}
	for i, event := range trail {
		if event.Type != types[i] {
			t.Errorf("expected Type %s, got %s", types[i], event.Type)
		}
	}

	if trail[1].Details == nil || *trail[1].Details != details {
		t.Errorf("expected Details %s, got %v", details, trail[1].Details)
	}

	// Limit keeps the oldest entries
	limited, err := store.ListEvents(ctx, run.ID, 2)
	if err != nil {
		t.Fatalf("failed to list limited events: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 events, got %d", len(limited))
	}
	if limited[0].Type != EventTypeBuildStarted || limited[1].Type != EventTypeActionStarted {
		t.Errorf("expected first two events, got %s, %s", limited[0].Type, limited[1].Type)
	}
}

// TestCascadeDelete tests foreign key cascading from runs
func TestCascadeDelete(t *testing.T) {
	store := setupTestJournal(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	run := testRun("run-cascade", "python-pip", now)
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	step := &Step{RunID: run.ID, Index: 0, Name: "CopySource", Purpose: "COPY_SOURCE"}
	if err := store.StartStep(ctx, step); err != nil {
		t.Fatalf("failed to start step: %v", err)
	}

	event := &Event{RunID: &run.ID, Type: EventTypeBuildStarted, Message: "build started", Timestamp: now}
	if err := store.AppendEvent(ctx, event); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	steps, err := store.ListSteps(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list steps: %v", err)
	}
	if len(steps) != 0 {
		t.Errorf("expected 0 steps after cascade delete, got %d", len(steps))
	}

	events, err := store.ListEvents(ctx, run.ID, 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events after cascade delete, got %d", len(events))
	}
}

// TestJournalPersistence tests that a file-backed journal survives reopening
func TestJournalPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize journal: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate journal: %v", err)
	}

	run := testRun("run-persist", "nodejs-npm", time.Now())
	run.Capability = "nodejs/npm"
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close journal: %v", err)
	}

	reopened, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("failed to reinitialize journal: %v", err)
	}
	defer reopened.Close()

	if err := reopened.Migrate(ctx); err != nil {
		t.Fatalf("failed to remigrate journal: %v", err)
	}

	retrieved, err := reopened.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run after reopen: %v", err)
	}
	if retrieved.Workflow != "nodejs-npm" {
		t.Errorf("expected Workflow nodejs-npm, got %s", retrieved.Workflow)
	}
}

// TestMain sets up and tears down test environment
func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
