// Package journal provides persisted build history for polybuild.
//
// Every build run is recorded in a local SQLite database: the run itself
// with its workflow, directories and outcome, one step per executed action,
// and a typed audit trail of events. The journal is what `polybuild runs`
// reads and what post-mortems lean on when a build fails on a developer
// machine or in CI.
//
// # Architecture
//
// The package follows the repository pattern:
//
//   - Store: interface describing journal operations
//   - SQLiteStore: SQLite implementation backed by modernc.org/sqlite
//   - Run, Step, Event: persisted entities
//
// The schema lives in embedded migrations and is applied with
// golang-migrate, so opening an old journal upgrades it in place.
//
// # Usage
//
//	store, err := journal.NewSQLiteStore(journal.Config{
//		Path: "/var/lib/polybuild/journal.db",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if err := store.Init(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.Migrate(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	runs, err := store.ListRuns(ctx, journal.RunFilter{
//		Workflow: "python-pip",
//		Limit:    10,
//	})
//
// # Write path
//
// A run is created in status "running" when the build is admitted, steps
// are recorded around each action, and FinishRun writes exactly one
// terminal status: succeeded, failed, or denied. Events are append only.
//
// # Concurrency
//
// The SQLite database runs in WAL mode with a busy timeout, so concurrent
// readers do not block the single writer. An in-memory journal
// (Path ":memory:") is pinned to one connection because each pooled
// connection would otherwise open a private empty database.
package journal
