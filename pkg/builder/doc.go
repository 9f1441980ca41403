// Package builder is the facade that drives one build end to end.
//
// A Builder owns the pieces the CLI would otherwise have to wire by hand:
// the workflow registry, the admission policy engine, the build journal,
// and the telemetry collectors. Build resolves the request to a workflow
// (explicit capability or manifest detection), applies binary pins,
// evaluates admission, and then runs the workflow with an observer that
// journals every action as a step, records Prometheus durations, and opens
// a trace span per action.
//
// Runs reach the journal in exactly one of three terminal states: denied
// (policy rejected the request before the binary gate), failed (the gate or
// an action stopped the run, classified by error class), or succeeded.
//
// # Usage
//
//	registry := workflow.NewRegistry(logger)
//	_ = workflows.RegisterBuiltins(registry)
//
//	b, err := builder.New(builder.Options{
//		Registry: registry,
//		Journal:  store,
//		Policies: engine,
//		Logger:   logger,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := b.Build(ctx, builder.Request{
//		Capability: workflow.NewCapability("python", "pip", ""),
//		Config:     cfg,
//	})
//	if builder.IsDenied(err) {
//		// result.RunID names the journaled denied run
//	}
package builder
