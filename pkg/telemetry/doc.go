// Package telemetry provides comprehensive observability instrumentation for polybuild.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging polybuild operations.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "polybuild"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("builder")
//	logger = logger.WithRunID("run-123").WithWorkflow("python-pip")
//	logger.Info("Starting build")
//	logger.WithError(err).Error("Build failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into build flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    attribute.String("workflow.name", workflowName),
//	    attribute.String("action.name", "resolve-dependencies"),
//	)
//
//	// Record events
//	span.AddEvent("gate.passed")
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track build behavior and performance:
//
//	// Record build execution
//	tel.Metrics.RecordBuildStarted("python-pip")
//	tel.Metrics.RecordBuildCompleted("python-pip", "succeeded", duration)
//
//	// Record action execution
//	tel.Metrics.RecordActionExecution("python-pip", "resolve-dependencies", "succeeded", duration)
//
//	// Record binary validations
//	tel.Metrics.RecordBinaryValidation("python-pip", telemetry.ValidationSatisfied)
//
//	// Record errors
//	tel.Metrics.RecordError("action_failed")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishBuildStarted(runID, workflow)
//	tel.Events.PublishActionCompleted(runID, workflow, action, duration)
//	tel.Events.PublishGateFailed(runID, workflow, reason)
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByRunID, FilterByWorkflow
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "registry.lookup",
//	    attribute.String("capability.language", "python"))
//	defer ic.End(err)
//
//	ic.Logger.Info("Looking up workflow")
//
//	// Build context
//	ctx = telemetry.WithBuildContext(ctx, runID, workflow)
//	defer telemetry.EndBuildContext(ctx, runID, workflow, status, err)
//
//	// Action instrumentation
//	err := telemetry.InstrumentAction(ctx, workflow, action.Name(), action.Purpose().String(),
//	    func(ctx context.Context) error {
//	        return action.Execute(ctx)
//	    })
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "polybuild",
//	    ServiceVersion: "1.0.0",
//	    Environment: "ci",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Tracing: telemetry.TracingConfig{
//	        Enabled: true,
//	        Exporter: "otlp",
//	        Endpoint: "otel-collector:4317",
//	        SamplingRate: 0.1,
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures:
//  - All buffered events are published
//  - All pending traces are exported
//  - Metrics are finalized
//
// # Integration with the Builder
//
// The builder components automatically integrate with telemetry when available:
//
//  1. Build runs: Run-level tracing and metrics via WithBuildContext
//  2. Binary validation gate: Gate spans and per-requirement validation counters
//  3. Actions: Per-action tracing, duration histograms, and events
//  4. Policy engine: Policy denial events and counters
//  5. Watch mode: Rebuild counters
//
// # Exporters
//
// Tracing supports multiple exporters:
//
//  - "stdout": Print traces to stdout (development)
//  - "otlp": Export via OTLP/gRPC (production, works with collectors)
//  - "none": Generate traces but don't export (testing)
//
// Configure via TracingConfig.Exporter and TracingConfig.Endpoint
//
// # Common Metrics
//
// Key metrics exposed:
//
//  - polybuild_builds_started_total{workflow}
//  - polybuild_builds_completed_total{workflow,status}
//  - polybuild_build_duration_seconds{workflow,status}
//  - polybuild_actions_executed_total{workflow,action,status}
//  - polybuild_action_duration_seconds{workflow,action}
//  - polybuild_binary_validations_total{workflow,result}
//  - polybuild_policy_denials_total{policy}
//  - polybuild_errors_by_class_total{class}
//  - polybuild_watch_rebuilds_total
//  - polybuild_builds_in_progress
//  - polybuild_registered_workflows
//
// # Best Practices
//
//  1. Always use context to propagate telemetry
//  2. Use component-specific loggers for clarity
//  3. Add meaningful attributes to spans
//  4. Record both success and failure metrics
//  5. Use appropriate log levels
//  6. Filter events to avoid overwhelming subscribers
//  7. Always call defer span.End() after starting a span
//  8. Shut down gracefully to avoid data loss
//
// # Security Considerations
//
//   - Never log sensitive data (credentials, keys, tokens)
//   - Use secure connections (TLS) for trace exporters in production
//   - Limit metrics endpoint access via network policies
package telemetry
