package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/polybuild/polybuild/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "polybuild"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Start metrics server (non-blocking)
	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Application started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("builder")

	// Add context fields
	logger = logger.WithFields(map[string]interface{}{
		"run_id":   "run-123",
		"workflow": "python-pip",
	})

	// Log at different levels
	logger.Debug("Resolving workflow for capability")
	logger.Info("Build completed successfully")
	logger.Warn("Manifest not listed as supported by workflow")

	// Log with error
	err := fmt.Errorf("binary not found")
	logger.WithError(err).Error("Binary validation failed")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "build.execute")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		attribute.String("run.id", "run-789"),
		attribute.Int("action.count", 3),
	)

	// Add event
	span.AddEvent("gate.passed")

	// Nested span
	ctx, childSpan := tel.Tracer.Start(ctx, "action.resolve-dependencies")
	defer childSpan.End()

	childSpan.SetAttributes(
		attribute.String("workflow.name", "python-pip"),
		attribute.String("action.purpose", "RESOLVE_DEPENDENCIES"),
	)

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(childSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record build metrics
	tel.Metrics.RecordBuildStarted("python-pip")

	// Simulate build execution
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordBuildCompleted("python-pip", "succeeded", duration)

	// Record action metrics
	tel.Metrics.RecordActionExecution(
		"python-pip",           // workflow
		"resolve-dependencies", // action
		"succeeded",            // status
		25*time.Millisecond,    // duration
	)

	// Record binary validation metrics
	tel.Metrics.RecordBinaryValidation("python-pip", telemetry.ValidationSatisfied)

	// Record error metrics
	tel.Metrics.RecordError("action_failed")

	// Set workflow counts
	tel.Metrics.SetRegisteredWorkflows(3)

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishBuildStarted("run-123", "python-pip")
	tel.Events.PublishActionStarted("run-123", "python-pip", "resolve-dependencies", "RESOLVE_DEPENDENCIES")
	tel.Events.PublishActionCompleted("run-123", "python-pip", "resolve-dependencies", 25*time.Millisecond)

	// Output:
	// Event: build.started - Build run-123 started with workflow python-pip
	// Event: action.started - Action resolve-dependencies started (RESOLVE_DEPENDENCIES)
	// Event: action.completed - Action resolve-dependencies completed
}

// Example_buildInstrumentation demonstrates instrumenting a complete build.
func Example_buildInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start build context
	runID := "run-123"
	workflow := "python-pip"
	ctx = telemetry.WithBuildContext(ctx, runID, workflow)

	// Execute actions (simulated)
	err := telemetry.InstrumentAction(ctx, workflow, "copy-source", "COPY_SOURCE",
		func(ctx context.Context) error {
			logger := telemetry.FromContext(ctx)
			logger.Info("Copying source")
			time.Sleep(10 * time.Millisecond)
			return nil
		})

	// End build context
	telemetry.EndBuildContext(ctx, runID, workflow, "succeeded", err)

	fmt.Println("Build instrumentation complete")
	// Output: Build instrumentation complete
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start instrumented operation
	ic := telemetry.StartOperation(ctx, "registry.lookup",
		attribute.String("capability.language", "python"),
	)
	defer ic.End(nil)

	// Use the instrumented context
	ic.Logger.Info("Looking up workflow")

	// Simulate lookup
	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("Workflow lookup complete")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only gate events)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Gate event: %s\n", event.Message)
	}, telemetry.FilterByType("gate.failed"))

	// Publish various events
	tel.Events.PublishBuildStarted("run-123", "python-pip")            // Info - filtered by level filter
	tel.Events.PublishGateFailed("run-123", "python-pip", "no python") // Error - passes both filters
	tel.Events.PublishBuildFailed("run-123", "python-pip", "error")    // Error - passes level filter

	// Output:
	// Important event: gate.failed
	// Gate event: Binary validation gate failed for workflow python-pip: no python
	// Important event: build.failed
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "polybuild"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure OTLP exporter
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "polybuild"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_errorRecording demonstrates error recording with proper classification.
func Example_errorRecording() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "action.execute")
	defer span.End()

	// Simulate an error
	err := fmt.Errorf("pip install failed")

	if err != nil {
		// Record error on span
		telemetry.RecordError(span, err)

		// Record error metric with classification
		tel.Metrics.RecordError("action_failed")

		// Log error
		logger := telemetry.FromContext(ctx)
		logger.WithError(err).Error("Action failed")
	}

	fmt.Println("Error recording complete")
	// Output: Error recording complete
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	builderLogger := tel.Logger.NewComponentLogger("builder")
	registryLogger := tel.Logger.NewComponentLogger("registry")
	policyLogger := tel.Logger.NewComponentLogger("policy")

	builderLogger.Info("Builder initialized")
	registryLogger.Info("Registering built-in workflows")
	policyLogger.Info("Loading admission policies")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
