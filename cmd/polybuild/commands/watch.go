package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/polybuild/polybuild/pkg/builder"
	"github.com/polybuild/polybuild/pkg/buildspec"
	"github.com/polybuild/polybuild/pkg/telemetry"
)

func newWatchCommand() *cobra.Command {
	var (
		specPath    string
		environment string
		debounce    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch [source-dir]",
		Short: "Rebuild on source changes",
		Long: `Watch the project source tree and rebuild when it changes.

Filesystem events are debounced so an editor save burst triggers one
rebuild. The scratch and artifact directories are ignored, and editing
the build spec itself reloads it before the next rebuild. A failing
rebuild keeps the watcher alive.`,
		Example: `  # Watch the current project
  polybuild watch

  # Longer debounce and a Prometheus endpoint for build metrics
  polybuild watch --debounce 2s --metrics-addr :9090`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			source := "."
			if len(args) == 1 {
				source = args[0]
			}
			path := specPath
			if path == "" {
				path = filepath.Join(source, buildspec.DefaultFileName)
			}
			specFile, err := filepath.Abs(path)
			if err != nil {
				return err
			}

			spec, err := buildspec.Load(specFile)
			if err != nil {
				return err
			}

			store, err := openJournal(ctx)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			cli.telemetry.Events.Subscribe(printProgress, telemetry.FilterByType(
				telemetry.EventTypeActionStarted,
				telemetry.EventTypeActionCompleted,
				telemetry.EventTypeActionFailed,
			))

			b, err := builder.New(builder.Options{
				Registry: cli.registry,
				Journal:  store,
				Policies: cli.policies,
				Metrics:  cli.telemetry.Metrics,
				Tracer:   cli.telemetry.Tracer,
				Events:   cli.telemetry.Events,
				Logger:   cli.logger,
			})
			if err != nil {
				return err
			}

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", cli.telemetry.Metrics.Handler())
				srv := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
						cli.logger.Error().Err(serveErr).Msg("Metrics server failed")
					}
				}()
				defer srv.Close()
				cli.logger.Info().Str("addr", metricsAddr).Msg("Serving build metrics")
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			cfg := spec.WorkflowConfig()
			ignored := []string{cfg.ScratchDir, cfg.ArtifactsDir}
			if err := watchTree(watcher, cfg.SourceDir, ignored); err != nil {
				return err
			}

			runBuild := func() {
				result, buildErr := b.Build(ctx, builder.Request{
					Capability:  spec.WorkflowCapability(),
					Config:      spec.WorkflowConfig(),
					Overrides:   spec.Binaries,
					User:        os.Getenv("USER"),
					Environment: environment,
				})
				if reportErr := reportOutcome(result, buildErr); reportErr != nil && result == nil {
					fmt.Printf("Build error: %v\n", reportErr)
				}
			}

			fmt.Printf("Watching %s (debounce %s)\n", cfg.SourceDir, debounce)
			runBuild()

			var (
				timer      *time.Timer
				timerC     <-chan time.Time
				reloadSpec bool
			)

			for {
				select {
				case <-ctx.Done():
					fmt.Println("Watch stopped")
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if skipWatchEvent(event, ignored) {
						continue
					}
					if event.Op&fsnotify.Create != 0 {
						if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
							if watchErr := watchTree(watcher, event.Name, ignored); watchErr != nil {
								cli.logger.Warn().Err(watchErr).Str("dir", event.Name).Msg("Failed to watch new directory")
							}
						}
					}
					if filepath.Clean(event.Name) == specFile {
						reloadSpec = true
					}
					if timer == nil {
						timer = time.NewTimer(debounce)
						timerC = timer.C
					} else {
						timer.Reset(debounce)
					}

				case watchErr, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					cli.logger.Warn().Err(watchErr).Msg("Watcher error")

				case <-timerC:
					timer = nil
					timerC = nil
					if reloadSpec {
						reloadSpec = false
						reloaded, loadErr := buildspec.Load(specFile)
						if loadErr != nil {
							fmt.Printf("Build spec error: %v\n", loadErr)
							continue
						}
						spec = reloaded
					}
					cli.telemetry.Metrics.RecordWatchRebuild()
					runBuild()
				}
			}
		},
	}

	cmd.Flags().StringVarP(&specPath, "spec", "f", "", "build spec file (default <source-dir>/polybuild.yaml)")
	cmd.Flags().StringVar(&environment, "environment", "", "deployment environment for the policy context")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before a rebuild")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

// skipWatchEvent drops events that must not trigger a rebuild: ops outside
// the create/write/remove/rename set, changes under ignored directories, and
// hidden files such as editor swap files.
func skipWatchEvent(event fsnotify.Event, ignored []string) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}
	path := filepath.Clean(event.Name)
	if underAny(path, ignored) {
		return true
	}
	return strings.HasPrefix(filepath.Base(path), ".")
}

// underAny reports whether path equals or sits below any of the roots.
func underAny(path string, roots []string) bool {
	for _, root := range roots {
		if root == "" {
			continue
		}
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// watchTree registers dir and every subdirectory with the watcher, skipping
// ignored trees and hidden directories.
func watchTree(watcher *fsnotify.Watcher, dir string, ignored []string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if underAny(path, ignored) {
			return filepath.SkipDir
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
