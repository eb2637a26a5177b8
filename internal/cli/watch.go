package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/compiler"
	"github.com/roach88/statetree/internal/hotreload"
	"github.com/roach88/statetree/internal/store"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Journal string // overrides journal.path
	Metrics bool   // overrides metrics.enabled
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <module>",
		Short: "Run a store and hot-reload it when its module changes",
		Long: `Build a store from a CUE module and keep it running, recompiling the
module and hot-swapping its handlers whenever the source changes. A
module that fails to compile leaves the running handlers in place.

The store is journaled when a journal is configured (journal.path or
--journal) and resumes from it. With metrics enabled, the collected
Prometheus metrics are printed on exit.

Stop with Ctrl-C.

Examples:
  statetree watch ./shop.cue
  statetree watch ./modules/shop --journal ./journal.db --metrics`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal database path (overrides journal.path)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "collect metrics and print them on exit")
	return cmd
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	base, err := opts.Config()
	if err != nil {
		return err
	}
	cfg := *base
	if opts.Journal != "" {
		cfg.Journal.Path = opts.Journal
	}
	if opts.Metrics {
		cfg.Metrics.Enabled = true
	}

	logger, err := opts.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	loaded, err := LoadModule(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	bindings := compiler.StubBindings(loaded.Spec, compiler.Bindings{})
	def, err := compiler.Build(loaded.Spec, bindings)
	if err != nil {
		return outputBuildError(formatter, err)
	}

	storeOpts := cfg.StoreOptions(logger)
	reg := prometheus.NewRegistry()
	if plugin := cfg.MetricsPlugin(reg); plugin != nil {
		storeOpts = append(storeOpts, store.WithPlugins(plugin))
	}

	j, err := cfg.OpenJournal(logger)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}

	var s *store.Store
	if j != nil {
		defer j.Close()
		// setup finishes even when the run is already cancelled
		s, err = resumeStore(context.WithoutCancel(cmd.Context()), j, def, storeOpts...)
	} else {
		s, err = store.New(def, storeOpts...)
	}
	if err != nil {
		return outputBuildError(formatter, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	formatter.Textf("Watching %s (%d mutation(s), %d action(s))", path, len(s.MutationTypes()), len(s.ActionTypes()))

	r := hotreload.New(path, s, bindings,
		hotreload.WithDebounce(cfg.Watch.Debounce),
		hotreload.WithLogger(logger),
		hotreload.WithOnReload(func(err error) {
			if err != nil {
				formatter.Textf("reload failed: %v", err)
				return
			}
			formatter.Textf("reloaded %s", path)
		}),
	)
	if err := r.Watch(ctx); err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}

	formatter.Textf("Stopped after %d reload(s)", r.Reloads())
	if cfg.Metrics.Enabled && !formatter.JSON() {
		if err := writeMetrics(cmd.OutOrStdout(), reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}
	return nil
}

// writeMetrics prints everything gathered by g in the Prometheus text
// exposition format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
