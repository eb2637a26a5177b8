package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // glob matched against scenario file names
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run scenario files against their modules",
		Long: `Run YAML scenarios (a file or every .yaml/.yml under a directory).

Each scenario builds a fresh store from its module, runs its steps with a
fixed flow token and checks its assertions.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  statetree test ./scenarios
  statetree test ./scenarios --filter "cart*"
  statetree test ./scenarios/counter.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")
	return cmd
}

func runTests(opts *TestOptions, root string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(root); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("scenarios not found: %s", root), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios not found: %s", root))
	}

	paths, err := harness.DiscoverScenarios(root)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	if len(paths) == 0 {
		if formatter.JSON() {
			return formatter.Success(harness.SuiteResult{})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	logger, err := opts.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	var runOpts []harness.Option
	if opts.Verbose {
		runOpts = append(runOpts, harness.WithLogger(logger))
	}

	result, err := harness.RunSuite(cmd.Context(), paths, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		printTestText(formatter, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		ok, err := filepath.Match(pattern, filepath.Base(p))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func printTestText(f *OutputFormatter, r *harness.SuiteResult) {
	for _, fail := range r.Failures {
		name := fail.Scenario
		if name == "" {
			name = fail.Path
		}
		fmt.Fprintf(f.Writer, "FAIL %s (%s)\n", name, fail.Path)
		for _, e := range fail.Errors {
			fmt.Fprintf(f.Writer, "  %s\n", e)
		}
	}
	fmt.Fprintf(f.Writer, "%d scenario(s): %d passed, %d failed\n", r.Total, r.Passed, r.Failed)
}
