package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/compiler"
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string
}

// CompileResult describes a compiled module tree and its registry.
type CompileResult struct {
	Module    string                  `json:"module"`
	Modules   []ModuleInfo            `json:"modules"`
	Mutations []string                `json:"mutations"`
	Actions   []string                `json:"actions"`
	Getters   []string                `json:"getters"`
	Warnings  []compiler.CycleWarning `json:"warnings"`
}

// ModuleInfo is one node of the installed module tree.
type ModuleInfo struct {
	Path       string `json:"path"`
	Namespace  string `json:"namespace"`
	Namespaced bool   `json:"namespaced"`
	State      any    `json:"state"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <module>",
		Short: "Compile a CUE module and print its tree and registry",
		Long: `Compile a CUE module (a .cue file or package directory), install it
into a throwaway store and print the module tree with namespaces and the
registered mutation, action and getter types.

Handler ops are bound to no-op stubs, so modules written for Go bindings
compile too. Dispatch cycles are reported as warnings.

Examples:
  statetree compile ./shop.cue
  statetree compile ./modules/shop -o shop.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "also write the JSON result to this file")
	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger, err := opts.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	loaded, err := LoadModule(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d CUE file(s) from %s", loaded.FileCount, path)

	def, err := compiler.Build(loaded.Spec, compiler.StubBindings(loaded.Spec, compiler.Bindings{}))
	if err != nil {
		return outputBuildError(formatter, err)
	}

	s, err := store.New(def, store.WithLogger(logger), store.WithProduction())
	if err != nil {
		return outputBuildError(formatter, err)
	}

	result := CompileResult{
		Module:    path,
		Modules:   describeTree(s.Tree()),
		Mutations: s.MutationTypes(),
		Actions:   s.ActionTypes(),
		Getters:   s.GetterTypes(),
		Warnings:  compiler.AnalyzeCycles(loaded.Spec),
	}

	if opts.Output != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode result", err)
		}
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	printCompileText(formatter, result)
	return nil
}

func describeTree(t *store.Tree) []ModuleInfo {
	var out []ModuleInfo
	var walk func(path []string, m *store.Module)
	walk = func(path []string, m *store.Module) {
		out = append(out, ModuleInfo{
			Path:       strings.Join(path, "/"),
			Namespace:  t.Namespace(path),
			Namespaced: m.Namespaced(),
			State:      ir.ToGo(m.InitialState()),
		})
		for _, key := range m.ChildKeys() {
			child, _ := m.Child(key)
			walk(append(append([]string(nil), path...), key), child)
		}
	}
	walk(nil, t.Root())
	return out
}

func printCompileText(f *OutputFormatter, r CompileResult) {
	f.Textf("Compiled %s", r.Module)
	f.Textf("Modules:")
	for _, m := range r.Modules {
		path := m.Path
		if path == "" {
			path = "(root)"
		}
		f.Textf("  %-24s namespace=%q", path, m.Namespace)
	}
	f.Textf("Mutations (%d): %s", len(r.Mutations), strings.Join(r.Mutations, ", "))
	f.Textf("Actions (%d): %s", len(r.Actions), strings.Join(r.Actions, ", "))
	f.Textf("Getters (%d): %s", len(r.Getters), strings.Join(r.Getters, ", "))
	for _, w := range r.Warnings {
		f.Textf("Warning: %s", w.Message)
	}
}

func outputLoadError(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		details := map[string]any{}
		if line := lineOf(le.Pos); line > 0 {
			details["line"] = line
			details["file"] = le.Pos.Filename()
		}
		if len(details) == 0 {
			details = nil
		}
		_ = f.Error(le.Code, le.Message, details)
		return WrapExitError(ExitCommandError, "failed to load module", err)
	}
	_ = f.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to load module", err)
}

func outputBuildError(f *OutputFormatter, err error) error {
	var be *compiler.BuildError
	if errors.As(err, &be) {
		_ = f.Error(ErrCodeBuildFailed, fmt.Sprintf("module has %d validation error(s)", len(be.Errors)), be.Errors)
		if !f.JSON() {
			for _, ve := range be.Errors {
				f.Textf("  %s", ve.Error())
			}
		}
		return WrapExitError(ExitFailure, "module did not build", err)
	}
	_ = f.Error(ErrCodeBuildFailed, err.Error(), nil)
	return WrapExitError(ExitFailure, "module did not build", err)
}
