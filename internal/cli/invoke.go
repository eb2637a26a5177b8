package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/compiler"
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/journal"
	"github.com/roach88/statetree/internal/store"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Database string
	Commit   bool
	Payload  string // JSON
}

// InvokeResult is the outcome of one commit or dispatch.
type InvokeResult struct {
	FlowToken string   `json:"flow_token"`
	Kind      string   `json:"kind"` // "mutation" or "action"
	Type      string   `json:"type"`
	Result    any      `json:"result,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Seq       int64    `json:"seq"`
	State     any      `json:"state"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <module> <type>",
		Short: "Dispatch an action or commit a mutation against a journaled store",
		Long: `Build a store from a CUE module, resume it from a journal and run one
dispatch (or, with --commit, one commit). The journal is created when it
does not exist; otherwise the store's clock and state continue from the
journal's last seq.

Handler ops are bound to no-op stubs.

Exit codes:
  0 - Operation succeeded
  1 - The store reported an error or the action rejected
  2 - Command error (bad module, payload or journal)

Examples:
  statetree invoke ./shop.cue increment --commit --db ./journal.db
  statetree invoke ./shop.cue cart/checkout --payload '{"id":3}' --db ./journal.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.Commit, "commit", false, "commit a mutation instead of dispatching an action")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "JSON payload")

	return cmd
}

func runInvoke(opts *InvokeOptions, path, typ string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	payload, err := parsePayload(opts.Payload)
	if err != nil {
		_ = formatter.Error(ErrCodePayload, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid payload", err)
	}

	loaded, err := LoadModule(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	def, err := compiler.Build(loaded.Spec, compiler.StubBindings(loaded.Spec, compiler.Bindings{}))
	if err != nil {
		return outputBuildError(formatter, err)
	}

	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	logger, err := opts.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	j, err := journal.Open(opts.Database, journal.WithLogger(logger))
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	s, err := resumeStore(ctx, j, def, cfg.StoreOptions(logger)...)
	if err != nil {
		return outputBuildError(formatter, err)
	}

	errsBefore, err := j.ReadErrors(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	token := store.UUIDv7Generator{}.Generate()
	opCtx := store.WithFlowToken(ctx, token)
	result := InvokeResult{FlowToken: token, Type: typ}

	var opErr error
	if opts.Commit {
		result.Kind = journal.EventMutation.String()
		opErr = commitRecovered(opCtx, s, typ, payload)
	} else {
		result.Kind = journal.EventAction.String()
		var v any
		v, opErr = s.Dispatch(opCtx, typ, payload).Await(ctx)
		if v != nil {
			result.Result = ir.ToGo(ir.PayloadValue(v))
		}
	}

	errsAfter, err := j.ReadErrors(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	for _, e := range errsAfter[len(errsBefore):] {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", e.Code, e.Message))
	}
	if opErr != nil && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, opErr.Error())
	}

	result.Seq = s.Clock().Current()
	result.State = ir.ToGo(s.State().Snapshot())

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		printInvokeText(formatter, result)
	}

	if len(result.Errors) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s %s failed", result.Kind, typ))
	}
	return nil
}

// resumeStore builds a store journaled into j. When j already holds
// activity the store's clock continues from the last seq and its state is
// restored from the last snapshot.
func resumeStore(ctx context.Context, j *journal.Journal, def *store.Definition, opts ...store.Option) (*store.Store, error) {
	last, err := j.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, store.WithClock(store.NewClockAt(last)), store.WithDevtools(j.Hook()))

	s, err := store.New(def, opts...)
	if err != nil {
		return nil, err
	}
	if last > 0 {
		if err := j.TravelTo(ctx, s, last); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// commitRecovered commits and turns a handler panic into an error.
func commitRecovered(ctx context.Context, s *store.Store, typ string, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("commit %s panicked: %v", typ, r)
		}
	}()
	s.Commit(ctx, typ, payload)
	return nil
}

func parsePayload(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	return ir.ToGo(v), nil
}

func printInvokeText(f *OutputFormatter, r InvokeResult) {
	f.Textf("%s %s (flow %s)", r.Kind, r.Type, r.FlowToken)
	if r.Result != nil {
		f.Textf("result: %v", r.Result)
	}
	for _, e := range r.Errors {
		f.Textf("error: %s", e)
	}
	f.Textf("seq: %d", r.Seq)
	if data, err := ir.MarshalCanonical(r.State); err == nil {
		f.Textf("state: %s", data)
	}
}
