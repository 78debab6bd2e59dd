package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"budget/internal/amqp"
	"budget/internal/backend"
	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/ledger"
	applog "budget/internal/log"
)

// Exit codes returned by Execute.
const (
	ExitOK    = 0
	ExitError = 1
	// ExitUsage covers rejected input: validation failures, unknown ids and
	// bad arguments.
	ExitUsage = 2
)

// app carries the state shared by every command of one invocation.
type app struct {
	configPath string
	now        func() time.Time

	cfg     *config.Config
	logger  *applog.Logger
	ledger  *ledger.Ledger
	backend *backend.BackendResult
	events  *amqp.Client
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// Option customises the root command, mainly for tests.
type Option func(*app)

// WithClock overrides the time source used to date new expenses.
func WithClock(now func() time.Time) Option {
	return func(a *app) { a.now = now }
}

func newApp(opts ...Option) *app {
	a := &app{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// newRootCommand builds the budget command tree around a.
func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "budget",
		Short:         "Personal expense ledger",
		Long:          "Record expenses by category, list them and summarise where the money goes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		newAddCommand(a),
		newDeleteCommand(a),
		newListCommand(a),
		newSummaryCommand(a),
		newCategoriesCommand(a),
		newSaveCommand(a),
		newExportCommand(a),
		newServeCommand(a),
		newWatchCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = SetupLogger(cfg, cmd.ErrOrStderr())
	return nil
}

// openLedger restores the ledger and, when a broker is configured, forwards
// its events.
func (a *app) openLedger(ctx context.Context, w io.Writer) (*ledger.Ledger, error) {
	l, res, load, err := OpenLedger(ctx, a.cfg, a.logger, ledger.WithClock(a.now))
	if err != nil {
		return nil, err
	}
	a.ledger, a.backend = l, res
	if load.Outcome == ledger.LoadFailed {
		fmt.Fprintf(w, "warning: %v; continuing with an empty ledger\n", load.Err)
	}

	events, err := ConnectEvents(a.cfg, a.logger)
	if err != nil {
		a.logger.Warn("Change events disabled", applog.FieldError, err)
		return l, nil
	}
	if events != nil {
		a.events = events
		l.Subscribe(events.Forward(ctx))
	}
	return l, nil
}

func (a *app) close() error {
	var errs []error
	if a.events != nil {
		errs = append(errs, a.events.Close())
		a.events = nil
	}
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
		a.backend = nil
	}
	return errors.Join(errs...)
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, ledger.ErrNothingSelected),
		errors.As(err, &usage):
		return ExitUsage
	default:
		return ExitError
	}
}

// Execute runs the command tree with args and returns the exit code.
// Errors are printed to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...Option) int {
	a := newApp(opts...)
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}
