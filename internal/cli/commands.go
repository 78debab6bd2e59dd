package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/export"
	apphttp "budget/internal/http"
	"budget/internal/ledger"
	applog "budget/internal/log"
	"budget/internal/view"
)

const shutdownTimeout = 30 * time.Second

// exactArgs is cobra.ExactArgs with a usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func rangeArgs(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.RangeArgs(min, max)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func newAddCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add AMOUNT CATEGORY DESCRIPTION...",
		Short: "Record an expense dated today",
		Example: `  budget add 12.50 food "lunch with the team"
  budget add 3,20 transport bus ticket`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(3)(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", core.ErrValidation, err)
			}

			l, err := a.openLedger(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			e, err := l.Add(cmd.Context(), amount, args[1], strings.Join(args[2:], " "))
			if err != nil && !errors.Is(err, ledger.ErrStorageWrite) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added #%d %s %s (%s) on %s\n",
				e.ID, view.FormatMoney(e.Amount), e.Category, e.Description, e.Date)
			return err
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete the expense with the given id",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("%w: %q is not an expense id", ledger.ErrNothingSelected, args[0])
			}

			l, err := a.openLedger(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := l.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted #%d\n", id)
			return nil
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List expenses, most recent first",
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.openLedger(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return view.RenderList(cmd.OutOrStdout(), l.List())
		},
	}
}

func newSummaryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the total and the share of each category",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.openLedger(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return view.RenderSummary(cmd.OutOrStdout(), l.Summary())
		},
	}
}

func newCategoriesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the known categories",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.openLedger(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return view.RenderCategories(cmd.OutOrStdout(), l.Categories())
		},
	}
}

func newSaveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Write the ledger back to its backing store",
		Long:  "Rewrites the backing store from the loaded ledger, e.g. to upgrade an old file with the id counter.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.openLedger(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := l.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d expenses\n", l.Len())
			return nil
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger to a workbook or a spreadsheet",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "xlsx [FILE]",
		Short: "Write an Excel workbook (default expenses.xlsx, - for stdout)",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "expenses.xlsx"
			if len(args) == 1 {
				path = args[0]
			}
			l, err := a.openLedger(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if path == "-" {
				return export.WriteXLSX(cmd.OutOrStdout(), l.List(), l.Summary())
			}
			if err := writeWorkbook(path, l); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d expenses to %s\n", l.Len(), path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sheets",
		Short: "Mirror the expense list into the configured Google Sheets tab",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.SheetsConfigured(); err != nil {
				return usageError{err}
			}
			l, err := a.openLedger(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			exp, err := export.NewSheetsExporter(cmd.Context(), export.SheetsConfig{
				SpreadsheetID:   a.cfg.SheetsSpreadsheetID,
				SheetName:       a.cfg.SheetsSheetName,
				CredentialsFile: a.cfg.SheetsCredentialsFile,
				CredentialsJSON: a.cfg.SheetsCredentialsJSON,
			}, a.logger.WithComponent(applog.ComponentExport).Slog())
			if err != nil {
				return err
			}
			n, err := exp.Export(cmd.Context(), l.List())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d expenses to %s\n", n, a.cfg.SheetsSheetName)
			return nil
		},
	})
	return cmd
}

func writeWorkbook(path string, l *ledger.Ledger) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return export.WriteXLSX(f, l.List(), l.Summary())
}

func newServeCommand(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = a.cfg.Port
			}
			ctx, stop := GracefulShutdown(cmd.Context())
			defer stop()

			l, err := a.openLedger(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return serve(ctx, a, l, ":"+port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides config)")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled, then drains it.
func serve(ctx context.Context, a *app, l *ledger.Ledger, addr string) error {
	srv := apphttp.NewServer(addr, l,
		apphttp.WithLogger(a.logger),
		apphttp.WithReadiness(a.backend.Ready))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("Starting budget server",
			"addr", addr,
			applog.FieldBackend, a.cfg.Backend,
			applog.FieldRecords, l.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down server", applog.FieldOperation, applog.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		if l.Dirty() {
			a.logger.Warn("Ledger has unsaved changes, retrying save")
			return l.Save(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("Server stopped gracefully")
	return nil
}

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print ledger change events from the AMQP queue",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.AMQPURL == "" {
				return usageError{errors.New("watch needs amqp_url (BUDGET_AMQP_URL)")}
			}
			ctx, stop := GracefulShutdown(cmd.Context())
			defer stop()

			client, err := ConnectEvents(a.cfg, a.logger)
			if err != nil {
				return err
			}
			a.events = client

			err = client.ConsumeLedgerEvents(ctx, func(m *amqp.LedgerEventMessage) error {
				return printEvent(cmd.OutOrStdout(), m)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func printEvent(w io.Writer, m *amqp.LedgerEventMessage) error {
	ts := m.Timestamp.Local().Format(time.DateTime)
	var err error
	switch {
	case m.Expense != nil:
		_, err = fmt.Fprintf(w, "%s %-8s #%d %s %s (%s)\n", ts, m.Kind, m.Expense.ID,
			view.FormatMoney(m.Expense.Amount), m.Expense.Category, m.Expense.Description)
	case m.ID != 0:
		_, err = fmt.Fprintf(w, "%s %-8s #%d\n", ts, m.Kind, m.ID)
	default:
		_, err = fmt.Fprintf(w, "%s %s\n", ts, m.Kind)
	}
	return err
}
