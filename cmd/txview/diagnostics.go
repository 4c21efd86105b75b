package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"txview/internal/amqp"
	"txview/internal/diagnostics"
	"txview/internal/log"
	"txview/internal/storage"
	"txview/internal/worker"
)

func newDiagnosticsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "diagnostics",
		Aliases: []string{"diag"},
		Short:   "Inspect failed store requests",
	}
	cmd.AddCommand(
		newDiagnosticsRecentCmd(a),
		newDiagnosticsPruneCmd(a),
		newDiagnosticsTailCmd(a),
	)
	return cmd
}

func (a *app) journal() (*storage.SQLiteRepository, error) {
	if a.cfg.DiagnosticsDBPath == "" {
		return nil, errors.New("diagnostics journal is not configured (set DIAGNOSTICS_DB_PATH)")
	}
	return storage.NewSQLiteRepository(a.cfg.DiagnosticsDBPath, a.logger)
}

func newDiagnosticsRecentCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent journaled failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.ErrOrStderr()); err != nil {
				return err
			}
			repo, err := a.journal()
			if err != nil {
				return err
			}
			defer repo.Close()

			events, err := repo.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}
			return printEvents(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print events as JSON")
	return cmd
}

func newDiagnosticsPruneCmd(a *app) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journaled failures older than a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			if err := a.setup(cmd.ErrOrStderr()); err != nil {
				return err
			}
			repo, err := a.journal()
			if err != nil {
				return err
			}
			defer repo.Close()

			n, err := repo.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d events\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age cutoff")
	return cmd
}

func newDiagnosticsTailCmd(a *app) *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow failures published to the message broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.ErrOrStderr()); err != nil {
				return err
			}
			if a.cfg.AMQPURL == "" {
				return errors.New("message broker is not configured (set AMQP_URL)")
			}
			client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue, a.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(); err != nil {
					a.logger.Warn("AMQP close failed", log.FieldError, err)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var mirror *worker.JournalWorker
			if record {
				repo, err := a.journal()
				if err != nil {
					return err
				}
				defer repo.Close()
				mirror = worker.NewJournalWorker(repo, a.cfg.DiagnosticsRetention, a.logger)
			}

			out := cmd.OutOrStdout()
			err = client.ConsumeDiagnostics(ctx, func(m *amqp.DiagnosticMessage) error {
				if mirror != nil {
					if err := mirror.HandleDiagnosticMessage(ctx, m); err != nil {
						return err
					}
				}
				return printEvent(out, m.Event())
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&record, "record", false, "also store consumed events in the local journal")
	return cmd
}

func printEvents(w io.Writer, events []diagnostics.Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tOPERATION\tSTATUS\tTRANSACTION\tSEARCH\tCAUSE")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.At.Local().Format(time.DateTime),
			e.Operation,
			statusText(e.StatusCode),
			dash(e.TransactionID.String()),
			dash(e.SearchTerm),
			e.Cause)
	}
	return tw.Flush()
}

func printEvent(w io.Writer, e diagnostics.Event) error {
	_, err := fmt.Fprintf(w, "%s %s status=%s tx=%s request=%s cause=%q\n",
		e.At.Local().Format(time.RFC3339),
		e.Operation,
		statusText(e.StatusCode),
		dash(e.TransactionID.String()),
		dash(e.RequestID),
		e.Cause)
	return err
}

func statusText(code int) string {
	if code == 0 {
		return "transport"
	}
	return fmt.Sprint(code)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
