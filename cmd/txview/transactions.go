package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"txview/internal/core"
	"txview/internal/view"
)

func newListCmd(a *app) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, optionally filtered by description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withView(cmd, func(ctx context.Context, v *view.TransactionList) error {
				if err := v.Load(ctx, search); err != nil {
					return fmt.Errorf("list transactions: %w", err)
				}
				snap := v.Snapshot()
				if err := printTransactions(cmd.OutOrStdout(), snap.Filtered); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d transactions\n", len(snap.Filtered), len(snap.Transactions))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive description filter")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var date, description, category, amount string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := core.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("--amount %q: %w", amount, err)
			}
			return a.withView(cmd, func(ctx context.Context, v *view.TransactionList) error {
				created, err := v.AddTransaction(ctx, core.NewTransaction{
					Date:        date,
					Description: description,
					Category:    category,
					Amount:      amt,
				})
				if err != nil {
					return fmt.Errorf("add transaction: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added transaction %s\n", created.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "transaction date, e.g. 2024-01-31")
	cmd.Flags().StringVar(&description, "description", "", "free-text description")
	cmd.Flags().StringVar(&category, "category", "", "category label")
	cmd.Flags().StringVar(&amount, "amount", "", "signed amount, dot or comma decimals")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseID(args[0])
			if err != nil {
				return err
			}
			return a.withView(cmd, func(ctx context.Context, v *view.TransactionList) error {
				if err := v.DeleteTransaction(ctx, id); err != nil {
					return fmt.Errorf("delete transaction %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted transaction %s\n", id)
				return nil
			})
		},
	}
}

func printTransactions(w io.Writer, txs []core.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tDESCRIPTION\tCATEGORY\tAMOUNT")
	for _, t := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Date, t.Description, t.Category, t.Amount.String())
	}
	return tw.Flush()
}
