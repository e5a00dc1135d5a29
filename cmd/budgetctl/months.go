package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetflow/internal/core"
	"budgetflow/internal/storage"
)

func newMonthsCmd(current func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "List stored months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			months, err := current().session.Months(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(months) == 0 {
				fmt.Fprintln(out, "No months stored.")
				return nil
			}
			for _, m := range months {
				fmt.Fprintln(out, m)
			}
			return nil
		},
	}
}

func newShowCmd(current func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show MONTH",
		Short: "Show the stored aggregates of a month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseMonthKey(args[0])
			if err != nil {
				return err
			}
			e := current()
			rec, err := e.session.Month(cmd.Context(), m)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no data stored for %s", m)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (version %d, updated %s)\n", rec.Month, rec.Version, rec.LastUpdated.Format("2006-01-02 15:04"))
			if !rec.Valid() {
				fmt.Fprintln(out, "Stored input contains a source cycle; no aggregates available.")
				return nil
			}
			printTotals(out, e.format, totals{
				Income:    rec.TotalGrossIncome,
				Tax:       rec.TotalTax,
				Usable:    rec.TotalUsableIncome,
				Expenses:  rec.TotalExpenses,
				Remaining: rec.RemainingBalance,
			}, rec.CategoryTotals)
			return nil
		},
	}
}

type totals struct {
	Income, Tax, Usable, Expenses, Remaining float64
}

func printTotals(w io.Writer, f *core.Formatter, t totals, categories []core.CategoryTotal) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Total income\t%s\t\n", f.Format(t.Income))
	fmt.Fprintf(tw, "Total tax\t%s\t\n", f.Format(t.Tax))
	fmt.Fprintf(tw, "Usable income\t%s\t\n", f.Format(t.Usable))
	fmt.Fprintf(tw, "Total expenses\t%s\t\n", f.Format(t.Expenses))
	fmt.Fprintf(tw, "Remaining\t%s\t\n", f.Format(t.Remaining))
	_ = tw.Flush()

	if len(categories) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tAMOUNT")
	for _, c := range categories {
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, f.Format(c.Value))
	}
	_ = tw.Flush()
}
