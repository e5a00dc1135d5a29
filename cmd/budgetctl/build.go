package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"budgetflow/internal/core"
	"budgetflow/internal/flowgraph"
)

func newBuildCmd(current func() *env) *cobra.Command {
	var (
		file  string
		month string
		save  bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the money-flow graph for a batch of entries",
		Long: "Reads a JSON array of entries and prints the graph aggregates.\n" +
			"With --save the batch is stored as the given month.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := readEntries(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			e := current()

			var res *flowgraph.Result
			if save {
				m := core.MonthOf(time.Now())
				if month != "" {
					if m, err = core.ParseMonthKey(month); err != nil {
						return err
					}
				}
				res, err = e.session.SubmitEntries(cmd.Context(), m, entries)
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", m)
				}
			} else {
				res, err = flowgraph.NewBuilder(e.session.Vocabulary()).Build(entries)
			}
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), e.format, res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Entries JSON file (- for stdin)")
	cmd.Flags().StringVarP(&month, "month", "m", "", "Month to save as (YYYY-MM, default current)")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the batch")
	return cmd
}

func readEntries(stdin io.Reader, file string) ([]core.Entry, error) {
	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var entries []core.Entry
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return entries, nil
}

func printResult(w io.Writer, f *core.Formatter, res *flowgraph.Result) {
	printTotals(w, f, totals{
		Income:    res.TotalIncome,
		Tax:       res.TotalTax,
		Usable:    res.UsableIncome,
		Expenses:  res.TotalExpenses,
		Remaining: res.RemainingBalance,
	}, res.CategoryTotals)
	for _, c := range res.Changed {
		fmt.Fprintf(w, "Raised %s from %s to %s\n", c.Name, f.Format(c.Declared), f.Format(c.Reconciled))
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warn)
	}
}
