package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"budgetflow/internal/core"
	"budgetflow/internal/services"
)

func newSlidersCmd(current func() *env) *cobra.Command {
	var (
		months  int
		asOf    string
		autoFit bool
	)
	cmd := &cobra.Command{
		Use:   "sliders",
		Short: "Seed budget sliders from the trailing months",
		Long: "Seeds one slider per tracked category from the months before --as-of.\n" +
			"With --autofit the unlocked sliders are scaled to fit the average income.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			at := core.MonthOf(time.Now())
			if asOf != "" {
				var err error
				if at, err = core.ParseMonthKey(asOf); err != nil {
					return err
				}
			}
			e := current()
			st, err := e.session.SeedSliders(cmd.Context(), at, months)
			if err != nil {
				return err
			}
			if autoFit {
				_, err := e.session.AutoAdjust(cmd.Context())
				if err != nil && !errors.Is(err, core.ErrAllocationNoOp) {
					return err
				}
				if st, err = e.session.Sliders(); err != nil {
					return err
				}
			}
			printSliders(cmd.OutOrStdout(), e.format, st)
			return nil
		},
	}
	cmd.Flags().IntVarP(&months, "months", "n", 0, "Trailing months to average (0 uses the configured default)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Seed from the months before this one (YYYY-MM, default current)")
	cmd.Flags().BoolVar(&autoFit, "autofit", false, "Scale sliders to the average income")
	return cmd
}

func printSliders(w io.Writer, f *core.Formatter, st services.SliderState) {
	if len(st.Sliders) == 0 {
		fmt.Fprintln(w, "No tracked categories to seed.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tVALUE\tMIN\tMAX\tESSENTIAL")
	for _, s := range st.Sliders {
		essential := ""
		if s.Essential {
			essential = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Name, f.Format(s.Value), f.Format(s.Min), f.Format(s.Max), essential)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\nTotal %s of %s (seeded from %s)\n", f.Format(st.Total), f.Format(st.TargetMax), st.SeededFrom)
}
