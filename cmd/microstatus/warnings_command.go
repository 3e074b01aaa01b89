package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"microstatus/internal/config"
	"microstatus/internal/store"
)

func newWarningsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "warnings",
		Short: "Show storage warning state per resource and tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				warnings, err := st.ListWarnings(cmd.Context())
				if err != nil {
					return fmt.Errorf("list warnings: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(warnings) == 0 {
					fmt.Fprintln(out, "No storage warnings recorded")
					return nil
				}
				rows := make([][]string, 0, len(warnings))
				for _, w := range warnings {
					rows = append(rows, []string{
						w.Resource,
						w.Tier,
						yesNo(w.Active),
						yesNo(w.MessageSent),
						humanize.FtoaWithDigits(w.UsedPercent, 1) + "%",
						relativeAge(w.UpdatedAt),
					})
				}
				headers := []string{"Resource", "Tier", "Active", "Sent", "Used", "Updated"}
				aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
				fmt.Fprintln(out, renderTable(headers, rows, aligns, shouldColorize(out)))
				return nil
			})
		},
	}
}
