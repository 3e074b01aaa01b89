package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"microstatus/internal/config"
	"microstatus/internal/store"
)

type statusOptions struct {
	processing []string
	imaging    []string
	all        bool
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracked datasets and their pipeline phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := opts.filter()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				counts, err := st.PhaseCounts(cmd.Context())
				if err != nil {
					return fmt.Errorf("phase counts: %w", err)
				}
				datasets, err := st.List(cmd.Context(), filter)
				if err != nil {
					return fmt.Errorf("list datasets: %w", err)
				}
				out := cmd.OutOrStdout()
				renderStatus(out, counts, datasets, shouldColorize(out))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&opts.processing, "phase", "p", nil, "Filter by processing phase (repeatable)")
	cmd.Flags().StringSliceVar(&opts.imaging, "imaging", nil, "Filter by imaging phase (repeatable)")
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "Include datasets that have finished both imaging and processing")
	return cmd
}

func (o statusOptions) filter() (store.Filter, error) {
	filter := store.Filter{Open: !o.all && len(o.processing) == 0 && len(o.imaging) == 0}
	for _, value := range o.processing {
		phase, ok := store.ParseProcessingPhase(value)
		if !ok {
			return store.Filter{}, fmt.Errorf("unknown processing phase %q", value)
		}
		filter.ProcessingPhases = append(filter.ProcessingPhases, phase)
	}
	for _, value := range o.imaging {
		phase, ok := store.ParseImagingPhase(value)
		if !ok {
			return store.Filter{}, fmt.Errorf("unknown imaging phase %q", value)
		}
		filter.ImagingPhases = append(filter.ImagingPhases, phase)
	}
	return filter, nil
}

func renderStatus(out io.Writer, counts map[store.ProcessingPhase]int, datasets []*store.Dataset, color bool) {
	for _, line := range renderSectionHeader("Processing", color) {
		fmt.Fprintln(out, line)
	}
	phases := []store.ProcessingPhase{
		store.ProcessingNotStarted,
		store.ProcessingStarted,
		store.ProcessingStitched,
		store.ProcessingDenoised,
		store.ProcessingBuiltVolume,
		store.ProcessingFinished,
		store.ProcessingPaused,
	}
	countRows := make([][]string, 0, len(phases))
	for _, phase := range phases {
		countRows = append(countRows, []string{phaseLabel(string(phase)), strconv.Itoa(counts[phase])})
	}
	fmt.Fprintln(out, renderTable([]string{"Phase", "Datasets"}, countRows, []columnAlignment{alignLeft, alignRight}, color))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Datasets", color) {
		fmt.Fprintln(out, line)
	}
	if len(datasets) == 0 {
		fmt.Fprintln(out, "No datasets match")
		return
	}
	rows := make([][]string, 0, len(datasets))
	for _, ds := range datasets {
		rows = append(rows, []string{
			strconv.FormatInt(ds.ID, 10),
			ds.Label(),
			string(ds.Modality),
			phaseLabel(string(ds.ImagingPhase)),
			colorize(phaseLabel(string(ds.ProcessingPhase)), processingColor(ds.ProcessingPhase), color),
			pauseDetail(ds),
			tierLabel(ds.Tier),
			stallAge(ds),
			relativeAge(ds.UpdatedAt),
		})
	}
	headers := []string{"ID", "Dataset", "Modality", "Imaging", "Processing", "Detail", "Tier", "Quiet Since", "Updated"}
	aligns := []columnAlignment{alignRight}
	fmt.Fprintln(out, renderTable(headers, rows, aligns, color))
}

func pauseDetail(ds *store.Dataset) string {
	var parts []string
	if ds.ProcessingPhase == store.ProcessingPaused && ds.PausedFrom != "" {
		parts = append(parts, "from "+phaseLabel(string(ds.PausedFrom)))
	}
	if reason := strings.TrimSpace(ds.PauseReason); reason != "" {
		parts = append(parts, reason)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ": ")
}

// stallAge reports when the stall timer of the active phase last restarted.
func stallAge(ds *store.Dataset) string {
	switch {
	case ds.ImagingPhase == store.ImagingInProgress && ds.ImagingStallSince != nil:
		return relativeAge(*ds.ImagingStallSince)
	case ds.ProcessingPhase.Active() && ds.ProcessingStallSince != nil:
		return relativeAge(*ds.ProcessingStallSince)
	}
	return "-"
}

func tierLabel(tier store.Tier) string {
	if tier == "" {
		return "-"
	}
	return string(tier)
}
