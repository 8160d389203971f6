package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/fixloop/internal/driver"
	"github.com/lucasnoah/fixloop/internal/pipeline"
	"github.com/lucasnoah/fixloop/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs with outcome counts",
	Long: `Show recent runs with outcome counts. Runs come from the database when
FIXLOOP_DATABASE_URL is set, otherwise from the JSON reports in reports_dir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, closeLog, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		var runs []store.Run
		hist, err := openHistory(cmd.Context(), cfg, log)
		switch {
		case errors.Is(err, errNoDatabase):
			runs, err = reportRuns(pipeline.NewStore(cfg.ReportsDir), historyLimit)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			defer hist.Close()
			runs, err = hist.ListRuns(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
		writeRunsTable(cmd.OutOrStdout(), runs)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the per-file report of a run (default: the latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reports := pipeline.NewStore(cfg.ReportsDir)

		var report *pipeline.RunReport
		if len(args) == 1 {
			report, err = reports.Get(args[0])
		} else {
			report, err = reports.Latest()
		}
		if err != nil {
			return err
		}
		if report == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
		driver.WriteSummary(cmd.OutOrStdout(), report)
		return nil
	},
}

var historyEventsCmd = &cobra.Command{
	Use:   "events <run-id>",
	Short: "Show the repair events recorded for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, closeLog, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		hist, err := openHistory(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer hist.Close()

		events, err := hist.RunEvents(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No events for run %s.\n", args[0])
			return nil
		}

		w := cmd.OutOrStdout()
		for _, e := range events {
			fmt.Fprintf(w, "%s  %-16s %s round %d", e.CreatedAt.Local().Format(time.DateTime), e.Event, e.Path, e.Round)
			if e.Detail != "" {
				fmt.Fprintf(w, ": %s", e.Detail)
			}
			fmt.Fprintln(w)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyEventsCmd)
}

// reportRuns converts the newest saved reports into run rows.
func reportRuns(reports *pipeline.Store, limit int) ([]store.Run, error) {
	list, err := reports.List()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	runs := make([]store.Run, 0, len(list))
	for _, r := range list {
		run := store.Run{
			ID:        r.ID,
			Root:      r.Root,
			Files:     len(r.Files),
			Clean:     r.Counts["clean"],
			Fixed:     r.Counts["fixed"],
			Exhausted: r.Counts["exhausted"],
			Stalled:   r.Counts["stalled"],
			Errored:   r.Counts["errored"],
		}
		if t, err := time.Parse(time.RFC3339, r.StartedAt); err == nil {
			run.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339, r.FinishedAt); err == nil {
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func writeRunsTable(w io.Writer, runs []store.Run) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run", "Started", "Root", "Files", "Clean", "Fixed", "Exhausted", "Stalled", "Errored"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	for _, r := range runs {
		started := "-"
		if !r.StartedAt.IsZero() {
			started = r.StartedAt.Local().Format(time.DateTime)
		}
		table.Append([]string{
			shortID(r.ID),
			started,
			r.Root,
			strconv.Itoa(r.Files),
			strconv.Itoa(r.Clean),
			strconv.Itoa(r.Fixed),
			strconv.Itoa(r.Exhausted),
			strconv.Itoa(r.Stalled),
			strconv.Itoa(r.Errored),
		})
	}
	table.Render()
}
