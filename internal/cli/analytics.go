package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/fixloop/internal/analytics"
	"github.com/lucasnoah/fixloop/internal/pipeline"
)

var (
	analyticsSince string
	analyticsJSON  bool
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Aggregate statistics over saved run reports",
}

var analyticsOutcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "File outcome counts and the overall fix rate",
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := loadReports()
		if err != nil {
			return err
		}
		rates := analytics.Outcomes(reports)
		if analyticsJSON {
			return writeJSON(cmd, map[string]any{"outcomes": rates, "fix_rate": analytics.FixRate(reports)})
		}

		table := newStatsTable(cmd, "Outcome", "Files", "Pct")
		for _, r := range rates {
			table.Append([]string{r.Outcome, strconv.Itoa(r.Count), fmt.Sprintf("%.1f%%", r.Pct)})
		}
		table.Render()
		fmt.Fprintf(cmd.OutOrStdout(), "\nFix rate: %.1f%%\n", analytics.FixRate(reports))
		return nil
	},
}

var analyticsRoundsCmd = &cobra.Command{
	Use:   "rounds",
	Short: "Distribution of rounds needed by fixed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := loadReports()
		if err != nil {
			return err
		}
		dist := analytics.Rounds(reports)
		if analyticsJSON {
			return writeJSON(cmd, dist)
		}

		table := newStatsTable(cmd, "Rounds", "Files", "Pct")
		for _, d := range dist {
			table.Append([]string{strconv.Itoa(d.Rounds), strconv.Itoa(d.Count), fmt.Sprintf("%.1f%%", d.Pct)})
		}
		table.Render()
		return nil
	},
}

var analyticsDurationsCmd = &cobra.Command{
	Use:   "durations",
	Short: "Average and percentile file durations per outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := loadReports()
		if err != nil {
			return err
		}
		stats := analytics.Durations(reports)
		if analyticsJSON {
			return writeJSON(cmd, stats)
		}

		table := newStatsTable(cmd, "Outcome", "Files", "Avg (s)", "P50 (s)", "P95 (s)")
		for _, s := range stats {
			table.Append([]string{
				s.Outcome,
				strconv.Itoa(s.Count),
				fmt.Sprintf("%.2f", s.Avg),
				fmt.Sprintf("%.2f", s.P50),
				fmt.Sprintf("%.2f", s.P95),
			})
		}
		table.Render()
		return nil
	},
}

var analyticsWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Runs and files per ISO week",
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := loadReports()
		if err != nil {
			return err
		}
		weeks := analytics.Weekly(reports)
		if analyticsJSON {
			return writeJSON(cmd, weeks)
		}

		table := newStatsTable(cmd, "Week", "Runs", "Files", "Fixed", "Failed")
		for _, w := range weeks {
			table.Append([]string{
				w.Period,
				strconv.Itoa(w.Runs),
				strconv.Itoa(w.Files),
				strconv.Itoa(w.Fixed),
				strconv.Itoa(w.Failed),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	analyticsCmd.PersistentFlags().StringVar(&analyticsSince, "since", "", "only runs started at or after this time (RFC 3339 or YYYY-MM-DD)")
	analyticsCmd.PersistentFlags().BoolVar(&analyticsJSON, "json", false, "print JSON instead of a table")
	analyticsCmd.AddCommand(analyticsOutcomesCmd)
	analyticsCmd.AddCommand(analyticsRoundsCmd)
	analyticsCmd.AddCommand(analyticsDurationsCmd)
	analyticsCmd.AddCommand(analyticsWeeklyCmd)
}

// loadReports reads every saved report, filtered by --since.
func loadReports() ([]pipeline.RunReport, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	reports, err := pipeline.NewStore(cfg.ReportsDir).List()
	if err != nil {
		return nil, err
	}
	return analytics.Since(reports, analyticsSince)
}

func newStatsTable(cmd *cobra.Command, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	return table
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
