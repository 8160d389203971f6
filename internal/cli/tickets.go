package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/fixloop/internal/config"
	"github.com/lucasnoah/fixloop/internal/store"
)

var ticketsLimit int

var errNoDatabase = errors.New("no database configured (set FIXLOOP_DATABASE_URL)")

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List recorded ticket fingerprints",
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

		records, err := hist.ListTickets(cmd.Context(), ticketsLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tickets recorded.")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Fingerprint", "Tracker", "Key", "Path", "Filed"})
		table.SetBorder(false)
		table.SetCenterSeparator("")
		table.SetAutoWrapText(false)
		for _, t := range records {
			table.Append([]string{
				shortID(t.Fingerprint),
				t.Tracker,
				t.Key,
				t.Path,
				t.CreatedAt.Local().Format(time.DateTime),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	ticketsCmd.Flags().IntVar(&ticketsLimit, "limit", 50, "maximum tickets to list")
}

// openHistory opens the Postgres history store. Commands that only read
// history have nothing to show from an in-memory store.
func openHistory(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (store.Store, error) {
	if cfg.Database.DSN == "" {
		return nil, errNoDatabase
	}
	return store.Open(ctx, cfg.Database, log)
}

func shortID(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
