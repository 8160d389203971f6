package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lucasnoah/fixloop/internal/checks"
	"github.com/lucasnoah/fixloop/internal/config"
	"github.com/lucasnoah/fixloop/internal/driver"
	"github.com/lucasnoah/fixloop/internal/metrics"
	"github.com/lucasnoah/fixloop/internal/pipeline"
	"github.com/lucasnoah/fixloop/internal/repair"
	"github.com/lucasnoah/fixloop/internal/store"
	"github.com/lucasnoah/fixloop/internal/suggest"
	"github.com/lucasnoah/fixloop/internal/tracker"
)

var (
	runNoFail  bool
	runExclude []string
)

var runCmd = &cobra.Command{
	Use:   "run [root]",
	Short: "Detect, ticket, and repair every selected file under root",
	Long: `Walk root (default: the configured root, usually ".") and run each file with
a selected extension against its fixtures. Failing files get a ticket and up
to max-rounds suggested fixes; a verified fix is written back unless
--dry-run is set.

Exits non-zero when any file ends exhausted, stalled, or errored, unless
--no-fail is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	flags := runCmd.Flags()
	flags.StringSlice(extFlagName, nil, "file extension to process (can be repeated)")
	bindFlagToConfig(flags.Lookup(extFlagName), extensionsKey)
	flags.String(fixturesKey, "", "shared fixture file")
	bindFlagToConfig(flags.Lookup(fixturesKey), fixturesKey)
	flags.Int(maxRoundsKey, 0, "maximum suggest/verify rounds per file")
	bindFlagToConfig(flags.Lookup(maxRoundsKey), maxRoundsKey)
	flags.String(patchModeKey, "", "how suggestions apply: replace_file or substitute")
	bindFlagToConfig(flags.Lookup(patchModeKey), patchModeKey)
	flags.Bool(dryRunKey, false, "verify fixes without writing them back")
	bindFlagToConfig(flags.Lookup(dryRunKey), dryRunKey)
	flags.String(metricsAddrKey, "", "serve Prometheus metrics on this address during the run")
	bindFlagToConfig(flags.Lookup(metricsAddrKey), metricsAddrKey)

	flags.BoolVar(&runNoFail, noFailFlagName, false, "exit zero even when files were not fixed")
	flags.StringArrayVarP(&runExclude, excludeFlagName, "x", nil, "exclude paths matching regex (can be repeated)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Root = args[0]
	}
	if cmd.Flags().Changed(excludeFlagName) {
		cfg.Exclude = runExclude
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return printValidation(cmd, errs)
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := store.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer history.Close()

	client, err := newSandbox(cfg, log)
	if err != nil {
		return err
	}
	trk, err := tracker.New(cfg.Tracker, nil, log)
	if err != nil {
		return err
	}
	suggester, err := suggest.New(cfg.Suggest, cfg.Root, log)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	loop := repair.NewLoop(
		checks.NewRunner(client, cfg.Repair.MaxErrorBytes),
		suggester,
		trk,
		history,
		repair.OptionsFromConfig(cfg, runID),
		log,
	)
	drv := driver.New(loop, client, pipeline.NewStore(cfg.ReportsDir), history, driver.OptionsFromConfig(cfg, runID), log)

	report, err := runWithMetrics(ctx, cfg.Metrics.Addr, drv.Run)
	if report != nil {
		driver.WriteSummary(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}

	if report.Failed() && !runNoFail {
		failed := len(report.Files) - report.Counts[string(repair.Clean)] - report.Counts[string(repair.Fixed)]
		return fmt.Errorf("%d of %d file(s) were not clean or fixed", failed, len(report.Files))
	}
	return nil
}

// runWithMetrics runs fn, serving metrics on addr alongside it when addr is
// set. The server stops when fn returns; a server failure cancels fn.
func runWithMetrics(ctx context.Context, addr string, fn func(context.Context) (*pipeline.RunReport, error)) (*pipeline.RunReport, error) {
	if addr == "" {
		return fn(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	var (
		report *pipeline.RunReport
		runErr error
	)
	g.Go(func() error {
		return metrics.Serve(srvCtx, addr)
	})
	g.Go(func() error {
		defer stopServer()
		report, runErr = fn(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("metrics server: %w", err)
	}
	return report, runErr
}
