package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/fixloop/internal/checks"
	"github.com/lucasnoah/fixloop/internal/config"
	"github.com/lucasnoah/fixloop/internal/fixtures"
	"github.com/lucasnoah/fixloop/internal/sandbox"
)

var (
	checkLanguage int
	checkFixtures string
)

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Run one file against its fixtures without filing tickets or suggesting fixes",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().IntVar(&checkLanguage, languageFlagName, 0, "sandbox language id (default: resolve from extension or catalog)")
	checkCmd.Flags().StringVar(&checkFixtures, fixturesKey, "", "shared fixture file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed(fixturesKey) {
		cfg.Fixtures = checkFixtures
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := newSandbox(cfg, log)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)

	cases, err := checkCases(cfg, path)
	if err != nil {
		return err
	}

	langID := checkLanguage
	if langID == 0 {
		langID, err = resolveLanguage(cmd.Context(), client, cfg.Languages, path, content)
		if err != nil {
			return err
		}
	}

	report, err := checks.NewRunner(client, cfg.Repair.MaxErrorBytes).RunAll(cmd.Context(), content, langID, cases)
	if err != nil {
		return err
	}

	writeCheckTable(cmd, report)
	if !report.AllPassed {
		return fmt.Errorf("%d of %d case(s) failed", len(report.Cases)-report.Passed(), len(report.Cases))
	}
	return nil
}

// checkCases returns the file's override fixtures or the shared ones.
func checkCases(cfg *config.Config, path string) ([]fixtures.TestCase, error) {
	shared, sharedErr := fixtures.Load(cfg.Fixtures)
	cases, override, err := fixtures.ForFile(path, shared)
	if err != nil {
		return nil, fmt.Errorf("load fixture override: %w", err)
	}
	if !override && sharedErr != nil {
		return nil, fmt.Errorf("load fixtures: %w", sharedErr)
	}
	return cases, nil
}

// resolveLanguage consults the configured extension map, then the sandbox
// catalog.
func resolveLanguage(ctx context.Context, client *sandbox.Client, byExt map[string]int, path, content string) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if id, ok := byExt[ext]; ok {
		return id, nil
	}
	catalog, err := client.Languages(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch language catalog: %w", err)
	}
	lang, ok := sandbox.Identify(catalog, content)
	if !ok {
		return 0, fmt.Errorf("unknown language for %s; pass --%s", path, languageFlagName)
	}
	return lang.ID, nil
}

func writeCheckTable(cmd *cobra.Command, report *checks.Report) {
	w := cmd.OutOrStdout()
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Case", "Name", "Result", "Detail"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)

	for _, c := range report.Cases {
		result := "PASS"
		detail := ""
		if !c.Passed {
			result = "FAIL"
			detail = caseDetail(c)
		}
		table.Append([]string{fmt.Sprint(c.Case.ID), c.Case.Label(), result, detail})
	}
	table.Render()

	fmt.Fprintf(w, "\n%d/%d passed in %dms\n", report.Passed(), len(report.Cases), report.DurationMs)
	if !report.AllPassed {
		fmt.Fprintf(w, "\n%s\n", report.ErrorText())
	}
}

func caseDetail(c checks.CaseResult) string {
	detail := c.ErrText
	if detail == "" && c.Err != nil {
		detail = c.Err.Error()
	}
	if detail == "" {
		detail = fmt.Sprintf("expected %q, got %q", strings.TrimSpace(c.Case.Output), strings.TrimSpace(c.Actual))
	}
	if i := strings.IndexByte(detail, '\n'); i >= 0 {
		detail = detail[:i]
	}
	if len(detail) > 80 {
		cut := 77
		for cut > 0 && !utf8.RuneStart(detail[cut]) {
			cut--
		}
		detail = detail[:cut] + "..."
	}
	return detail
}
