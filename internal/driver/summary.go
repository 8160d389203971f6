package driver

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"

	"github.com/lucasnoah/fixloop/internal/pipeline"
	"github.com/lucasnoah/fixloop/internal/repair"
)

var summaryOutcomes = []repair.Outcome{repair.Clean, repair.Fixed, repair.Exhausted, repair.Stalled, repair.Errored}

// Counts renders the outcome counts as one line, e.g.
// "clean 1, fixed 2, exhausted 0, stalled 0, errored 1".
func Counts(report *pipeline.RunReport) string {
	parts := make([]string, len(summaryOutcomes))
	for i, o := range summaryOutcomes {
		parts[i] = fmt.Sprintf("%s %d", o, report.Counts[string(o)])
	}
	return strings.Join(parts, ", ")
}

// WriteSummary renders the per-file table and outcome counts.
func WriteSummary(w io.Writer, report *pipeline.RunReport) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Outcome", "Rounds", "Tickets", "Detail"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
	})

	for _, f := range report.Files {
		detail := firstLine(f.Error)
		if f.Outcome == string(repair.Fixed) && !f.Written {
			detail = "not written (dry run)"
		}
		table.Append([]string{
			f.Path,
			f.Outcome,
			strconv.Itoa(f.Rounds),
			strings.Join(f.Tickets, " "),
			detail,
		})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(report.Files)),
		"", "", "", "",
	})
	table.Render()

	fmt.Fprintf(w, "\nRun %s: %s\n", report.ID, Counts(report))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		cut := 77
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
