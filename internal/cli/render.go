package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

const wideColumn = 60

// renderResult writes r as a titled table. The free-text column is last
// and wraps.
func renderResult(w io.Writer, t Theme, r models.Result) {
	var (
		headers []string
		rows    [][]string
		title   = r.Stage().Title()
	)
	switch v := r.(type) {
	case *models.RequirementsResult:
		headers = []string{"ID", "Priority", "Source", "Description"}
		for _, req := range v.Requirements {
			rows = append(rows, []string{req.ID, string(req.Priority), req.Source, req.Description})
		}
	case *models.UserStoriesResult:
		headers = []string{"ID", "Requirement", "Priority", "Story"}
		for _, s := range v.Stories {
			rows = append(rows, []string{s.ID, s.Related, string(s.Priority), s.Story})
		}
	case *models.FitGapResult:
		headers = []string{"Requirement", "Fit", "Effort", "Gap"}
		title = fmt.Sprintf("%s (%s)", title, v.Pair)
		for _, e := range v.Entries {
			rows = append(rows, []string{e.Requirement, string(e.Fit), string(e.Effort), e.Gap})
		}
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Hint)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true).Foreground(t.Status)
			}
			if col == len(headers)-1 {
				style = style.Width(wideColumn)
			}
			return style
		})

	fmt.Fprintln(w, t.headerStyle().Render(title))
	fmt.Fprintln(w, tbl.Render())
}

// formatJobLine is one row of the jobs listing.
func formatJobLine(j models.AnalysisJob) string {
	progress := fmt.Sprintf("%d%%", j.Progress)
	started := j.StartedAt.Local().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("%-10s %-14s %-10s %-8s %s", j.JobID(), j.Stage, j.Status, progress, started)
	if j.Discarded {
		line += " (discarded)"
	}
	return strings.TrimRight(line, " ")
}
