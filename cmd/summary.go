package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dataheck/maintenanace-issue-report/internal/config"
	"github.com/dataheck/maintenanace-issue-report/internal/domain"
	"github.com/dataheck/maintenanace-issue-report/internal/usecase"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	labelStyle    = lipgloss.NewStyle().Width(8).Foreground(lipgloss.Color("8"))
	reminderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// renderSummary describes a finished run and reminds the user of the manual
// steps left before delivery.
func renderSummary(result *usecase.Result, cfg *config.Config, printed bool) string {
	var issues, pulls int
	for _, issue := range result.Issues {
		if issue.Kind == domain.KindPullRequest {
			pulls++
		} else {
			issues++
		}
	}

	lines := []string{
		titleStyle.Render("Report complete"),
		row("Project", cfg.Report.ProjectName),
		row("Items", fmt.Sprintf("%d (%d issues, %d pull requests)", len(result.Issues), issues, pulls)),
		row("Report", cfg.Report.OutputPath),
	}
	if printed {
		lines = append(lines, row("PDFs", fmt.Sprintf("%d in %s", len(result.PDFs), cfg.Print.SaveDir)))
	}

	lines = append(lines, "", reminderStyle.Render("Don't forget to update fields before exporting!"))
	switch {
	case printed && len(result.PDFs) < len(result.Issues):
		// The print dialog fallback lets the browser name the files.
		lines = append(lines, reminderStyle.Render("Some PDFs were named by the browser: join them in order of modification time with an external tool before delivery."))
	case printed:
		lines = append(lines, reminderStyle.Render("Join the PDFs in file-name order with an external tool before delivery."))
	}
	return strings.Join(lines, "\n")
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}
