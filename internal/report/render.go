package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"winmaint/internal/remedy"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00D4FF"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00E676"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAB00"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5252"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A5568"))
)

func statusStyle(s remedy.Status) lipgloss.Style {
	switch s {
	case remedy.StatusSuccess:
		return successStyle
	case remedy.StatusWarning:
		return warningStyle
	case remedy.StatusFailed:
		return errorStyle
	default:
		return mutedStyle
	}
}

// Render formats the run summary for the console.
func Render(r Report) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("winmaint run %s (%s)", r.RunID, r.Mode)))
	b.WriteString("\n\n")

	for _, m := range r.Modules {
		status := string(m.Result.Status)
		if status == "" {
			status = "error"
		}
		b.WriteString(fmt.Sprintf("  %-12s %s  detected=%d processed=%d failed=%d\n",
			m.Module,
			statusStyle(m.Result.Status).Render(fmt.Sprintf("%-8s", status)),
			m.Result.ItemsDetected, m.Result.ItemsProcessed, m.Result.ItemsFailed))
		if m.Error != "" {
			b.WriteString("    " + errorStyle.Render(m.Error) + "\n")
		}
		for _, e := range m.Result.Errors {
			b.WriteString("    " + errorStyle.Render(e.ID+": "+e.Message) + "\n")
		}
	}

	s := r.Summary
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %d modules: %d succeeded, %d warnings, %d failed, %d skipped\n",
		s.Modules, s.Succeeded, s.Warnings, s.Failed, s.Skipped))
	b.WriteString(fmt.Sprintf("  %d items detected, %d processed, %d failed\n",
		s.ItemsDetected, s.ItemsProcessed, s.ItemsFailed))

	return b.String()
}
