package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	busyBannerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 2).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1"))
	openBannerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 2).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("2"))
	clockStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	cardStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	activeStyle     = cardStyle.BorderForeground(lipgloss.Color("1")) // red
	dayStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ctaStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Underline(true)
	loadingMark     = "…"
	untitledEvent   = "(no title)"
)

// Terminal renders v as a block of styled text for a terminal of the given
// width. Width <= 0 leaves the layout unconstrained.
func Terminal(v View, width int) string {
	var b strings.Builder

	banner := openBannerStyle
	if v.IsBusy {
		banner = busyBannerStyle
	}
	b.WriteString(banner.Render(v.Banner))
	b.WriteString("\n")
	b.WriteString(clockStyle.Render(v.CurrentTime))
	b.WriteString("\n\n")

	header := "Upcoming Meetings"
	if v.IsLoading {
		header += " " + loadingMark
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	for _, c := range v.Cards {
		style := cardStyle
		if c.Active {
			style = activeStyle
		}
		if width > 4 {
			style = style.Width(width - 2)
		}
		b.WriteString(style.Render(cardBody(c)))
		b.WriteString("\n")
	}

	if v.IsEmpty {
		b.WriteString(mutedStyle.Render(EmptyMessage))
		b.WriteString("\n")
	}

	if v.CreateEventURL != "" {
		b.WriteString("\n")
		b.WriteString(ctaStyle.Render("+ " + v.CreateEventURL))
		b.WriteString("\n")
	}
	return b.String()
}

func cardBody(c Card) string {
	summary := c.Summary
	if summary == "" {
		summary = untitledEvent
	}
	return strings.Join([]string{
		dayStyle.Render(c.Title),
		summary,
		mutedStyle.Render(fmt.Sprintf("Start: %s", c.StartTime)),
		mutedStyle.Render(fmt.Sprintf("Duration: %d minutes", c.DurationMinutes)),
	}, "\n")
}
