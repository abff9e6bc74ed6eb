package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	colorHeader = "#7AA2F7"
	colorDim    = "#565F89"
	colorHot    = "#F7768E"
	colorText   = "#C0CAF5"
)

// HotRatio is the local overdraw above which a row is highlighted.
const HotRatio = 3.0

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorHeader))
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorText))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim))
	hotStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorHot)).Bold(true)
)

var columns = []struct {
	title string
	width int
}{
	{"CAMERA", 18},
	{"SIZE", 11},
	{"LOCAL", 15},
	{"GLOBAL", 15},
	{"AVG / MAX", 15},
}

func cell(s lipgloss.Style, text string, width int) string {
	return s.Width(width).Render(text)
}

func pair(a, b float64) string { return Format(a) + " / " + Format(b) }

// Table renders v as a fixed-width table with a TOTAL line.
func Table(v View) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render("Screen "+v.Screen.String()) + "\n")

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = cell(headerStyle, c.title, c.width)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header...) + "\n")

	for _, r := range v.Rows {
		style := cellStyle
		switch {
		case !r.Active:
			style = dimStyle
		case r.Local >= HotRatio:
			style = hotStyle
		}
		line := []string{
			cell(style, r.Name, columns[0].width),
			cell(style, fmt.Sprintf("%dx%d", r.Width, r.Height), columns[1].width),
			cell(style, pair(r.Local, r.MaxLocal), columns[2].width),
			cell(style, pair(r.Global, r.MaxGlobal), columns[3].width),
			cell(style, pair(r.Average, r.Max), columns[4].width),
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, line...) + "\n")
	}

	total := []string{
		cell(headerStyle, "TOTAL", columns[0].width+columns[1].width+columns[2].width),
		cell(headerStyle, pair(v.TotalGlobal, v.MaxTotalGlobal), columns[3].width),
		cell(headerStyle, pair(v.Totals.Average, v.Totals.Max), columns[4].width),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, total...) + "\n")
	return b.String()
}
