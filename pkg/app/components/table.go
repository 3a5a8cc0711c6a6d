package components

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mangavault/core/pkg/app/styles"
)

// SearchResultTable renders search hits as a static bubbles/table view,
// used by the CLI's search subcommand instead of a plain tab-separated
// printout.
func SearchResultTable(rows []table.Row) string {
	return renderTable([]table.Column{
		{Title: "Path Word", Width: 24},
		{Title: "Name", Width: 44},
	}, rows)
}

// DownloadedComicsTable renders the downloaded library as a bubbles/table
// view, used by the CLI's list subcommand.
func DownloadedComicsTable(rows []table.Row) string {
	return renderTable([]table.Column{
		{Title: "Name", Width: 36},
		{Title: "Path Word", Width: 20},
		{Title: "Chapters", Width: 10},
		{Title: "Downloaded", Width: 12},
	}, rows)
}

func renderTable(columns []table.Column, rows []table.Row) string {
	height := len(rows) + 1
	if height < 1 {
		height = 1
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Secondary).
		BorderBottom(true).
		Bold(true)
	t.SetStyles(s)

	return t.View()
}
