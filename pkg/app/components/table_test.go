package components

import (
	"testing"

	"github.com/charmbracelet/bubbles/table"
	"github.com/stretchr/testify/assert"
)

func TestSearchResultTableRendersEveryRow(t *testing.T) {
	rows := []table.Row{
		{"one-piece", "One Piece"},
		{"naruto", "Naruto"},
	}
	view := SearchResultTable(rows)
	assert.Contains(t, view, "One Piece")
	assert.Contains(t, view, "Naruto")
	assert.Contains(t, view, "Path Word")
}

func TestSearchResultTableHandlesEmptyRows(t *testing.T) {
	view := SearchResultTable(nil)
	assert.Contains(t, view, "Path Word")
}

func TestDownloadedComicsTableRendersEveryRow(t *testing.T) {
	rows := []table.Row{
		{"One Piece", "one-piece", "10", "4"},
	}
	view := DownloadedComicsTable(rows)
	assert.Contains(t, view, "One Piece")
	assert.Contains(t, view, "Downloaded")
}
