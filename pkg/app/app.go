// Package app hosts the bubbletea dashboard: a single live view of the
// download engine and library updater's progress, subscribed to the
// shared event bus rather than polling either directly.
package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mangavault/core/pkg/app/screens"
	"github.com/mangavault/core/pkg/events"
)

// App runs the dashboard against a shared event bus, the same bus the
// download engine and library updater publish to.
type App struct {
	bus *events.Bus
}

// NewApp builds the dashboard app against bus.
func NewApp(bus *events.Bus) *App {
	return &App{bus: bus}
}

// Run blocks until the user quits the dashboard.
func (a *App) Run() error {
	model := screens.NewRootScreen(a.bus)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
