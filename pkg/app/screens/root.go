// Package screens holds the dashboard's one bubbletea model: a live view
// of the download engine and library updater, driven entirely by
// pkg/events rather than by direct access to either.
package screens

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mangavault/core/pkg/app/components"
	"github.com/mangavault/core/pkg/app/styles"
	"github.com/mangavault/core/pkg/events"
)

// busEventMsg wraps one event bus notification for bubbletea's Update loop.
type busEventMsg events.Event

// RootScreen is the dashboard's top-level model: a running tally of
// active chapter downloads plus the library updater's last reported
// phase, both rebuilt solely from subscribed events.
type RootScreen struct {
	bus         *events.Bus
	events      <-chan events.Event
	unsubscribe func()

	tasks *components.ProgressTracker

	updaterPhase string
	updaterComic string
	speedBps     int64

	width  int
	height int
}

// NewRootScreen subscribes to bus and returns the dashboard model.
func NewRootScreen(bus *events.Bus) *RootScreen {
	ch, unsubscribe := bus.Subscribe(64)
	return &RootScreen{
		bus:         bus,
		events:      ch,
		unsubscribe: unsubscribe,
		tasks:       components.NewProgressTracker(80),
	}
}

// Init starts the event-pump command.
func (r *RootScreen) Init() tea.Cmd {
	return r.waitForEvent()
}

func (r *RootScreen) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-r.events
		if !ok {
			return nil
		}
		return busEventMsg(evt)
	}
}

func (r *RootScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height
		r.tasks = components.NewProgressTracker(max(40, r.width-4))
		return r, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			r.unsubscribe()
			return r, tea.Quit
		}
		return r, nil

	case busEventMsg:
		r.applyEvent(events.Event(msg))
		return r, r.waitForEvent()
	}

	return r, nil
}

func (r *RootScreen) applyEvent(evt events.Event) {
	switch evt.Kind {
	case events.KindDownloadTaskCreate:
		if payload, ok := evt.Payload.(events.TaskCreatePayload); ok {
			r.tasks.HandleCreate(payload)
		}
	case events.KindDownloadTaskUpdate:
		if payload, ok := evt.Payload.(events.TaskUpdatePayload); ok {
			r.tasks.HandleUpdate(payload)
		}
	case events.KindDownloadSpeed:
		if payload, ok := evt.Payload.(events.SpeedPayload); ok {
			r.speedBps = payload.BytesPerSecond
		}
	case events.KindUpdateDownloadedComics:
		if payload, ok := evt.Payload.(events.UpdateDownloadedComicsPayload); ok {
			r.updaterPhase = string(payload.Phase)
			r.updaterComic = payload.ComicName
		}
	}
}

func (r *RootScreen) View() string {
	header := styles.TitleStyle.Render("Manga Vault — live downloads")

	body := r.tasks.View()
	if body == "" {
		body = styles.MutedStyle.Render("No active downloads.")
	}

	status := styles.MutedStyle.Render(fmt.Sprintf("Throughput: %d B/s", r.speedBps))
	if r.updaterPhase != "" {
		status += "\n" + styles.MutedStyle.Render(fmt.Sprintf("Updater: %s %s", r.updaterPhase, r.updaterComic))
	}

	help := styles.HelpStyle.Render("q: quit")

	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", header, body, status, help)
}
