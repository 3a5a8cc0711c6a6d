package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mangavault/core/pkg/app/styles"
	"github.com/mangavault/core/pkg/events"
)

// taskView is the dashboard's copy of one chapter task's latest known
// state, a mirror of the engine's in-memory task table (spec §4.4) built
// from the event bus instead of direct access to it.
type taskView struct {
	chapterUUID string
	comicName   string
	groupName   string
	chapterName string
	status      events.TaskStatus
	pagesDone   int
	pagesTotal  int
	failure     string
}

// ProgressTracker accumulates DownloadTask.Create/Update events into a
// live per-chapter view.
type ProgressTracker struct {
	tasks map[string]*taskView
	width int
}

// NewProgressTracker returns an empty tracker rendering at width columns.
func NewProgressTracker(width int) *ProgressTracker {
	return &ProgressTracker{
		tasks: make(map[string]*taskView),
		width: width,
	}
}

// HandleCreate records a newly created task.
func (p *ProgressTracker) HandleCreate(payload events.TaskCreatePayload) {
	p.tasks[payload.ChapterUUID] = &taskView{
		chapterUUID: payload.ChapterUUID,
		comicName:   payload.ComicName,
		groupName:   payload.GroupName,
		chapterName: payload.ChapterName,
		status:      events.TaskPending,
	}
}

// HandleUpdate applies a task status transition, dropping the task from
// the tracked set once it is Completed or Cancelled. A Failed task stays
// tracked so its failure reason remains on screen.
func (p *ProgressTracker) HandleUpdate(payload events.TaskUpdatePayload) {
	view, ok := p.tasks[payload.ChapterUUID]
	if !ok {
		view = &taskView{chapterUUID: payload.ChapterUUID}
		p.tasks[payload.ChapterUUID] = view
	}
	view.status = payload.Status
	view.pagesDone = payload.PagesDone
	view.pagesTotal = payload.PagesTotal
	view.failure = payload.FailureReason

	switch payload.Status {
	case events.TaskCompleted, events.TaskCancelled:
		delete(p.tasks, payload.ChapterUUID)
	}
}

// Clear drops every tracked task.
func (p *ProgressTracker) Clear() {
	p.tasks = make(map[string]*taskView)
}

// HasActive reports whether any task is currently tracked.
func (p *ProgressTracker) HasActive() bool {
	return len(p.tasks) > 0
}

// View renders every tracked task, ordered by chapter UUID for a stable
// display across redraws.
func (p *ProgressTracker) View() string {
	if len(p.tasks) == 0 {
		return ""
	}

	ids := make([]string, 0, len(p.tasks))
	for id := range p.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Active Downloads"))
	b.WriteString("\n\n")

	for _, id := range ids {
		view := p.tasks[id]
		header := fmt.Sprintf("%s / %s / %s", view.comicName, view.groupName, view.chapterName)
		b.WriteString(styles.TextStyle.Render(header))
		b.WriteString("\n")

		statusText := string(view.status)
		if view.pagesTotal > 0 {
			percentage := float64(view.pagesDone) / float64(view.pagesTotal) * 100
			statusText = fmt.Sprintf("%s (%d/%d pages - %.0f%%)", view.status, view.pagesDone, view.pagesTotal, percentage)
			b.WriteString(renderProgressBar(view.pagesDone, view.pagesTotal, p.width-4))
			b.WriteString("\n")
		}

		b.WriteString(styles.StatusStyle(string(view.status)).Render(statusText))
		b.WriteString("\n")

		if view.failure != "" {
			b.WriteString(styles.StatusError.Render("Error: " + view.failure))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

func renderProgressBar(current, total, width int) string {
	if total == 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return styles.ProgressBarStyle.Render(bar)
}

// SimpleProgress renders a standalone progress bar that is not tied to any
// tracked task.
func SimpleProgress(current, total, width int) string {
	return renderProgressBar(current, total, width)
}
