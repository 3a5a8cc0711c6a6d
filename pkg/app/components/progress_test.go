package components

import (
	"strings"
	"testing"

	"github.com/mangavault/core/pkg/events"
)

func TestNewProgressTracker(t *testing.T) {
	tracker := NewProgressTracker(80)

	if tracker == nil {
		t.Fatal("Expected tracker to be created")
	}
	if tracker.width != 80 {
		t.Errorf("Expected width 80, got %d", tracker.width)
	}
	if len(tracker.tasks) != 0 {
		t.Errorf("Expected 0 tasks, got %d", len(tracker.tasks))
	}
}

func TestHandleCreateThenUpdate(t *testing.T) {
	tracker := NewProgressTracker(80)

	tracker.HandleCreate(events.TaskCreatePayload{
		ChapterUUID: "ch-1",
		ComicName:   "Demo",
		GroupName:   "default",
		ChapterName: "1 Chapter One",
	})

	if !tracker.HasActive() {
		t.Error("Expected tracker to have an active task")
	}

	tracker.HandleUpdate(events.TaskUpdatePayload{
		ChapterUUID: "ch-1",
		Status:      events.TaskDownloading,
		PagesDone:   5,
		PagesTotal:  10,
	})

	if len(tracker.tasks) != 1 {
		t.Errorf("Expected 1 task, got %d", len(tracker.tasks))
	}
}

func TestHandleUpdateRemovesCompletedTask(t *testing.T) {
	tracker := NewProgressTracker(80)
	tracker.HandleCreate(events.TaskCreatePayload{ChapterUUID: "ch-1"})

	tracker.HandleUpdate(events.TaskUpdatePayload{ChapterUUID: "ch-1", Status: events.TaskCompleted})

	if len(tracker.tasks) != 0 {
		t.Errorf("Expected completed task to be removed, got %d", len(tracker.tasks))
	}
}

func TestHandleUpdateRemovesCancelledTask(t *testing.T) {
	tracker := NewProgressTracker(80)
	tracker.HandleCreate(events.TaskCreatePayload{ChapterUUID: "ch-1"})

	tracker.HandleUpdate(events.TaskUpdatePayload{ChapterUUID: "ch-1", Status: events.TaskCancelled})

	if len(tracker.tasks) != 0 {
		t.Errorf("Expected cancelled task to be removed, got %d", len(tracker.tasks))
	}
}

func TestClear(t *testing.T) {
	tracker := NewProgressTracker(80)

	for i := 0; i < 3; i++ {
		tracker.HandleCreate(events.TaskCreatePayload{ChapterUUID: string(rune('a' + i))})
	}

	if len(tracker.tasks) != 3 {
		t.Errorf("Expected 3 tasks, got %d", len(tracker.tasks))
	}

	tracker.Clear()

	if len(tracker.tasks) != 0 {
		t.Errorf("Expected 0 tasks after clear, got %d", len(tracker.tasks))
	}
}

func TestHasActive(t *testing.T) {
	tracker := NewProgressTracker(80)

	if tracker.HasActive() {
		t.Error("Expected no active tasks initially")
	}

	tracker.HandleCreate(events.TaskCreatePayload{ChapterUUID: "ch-1"})

	if !tracker.HasActive() {
		t.Error("Expected active task after create")
	}

	tracker.Clear()

	if tracker.HasActive() {
		t.Error("Expected no active tasks after clear")
	}
}

func TestViewEmpty(t *testing.T) {
	tracker := NewProgressTracker(80)

	if view := tracker.View(); view != "" {
		t.Errorf("Expected empty view, got: %s", view)
	}
}

func TestViewWithProgress(t *testing.T) {
	tracker := NewProgressTracker(80)
	tracker.HandleCreate(events.TaskCreatePayload{
		ChapterUUID: "ch-1",
		ComicName:   "Demo",
		GroupName:   "default",
		ChapterName: "5 Chapter Five",
	})
	tracker.HandleUpdate(events.TaskUpdatePayload{
		ChapterUUID: "ch-1",
		Status:      events.TaskDownloading,
		PagesDone:   10,
		PagesTotal:  20,
	})

	view := tracker.View()

	if !strings.Contains(view, "Active Downloads") {
		t.Error("Expected 'Active Downloads' header")
	}
	if !strings.Contains(view, "Chapter Five") {
		t.Error("Expected chapter name in view")
	}
	if !strings.Contains(view, "Downloading") {
		t.Error("Expected status in view")
	}
	if !strings.Contains(view, "10/20") {
		t.Error("Expected page progress in view")
	}
}

func TestViewShowsFailureReason(t *testing.T) {
	tracker := NewProgressTracker(80)
	tracker.HandleCreate(events.TaskCreatePayload{ChapterUUID: "ch-1", ComicName: "Demo"})
	tracker.HandleUpdate(events.TaskUpdatePayload{
		ChapterUUID:   "ch-1",
		Status:        events.TaskFailed,
		FailureReason: "connection reset",
	})

	view := tracker.View()

	if !strings.Contains(view, "Error:") {
		t.Error("Expected error label in view")
	}
	if !strings.Contains(view, "connection reset") {
		t.Error("Expected failure reason in view")
	}
}

func TestRenderProgressBar(t *testing.T) {
	bar := renderProgressBar(50, 100, 20)

	if len(bar) < 20 {
		t.Errorf("Expected progress bar of at least 20 chars, got %d", len(bar))
	}
	if !strings.Contains(bar, "█") && !strings.Contains(bar, "░") {
		t.Error("Expected progress bar to contain progress characters")
	}
}

func TestRenderProgressBarZeroTotal(t *testing.T) {
	if bar := renderProgressBar(0, 0, 20); bar != "" {
		t.Errorf("Expected empty string for zero total, got: %s", bar)
	}
}

func TestRenderProgressBarFull(t *testing.T) {
	bar := renderProgressBar(100, 100, 20)

	expectedFilled := 20
	actualFilled := strings.Count(bar, "█")

	if actualFilled < expectedFilled {
		t.Errorf("Expected %d filled chars, got %d", expectedFilled, actualFilled)
	}
}

func TestSimpleProgress(t *testing.T) {
	bar := SimpleProgress(25, 100, 40)

	if bar == "" {
		t.Error("Expected non-empty progress bar")
	}

	filled := strings.Count(bar, "█")
	empty := strings.Count(bar, "░")

	if filled == 0 {
		t.Error("Expected some filled characters")
	}
	if empty == 0 {
		t.Error("Expected some empty characters")
	}
	if filled < 8 || filled > 12 {
		t.Errorf("Expected approximately 10 filled chars, got %d", filled)
	}
}

func TestMultipleTasksAllRenderAndSortDeterministically(t *testing.T) {
	tracker := NewProgressTracker(80)

	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		tracker.HandleCreate(events.TaskCreatePayload{ChapterUUID: id, ChapterName: "Chapter " + id})
		tracker.HandleUpdate(events.TaskUpdatePayload{ChapterUUID: id, Status: events.TaskDownloading})
	}

	if len(tracker.tasks) != 3 {
		t.Errorf("Expected 3 tasks, got %d", len(tracker.tasks))
	}

	view := tracker.View()
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		if !strings.Contains(view, "Chapter "+id) {
			t.Errorf("Expected 'Chapter %s' in view", id)
		}
	}

	ia, ib, ic := strings.Index(view, "Chapter a"), strings.Index(view, "Chapter b"), strings.Index(view, "Chapter c")
	if !(ia < ib && ib < ic) {
		t.Errorf("Expected tasks ordered by chapter UUID a, b, c; got offsets %d, %d, %d", ia, ib, ic)
	}
}
