// Package engine is the concurrent chapter download scheduler (spec §4.4):
// a multi-level scheduler owning a chapter-level and an image-level
// semaphore, a map of active tasks keyed by chapter uuid, a byte counter
// feeding once-a-second speed telemetry, and one supervisor goroutine per
// chapter task, with a task-lifecycle state machine covering pause/resume/
// cancel and risk-control-aware retry.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mangavault/core/pkg/apperr"
	"github.com/mangavault/core/pkg/comic"
	"github.com/mangavault/core/pkg/config"
	"github.com/mangavault/core/pkg/events"
	"github.com/mangavault/core/pkg/library"
	"github.com/mangavault/core/pkg/remoteclient"
)

// chapterConcurrency and imageConcurrency are the two permit pools spec §5
// names: 3 concurrent chapter manifests/fan-outs, 30 concurrent image
// fetches across all chapters.
const (
	chapterConcurrency = 3
	imageConcurrency   = 30
)

// RemoteClient is the subset of remoteclient.Client the engine consumes.
type RemoteClient interface {
	GetChapter(ctx context.Context, comicPathWord, chapterUUID string) (remoteclient.ChapterManifest, error)
	GetImage(ctx context.Context, imageURL string, target remoteclient.ImageFormat) ([]byte, error)
}

// Task is one chapter's download state: an immutable comic/chapter
// snapshot, a latest-wins state box shared by the supervisor and every
// image worker, and progress counters.
type Task struct {
	ChapterUUID string
	Comic       comic.Comic
	Chapter     comic.ChapterInfo

	state      *stateBox
	downloaded int64
	total      int64

	ctx    context.Context
	cancel context.CancelFunc
}

func (t *Task) Status() events.TaskStatus { return t.state.Get() }
func (t *Task) Downloaded() int           { return int(atomic.LoadInt64(&t.downloaded)) }
func (t *Task) Total() int                { return int(atomic.LoadInt64(&t.total)) }

func (t *Task) active() bool {
	switch t.state.Get() {
	case events.TaskPending, events.TaskDownloading, events.TaskPaused:
		return true
	default:
		return false
	}
}

// Engine is the download scheduler. The zero value is not usable; build
// one with New.
type Engine struct {
	cfg    *config.Store
	client RemoteClient
	bus    *events.Bus

	chapterSem chan struct{}
	imageSem   chan struct{}

	byteCounter int64

	mu    sync.Mutex
	tasks map[string]*Task

	stopTelemetry chan struct{}

	// registerCooldown and countdownTick are broken out as fields (rather
	// than constants) purely so tests can shrink the register-risk
	// countdown from its real-world 60s/1s to something a test suite can
	// run in milliseconds.
	registerCooldown time.Duration
	countdownTick    time.Duration
}

// New builds an Engine and starts its once-a-second byte-counter
// telemetry loop (spec §4.4's byte_counter reset-and-emit cadence).
func New(cfg *config.Store, client RemoteClient, bus *events.Bus) *Engine {
	e := &Engine{
		cfg:           cfg,
		client:        client,
		bus:           bus,
		chapterSem:    make(chan struct{}, chapterConcurrency),
		imageSem:      make(chan struct{}, imageConcurrency),
		tasks:         make(map[string]*Task),
		stopTelemetry: make(chan struct{}),

		registerCooldown: registerRiskCooldown,
		countdownTick:    time.Second,
	}
	go e.runTelemetry()
	return e
}

// Close stops the telemetry loop. It does not cancel in-flight tasks.
func (e *Engine) Close() {
	close(e.stopTelemetry)
}

func (e *Engine) runTelemetry() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n := atomic.SwapInt64(&e.byteCounter, 0)
			e.bus.Publish(events.KindDownloadSpeed, events.SpeedPayload{BytesPerSecond: n})
		case <-e.stopTelemetry:
			return
		}
	}
}

// CreateDownloadTask creates and spawns a supervisor for chapterUUID within
// c. It fails if an active task (Pending/Downloading/Paused) already exists
// for that chapter (spec §4.4 step 1).
func (e *Engine) CreateDownloadTask(ctx context.Context, c comic.Comic, chapterUUID string) (*Task, error) {
	chapter, ok := findChapter(c, chapterUUID)
	if !ok {
		return nil, &apperr.TaskLifecycleError{ChapterUUID: chapterUUID, Reason: "chapter not found in comic"}
	}

	e.mu.Lock()
	if existing, ok := e.tasks[chapterUUID]; ok && existing.active() {
		e.mu.Unlock()
		return nil, &apperr.TaskLifecycleError{ChapterUUID: chapterUUID, Reason: "task already exists"}
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	task := &Task{
		ChapterUUID: chapterUUID,
		Comic:       c,
		Chapter:     chapter,
		state:       newStateBox(events.TaskPending),
		ctx:         taskCtx,
		cancel:      cancel,
	}
	e.tasks[chapterUUID] = task
	e.mu.Unlock()

	e.bus.Publish(events.KindDownloadTaskCreate, events.TaskCreatePayload{
		ChapterUUID: chapterUUID,
		ComicName:   c.Comic.Name,
		GroupName:   chapter.GroupName,
		ChapterName: chapter.ChapterTitle,
	})
	e.emitUpdate(task, events.TaskPending, "")

	go e.runSupervisor(task)
	return task, nil
}

// PauseDownloadTask, ResumeDownloadTask and CancelDownloadTask push a new
// state onto an existing task's control channel (spec §4.4's control
// operations). They fail if no task exists for chapterUUID.
func (e *Engine) PauseDownloadTask(chapterUUID string) error {
	task, err := e.lookupTask(chapterUUID)
	if err != nil {
		return err
	}
	task.state.Set(events.TaskPaused)
	e.emitUpdate(task, events.TaskPaused, "")
	return nil
}

func (e *Engine) ResumeDownloadTask(chapterUUID string) error {
	task, err := e.lookupTask(chapterUUID)
	if err != nil {
		return err
	}
	task.state.Set(events.TaskDownloading)
	e.emitUpdate(task, events.TaskDownloading, "")
	return nil
}

func (e *Engine) CancelDownloadTask(chapterUUID string) error {
	task, err := e.lookupTask(chapterUUID)
	if err != nil {
		return err
	}
	task.state.Set(events.TaskCancelled)
	task.cancel()
	e.emitUpdate(task, events.TaskCancelled, "")
	return nil
}

// Task returns the current task for chapterUUID, if any.
func (e *Engine) Task(chapterUUID string) (*Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[chapterUUID]
	return task, ok
}

func (e *Engine) lookupTask(chapterUUID string) (*Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[chapterUUID]
	if !ok {
		return nil, &apperr.TaskLifecycleError{ChapterUUID: chapterUUID, Reason: "no such task"}
	}
	return task, nil
}

func (e *Engine) emitUpdate(task *Task, status events.TaskStatus, failureReason string) {
	e.bus.Publish(events.KindDownloadTaskUpdate, events.TaskUpdatePayload{
		ChapterUUID:   task.ChapterUUID,
		Status:        status,
		PagesDone:     task.Downloaded(),
		PagesTotal:    task.Total(),
		FailureReason: failureReason,
	})
}

func findChapter(c comic.Comic, chapterUUID string) (comic.ChapterInfo, bool) {
	for _, chapters := range c.Comic.Groups {
		for _, ch := range chapters {
			if ch.ChapterUUID == chapterUUID {
				return ch, true
			}
		}
	}
	return comic.ChapterInfo{}, false
}

// chapterDirs resolves the published and temp directories for a task.
func chapterDirs(cfg config.Config, task *Task) (published, temp string) {
	published = library.ChapterDir(cfg.DownloadDir, task.Comic.Comic.Name, task.Chapter.GroupName, task.Chapter.PrefixedChapterTitle)
	temp = library.TempChapterDir(cfg.DownloadDir, task.Comic.Comic.Name, task.Chapter.GroupName, task.Chapter.PrefixedChapterTitle)
	return published, temp
}

func imageFilename(index int, ext string) string {
	return fmt.Sprintf("%03d.%s", index+1, ext)
}
