package engine

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mangavault/core/pkg/apperr"
	"github.com/mangavault/core/pkg/events"
	"github.com/mangavault/core/pkg/library"
	"github.com/mangavault/core/pkg/remoteclient"
)

// manifestMaxAttempts bounds the generic-error retry loop in runSupervisor's
// chapter-manifest fetch (spec §4.6).
const manifestMaxAttempts = 5

// registerRiskCooldown is the visible countdown shown while the origin is
// throttling account creation itself (spec §4.6).
const registerRiskCooldown = 60 * time.Second

// runSupervisor drives one chapter task end to end: persist comic metadata,
// acquire a chapter permit, fetch the manifest with risk-control-aware
// retry, fan out image workers, then publish or fail (spec §4.5).
func (e *Engine) runSupervisor(task *Task) {
	startCfg := e.cfg.Get()
	if err := library.SaveMetadata(startCfg.DownloadDir, task.Comic); err != nil {
		slog.Warn("comic metadata not persisted", "comic", task.Comic.Comic.Name, "error", err)
	}

	slot := newChapterSlot(e)
	if !e.acquireChapterPermit(task, slot) {
		return
	}
	defer slot.release()

	// watchChapterPause keeps the slot released for the rest of the task's
	// life whenever it's Paused, independent of whatever runSupervisor is
	// doing at the time — a manifest fetch or an image wait can be
	// mid-flight when Pause arrives. watchCtx is cancelled as soon as this
	// function starts returning, so the watcher never outlives it.
	watchCtx, cancelWatch := context.WithCancel(task.ctx)
	defer cancelWatch()
	go e.watchChapterPause(task, slot, watchCtx)

	if task.state.Get() == events.TaskCancelled {
		return
	}
	task.state.Set(events.TaskDownloading)
	e.emitUpdate(task, events.TaskDownloading, "")

	manifest, err := e.fetchManifestWithRetry(task)
	if err != nil {
		e.failTask(task, err)
		return
	}

	atomic.StoreInt64(&task.total, int64(len(manifest.Contents)))
	if len(manifest.Contents) == 0 {
		e.publishChapter(task)
		return
	}

	cfg := e.cfg.Get()
	_, tempDir := chapterDirs(cfg, task)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		e.failTask(task, err)
		return
	}
	if err := purgeStaleDownloads(tempDir, cfg.DownloadFormat.Extension()); err != nil {
		e.failTask(task, err)
		return
	}
	if err := library.SaveChapterMetadata(tempDir, task.Chapter); err != nil {
		slog.Warn("chapter metadata not persisted", "chapterUuid", task.ChapterUUID, "error", err)
	}

	group, groupCtx := errgroup.WithContext(task.ctx)
	for i, url := range manifest.Contents {
		pageIndex, imageURL := manifest.Words[i], url
		group.Go(func() error {
			e.runImageWorker(groupCtx, task, tempDir, pageIndex, imageURL, cfg)
			return nil
		})
	}
	_ = group.Wait()

	if task.state.Get() == events.TaskCancelled {
		return
	}
	if task.Downloaded() < task.Total() {
		e.failTask(task, nil)
		return
	}
	e.publishChapter(task)
}

// chapterSlot tracks whether a task currently holds a chapter-level
// semaphore slot. Both runSupervisor's initial acquisition and the
// background pause watcher operate on the same slot, so acquire/release
// are idempotent and mutex-guarded rather than raw channel sends.
type chapterSlot struct {
	e    *Engine
	mu   sync.Mutex
	held bool
}

func newChapterSlot(e *Engine) *chapterSlot {
	return &chapterSlot{e: e}
}

// acquire blocks until the slot is held or ctx is done. A no-op if already
// held.
func (s *chapterSlot) acquire(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held {
		return true
	}
	select {
	case s.e.chapterSem <- struct{}{}:
		s.held = true
		return true
	case <-ctx.Done():
		return false
	}
}

// release gives the slot back if held. A no-op otherwise.
func (s *chapterSlot) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held {
		<-s.e.chapterSem
		s.held = false
	}
}

// acquireChapterPermit performs the initial slot acquisition, observing
// Pause the same way acquireImagePermit does for image slots: a slot taken
// while a task is already Paused is immediately given back and the call
// waits for the next state change before trying again (spec §4.5).
func (e *Engine) acquireChapterPermit(task *Task, slot *chapterSlot) bool {
	for {
		if !slot.acquire(task.ctx) {
			return false
		}
		if task.state.Get() != events.TaskPaused {
			return true
		}
		slot.release()
		select {
		case <-task.state.Wait():
		case <-task.ctx.Done():
			return false
		}
	}
}

// watchChapterPause keeps slot's held state in sync with task's lifecycle
// for as long as ctx is alive: released while Paused, reacquired once the
// task leaves Paused, so a paused chapter frees its slot for other tasks
// regardless of which step the main supervisor flow is blocked on (spec
// §4.5).
func (e *Engine) watchChapterPause(task *Task, slot *chapterSlot, ctx context.Context) {
	for {
		switch task.state.Get() {
		case events.TaskPaused:
			slot.release()
		case events.TaskCancelled:
			return
		default:
			if !slot.acquire(ctx) {
				return
			}
		}
		select {
		case <-task.state.Wait():
		case <-ctx.Done():
			return
		}
	}
}

// purgeStaleDownloads removes every file in dir whose extension does not
// match targetExt, clearing out pages left over from a prior attempt at a
// different download_format so a resumed chapter never publishes a mixed-
// extension directory (spec §4.5 step 6).
func purgeStaleDownloads(dir, targetExt string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read temp dir %q: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == library.ChapterMetadataFilename {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if ext == targetExt {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove stale download %q: %w", name, err)
		}
	}
	return nil
}

// fetchManifestWithRetry implements spec §4.6's retry policy: generic
// errors get up to manifestMaxAttempts tries with a random 1-5s backoff;
// risk control tagged Register gets a visible 60s countdown and restarts
// the loop without consuming an attempt; risk control against the current
// disposable account (already marked limited by the remote client) simply
// moves on to the next attempt, which selects a different account.
func (e *Engine) fetchManifestWithRetry(task *Task) (remoteclient.ChapterManifest, error) {
	var lastErr error
	for attempt := 1; attempt <= manifestMaxAttempts; attempt++ {
		if task.ctx.Err() != nil {
			return remoteclient.ChapterManifest{}, task.ctx.Err()
		}

		manifest, err := e.client.GetChapter(task.ctx, task.Comic.Comic.PathWord, task.ChapterUUID)
		if err == nil {
			return manifest, nil
		}
		lastErr = err

		if rc, ok := apperr.AsRiskControl(err); ok {
			if rc.Op == apperr.OpRegister {
				if !e.runRegisterRiskCountdown(task) {
					return remoteclient.ChapterManifest{}, task.ctx.Err()
				}
				attempt--
				continue
			}
			continue
		}

		if attempt == manifestMaxAttempts {
			break
		}
		if !e.sleepJittered(task.ctx, 1000, 5000) {
			return remoteclient.ChapterManifest{}, task.ctx.Err()
		}
	}
	return remoteclient.ChapterManifest{}, lastErr
}

// runRegisterRiskCountdown emits one DownloadControlRisk event per second
// counting down from 59 to 0, then returns true so the caller retries from
// the top. It returns false if the task was cancelled mid-countdown.
func (e *Engine) runRegisterRiskCountdown(task *Task) bool {
	ticker := time.NewTicker(e.countdownTick)
	defer ticker.Stop()

	episodeID := uuid.NewString()
	remaining := int(e.registerCooldown / e.countdownTick)
	for remaining > 0 {
		remaining--
		e.bus.Publish(events.KindDownloadControlRisk, events.ControlRiskPayload{
			ChapterUUID:     task.ChapterUUID,
			Op:              string(apperr.OpRegister),
			CountdownSecond: remaining,
			EpisodeID:       episodeID,
		})
		select {
		case <-ticker.C:
		case <-task.ctx.Done():
			return false
		}
	}
	return true
}

func (e *Engine) sleepJittered(ctx context.Context, minMS, maxMS int64) bool {
	n, err := rand.Int(rand.Reader, big.NewInt(maxMS-minMS+1))
	delay := time.Duration(minMS) * time.Millisecond
	if err == nil {
		delay = time.Duration(minMS+n.Int64()) * time.Millisecond
	}
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) failTask(task *Task, err error) {
	reason := "images incomplete"
	if err != nil {
		reason = apperr.Chain(err)
		slog.Error("chapter download failed", "chapterUuid", task.ChapterUUID, "error", err)
	}
	task.state.Set(events.TaskFailed)
	e.emitUpdate(task, events.TaskFailed, reason)
}

// publishChapter atomically renames the chapter's temp directory to its
// published name, committing the download (spec §3, §4.5).
func (e *Engine) publishChapter(task *Task) {
	cfg := e.cfg.Get()
	published, temp := chapterDirs(cfg, task)

	if _, err := os.Stat(temp); err != nil {
		if os.IsNotExist(err) {
			// Empty chapter: publish an empty directory directly.
			if mkErr := os.MkdirAll(published, 0o755); mkErr != nil {
				e.failTask(task, mkErr)
				return
			}
		} else {
			e.failTask(task, err)
			return
		}
	} else if err := os.Rename(temp, published); err != nil {
		e.failTask(task, err)
		return
	}

	task.state.Set(events.TaskCompleted)
	e.emitUpdate(task, events.TaskCompleted, "")
}
