package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/mangavault/core/pkg/config"
	"github.com/mangavault/core/pkg/events"
	"github.com/mangavault/core/pkg/remoteclient"
)

// runImageWorker implements spec §4.7's per-image worker. pageIndex is the
// manifest's words[i] value, the page's true position, not its offset in
// contents[] — the two diverge whenever the origin reorders pages. It never
// mutates task state and never fails the errgroup on an ordinary error: the
// parent supervisor detects an underrun by comparing Downloaded against
// Total once every worker has returned.
func (e *Engine) runImageWorker(ctx context.Context, task *Task, tempDir string, pageIndex int, imageURL string, cfg config.Config) {
	ext := cfg.DownloadFormat.Extension()
	savePath := filepath.Join(tempDir, imageFilename(pageIndex, ext))

	if info, err := os.Stat(savePath); err == nil && !info.IsDir() {
		e.markImageDone(task)
		return
	}

	if !e.acquireImagePermit(ctx, task) {
		return
	}
	defer func() { <-e.imageSem }()

	format := targetImageFormat(cfg)
	data, err := e.client.GetImage(ctx, imageURL, format)
	if err != nil {
		slog.Error("image fetch failed", "chapterUuid", task.ChapterUUID, "pageIndex", pageIndex, "error", err)
		return
	}

	if err := os.WriteFile(savePath, data, 0o644); err != nil {
		slog.Error("image write failed", "chapterUuid", task.ChapterUUID, "pageIndex", pageIndex, "error", err)
		return
	}

	atomic.AddInt64(&e.byteCounter, int64(len(data)))
	e.markImageDone(task)
}

func (e *Engine) markImageDone(task *Task) {
	atomic.AddInt64(&task.downloaded, 1)
	e.emitUpdate(task, task.state.Get(), "")
}

// acquireImagePermit acquires an image permit, releasing and re-acquiring
// it across any Paused interval so a paused chapter doesn't hold permits
// other chapters need (spec §5). It returns false if the task's context is
// cancelled before a permit could be used.
func (e *Engine) acquireImagePermit(ctx context.Context, task *Task) bool {
	for {
		select {
		case e.imageSem <- struct{}{}:
		case <-ctx.Done():
			return false
		}

		if task.state.Get() != events.TaskPaused {
			return true
		}

		<-e.imageSem
		select {
		case <-task.state.Wait():
		case <-ctx.Done():
			return false
		}
	}
}

func targetImageFormat(cfg config.Config) remoteclient.ImageFormat {
	if cfg.DownloadFormat == config.FormatJpeg {
		return remoteclient.ImageJpeg
	}
	return remoteclient.ImageWebp
}
