// Package updater implements the Library Updater (spec §4.8): scan the
// downloaded library, and for each comic sequentially, fetch a fresh
// remote copy, recompute which of its chapters are now missing on disk,
// and hand those off to the download engine.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/mangavault/core/pkg/apperr"
	"github.com/mangavault/core/pkg/comic"
	"github.com/mangavault/core/pkg/config"
	"github.com/mangavault/core/pkg/engine"
	"github.com/mangavault/core/pkg/events"
	"github.com/mangavault/core/pkg/library"
)

// taskCreateSpacing paces successive create_download_task calls within one
// comic's refresh (spec §4.8 step 2's "sleep 100ms").
const taskCreateSpacing = 100 * time.Millisecond

// ComicFetcher is the subset of remoteclient.Client the updater consumes.
type ComicFetcher interface {
	GetFullComic(ctx context.Context, comicPathWord string) (comic.Comic, error)
}

// TaskCreator is the subset of engine.Engine the updater consumes.
type TaskCreator interface {
	CreateDownloadTask(ctx context.Context, c comic.Comic, chapterUUID string) (*engine.Task, error)
}

// Updater drives UpdateDownloadedComics. The zero value is not usable;
// build one with New.
type Updater struct {
	cfg    *config.Store
	remote ComicFetcher
	engine TaskCreator
	bus    *events.Bus

	// scan and taskSpacing are overridable so tests can substitute a fake
	// library scan and collapse the 100ms per-task pacing.
	scan        func(downloadRoot string) ([]comic.Comic, error)
	taskSpacing time.Duration
}

// New builds an Updater.
func New(cfg *config.Store, remote ComicFetcher, eng TaskCreator, bus *events.Bus) *Updater {
	return &Updater{
		cfg:         cfg,
		remote:      remote,
		engine:      eng,
		bus:         bus,
		scan:        library.Scan,
		taskSpacing: taskCreateSpacing,
	}
}

// UpdateDownloadedComics implements spec §4.8's algorithm end to end,
// pacing the per-comic refresh loop with a rate.Limiter rather than an
// unconditional sleep after each fetch: Wait accounts for time already
// spent inside refreshOne, so a slow fetch never compounds with the
// configured interval the way a bare time.Sleep would.
func (u *Updater) UpdateDownloadedComics(ctx context.Context) error {
	comics, err := u.scan(u.cfg.Get().DownloadDir)
	if err != nil {
		return fmt.Errorf("scan downloaded library: %w", err)
	}

	total := len(comics)
	u.bus.Publish(events.KindUpdateDownloadedComics, events.UpdateDownloadedComicsPayload{
		Phase: events.PhaseGetComicStart,
		Total: total,
	})

	interval := time.Duration(u.cfg.Get().UpdateDownloadedComicsIntervalSec) * time.Second
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	for i, c := range comics {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		u.bus.Publish(events.KindUpdateDownloadedComics, events.UpdateDownloadedComicsPayload{
			Phase:     events.PhaseGetComicProgress,
			ComicName: c.Comic.Name,
			Index:     i,
			Total:     total,
		})

		if err := u.refreshOne(ctx, c); err != nil {
			slog.Warn("library update skipped a comic", "comic", c.Comic.Name, "error", err)
		}
	}

	u.bus.Publish(events.KindUpdateDownloadedComics, events.UpdateDownloadedComicsPayload{Phase: events.PhaseGetComicEnd})
	return nil
}

// refreshOne fetches c's fresh remote state, recomputes which chapters of
// its already-downloaded groups are now missing, and enqueues a download
// task for each (spec §4.8 step 2).
func (u *Updater) refreshOne(ctx context.Context, c comic.Comic) error {
	fresh, err := u.remote.GetFullComic(ctx, c.Comic.PathWord)
	if err != nil {
		intervalSec := u.cfg.Get().UpdateDownloadedComicsIntervalSec
		return apperr.Frame(fmt.Sprintf(
			"fetch comic %q (origin may be rate-limiting; consider raising update_downloaded_comics_interval_sec, currently %ds)",
			c.Comic.PathWord, intervalSec), err)
	}

	library.RecomputeIsDownloaded(&fresh, u.cfg.Get().DownloadDir)

	downloadedGroups := make(map[string]bool)
	for _, pathWord := range fresh.DownloadedGroupPaths() {
		downloadedGroups[pathWord] = true
	}
	if len(downloadedGroups) == 0 {
		return nil
	}

	var missing []comic.ChapterInfo
	for groupPathWord, chapters := range fresh.Comic.Groups {
		if !downloadedGroups[groupPathWord] {
			continue
		}
		for _, ch := range chapters {
			if ch.IsDownloaded == nil || !*ch.IsDownloaded {
				missing = append(missing, ch)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}

	u.bus.Publish(events.KindUpdateDownloadedComics, events.UpdateDownloadedComicsPayload{
		Phase:     events.PhaseCreateDownloadTasksStart,
		ComicName: fresh.Comic.PathWord,
		Total:     len(missing),
	})

	var newTaskIDs []string
	for i, ch := range missing {
		if _, err := u.engine.CreateDownloadTask(ctx, fresh, ch.ChapterUUID); err == nil {
			newTaskIDs = append(newTaskIDs, ch.ChapterUUID)
		}
		u.bus.Publish(events.KindUpdateDownloadedComics, events.UpdateDownloadedComicsPayload{
			Phase:      events.PhaseCreateDownloadTasksStep,
			ComicName:  fresh.Comic.PathWord,
			Index:      i + 1,
			Total:      len(missing),
			NewTaskIDs: newTaskIDs,
		})

		if i == len(missing)-1 {
			break
		}
		select {
		case <-time.After(u.taskSpacing):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	u.bus.Publish(events.KindUpdateDownloadedComics, events.UpdateDownloadedComicsPayload{
		Phase:     events.PhaseCreateDownloadTasksEnd,
		ComicName: fresh.Comic.PathWord,
	})
	return nil
}
