package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangavault/core/pkg/comic"
	"github.com/mangavault/core/pkg/config"
	"github.com/mangavault/core/pkg/engine"
	"github.com/mangavault/core/pkg/events"
	"github.com/mangavault/core/pkg/library"
)

type fakeFetcher struct {
	mu      sync.Mutex
	byComic map[string]comic.Comic
	errFor  map[string]error
	calls   []string
}

func (f *fakeFetcher) GetFullComic(ctx context.Context, comicPathWord string) (comic.Comic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, comicPathWord)
	if err, ok := f.errFor[comicPathWord]; ok {
		return comic.Comic{}, err
	}
	return f.byComic[comicPathWord], nil
}

type fakeCreator struct {
	mu           sync.Mutex
	created      []string
	returnErrFor map[string]error
}

func (f *fakeCreator) CreateDownloadTask(ctx context.Context, c comic.Comic, chapterUUID string) (*engine.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.returnErrFor[chapterUUID]; ok {
		return nil, err
	}
	f.created = append(f.created, chapterUUID)
	return &engine.Task{ChapterUUID: chapterUUID}, nil
}

func chapterFixture(uuid, title string, order int64, groupName, groupPathWord string) comic.ChapterInfo {
	sanitized := comic.SanitizeFilename(title)
	return comic.ChapterInfo{
		ChapterUUID:          uuid,
		ChapterTitle:         sanitized,
		PrefixedChapterTitle: comic.PrefixedChapterTitle(comic.Order(order), sanitized),
		ComicPathWord:        "demo",
		GroupPathWord:        groupPathWord,
		GroupName:            groupName,
	}
}

func newTestUpdater(t *testing.T, fetcher *fakeFetcher, creator *fakeCreator) (*Updater, config.Config, *events.Bus) {
	t.Helper()
	dir := t.TempDir()
	store, err := config.Load(dir)
	require.NoError(t, err)
	cfg := store.Get()
	cfg.DownloadDir = filepath.Join(dir, "library")
	cfg.UpdateDownloadedComicsIntervalSec = 1
	require.NoError(t, store.Save(cfg))

	bus := events.New()
	u := New(store, fetcher, creator, bus)
	u.taskSpacing = time.Millisecond
	return u, store.Get(), bus
}

func TestUpdateDownloadedComicsEnqueuesOnlyMissingChaptersInDownloadedGroups(t *testing.T) {
	c1 := chapterFixture("c1", "Ch 1", 10, "default", "default")
	c2 := chapterFixture("c2", "Ch 2", 20, "default", "default")

	fresh := comic.Comic{
		Comic: comic.ComicDetail{
			Name:     "demo",
			PathWord: "demo",
			Groups: map[string][]comic.ChapterInfo{
				"default": {c1, c2},
			},
		},
	}

	fetcher := &fakeFetcher{byComic: map[string]comic.Comic{"demo": fresh}}
	creator := &fakeCreator{}
	u, cfg, bus := newTestUpdater(t, fetcher, creator)

	received := make([]events.Event, 0)
	ch, unsubscribe := bus.Subscribe(32)
	defer unsubscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for evt := range ch {
			received = append(received, evt)
		}
	}()

	chapterDir := library.ChapterDir(cfg.DownloadDir, "demo", "default", c1.PrefixedChapterTitle)
	require.NoError(t, os.MkdirAll(chapterDir, 0o755))

	u.scan = func(downloadRoot string) ([]comic.Comic, error) {
		return []comic.Comic{{Comic: comic.ComicDetail{Name: "demo", PathWord: "demo"}}}, nil
	}

	require.NoError(t, u.UpdateDownloadedComics(context.Background()))
	unsubscribe()
	wg.Wait()

	assert.Equal(t, []string{"c2"}, creator.created)
	assert.Equal(t, []string{"demo"}, fetcher.calls)

	var phases []string
	for _, evt := range received {
		payload := evt.Payload.(events.UpdateDownloadedComicsPayload)
		phases = append(phases, string(payload.Phase))
	}
	assert.Contains(t, phases, "GetComicStart")
	assert.Contains(t, phases, "GetComicProgress")
	assert.Contains(t, phases, "CreateDownloadTasksStart")
	assert.Contains(t, phases, "CreateDownloadTasksEnd")
	assert.Contains(t, phases, "GetComicEnd")
}

func TestUpdateDownloadedComicsSkipsComicWithNoDownloadedGroups(t *testing.T) {
	fresh := comic.Comic{
		Comic: comic.ComicDetail{
			Name:     "demo",
			PathWord: "demo",
			Groups: map[string][]comic.ChapterInfo{
				"default": {chapterFixture("c1", "Ch 1", 10, "default", "default")},
			},
		},
	}
	fetcher := &fakeFetcher{byComic: map[string]comic.Comic{"demo": fresh}}
	creator := &fakeCreator{}
	u, _, _ := newTestUpdater(t, fetcher, creator)
	u.scan = func(downloadRoot string) ([]comic.Comic, error) {
		return []comic.Comic{{Comic: comic.ComicDetail{Name: "demo", PathWord: "demo"}}}, nil
	}

	require.NoError(t, u.UpdateDownloadedComics(context.Background()))
	assert.Empty(t, creator.created)
}

func TestUpdateDownloadedComicsContinuesPastAFailedFetch(t *testing.T) {
	c0 := chapterFixture("c0", "Ch 0", 5, "default", "default")
	fresh := comic.Comic{
		Comic: comic.ComicDetail{
			Name:     "second",
			PathWord: "second",
			Groups: map[string][]comic.ChapterInfo{
				"default": {c0, chapterFixture("c1", "Ch 1", 10, "default", "default")},
			},
		},
	}
	fetcher := &fakeFetcher{
		byComic: map[string]comic.Comic{"second": fresh},
		errFor:  map[string]error{"first": errors.New("rate limited")},
	}
	creator := &fakeCreator{}
	u, cfg, _ := newTestUpdater(t, fetcher, creator)
	// c0 is already on disk, so "second" has a downloaded group and its
	// missing chapter c1 is eligible for enqueueing.
	require.NoError(t, os.MkdirAll(library.ChapterDir(cfg.DownloadDir, "second", "default", c0.PrefixedChapterTitle), 0o755))
	u.scan = func(downloadRoot string) ([]comic.Comic, error) {
		return []comic.Comic{
			{Comic: comic.ComicDetail{Name: "first", PathWord: "first"}},
			{Comic: comic.ComicDetail{Name: "second", PathWord: "second"}},
		}, nil
	}

	require.NoError(t, u.UpdateDownloadedComics(context.Background()))
	assert.ElementsMatch(t, []string{"first", "second"}, fetcher.calls)
	assert.Equal(t, []string{"c1"}, creator.created)
	_ = cfg
}
