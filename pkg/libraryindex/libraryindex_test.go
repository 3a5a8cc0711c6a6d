package libraryindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangavault/core/pkg/comic"
)

func boolPtr(b bool) *bool { return &b }

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "library.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func sampleComics() []comic.Comic {
	return []comic.Comic{
		{
			Comic: comic.ComicDetail{
				Name:     "Demo Comic",
				PathWord: "demo",
				Status:   comic.LabeledValue{Display: "Ongoing"},
				Groups: map[string][]comic.ChapterInfo{
					"default": {
						{ChapterUUID: "c1", PrefixedChapterTitle: "1 Ch 1", IsDownloaded: boolPtr(true)},
						{ChapterUUID: "c2", PrefixedChapterTitle: "2 Ch 2", IsDownloaded: boolPtr(false)},
					},
				},
			},
			ComicDownloadDir: "/L/Demo Comic",
		},
		{
			Comic: comic.ComicDetail{
				Name:     "Another Story",
				PathWord: "another",
				Status:   comic.LabeledValue{Display: "Completed"},
			},
			ComicDownloadDir: "/L/Another Story",
		},
	}
}

func TestRebuildThenFindByPathWord(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Rebuild(context.Background(), sampleComics()))

	rec, ok, err := idx.FindByPathWord(context.Background(), "demo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Demo Comic", rec.Name)
	assert.Equal(t, "/L/Demo Comic", rec.ComicDir)
}

func TestFindByPathWordMissReturnsFalseNotError(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Rebuild(context.Background(), sampleComics()))

	_, ok, err := idx.FindByPathWord(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchIsCaseInsensitiveSubstringMatch(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Rebuild(context.Background(), sampleComics()))

	results, err := idx.Search(context.Background(), "demo")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "demo", results[0].PathWord)
}

func TestRebuildReplacesPriorContentsEntirely(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Rebuild(context.Background(), sampleComics()))
	require.NoError(t, idx.Rebuild(context.Background(), sampleComics()[:1]))

	_, ok, err := idx.FindByPathWord(context.Background(), "another")
	require.NoError(t, err)
	assert.False(t, ok, "second rebuild must drop comics absent from the new scan")
}

func TestDownloadedChapterCountCountsOnlyDownloadedChapters(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Rebuild(context.Background(), sampleComics()))

	count, err := idx.DownloadedChapterCount(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
