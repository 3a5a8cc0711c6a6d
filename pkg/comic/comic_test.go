package comic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilenameSubstitutesReservedCharacters(t *testing.T) {
	assert.Equal(t, "a b：c⭐d？e'f《g》h丨i", SanitizeFilename(`a\b:c*d?e"f<g>h|i`))
}

func TestSanitizeFilenameTrimsWhitespace(t *testing.T) {
	assert.Equal(t, "Title", SanitizeFilename("  Title  "))
}

func TestDisambiguateChapterTitlesLeavesUniqueTitlesAlone(t *testing.T) {
	out := DisambiguateChapterTitles([]string{"Ch 1", "Ch 2", "Ch 3"})
	assert.Equal(t, []string{"Ch 1", "Ch 2", "Ch 3"}, out)
}

func TestDisambiguateChapterTitlesSuffixesCollisionsDescending(t *testing.T) {
	out := DisambiguateChapterTitles([]string{"番外", "番外"})
	assert.Equal(t, []string{"番外-2", "番外-1"}, out)
}

func TestDisambiguateChapterTitlesHandlesTripleCollision(t *testing.T) {
	out := DisambiguateChapterTitles([]string{"特别篇", "Ch 1", "特别篇", "特别篇"})
	assert.Equal(t, []string{"特别篇-3", "Ch 1", "特别篇-2", "特别篇-1"}, out)
}

func TestOrderDerivesFromRemoteOrdered(t *testing.T) {
	assert.InDelta(t, 1.0, Order(10), 1e-9)
	assert.InDelta(t, 2.5, Order(25), 1e-9)
}

func TestPrefixedChapterTitleOmitsTrailingZeroForIntegralOrder(t *testing.T) {
	assert.Equal(t, "1 Ch 1", PrefixedChapterTitle(Order(10), "Ch 1"))
}

func TestPrefixedChapterTitleKeepsFractionForNonIntegralOrder(t *testing.T) {
	assert.Equal(t, "2.5 Ch 2.5", PrefixedChapterTitle(Order(25), "Ch 2.5"))
}

func TestComicStatusFromValue(t *testing.T) {
	assert.Equal(t, StatusOngoing, ComicStatusFromValue(0))
	assert.Equal(t, StatusCompleted, ComicStatusFromValue(1))
}

func TestForMetadataClearsIsDownloaded(t *testing.T) {
	downloaded := true
	ch := ChapterInfo{ChapterTitle: "Ch 1", IsDownloaded: &downloaded}

	meta := ch.ForMetadata()

	assert.Nil(t, meta.IsDownloaded)
	assert.True(t, *ch.IsDownloaded, "original value must be untouched")
}

func TestDownloadedGroupPathsOnlyIncludesGroupsWithADownloadedChapter(t *testing.T) {
	yes, no := true, false
	c := Comic{
		Comic: ComicDetail{
			Groups: map[string][]ChapterInfo{
				"default": {{IsDownloaded: &yes}, {IsDownloaded: &no}},
				"extra":   {{IsDownloaded: &no}},
				"special": {{IsDownloaded: nil}},
			},
		},
	}

	paths := c.DownloadedGroupPaths()

	assert.ElementsMatch(t, []string{"default"}, paths)
}
