// Package comic holds the domain model persisted as metadata.json: Comic,
// ChapterInfo, Group and the sanitization/ordering rules that derive them
// from remote API responses.
package comic

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is a comic's serialization state.
type Status string

const (
	StatusOngoing   Status = "Ongoing"
	StatusCompleted Status = "Completed"
)

// LabeledValue pairs a remote enum's numeric value with its display text.
type LabeledValue struct {
	Value   int64  `json:"value"`
	Display string `json:"display"`
}

// Author is a comic's credited author.
type Author struct {
	Name     string `json:"name"`
	Alias    string `json:"alias,omitempty"`
	PathWord string `json:"pathWord"`
}

// Theme is a comic's tag/genre.
type Theme struct {
	Name     string `json:"name"`
	PathWord string `json:"pathWord"`
}

// LastChapter identifies a comic's most recently published chapter.
type LastChapter struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Group is a scanlation group publishing some of a comic's chapters.
type Group struct {
	PathWord string `json:"pathWord"`
	Count    uint32 `json:"count"`
	Name     string `json:"name"`
}

// ChapterInfo is one chapter's metadata, both the in-memory record and the
// shape persisted to chapter-metadata.json (with IsDownloaded omitted).
type ChapterInfo struct {
	ChapterUUID         string  `json:"chapterUuid"`
	ChapterTitle        string  `json:"chapterTitle"`
	PrefixedChapterTitle string `json:"prefixedChapterTitle"`
	ChapterSize         int64   `json:"chapterSize"`
	ComicUUID           string  `json:"comicUuid"`
	ComicTitle          string  `json:"comicTitle"`
	ComicPathWord       string  `json:"comicPathWord"`
	GroupPathWord       string  `json:"groupPathWord"`
	GroupName           string  `json:"groupName"`
	GroupSize           int64   `json:"groupSize"`
	Order               float64 `json:"order"`
	ComicStatus         Status  `json:"comicStatus"`
	IsDownloaded        *bool   `json:"isDownloaded,omitempty"`
}

// ForMetadata returns a copy with IsDownloaded cleared, the shape written to
// chapter-metadata.json, so a stale on-disk boolean never shadows the
// recomputed one.
func (c ChapterInfo) ForMetadata() ChapterInfo {
	c.IsDownloaded = nil
	return c
}

// ComicDetail is the full remote-derived comic record.
type ComicDetail struct {
	UUID           string                   `json:"uuid"`
	B404           bool                     `json:"b404"`
	BHidden        bool                     `json:"bHidden"`
	Ban            int64                    `json:"ban"`
	BanIP          *bool                    `json:"banIp,omitempty"`
	Name           string                   `json:"name"`
	Alias          string                   `json:"alias,omitempty"`
	PathWord       string                   `json:"pathWord"`
	CloseComment   bool                     `json:"closeComment"`
	CloseRoast     bool                     `json:"closeRoast"`
	FreeType       LabeledValue             `json:"freeType"`
	Restrict       LabeledValue             `json:"restrict"`
	Reclass        LabeledValue             `json:"reclass"`
	SeoBaidu       string                   `json:"seoBaidu,omitempty"`
	Region         LabeledValue             `json:"region"`
	Status         LabeledValue             `json:"status"`
	Author         []Author                 `json:"author"`
	Theme          []Theme                 `json:"theme"`
	Brief          string                   `json:"brief"`
	DatetimeUpdated string                  `json:"datetimeUpdated"`
	Cover          string                   `json:"cover"`
	LastChapter    LastChapter              `json:"lastChapter"`
	Popular        int64                    `json:"popular"`
	Groups         map[string][]ChapterInfo `json:"groups"`
}

// Comic is the root aggregate persisted as metadata.json.
type Comic struct {
	IsBanned     bool             `json:"isBanned"`
	IsLock       bool             `json:"isLock"`
	IsLogin      bool             `json:"isLogin"`
	IsMobileBind bool             `json:"isMobileBind"`
	IsVIP        bool             `json:"isVip"`
	Comic        ComicDetail      `json:"comic"`
	Popular      int64            `json:"popular"`
	Groups       map[string]Group `json:"groups"`

	// ComicDownloadDir is runtime-only: populated when a Comic is loaded
	// from an on-disk metadata.json, never serialized.
	ComicDownloadDir string `json:"-"`
}

// ComicStatusFromValue maps the remote status enum's 0/non-zero convention
// onto Status (status.value == 0 means Ongoing).
func ComicStatusFromValue(value int64) Status {
	if value == 0 {
		return StatusOngoing
	}
	return StatusCompleted
}

// DownloadedGroupPaths returns the path_word of every group that has at
// least one downloaded chapter, used by the Library Updater to decide which
// groups to re-check for new chapters (spec §4.8 step 2).
func (c Comic) DownloadedGroupPaths() []string {
	var paths []string
	for pathWord, chapters := range c.Comic.Groups {
		for _, ch := range chapters {
			if ch.IsDownloaded != nil && *ch.IsDownloaded {
				paths = append(paths, pathWord)
				break
			}
		}
	}
	return paths
}

var filenameSubstitutions = map[rune]rune{
	'\\': ' ',
	'/':  ' ',
	':':  '：',
	'*':  '⭐',
	'?':  '？',
	'"':  '\'',
	'<':  '《',
	'>':  '》',
	'|':  '丨',
}

// SanitizeFilename applies the character-substitution table and trims the
// result, the on-disk-safe rendering of any remote-supplied title (comic
// name, group name, chapter title).
func SanitizeFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := filenameSubstitutions[r]; ok {
			b.WriteRune(repl)
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// DisambiguateChapterTitles returns a new slice holding each title
// sanitized, leaving titles itself untouched, and appends a
// descending "-N" suffix to titles that collide within the slice, counting
// down from the total collision count while preserving traversal order
// (spec §3/§4.3).
func DisambiguateChapterTitles(titles []string) []string {
	out := make([]string, len(titles))
	counts := make(map[string]int)
	for i, t := range titles {
		out[i] = SanitizeFilename(t)
		counts[out[i]]++
	}
	for name, n := range counts {
		if n <= 1 {
			delete(counts, name)
		}
	}
	for i, name := range out {
		n, collides := counts[name]
		if !collides {
			continue
		}
		out[i] = fmt.Sprintf("%s-%d", name, n)
		counts[name] = n - 1
	}
	return out
}

// Order derives a chapter's order field from the remote "ordered" value
// (spec §3: order = remote.ordered / 10).
func Order(remoteOrdered int64) float64 {
	return float64(remoteOrdered) / 10
}

// PrefixedChapterTitle builds the on-disk directory name for a chapter:
// "<order> <sanitized title>", formatting an integral order without a
// trailing ".0".
func PrefixedChapterTitle(order float64, sanitizedTitle string) string {
	return formatOrder(order) + " " + sanitizedTitle
}

func formatOrder(order float64) string {
	if order == float64(int64(order)) {
		return strconv.FormatInt(int64(order), 10)
	}
	return strconv.FormatFloat(order, 'f', -1, 64)
}
