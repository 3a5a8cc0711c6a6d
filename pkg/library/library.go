// Package library owns the on-disk layout under a download root: one
// directory per comic holding metadata.json, a subdirectory per group, and
// a published or ".downloading-"-prefixed directory per chapter (spec §3).
package library

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/mangavault/core/pkg/comic"
)

const metadataFilename = "metadata.json"

// ChapterMetadataFilename is the per-chapter sidecar written into a
// chapter's temp directory as soon as it is created, alongside the comic-
// wide metadata.json (spec §3, §6).
const ChapterMetadataFilename = "chapter-metadata.json"

// downloadingPrefix marks a chapter directory as an in-progress temp area,
// never observed by readers as complete (spec §3).
const downloadingPrefix = ".downloading-"

// ComicDir returns the directory a comic lives in under downloadRoot.
func ComicDir(downloadRoot string, comicTitle string) string {
	return filepath.Join(downloadRoot, comic.SanitizeFilename(comicTitle))
}

// GroupDir returns the directory a group's chapters live in.
func GroupDir(downloadRoot, comicTitle, groupName string) string {
	return filepath.Join(ComicDir(downloadRoot, comicTitle), comic.SanitizeFilename(groupName))
}

// ChapterDir returns the published chapter directory path.
func ChapterDir(downloadRoot, comicTitle, groupName, prefixedChapterTitle string) string {
	return filepath.Join(GroupDir(downloadRoot, comicTitle, groupName), prefixedChapterTitle)
}

// TempChapterDir returns the in-progress scratch directory a chapter's
// images are written to before being published via atomic rename.
func TempChapterDir(downloadRoot, comicTitle, groupName, prefixedChapterTitle string) string {
	return filepath.Join(GroupDir(downloadRoot, comicTitle, groupName), downloadingPrefix+prefixedChapterTitle)
}

// IsChapterDownloaded reports whether a chapter's published directory
// exists directly under its group directory (spec §4.3).
func IsChapterDownloaded(downloadRoot, comicTitle, groupName, prefixedChapterTitle string) bool {
	info, err := os.Stat(ChapterDir(downloadRoot, comicTitle, groupName, prefixedChapterTitle))
	return err == nil && info.IsDir()
}

// RecomputeIsDownloaded sets IsDownloaded on every chapter in c by checking
// directory existence, the step Comic::from_metadata performs right after
// deserializing (is_downloaded is never trusted from disk).
func RecomputeIsDownloaded(c *comic.Comic, downloadRoot string) {
	for groupPathWord, chapters := range c.Comic.Groups {
		for i := range chapters {
			ch := &chapters[i]
			downloaded := IsChapterDownloaded(downloadRoot, c.Comic.Name, ch.GroupName, ch.PrefixedChapterTitle)
			ch.IsDownloaded = &downloaded
		}
		c.Comic.Groups[groupPathWord] = chapters
	}
}

// SaveMetadata writes metadata.json for c under its comic directory,
// omitting every chapter's IsDownloaded field (it is always recomputed on
// load, never trusted from disk — spec §4.3, §8).
func SaveMetadata(downloadRoot string, c comic.Comic) error {
	dir := ComicDir(downloadRoot, c.Comic.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create comic dir %q: %w", dir, err)
	}

	serializable := c
	groups := make(map[string][]comic.ChapterInfo, len(c.Comic.Groups))
	for pathWord, chapters := range c.Comic.Groups {
		stripped := make([]comic.ChapterInfo, len(chapters))
		for i, ch := range chapters {
			stripped[i] = ch.ForMetadata()
		}
		groups[pathWord] = stripped
	}
	serializable.Comic.Groups = groups

	data, err := json.MarshalIndent(serializable, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata for %q: %w", c.Comic.Name, err)
	}
	path := filepath.Join(dir, metadataFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata %q: %w", path, err)
	}
	return nil
}

// SaveChapterMetadata writes ch's sidecar directly into dir, a chapter's
// temp or published directory, omitting IsDownloaded the same way
// SaveMetadata does for the comic-wide file.
func SaveChapterMetadata(dir string, ch comic.ChapterInfo) error {
	data, err := json.MarshalIndent(ch.ForMetadata(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chapter metadata for %q: %w", ch.PrefixedChapterTitle, err)
	}
	path := filepath.Join(dir, ChapterMetadataFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write chapter metadata %q: %w", path, err)
	}
	return nil
}

// LoadMetadata reads and parses a comic's metadata.json at path, recomputing
// IsDownloaded for every chapter from directory existence.
func LoadMetadata(downloadRoot, path string) (comic.Comic, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return comic.Comic{}, fmt.Errorf("read metadata %q: %w", path, err)
	}
	var c comic.Comic
	if err := json.Unmarshal(raw, &c); err != nil {
		return comic.Comic{}, fmt.Errorf("parse metadata %q: %w", path, err)
	}
	c.ComicDownloadDir = filepath.Dir(path)
	RecomputeIsDownloaded(&c, downloadRoot)
	return c, nil
}

// Scan walks downloadRoot for metadata.json files, sorts them by
// modification time descending, and deduplicates by comic path_word
// keeping the first (most recently modified) occurrence. Duplicate paths
// are logged, not silently dropped (spec §4.3).
func Scan(downloadRoot string) ([]comic.Comic, error) {
	type found struct {
		path    string
		modTime int64
	}
	var hits []found

	err := filepath.WalkDir(downloadRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || d.Name() != metadataFilename {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil {
			return statErr
		}
		hits = append(hits, found{path: path, modTime: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan download root %q: %w", downloadRoot, err)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].modTime > hits[j].modTime })

	seen := make(map[string]bool, len(hits))
	var comics []comic.Comic
	for _, h := range hits {
		c, err := LoadMetadata(downloadRoot, h.path)
		if err != nil {
			slog.Warn("skipping unreadable metadata", "path", h.path, "error", err)
			continue
		}
		if seen[c.Comic.PathWord] {
			slog.Info("duplicate comic metadata, keeping most recent", "pathWord", c.Comic.PathWord, "path", h.path)
			continue
		}
		seen[c.Comic.PathWord] = true
		comics = append(comics, c)
	}
	return comics, nil
}
