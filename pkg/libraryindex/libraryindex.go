// Package libraryindex is a derived, rebuildable DuckDB cache over comic and
// chapter metadata, offering lookup by path_word, name search, and a
// downloaded-chapter count. No other package in this module opens or
// rebuilds it; the updater and CLI read the filesystem through pkg/library.
// It is pure cache: the filesystem (pkg/library) is always the source of
// truth (spec §3/§4.3's on-disk-is-truth invariant). A missing index file
// is created empty by Open; a corrupt one makes Open fail.
package libraryindex

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/mangavault/core/pkg/comic"
)

// ComicRecord is the flattened row a search or lookup returns; callers
// needing the full Comic still hydrate it from its metadata.json via
// pkg/library.LoadMetadata.
type ComicRecord struct {
	PathWord string
	Name     string
	Status   string
	ComicDir string
}

// Index wraps a DuckDB connection holding the derived cache.
type Index struct {
	db *sql.DB
}

// Open creates (or opens) the DuckDB file at path and ensures its schema
// exists.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create library index dir: %w", err)
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open library index %q: %w", path, err)
	}
	idx := &Index{db: db}
	if err := idx.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS comics (
			path_word VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			comic_dir VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chapters (
			chapter_uuid VARCHAR PRIMARY KEY,
			comic_path_word VARCHAR NOT NULL,
			group_path_word VARCHAR NOT NULL,
			prefixed_title VARCHAR NOT NULL,
			is_downloaded BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chapters_comic_path_word ON chapters(comic_path_word)`,
	}
	for _, stmt := range statements {
		if _, err := idx.db.Exec(stmt); err != nil {
			return fmt.Errorf("create library index schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying DuckDB connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Rebuild replaces the entire index with comics: every existing row is
// deleted and comics are reinserted in one transaction.
func (idx *Index) Rebuild(ctx context.Context, comics []comic.Comic) error {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin library index rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters`); err != nil {
		return fmt.Errorf("clear chapters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM comics`); err != nil {
		return fmt.Errorf("clear comics: %w", err)
	}

	for _, c := range comics {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO comics (path_word, name, status, comic_dir) VALUES (?, ?, ?, ?)`,
			c.Comic.PathWord, c.Comic.Name, c.Comic.Status.Display, c.ComicDownloadDir,
		)
		if err != nil {
			return fmt.Errorf("insert comic %q: %w", c.Comic.PathWord, err)
		}

		for groupPathWord, chapters := range c.Comic.Groups {
			for _, ch := range chapters {
				downloaded := ch.IsDownloaded != nil && *ch.IsDownloaded
				_, err := tx.ExecContext(ctx,
					`INSERT INTO chapters (chapter_uuid, comic_path_word, group_path_word, prefixed_title, is_downloaded)
					 VALUES (?, ?, ?, ?, ?)`,
					ch.ChapterUUID, c.Comic.PathWord, groupPathWord, ch.PrefixedChapterTitle, downloaded,
				)
				if err != nil {
					return fmt.Errorf("insert chapter %q: %w", ch.ChapterUUID, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit library index rebuild: %w", err)
	}
	return nil
}

// FindByPathWord looks up a single comic by its stable identifier.
func (idx *Index) FindByPathWord(ctx context.Context, pathWord string) (ComicRecord, bool, error) {
	row := idx.db.QueryRowContext(ctx,
		`SELECT path_word, name, status, comic_dir FROM comics WHERE path_word = ?`, pathWord)

	var rec ComicRecord
	if err := row.Scan(&rec.PathWord, &rec.Name, &rec.Status, &rec.ComicDir); err != nil {
		if err == sql.ErrNoRows {
			return ComicRecord{}, false, nil
		}
		return ComicRecord{}, false, fmt.Errorf("find comic %q: %w", pathWord, err)
	}
	return rec, true, nil
}

// Search returns every comic whose name contains query (case-insensitive),
// ordered by name.
func (idx *Index) Search(ctx context.Context, query string) ([]ComicRecord, error) {
	rows, err := idx.db.QueryContext(ctx,
		`SELECT path_word, name, status, comic_dir FROM comics WHERE name ILIKE '%' || ? || '%' ORDER BY name`,
		query,
	)
	if err != nil {
		return nil, fmt.Errorf("search comics %q: %w", query, err)
	}
	defer rows.Close()

	var records []ComicRecord
	for rows.Next() {
		var rec ComicRecord
		if err := rows.Scan(&rec.PathWord, &rec.Name, &rec.Status, &rec.ComicDir); err != nil {
			return nil, fmt.Errorf("scan comic row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DownloadedChapterCount returns how many chapters are marked downloaded
// for a given comic.
func (idx *Index) DownloadedChapterCount(ctx context.Context, pathWord string) (int, error) {
	var count int
	row := idx.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chapters WHERE comic_path_word = ? AND is_downloaded`, pathWord)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count downloaded chapters for %q: %w", pathWord, err)
	}
	return count, nil
}
