package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mangavault/core/pkg/comic"
	"github.com/mangavault/core/pkg/config"
	"github.com/mangavault/core/pkg/library"
)

// CBZ writes one .cbz archive per downloaded chapter of c under
// cfg.ExportDir: a plain zip of every file already sitting in the
// chapter's download directory. This is deliberately a filesystem walk
// plus a ZIP pass and nothing else — no ComicInfo.xml sidecar, which
// spec §6 does not name as part of export_cbz.
func CBZ(cfg config.Config, c comic.Comic) error {
	for _, ch := range downloadedChapters(c) {
		if err := cbzChapter(cfg, c, ch); err != nil {
			return fmt.Errorf("export cbz for %q: %w", ch.PrefixedChapterTitle, err)
		}
	}
	return nil
}

func cbzChapter(cfg config.Config, c comic.Comic, ch comic.ChapterInfo) error {
	downloadDir := library.ChapterDir(cfg.DownloadDir, c.Comic.Name, ch.GroupName, ch.PrefixedChapterTitle)
	entries, err := os.ReadDir(downloadDir)
	if err != nil {
		return fmt.Errorf("read chapter dir %q: %w", downloadDir, err)
	}

	exportDir := library.GroupDir(cfg.ExportDir, c.Comic.Name, ch.GroupName)
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return fmt.Errorf("create export dir %q: %w", exportDir, err)
	}

	archivePath := filepath.Join(exportDir, ch.PrefixedChapterTitle+".cbz")
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive %q: %w", archivePath, err)
	}
	defer archiveFile.Close()

	zw := zip.NewWriter(archiveFile)
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == library.ChapterMetadataFilename {
			continue
		}
		if err := addFileToZip(zw, filepath.Join(downloadDir, entry.Name()), entry.Name()); err != nil {
			return fmt.Errorf("add page %q to %q: %w", entry.Name(), archivePath, err)
		}
	}
	return zw.Close()
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
