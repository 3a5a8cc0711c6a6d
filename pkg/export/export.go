// Package export writes a downloaded comic's chapters out to CBZ and PDF,
// the two archive formats spec §6 names (export_cbz, export_pdf). Both
// walk comic.Comic's downloaded chapters and read straight from each
// chapter's download directory; neither consults the library index or
// talks to the remote origin.
package export

import "github.com/mangavault/core/pkg/comic"

// downloadedChapters returns every chapter of c with IsDownloaded true,
// the "on-disk now" filter both export formats apply before archiving
// anything.
func downloadedChapters(c comic.Comic) []comic.ChapterInfo {
	var out []comic.ChapterInfo
	for _, chapters := range c.Comic.Groups {
		for _, ch := range chapters {
			if ch.IsDownloaded != nil && *ch.IsDownloaded {
				out = append(out, ch)
			}
		}
	}
	return out
}
