package export

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/signintech/gopdf"

	"github.com/mangavault/core/pkg/comic"
	"github.com/mangavault/core/pkg/config"
	"github.com/mangavault/core/pkg/library"
	"github.com/mangavault/core/pkg/remoteclient"
)

// Transcoder is the subset of transcode.Codec the PDF exporter needs to
// normalize any page encoding into JPEG before handing it to gopdf, which
// only understands JPEG and PNG.
type Transcoder interface {
	Transcode(data []byte, from, to remoteclient.ImageFormat) ([]byte, error)
}

// A4 in points, the fixed page size every page image is scaled into.
const (
	pdfPageWidth  = 595.28
	pdfPageHeight = 841.89
)

// PDF writes one PDF per downloaded chapter of c under cfg.ExportDir: one
// page per image, scaled to fit the page while preserving its aspect
// ratio and centered (spec §6's export_pdf, [ADD]).
func PDF(cfg config.Config, c comic.Comic, codec Transcoder) error {
	for _, ch := range downloadedChapters(c) {
		if err := pdfChapter(cfg, c, ch, codec); err != nil {
			return fmt.Errorf("export pdf for %q: %w", ch.PrefixedChapterTitle, err)
		}
	}
	return nil
}

func pdfChapter(cfg config.Config, c comic.Comic, ch comic.ChapterInfo, codec Transcoder) error {
	downloadDir := library.ChapterDir(cfg.DownloadDir, c.Comic.Name, ch.GroupName, ch.PrefixedChapterTitle)
	entries, err := os.ReadDir(downloadDir)
	if err != nil {
		return fmt.Errorf("read chapter dir %q: %w", downloadDir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == library.ChapterMetadataFilename {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: pdfPageWidth, H: pdfPageHeight}})

	for _, name := range names {
		if err := addPage(pdf, filepath.Join(downloadDir, name), codec); err != nil {
			return fmt.Errorf("page %q: %w", name, err)
		}
	}

	exportDir := library.GroupDir(cfg.ExportDir, c.Comic.Name, ch.GroupName)
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return fmt.Errorf("create export dir %q: %w", exportDir, err)
	}
	outPath := filepath.Join(exportDir, ch.PrefixedChapterTitle+".pdf")
	if err := pdf.WritePdf(outPath); err != nil {
		return fmt.Errorf("write pdf %q: %w", outPath, err)
	}
	return nil
}

func addPage(pdf *gopdf.GoPdf, path string, codec Transcoder) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	jpegBytes, err := codec.Transcode(data, sourceFormat(path), remoteclient.ImageJpeg)
	if err != nil {
		return fmt.Errorf("normalize to jpeg: %w", err)
	}

	imgConfig, err := jpeg.DecodeConfig(bytes.NewReader(jpegBytes))
	if err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}

	holder, err := gopdf.ImageHolderByBytes(jpegBytes)
	if err != nil {
		return fmt.Errorf("load into pdf: %w", err)
	}

	pdf.AddPage()
	rect := fitToPage(float64(imgConfig.Width), float64(imgConfig.Height))
	if err := pdf.ImageByHolder(holder, rect.x, rect.y, &gopdf.Rect{W: rect.w, H: rect.h}); err != nil {
		return fmt.Errorf("place: %w", err)
	}
	return nil
}

func sourceFormat(path string) remoteclient.ImageFormat {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".jpeg" || ext == ".jpg" {
		return remoteclient.ImageJpeg
	}
	return remoteclient.ImageWebp
}

type placedRect struct{ x, y, w, h float64 }

// fitToPage scales an imgW x imgH image to fit within the page bounds
// while preserving its aspect ratio, centering the result on both axes.
func fitToPage(imgW, imgH float64) placedRect {
	scale := pdfPageWidth / imgW
	if imgH*scale > pdfPageHeight {
		scale = pdfPageHeight / imgH
	}
	w := imgW * scale
	h := imgH * scale
	return placedRect{
		x: (pdfPageWidth - w) / 2,
		y: (pdfPageHeight - h) / 2,
		w: w,
		h: h,
	}
}
