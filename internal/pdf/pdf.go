// Package pdf assembles captured screenshot segments into one searchable
// PDF: each segment becomes a page with the image as the visible layer and
// the OCR words as an invisible, selectable text layer at matching
// coordinates. OCR trouble degrades pages to image-only; it never aborts an
// assembly.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/nfnt/resize"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/bookshot/bookshot/internal/capture"
	"github.com/bookshot/bookshot/internal/ocr"
)

// ErrNoPages means there was nothing to assemble.
var ErrNoPages = errors.New("pdf: no captured pages to assemble")

// Options configures one assembly.
type Options struct {
	Title         string     // PDF metadata title (the chapter)
	Engine        ocr.Engine // used only when OCREnabled
	OCREnabled    bool
	DPI           int // page points = image pixels * 72 / DPI
	MaxImageWidth int // downscale wider segments before embedding; 0 = off
	Validate      bool
	Logger        *slog.Logger
}

// Result describes the written PDF.
type Result struct {
	Path      string
	Pages     int   // pages in the written file
	TextPages int   // pages that received an OCR text layer
	Size      int64 // bytes on disk
}

// OutputName builds the artifact filename for a chapter:
// <safe_title>_<timestamp>.pdf. Distinct timestamps keep concurrent runs
// from colliding.
func OutputName(chapter string, now time.Time) string {
	return fmt.Sprintf("%s_%s.pdf", capture.SafeTitle(chapter, 50), now.Format("20060102_150405"))
}

// Assemble writes all segments of all pages, in order, to outPath. Page
// order equals input order exactly. OCR failures on a segment degrade that
// page to image-only and the run continues; only image decoding and file
// writing can fail the assembly.
func Assemble(pages []capture.Page, outPath string, opts Options) (*Result, error) {
	total := 0
	for _, p := range pages {
		total += len(p.Images)
	}
	if total == 0 {
		return nil, ErrNoPages
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.DPI <= 0 {
		opts.DPI = 150
	}

	engine := opts.Engine
	if opts.OCREnabled && engine != nil {
		if err := engine.Available(); err != nil {
			log.Warn("ocr engine unavailable, producing image-only pages", "engine", engine.Name(), "err", err)
			engine = nil
		}
	} else {
		engine = nil
	}

	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetTitle(opts.Title, true)
	doc.SetAuthor("bookshot", false)
	doc.SetCreator("bookshot", false)
	doc.SetCreationDate(time.Now())
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(0, 0, 0)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	res := &Result{Path: outPath}
	for _, page := range pages {
		for i, img := range page.Images {
			data, cfg, err := prepareImage(img, opts.MaxImageWidth)
			if err != nil {
				return nil, fmt.Errorf("pdf: segment %d of %q: %w", i+1, page.Section.Title, err)
			}

			var words []ocr.Word
			if engine != nil {
				r, err := engine.Recognize(context.Background(), data)
				if err != nil {
					log.Warn("ocr failed, page will be image-only",
						"section", page.Section.Title, "segment", i+1, "err", err)
				} else {
					words = r.Words
				}
			}

			addPage(doc, tr, data, cfg, words, opts.DPI, res.Pages)
			if len(words) > 0 {
				res.TextPages++
			}
			res.Pages++
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("pdf: create %s: %w", filepath.Dir(outPath), err)
	}
	if err := doc.OutputFileAndClose(outPath); err != nil {
		return nil, fmt.Errorf("pdf: write %s: %w", outPath, err)
	}

	if info, err := os.Stat(outPath); err == nil {
		res.Size = info.Size()
	}

	if opts.Validate {
		if err := Verify(outPath, res.Pages); err != nil {
			log.Warn("validation flagged the written pdf", "path", outPath, "err", err)
		}
	}
	return res, nil
}

// addPage emits one PDF page sized to the image at the configured DPI, the
// image full-bleed, and the words invisibly at their scaled positions.
func addPage(doc *gofpdf.Fpdf, tr func(string) string, data []byte, cfg image.Config, words []ocr.Word, dpi, n int) {
	scale := 72.0 / float64(dpi) // points per image pixel
	w := float64(cfg.Width) * scale
	h := float64(cfg.Height) * scale

	doc.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})

	name := fmt.Sprintf("segment-%d", n)
	pngOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader(name, pngOpts, bytes.NewReader(data))
	doc.ImageOptions(name, 0, 0, w, h, false, pngOpts, 0, "")

	if len(words) == 0 {
		return
	}

	// Invisible text: drawn at alpha zero it stays selectable and
	// searchable but never shows over the image.
	doc.SetAlpha(0, "Normal")
	doc.SetTextColor(0, 0, 0)
	for _, wd := range words {
		size := float64(wd.Height) * scale
		if size < 6 {
			size = 6
		} else if size > 14 {
			size = 14
		}
		doc.SetFont("Helvetica", "", size)

		// Baseline at 80% of the box height tracks how Latin glyphs sit.
		x := float64(wd.X) * scale
		y := (float64(wd.Y) + 0.8*float64(wd.Height)) * scale
		doc.Text(x, y, tr(wd.Text))
	}
	doc.SetAlpha(1, "Normal")
}

// prepareImage decodes the PNG header and, when the segment is wider than
// maxWidth pixels, re-encodes it downscaled to cap the PDF size.
func prepareImage(data []byte, maxWidth int) ([]byte, image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, cfg, fmt.Errorf("decode image: %w", err)
	}
	if maxWidth <= 0 || cfg.Width <= maxWidth {
		return data, cfg, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, cfg, fmt.Errorf("decode image: %w", err)
	}
	scaled := resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, cfg, fmt.Errorf("encode downscaled image: %w", err)
	}
	b := scaled.Bounds()
	cfg.Width, cfg.Height = b.Dx(), b.Dy()
	return buf.Bytes(), cfg, nil
}

// Verify validates the written file with pdfcpu and checks its page count
// against the expected one.
func Verify(path string, wantPages int) error {
	if err := api.ValidateFile(path, nil); err != nil {
		return fmt.Errorf("pdf: validate %s: %w", path, err)
	}
	got, err := api.PageCountFile(path)
	if err != nil {
		return fmt.Errorf("pdf: count pages of %s: %w", path, err)
	}
	if got != wantPages {
		return fmt.Errorf("pdf: %s has %d pages, expected %d", path, got, wantPages)
	}
	return nil
}

// PageCount reports how many pages a written PDF has.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf: count pages of %s: %w", path, err)
	}
	return n, nil
}

// MergeSections concatenates per-section PDFs, in the given order, into one
// file. Print mode uses this after the browser renders each section itself.
func MergeSections(sectionFiles []string, outPath string) error {
	if len(sectionFiles) == 0 {
		return ErrNoPages
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("pdf: create %s: %w", filepath.Dir(outPath), err)
	}
	if err := api.MergeCreateFile(sectionFiles, outPath, false, nil); err != nil {
		return fmt.Errorf("pdf: merge into %s: %w", outPath, err)
	}
	return nil
}
