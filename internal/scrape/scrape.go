// Package scrape sequences one run: connect to the browser, discover the
// expanded chapter's sections, capture each one (continuing past per-section
// failures), and assemble the captures into the final PDF. There are no
// retries and no concurrency; the pipeline is a straight line.
package scrape

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bookshot/bookshot/internal/browser"
	"github.com/bookshot/bookshot/internal/capture"
	"github.com/bookshot/bookshot/internal/config"
	"github.com/bookshot/bookshot/internal/ocr"
	"github.com/bookshot/bookshot/internal/pdf"
	"github.com/bookshot/bookshot/internal/toc"
)

// ErrConnect marks a failure to reach the browser, an external precondition
// the user has to fix (relaunch Chrome with the debugging port).
var ErrConnect = errors.New("scrape: browser connection failed")

// SectionResult records what happened to one section.
type SectionResult struct {
	Section  toc.Section
	Segments int
	Err      error
}

// Summary is the outcome of one run: the per-section results plus the
// written artifact. A run with capture failures still succeeds as long as a
// PDF was produced.
type Summary struct {
	RunID    string
	Chapter  string
	Sections []SectionResult
	PDF      *pdf.Result
}

// Captured counts sections that yielded at least one segment.
func (s *Summary) Captured() int {
	n := 0
	for _, r := range s.Sections {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts sections whose capture errored.
func (s *Summary) Failed() int {
	return len(s.Sections) - s.Captured()
}

// Print writes the per-section report and the artifact line.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "\nRun %s — %s\n", s.RunID, s.Chapter)
	for _, r := range s.Sections {
		if r.Err != nil {
			fmt.Fprintf(w, "  ✗ %s: %v\n", r.Section.Title, r.Err)
			continue
		}
		fmt.Fprintf(w, "  ✓ %s (%d segments)\n", r.Section.Title, r.Segments)
	}
	fmt.Fprintf(w, "%d captured, %d failed\n", s.Captured(), s.Failed())
	if s.PDF != nil {
		fmt.Fprintf(w, "✓ Saved to %s (%d pages, %.1f MB)\n",
			s.PDF.Path, s.PDF.Pages, float64(s.PDF.Size)/(1024*1024))
	}
}

// Pipeline holds the run's steps as replaceable functions so tests can fake
// the browser-facing ones. Run wires the real implementations.
type Pipeline struct {
	Cfg          *config.Config
	Discover     func() (chapter string, sections []toc.Section, err error)
	Capture      func(sec toc.Section) (*capture.Page, error)
	CapturePrint func(sec toc.Section) ([]byte, error)
	Assemble     func(pages []capture.Page, outPath string, title string) (*pdf.Result, error)
}

// Run executes the full scrape against a live browser.
func Run(cfg *config.Config) (*Summary, error) {
	fmt.Printf("→ Connecting to Chrome at %s:%d... ", cfg.Connect.Host, cfg.Connect.Port)
	sess, err := browser.Connect(browser.Options{
		Host:     cfg.Connect.Host,
		Port:     cfg.Connect.Port,
		Timeout:  cfg.Connect.Timeout,
		PageHint: cfg.Connect.PageHint,
	})
	if err != nil {
		fmt.Println("failed")
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer sess.Close()
	fmt.Println("done")

	capt := capture.New(sess, cfg)
	engine := ocr.NewTesseract(cfg.OCR.TesseractPath, cfg.OCR.Language, cfg.OCR.MinConfidence)

	p := &Pipeline{
		Cfg: cfg,
		Discover: func() (string, []toc.Section, error) {
			return toc.Discover(sess, cfg)
		},
		Capture:      capt.Capture,
		CapturePrint: capt.CapturePrint,
		Assemble: func(pages []capture.Page, outPath, title string) (*pdf.Result, error) {
			return pdf.Assemble(pages, outPath, pdf.Options{
				Title:         title,
				Engine:        engine,
				OCREnabled:    cfg.OCR.Enabled,
				DPI:           cfg.PDF.DPI,
				MaxImageWidth: cfg.PDF.MaxImageWidth,
				Validate:      cfg.PDF.Validate,
			})
		},
	}
	return p.Run()
}

// Run walks the pipeline: discover, capture every section in order
// (continue on per-section errors), assemble. Discovery and assembly
// failures are fatal; capture failures are recorded in the summary.
func (p *Pipeline) Run() (*Summary, error) {
	cfg := p.Cfg
	sum := &Summary{RunID: uuid.NewString()}

	fmt.Printf("→ Reading expanded chapter... ")
	chapter, sections, err := p.Discover()
	if err != nil {
		fmt.Println("failed")
		return nil, err
	}
	fmt.Printf("done (%q, %d sections)\n", chapter, len(sections))
	sum.Chapter = chapter

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("scrape: create %s: %w", cfg.Output.Dir, err)
	}

	outPath := filepath.Join(cfg.Output.Dir, pdf.OutputName(chapter, time.Now()))
	if cfg.PDF.Mode == config.ModePrint {
		err = p.runPrint(sum, sections, outPath)
	} else {
		err = p.runScreenshot(sum, sections, outPath, chapter)
	}
	if err != nil {
		return sum, err
	}
	return sum, nil
}

func (p *Pipeline) runScreenshot(sum *Summary, sections []toc.Section, outPath, chapter string) error {
	var pages []capture.Page
	for i, sec := range sections {
		fmt.Printf("→ [%d/%d] Capturing %q... ", i+1, len(sections), sec.Title)
		page, err := p.Capture(sec)
		if err != nil {
			fmt.Println("failed")
			sum.Sections = append(sum.Sections, SectionResult{Section: sec, Err: err})
			continue
		}
		fmt.Printf("done (%d segments)\n", len(page.Images))
		sum.Sections = append(sum.Sections, SectionResult{Section: sec, Segments: len(page.Images)})
		pages = append(pages, *page)
	}

	fmt.Printf("→ Assembling PDF... ")
	res, err := p.Assemble(pages, outPath, chapter)
	if err != nil {
		fmt.Println("failed")
		return err
	}
	fmt.Println("done")
	sum.PDF = res

	if !p.Cfg.Output.KeepScreenshots {
		removeSegments(pages)
	}
	return nil
}

// runPrint renders each section through the browser's own print pipeline
// and merges the per-section PDFs in discovery order. Text comes out real,
// so there is no OCR step.
func (p *Pipeline) runPrint(sum *Summary, sections []toc.Section, outPath string) error {
	dir := p.Cfg.Output.Screenshots()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("scrape: create %s: %w", dir, err)
	}

	stamp := time.Now().Format("20060102_150405")
	var files []string
	for i, sec := range sections {
		fmt.Printf("→ [%d/%d] Printing %q... ", i+1, len(sections), sec.Title)
		data, err := p.CapturePrint(sec)
		if err != nil {
			fmt.Println("failed")
			sum.Sections = append(sum.Sections, SectionResult{Section: sec, Err: err})
			continue
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%d_%s.pdf", capture.SafeTitle(sec.Title, 30), i+1, stamp))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Println("failed")
			sum.Sections = append(sum.Sections, SectionResult{Section: sec, Err: fmt.Errorf("write %s: %w", path, err)})
			continue
		}
		fmt.Println("done")
		sum.Sections = append(sum.Sections, SectionResult{Section: sec, Segments: 1})
		files = append(files, path)
	}

	fmt.Printf("→ Merging %d section PDFs... ", len(files))
	if err := pdf.MergeSections(files, outPath); err != nil {
		fmt.Println("failed")
		return err
	}
	fmt.Println("done")

	res := &pdf.Result{Path: outPath}
	if n, err := pdf.PageCount(outPath); err == nil {
		res.Pages = n
	}
	if info, err := os.Stat(outPath); err == nil {
		res.Size = info.Size()
	}
	sum.PDF = res

	if !p.Cfg.Output.KeepScreenshots {
		for _, f := range files {
			os.Remove(f)
		}
	}
	return nil
}

func removeSegments(pages []capture.Page) {
	for _, p := range pages {
		for _, f := range p.Files {
			os.Remove(f)
		}
	}
}
