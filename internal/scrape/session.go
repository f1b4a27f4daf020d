package scrape

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookshot/bookshot/internal/browser"
	"github.com/bookshot/bookshot/internal/capture"
	"github.com/bookshot/bookshot/internal/config"
	"github.com/bookshot/bookshot/internal/ocr"
	"github.com/bookshot/bookshot/internal/pdf"
	"github.com/bookshot/bookshot/internal/toc"
)

// ErrNoSession means no manual-capture session exists to act on.
var ErrNoSession = errors.New("scrape: no capture session found (run --manual first)")

// Session is the state of a manual capture, persisted between invocations
// so screenshots can be taken now and assembled later. The automatic scrape
// never touches it.
type Session struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Chapter string    `json:"chapter"`
	Files   []string  `json:"files"`
}

// LoadSession reads the session file, or ErrNoSession when there is none.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("scrape: read %s: %w", path, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("scrape: parse %s: %w", path, err)
	}
	return &s, nil
}

// Save writes the session next to the run's other artifacts.
func (s *Session) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("scrape: marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("scrape: create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scrape: write %s: %w", path, err)
	}
	return nil
}

// Status prints the current session, if any.
func Status(cfg *config.Config, w io.Writer) error {
	s, err := LoadSession(cfg.Output.SessionFile())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Session %s\n", s.ID)
	fmt.Fprintf(w, "  Created:  %s\n", s.Created.Format(time.RFC3339))
	fmt.Fprintf(w, "  Chapter:  %s\n", s.Chapter)
	fmt.Fprintf(w, "  Captures: %d\n", len(s.Files))
	for _, f := range s.Files {
		fmt.Fprintf(w, "    %s\n", f)
	}
	return nil
}

// Clear deletes the session's screenshots and the session file itself.
func Clear(cfg *config.Config) error {
	path := cfg.Output.SessionFile()
	s, err := LoadSession(path)
	if err != nil {
		return err
	}
	for _, f := range s.Files {
		os.Remove(f)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("scrape: remove %s: %w", path, err)
	}
	fmt.Printf("Cleared session %s (%d captures)\n", s.ID, len(s.Files))
	return nil
}

// Manual runs the interactive capture loop for pages where automatic TOC
// navigation fails: the user drives the page, the tool screenshots on
// command, and the segments accumulate in the session until assembled.
func Manual(cfg *config.Config, in io.Reader) error {
	fmt.Printf("→ Connecting to Chrome at %s:%d... ", cfg.Connect.Host, cfg.Connect.Port)
	sess, err := browser.Connect(browser.Options{
		Host:     cfg.Connect.Host,
		Port:     cfg.Connect.Port,
		Timeout:  cfg.Connect.Timeout,
		PageHint: cfg.Connect.PageHint,
	})
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer sess.Close()
	fmt.Println("done")

	path := cfg.Output.SessionFile()
	s, err := LoadSession(path)
	switch {
	case errors.Is(err, ErrNoSession):
		s = &Session{ID: uuid.NewString(), Created: time.Now(), Chapter: sess.Title()}
		fmt.Printf("New session %s — %s\n", s.ID, s.Chapter)
	case err != nil:
		return err
	default:
		fmt.Printf("Resuming session %s (%d captures)\n", s.ID, len(s.Files))
	}

	capt := capture.New(sess, cfg)

	fmt.Println("\nPosition the page in the browser, then:")
	fmt.Println("  Enter  capture the current viewport")
	fmt.Println("  n      page down, then capture")
	fmt.Println("  d      done: assemble the session into a PDF")
	fmt.Println("  q      quit, keeping the session for later")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return s.Save(path)
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "":
		case "n":
			if err := capt.PressPageDown(); err != nil {
				fmt.Printf("  page down failed: %v\n", err)
				continue
			}
		case "d":
			if err := s.Save(path); err != nil {
				return err
			}
			res, err := AssembleSession(cfg)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Saved to %s (%d pages, %.1f MB)\n",
				res.Path, res.Pages, float64(res.Size)/(1024*1024))
			return nil
		case "q":
			fmt.Printf("Session kept: %d captures in %s\n", len(s.Files), path)
			return s.Save(path)
		default:
			fmt.Println("  Enter, n, d, or q")
			continue
		}

		file, _, err := capt.Snapshot(s.Chapter, len(s.Files)+1)
		if err != nil {
			fmt.Printf("  capture failed: %v\n", err)
			continue
		}
		s.Files = append(s.Files, file)
		fmt.Printf("  captured %d: %s\n", len(s.Files), file)
		if err := s.Save(path); err != nil {
			return err
		}
	}
}

// AssembleSession builds the PDF from the saved manual session without
// touching the browser.
func AssembleSession(cfg *config.Config) (*pdf.Result, error) {
	s, err := LoadSession(cfg.Output.SessionFile())
	if err != nil {
		return nil, err
	}
	if len(s.Files) == 0 {
		return nil, fmt.Errorf("scrape: session %s has no captures", s.ID)
	}

	page := capture.Page{Section: toc.Section{Title: s.Chapter, Order: 1}}
	for _, f := range s.Files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("scrape: read capture %s: %w", f, err)
		}
		page.Images = append(page.Images, data)
		page.Files = append(page.Files, f)
	}

	outPath := filepath.Join(cfg.Output.Dir, pdf.OutputName(s.Chapter, time.Now()))
	engine := ocr.NewTesseract(cfg.OCR.TesseractPath, cfg.OCR.Language, cfg.OCR.MinConfidence)
	return pdf.Assemble([]capture.Page{page}, outPath, pdf.Options{
		Title:         s.Chapter,
		Engine:        engine,
		OCREnabled:    cfg.OCR.Enabled,
		DPI:           cfg.PDF.DPI,
		MaxImageWidth: cfg.PDF.MaxImageWidth,
		Validate:      cfg.PDF.Validate,
	})
}
