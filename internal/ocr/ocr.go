// Package ocr abstracts text recognition behind a small engine interface so
// callers do not care whether words come from a local Tesseract binary or a
// test double. Engines return positioned word boxes in image pixel
// coordinates; the PDF layer scales them into page space.
package ocr

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable means the engine cannot run at all (binary missing,
// not executable). Callers degrade to image-only output rather than abort.
var ErrUnavailable = errors.New("ocr: engine not available")

// Word is one recognized word with its bounding box in image pixels.
type Word struct {
	Text   string
	X      int
	Y      int
	Width  int
	Height int
	Conf   float64 // engine confidence, 0-100
}

// Result holds the recognition output for one image.
type Result struct {
	Words []Word
}

// Text joins the recognized words in reading order.
func (r *Result) Text() string {
	parts := make([]string, len(r.Words))
	for i, w := range r.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Engine recognizes text in PNG images.
type Engine interface {
	// Name identifies the engine ("tesseract", "mock").
	Name() string

	// Available reports whether the engine can run. A non-nil error wraps
	// ErrUnavailable with the reason.
	Available() error

	// Recognize extracts positioned words from one PNG image.
	Recognize(ctx context.Context, image []byte) (*Result, error)
}
