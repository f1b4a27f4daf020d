package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Tesseract runs the external tesseract binary in TSV mode and parses the
// word boxes out of its output.
type Tesseract struct {
	Path          string  // binary name or absolute path
	Language      string  // e.g. "eng"
	MinConfidence float64 // words at or below this confidence are dropped
}

// NewTesseract builds an engine for the given binary. Empty path and
// language fall back to "tesseract" and "eng".
func NewTesseract(path, language string, minConfidence float64) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{Path: path, Language: language, MinConfidence: minConfidence}
}

// Name identifies the engine.
func (t *Tesseract) Name() string { return "tesseract" }

// Available checks that the binary can be found.
func (t *Tesseract) Available() error {
	if _, err := exec.LookPath(t.Path); err != nil {
		return fmt.Errorf("%w: %q not found (install tesseract or set ocr.tesseract_path)", ErrUnavailable, t.Path)
	}
	return nil
}

// Recognize feeds the image to tesseract on stdin and parses the TSV rows
// into positioned words.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (*Result, error) {
	cmd := exec.CommandContext(ctx, t.Path, "stdin", "stdout", "-l", t.Language, "tsv")
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ocr: tesseract failed: %w\nOutput: %s", err, stderr.String())
	}

	return &Result{Words: parseTSV(stdout.String(), t.MinConfidence)}, nil
}

// TSV columns: level page_num block_num par_num line_num word_num
// left top width height conf text. Word rows carry level 5; everything
// else (pages, blocks, lines) has conf -1 and no text.
func parseTSV(output string, minConf float64) []Word {
	var words []Word

	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if i == 0 || line == "" {
			continue // header
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		if cols[0] != "5" {
			continue
		}

		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf <= minConf {
			continue
		}

		x, err1 := strconv.Atoi(cols[6])
		y, err2 := strconv.Atoi(cols[7])
		w, err3 := strconv.Atoi(cols[8])
		h, err4 := strconv.Atoi(cols[9])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || w <= 0 || h <= 0 {
			continue
		}

		words = append(words, Word{Text: text, X: x, Y: y, Width: w, Height: h, Conf: conf})
	}

	return words
}
