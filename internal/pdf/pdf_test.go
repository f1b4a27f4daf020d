package pdf

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bookshot/bookshot/internal/capture"
	"github.com/bookshot/bookshot/internal/ocr"
	"github.com/bookshot/bookshot/internal/toc"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// singlePages builds n one-segment captured pages.
func singlePages(t *testing.T, n int) []capture.Page {
	t.Helper()
	img := testPNG(t, 640, 480)
	pages := make([]capture.Page, n)
	for i := range pages {
		pages[i] = capture.Page{
			Section: toc.Section{Title: "Section", Order: i + 1},
			Images:  [][]byte{img},
		}
	}
	return pages
}

func TestAssemblePageCountAndOrder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pdf")
	mock := &ocr.Mock{Words: []ocr.Word{{Text: "hello", X: 10, Y: 10, Width: 60, Height: 20, Conf: 95}}}

	res, err := Assemble(singlePages(t, 5), out, Options{
		Title: "Ch 4", Engine: mock, OCREnabled: true, DPI: 150, Validate: true,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if res.Pages != 5 || res.TextPages != 5 {
		t.Errorf("Pages = %d, TextPages = %d, want 5 and 5", res.Pages, res.TextPages)
	}
	if mock.Calls() != 5 {
		t.Errorf("engine ran %d times, want 5", mock.Calls())
	}
	if n, err := PageCount(out); err != nil || n != 5 {
		t.Errorf("PageCount = %d, %v, want 5", n, err)
	}
	if res.Size <= 0 {
		t.Errorf("Size = %d", res.Size)
	}
}

func TestAssembleMultiSegmentSections(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pdf")
	img := testPNG(t, 320, 240)
	pages := []capture.Page{
		{Section: toc.Section{Title: "A", Order: 1}, Images: [][]byte{img, img, img}},
		{Section: toc.Section{Title: "B", Order: 2}, Images: [][]byte{img}},
	}

	res, err := Assemble(pages, out, Options{Title: "Ch", DPI: 150})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.Pages != 4 {
		t.Errorf("Pages = %d, want 4", res.Pages)
	}
}

func TestAssembleOCRDisabled(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pdf")
	mock := &ocr.Mock{Words: []ocr.Word{{Text: "x", X: 0, Y: 0, Width: 10, Height: 10, Conf: 90}}}

	res, err := Assemble(singlePages(t, 2), out, Options{
		Title: "Ch", Engine: mock, OCREnabled: false, DPI: 150,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if mock.Calls() != 0 {
		t.Errorf("engine ran %d times with OCR disabled", mock.Calls())
	}
	if res.TextPages != 0 {
		t.Errorf("TextPages = %d, want 0", res.TextPages)
	}
	if n, _ := PageCount(out); n != 2 {
		t.Errorf("PageCount = %d, want 2", n)
	}
}

func TestAssembleOCRFailureDegrades(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pdf")
	mock := &ocr.Mock{
		Words:      []ocr.Word{{Text: "w", X: 5, Y: 5, Width: 40, Height: 16, Conf: 90}},
		FailOnCall: 2,
	}

	res, err := Assemble(singlePages(t, 3), out, Options{
		Title: "Ch", Engine: mock, OCREnabled: true, DPI: 150, Validate: true,
	})
	if err != nil {
		t.Fatalf("Assemble should not abort on an OCR failure: %v", err)
	}

	if res.Pages != 3 {
		t.Errorf("Pages = %d, want 3", res.Pages)
	}
	if res.TextPages != 2 {
		t.Errorf("TextPages = %d, want 2 (the failed segment is image-only)", res.TextPages)
	}
}

func TestAssembleOCRUnavailableDegrades(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pdf")
	mock := &ocr.Mock{UnavailableErr: ocr.ErrUnavailable}

	res, err := Assemble(singlePages(t, 2), out, Options{
		Title: "Ch", Engine: mock, OCREnabled: true, DPI: 150,
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if mock.Calls() != 0 {
		t.Errorf("unavailable engine still ran %d times", mock.Calls())
	}
	if res.Pages != 2 || res.TextPages != 0 {
		t.Errorf("Pages = %d, TextPages = %d, want 2 and 0", res.Pages, res.TextPages)
	}
}

func TestAssembleIdempotentPageCount(t *testing.T) {
	dir := t.TempDir()
	pages := singlePages(t, 3)

	var counts [2]int
	for i := range counts {
		out := filepath.Join(dir, "out"+string(rune('a'+i))+".pdf")
		res, err := Assemble(pages, out, Options{Title: "Ch", DPI: 150})
		if err != nil {
			t.Fatalf("Assemble %d: %v", i, err)
		}
		counts[i] = res.Pages
	}
	if counts[0] != counts[1] {
		t.Errorf("page counts differ across runs: %v", counts)
	}
}

func TestAssembleEmpty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pdf")
	if _, err := Assemble(nil, out, Options{}); !errors.Is(err, ErrNoPages) {
		t.Errorf("Assemble(nil) = %v, want ErrNoPages", err)
	}
	pages := []capture.Page{{Section: toc.Section{Title: "empty"}}}
	if _, err := Assemble(pages, out, Options{}); !errors.Is(err, ErrNoPages) {
		t.Errorf("Assemble(no segments) = %v, want ErrNoPages", err)
	}
}

func TestAssembleMaxImageWidth(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pdf")
	pages := []capture.Page{{
		Section: toc.Section{Title: "wide"},
		Images:  [][]byte{testPNG(t, 1600, 400)},
	}}

	res, err := Assemble(pages, out, Options{Title: "Ch", DPI: 150, MaxImageWidth: 800, Validate: true})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := Verify(out, res.Pages); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestOutputName(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	name := OutputName("Chapter 1: Intro/Overview?", now)

	if name != "Chapter_1_IntroOverview_20260831_093000.pdf" {
		t.Errorf("OutputName = %q", name)
	}
	if strings.ContainsAny(name, `/\:?*"<>|`) {
		t.Errorf("unsafe characters in %q", name)
	}

	later := OutputName("Chapter 1: Intro/Overview?", now.Add(time.Second))
	if name == later {
		t.Error("distinct timestamps should produce distinct names")
	}
}
