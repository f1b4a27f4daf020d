package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const sampleTSV = `level	page_num	block_num	par_num	line_num	word_num	left	top	width	height	conf	text
1	1	0	0	0	0	0	0	1280	720	-1
2	1	1	0	0	0	90	190	400	60	-1
4	1	1	1	1	0	100	200	380	24	-1
5	1	1	1	1	1	100	200	80	24	96.5	Hello
5	1	1	1	1	2	190	200	90	24	91.2	world
5	1	1	1	1	3	290	200	40	24	12.0	noise
5	1	1	1	1	4	340	200	40	24	95.0
5	1	1
5	1	1	1	1	5	390	200	0	24	88.0	zero
`

func TestParseTSV(t *testing.T) {
	words := parseTSV(sampleTSV, 30)

	if len(words) != 2 {
		t.Fatalf("got %d words, want 2: %+v", len(words), words)
	}

	first := words[0]
	if first.Text != "Hello" {
		t.Errorf("text = %q, want Hello", first.Text)
	}
	if first.X != 100 || first.Y != 200 || first.Width != 80 || first.Height != 24 {
		t.Errorf("box = (%d,%d %dx%d), want (100,200 80x24)", first.X, first.Y, first.Width, first.Height)
	}
	if first.Conf != 96.5 {
		t.Errorf("conf = %g, want 96.5", first.Conf)
	}
	if words[1].Text != "world" {
		t.Errorf("second word = %q, want world", words[1].Text)
	}
}

func TestParseTSVConfidenceCutoff(t *testing.T) {
	// At cutoff 0, the 12-confidence word comes back too.
	words := parseTSV(sampleTSV, 0)
	if len(words) != 3 {
		t.Fatalf("got %d words, want 3", len(words))
	}
	if words[2].Text != "noise" {
		t.Errorf("third word = %q, want noise", words[2].Text)
	}

	// A word exactly at the cutoff is dropped.
	words = parseTSV(sampleTSV, 96.5)
	if len(words) != 0 {
		t.Errorf("got %d words at cutoff 96.5, want 0", len(words))
	}
}

func TestParseTSVEmpty(t *testing.T) {
	if words := parseTSV("", 30); len(words) != 0 {
		t.Errorf("got %d words from empty output", len(words))
	}
}

func TestResultText(t *testing.T) {
	r := &Result{Words: []Word{{Text: "net"}, {Text: "force"}}}
	if got := r.Text(); got != "net force" {
		t.Errorf("Text() = %q", got)
	}
}

func TestTesseractDefaults(t *testing.T) {
	eng := NewTesseract("", "", 30)
	if eng.Path != "tesseract" || eng.Language != "eng" {
		t.Errorf("defaults = %q/%q", eng.Path, eng.Language)
	}
	if eng.Name() != "tesseract" {
		t.Errorf("Name() = %q", eng.Name())
	}
}

func TestTesseractUnavailable(t *testing.T) {
	eng := NewTesseract("definitely-not-a-binary-12345", "eng", 30)
	err := eng.Available()
	if err == nil {
		t.Fatal("expected availability error")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error %v does not wrap ErrUnavailable", err)
	}
	if !strings.Contains(err.Error(), "definitely-not-a-binary-12345") {
		t.Errorf("error %v does not name the missing binary", err)
	}
}

func TestMock(t *testing.T) {
	t.Run("returns canned words and counts calls", func(t *testing.T) {
		m := &Mock{Words: []Word{{Text: "a", X: 1, Y: 2, Width: 3, Height: 4, Conf: 99}}}

		res, err := m.Recognize(context.Background(), []byte("png"))
		if err != nil {
			t.Fatalf("Recognize: %v", err)
		}
		if len(res.Words) != 1 || res.Words[0].Text != "a" {
			t.Errorf("words = %+v", res.Words)
		}
		if m.Calls() != 1 {
			t.Errorf("Calls() = %d, want 1", m.Calls())
		}
	})

	t.Run("fails only on the configured call", func(t *testing.T) {
		m := &Mock{FailOnCall: 2}

		if _, err := m.Recognize(context.Background(), nil); err != nil {
			t.Fatalf("call 1: %v", err)
		}
		if _, err := m.Recognize(context.Background(), nil); err == nil {
			t.Fatal("call 2 should fail")
		}
		if _, err := m.Recognize(context.Background(), nil); err != nil {
			t.Fatalf("call 3: %v", err)
		}
	})

	t.Run("availability error", func(t *testing.T) {
		m := &Mock{UnavailableErr: ErrUnavailable}
		if err := m.Available(); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Available() = %v", err)
		}
	})
}
