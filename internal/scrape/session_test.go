package scrape

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bookshot/bookshot/internal/pdf"
)

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := &Session{
		ID:      "abc-123",
		Created: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Chapter: "Ch 4",
		Files:   []string{"a.png", "b.png"},
	}

	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadSession(path)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}

	if got.ID != s.ID || got.Chapter != s.Chapter || !got.Created.Equal(s.Created) {
		t.Errorf("round trip changed the session: %+v", got)
	}
	if len(got.Files) != 2 || got.Files[1] != "b.png" {
		t.Errorf("files = %v", got.Files)
	}
}

func TestLoadSessionMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if _, err := LoadSession(path); !errors.Is(err, ErrNoSession) {
		t.Errorf("LoadSession = %v, want ErrNoSession", err)
	}
}

func TestLoadSessionCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSession(path); err == nil || errors.Is(err, ErrNoSession) {
		t.Errorf("LoadSession = %v, want a parse error", err)
	}
}

func TestStatus(t *testing.T) {
	cfg := testCfg(t)
	s := &Session{ID: "run-9", Created: time.Now(), Chapter: "Ch 2", Files: []string{"x.png"}}
	if err := s.Save(cfg.Output.SessionFile()); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Status(cfg, &buf); err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, want := range []string{"run-9", "Ch 2", "x.png"} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("status missing %q:\n%s", want, buf.String())
		}
	}

	if err := Status(testCfg(t), &buf); !errors.Is(err, ErrNoSession) {
		t.Errorf("Status without session = %v, want ErrNoSession", err)
	}
}

func TestClear(t *testing.T) {
	cfg := testCfg(t)

	shot := filepath.Join(cfg.Output.Screenshots(), "manual_1.png")
	if err := os.MkdirAll(filepath.Dir(shot), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(shot, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := &Session{ID: "run-1", Created: time.Now(), Chapter: "Ch 1", Files: []string{shot}}
	if err := s.Save(cfg.Output.SessionFile()); err != nil {
		t.Fatal(err)
	}

	if err := Clear(cfg); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(shot); !errors.Is(err, os.ErrNotExist) {
		t.Error("screenshot survived Clear")
	}
	if _, err := LoadSession(cfg.Output.SessionFile()); !errors.Is(err, ErrNoSession) {
		t.Error("session file survived Clear")
	}
}

func TestAssembleSession(t *testing.T) {
	cfg := testCfg(t)

	dir := cfg.Output.Screenshots()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	img := testPNG(t)
	var files []string
	for _, name := range []string{"m_1.png", "m_2.png"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, img, 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, p)
	}
	s := &Session{ID: "run-2", Created: time.Now(), Chapter: "Manual Ch", Files: files}
	if err := s.Save(cfg.Output.SessionFile()); err != nil {
		t.Fatal(err)
	}

	res, err := AssembleSession(cfg)
	if err != nil {
		t.Fatalf("AssembleSession: %v", err)
	}
	if res.Pages != 2 {
		t.Errorf("Pages = %d, want 2", res.Pages)
	}
	if n, err := pdf.PageCount(res.Path); err != nil || n != 2 {
		t.Errorf("PageCount = %d, %v, want 2", n, err)
	}
}

func TestAssembleSessionEmpty(t *testing.T) {
	cfg := testCfg(t)
	s := &Session{ID: "run-3", Created: time.Now(), Chapter: "Ch"}
	if err := s.Save(cfg.Output.SessionFile()); err != nil {
		t.Fatal(err)
	}

	if _, err := AssembleSession(cfg); err == nil {
		t.Error("expected an error for a session with no captures")
	}
}
