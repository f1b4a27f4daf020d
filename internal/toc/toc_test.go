package toc

import "testing"

func TestKeepSection(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"1.2 Vectors and Scalars", true},
		{"12.10 Further Applications", true},
		{"  3.1 trimmed  ", true},
		{"Introduction", true},
		{"Introduction to Motion", true},
		{"Chapter 3", false},
		{"1. Not a section number", false},
		{"Summary", false},
		{"Key Terms", false},
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := keepSection(tt.text); got != tt.want {
				t.Errorf("keepSection(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestFilterSections(t *testing.T) {
	links := []rawLink{
		{text: "Chapter 4", href: "https://x/ch4"},
		{text: "Introduction", href: "https://x/e-book/4-0"},
		{text: "4.1  Newton's\nFirst Law", href: "https://x/e-book/4-1"},
		{text: "Glossary", href: "https://x/glossary"},
		{text: "4.2 Mass", href: "https://x/e-book/4-2"},
		{text: "4.2 Mass", href: "https://x/e-book/4-2"},
	}

	sections := filterSections(links)

	if len(sections) != 4 {
		t.Fatalf("got %d sections, want 4", len(sections))
	}
	wantTitles := []string{"Introduction", "4.1 Newton's First Law", "4.2 Mass", "4.2 Mass"}
	for i, s := range sections {
		if s.Title != wantTitles[i] {
			t.Errorf("section %d title = %q, want %q", i, s.Title, wantTitles[i])
		}
		if s.Order != i+1 {
			t.Errorf("section %d order = %d, want %d", i, s.Order, i+1)
		}
	}
	if sections[1].Href != "https://x/e-book/4-1" {
		t.Errorf("href = %q", sections[1].Href)
	}
}

func TestFilterSectionsEmpty(t *testing.T) {
	if got := filterSections(nil); got != nil {
		t.Errorf("filterSections(nil) = %v, want nil", got)
	}
	links := []rawLink{{text: "Appendix A", href: "https://x/a"}}
	if got := filterSections(links); len(got) != 0 {
		t.Errorf("got %d sections, want 0", len(got))
	}
}

func TestChapterTitle(t *testing.T) {
	tests := []struct {
		name     string
		nodeText string
		docTitle string
		want     string
	}{
		{
			name:     "line with chapter marker",
			nodeText: "Unit 1\nCh 4: Newton's Laws\n4.1 Development of Force",
			docTitle: "ignored",
			want:     "Ch 4: Newton's Laws",
		},
		{
			name:     "collapses internal whitespace",
			nodeText: "Chapter   2:\tMotion",
			docTitle: "",
			want:     "Chapter 2: Motion",
		},
		{
			name:     "falls back to document title",
			nodeText: "4.1 Forces\n4.2 Mass",
			docTitle: "Physics E-Book",
			want:     "Physics E-Book",
		},
		{
			name:     "last resort",
			nodeText: "",
			docTitle: "  ",
			want:     "Chapter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChapterTitle(tt.nodeText, tt.docTitle); got != tt.want {
				t.Errorf("ChapterTitle = %q, want %q", got, tt.want)
			}
		})
	}
}
