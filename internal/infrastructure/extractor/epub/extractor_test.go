package epub

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor/epub/epubtest"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/extractor/preface"
)

func nestedNav() []epubtest.NavPoint {
	return []epubtest.NavPoint{
		{Title: "A"},
		{Title: "B", Children: []epubtest.NavPoint{{Title: "C"}}},
		{Title: "D"},
	}
}

func TestExtractFlattensNCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	epubtest.Write(t, path, epubtest.Options{
		Nav:       nestedNav(),
		Documents: []epubtest.Document{{Name: "ch1.xhtml", Title: "1장", Body: "<p>본문</p>"}},
	})

	content, err := NewExtractor(preface.DefaultDetector()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "- A\n  - B\n    - C\n- D"
	if content.TOC != want {
		t.Fatalf("TOC = %q, want %q", content.TOC, want)
	}
	if content.Preface != "" {
		t.Fatalf("expected empty preface, got %q", content.Preface)
	}
}

func TestExtractFlattensNavDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	epubtest.Write(t, path, epubtest.Options{
		Nav:            nestedNav(),
		UseNavDocument: true,
	})

	content, err := NewExtractor(preface.DefaultDetector()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "- A\n  - B\n    - C\n- D"
	if content.TOC != want {
		t.Fatalf("TOC = %q, want %q", content.TOC, want)
	}
}

func TestExtractFirstPrefaceMatchWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	epubtest.Write(t, path, epubtest.Options{
		Nav: []epubtest.NavPoint{{Title: "들어가며"}},
		Documents: []epubtest.Document{
			{Name: "cover.xhtml", Title: "표지", Body: "<p>표지</p>"},
			{Name: "intro.xhtml", Title: "들어가며", Body: "<p>머리말</p><p>첫 번째 서문 본문</p>"},
			{Name: "prologue.xhtml", Title: "프롤로그", Body: "<p>두 번째 후보</p>"},
		},
	})

	content, err := NewExtractor(preface.DefaultDetector()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(content.Preface, "첫 번째 서문 본문") {
		t.Fatalf("expected first matching document, got %q", content.Preface)
	}
	if strings.Contains(content.Preface, "두 번째 후보") {
		t.Fatalf("scan must stop at first match, got %q", content.Preface)
	}
	if strings.Contains(content.Preface, "<p>") {
		t.Fatalf("preface must be plain text, got %q", content.Preface)
	}
}

func TestExtractMatchesPrefaceByItemName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	epubtest.Write(t, path, epubtest.Options{
		Documents: []epubtest.Document{
			{Name: "Text/시작하며.xhtml", Title: "0", Body: "<p>keyword only in file name</p>"},
		},
	})

	content, err := NewExtractor(preface.DefaultDetector()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(content.Preface, "keyword only in file name") {
		t.Fatalf("expected name-matched preface, got %q", content.Preface)
	}
	if content.TOC != "" {
		t.Fatalf("expected empty toc, got %q", content.TOC)
	}
}

func TestExtractIgnoresKeywordBeyondProbeWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	epubtest.Write(t, path, epubtest.Options{
		Documents: []epubtest.Document{
			{Name: "ch1.xhtml", Title: "1", Body: "<p>" + strings.Repeat("가", 300) + "서문</p>"},
		},
	})

	content, err := NewExtractor(preface.DefaultDetector()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if content.Preface != "" {
		t.Fatalf("expected no preface, got %d chars", len([]rune(content.Preface)))
	}
}

func TestExtractTruncatesPreface(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	epubtest.Write(t, path, epubtest.Options{
		Documents: []epubtest.Document{
			{Name: "preface.xhtml", Title: "서문", Body: "<p>" + strings.Repeat("나", 3000) + "</p>"},
		},
	})

	content, err := NewExtractor(preface.DefaultDetector()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if n := len([]rune(content.Preface)); n != preface.DefaultMaxChars {
		t.Fatalf("expected %d characters, got %d", preface.DefaultMaxChars, n)
	}
}

func TestExtractRejectsNonZipFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.epub")
	if err := os.WriteFile(path, []byte("this is not an epub"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := NewExtractor(preface.DefaultDetector()).Extract(context.Background(), path)
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtractMissingFile(t *testing.T) {
	_, err := NewExtractor(preface.DefaultDetector()).Extract(context.Background(), filepath.Join(t.TempDir(), "nope.epub"))
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestRenderTextHandlesSelfClosingTitle(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?><html><head><title/><style>p{color:red}</style></head><body><p>Hello <b>world</b></p><script>x()</script></body></html>`)
	text, err := RenderText(raw)
	if err != nil {
		t.Fatalf("RenderText() error = %v", err)
	}
	if strings.TrimSpace(text) != "Hello world" {
		t.Fatalf("RenderText() = %q", text)
	}
}

func TestParseNCXKeepsOrder(t *testing.T) {
	raw := []byte(`<ncx><navMap>
<navPoint><navLabel><text> Part
 One </text></navLabel>
  <navPoint><navLabel><text>1.1</text></navLabel></navPoint>
</navPoint>
<navPoint><navLabel><text>Part &amp; Two</text></navLabel></navPoint>
</navMap></ncx>`)

	nodes, err := parseNCX(raw)
	if err != nil {
		t.Fatalf("parseNCX() error = %v", err)
	}
	if len(nodes) != 2 || nodes[0].Title != "Part One" || nodes[1].Title != "Part & Two" {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
	if len(nodes[0].Children) != 1 || nodes[0].Children[0].Title != "1.1" {
		t.Fatalf("unexpected children: %+v", nodes[0].Children)
	}
}
