package preface

import "strings"

const (
	DefaultProbeChars = 200
	DefaultMaxChars   = 1000
)

var DefaultKeywords = []string{"서문", "머리말", "프롤로그", "시작하며"}

// Detector decides whether a content part is a book's preface. A part matches when
// its name, or the first ProbeChars characters of its text, contain a keyword.
type Detector struct {
	Keywords   []string
	ProbeChars int
	MaxChars   int
}

func NewDetector(keywords []string, probeChars, maxChars int) Detector {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultKeywords...)
	}
	if probeChars <= 0 {
		probeChars = DefaultProbeChars
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return Detector{
		Keywords:   cleaned,
		ProbeChars: probeChars,
		MaxChars:   maxChars,
	}
}

func DefaultDetector() Detector {
	return NewDetector(DefaultKeywords, DefaultProbeChars, DefaultMaxChars)
}

func (d Detector) Matches(name, text string) bool {
	probe := Truncate(text, d.ProbeChars)
	for _, kw := range d.Keywords {
		if strings.Contains(name, kw) || strings.Contains(probe, kw) {
			return true
		}
	}
	return false
}

// Clip cuts a matched preface to MaxChars characters.
func (d Detector) Clip(text string) string {
	return Truncate(text, d.MaxChars)
}

// Truncate keeps the first n characters (runes) of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
