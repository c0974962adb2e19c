package filename

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var parenthesized = regexp.MustCompile(`\s*\([^)]*\)`)

const (
	minAuthorRunes  = 2
	maxAuthorTokens = 3
)

// Parser splits "Title Author" style filename stems.
type Parser struct{}

func NewParser() Parser {
	return Parser{}
}

func (Parser) Parse(stem string) (string, string) {
	return Parse(stem)
}

// Parse returns (title, author) for a filename stem without directory or extension.
//
// Parenthesized groups such as "(2020)" or "(2판)" are dropped. When such a group
// separates a title from up to three trailing words that each look like a name,
// those words are the author; otherwise the last space-separated token is. Numeric or single-character
// candidates are rejected and the whole cleaned stem becomes the title.
func Parse(stem string) (string, string) {
	cleaned := strings.TrimSpace(parenthesized.ReplaceAllString(stem, ""))

	if title, author, ok := splitAtLastGroup(stem); ok {
		return title, author
	}

	idx := strings.LastIndex(cleaned, " ")
	if idx < 0 {
		return cleaned, ""
	}
	title := strings.TrimSpace(cleaned[:idx])
	author := strings.TrimSpace(cleaned[idx+1:])
	if !plausibleAuthor(author) {
		return cleaned, ""
	}
	return title, author
}

// splitAtLastGroup handles "Title (edition) First Last".
func splitAtLastGroup(stem string) (string, string, bool) {
	locs := parenthesized.FindAllStringIndex(stem, -1)
	if len(locs) == 0 {
		return "", "", false
	}
	last := locs[len(locs)-1]

	head := strings.TrimSpace(parenthesized.ReplaceAllString(stem[:last[0]], ""))
	tail := strings.TrimSpace(stem[last[1]:])
	if head == "" || tail == "" {
		return "", "", false
	}
	tokens := strings.Fields(tail)
	if len(tokens) > maxAuthorTokens {
		return "", "", false
	}
	for _, token := range tokens {
		if !plausibleAuthor(token) {
			return "", "", false
		}
	}
	return head, strings.Join(tokens, " "), true
}

func plausibleAuthor(candidate string) bool {
	if utf8.RuneCountInString(candidate) < minAuthorRunes {
		return false
	}
	return !isDigits(candidate)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
