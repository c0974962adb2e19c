package epub

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// XHTML allows <title/> and friends; an HTML parser would treat them as unterminated
// raw-text elements and swallow the rest of the document.
var selfClosingRawText = regexp.MustCompile(`(?i)<(title|script|style|textarea)(\s[^>]*)?/>`)

func normalizeXHTML(raw []byte) []byte {
	return selfClosingRawText.ReplaceAll(raw, []byte("<$1$2></$1>"))
}

// RenderText returns the plain text of an XHTML document with markup removed.
// Script and style bodies are not text.
func RenderText(raw []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(normalizeXHTML(raw)))
	if err != nil {
		return "", fmt.Errorf("parse xhtml: %w", err)
	}
	return textOf(doc), nil
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	appendText(&sb, n)
	return sb.String()
}

func appendText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendText(sb, c)
	}
}
