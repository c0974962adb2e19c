package epub

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
)

const ncxMediaType = "application/x-dtbncx+xml"

// ncxDocument is the EPUB 2 navigation control file.
type ncxDocument struct {
	NavMap struct {
		NavPoints []ncxNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxNavPoint struct {
	Label    string        `xml:"navLabel>text"`
	Children []ncxNavPoint `xml:"navPoint"`
}

// Navigation returns the book outline. The NCX referenced by the spine is preferred,
// then any NCX in the manifest, then the EPUB 3 nav document. A book with neither
// has an empty outline.
func (b *Book) Navigation() ([]domain.TocNode, error) {
	if item, ok := b.ncxItem(); ok {
		raw, err := b.ReadItem(item)
		if err != nil {
			return nil, fmt.Errorf("read ncx: %w", err)
		}
		return parseNCX(raw)
	}
	if item, ok := b.navItem(); ok {
		raw, err := b.ReadItem(item)
		if err != nil {
			return nil, fmt.Errorf("read nav document: %w", err)
		}
		return parseNavDocument(raw)
	}
	return nil, nil
}

func (b *Book) ncxItem() (Item, bool) {
	if b.spineTOC != "" {
		for _, item := range b.items {
			if item.ID == b.spineTOC {
				return item, true
			}
		}
	}
	for _, item := range b.items {
		if strings.EqualFold(item.MediaType, ncxMediaType) {
			return item, true
		}
	}
	return Item{}, false
}

func (b *Book) navItem() (Item, bool) {
	for _, item := range b.items {
		if item.hasProperty("nav") {
			return item, true
		}
	}
	return Item{}, false
}

func parseNCX(raw []byte) ([]domain.TocNode, error) {
	var doc ncxDocument
	if err := unmarshalLenient(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse ncx: %w", err)
	}
	return convertNavPoints(doc.NavMap.NavPoints), nil
}

func convertNavPoints(points []ncxNavPoint) []domain.TocNode {
	nodes := make([]domain.TocNode, 0, len(points))
	for _, p := range points {
		node := domain.TocNode{Title: collapseSpace(p.Label)}
		if len(p.Children) > 0 {
			node.Children = convertNavPoints(p.Children)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func parseNavDocument(raw []byte) ([]domain.TocNode, error) {
	doc, err := html.Parse(bytes.NewReader(normalizeXHTML(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse nav document: %w", err)
	}
	nav := findTOCNav(doc)
	if nav == nil {
		return nil, nil
	}
	list := findElement(nav, atom.Ol)
	if list == nil {
		return nil, nil
	}
	return convertNavList(list), nil
}

func convertNavList(list *html.Node) []domain.TocNode {
	var nodes []domain.TocNode
	for li := list.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		var node domain.TocNode
		labelled := false
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.A, atom.Span:
				if !labelled {
					node.Title = collapseSpace(textOf(c))
					labelled = true
				}
			case atom.Ol:
				node.Children = append(node.Children, convertNavList(c)...)
			}
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// findTOCNav prefers <nav epub:type="toc"> and falls back to the first <nav>.
func findTOCNav(root *html.Node) *html.Node {
	var first, toc *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if toc != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Nav {
			if first == nil {
				first = n
			}
			if isTOCNav(n) {
				toc = n
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if toc != nil {
		return toc
	}
	return first
}

func isTOCNav(n *html.Node) bool {
	for _, attr := range n.Attr {
		key := attr.Key
		if attr.Namespace != "" {
			key = attr.Namespace + ":" + key
		}
		if strings.HasSuffix(key, "type") && strings.Contains(key, "epub") {
			for _, v := range strings.Fields(attr.Val) {
				if v == "toc" {
					return true
				}
			}
		}
	}
	return false
}

func findElement(root *html.Node, a atom.Atom) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
