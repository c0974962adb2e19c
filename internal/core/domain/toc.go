package domain

import "strings"

// TocNode is one entry of a book's navigation tree. A node without children is a
// plain link; a node with children is a section heading.
type TocNode struct {
	Title    string
	Children []TocNode
}

// FlattenTOC renders the tree in pre-order, one "- title" line per node, indented
// by two spaces per level.
func FlattenTOC(nodes []TocNode) string {
	lines := appendTOCLines(nil, nodes, 0)
	return strings.Join(lines, "\n")
}

func appendTOCLines(lines []string, nodes []TocNode, depth int) []string {
	indent := strings.Repeat("  ", depth)
	for _, node := range nodes {
		lines = append(lines, indent+"- "+node.Title)
		if len(node.Children) > 0 {
			lines = appendTOCLines(lines, node.Children, depth+1)
		}
	}
	return lines
}
