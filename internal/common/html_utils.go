package common

import (
	"strings"

	"golang.org/x/net/html"
)

// TextLines returns the non-empty, trimmed text lines rendered under node, in document order.
// Separate text nodes are treated as separate lines, which approximates innerText for the
// block-structured buttons on a place detail pane.
func TextLines(node *html.Node) []string {
	var lines []string

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			for _, line := range strings.Split(n.Data, "\n") {
				if line = CleanText(line); line != "" {
					lines = append(lines, line)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	if node != nil {
		traverse(node)
	}
	return lines
}

// LastTextLine returns the last rendered text line under node, or "" when there is none.
func LastTextLine(node *html.Node) string {
	lines := TextLines(node)
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

// CleanText collapses whitespace, including non-breaking spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// GetAttribute gets the value of an attribute from a node
func GetAttribute(node *html.Node, attrKey string) string {
	if node == nil || node.Type != html.ElementNode {
		return ""
	}
	for _, attr := range node.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}
