// browser/dom/xpath.go
package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// UniqueXPath returns an XPath that selects exactly node within its
// document. The nearest ancestor-or-self carrying an id anchors the path.
// Nodes outside any document get a path relative to their detached root.
func UniqueXPath(node *html.Node) string {
	if node == nil {
		return ""
	}

	var segments []string
	anchored := false
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode || n.Data == "" {
			continue
		}
		if id := htmlquery.SelectAttr(n, "id"); id != "" {
			segments = append(segments, fmt.Sprintf(`//*[@id='%s']`, id))
			anchored = true
			break
		}
		segments = append(segments, fmt.Sprintf("%s[%d]", strings.ToLower(n.Data), siblingIndex(n)))
	}
	if len(segments) == 0 {
		return "/"
	}

	var sb strings.Builder
	if !anchored {
		sb.WriteString("/")
	}
	for i := len(segments) - 1; i >= 0; i-- {
		sb.WriteString(segments[i])
		if i > 0 {
			sb.WriteString("/")
		}
	}
	return sb.String()
}

// siblingIndex is the 1-based position of n among preceding siblings with the same tag.
func siblingIndex(n *html.Node) int {
	tag := strings.ToLower(n.Data)
	index := 1
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
			index++
		}
	}
	return index
}
