package snapshot

import (
	"strings"

	"golang.org/x/net/html"
)

// The engine supports the selector subset the analyzers need:
//
//	tag            "h2", "img", "input"
//	.class         ".nav"
//	#id            "#main"
//	tag.class      "a.skip-link"
//	tag[attr]      "input[required]"
//	tag[attr=val]  "input[type=checkbox]"
//	A B            descendant combinator
//
// Pseudo-classes and sibling combinators are intentionally absent; the
// relationship queries on Element cover those traversals explicitly.

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
}

// querySelectorAll returns all nodes under root matching the selector.
func querySelectorAll(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return nil
	}

	matches := matchSimple(root, parts[0])
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		seen := make(map[*html.Node]bool)
		for _, parent := range matches {
			for _, m := range matchSimple(parent, parts[i]) {
				if m != parent && !seen[m] {
					seen[m] = true
					next = append(next, m)
				}
			}
		}
		matches = next
	}
	return matches
}

// matchSimple finds all nodes in root's subtree matching one selector part.
func matchSimple(root *html.Node, part string) []*html.Node {
	sel := parseSimpleSelector(part)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matchesSimple(n, sel) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

// matchesCompound checks a possibly descendant-combined selector against a
// node: the last part must match the node, earlier parts must match
// ancestors in order.
func matchesCompound(n *html.Node, selector string) bool {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return false
	}
	if !matchesSimple(n, parseSimpleSelector(parts[len(parts)-1])) {
		return false
	}
	anc := n.Parent
	for i := len(parts) - 2; i >= 0; i-- {
		sel := parseSimpleSelector(parts[i])
		for {
			if anc == nil {
				return false
			}
			if anc.Type == html.ElementNode && matchesSimple(anc, sel) {
				anc = anc.Parent
				break
			}
			anc = anc.Parent
		}
	}
	return true
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(part string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(part, '['); idx >= 0 {
		attrPart := strings.TrimRight(part[idx+1:], "]")
		part = part[:idx]
		if eq := strings.IndexByte(attrPart, '='); eq >= 0 {
			s.attrKey = attrPart[:eq]
			s.attrVal = strings.Trim(attrPart[eq+1:], `"'`)
		} else {
			s.attrKey = attrPart
		}
	}
	if idx := strings.IndexByte(part, '#'); idx >= 0 {
		s.id = part[idx+1:]
		part = part[:idx]
	}
	if idx := strings.IndexByte(part, '.'); idx >= 0 {
		s.class = part[idx+1:]
		part = part[:idx]
	}
	s.tag = strings.ToLower(part)
	return s
}

func matchesSimple(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && s.tag != "*" && !strings.EqualFold(n.Data, s.tag) {
		return false
	}
	if s.id != "" && attrValue(n, "id") != s.id {
		return false
	}
	if s.class != "" {
		found := false
		for _, c := range strings.Fields(attrValue(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.attrKey != "" {
		has := false
		var val string
		for _, a := range n.Attr {
			if a.Key == s.attrKey {
				has = true
				val = a.Val
				break
			}
		}
		if !has {
			return false
		}
		if s.attrVal != "" && val != s.attrVal {
			return false
		}
	}
	return true
}
