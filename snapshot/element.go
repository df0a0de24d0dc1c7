package snapshot

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is a read-only handle on one element node of a Page. The zero
// Element is invalid; handles come from Page.Query and traversal methods.
type Element struct {
	page *Page
	node *html.Node
}

// Valid reports whether the handle points at an element.
func (e Element) Valid() bool { return e.node != nil && e.node.Type == html.ElementNode }

// Tag returns the lowercase tag name.
func (e Element) Tag() string {
	if e.node == nil {
		return ""
	}
	return strings.ToLower(e.node.Data)
}

// Attr returns an attribute value ("" when absent).
func (e Element) Attr(key string) string {
	if e.node == nil {
		return ""
	}
	return attrValue(e.node, key)
}

// HasAttr reports attribute presence, including empty-valued attributes
// (alt="" is present and meaningful).
func (e Element) HasAttr(key string) bool {
	if e.node == nil {
		return false
	}
	for _, a := range e.node.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// Attrs returns a copy of the attribute mapping.
func (e Element) Attrs() map[string]string {
	if e.node == nil {
		return nil
	}
	m := make(map[string]string, len(e.node.Attr))
	for _, a := range e.node.Attr {
		m[a.Key] = a.Val
	}
	return m
}

// Text returns the element's visible text content with whitespace collapsed.
// Script and style subtrees are skipped.
func (e Element) Text() string {
	if e.node == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return strings.Join(strings.Fields(b.String()), " ")
}

// OuterHTML renders the element bounded to max bytes. The bound is applied
// after rendering so the excerpt is always a prefix of real markup.
func (e Element) OuterHTML(max int) string {
	if e.node == nil {
		return ""
	}
	var b strings.Builder
	if err := html.Render(&b, e.node); err != nil {
		return ""
	}
	s := b.String()
	if max > 0 && len(s) > max {
		cut := max
		for cut > 0 && s[cut]&0xC0 == 0x80 { // don't split a rune
			cut--
		}
		return s[:cut] + "…"
	}
	return s
}

// Parent returns the parent element handle.
func (e Element) Parent() (Element, bool) {
	if e.node == nil {
		return Element{}, false
	}
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return Element{page: e.page, node: p}, true
		}
	}
	return Element{}, false
}

// Children returns the element children in document order.
func (e Element) Children() []Element {
	if e.node == nil {
		return nil
	}
	var out []Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, Element{page: e.page, node: c})
		}
	}
	return out
}

// NextSibling returns the following element sibling.
func (e Element) NextSibling() (Element, bool) {
	if e.node == nil {
		return Element{}, false
	}
	for s := e.node.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return Element{page: e.page, node: s}, true
		}
	}
	return Element{}, false
}

// PrevSibling returns the preceding element sibling.
func (e Element) PrevSibling() (Element, bool) {
	if e.node == nil {
		return Element{}, false
	}
	for s := e.node.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return Element{page: e.page, node: s}, true
		}
	}
	return Element{}, false
}

// Matches reports whether the element matches a selector (descendant
// combinators check the ancestor chain).
func (e Element) Matches(selector string) bool {
	if e.node == nil {
		return false
	}
	return matchesCompound(e.node, selector)
}

// Closest walks up from the element (inclusive) to the first ancestor
// matching the selector.
func (e Element) Closest(selector string) (Element, bool) {
	if e.node == nil {
		return Element{}, false
	}
	for n := e.node; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && matchesCompound(n, selector) {
			return Element{page: e.page, node: n}, true
		}
	}
	return Element{}, false
}

// Query runs a selector scoped to this element's subtree.
func (e Element) Query(selector string) []Element {
	if e.node == nil {
		return nil
	}
	nodes := querySelectorAll(e.node, selector)
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		if n != e.node {
			out = append(out, Element{page: e.page, node: n})
		}
	}
	return out
}

// Locator returns a bounded CSS-path locator for the element, anchored at
// the nearest id'd ancestor when one exists. It is stable for a given
// snapshot and is the identity half of issue deduplication keys.
func (e Element) Locator() string {
	if e.node == nil {
		return ""
	}
	var parts []string
	for n := e.node; n != nil && n.Type == html.ElementNode; {
		if id := attrValue(n, "id"); id != "" {
			parts = append([]string{"#" + id}, parts...)
			break
		}
		parts = append([]string{segmentFor(n)}, parts...)
		p := n.Parent
		for p != nil && p.Type != html.ElementNode {
			p = p.Parent
		}
		n = p
	}
	const maxSegments = 8
	if len(parts) > maxSegments {
		parts = parts[len(parts)-maxSegments:]
	}
	return strings.Join(parts, " > ")
}

// segmentFor builds "tag:nth-of-type(i)" among same-tag element siblings.
func segmentFor(n *html.Node) string {
	tag := strings.ToLower(n.Data)
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && strings.EqualFold(s.Data, n.Data) {
			idx++
		}
	}
	if tag == "html" || tag == "body" || tag == "head" {
		return tag
	}
	return tag + ":nth-of-type(" + itoa(idx) + ")"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [8]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}
