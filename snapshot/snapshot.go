// Package snapshot provides a frozen, queryable view of one rendered page's
// DOM and CSSOM state. A Page is built once (from a static HTML stream or
// from a browser provider's serialized DOM) and is read-only afterwards, so
// analyzers can share it freely across goroutines.
//
// The capability set is deliberately small: selector queries returning
// ordered element handles, per-element text/attribute/style lookup, bounded
// outerHTML excerpts, relationship traversal, and stylesheet-rule access
// where cross-origin restrictions surface as a typed denial instead of an
// error.
package snapshot

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is an immutable snapshot of one rendered page.
type Page struct {
	url    string
	engine string
	doc    *html.Node
	sheets []Stylesheet
}

// Option configures snapshot construction.
type Option func(*Page)

// WithEngine records the engine/viewport identifier the snapshot was taken
// with (e.g. "chromium-1280x800"). It flows into PageReport identity.
func WithEngine(engine string) Option {
	return func(p *Page) { p.engine = engine }
}

// WithStylesheet attaches an external stylesheet whose rules the provider
// managed to read. Providers that hit a cross-origin restriction should use
// WithDeniedStylesheet instead of dropping the sheet silently.
func WithStylesheet(href, cssText string) Option {
	return func(p *Page) {
		p.sheets = append(p.sheets, Stylesheet{Href: href, Rules: parseCSS(cssText)})
	}
}

// WithDeniedStylesheet records a stylesheet that exists but whose rules are
// not readable (cross-origin). Analyzers treat this as ordinary control
// flow, not an error.
func WithDeniedStylesheet(href string) Option {
	return func(p *Page) {
		p.sheets = append(p.sheets, Stylesheet{Href: href, Denied: true})
	}
}

// Parse builds a Page from an HTML stream. Inline <style> blocks are parsed
// into rules; <link rel="stylesheet"> references become denied sheets unless
// the caller supplies their content via WithStylesheet (a static parse has
// no way to fetch them, which is exactly the cross-origin situation).
func Parse(pageURL string, r io.Reader, opts ...Option) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: parse %s: %w", pageURL, err)
	}
	p := &Page{url: pageURL, doc: doc}
	for _, o := range opts {
		o(p)
	}
	p.collectInlineSheets()
	return p, nil
}

// ParseString is Parse over an in-memory document. Test helper and the
// browser provider's entry point.
func ParseString(pageURL, htmlText string, opts ...Option) (*Page, error) {
	return Parse(pageURL, strings.NewReader(htmlText), opts...)
}

// URL returns the page's source URL.
func (p *Page) URL() string { return p.url }

// Engine returns the engine/viewport identifier, or "" when unset.
func (p *Page) Engine() string { return p.engine }

// Stylesheets returns all known sheets, inline first, in document order.
func (p *Page) Stylesheets() []Stylesheet { return p.sheets }

// Root returns the root element handle (<html>).
func (p *Page) Root() Element {
	for c := p.doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return Element{page: p, node: c}
		}
	}
	return Element{page: p, node: p.doc}
}

// Query returns ordered element handles matching a selector. Comma groups
// are supported; duplicates across groups are collapsed in document order.
func (p *Page) Query(selector string) []Element {
	seen := make(map[*html.Node]bool)
	var nodes []*html.Node
	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for _, n := range querySelectorAll(p.doc, part) {
			if !seen[n] {
				seen[n] = true
				nodes = append(nodes, n)
			}
		}
	}
	sortDocumentOrder(p.doc, nodes)
	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = Element{page: p, node: n}
	}
	return out
}

// QueryOne returns the first match, if any.
func (p *Page) QueryOne(selector string) (Element, bool) {
	els := p.Query(selector)
	if len(els) == 0 {
		return Element{}, false
	}
	return els[0], true
}

// collectInlineSheets walks the tree for <style> blocks and records
// <link rel="stylesheet"> hrefs that nobody supplied content for as denied.
func (p *Page) collectInlineSheets() {
	supplied := make(map[string]bool)
	for _, s := range p.sheets {
		supplied[s.Href] = true
	}
	var inline []Stylesheet
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Style:
				if n.FirstChild != nil {
					inline = append(inline, Stylesheet{Rules: parseCSS(n.FirstChild.Data)})
				}
			case atom.Link:
				if strings.EqualFold(attrValue(n, "rel"), "stylesheet") {
					href := attrValue(n, "href")
					if href != "" && !supplied[href] {
						inline = append(inline, Stylesheet{Href: href, Denied: true})
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(p.doc)
	// Inline/document sheets precede provider-supplied ones in cascade order.
	p.sheets = append(inline, p.sheets...)
}

// sortDocumentOrder sorts nodes by pre-order position in the tree.
func sortDocumentOrder(root *html.Node, nodes []*html.Node) {
	if len(nodes) < 2 {
		return
	}
	pos := make(map[*html.Node]int, len(nodes))
	want := make(map[*html.Node]bool, len(nodes))
	for _, n := range nodes {
		want[n] = true
	}
	i := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if want[n] {
			pos[n] = i
			i++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	for left := 0; left < len(nodes); left++ {
		for right := left + 1; right < len(nodes); right++ {
			if pos[nodes[right]] < pos[nodes[left]] {
				nodes[left], nodes[right] = nodes[right], nodes[left]
			}
		}
	}
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
