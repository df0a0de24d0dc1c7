package snapshot

import "strings"

// Stylesheet is one source of CSS rules attached to a page. A sheet whose
// rules could not be read (cross-origin) is marked Denied with empty Rules;
// analyzers check the flag as ordinary control flow.
type Stylesheet struct {
	Href   string // "" for inline <style> blocks
	Denied bool
	Rules  []Rule
}

// Rule is one declaration block.
type Rule struct {
	Selectors []string          // comma group, individually trimmed
	Media     string            // enclosing @media condition, "" when none
	Props     map[string]string // property -> value, lowercased keys
}

// Prop returns a declared property value ("" when absent).
func (r Rule) Prop(name string) string { return r.Props[strings.ToLower(name)] }

// Style returns the element's effective value for a CSS property: the last
// matching non-media rule across all readable sheets, overridden by the
// inline style attribute. This is a cascade approximation, not a layout
// engine; the heuristics only need coarse signals (display, position,
// order, flex-direction).
func (e Element) Style(prop string) string {
	if e.node == nil {
		return ""
	}
	prop = strings.ToLower(prop)
	val := ""
	if e.page != nil {
		for _, sheet := range e.page.sheets {
			if sheet.Denied {
				continue
			}
			for _, rule := range sheet.Rules {
				if rule.Media != "" {
					continue
				}
				if v, ok := rule.Props[prop]; ok && e.matchesAnySelector(rule.Selectors) {
					val = v
				}
			}
		}
	}
	if inline := parseInlineStyle(e.Attr("style")); inline[prop] != "" {
		val = inline[prop]
	}
	return val
}

func (e Element) matchesAnySelector(selectors []string) bool {
	for _, sel := range selectors {
		if isSupportedSelector(sel) && matchesCompound(e.node, sel) {
			return true
		}
	}
	return false
}

// isSupportedSelector filters out selectors the engine cannot evaluate
// (pseudo-elements/classes, sibling combinators). Those rules still appear
// in Stylesheets() for analyzers that inspect them textually.
func isSupportedSelector(sel string) bool {
	return !strings.ContainsAny(sel, ":>+~")
}

// parseInlineStyle splits a style attribute into a property map.
func parseInlineStyle(style string) map[string]string {
	if style == "" {
		return nil
	}
	props := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		if k, v, ok := splitDecl(decl); ok {
			props[k] = v
		}
	}
	return props
}

// parseCSS parses a stylesheet into rules. It handles comments, comma
// selector groups, and one level of @media nesting; other at-rules are
// skipped. Good enough for heuristic inspection, by no means a CSS parser.
func parseCSS(text string) []Rule {
	text = stripComments(text)
	var rules []Rule
	parseBlockList(text, "", &rules)
	return rules
}

func parseBlockList(text, media string, rules *[]Rule) {
	for {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			return
		}
		prelude := strings.TrimSpace(text[:open])
		rest := text[open+1:]

		if strings.HasPrefix(prelude, "@media") {
			body, after, ok := untilMatchingBrace(rest)
			if !ok {
				return
			}
			cond := strings.TrimSpace(strings.TrimPrefix(prelude, "@media"))
			parseBlockList(body, cond, rules)
			text = after
			continue
		}
		if strings.HasPrefix(prelude, "@") {
			// Other at-rules: skip their block wholesale.
			_, after, ok := untilMatchingBrace(rest)
			if !ok {
				return
			}
			text = after
			continue
		}

		close := strings.IndexByte(rest, '}')
		if close < 0 {
			return
		}
		body := rest[:close]
		text = rest[close+1:]

		props := make(map[string]string)
		for _, decl := range strings.Split(body, ";") {
			if k, v, ok := splitDecl(decl); ok {
				props[k] = v
			}
		}
		if len(props) == 0 {
			continue
		}
		var selectors []string
		for _, s := range strings.Split(prelude, ",") {
			if s = strings.TrimSpace(s); s != "" {
				selectors = append(selectors, s)
			}
		}
		if len(selectors) == 0 {
			continue
		}
		*rules = append(*rules, Rule{Selectors: selectors, Media: media, Props: props})
	}
}

// untilMatchingBrace returns the content up to the brace matching an
// already-consumed '{', plus the remainder after it.
func untilMatchingBrace(text string) (body, rest string, ok bool) {
	depth := 1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[:i], text[i+1:], true
			}
		}
	}
	return "", "", false
}

func splitDecl(decl string) (key, val string, ok bool) {
	idx := strings.IndexByte(decl, ':')
	if idx < 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(decl[:idx]))
	val = strings.TrimSpace(decl[idx+1:])
	if key == "" || val == "" {
		return "", "", false
	}
	return key, val, true
}

func stripComments(text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, "/*")
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:start])
		end := strings.Index(text[start+2:], "*/")
		if end < 0 {
			return b.String()
		}
		text = text[start+2+end+2:]
	}
}
