package checks

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
)

// labelableTypes are input types that need a programmatic label. Buttons
// and hidden inputs are named by other means.
var labelableTypes = map[string]bool{
	"": true, "text": true, "email": true, "password": true, "search": true,
	"tel": true, "url": true, "number": true, "date": true, "checkbox": true,
	"radio": true, "file": true,
}

// AnalyzeLabels covers 1.3.1 Info and Relationships: form controls without
// a programmatic label, labels pointing at nothing, and meaningful text
// injected through CSS pseudo-elements.
func AnalyzeLabels(p *snapshot.Page, cfg Config) []wcag.RawHit {
	var hits []wcag.RawHit

	// Controls needing labels.
	labelFor := make(map[string]bool)
	for _, l := range p.Query("label[for]") {
		labelFor[l.Attr("for")] = true
	}

	controls := p.Query("input, select, textarea")
	for _, c := range controls {
		if c.Tag() == "input" && !labelableTypes[strings.ToLower(c.Attr("type"))] {
			continue
		}
		if isHiddenFromAT(c) {
			continue
		}
		if hasProgrammaticLabel(c, labelFor) {
			continue
		}
		hits = append(hits, hit("input-label-missing", "1.3.1", c, cfg,
			fmt.Sprintf("form control <%s> has no associated label", c.Tag()),
			"Associate a <label for=...>, wrap the control in a label, or add aria-label."))
	}

	// Dangling label[for].
	for _, l := range p.Query("label[for]") {
		id := l.Attr("for")
		if id == "" {
			continue
		}
		if _, ok := p.QueryOne("#" + id); !ok {
			hits = append(hits, hit("label-for-dangling", "1.3.1", l, cfg,
				fmt.Sprintf("label references id %q which does not exist", id),
				"Point the for attribute at the control's id."))
		}
	}

	// Pseudo-element content carrying real text lives only in CSS and is
	// invisible to assistive tech.
	hits = append(hits, pseudoContentHits(p, cfg)...)

	// Cross-origin sheets cannot be inspected for pseudo-content; record
	// the soft skip once.
	if denied := deniedSheets(p); len(denied) > 0 {
		hits = append(hits, wcag.RawHit{
			CheckID:     "stylesheet-denied",
			CriterionID: "1.3.1",
			Description: fmt.Sprintf("%d stylesheet(s) not readable (cross-origin); pseudo-element content not checked", len(denied)),
			Selector:    "link[rel=stylesheet]",
			Target:      denied[0],
		})
	}

	return hits
}

func hasProgrammaticLabel(c snapshot.Element, labelFor map[string]bool) bool {
	if id := c.Attr("id"); id != "" && labelFor[id] {
		return true
	}
	if _, ok := c.Closest("label"); ok {
		return true
	}
	if strings.TrimSpace(c.Attr("aria-label")) != "" ||
		c.Attr("aria-labelledby") != "" ||
		strings.TrimSpace(c.Attr("title")) != "" {
		return true
	}
	return false
}

// pseudoContentHits scans readable sheets for ::before/::after rules whose
// content property injects actual text.
func pseudoContentHits(p *snapshot.Page, cfg Config) []wcag.RawHit {
	var hits []wcag.RawHit
	for _, sheet := range p.Stylesheets() {
		if sheet.Denied {
			continue
		}
		for _, rule := range sheet.Rules {
			for _, sel := range rule.Selectors {
				if !strings.Contains(sel, "::before") && !strings.Contains(sel, "::after") &&
					!strings.HasSuffix(sel, ":before") && !strings.HasSuffix(sel, ":after") {
					continue
				}
				content := strings.Trim(rule.Prop("content"), `"' `)
				if !isMeaningfulContent(content) {
					continue
				}
				hits = append(hits, wcag.RawHit{
					CheckID:     "pseudo-content-text",
					CriterionID: "1.3.1",
					Description: fmt.Sprintf("pseudo-element %s injects text %q via CSS", sel, content),
					Selector:    sel,
					Help:        "Move meaningful text into the document; CSS-injected text is unreliable for assistive tech.",
				})
				break
			}
		}
	}
	return hits
}

// isMeaningfulContent filters decorative content values: empty strings,
// counters, single punctuation glyphs.
func isMeaningfulContent(content string) bool {
	if content == "" || content == "none" || content == "normal" {
		return false
	}
	if strings.HasPrefix(content, "counter(") || strings.HasPrefix(content, "attr(") ||
		strings.HasPrefix(content, "url(") {
		return false
	}
	// A couple of glyphs is decoration; words are content.
	return len(strings.Fields(content)) >= 1 && len([]rune(content)) > 2
}
