package checks

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
)

// vagueHeadingRE matches headings that carry no scent of their section's
// content. The list is deliberately short; this is a risk signal, not a
// language model.
var vagueHeadingRE = regexp.MustCompile(`(?i)^(more|info|information|details?|click here|here|read more|learn more|misc|other|untitled|welcome|intro(duction)?)[.!]?$`)

// AnalyzeHeadings is the cluster analyzer for 2.4.6 Headings and Labels and
// 2.4.10 Section Headings. Both criteria read the same heading outline, so
// one pass serves both.
func AnalyzeHeadings(p *snapshot.Page, cfg Config) []wcag.RawHit {
	var hits []wcag.RawHit

	headings := p.Query("h1, h2, h3, h4, h5, h6")

	// 2.4.6: vague, empty, duplicate headings.
	seen := make(map[string]int)
	for _, h := range headings {
		text := h.Text()
		if text == "" {
			hits = append(hits, hit("heading-empty", "2.4.6", h, cfg,
				"heading is empty",
				"Remove the empty heading or give it text; assistive tech navigates by headings."))
			continue
		}
		if vagueHeadingRE.MatchString(text) {
			hits = append(hits, hit("heading-vague", "2.4.6", h, cfg,
				fmt.Sprintf("heading %q is not descriptive", text),
				"Rewrite the heading so it describes its section's topic or purpose."))
		}
		key := strings.ToLower(text)
		seen[key]++
		if seen[key] == 2 {
			hits = append(hits, hit("heading-duplicate", "2.4.6", h, cfg,
				fmt.Sprintf("heading %q appears more than once", text),
				"Distinguish repeated headings; identical headings make the outline ambiguous."))
		}
	}

	// 2.4.10: long content runs without structure. Walk the body's block
	// sequence and track consecutive paragraphs and words per heading.
	body, ok := p.QueryOne("body")
	if !ok {
		return hits
	}
	hits = append(hits, scanSections(body, cfg)...)
	return hits
}

// scanSections walks block elements in document order counting paragraph
// runs and words governed by the current heading.
func scanSections(body snapshot.Element, cfg Config) []wcag.RawHit {
	var hits []wcag.RawHit

	type sectionState struct {
		heading      snapshot.Element
		headingText  string
		words        int
		flagged      bool
		run          int
		runStart     snapshot.Element
		runFlagged   bool
		sawHeading   bool
	}
	st := &sectionState{}

	flushWords := func() {
		if st.sawHeading && !st.flagged && st.words > cfg.MaxWordsPerHeading {
			st.flagged = true
			hits = append(hits, hit("section-heading-absent", "2.4.10", st.heading, cfg,
				fmt.Sprintf("heading %q governs %d words (limit %d) without subheadings",
					st.headingText, st.words, cfg.MaxWordsPerHeading),
				"Break long sections up with subheadings so readers can navigate."))
		}
	}

	var walk func(el snapshot.Element)
	walk = func(el snapshot.Element) {
		for _, child := range el.Children() {
			switch child.Tag() {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				flushWords()
				st.heading = child
				st.headingText = child.Text()
				st.words = 0
				st.flagged = false
				st.sawHeading = true
				st.run = 0
				st.runFlagged = false
			case "p":
				st.words += len(strings.Fields(child.Text()))
				st.run++
				if st.run == 1 {
					st.runStart = child
					st.runFlagged = false
				}
				if st.run > cfg.MaxParagraphRun && !st.runFlagged {
					st.runFlagged = true
					hits = append(hits, hit("section-heading-sparse", "2.4.10", st.runStart, cfg,
						fmt.Sprintf("more than %d consecutive paragraphs without a heading", cfg.MaxParagraphRun),
						"Insert headings to structure long stretches of prose."))
				}
			case "script", "style", "nav", "header", "footer":
				// Boilerplate does not count toward prose structure.
			default:
				walk(child)
			}
		}
	}
	walk(body)
	flushWords()
	return hits
}
