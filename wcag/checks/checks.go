// Package checks holds the criterion analyzers: named pure functions over a
// page snapshot that emit raw heuristic hits. An analyzer never touches
// status or severity; it only reports what it saw, tagged with a check id.
// The normalizer and aggregator turn hits into the stable report schema.
//
// Analyzers are registered in an ordered table (Registry) so checks can be
// added or removed without touching the aggregation layer. A cluster
// analyzer may cover several related criteria.
package checks

import (
	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
)

// Config carries the tunable numeric thresholds. All fields have documented
// defaults; tests pin them explicitly for determinism.
type Config struct {
	// MaxParagraphRun is the longest run of consecutive paragraphs allowed
	// without an intervening heading before 2.4.10 flags it. Default 5.
	MaxParagraphRun int `json:"max_paragraph_run" yaml:"max_paragraph_run"`

	// MaxWordsPerHeading is the word budget one heading may govern before
	// 2.4.10 flags the section as under-structured. Default 500.
	MaxWordsPerHeading int `json:"max_words_per_heading" yaml:"max_words_per_heading"`

	// MaxSkipLinkIndex is how many leading links are inspected when looking
	// for a skip link. Default 3.
	MaxSkipLinkIndex int `json:"max_skip_link_index" yaml:"max_skip_link_index"`

	// ExcerptBytes bounds captured outerHTML per hit. Default 240.
	ExcerptBytes int `json:"excerpt_bytes" yaml:"excerpt_bytes"`
}

// Defaults fills zero fields with the documented defaults.
func (c *Config) Defaults() {
	if c.MaxParagraphRun <= 0 {
		c.MaxParagraphRun = 5
	}
	if c.MaxWordsPerHeading <= 0 {
		c.MaxWordsPerHeading = 500
	}
	if c.MaxSkipLinkIndex <= 0 {
		c.MaxSkipLinkIndex = 3
	}
	if c.ExcerptBytes <= 0 {
		c.ExcerptBytes = 240
	}
}

// RunFunc is the analyzer contract: read-only over the snapshot, no side
// effects, deterministic for a given (snapshot, config) pair.
type RunFunc func(p *snapshot.Page, cfg Config) []wcag.RawHit

// Analyzer is one registry entry.
type Analyzer struct {
	Name     string
	Criteria []string // criterion ids this analyzer produces hits for
	Run      RunFunc
}

// Registry returns the ordered analyzer table. Order only affects log
// output; results are order-independent by construction.
func Registry() []Analyzer {
	return []Analyzer{
		{Name: "alt-text", Criteria: []string{"1.1.1"}, Run: AnalyzeAltText},
		{Name: "labels", Criteria: []string{"1.3.1"}, Run: AnalyzeLabels},
		{Name: "visual-order", Criteria: []string{"1.3.2"}, Run: AnalyzeVisualOrder},
		{Name: "sensory", Criteria: []string{"1.3.3"}, Run: AnalyzeSensory},
		{Name: "orientation", Criteria: []string{"1.3.4"}, Run: AnalyzeOrientation},
		{Name: "skip-link", Criteria: []string{"2.4.1"}, Run: AnalyzeSkipLink},
		{Name: "focus-order", Criteria: []string{"2.4.3"}, Run: AnalyzeFocusOrder},
		{Name: "headings", Criteria: []string{"2.4.6", "2.4.10"}, Run: AnalyzeHeadings},
		{Name: "control-names", Criteria: []string{"4.1.2"}, Run: AnalyzeControlNames},
	}
}

// ByCriterion maps each criterion id to the analyzers covering it.
func ByCriterion() map[string][]Analyzer {
	m := make(map[string][]Analyzer)
	for _, a := range Registry() {
		for _, id := range a.Criteria {
			m[id] = append(m[id], a)
		}
	}
	return m
}

// hit is a small constructor keeping analyzer bodies terse.
func hit(checkID, criterionID string, el snapshot.Element, cfg Config, desc, help string) wcag.RawHit {
	return wcag.RawHit{
		CheckID:     checkID,
		CriterionID: criterionID,
		Description: desc,
		Selector:    el.Locator(),
		HTML:        el.OuterHTML(cfg.ExcerptBytes),
		Help:        help,
	}
}

// deniedSheets lists hrefs of stylesheets whose rules are unreadable.
func deniedSheets(p *snapshot.Page) []string {
	var hrefs []string
	for _, s := range p.Stylesheets() {
		if s.Denied {
			hrefs = append(hrefs, s.Href)
		}
	}
	return hrefs
}
