// Package matrix loads the audit test matrix: which pages to scan, on
// which engines, which criteria to run per page, and which criteria are
// forced to manual review. The matrix also carries analyzer threshold
// overrides so a deployment can tune heuristics without a rebuild.
package matrix

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/domaudit/wcag"
	"github.com/hazyhaar/domaudit/wcag/checks"
)

// Page declares one page under audit.
type Page struct {
	URL      string   `yaml:"url"`
	Engines  []string `yaml:"engines"`  // engine/viewport identifiers; default ["chromium-1280x800"]
	Criteria []string `yaml:"criteria"` // criterion ids to evaluate; empty = whole catalog
	Manual   []string `yaml:"manual"`   // criterion ids forced to manual review on this page
}

// Matrix is the top-level audit plan.
type Matrix struct {
	Pages      []Page         `yaml:"pages"`
	Manual     []string       `yaml:"manual"`     // criterion ids forced manual on every page
	Thresholds map[string]int `yaml:"thresholds"` // threshold name -> value override
}

// Threshold names accepted in the thresholds map, with their defaults in
// checks.Config:
//
//	max_paragraph_run     consecutive paragraphs allowed without a heading (5)
//	max_words_per_heading words one heading may govern without subheadings (500)
//	max_skip_link_index   links inspected for a skip link (3)
//	excerpt_bytes         bound on captured element excerpts (240)
const (
	ThresholdMaxParagraphRun    = "max_paragraph_run"
	ThresholdMaxWordsPerHeading = "max_words_per_heading"
	ThresholdMaxSkipLinkIndex   = "max_skip_link_index"
	ThresholdExcerptBytes       = "excerpt_bytes"
)

// LoadFile reads and validates a YAML matrix file.
func LoadFile(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("matrix: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML matrix and validates it against the criterion
// catalog and the known threshold names.
func Parse(data []byte) (*Matrix, error) {
	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("matrix: parse: %w", err)
	}
	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Matrix) applyDefaults() {
	for i := range m.Pages {
		if len(m.Pages[i].Engines) == 0 {
			m.Pages[i].Engines = []string{"chromium-1280x800"}
		}
	}
}

func (m *Matrix) validate() error {
	if len(m.Pages) == 0 {
		return fmt.Errorf("matrix: no pages declared")
	}
	for i, p := range m.Pages {
		if p.URL == "" {
			return fmt.Errorf("matrix: page %d has no url", i)
		}
		for _, id := range append(append([]string{}, p.Criteria...), p.Manual...) {
			if _, ok := wcag.CriterionByID(id); !ok {
				return fmt.Errorf("matrix: page %s references unknown criterion %q", p.URL, id)
			}
		}
	}
	for _, id := range m.Manual {
		if _, ok := wcag.CriterionByID(id); !ok {
			return fmt.Errorf("matrix: manual list references unknown criterion %q", id)
		}
	}
	for name := range m.Thresholds {
		switch name {
		case ThresholdMaxParagraphRun, ThresholdMaxWordsPerHeading,
			ThresholdMaxSkipLinkIndex, ThresholdExcerptBytes:
		default:
			return fmt.Errorf("matrix: unknown threshold %q", name)
		}
	}
	return nil
}

// CriteriaFor resolves a page's criterion selection against the catalog,
// in catalog order. An empty selection means the whole catalog.
func (m *Matrix) CriteriaFor(p Page) []wcag.Criterion {
	if len(p.Criteria) == 0 {
		out := make([]wcag.Criterion, len(wcag.Catalog))
		copy(out, wcag.Catalog)
		return out
	}
	want := make(map[string]bool, len(p.Criteria))
	for _, id := range p.Criteria {
		want[id] = true
	}
	var out []wcag.Criterion
	for _, c := range wcag.Catalog {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// IsManual reports whether a criterion is forced to manual review for a
// page, either page-locally or matrix-wide. A manual flag skips heuristic
// execution for that criterion on that page.
func (m *Matrix) IsManual(p Page, criterionID string) bool {
	for _, id := range p.Manual {
		if id == criterionID {
			return true
		}
	}
	for _, id := range m.Manual {
		if id == criterionID {
			return true
		}
	}
	return false
}

// CheckConfig returns the analyzer configuration with the matrix's
// threshold overrides applied over the documented defaults.
func (m *Matrix) CheckConfig() checks.Config {
	var cfg checks.Config
	cfg.Defaults()
	if v, ok := m.Thresholds[ThresholdMaxParagraphRun]; ok && v > 0 {
		cfg.MaxParagraphRun = v
	}
	if v, ok := m.Thresholds[ThresholdMaxWordsPerHeading]; ok && v > 0 {
		cfg.MaxWordsPerHeading = v
	}
	if v, ok := m.Thresholds[ThresholdMaxSkipLinkIndex]; ok && v > 0 {
		cfg.MaxSkipLinkIndex = v
	}
	if v, ok := m.Thresholds[ThresholdExcerptBytes]; ok && v > 0 {
		cfg.ExcerptBytes = v
	}
	return cfg
}
