// Package report assembles analyzer output into per-page reports, merges
// reports across pages and engines into one consolidated view, and offers
// persistence plus a markdown rendering for agent consumers. Everything
// here is pure data plumbing; no analyzer logic, no browser.
package report

import (
	"sort"
	"time"

	"github.com/hazyhaar/domaudit/wcag"
)

// StatusCounts tallies criterion verdicts per status.
type StatusCounts struct {
	Pass          int `json:"pass"`
	Warning       int `json:"warning"`
	Fail          int `json:"fail"`
	NotApplicable int `json:"not_applicable"`
}

func (c *StatusCounts) add(s wcag.Status) {
	switch s {
	case wcag.StatusPass:
		c.Pass++
	case wcag.StatusWarning:
		c.Warning++
	case wcag.StatusFail:
		c.Fail++
	case wcag.StatusNotApplicable:
		c.NotApplicable++
	}
}

// Total returns the number of verdicts counted.
func (c StatusCounts) Total() int {
	return c.Pass + c.Warning + c.Fail + c.NotApplicable
}

// PageReport holds one page's complete criterion enumeration. Assembled
// once, then read-only.
type PageReport struct {
	URL     string            `json:"url"`
	Engine  string            `json:"engine"` // engine/viewport identifier, e.g. "chromium-1280x800"
	Results []wcag.TestResult `json:"results"`
	Summary StatusCounts      `json:"summary"`
}

// Source identifies the page/engine combination a report came from.
func (r PageReport) Source() string { return r.URL + "|" + r.Engine }

// Aggregate builds a PageReport from one page's analyzer results. Every
// catalog criterion appears exactly once: criteria no analyzer reported on
// get a synthesized not-applicable result, and duplicate results for one
// criterion (a cluster analyzer overlapping a dedicated one) are folded
// together with the decision table re-applied. Results are ordered by
// numeric-aware criterion id.
func Aggregate(url, engine string, results []wcag.TestResult, now time.Time) PageReport {
	byID := make(map[string]wcag.TestResult, len(results))
	for _, tr := range results {
		prev, ok := byID[tr.CriterionID]
		if !ok {
			byID[tr.CriterionID] = tr
			continue
		}
		merged := prev
		merged.Issues = append(append([]wcag.Issue{}, prev.Issues...), tr.Issues...)
		merged.Status = wcag.StatusFor(merged.TestType, merged.Issues)
		merged.NeedsReview = prev.NeedsReview || tr.NeedsReview
		byID[tr.CriterionID] = merged
	}

	rep := PageReport{URL: url, Engine: engine}
	for _, c := range wcag.Catalog {
		tr, ok := byID[c.ID]
		if !ok {
			tr = wcag.TestResult{
				CriterionID: c.ID,
				Title:       c.Title,
				Principle:   c.Principle,
				Level:       c.Level,
				TestType:    c.TestType,
				Status:      wcag.StatusNotApplicable,
				Timestamp:   now,
				URL:         url,
			}
		}
		rep.Results = append(rep.Results, tr)
		rep.Summary.add(tr.Status)
	}

	sort.SliceStable(rep.Results, func(i, j int) bool {
		return wcag.CompareID(rep.Results[i].CriterionID, rep.Results[j].CriterionID) < 0
	})
	return rep
}
