package report

import (
	"sort"
	"time"

	"github.com/hazyhaar/domaudit/wcag"
)

// MergedIssue is one deduplicated finding across pages and engines. The key
// is (criterion id, selector, description); Occurrences counts how many
// member reports carried the key, and Sources lists the distinct
// page/engine identifiers it was seen in.
type MergedIssue struct {
	wcag.Issue
	Occurrences int      `json:"occurrences"`
	Sources     []string `json:"sources"`
}

// CriterionGroup is one criterion's merged verdict across all reports.
type CriterionGroup struct {
	CriterionID string         `json:"criterion_id"`
	Title       string         `json:"title"`
	Principle   wcag.Principle `json:"principle"`
	Level       wcag.Level     `json:"level"`
	TestType    wcag.TestType  `json:"test_type"` // most manual of member types
	Status      wcag.Status    `json:"status"`    // worst of member statuses
	NeedsReview bool           `json:"needs_review,omitempty"`
	Issues      []MergedIssue  `json:"issues"`
	Timestamp   time.Time      `json:"timestamp"` // earliest member timestamp
}

// ScanFailure records a page that never produced a report. Failed pages are
// counted explicitly, never silently omitted.
type ScanFailure struct {
	URL    string `json:"url"`
	Engine string `json:"engine"`
	Reason string `json:"reason"`
}

// Summary is the dashboard-facing rollup: verdict counts overall and broken
// down by principle and level, plus the page accounting.
type Summary struct {
	Criteria     StatusCounts                      `json:"criteria"`
	ByPrinciple  map[wcag.Principle]StatusCounts   `json:"by_principle"`
	ByLevel      map[wcag.Level]StatusCounts       `json:"by_level"`
	PagesScanned int                               `json:"pages_scanned"`
	PagesFailed  int                               `json:"pages_failed"`
	TotalIssues  int                               `json:"total_issues"`
}

// ConsolidatedReport is the merge of N PageReports. Construction is
// deterministic: the same member set yields a byte-identical report
// regardless of input order.
type ConsolidatedReport struct {
	Criteria []CriterionGroup `json:"criteria"`
	Failures []ScanFailure    `json:"failures,omitempty"`
	Summary  Summary          `json:"summary"`
}

// issueKey is the dedup composite per the merge contract.
type issueKey struct {
	criterionID string
	selector    string
	description string
}

// Merge combines PageReports and scan failures into one ConsolidatedReport.
// Commutative and associative over the report set: grouping is by criterion
// id, issue dedup counts member reports per key, consolidated status is the
// worst member status, and all output slices are canonically sorted.
func Merge(reports []PageReport, failures []ScanFailure) ConsolidatedReport {
	type groupAcc struct {
		group  CriterionGroup
		seen   bool
		issues map[issueKey]*MergedIssue
		order  []issueKey
	}
	groups := make(map[string]*groupAcc)

	acc := func(id string) *groupAcc {
		g, ok := groups[id]
		if !ok {
			g = &groupAcc{issues: make(map[issueKey]*MergedIssue)}
			groups[id] = g
		}
		return g
	}

	for _, rep := range reports {
		counted := make(map[issueKey]bool)
		for _, tr := range rep.Results {
			g := acc(tr.CriterionID)
			if !g.seen {
				g.group = CriterionGroup{
					CriterionID: tr.CriterionID,
					Title:       tr.Title,
					Principle:   tr.Principle,
					Level:       tr.Level,
					TestType:    tr.TestType,
					Status:      tr.Status,
					NeedsReview: tr.NeedsReview,
					Timestamp:   tr.Timestamp,
				}
				g.seen = true
			} else {
				g.group.Status = wcag.Worse(g.group.Status, tr.Status)
				g.group.TestType = wcag.MoreManual(g.group.TestType, tr.TestType)
				g.group.NeedsReview = g.group.NeedsReview || tr.NeedsReview
				if tr.Timestamp.Before(g.group.Timestamp) {
					g.group.Timestamp = tr.Timestamp
				}
			}

			for _, is := range tr.Issues {
				key := issueKey{tr.CriterionID, is.Selector, is.Description}
				m, ok := g.issues[key]
				if !ok {
					g.issues[key] = &MergedIssue{
						Issue:       is,
						Occurrences: 1,
						Sources:     []string{rep.Source()},
					}
					g.order = append(g.order, key)
					counted[key] = true
					continue
				}
				// Occurrences counts member reports carrying the key, so a
				// page emitting the same key twice still counts once.
				if !counted[key] {
					m.Occurrences++
					counted[key] = true
				}
				m.Sources = appendSource(m.Sources, rep.Source())
				// Fields outside the dedup key may vary across pages; keep
				// a canonical representative (lexicographically smallest
				// strings, worst severity) so it does not depend on input
				// order.
				if is.CheckID < m.CheckID {
					m.CheckID = is.CheckID
				}
				if is.Severity.Rank() > m.Severity.Rank() {
					m.Severity = is.Severity
				}
				if is.Excerpt < m.Excerpt {
					m.Excerpt = is.Excerpt
				}
				if is.Target < m.Target {
					m.Target = is.Target
				}
				if is.Help < m.Help {
					m.Help = is.Help
				}
			}
		}
	}

	var out ConsolidatedReport
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	wcag.SortIDs(ids)

	for _, id := range ids {
		g := groups[id]
		for _, key := range g.order {
			g.group.Issues = append(g.group.Issues, *g.issues[key])
		}
		sort.Slice(g.group.Issues, func(i, j int) bool {
			a, b := g.group.Issues[i], g.group.Issues[j]
			if a.Selector != b.Selector {
				return a.Selector < b.Selector
			}
			return a.Description < b.Description
		})
		out.Criteria = append(out.Criteria, g.group)
		out.Summary.Criteria.add(g.group.Status)
		out.Summary.TotalIssues += len(g.group.Issues)

		if out.Summary.ByPrinciple == nil {
			out.Summary.ByPrinciple = make(map[wcag.Principle]StatusCounts)
			out.Summary.ByLevel = make(map[wcag.Level]StatusCounts)
		}
		pc := out.Summary.ByPrinciple[g.group.Principle]
		pc.add(g.group.Status)
		out.Summary.ByPrinciple[g.group.Principle] = pc
		lc := out.Summary.ByLevel[g.group.Level]
		lc.add(g.group.Status)
		out.Summary.ByLevel[g.group.Level] = lc
	}

	out.Summary.PagesScanned = countSources(reports)
	out.Failures = dedupFailures(failures)
	out.Summary.PagesFailed = len(out.Failures)
	return out
}

// appendSource keeps Sources sorted and distinct.
func appendSource(sources []string, src string) []string {
	i := sort.SearchStrings(sources, src)
	if i < len(sources) && sources[i] == src {
		return sources
	}
	sources = append(sources, "")
	copy(sources[i+1:], sources[i:])
	sources[i] = src
	return sources
}

func countSources(reports []PageReport) int {
	seen := make(map[string]bool, len(reports))
	for _, r := range reports {
		seen[r.Source()] = true
	}
	return len(seen)
}

func dedupFailures(failures []ScanFailure) []ScanFailure {
	if len(failures) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(failures))
	out := make([]ScanFailure, 0, len(failures))
	for _, f := range failures {
		key := f.URL + "|" + f.Engine
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].URL != out[j].URL {
			return out[i].URL < out[j].URL
		}
		return out[i].Engine < out[j].Engine
	})
	return out
}
