// Package wcag defines the stable result schema of the audit engine:
// severities, statuses, issues, per-criterion test results, and the
// canonical severity-to-status decision table. Analyzers and aggregators
// all speak this schema; nothing here touches a browser or a DOM.
package wcag

import "time"

// Severity ranks how damaging a finding is. The severity of a check is
// assigned from the table in severity.go, never ad hoc inside an analyzer.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySerious  Severity = "serious"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for max/threshold comparisons.
var severityRank = map[Severity]int{
	SeverityMinor:    1,
	SeverityModerate: 2,
	SeveritySerious:  3,
	SeverityCritical: 4,
}

// Rank returns the numeric order of a severity (unknown = 0).
func (s Severity) Rank() int { return severityRank[s] }

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

// Status is the per-criterion verdict.
type Status string

const (
	StatusPass          Status = "pass"
	StatusWarning       Status = "warning"
	StatusFail          Status = "fail"
	StatusNotApplicable Status = "not-applicable"
)

// statusRank orders statuses worst-first for rollups: fail > warning > pass > not-applicable.
var statusRank = map[Status]int{
	StatusFail:          4,
	StatusWarning:       3,
	StatusPass:          2,
	StatusNotApplicable: 1,
}

// Worse returns the worse of two statuses.
func Worse(a, b Status) Status {
	if statusRank[b] > statusRank[a] {
		return b
	}
	return a
}

// Principle is one of the four WCAG principles.
type Principle string

const (
	Perceivable    Principle = "Perceivable"
	Operable       Principle = "Operable"
	Understandable Principle = "Understandable"
	Robust         Principle = "Robust"
)

// Level is a WCAG conformance level.
type Level string

const (
	LevelA   Level = "A"
	LevelAA  Level = "AA"
	LevelAAA Level = "AAA"
)

// TestType says how a criterion's verdict is produced.
type TestType string

const (
	TestAutomated TestType = "automated" // heuristics decide
	TestManual    TestType = "manual"    // sentinel verdict, human confirms
	TestHybrid    TestType = "hybrid"    // heuristics decide, human should review
)

// testTypeRank orders test types by how much human attention they demand.
var testTypeRank = map[TestType]int{
	TestManual:    3,
	TestHybrid:    2,
	TestAutomated: 1,
}

// MoreManual returns whichever test type demands more human attention.
// The same criterion can be flagged manual on one page and run automated
// on another; rollups use this so the representative type does not depend
// on member order.
func MoreManual(a, b TestType) TestType {
	if testTypeRank[b] > testTypeRank[a] {
		return b
	}
	return a
}

// Issue is one normalized heuristic finding. Issues are immutable once
// produced by the normalizer.
type Issue struct {
	CheckID     string   `json:"check_id"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Selector    string   `json:"selector"`          // bounded element locator
	Excerpt     string   `json:"excerpt,omitempty"` // bounded outerHTML excerpt
	Help        string   `json:"help,omitempty"`
	Tags        []string `json:"tags,omitempty"`   // WCAG tag set, derived from criterion id/level
	Target      string   `json:"target,omitempty"` // optional target path (href, image src)
}

// TestResult is the outcome of one criterion on one page.
type TestResult struct {
	CriterionID string    `json:"criterion_id"` // dotted id, e.g. "2.4.6"
	Title       string    `json:"title"`
	Principle   Principle `json:"principle"`
	Level       Level     `json:"level"`
	TestType    TestType  `json:"test_type"`
	Status      Status    `json:"status"`
	NeedsReview bool      `json:"needs_review,omitempty"` // true for the manual sentinel
	Issues      []Issue   `json:"issues"`
	Timestamp   time.Time `json:"timestamp"`
	URL         string    `json:"url"`
}

// MaxSeverity returns the highest severity among issues, or "" when empty.
func MaxSeverity(issues []Issue) Severity {
	var max Severity
	for _, is := range issues {
		if is.Severity.Rank() > max.Rank() {
			max = is.Severity
		}
	}
	return max
}

// StatusFor is the single severity-to-status decision table. Analyzers and
// aggregators never compute a status any other way.
//
//	manual               -> fail (sentinel: requires human confirmation)
//	automated/hybrid:
//	  no issues          -> pass
//	  max >= serious     -> fail
//	  otherwise          -> warning
func StatusFor(tt TestType, issues []Issue) Status {
	if tt == TestManual {
		return StatusFail
	}
	if len(issues) == 0 {
		return StatusPass
	}
	if MaxSeverity(issues).AtLeast(SeveritySerious) {
		return StatusFail
	}
	return StatusWarning
}

// NewResult builds an immutable TestResult for a criterion, applying the
// decision table. The manual sentinel is flagged via NeedsReview so report
// consumers can tell "machine-failed" from "awaiting human confirmation".
func NewResult(c Criterion, url string, now time.Time, tt TestType, issues []Issue) TestResult {
	return TestResult{
		CriterionID: c.ID,
		Title:       c.Title,
		Principle:   c.Principle,
		Level:       c.Level,
		TestType:    tt,
		Status:      StatusFor(tt, issues),
		NeedsReview: tt == TestManual,
		Issues:      issues,
		Timestamp:   now,
		URL:         url,
	}
}
