package report

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/domaudit/wcag"
)

func pageReport(t *testing.T, url, engine string, results ...wcag.TestResult) PageReport {
	t.Helper()
	return Aggregate(url, engine, results, testTime())
}

func threeReports(t *testing.T) []PageReport {
	t.Helper()
	a := pageReport(t, "https://a.test/", "chromium",
		result(t, "1.1.1", "https://a.test/", issue("img-alt-missing", "#hero > img:nth-of-type(1)", "image has no alt attribute")),
		result(t, "2.4.6", "https://a.test/", issue("heading-vague", "#main > h2:nth-of-type(1)", `heading "More" is not descriptive`)),
	)
	b := pageReport(t, "https://b.test/", "chromium",
		// Same issue key as page A's heading: dedups to one entry.
		result(t, "2.4.6", "https://b.test/", issue("heading-vague", "#main > h2:nth-of-type(1)", `heading "More" is not descriptive`)),
		result(t, "2.4.3", "https://b.test/", issue("tabindex-positive", "button", "positive tabindex 5 overrides the natural focus order")),
	)
	c := pageReport(t, "https://a.test/", "firefox",
		result(t, "1.1.1", "https://a.test/"),
	)
	return []PageReport{a, b, c}
}

func TestMerge_CommutativeAssociative(t *testing.T) {
	// WHAT: Merging the same report set in any permutation yields an
	// identical ConsolidatedReport.
	// WHY: This is the primary correctness property of the merge engine;
	// callers feed reports in arrival order.
	reports := threeReports(t)
	want := Merge(reports, nil)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := append([]PageReport{}, reports...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := Merge(shuffled, nil)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("permutation %d differs (-want +got):\n%s", i, diff)
		}
	}
}

func TestMerge_SelfMergeOccurrenceCount(t *testing.T) {
	// WHAT: Merging a report with itself yields occurrence count 2 per
	// issue key, not duplicated listings.
	rep := pageReport(t, "https://a.test/", "chromium",
		result(t, "2.4.6", "https://a.test/", issue("heading-vague", "h2", `heading "More" is not descriptive`)))
	cr := Merge([]PageReport{rep, rep}, nil)

	var group *CriterionGroup
	for i := range cr.Criteria {
		if cr.Criteria[i].CriterionID == "2.4.6" {
			group = &cr.Criteria[i]
		}
	}
	if group == nil {
		t.Fatal("2.4.6 group missing")
	}
	if len(group.Issues) != 1 {
		t.Fatalf("issues = %d, want 1 deduplicated entry", len(group.Issues))
	}
	if group.Issues[0].Occurrences != 2 {
		t.Errorf("occurrences = %d, want 2", group.Issues[0].Occurrences)
	}
	// Sources stay distinct even when occurrences count every member.
	if len(group.Issues[0].Sources) != 1 {
		t.Errorf("sources = %v, want one distinct source", group.Issues[0].Sources)
	}
}

func TestMerge_MixedTestTypesDeterministic(t *testing.T) {
	// WHAT: The same criterion flagged manual on one page and run
	// automated on another merges identically in either order, and the
	// group reflects the manual member: manual type, needs-review, fail.
	// WHY: Per-page manual flags make mixed-type groups a normal case,
	// not an edge case; the representative type must not depend on which
	// report arrives first.
	c := mustCriterion(t, "2.4.6")
	manual := pageReport(t, "https://a.test/", "chromium",
		wcag.NewResult(c, "https://a.test/", testTime(), wcag.TestManual, nil))
	automated := pageReport(t, "https://b.test/", "chromium",
		result(t, "2.4.6", "https://b.test/", issue("heading-vague", "h2", `heading "More" is not descriptive`)))

	ab := Merge([]PageReport{manual, automated}, nil)
	ba := Merge([]PageReport{automated, manual}, nil)
	if diff := cmp.Diff(ab, ba); diff != "" {
		t.Fatalf("merge order changes the report (-ab +ba):\n%s", diff)
	}

	for _, g := range ab.Criteria {
		if g.CriterionID != "2.4.6" {
			continue
		}
		if g.TestType != wcag.TestManual {
			t.Errorf("test type = %s, want manual (most manual member)", g.TestType)
		}
		if !g.NeedsReview {
			t.Error("needs-review lost in merge")
		}
		if g.Status != wcag.StatusFail {
			t.Errorf("status = %s, want fail (manual sentinel is worst)", g.Status)
		}
	}
}

func TestMerge_OccurrencesCountReportsNotHits(t *testing.T) {
	// WHAT: Two identical-key hits inside one page count one occurrence;
	// a second page carrying the key raises it to two.
	dup := issue("heading-vague", "h2", `heading "More" is not descriptive`)
	one := pageReport(t, "https://a.test/", "chromium",
		result(t, "2.4.6", "https://a.test/", dup, dup))

	cr := Merge([]PageReport{one}, nil)
	for _, g := range cr.Criteria {
		if g.CriterionID == "2.4.6" {
			if len(g.Issues) != 1 || g.Issues[0].Occurrences != 1 {
				t.Errorf("single page: issues = %d, occurrences = %d, want 1/1",
					len(g.Issues), g.Issues[0].Occurrences)
			}
		}
	}

	other := pageReport(t, "https://b.test/", "chromium",
		result(t, "2.4.6", "https://b.test/", dup))
	cr = Merge([]PageReport{one, other}, nil)
	for _, g := range cr.Criteria {
		if g.CriterionID == "2.4.6" {
			if len(g.Issues) != 1 || g.Issues[0].Occurrences != 2 {
				t.Errorf("two pages: issues = %d, occurrences = %d, want 1/2",
					len(g.Issues), g.Issues[0].Occurrences)
			}
		}
	}
}

func TestMerge_CanonicalRepresentativeIssue(t *testing.T) {
	// WHAT: When members disagree on fields outside the dedup key, the
	// representative is canonical in either merge order: smallest check
	// id, worst severity.
	low := issue("label-for-dangling", "input#q", "form control has no accessible name")
	high := issue("input-label-missing", "input#q", "form control has no accessible name")
	a := pageReport(t, "https://a.test/", "chromium", result(t, "1.3.1", "https://a.test/", low))
	b := pageReport(t, "https://b.test/", "chromium", result(t, "1.3.1", "https://b.test/", high))

	for _, order := range [][]PageReport{{a, b}, {b, a}} {
		cr := Merge(order, nil)
		for _, g := range cr.Criteria {
			if g.CriterionID != "1.3.1" {
				continue
			}
			if len(g.Issues) != 1 {
				t.Fatalf("issues = %d, want 1 deduplicated entry", len(g.Issues))
			}
			is := g.Issues[0]
			if is.CheckID != "input-label-missing" {
				t.Errorf("check id = %s, want input-label-missing (lexicographic min)", is.CheckID)
			}
			if is.Severity != wcag.SeverityCritical {
				t.Errorf("severity = %s, want critical (worst member)", is.Severity)
			}
		}
	}
}

func TestMerge_WorstStatusRollup(t *testing.T) {
	// WHAT: A criterion failing on one page and passing on another rolls
	// up to fail, and dedup keys distinguish differing descriptions.
	fail := pageReport(t, "https://a.test/", "chromium",
		result(t, "1.1.1", "https://a.test/", issue("img-alt-missing", "img", "image has no alt attribute")))
	pass := pageReport(t, "https://b.test/", "chromium",
		result(t, "1.1.1", "https://b.test/"))
	cr := Merge([]PageReport{pass, fail}, nil)

	for _, g := range cr.Criteria {
		if g.CriterionID != "1.1.1" {
			continue
		}
		if g.Status != wcag.StatusFail {
			t.Errorf("status = %s, want fail (worst of members)", g.Status)
		}
		if len(g.Issues) != 1 {
			t.Errorf("issues = %d, want 1", len(g.Issues))
		}
	}
}

func TestMerge_ScanFailureAccounting(t *testing.T) {
	// WHAT: Nine scanned pages plus one failed page report 9 scanned and
	// 1 failed, with the failure listed, never ten silently-passing pages.
	var reports []PageReport
	for i := 0; i < 9; i++ {
		url := "https://site.test/page-" + string(rune('a'+i)) + "/"
		reports = append(reports, pageReport(t, url, "chromium", result(t, "1.1.1", url)))
	}
	failures := []ScanFailure{{URL: "https://site.test/broken/", Engine: "chromium", Reason: "navigation timeout"}}

	cr := Merge(reports, failures)
	if cr.Summary.PagesScanned != 9 {
		t.Errorf("scanned = %d, want 9", cr.Summary.PagesScanned)
	}
	if cr.Summary.PagesFailed != 1 {
		t.Errorf("failed = %d, want 1", cr.Summary.PagesFailed)
	}
	if len(cr.Failures) != 1 || cr.Failures[0].Reason != "navigation timeout" {
		t.Errorf("failures = %+v", cr.Failures)
	}
}

func TestMerge_SummaryBreakdown(t *testing.T) {
	// WHAT: The global summary groups verdicts by principle and level and
	// its per-group tallies sum to the overall counts.
	cr := Merge(threeReports(t), nil)

	var fromPrinciples StatusCounts
	for _, counts := range cr.Summary.ByPrinciple {
		fromPrinciples.Pass += counts.Pass
		fromPrinciples.Warning += counts.Warning
		fromPrinciples.Fail += counts.Fail
		fromPrinciples.NotApplicable += counts.NotApplicable
	}
	if fromPrinciples != cr.Summary.Criteria {
		t.Errorf("principle breakdown %+v != overall %+v", fromPrinciples, cr.Summary.Criteria)
	}

	var fromLevels StatusCounts
	for _, counts := range cr.Summary.ByLevel {
		fromLevels.Pass += counts.Pass
		fromLevels.Warning += counts.Warning
		fromLevels.Fail += counts.Fail
		fromLevels.NotApplicable += counts.NotApplicable
	}
	if fromLevels != cr.Summary.Criteria {
		t.Errorf("level breakdown %+v != overall %+v", fromLevels, cr.Summary.Criteria)
	}

	if cr.Summary.Criteria.Total() != len(wcag.Catalog) {
		t.Errorf("criteria total = %d, want %d", cr.Summary.Criteria.Total(), len(wcag.Catalog))
	}
}

func TestMerge_CriteriaOrdered(t *testing.T) {
	// WHAT: Consolidated criteria come out in numeric-aware id order.
	cr := Merge(threeReports(t), nil)
	for i := 1; i < len(cr.Criteria); i++ {
		if wcag.CompareID(cr.Criteria[i-1].CriterionID, cr.Criteria[i].CriterionID) >= 0 {
			t.Errorf("order violated: %s before %s", cr.Criteria[i-1].CriterionID, cr.Criteria[i].CriterionID)
		}
	}
}

func TestRenderer_Markdown(t *testing.T) {
	// WHAT: The markdown rendering carries the page accounting, failure
	// list, and deduplicated issues with their occurrence counts.
	reports := threeReports(t)
	failures := []ScanFailure{{URL: "https://c.test/", Engine: "chromium", Reason: "connection refused"}}
	md := NewRenderer().Render(Merge(reports, failures))

	for _, want := range []string{
		"Pages scanned: 3",
		"1 failed to load",
		"https://c.test/",
		"connection refused",
		"FAIL 1.1.1",
		"not descriptive",
		"seen 2 times",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	// Deterministic rendering of a deterministic report.
	if md2 := NewRenderer().Render(Merge(reports, failures)); md2 != md {
		t.Error("render not deterministic")
	}
}
