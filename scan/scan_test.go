package scan

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/domaudit/matrix"
	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
	"github.com/hazyhaar/domaudit/wcag/checks"
)

var testPages = map[string]string{
	"https://a.test/": `<html><head><title>a</title></head><body>
		<h2>More</h2>
		<button tabindex="5">Click</button>
	</body></html>`,
	"https://b.test/": `<html><head><title>b</title></head><body>
		<a href="#main">Skip to main content</a>
		<main id="main"><h2>Quarterly results</h2><p>All good.</p></main>
	</body></html>`,
}

func staticProvider(t *testing.T) Provider {
	t.Helper()
	return ProviderFunc(func(_ context.Context, url, _ string) (*snapshot.Page, error) {
		src, ok := testPages[url]
		if !ok {
			return nil, errors.New("connection refused")
		}
		return snapshot.ParseString(url, src)
	})
}

func testMatrix(t *testing.T, yaml string) *matrix.Matrix {
	t.Helper()
	m, err := matrix.Parse([]byte(yaml))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func newRunner(t *testing.T, m *matrix.Matrix) *Runner {
	t.Helper()
	r, err := New(Config{
		Provider: staticProvider(t),
		Matrix:   m,
		Strict:   true,
		Now:      fixedNow,
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func findResult(t *testing.T, results []wcag.TestResult, id string) wcag.TestResult {
	t.Helper()
	for _, tr := range results {
		if tr.CriterionID == id {
			return tr
		}
	}
	t.Fatalf("criterion %s missing from report", id)
	return wcag.TestResult{}
}

func TestScanPage_PositiveTabindexFails(t *testing.T) {
	// WHAT: The canonical bad page fails 2.4.3 with a serious issue that
	// mentions "positive tabindex", and fails 2.4.6 on the vague heading
	// per the decision table (moderate -> warning).
	m := testMatrix(t, "pages:\n  - url: https://a.test/")
	r := newRunner(t, m)

	rep, err := r.ScanPage(context.Background(), m.Pages[0], "chromium-1280x800")
	if err != nil {
		t.Fatal(err)
	}

	focus := findResult(t, rep.Results, "2.4.3")
	if focus.Status != wcag.StatusFail {
		t.Errorf("2.4.3 status = %s, want fail", focus.Status)
	}
	if len(focus.Issues) != 1 {
		t.Fatalf("2.4.3 issues = %d, want 1", len(focus.Issues))
	}
	is := focus.Issues[0]
	if is.Severity != wcag.SeveritySerious {
		t.Errorf("severity = %s, want serious", is.Severity)
	}
	if !strings.Contains(is.Description, "positive tabindex") {
		t.Errorf("description %q should mention positive tabindex", is.Description)
	}

	headings := findResult(t, rep.Results, "2.4.6")
	if headings.Status != wcag.StatusWarning {
		t.Errorf("2.4.6 status = %s, want warning (moderate issue)", headings.Status)
	}
	if len(headings.Issues) != 1 || !strings.Contains(headings.Issues[0].Description, "not descriptive") {
		t.Errorf("2.4.6 issues = %+v", headings.Issues)
	}
}

func TestScanPage_CleanPagePasses(t *testing.T) {
	// WHAT: A page matching no heuristic passes its automated criteria
	// with empty issue lists.
	m := testMatrix(t, "pages:\n  - url: https://b.test/")
	r := newRunner(t, m)

	rep, err := r.ScanPage(context.Background(), m.Pages[0], "chromium-1280x800")
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"1.1.1", "2.4.1", "2.4.6"} {
		tr := findResult(t, rep.Results, id)
		if tr.Status != wcag.StatusPass || len(tr.Issues) != 0 {
			t.Errorf("%s = %s with %d issues, want clean pass", id, tr.Status, len(tr.Issues))
		}
	}
}

func TestScanPage_ManualSentinel(t *testing.T) {
	// WHAT: A manual flag skips heuristics and yields the sentinel: fail
	// with NeedsReview set and no issues. Catalog-manual 3.2.3 behaves the
	// same without any flag.
	m := testMatrix(t, "pages:\n  - url: https://b.test/\n    manual: [\"2.4.6\"]")
	r := newRunner(t, m)

	rep, err := r.ScanPage(context.Background(), m.Pages[0], "chromium-1280x800")
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"2.4.6", "3.2.3"} {
		tr := findResult(t, rep.Results, id)
		if tr.Status != wcag.StatusFail || !tr.NeedsReview || tr.TestType != wcag.TestManual {
			t.Errorf("%s = %+v, want manual sentinel", id, tr)
		}
		if len(tr.Issues) != 0 {
			t.Errorf("%s carries %d issues, manual criteria run no heuristics", id, len(tr.Issues))
		}
	}
}

func TestScanPage_CriterionSelection(t *testing.T) {
	// WHAT: Unselected criteria come back not-applicable, still enumerated.
	m := testMatrix(t, "pages:\n  - url: https://a.test/\n    criteria: [\"2.4.3\"]")
	r := newRunner(t, m)

	rep, err := r.ScanPage(context.Background(), m.Pages[0], "chromium-1280x800")
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Results) != len(wcag.Catalog) {
		t.Fatalf("results = %d, want full enumeration", len(rep.Results))
	}
	if tr := findResult(t, rep.Results, "2.4.3"); tr.Status != wcag.StatusFail {
		t.Errorf("selected 2.4.3 = %s, want fail", tr.Status)
	}
	if tr := findResult(t, rep.Results, "2.4.6"); tr.Status != wcag.StatusNotApplicable {
		t.Errorf("unselected 2.4.6 = %s, want not-applicable", tr.Status)
	}
}

func TestRun_FailedPageCountedNotOmitted(t *testing.T) {
	// WHAT: A page the provider cannot deliver becomes an explicit scan
	// failure; the other pages still report.
	m := testMatrix(t, `
pages:
  - url: https://a.test/
  - url: https://b.test/
  - url: https://gone.test/
`)
	r := newRunner(t, m)

	cr, reports, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 {
		t.Errorf("reports = %d, want 2", len(reports))
	}
	if cr.Summary.PagesScanned != 2 || cr.Summary.PagesFailed != 1 {
		t.Errorf("summary = %+v, want 2 scanned / 1 failed", cr.Summary)
	}
	if len(cr.Failures) != 1 || cr.Failures[0].URL != "https://gone.test/" {
		t.Fatalf("failures = %+v", cr.Failures)
	}
	if !strings.Contains(cr.Failures[0].Reason, "snapshot unavailable") {
		t.Errorf("reason = %q", cr.Failures[0].Reason)
	}
}

func TestRun_ParallelismDoesNotChangeResults(t *testing.T) {
	// WHAT: Concurrency is a performance choice only: sequential and
	// parallel runs produce identical consolidated reports.
	const plan = "pages:\n  - url: https://a.test/\n  - url: https://b.test/"

	sequential, err := New(Config{Provider: staticProvider(t), Matrix: testMatrix(t, plan), Parallelism: 1, Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := New(Config{Provider: staticProvider(t), Matrix: testMatrix(t, plan), Parallelism: 8, Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}

	crSeq, _, err := sequential.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	crPar, _, err := parallel.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(crSeq, crPar); diff != "" {
		t.Errorf("parallel run differs (-seq +par):\n%s", diff)
	}
}

func TestRunAnalyzer_PanicContained(t *testing.T) {
	// WHAT: A panicking analyzer is contained: no propagation, a fault
	// description comes back instead of hits.
	m := testMatrix(t, "pages:\n  - url: https://a.test/")
	r := newRunner(t, m)

	snap, err := snapshot.ParseString("https://a.test/", testPages["https://a.test/"])
	if err != nil {
		t.Fatal(err)
	}

	boom := checks.Analyzer{
		Name:     "boom",
		Criteria: []string{"1.1.1"},
		Run: func(*snapshot.Page, checks.Config) []wcag.RawHit {
			panic("heuristic out of bounds")
		},
	}
	hits, fault := r.runAnalyzer(boom, snap)
	if hits != nil {
		t.Errorf("hits = %v, want nil on fault", hits)
	}
	if !strings.Contains(fault, "boom") || !strings.Contains(fault, "heuristic out of bounds") {
		t.Errorf("fault = %q", fault)
	}

	// The fault issue forces fail even though its severity is moderate.
	issue, err := r.norm.Normalize(wcag.RawHit{
		CheckID: "analyzer-fault", CriterionID: "1.1.1", Description: fault, Selector: "html",
	})
	if err != nil {
		t.Fatal(err)
	}
	if issue.Severity != wcag.SeverityModerate {
		t.Errorf("fault severity = %s, want moderate", issue.Severity)
	}
}
