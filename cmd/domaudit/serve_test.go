package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/domaudit/dbopen"
	"github.com/hazyhaar/domaudit/report"
	"github.com/hazyhaar/domaudit/wcag"
)

func seededStore(t *testing.T) (*report.Store, string) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(report.Schema))
	store := report.NewStore(db, nil, nil)
	t.Cleanup(func() { store.Close() })

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	pr := report.Aggregate("https://a.test/", "chromium-1280x800", nil, now)
	cr := report.Merge([]report.PageReport{pr}, nil)

	id, err := store.SaveRun(context.Background(), cr, []report.PageReport{pr}, now, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	return store, id
}

func authedGet(t *testing.T, h http.Handler, path, user, pass string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthzOpen(t *testing.T) {
	// WHAT: The health endpoint answers without credentials even when the
	// API is locked down.
	store, _ := seededStore(t)
	h := newRouter(store, "admin", "$2a$04$notactuallycheckedhere00000000000000000000000000000000")

	rec := authedGet(t, h, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rec.Code)
	}
}

func TestRouter_APIRequiresAuth(t *testing.T) {
	// WHAT: With a password hash configured, the API rejects anonymous and
	// wrong-password requests and serves authenticated ones.
	hash, err := bcrypt.GenerateFromPassword([]byte("audit"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	store, runID := seededStore(t)
	h := newRouter(store, "admin", string(hash))

	if rec := authedGet(t, h, "/api/runs", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous /api/runs = %d, want 401", rec.Code)
	}
	if rec := authedGet(t, h, "/api/runs", "admin", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password /api/runs = %d, want 401", rec.Code)
	}

	rec := authedGet(t, h, "/api/runs", "admin", "audit")
	if rec.Code != http.StatusOK {
		t.Fatalf("authed /api/runs = %d, want 200", rec.Code)
	}
	var runs []report.RunMeta
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != runID {
		t.Errorf("runs = %+v, want the seeded run", runs)
	}
}

func TestRouter_RunAndSummaryEndpoints(t *testing.T) {
	// WHAT: A stored run is retrievable by id, and the summary endpoint
	// reflects the latest run's full criterion enumeration.
	store, runID := seededStore(t)
	h := newRouter(store, "admin", "")

	rec := authedGet(t, h, "/api/runs/"+runID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/runs/%s = %d, want 200", runID, rec.Code)
	}
	var payload struct {
		Run    report.RunMeta            `json:"run"`
		Report report.ConsolidatedReport `json:"report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Run.ID != runID || len(payload.Report.Criteria) != len(wcag.Catalog) {
		t.Errorf("run = %s, criteria = %d, want %s with %d",
			payload.Run.ID, len(payload.Report.Criteria), runID, len(wcag.Catalog))
	}

	rec = authedGet(t, h, "/api/summary", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/summary = %d, want 200", rec.Code)
	}
	var summary struct {
		Summary report.Summary `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Summary.Criteria.Total() != len(wcag.Catalog) {
		t.Errorf("summary total = %d, want %d", summary.Summary.Criteria.Total(), len(wcag.Catalog))
	}

	if rec := authedGet(t, h, "/api/runs/run_missing", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing run = %d, want 404", rec.Code)
	}
}

func TestRenderReport_Formats(t *testing.T) {
	// WHAT: Both output formats render the consolidated report; anything
	// else is an error.
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cr := report.Merge([]report.PageReport{
		report.Aggregate("https://a.test/", "chromium-1280x800", nil, now),
	}, nil)

	md, err := renderReport(cr, "markdown")
	if err != nil || md == "" {
		t.Errorf("markdown render: %q, %v", md, err)
	}
	js, err := renderReport(cr, "json")
	if err != nil {
		t.Fatal(err)
	}
	var back report.ConsolidatedReport
	if err := json.Unmarshal([]byte(js), &back); err != nil {
		t.Errorf("json render not parseable: %v", err)
	}
	if _, err := renderReport(cr, "xml"); err == nil {
		t.Error("unknown format accepted")
	}
}
