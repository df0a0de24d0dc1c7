package report

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domaudit/dbopen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	s := NewStore(db, nil, nil)
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	// WHAT: A saved run reads back with its consolidated report and page
	// accounting intact.
	s := testStore(t)
	ctx := context.Background()

	reports := threeReports(t)
	failures := []ScanFailure{{URL: "https://c.test/", Engine: "chromium", Reason: "navigation timeout"}}
	cr := Merge(reports, failures)

	started := testTime()
	id, err := s.SaveRun(ctx, cr, reports, started, started.Add(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty run id")
	}

	got, meta, err := s.LoadRun(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if meta.PagesScanned != 3 || meta.PagesFailed != 1 {
		t.Errorf("meta = %+v", meta)
	}
	if diff := cmp.Diff(cr, got); diff != "" {
		t.Errorf("round trip differs (-saved +loaded):\n%s", diff)
	}
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	// WHAT: ListRuns orders by start time, newest first.
	s := testStore(t)
	ctx := context.Background()

	cr := Merge(nil, nil)
	older := testTime()
	newer := older.Add(time.Hour)
	if _, err := s.SaveRun(ctx, cr, nil, older, older.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	newID, err := s.SaveRun(ctx, cr, nil, newer, newer.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].ID != newID {
		t.Errorf("first run = %s, want newest %s", runs[0].ID, newID)
	}
}

func TestStore_EventsFlushedOnClose(t *testing.T) {
	// WHAT: Queued scan events are persisted by Close even before the
	// batch timer fires.
	db := dbopen.OpenMemory(t)
	s := NewStore(db, nil, nil)
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	s.RecordEvent(Event{RunID: "run_x", Name: "page_scanned", URL: "https://a.test/", Engine: "chromium"})
	s.RecordEvent(Event{RunID: "run_x", Name: "page_failed", URL: "https://b.test/", Engine: "chromium", Detail: "timeout"})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM scan_events WHERE run_id = 'run_x'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("events = %d, want 2", n)
	}
}
