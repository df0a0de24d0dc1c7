package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/domaudit/dbopen"
	"github.com/hazyhaar/domaudit/idgen"
)

// Schema for the audit run tables. Passed to dbopen.WithSchema or applied
// via Store.Init.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	pages_scanned INTEGER NOT NULL,
	pages_failed INTEGER NOT NULL,
	report_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS page_reports (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	engine TEXT NOT NULL,
	pass INTEGER NOT NULL,
	warning INTEGER NOT NULL,
	fail INTEGER NOT NULL,
	not_applicable INTEGER NOT NULL,
	report_json TEXT NOT NULL,
	PRIMARY KEY (run_id, url, engine)
);

CREATE TABLE IF NOT EXISTS scan_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	event TEXT NOT NULL,
	url TEXT NOT NULL,
	engine TEXT NOT NULL,
	detail TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_events_run ON scan_events(run_id);
`

// Event is one scan lifecycle record: a page scanned or a page that failed
// to load. Events are persisted asynchronously; reports synchronously.
type Event struct {
	RunID     string
	Name      string // "page_scanned" or "page_failed"
	URL       string
	Engine    string
	Detail    string
	Timestamp time.Time
}

// RunMeta is the stored summary row of one run.
type RunMeta struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	PagesScanned int       `json:"pages_scanned"`
	PagesFailed  int       `json:"pages_failed"`
}

// Store persists audit runs to SQLite. Run saves are transactional; scan
// events go through a buffered channel and are dropped when the buffer is
// full rather than backpressuring the scanner.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
	log   *slog.Logger

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewStore wraps an open database. Pass nil for gen to use the ecosystem
// default (UUIDv7).
func NewStore(db *sql.DB, gen idgen.Generator, logger *slog.Logger) *Store {
	if gen == nil {
		gen = idgen.Prefixed("run_", idgen.Default)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		newID:  gen,
		log:    logger,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// Init creates the run tables if they don't exist.
func (s *Store) Init() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("report: init schema: %w", err)
	}
	return nil
}

// Close drains pending events and stops the flush goroutine.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.events)
		<-s.done
	})
	return nil
}

// RecordEvent queues a scan event for async persistence. Non-blocking.
func (s *Store) RecordEvent(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case s.events <- e:
	default:
		s.log.Warn("report: event buffer full, dropping", "event", e.Name, "url", e.URL)
	}
}

// SaveRun persists a consolidated report with its member page reports and
// returns the generated run id. The transaction retries on SQLITE_BUSY:
// the event flusher writes concurrently on the same database.
func (s *Store) SaveRun(ctx context.Context, cr ConsolidatedReport, pages []PageReport, started, finished time.Time) (string, error) {
	id := s.newID()

	crJSON, err := json.Marshal(cr)
	if err != nil {
		return "", fmt.Errorf("report: marshal consolidated: %w", err)
	}
	pageJSON := make([]string, len(pages))
	for i, p := range pages {
		data, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("report: marshal page %s: %w", p.URL, err)
		}
		pageJSON[i] = string(data)
	}

	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, started_at, finished_at, pages_scanned, pages_failed, report_json)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, started.UnixMilli(), finished.UnixMilli(),
			cr.Summary.PagesScanned, cr.Summary.PagesFailed, string(crJSON)); err != nil {
			return fmt.Errorf("report: insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO page_reports (run_id, url, engine, pass, warning, fail, not_applicable, report_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("report: prepare page insert: %w", err)
		}
		defer stmt.Close()

		for i, p := range pages {
			if _, err := stmt.ExecContext(ctx, id, p.URL, p.Engine,
				p.Summary.Pass, p.Summary.Warning, p.Summary.Fail, p.Summary.NotApplicable,
				pageJSON[i]); err != nil {
				return fmt.Errorf("report: insert page %s: %w", p.URL, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// LoadRun reads back a consolidated report by run id.
func (s *Store) LoadRun(ctx context.Context, id string) (ConsolidatedReport, RunMeta, error) {
	var (
		cr                 ConsolidatedReport
		meta               RunMeta
		started, finished  int64
		reportJSON         string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, pages_scanned, pages_failed, report_json
		 FROM runs WHERE id = ?`, id)
	if err := row.Scan(&meta.ID, &started, &finished,
		&meta.PagesScanned, &meta.PagesFailed, &reportJSON); err != nil {
		return cr, meta, fmt.Errorf("report: load run %s: %w", id, err)
	}
	meta.StartedAt = time.UnixMilli(started)
	meta.FinishedAt = time.UnixMilli(finished)
	if err := json.Unmarshal([]byte(reportJSON), &cr); err != nil {
		return cr, meta, fmt.Errorf("report: decode run %s: %w", id, err)
	}
	return cr, meta, nil
}

// ListRuns returns run metadata newest-first, up to limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, pages_scanned, pages_failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("report: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunMeta
	for rows.Next() {
		var (
			m                 RunMeta
			started, finished int64
		)
		if err := rows.Scan(&m.ID, &started, &finished, &m.PagesScanned, &m.PagesFailed); err != nil {
			return nil, fmt.Errorf("report: scan run row: %w", err)
		}
		m.StartedAt = time.UnixMilli(started)
		m.FinishedAt = time.UnixMilli(finished)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]Event, 0, 32)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.events:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 32 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []Event) {
	if len(batch) == 0 {
		return
	}

	err := dbopen.RunTx(context.Background(), s.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO scan_events (run_id, event, url, engine, detail, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("report: event batch prepare: %w", err)
		}
		defer stmt.Close()

		for _, e := range batch {
			if _, err := stmt.Exec(e.RunID, e.Name, e.URL, e.Engine, e.Detail, e.Timestamp.UnixMilli()); err != nil {
				return fmt.Errorf("report: event insert: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		// Events are best-effort telemetry; a dropped batch is logged,
		// never fatal.
		s.log.Error("report: event batch flush", "error", err, "events", len(batch))
	}
}
