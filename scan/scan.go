// Package scan executes the audit plan: for each page/engine pair in the
// matrix it acquires a snapshot, runs the selected analyzers with fault
// containment, and assembles PageReports. Pages run in parallel; failures
// stay contained to the page or analyzer that caused them.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/domaudit/matrix"
	"github.com/hazyhaar/domaudit/report"
	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
	"github.com/hazyhaar/domaudit/wcag/checks"
)

// ErrSnapshotUnavailable marks a page whose snapshot never arrived. The
// page contributes a scan failure, never a partial report.
var ErrSnapshotUnavailable = errors.New("scan: snapshot unavailable")

// Provider delivers page snapshots. The live implementation drives a
// browser; tests hand in parsed static HTML.
type Provider interface {
	Snapshot(ctx context.Context, url, engine string) (*snapshot.Page, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, url, engine string) (*snapshot.Page, error)

func (f ProviderFunc) Snapshot(ctx context.Context, url, engine string) (*snapshot.Page, error) {
	return f(ctx, url, engine)
}

// Config wires a Runner.
type Config struct {
	Provider Provider
	Matrix   *matrix.Matrix

	// Parallelism bounds concurrent page scans. Default 4.
	Parallelism int

	// Strict makes normalizer schema violations hard errors (test builds).
	Strict bool

	Logger *slog.Logger

	// Now is the result-timestamp clock, injectable for tests.
	Now func() time.Time

	// Store, when set, receives page_scanned/page_failed events. RunID tags
	// them; the runner never writes reports itself.
	Store *report.Store
	RunID string
}

func (c *Config) defaults() {
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Runner executes one audit plan.
type Runner struct {
	cfg      Config
	checkCfg checks.Config
	norm     *wcag.Normalizer
}

// New creates a Runner. The matrix's threshold overrides become the
// analyzer configuration for the whole run.
func New(cfg Config) (*Runner, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("scan: no snapshot provider")
	}
	if cfg.Matrix == nil {
		return nil, fmt.Errorf("scan: no matrix")
	}
	cfg.defaults()
	return &Runner{
		cfg:      cfg,
		checkCfg: cfg.Matrix.CheckConfig(),
		norm: wcag.NewNormalizer(wcag.NormalizerConfig{
			MaxExcerpt: cfg.Matrix.CheckConfig().ExcerptBytes,
			Strict:     cfg.Strict,
			Logger:     cfg.Logger,
		}),
	}, nil
}

// Run scans every page/engine pair in the matrix and merges the results.
// Individual page failures are collected, never fatal; the only error Run
// itself returns is context cancellation.
func (r *Runner) Run(ctx context.Context) (report.ConsolidatedReport, []report.PageReport, error) {
	type target struct {
		page   matrix.Page
		engine string
	}
	var targets []target
	for _, p := range r.cfg.Matrix.Pages {
		for _, e := range p.Engines {
			targets = append(targets, target{page: p, engine: e})
		}
	}

	var (
		mu       sync.Mutex
		reports  []report.PageReport
		failures []report.ScanFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallelism)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := r.ScanPage(gctx, t.page, t.engine)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, report.ScanFailure{
					URL: t.page.URL, Engine: t.engine, Reason: err.Error(),
				})
				r.recordEvent("page_failed", t.page.URL, t.engine, err.Error())
				r.cfg.Logger.Warn("page scan failed", "url", t.page.URL, "engine", t.engine, "error", err)
				return nil
			}
			reports = append(reports, rep)
			r.recordEvent("page_scanned", t.page.URL, t.engine, "")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report.ConsolidatedReport{}, nil, err
	}

	return report.Merge(reports, failures), reports, nil
}

// ScanPage audits one page on one engine. Snapshot acquisition is the only
// blocking step; analysis is synchronous and I/O-free.
func (r *Runner) ScanPage(ctx context.Context, page matrix.Page, engine string) (report.PageReport, error) {
	snap, err := r.cfg.Provider.Snapshot(ctx, page.URL, engine)
	if err != nil {
		return report.PageReport{}, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}

	now := r.cfg.Now()
	criteria := r.cfg.Matrix.CriteriaFor(page)

	// Split the selection into manual criteria (sentinel verdict, no
	// heuristics) and automated ones.
	manual := make(map[string]bool)
	selected := make(map[string]wcag.Criterion, len(criteria))
	for _, c := range criteria {
		selected[c.ID] = c
		if c.TestType == wcag.TestManual || r.cfg.Matrix.IsManual(page, c.ID) {
			manual[c.ID] = true
		}
	}

	hitsByCriterion := make(map[string][]wcag.RawHit)
	faulted := make(map[string]string) // criterion id -> analyzer fault description

	for _, a := range r.analyzersFor(selected, manual) {
		hits, fault := r.runAnalyzer(a, snap)
		if fault != "" {
			for _, id := range a.Criteria {
				if selected[id].ID != "" && !manual[id] {
					faulted[id] = fault
				}
			}
			continue
		}
		for _, h := range hits {
			if selected[h.CriterionID].ID == "" || manual[h.CriterionID] {
				continue
			}
			hitsByCriterion[h.CriterionID] = append(hitsByCriterion[h.CriterionID], h)
		}
	}

	var results []wcag.TestResult
	for _, c := range criteria {
		switch {
		case manual[c.ID]:
			results = append(results, wcag.NewResult(c, page.URL, now, wcag.TestManual, nil))

		case faulted[c.ID] != "":
			// A crashed analyzer forces this criterion to fail, carrying
			// the fault as its sole issue. Other criteria are unaffected.
			issue, nerr := r.norm.Normalize(wcag.RawHit{
				CheckID:     "analyzer-fault",
				CriterionID: c.ID,
				Description: faulted[c.ID],
				Selector:    "html",
			})
			if nerr != nil {
				return report.PageReport{}, fmt.Errorf("scan: normalize fault issue: %w", nerr)
			}
			tr := wcag.NewResult(c, page.URL, now, c.TestType, []wcag.Issue{issue})
			tr.Status = wcag.StatusFail
			results = append(results, tr)

		default:
			issues, nerr := r.norm.NormalizeAll(hitsByCriterion[c.ID])
			if nerr != nil {
				return report.PageReport{}, fmt.Errorf("scan: normalize %s: %w", c.ID, nerr)
			}
			results = append(results, wcag.NewResult(c, page.URL, now, c.TestType, issues))
		}
	}

	return report.Aggregate(page.URL, engine, results, now), nil
}

// analyzersFor picks the registry entries whose criteria intersect the
// automated part of the selection.
func (r *Runner) analyzersFor(selected map[string]wcag.Criterion, manual map[string]bool) []checks.Analyzer {
	var out []checks.Analyzer
	for _, a := range checks.Registry() {
		for _, id := range a.Criteria {
			if selected[id].ID != "" && !manual[id] {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// runAnalyzer executes one analyzer with panic containment. A panic is an
// analyzer fault: logged, converted to a description, never propagated.
func (r *Runner) runAnalyzer(a checks.Analyzer, snap *snapshot.Page) (hits []wcag.RawHit, fault string) {
	defer func() {
		if rec := recover(); rec != nil {
			fault = fmt.Sprintf("analyzer %s panicked: %v", a.Name, rec)
			r.cfg.Logger.Error("analyzer fault",
				"analyzer", a.Name, "panic", rec, "stack", string(debug.Stack()))
			hits = nil
		}
	}()
	return a.Run(snap, r.checkCfg), ""
}

func (r *Runner) recordEvent(name, url, engine, detail string) {
	if r.cfg.Store == nil {
		return
	}
	r.cfg.Store.RecordEvent(report.Event{
		RunID:  r.cfg.RunID,
		Name:   name,
		URL:    url,
		Engine: engine,
		Detail: detail,
	})
}
