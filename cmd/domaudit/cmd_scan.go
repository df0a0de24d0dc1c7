package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/domaudit/browse"
	"github.com/hazyhaar/domaudit/idgen"
	"github.com/hazyhaar/domaudit/matrix"
	"github.com/hazyhaar/domaudit/report"
	"github.com/hazyhaar/domaudit/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the audit plan from a matrix file",
	Long: `Scans every page/engine pair in the matrix, consolidates the findings,
and prints the report. With --db the run is also persisted for the
dashboard and the report command.`,
	RunE: runScan,
}

var scanFlags struct {
	matrixPath   string
	dbPath       string
	format       string
	outPath      string
	parallel     int
	remoteChrome string
	allowPrivate bool
	navTimeout   time.Duration
}

func init() {
	f := scanCmd.Flags()
	f.StringVarP(&scanFlags.matrixPath, "matrix", "m", "", "audit matrix YAML file (required)")
	f.StringVar(&scanFlags.dbPath, "db", "", "persist the run to this SQLite database")
	f.StringVar(&scanFlags.format, "format", "markdown", "output format: markdown or json")
	f.StringVarP(&scanFlags.outPath, "out", "o", "", "write the report to this file instead of stdout")
	f.IntVar(&scanFlags.parallel, "parallel", 4, "concurrent page scans")
	f.StringVar(&scanFlags.remoteChrome, "remote-chrome", "", "WebSocket URL of an external Chrome (default: launch locally)")
	f.BoolVar(&scanFlags.allowPrivate, "allow-private", false, "allow targets on private networks (staging hosts)")
	f.DurationVar(&scanFlags.navTimeout, "nav-timeout", 30*time.Second, "per-page navigation timeout")
	scanCmd.MarkFlagRequired("matrix")
}

func runScan(cmd *cobra.Command, _ []string) error {
	logger := setupLogging()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runID, cr, err := executeScan(ctx, scanOptions{
		matrixPath:   scanFlags.matrixPath,
		dbPath:       scanFlags.dbPath,
		remoteChrome: scanFlags.remoteChrome,
		allowPrivate: scanFlags.allowPrivate,
		parallel:     scanFlags.parallel,
		navTimeout:   scanFlags.navTimeout,
	}, logger)
	if err != nil {
		return err
	}
	if runID != "" {
		logger.Info("run saved", "run_id", runID, "db", scanFlags.dbPath)
	}

	out, err := renderReport(cr, scanFlags.format)
	if err != nil {
		return err
	}
	if scanFlags.outPath != "" {
		return os.WriteFile(scanFlags.outPath, []byte(out), 0o644)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// scanOptions is the browser-backed scan configuration shared by the scan
// command and the MCP audit_scan tool.
type scanOptions struct {
	matrixPath   string
	dbPath       string
	remoteChrome string
	allowPrivate bool
	parallel     int
	navTimeout   time.Duration
}

// executeScan runs the full plan against a live browser and persists it
// when a database path is set. The returned run id is empty for
// unpersisted runs.
func executeScan(ctx context.Context, opts scanOptions, logger *slog.Logger) (string, report.ConsolidatedReport, error) {
	m, err := matrix.LoadFile(opts.matrixPath)
	if err != nil {
		return "", report.ConsolidatedReport{}, err
	}

	provider := browse.New(browse.Config{
		RemoteURL:       opts.remoteChrome,
		NavigateTimeout: opts.navTimeout,
		AllowPrivate:    opts.allowPrivate,
		Logger:          logger,
	})
	defer provider.Close()

	var (
		store *report.Store
		runID string
	)
	if opts.dbPath != "" {
		// The id is fixed up front so scan events and the saved run row
		// share it.
		runID = idgen.Prefixed("run_", idgen.Default)()
		db, s, err := openStore(opts.dbPath, func() string { return runID }, logger)
		if err != nil {
			return "", report.ConsolidatedReport{}, err
		}
		defer db.Close()
		store = s
		defer store.Close()
	}

	runner, err := scan.New(scan.Config{
		Provider:    provider,
		Matrix:      m,
		Parallelism: opts.parallel,
		Logger:      logger,
		Store:       store,
		RunID:       runID,
	})
	if err != nil {
		return "", report.ConsolidatedReport{}, err
	}

	started := time.Now()
	cr, pages, err := runner.Run(ctx)
	if err != nil {
		return "", report.ConsolidatedReport{}, err
	}
	finished := time.Now()

	logger.Info("scan complete",
		"pages_scanned", cr.Summary.PagesScanned,
		"pages_failed", cr.Summary.PagesFailed,
		"criteria_fail", cr.Summary.Criteria.Fail,
		"duration", finished.Sub(started).Round(time.Millisecond))

	if store != nil {
		if _, err := store.SaveRun(ctx, cr, pages, started, finished); err != nil {
			return "", report.ConsolidatedReport{}, err
		}
	}
	return runID, cr, nil
}

func renderReport(cr report.ConsolidatedReport, format string) (string, error) {
	switch format {
	case "markdown":
		return report.NewRenderer().Render(cr), nil
	case "json":
		data, err := json.MarshalIndent(cr, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown format %q (markdown or json)", format)
	}
}
