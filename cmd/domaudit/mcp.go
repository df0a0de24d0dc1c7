package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domaudit/report"
)

var errNoRuns = errors.New("no runs stored")

// mcpServer exposes the audit workflow as MCP tools so agent clients can
// trigger scans and read back reports without shelling out.
type mcpServer struct {
	mcp    *sdkmcp.Server
	store  *report.Store
	dbPath string
	log    *slog.Logger
}

func newMCPServer(store *report.Store, dbPath string, logger *slog.Logger) *mcpServer {
	s := &mcpServer{
		mcp:    sdkmcp.NewServer(&sdkmcp.Implementation{Name: "domaudit", Version: version}, nil),
		store:  store,
		dbPath: dbPath,
		log:    logger,
	}
	s.registerTools()
	return s
}

func (s *mcpServer) registerTools() {
	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "audit_scan",
		Description: "Run the audit matrix against a live browser, persist the run, and return its summary counts.",
	}, s.handleScan)

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "audit_report",
		Description: "Render a stored run as markdown or JSON by run id.",
	}, s.handleReport)

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "audit_summary",
		Description: "List stored runs newest-first with page and failure counts.",
	}, s.handleSummary)
}

type scanInput struct {
	MatrixPath   string `json:"matrix_path" jsonschema:"path to the audit matrix YAML file"`
	RemoteChrome string `json:"remote_chrome,omitempty" jsonschema:"WebSocket URL of an external Chrome (default: launch locally)"`
	AllowPrivate bool   `json:"allow_private,omitempty" jsonschema:"allow targets on private networks"`
	Parallel     int    `json:"parallel,omitempty" jsonschema:"concurrent page scans (default 4)"`
}

type scanOutput struct {
	RunID           string `json:"run_id"`
	PagesScanned    int    `json:"pages_scanned"`
	PagesFailed     int    `json:"pages_failed"`
	CriteriaFail    int    `json:"criteria_fail"`
	CriteriaWarning int    `json:"criteria_warning"`
	CriteriaPass    int    `json:"criteria_pass"`
}

func (s *mcpServer) handleScan(ctx context.Context, _ *sdkmcp.CallToolRequest, in scanInput) (*sdkmcp.CallToolResult, scanOutput, error) {
	runID, cr, err := executeScan(ctx, scanOptions{
		matrixPath:   in.MatrixPath,
		dbPath:       s.dbPath,
		remoteChrome: in.RemoteChrome,
		allowPrivate: in.AllowPrivate,
		parallel:     in.Parallel,
		navTimeout:   30 * time.Second,
	}, s.log)
	if err != nil {
		return nil, scanOutput{}, err
	}
	return nil, scanOutput{
		RunID:           runID,
		PagesScanned:    cr.Summary.PagesScanned,
		PagesFailed:     cr.Summary.PagesFailed,
		CriteriaFail:    cr.Summary.Criteria.Fail,
		CriteriaWarning: cr.Summary.Criteria.Warning,
		CriteriaPass:    cr.Summary.Criteria.Pass,
	}, nil
}

type reportInput struct {
	RunID  string `json:"run_id" jsonschema:"run id from audit_scan or audit_summary"`
	Format string `json:"format,omitempty" jsonschema:"markdown (default) or json"`
}

type reportOutput struct {
	Report string `json:"report"`
}

func (s *mcpServer) handleReport(ctx context.Context, _ *sdkmcp.CallToolRequest, in reportInput) (*sdkmcp.CallToolResult, reportOutput, error) {
	cr, _, err := s.store.LoadRun(ctx, in.RunID)
	if err != nil {
		return nil, reportOutput{}, err
	}
	format := in.Format
	if format == "" {
		format = "markdown"
	}
	out, err := renderReport(cr, format)
	if err != nil {
		return nil, reportOutput{}, err
	}
	return nil, reportOutput{Report: out}, nil
}

type summaryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"max runs to return (default 20)"`
}

type summaryOutput struct {
	Runs []report.RunMeta `json:"runs"`
}

func (s *mcpServer) handleSummary(ctx context.Context, _ *sdkmcp.CallToolRequest, in summaryInput) (*sdkmcp.CallToolResult, summaryOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, summaryOutput{}, err
	}
	if runs == nil {
		runs = []report.RunMeta{}
	}
	return nil, summaryOutput{Runs: runs}, nil
}
