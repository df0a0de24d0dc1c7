package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/domaudit/report"
	"github.com/hazyhaar/domaudit/shield"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the audit dashboard API, or the MCP server over stdio",
	Long: `Serves a JSON API over stored audit runs. Basic Auth credentials come
from DOMAUDIT_USER and DOMAUDIT_PASS_HASH (bcrypt); an empty hash
disables auth, which is only sensible on localhost.

With --mcp the process instead speaks the Model Context Protocol over
stdin/stdout, exposing scan and report tools to agent clients.`,
	RunE: runServe,
}

var serveFlags struct {
	addr   string
	dbPath string
	mcp    bool
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", ":8086", "listen address")
	f.StringVar(&serveFlags.dbPath, "db", "domaudit.db", "run database")
	f.BoolVar(&serveFlags.mcp, "mcp", false, "serve MCP over stdio instead of HTTP")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := setupLogging()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, store, err := openStore(serveFlags.dbPath, nil, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	if serveFlags.mcp {
		logger.Info("starting MCP server over stdio")
		srv := newMCPServer(store, serveFlags.dbPath, logger)
		return srv.mcp.Run(ctx, &sdkmcp.StdioTransport{})
	}

	r := newRouter(store, env("DOMAUDIT_USER", "admin"), env("DOMAUDIT_PASS_HASH", ""))

	srv := &http.Server{
		Addr:              serveFlags.addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard starting", "addr", serveFlags.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

// newRouter assembles the dashboard routes behind the shield stack. An
// empty passHash leaves the API unauthenticated.
func newRouter(store *report.Store, user, passHash string) http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok", "version": version})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(shield.BasicAuth(user, passHash))

		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			runs, err := store.ListRuns(req.Context(), queryInt(req, "limit", 50))
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if runs == nil {
				runs = []report.RunMeta{}
			}
			writeJSON(w, 200, runs)
		})

		r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
			cr, meta, err := store.LoadRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, 404, err)
				return
			}
			writeJSON(w, 200, map[string]any{"run": meta, "report": cr})
		})

		r.Get("/summary", func(w http.ResponseWriter, req *http.Request) {
			runs, err := store.ListRuns(req.Context(), 1)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if len(runs) == 0 {
				writeError(w, 404, errNoRuns)
				return
			}
			cr, meta, err := store.LoadRun(req.Context(), runs[0].ID)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]any{"run": meta, "summary": cr.Summary})
		})
	})

	return r
}
