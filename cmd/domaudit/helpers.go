package main

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domaudit/dbopen"
	"github.com/hazyhaar/domaudit/idgen"
	"github.com/hazyhaar/domaudit/report"
)

// setupLogging installs the default JSON logger at the level named by
// LOG_LEVEL (debug/info/warn/error).
func setupLogging() *slog.Logger {
	var lvl slog.Level
	switch env("LOG_LEVEL", "info") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// openStore opens (creating if necessary) the run database at path and
// wraps it in a report store with the schema applied. gen may be nil for
// the default run-id strategy.
func openStore(path string, gen idgen.Generator, logger *slog.Logger) (*sql.DB, *report.Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(report.Schema))
	if err != nil {
		return nil, nil, err
	}
	return db, report.NewStore(db, gen, logger), nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
