package app

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/amine-CS96/seo-expert/internal/analyzer"
	"github.com/amine-CS96/seo-expert/internal/auth"
	"github.com/amine-CS96/seo-expert/internal/handoff"
	"github.com/amine-CS96/seo-expert/internal/history"
	"github.com/amine-CS96/seo-expert/internal/interfaces"
	"github.com/amine-CS96/seo-expert/internal/session"
)

// Components holds the long-lived services the orchestrator and server
// share: one SQLite handle, the stores built on it, the analyzer client,
// the auth layer and the session state machine.
type Components struct {
	DB       *sql.DB
	Analyzer *analyzer.Client
	Handoff  *handoff.Store
	History  *history.Store
	Auth     *auth.Service
	Session  *session.Session
}

// NewComponents wires everything up. If cfg is nil, defaults are used.
func NewComponents(cfg *Config, logger interfaces.Logger) (*Components, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	handoffStore, err := handoff.NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("new handoff store: %w", err)
	}

	historyStore, err := history.NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("new history store: %w", err)
	}

	return &Components{
		DB:       db,
		Analyzer: analyzer.NewClient(cfg.AnalyzerCfg, nil, logger),
		Handoff:  handoffStore,
		History:  historyStore,
		Auth:     auth.NewService(cfg.AuthCfg, logger),
		Session:  session.New(logger),
	}, nil
}

// Close releases the database handle.
func (c *Components) Close() error {
	return c.DB.Close()
}

// openDatabase creates the data directory if needed, opens the SQLite file
// and applies the connection pragmas.
func openDatabase(dataDir string) (*sql.DB, error) {
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving config dir: %w", err)
		}
		dataDir = filepath.Join(base, "seo-expert")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "seo-expert.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	return db, nil
}
