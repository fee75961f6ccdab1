// Package handoff persists a fetched report across a full page navigation.
// In-memory state does not survive the loading page handing off to the
// results page, so the flow writes the report here right before navigating
// and the destination reads it exactly once.
package handoff

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
	"github.com/amine-CS96/seo-expert/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store is the durable one-shot report store.
type Store struct {
	db     *sql.DB
	logger interfaces.Logger
}

// NewStore applies the schema and returns a Store. db is shared with other
// stores on the same SQLite file.
func NewStore(db *sql.DB, logger interfaces.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With(interfaces.Field{Key: "component", Value: "handoff"}),
	}, nil
}

// Put stores a report and returns the token the destination page presents
// to collect it. Each successful acquisition writes exactly one entry.
func (s *Store) Put(ctx context.Context, report *model.AuditReport) (string, error) {
	if report == nil {
		return "", fmt.Errorf("nil report")
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	token := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO handoff_reports (token, report_json, created_at) VALUES (?, ?, ?)`,
		token, string(raw), time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("inserting handoff report: %w", err)
	}

	s.logger.Debug("handoff stored",
		interfaces.Field{Key: "token", Value: token},
		interfaces.Field{Key: "url", Value: report.URL})
	return token, nil
}

// Take reads and deletes the report for token in one transaction. The
// second take for the same token finds nothing — stale data is never left
// for a later unrelated visit.
func (s *Store) Take(ctx context.Context, token string) (*model.AuditReport, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			s.logger.Warn("handoff: tx rollback failed",
				interfaces.Field{Key: "error", Value: rerr.Error()})
		}
	}()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT report_json FROM handoff_reports WHERE token = ?`, token).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM handoff_reports WHERE token = ?`, token); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	var report model.AuditReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, false, fmt.Errorf("decoding handoff report: %w", err)
	}
	return &report, true, nil
}

// PruneOlderThan removes abandoned entries (written but never collected)
// older than age. Returns the number of rows removed.
func (s *Store) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM handoff_reports WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
