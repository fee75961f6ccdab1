// Package history records completed audits so the dashboard can show score
// trends and what changed between consecutive audits of the same page.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
	"github.com/amine-CS96/seo-expert/internal/model"
	"github.com/amine-CS96/seo-expert/internal/utils"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotEnoughHistory is returned by CompareLatest when fewer than two
// audits exist for the URL.
var ErrNotEnoughHistory = errors.New("not enough history to compare")

// Entry is one recorded audit.
type Entry struct {
	ID           string    `json:"id"`
	CanonicalURL string    `json:"canonicalUrl"`
	Email        string    `json:"email"`
	OverallScore float64   `json:"overallScore"`
	AnalyzedAt   time.Time `json:"analyzedAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store persists audit history in SQLite.
type Store struct {
	db        *sql.DB
	logger    interfaces.Logger
	canonOpts utils.CanonicalizeOptions
}

// NewStore applies the schema and returns a Store.
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
		db:        db,
		logger:    logger.With(interfaces.Field{Key: "component", Value: "history"}),
		canonOpts: utils.DefaultCanonicalizeOptions(),
	}, nil
}

// Record stores a successful report. The report URL is canonicalized so
// later audits of the same page land on the same key.
func (s *Store) Record(ctx context.Context, email string, report *model.AuditReport) (string, error) {
	if report == nil {
		return "", fmt.Errorf("nil report")
	}
	canon, err := utils.Canonicalize(report.URL, s.canonOpts)
	if err != nil {
		return "", fmt.Errorf("canonicalizing report url: %w", err)
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_history (id, canonical_url, email, overall_score, analyzed_at, created_at, report_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, canon, email, report.OverallScore, report.AnalyzedAt.Unix(), time.Now().Unix(), string(raw))
	if err != nil {
		return "", fmt.Errorf("inserting history entry: %w", err)
	}

	s.logger.Info("audit recorded",
		interfaces.Field{Key: "url", Value: canon},
		interfaces.Field{Key: "overall_score", Value: report.OverallScore})
	return id, nil
}

// ListByURL returns entries for a URL, newest first.
func (s *Store) ListByURL(ctx context.Context, rawURL string, limit int) ([]Entry, error) {
	canon, err := utils.Canonicalize(rawURL, s.canonOpts)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing url: %w", err)
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, canonical_url, email, overall_score, analyzed_at, created_at
		 FROM audit_history WHERE canonical_url = ?
		 ORDER BY created_at DESC, id LIMIT ?`, canon, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var analyzedAt, createdAt int64
		if err := rows.Scan(&e.ID, &e.CanonicalURL, &e.Email, &e.OverallScore, &analyzedAt, &createdAt); err != nil {
			return nil, err
		}
		e.AnalyzedAt = time.Unix(analyzedAt, 0).UTC()
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// DiffSegment is one span of the recommendation diff.
type DiffSegment struct {
	Op   string `json:"op"` // "insert" | "delete" | "equal"
	Text string `json:"text"`
}

// RecommendationsDiff is what changed in the recommendations between the
// two most recent audits of a URL.
type RecommendationsDiff struct {
	BaseID    string        `json:"baseId"`
	HeadID    string        `json:"headId"`
	BaseScore float64       `json:"baseScore"`
	HeadScore float64       `json:"headScore"`
	Segments  []DiffSegment `json:"segments"`
}

// CompareLatest diffs the recommendation sets of the two most recent audits
// for a URL (older as base, newer as head).
func (s *Store) CompareLatest(ctx context.Context, rawURL string) (*RecommendationsDiff, error) {
	canon, err := utils.Canonicalize(rawURL, s.canonOpts)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing url: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, overall_score, report_json FROM audit_history
		 WHERE canonical_url = ? ORDER BY created_at DESC, id LIMIT 2`, canon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type rec struct {
		id    string
		score float64
		raw   string
	}
	var recs []rec
	for rows.Next() {
		var r rec
		if err := rows.Scan(&r.id, &r.score, &r.raw); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(recs) < 2 {
		return nil, ErrNotEnoughHistory
	}

	head, base := recs[0], recs[1]
	baseText, err := recommendationsText(base.raw)
	if err != nil {
		return nil, err
	}
	headText, err := recommendationsText(head.raw)
	if err != nil {
		return nil, err
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(baseText, headText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	segments := make([]DiffSegment, 0, len(diffs))
	for _, d := range diffs {
		seg := DiffSegment{Text: d.Text}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			seg.Op = "insert"
		case diffmatchpatch.DiffDelete:
			seg.Op = "delete"
		default:
			seg.Op = "equal"
		}
		segments = append(segments, seg)
	}

	return &RecommendationsDiff{
		BaseID:    base.id,
		HeadID:    head.id,
		BaseScore: base.score,
		HeadScore: head.score,
		Segments:  segments,
	}, nil
}

// recommendationsText flattens a stored report's recommendations into one
// newline-joined document, sections in stable order.
func recommendationsText(reportJSON string) (string, error) {
	var report model.AuditReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return "", fmt.Errorf("decoding stored report: %w", err)
	}
	sections := report.Sections()
	var lines []string
	for _, name := range model.SectionOrder {
		sec, ok := sections[name]
		if !ok {
			continue
		}
		for _, rec := range sec.Recommendations {
			lines = append(lines, name+": "+rec)
		}
	}
	return strings.Join(lines, "\n"), nil
}
