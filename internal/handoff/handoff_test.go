package handoff_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amine-CS96/seo-expert/internal/handoff"
	"github.com/amine-CS96/seo-expert/internal/model"
	"github.com/amine-CS96/seo-expert/internal/testutil"
)

func newStore(t *testing.T) *handoff.Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "handoff.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := handoff.NewStore(db, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func sampleReport() *model.AuditReport {
	return &model.AuditReport{
		URL:          "https://example.com",
		AnalyzedAt:   time.Now().UTC().Truncate(time.Second),
		OverallScore: 64,
		OnPageSEO:    &model.SectionReport{Score: 70, Recommendations: []string{"Shorten the title"}},
	}
}

func TestPutTakeRoundTrip(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()

	token, err := store.Put(ctx, sampleReport())
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	report, ok, err := store.Take(ctx, token)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if !ok {
		t.Fatal("report not found")
	}
	if report.URL != "https://example.com" || report.OverallScore != 64 {
		t.Errorf("report = %+v", report)
	}
	if report.OnPageSEO == nil || len(report.OnPageSEO.Recommendations) != 1 {
		t.Errorf("section lost in round trip: %+v", report.OnPageSEO)
	}
}

func TestTakeIsOneShot(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()

	token, err := store.Put(ctx, sampleReport())
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, ok, err := store.Take(ctx, token); err != nil || !ok {
		t.Fatalf("first take: ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.Take(ctx, token); err != nil || ok {
		t.Fatalf("second take: ok=%v err=%v, want miss", ok, err)
	}
}

func TestTakeUnknownToken(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	_, ok, err := store.Take(context.Background(), "not-a-token")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if ok {
		t.Fatal("found a report for an unknown token")
	}
}

func TestPutNilReport(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	if _, err := store.Put(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil report")
	}
}

func TestPruneOlderThan(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()

	token, err := store.Put(ctx, sampleReport())
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Nothing is old enough yet.
	n, err := store.PruneOlderThan(ctx, time.Hour)
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if n != 0 {
		t.Errorf("pruned %d, want 0", n)
	}

	// Everything is older than a negative cutoff in the future.
	n, err = store.PruneOlderThan(ctx, -time.Hour)
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}

	if _, ok, _ := store.Take(ctx, token); ok {
		t.Error("pruned entry still retrievable")
	}
}
