package store

import (
	"errors"
	"testing"
	"time"
)

// Helper function to create an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := store.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return store
}

func sampleRun(createdAt time.Time, status int) *RunRecord {
	return &RunRecord{
		CreatedAt:  createdAt,
		BeforeDir:  "/out/before",
		AfterDir:   "/out/after",
		StatusCode: status,
		Summary:    "summary",
		Packages: []RunPackage{
			{Package: "web_engine", CompressedDelta: 20000, UncompressedDelta: 40000},
			{Package: "cast_runner", CompressedDelta: -12, UncompressedDelta: 0},
		},
	}
}

func TestNew(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store.db should not be nil")
	}
}

func TestCreateSchema(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	tables := []string{"runs", "run_packages"}
	for _, table := range tables {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	// Running twice must be harmless.
	if err := store.CreateSchema(); err != nil {
		t.Errorf("second CreateSchema() failed: %v", err)
	}
}

func TestListRuns_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	_, err = s.ListRuns(0)
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListRuns() error = %v; want errors.Is(err, ErrNotInitialized)", err)
	}
}

func TestInsertRun_GetRun(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := store.InsertRun(sampleRun(created, 1))
	if err != nil {
		t.Fatalf("InsertRun() failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive run ID, got %d", id)
	}

	run, err := store.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if run.StatusCode != 1 {
		t.Errorf("StatusCode = %d, want 1", run.StatusCode)
	}
	if run.BeforeDir != "/out/before" || run.AfterDir != "/out/after" {
		t.Errorf("dirs = (%s, %s), want (/out/before, /out/after)", run.BeforeDir, run.AfterDir)
	}
	if !run.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", run.CreatedAt, created)
	}

	pkgs, err := store.GetRunPackages(id)
	if err != nil {
		t.Fatalf("GetRunPackages() failed: %v", err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(pkgs))
	}
	// Comparison order is kept, not alphabetical.
	if pkgs[0].Package != "web_engine" || pkgs[1].Package != "cast_runner" {
		t.Errorf("package order = [%s %s], want [web_engine cast_runner]", pkgs[0].Package, pkgs[1].Package)
	}
	if pkgs[1].CompressedDelta != -12 {
		t.Errorf("cast_runner compressed delta = %d, want -12", pkgs[1].CompressedDelta)
	}
}

func TestInsertRun_DuplicatePackageRollsBack(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	rec := sampleRun(time.Now(), 0)
	rec.Packages = append(rec.Packages, RunPackage{Package: "web_engine"})

	if _, err := store.InsertRun(rec); err == nil {
		t.Fatal("expected error for duplicate package in run")
	}

	runs, err := store.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected rollback to leave no runs, got %d", len(runs))
	}
}

func TestGetRun_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetRun(42)
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}

	_, err = store.GetRunPackages(42)
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRunPackages() error = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns_NewestFirstWithLimit(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := store.InsertRun(sampleRun(base.AddDate(0, 0, i), 0)); err != nil {
			t.Fatalf("InsertRun() failed: %v", err)
		}
	}

	runs, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].CreatedAt.After(runs[1].CreatedAt) {
		t.Errorf("runs not ordered newest first: %v then %v", runs[0].CreatedAt, runs[1].CreatedAt)
	}

	all, err := store.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns(0) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs, got %d", len(all))
	}
}

func TestPruneRuns(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	old := time.Now().AddDate(0, 0, -120)
	recent := time.Now().AddDate(0, 0, -1)

	oldID, err := store.InsertRun(sampleRun(old, 1))
	if err != nil {
		t.Fatalf("InsertRun() failed: %v", err)
	}
	if _, err := store.InsertRun(sampleRun(recent, 0)); err != nil {
		t.Fatalf("InsertRun() failed: %v", err)
	}

	n, err := store.PruneRuns(time.Now().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("PruneRuns() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("PruneRuns() removed %d runs, want 1", n)
	}

	var remaining int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM run_packages WHERE run_id = ?", oldID).Scan(&remaining); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected cascade delete of run packages, %d remain", remaining)
	}
}

func TestCountRuns(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	total, failed, err := store.CountRuns()
	if err != nil {
		t.Fatalf("CountRuns() failed: %v", err)
	}
	if total != 0 || failed != 0 {
		t.Errorf("CountRuns() on empty store = (%d, %d), want (0, 0)", total, failed)
	}

	for _, status := range []int{0, 1, 1} {
		if _, err := store.InsertRun(sampleRun(time.Now(), status)); err != nil {
			t.Fatalf("InsertRun() failed: %v", err)
		}
	}

	total, failed, err = store.CountRuns()
	if err != nil {
		t.Fatalf("CountRuns() failed: %v", err)
	}
	if total != 3 || failed != 2 {
		t.Errorf("CountRuns() = (%d, %d), want (3, 2)", total, failed)
	}
}
