package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertRun records a run and its per-package growth in one transaction and
// returns the run ID.
func (s *Store) InsertRun(rec *RunRecord) (int64, error) {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO runs (created_at, before_dir, after_dir, status_code, summary)
		VALUES (?, ?, ?, ?, ?)
	`,
		createdAt.UTC().Format(time.RFC3339),
		rec.BeforeDir,
		rec.AfterDir,
		rec.StatusCode,
		rec.Summary,
	)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, wrapQueryErr(err, "failed to insert run")
	}

	runID, err := result.LastInsertId()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_packages (run_id, position, package, compressed_delta, uncompressed_delta)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, pkg := range rec.Packages {
		if _, err := stmt.Exec(runID, i, pkg.Package, pkg.CompressedDelta, pkg.UncompressedDelta); err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, fmt.Errorf("failed to insert package %s: %w", pkg.Package, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id int64) (*Run, error) {
	query := `
		SELECT id, created_at, before_dir, after_dir, status_code, summary
		FROM runs
		WHERE id = ?
	`

	var run Run
	var createdAt string
	var summary sql.NullString

	err := s.db.QueryRow(query, id).Scan(
		&run.ID,
		&createdAt,
		&run.BeforeDir,
		&run.AfterDir,
		&run.StatusCode,
		&summary,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, wrapQueryErr(err, "failed to get run %d", id)
	}

	run.Summary = summary.String
	run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for run %d: %w", id, err)
	}

	return &run, nil
}

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns
// every run.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `
		SELECT id, created_at, before_dir, after_dir, status_code, summary
		FROM runs
		ORDER BY created_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapQueryErr(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var createdAt string
		var summary sql.NullString

		err := rows.Scan(
			&run.ID,
			&createdAt,
			&run.BeforeDir,
			&run.AfterDir,
			&run.StatusCode,
			&summary,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}

		run.Summary = summary.String
		run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for run %d: %w", run.ID, err)
		}

		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// GetRunPackages returns the per-package growth of a run in comparison order.
func (s *Store) GetRunPackages(runID int64) ([]*RunPackage, error) {
	if _, err := s.GetRun(runID); err != nil {
		return nil, err
	}

	query := `
		SELECT run_id, package, compressed_delta, uncompressed_delta
		FROM run_packages
		WHERE run_id = ?
		ORDER BY position
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, wrapQueryErr(err, "failed to get packages for run %d", runID)
	}
	defer rows.Close()

	var packages []*RunPackage
	for rows.Next() {
		var pkg RunPackage
		if err := rows.Scan(&pkg.RunID, &pkg.Package, &pkg.CompressedDelta, &pkg.UncompressedDelta); err != nil {
			return nil, fmt.Errorf("failed to scan run package row: %w", err)
		}
		packages = append(packages, &pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run packages: %w", err)
	}

	return packages, nil
}

// PruneRuns deletes runs created before cutoff and returns how many were
// removed. Package rows go with them via ON DELETE CASCADE.
func (s *Store) PruneRuns(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM runs WHERE created_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, wrapQueryErr(err, "failed to prune runs")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// CountRuns returns the number of recorded runs and how many of them failed.
func (s *Store) CountRuns() (total, failed int, err error) {
	err = s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(status_code != 0), 0) FROM runs`).Scan(&total, &failed)
	if err != nil {
		return 0, 0, wrapQueryErr(err, "failed to count runs")
	}
	return total, failed, nil
}
