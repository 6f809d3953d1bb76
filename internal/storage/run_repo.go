package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_run_store.go -package=mocks pdfqa/internal/storage RunStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

const timeLayout = time.RFC3339Nano

// RunStore defines the ingestion ledger operations.
type RunStore interface {
	// StartRun inserts a running run. A missing ID is generated.
	StartRun(ctx context.Context, run *Run) error
	// RecordBatch records a committed batch and adds its size to the run's committed count.
	RecordBatch(ctx context.Context, runID string, batchIndex, size int) error
	// FinishRun stores the final status and counters of a run.
	FinishRun(ctx context.Context, run *Run) error
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	// GetRun returns ErrNotFound if no run has the given ID.
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListBatches returns a run's batches ordered by index.
	ListBatches(ctx context.Context, runID string) ([]Batch, error)
}

// RunRepo implements RunStore on SQLite.
type RunRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db, now: time.Now}
}

func (r *RunRepo) StartRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.Status = RunRunning
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, dir, reset, status, index_version, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dir, run.Reset, run.Status, run.IndexVersion, run.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (r *RunRepo) RecordBatch(ctx context.Context, runID string, batchIndex, size int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO batches (run_id, batch_index, size, committed_at) VALUES (?, ?, ?, ?)",
		runID, batchIndex, size, r.now().UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE runs SET committed = committed + ? WHERE id = ?", size, runID,
	); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch record: %w", err)
	}
	return nil
}

func (r *RunRepo) FinishRun(ctx context.Context, run *Run) error {
	finished := r.now().UTC()
	run.FinishedAt = &finished

	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, documents = ?, chunks = ?, committed = ?, error = ?, index_version = ?, finished_at = ?
		 WHERE id = ?`,
		run.Status, run.Documents, run.Chunks, run.Committed, run.Error, run.IndexVersion,
		finished.Format(timeLayout), run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = "id, dir, reset, status, documents, chunks, committed, error, index_version, started_at, finished_at"

func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func (r *RunRepo) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

func (r *RunRepo) ListBatches(ctx context.Context, runID string) ([]Batch, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT run_id, batch_index, size, committed_at FROM batches WHERE run_id = ? ORDER BY batch_index",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var committedAt string
		if err := rows.Scan(&b.RunID, &b.Index, &b.Size, &committedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		if b.CommittedAt, err = time.Parse(timeLayout, committedAt); err != nil {
			return nil, fmt.Errorf("failed to parse committed_at timestamp: %w", err)
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return batches, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var status, startedAt string
	var finishedAt sql.NullString

	err := row.Scan(&run.ID, &run.Dir, &run.Reset, &status, &run.Documents, &run.Chunks,
		&run.Committed, &run.Error, &run.IndexVersion, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = RunStatus(status)
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at timestamp: %w", err)
		}
		run.FinishedAt = &t
	}

	return &run, nil
}
