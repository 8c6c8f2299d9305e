package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"shorts-pipeline/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps pgxpool for Postgres persistence of job records.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// RunMigrations applies the embedded schema. Statements are idempotent.
func (s *Store) RunMigrations(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateJob inserts a pending job for a source file. The source_file_ref
// unique constraint makes enqueueing the same file twice a no-op; created
// reports whether a new row was actually inserted.
func (s *Store) CreateJob(ctx context.Context, sourceRef, sourceName string) (models.Job, bool, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, source_file_ref, source_file_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (source_file_ref) DO NOTHING
	`, id, sourceRef, sourceName, models.StatusPending, now)
	if err != nil {
		return models.Job{}, false, fmt.Errorf("insert job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Job{}, false, nil
	}

	return models.Job{
		ID:             id,
		SourceFileRef:  sourceRef,
		SourceFileName: sourceName,
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, true, nil
}

// ClaimPending atomically picks the oldest pending job and transitions it
// to processing in a single statement, so two workers can never hold the
// same job. Returns ok=false when nothing is pending.
func (s *Store) ClaimPending(ctx context.Context) (models.Job, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, source_file_ref, source_file_name, status, error, created_at, updated_at
	`, models.StatusProcessing, models.StatusPending)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, fmt.Errorf("claim pending job: %w", err)
	}
	return job, true, nil
}

// MarkCompleted transitions a job to its successful terminal state.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, error = NULL, updated_at = NOW() WHERE id = $1
	`, id, models.StatusCompleted)
	return err
}

// MarkFailed transitions a job to failed with a human-readable reason.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, error = $3, updated_at = NOW() WHERE id = $1
	`, id, models.StatusFailed, reason)
	return err
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (models.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, source_file_ref, source_file_name, status, error, created_at, updated_at
		FROM jobs WHERE id = $1
	`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, fmt.Errorf("job not found: %w", err)
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// KnownSourceRefs returns the set of source file refs that already have a
// job, in any state. Used by the enqueue path to skip seen files.
func (s *Store) KnownSourceRefs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT source_file_ref FROM jobs`)
	if err != nil {
		return nil, fmt.Errorf("list source refs: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]struct{})
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("scan source ref: %w", err)
		}
		refs[ref] = struct{}{}
	}
	return refs, rows.Err()
}

// ReclaimStale flips processing jobs that have not been touched for at
// least age back to pending. A crash mid-job leaves the row in processing
// forever otherwise; this is opt-in and normally run once at startup.
func (s *Store) ReclaimStale(ctx context.Context, age time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < NOW() - $3::interval
	`, models.StatusPending, models.StatusProcessing, fmt.Sprintf("%f seconds", age.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByStatus returns how many jobs currently sit in the given state.
func (s *Store) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM jobs WHERE status = $1
	`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

func scanJob(row pgx.Row) (models.Job, error) {
	var job models.Job
	var errText pgtype.Text
	if err := row.Scan(&job.ID, &job.SourceFileRef, &job.SourceFileName, &job.Status, &errText, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return models.Job{}, err
	}
	if errText.Valid {
		job.Error = &errText.String
	}
	return job, nil
}
