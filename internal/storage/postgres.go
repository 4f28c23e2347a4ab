package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultStore persists modeling jobs and their results to PostgreSQL. It is
// strictly best-effort: when no DATABASE_URL is configured the service runs
// memory-only and every method is a no-op on the nil store. Persistence
// failures after a successful job are logged by the caller and never change
// job status.
type ResultStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

const resultSchema = `
CREATE TABLE IF NOT EXISTS modeling_jobs (
    job_id        TEXT PRIMARY KEY,
    channels      JSONB NOT NULL,
    algorithm     TEXT NOT NULL,
    num_topics    INT NOT NULL,
    status        TEXT NOT NULL,
    error_message TEXT,
    result        JSONB,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    completed_at  TIMESTAMPTZ
)`

// NewResultStore connects and ensures the schema exists.
func NewResultStore(ctx context.Context, log *slog.Logger, databaseURL string) (*ResultStore, error) {
	if log == nil {
		log = slog.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, resultSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	log.Info("result store connected")
	return &ResultStore{log: log, pool: pool}, nil
}

func (s *ResultStore) enabled() bool {
	return s != nil && s.pool != nil
}

// CreateJob inserts a queued job row.
func (s *ResultStore) CreateJob(ctx context.Context, jobID string, channels []string, algorithm string, numTopics int, createdAt time.Time) error {
	if !s.enabled() {
		return nil
	}
	chJSON, err := json.Marshal(channels)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO modeling_jobs (job_id, channels, algorithm, num_topics, status, created_at)
		 VALUES ($1, $2, $3, $4, 'queued', $5)
		 ON CONFLICT (job_id) DO NOTHING`,
		jobID, chJSON, algorithm, numTopics, createdAt)
	return err
}

// UpdateStatus records a status transition; errMsg is kept for error states.
func (s *ResultStore) UpdateStatus(ctx context.Context, jobID, status, errMsg string) error {
	if !s.enabled() {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE modeling_jobs
		 SET status = $2,
		     error_message = NULLIF($3, ''),
		     completed_at = CASE WHEN $2 IN ('completed', 'error') THEN now() ELSE completed_at END
		 WHERE job_id = $1`,
		jobID, status, errMsg)
	return err
}

// SaveResult stores the full result payload as JSONB.
func (s *ResultStore) SaveResult(ctx context.Context, jobID string, result any) error {
	if !s.enabled() {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE modeling_jobs SET result = $2, status = 'completed', completed_at = now() WHERE job_id = $1`,
		jobID, payload)
	return err
}

// DeleteJob removes the job row. Reports whether a row existed.
func (s *ResultStore) DeleteJob(ctx context.Context, jobID string) (bool, error) {
	if !s.enabled() {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM modeling_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Ping reports database connectivity for health checks.
func (s *ResultStore) Ping(ctx context.Context) error {
	if !s.enabled() {
		return fmt.Errorf("result store not configured")
	}
	return s.pool.Ping(ctx)
}

func (s *ResultStore) Close() {
	if s.enabled() {
		s.pool.Close()
	}
}
