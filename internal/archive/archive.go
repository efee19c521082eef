package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"github.com/researchly/marketscout/models"
)

// Archive persists terminal jobs to Postgres so finished reports survive a
// process restart. The in-memory store stays the source of truth for live
// jobs; the archive is write-only from the pipeline's completion path.
type Archive struct {
	db     *sql.DB
	logger *log.Logger
}

// New opens the archive database.
func New(ctx context.Context, dsn string, logger *log.Logger) (*Archive, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[ARCHIVE] ", log.LstdFlags)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("archive db unreachable: %w", err)
	}
	return &Archive{db: db, logger: logger}, nil
}

// SaveTerminal upserts a terminal job. Non-terminal jobs are skipped.
func (a *Archive) SaveTerminal(ctx context.Context, job models.Job) error {
	if !job.Status.Terminal() {
		return nil
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.JobID, err)
	}
	_, err = a.db.ExecContext(ctx, `
        INSERT INTO archived_jobs (job_id, kind, status, query, created_at, completed_at, duration_seconds, payload)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (job_id) DO UPDATE SET
            status = EXCLUDED.status,
            completed_at = EXCLUDED.completed_at,
            duration_seconds = EXCLUDED.duration_seconds,
            payload = EXCLUDED.payload`,
		job.JobID, string(job.Kind), string(job.Status), job.Query,
		job.CreatedAt, job.CompletedAt, job.DurationSeconds, payload,
	)
	if err != nil {
		return fmt.Errorf("archive job %s: %w", job.JobID, err)
	}
	a.logger.Printf("[%s] archived %s job (%s)", job.JobID, job.Kind, job.Status)
	return nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
