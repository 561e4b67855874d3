package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrJobNotFound = errors.New("job not found")

type Job struct {
	ID         uuid.UUID       `json:"id"`
	Query      string          `json:"query"`
	Request    json.RawMessage `json:"request,omitempty"`
	Status     string          `json:"status"`
	Report     *string         `json:"report,omitempty"`
	StopReason *string         `json:"stop_reason,omitempty"`
	Error      *string         `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type LogEntry struct {
	ID        int             `json:"id"`
	JobID     uuid.UUID       `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

const jobColumns = `id, query, request, status, report, stop_reason, error, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	job := &Job{}
	err := row.Scan(&job.ID, &job.Query, &job.Request, &job.Status, &job.Report,
		&job.StopReason, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (db *PostgresDB) CreateJob(ctx context.Context, query string, request json.RawMessage) (*Job, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO research_jobs (id, query, request, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+jobColumns,
		uuid.New(), query, request, StatusPending)

	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (db *PostgresDB) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return db.setStatus(ctx, id, StatusRunning)
}

func (db *PostgresDB) CompleteJob(ctx context.Context, id uuid.UUID, report, stopReason string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE research_jobs
		SET status = $2, report = $3, stop_reason = $4, updated_at = NOW()
		WHERE id = $1`,
		id, StatusCompleted, report, stopReason)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

func (db *PostgresDB) FailJob(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE research_jobs
		SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1`,
		id, StatusFailed, reason)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

func (db *PostgresDB) setStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := db.Pool.Exec(ctx, "UPDATE research_jobs SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := scanJob(db.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM research_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs first.
func (db *PostgresDB) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM research_jobs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (db *PostgresDB) InsertLog(ctx context.Context, entry LogEntry) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO research_logs (job_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.JobID, entry.Timestamp, entry.Level, entry.Message, entry.Metadata)
	return err
}

func (db *PostgresDB) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, job_id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	logs := []LogEntry{}
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.JobID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
