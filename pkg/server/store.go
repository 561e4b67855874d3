package server

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/research-mcp/pkg/database"
)

// Store persists research jobs and their logs. *database.PostgresDB is the
// production implementation.
type Store interface {
	CreateJob(ctx context.Context, query string, request json.RawMessage) (*database.Job, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	CompleteJob(ctx context.Context, id uuid.UUID, report, stopReason string) error
	FailJob(ctx context.Context, id uuid.UUID, reason string) error
	GetJob(ctx context.Context, id uuid.UUID) (*database.Job, error)
	ListJobs(ctx context.Context, limit int) ([]database.Job, error)
	InsertLog(ctx context.Context, entry database.LogEntry) error
	GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]database.LogEntry, error)
}

var _ Store = (*database.PostgresDB)(nil)

// MemoryStore keeps jobs in process memory. It is used when no DATABASE_URL
// is configured; jobs are lost on restart.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*database.Job
	logs map[uuid.UUID][]database.LogEntry
	seq  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*database.Job),
		logs: make(map[uuid.UUID][]database.LogEntry),
	}
}

func (m *MemoryStore) CreateJob(_ context.Context, query string, request json.RawMessage) (*database.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	job := &database.Job{
		ID:        uuid.New(),
		Query:     query,
		Request:   request,
		Status:    database.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.jobs[job.ID] = job
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) update(id uuid.UUID, fn func(*database.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return database.ErrJobNotFound
	}
	fn(job)
	job.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) MarkRunning(_ context.Context, id uuid.UUID) error {
	return m.update(id, func(j *database.Job) { j.Status = database.StatusRunning })
}

func (m *MemoryStore) CompleteJob(_ context.Context, id uuid.UUID, report, stopReason string) error {
	return m.update(id, func(j *database.Job) {
		j.Status = database.StatusCompleted
		j.Report = &report
		j.StopReason = &stopReason
	})
}

func (m *MemoryStore) FailJob(_ context.Context, id uuid.UUID, reason string) error {
	return m.update(id, func(j *database.Job) {
		j.Status = database.StatusFailed
		j.Error = &reason
	})
}

func (m *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*database.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, database.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) ListJobs(_ context.Context, limit int) ([]database.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make([]database.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, *j)
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].CreatedAt.After(jobs[b].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (m *MemoryStore) InsertLog(_ context.Context, entry database.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	entry.ID = m.seq
	m.logs[entry.JobID] = append(m.logs[entry.JobID], entry)
	return nil
}

func (m *MemoryStore) GetJobLogs(_ context.Context, jobID uuid.UUID) ([]database.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]database.LogEntry{}, m.logs[jobID]...), nil
}
