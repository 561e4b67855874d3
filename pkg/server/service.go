package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/research-mcp/pkg/database"
	"github.com/mikeboe/research-mcp/pkg/research"
	"github.com/mikeboe/research-mcp/pkg/tools"
)

const listLimit = 50

// EngineFactory returns a research engine that logs to logger.
type EngineFactory func(logger *slog.Logger) *research.Engine

// Service runs research jobs in the background and records their outcome.
type Service struct {
	Store     Store
	NewEngine EngineFactory
	Console   slog.Handler
	Timeout   time.Duration

	wg sync.WaitGroup
}

func NewService(store Store, newEngine EngineFactory, console slog.Handler, timeout time.Duration) *Service {
	return &Service{
		Store:     store,
		NewEngine: newEngine,
		Console:   console,
		Timeout:   timeout,
	}
}

type CreateJobRequest struct {
	Query         string `json:"query"`
	Instruction   string `json:"instruction,omitempty"`
	Model         string `json:"model,omitempty"`
	MaxIterations *int   `json:"max_iterations,omitempty"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*database.Job, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, research.NewValidationError("query", "'query' must be a non-empty string")
	}
	requestJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job request: %w", err)
	}

	job, err := s.Store.CreateJob(ctx, req.Query, requestJSON)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runWorker(job.ID, req)
	}()

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*database.Job, error) {
	return s.Store.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context) ([]database.Job, error) {
	return s.Store.ListJobs(ctx, listLimit)
}

func (s *Service) GetJobLogs(ctx context.Context, id uuid.UUID) ([]database.LogEntry, error) {
	if _, err := s.Store.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.GetJobLogs(ctx, id)
}

// Wait blocks until every started job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) runWorker(jobID uuid.UUID, req CreateJobRequest) {
	ctx := context.Background()
	logger := s.jobLogger(jobID)

	if err := s.Store.MarkRunning(ctx, jobID); err != nil {
		logger.Error("Failed to mark job running", "error", err)
	}

	ts := tools.NewToolset(s.NewEngine(logger), s.Timeout)
	ts.Logger = logger

	report, err := ts.Research(ctx, tools.ResearchArgs{
		Query:         req.Query,
		Instruction:   req.Instruction,
		Model:         req.Model,
		MaxIterations: req.MaxIterations,
	})
	if err != nil {
		logger.Error("Research failed", "error", err)
		if ferr := s.Store.FailJob(ctx, jobID, err.Error()); ferr != nil {
			logger.Error("Failed to mark job failed", "error", ferr)
		}
		return
	}

	if err := s.Store.CompleteJob(ctx, jobID, report.String(), string(report.StopReason)); err != nil {
		logger.Error("Failed to save final report", "error", err)
	}
}

func (s *Service) jobLogger(jobID uuid.UUID) *slog.Logger {
	handler := slog.Handler(NewDBLogHandler(s.Store, jobID))
	if s.Console != nil {
		handler = teeHandler{s.Console, handler}
	}
	return slog.New(handler).With("job_id", jobID.String())
}
