package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBLogHandlerPersistsAttributes(t *testing.T) {
	store := NewMemoryStore()
	jobID := uuid.New()

	logger := slog.New(NewDBLogHandler(store, jobID)).With("job_id", jobID.String())
	logger.WithGroup("search").Info("Starting search phase", "query", "go generics", "err", errors.New("boom"))
	logger.Debug("below level")

	logs, err := store.GetJobLogs(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "INFO", logs[0].Level)
	assert.Equal(t, "Starting search phase", logs[0].Message)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(logs[0].Metadata, &meta))
	assert.Equal(t, jobID.String(), meta["job_id"])
	assert.Equal(t, "go generics", meta["search.query"])
	assert.Equal(t, "boom", meta["search.err"])
}

func TestTeeHandlerWritesToAll(t *testing.T) {
	a, b := NewMemoryStore(), NewMemoryStore()
	id := uuid.New()

	logger := slog.New(teeHandler{NewDBLogHandler(a, id), NewDBLogHandler(b, id)})
	logger.Warn("Stopping", "reason", "max_iterations")

	for _, s := range []*MemoryStore{a, b} {
		logs, err := s.GetJobLogs(context.Background(), id)
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	}
}
