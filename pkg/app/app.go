// Package app wires configuration, generation backends, metrics and the
// research engine together for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mikeboe/research-mcp/pkg/clients"
	"github.com/mikeboe/research-mcp/pkg/config"
	"github.com/mikeboe/research-mcp/pkg/metrics"
	"github.com/mikeboe/research-mcp/pkg/research"
	"github.com/mikeboe/research-mcp/pkg/tools"
)

type App struct {
	Config  *config.Config
	Metrics *metrics.Collector

	// Generator serves search, retrieval and (by default) evaluation.
	Generator research.Generator
	// Evaluator is set when coverage evaluation runs on a separate backend.
	Evaluator research.Generator
}

// New builds the generation backends described by cfg and registers metrics on reg.
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	gemini, err := clients.NewGemini(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Metrics: metrics.New(reg),
	}
	a.Generator = a.Metrics.Instrument(gemini)

	if cfg.EvaluatorBackend == config.BackendLangChain {
		lc, err := clients.NewLangChain(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to init evaluator backend: %w", err)
		}
		a.Evaluator = a.Metrics.Instrument(lc)
	}
	return a, nil
}

// NewEngine returns a fresh engine logging to logger.
func (a *App) NewEngine(logger *slog.Logger) *research.Engine {
	engine := research.NewEngine(research.Config{
		DefaultMaxIterations: a.Config.MaxIterations,
		EvaluatorModel:       a.Config.EvaluatorModel,
	}, a.Generator)
	if a.Evaluator != nil {
		engine.Evaluator = research.NewCoverageEvaluator(a.Evaluator, logger)
	}
	engine.SetLogger(logger)
	engine.Observer = a.Metrics
	return engine
}

// NewToolset returns the tool surface over a fresh engine.
func (a *App) NewToolset(logger *slog.Logger) *tools.Toolset {
	ts := tools.NewToolset(a.NewEngine(logger), a.Config.RequestTimeout())
	ts.Logger = logger
	return ts
}
