package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mikeboe/research-mcp/pkg/app"
	"github.com/mikeboe/research-mcp/pkg/config"
	"github.com/mikeboe/research-mcp/pkg/database"
	"github.com/mikeboe/research-mcp/pkg/mcpserver"
	"github.com/mikeboe/research-mcp/pkg/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg := config.Load()

	console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(console))

	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, reg)
	if err != nil {
		slog.Error("Failed to init research backends", "error", err)
		os.Exit(1)
	}

	// Jobs are kept in Postgres when configured, in memory otherwise.
	var store server.Store = server.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.InitSchema(ctx); err != nil {
			slog.Error("Failed to initialize schema", "error", err)
			os.Exit(1)
		}
		store = db
	} else {
		slog.Warn("DATABASE_URL is not set; research jobs are kept in memory")
	}

	ts := a.NewToolset(slog.Default())
	svc := server.NewService(store, a.NewEngine, console, cfg.RequestTimeout())
	handler := server.NewHandler(svc, ts, mcpserver.HTTPHandler(mcpserver.New(ts)), reg)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposeHeaders: []string{"Content-Length", "Mcp-Session-Id"},
	}))

	handler.RegisterRoutes(r)

	slog.Info("Server starting", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
