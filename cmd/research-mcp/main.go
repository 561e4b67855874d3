package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mikeboe/research-mcp/pkg/app"
	"github.com/mikeboe/research-mcp/pkg/config"
	"github.com/mikeboe/research-mcp/pkg/mcpserver"
	"github.com/mikeboe/research-mcp/pkg/tools"
)

var (
	configPath    string
	query         string
	instruction   string
	model         string
	maxIterations int
	useSearch     bool
)

func main() {
	// It's okay if .env doesn't exist, as long as env vars are set
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "research-mcp",
		Short: "MCP server for web research with Gemini",
		Long: `research-mcp serves the analyze_urls, web_search and research_or_scrape tools over MCP on stdio.
The subcommands run a single tool from the terminal.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			slog.Info("Serving MCP over stdio", "name", mcpserver.Name, "version", mcpserver.Version)
			return mcpserver.ServeStdio(cmd.Context(), mcpserver.New(ts))
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables take precedence)")

	researchCmd := &cobra.Command{
		Use:   "research",
		Short: "Research a query iteratively and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ts, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			args := tools.ResearchArgs{
				Query:       query,
				Instruction: instruction,
				Model:       model,
			}
			if cmd.Flags().Changed("max-iterations") {
				args.MaxIterations = &maxIterations
			}
			resp, err := ts.ResearchOrScrape(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			return nil
		},
	}
	researchCmd.Flags().StringVarP(&query, "query", "q", "", "The research question")
	researchCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Research rounds, 1-5 (default from MAX_ITERATIONS)")
	researchCmd.Flags().StringVar(&instruction, "instruction", "", "Instruction for reading the found sources")
	researchCmd.Flags().StringVar(&model, "model", "", "Gemini model id")
	_ = researchCmd.MarkFlagRequired("query")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <url>...",
		Short: "Analyze one or more URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := ts.AnalyzeURLs(cmd.Context(), tools.AnalyzeURLsArgs{
				URLs:            args,
				Instruction:     instruction,
				Model:           model,
				UseGoogleSearch: useSearch,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			return nil
		},
	}
	analyzeCmd.Flags().StringVar(&instruction, "instruction", "", "What to extract from the pages")
	analyzeCmd.Flags().StringVar(&model, "model", "", "Gemini model id")
	analyzeCmd.Flags().BoolVar(&useSearch, "search", false, "Also ground with Google Search")

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Answer a query grounded in Google Search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := ts.WebSearch(cmd.Context(), tools.WebSearchArgs{
				Query:       strings.Join(args, " "),
				Instruction: instruction,
				Model:       model,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			return nil
		},
	}
	searchCmd.Flags().StringVar(&instruction, "instruction", "", "Instruction for the answer")
	searchCmd.Flags().StringVar(&model, "model", "", "Gemini model id")

	rootCmd.AddCommand(researchCmd, analyzeCmd, searchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

// setup loads configuration and installs the stderr logger. stdout is
// reserved for the MCP stdio channel and tool output.
func setup(ctx context.Context) (*tools.Toolset, error) {
	cfg := config.Load()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return nil, err
		}
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))

	if cfg.GoogleAPIKey == "" {
		slog.Warn("GOOGLE_API_KEY is not set; tool calls will fail until it is configured")
	}

	a, err := app.New(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	return a.NewToolset(slog.Default()), nil
}
