package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"paperguild/internal/catalog"
	"paperguild/internal/config"
	"paperguild/internal/critique"
	"paperguild/internal/fetch"
	"paperguild/internal/llm"
	"paperguild/internal/logger"
	"paperguild/internal/pipeline"
	"paperguild/internal/plan"
	"paperguild/internal/store"
	"paperguild/internal/summarize"
	"paperguild/internal/trends"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "paperguild",
	Short: "paperguild builds research digests: fetch papers, summarize, review, spot trends, plan reading.",
	Long: `paperguild runs a research digest pipeline over arXiv and Semantic Scholar.

Each run fetches recent papers on a topic, summarizes them with an LLM,
scores them with a critic, clusters the corpus into trends and drafts a
reading plan from the highest-scored recent work.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.paperguild.yaml)")
}

// loadConfig loads configuration and applies the configured log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.App.LogLevel)
	return cfg, nil
}

// buildPipeline wires the five stages against a store and the Gemini oracle.
// The caller owns closing the returned store.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, *store.Store, error) {
	db, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	oracle, err := llm.NewClient(ctx, llm.Config{
		APIKey:         cfg.Gemini.APIKey,
		Model:          cfg.Gemini.Model,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	arxiv := catalog.NewArxivClient(cfg.Catalogs.ArxivBaseURL, cfg.Catalogs.Timeout)
	s2 := catalog.NewS2Client(cfg.Catalogs.S2BaseURL, cfg.Catalogs.S2APIKey, cfg.Catalogs.Timeout)

	p := pipeline.New(
		fetch.NewStage(db, arxiv, s2),
		summarize.NewStage(db, oracle,
			fetch.NewDocumentFetcher(cfg.Catalogs.Timeout),
			catalog.NewAbstractRouter(arxiv, s2),
			cfg.Gemini.TokenBudget),
		critique.NewStage(db, oracle, cfg.Pipeline.MinSummaryLen),
		trends.NewStage(db, oracle, cfg.Pipeline.TrendTopK),
		plan.NewStage(db, oracle, cfg.Pipeline.PlanDays, cfg.Pipeline.PlanTopN),
	)
	return p, db, nil
}
