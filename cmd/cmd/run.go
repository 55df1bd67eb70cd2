package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"paperguild/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	var (
		topic      string
		days       int
		maxResults int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the digest pipeline once, in the foreground",
		Long: `Run one full pipeline pass and print the outcome.

Examples:
  # Run with the configured defaults
  paperguild run

  # Run on a different topic over the last week
  paperguild run --topic "mechanistic interpretability" --days 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if topic != "" {
				cfg.Pipeline.Topic = topic
			}
			if days > 0 {
				cfg.Pipeline.Days = days
			}
			if maxResults > 0 {
				cfg.Pipeline.MaxResults = maxResults
			}

			ctx := cmd.Context()
			p, db, err := buildPipeline(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			outcome, err := p.Run(ctx, pipeline.Params{
				Topic:      cfg.Pipeline.Topic,
				Days:       cfg.Pipeline.Days,
				MaxResults: cfg.Pipeline.MaxResults,
			}, func(line string) {
				if line != pipeline.DoneMarker {
					fmt.Println(line)
				}
			})
			if err != nil {
				return err
			}

			fmt.Printf("\nFetched %d, summarized %d, reviewed %d papers.\n",
				outcome.Fetched, outcome.Summarized, outcome.Reviewed)
			if len(outcome.Trends) > 0 {
				fmt.Println("\nTrends:")
				for _, trend := range outcome.Trends {
					fmt.Printf("  %-50s papers=%d growth=%+.2f\n", trend.Label, trend.Count, trend.Growth)
				}
			}
			if outcome.ReadingPlan != "" {
				fmt.Printf("\nReading plan:\n%s\n", outcome.ReadingPlan)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "research topic to fetch (default from config)")
	cmd.Flags().IntVar(&days, "days", 0, "how many days back to search (default from config)")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "max papers per catalog (default from config)")

	return cmd
}
