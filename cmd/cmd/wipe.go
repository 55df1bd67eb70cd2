package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"paperguild/internal/store"
)

func init() {
	rootCmd.AddCommand(newWipeCmd())
}

func newWipeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all papers, trends, plans and job history",
		Long: `Delete every row of pipeline data from the local database.

User credentials survive the wipe. This cannot be undone; pass --yes to
confirm.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to wipe without --yes")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := store.NewStore(cfg.App.DataDir)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = db.Close() }()

			if err := db.Wipe(); err != nil {
				return fmt.Errorf("wipe failed: %w", err)
			}
			fmt.Println("All pipeline data deleted.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the wipe")
	return cmd
}
