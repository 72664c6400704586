// File: cmd/history.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/marionette-cli/internal/config"
	"github.com/xkilldash9x/marionette-cli/internal/history"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
)

// newHistoryCmd creates the `history` command, which lists recent runs from
// the PostgreSQL store.
func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Lists recent runs from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("run history is disabled; set history.enabled and history.database_url")
			}

			limit, _ := cmd.Flags().GetInt("limit")

			store, err := history.Connect(ctx, cfg.History.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no recorded runs")
				return nil
			}

			for _, rec := range records {
				fmt.Printf("%s  %-9s  %-40q  %d action(s)  %s\n",
					rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
					rec.State,
					rec.Command,
					len(rec.Actions),
					rec.Duration.Round(100*time.Millisecond),
				)
			}
			return nil
		},
	}

	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list.")
	return historyCmd
}
