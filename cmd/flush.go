package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// flushCmd represents the flush command
var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Write every dirty cache entry to the database once",
	Long: `Scans the cache for cache-only writes that have not reached the database
and flushes them. Useful before taking the cache down for maintenance.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logg.Sync()

		a, err := newApplication(cmd.Context(), cfg, logg)
		if err != nil {
			return err
		}
		defer a.Close()

		report := a.flusher.Scan(cmd.Context())
		logg.Info("Flush finished",
			zap.Int("flushed", report.Flushed),
			zap.Int("clean", report.Clean),
			zap.Int("failed", report.Failed),
		)
		if report.Failed > 0 {
			return fmt.Errorf("%d cache entries failed to flush", report.Failed)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(flushCmd)
}
