package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/espartina/boletin/internal/config"
	"github.com/espartina/boletin/internal/logging"
)

// Failed runs are retried a couple of times before giving up until the next
// scheduled slot.
const (
	runRetries    = 2
	runRetryDelay = 60 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily scrape and weekly report on a schedule",
	Long: `Stay resident and execute the pipeline on the configured cron schedule:
the scrape every morning and the email report once a week, in the gazette's
timezone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := logging.Setup("serve", cfg.LogDir()); err != nil {
			return err
		}

		loc, err := time.LoadLocation(cfg.Schedule.Timezone)
		if err != nil {
			return fmt.Errorf("loading timezone %q: %w", cfg.Schedule.Timezone, err)
		}

		c := cron.New(cron.WithLocation(loc))

		if _, err := c.AddFunc(cfg.Schedule.Scrape, func() {
			runWithRetries(cmd.Context(), "scrape", cfg, runScrape)
		}); err != nil {
			return fmt.Errorf("scheduling scrape: %w", err)
		}
		if _, err := c.AddFunc(cfg.Schedule.Report, func() {
			runWithRetries(cmd.Context(), "report", cfg, runReport)
		}); err != nil {
			return fmt.Errorf("scheduling report: %w", err)
		}

		slog.Info("scheduler started",
			"timezone", cfg.Schedule.Timezone,
			"scrape", cfg.Schedule.Scrape,
			"report", cfg.Schedule.Report)
		c.Run()
		return nil
	},
}

func runWithRetries(ctx context.Context, name string, cfg *config.Config, run func(context.Context, *config.Config) error) {
	for attempt := 0; ; attempt++ {
		err := run(ctx, cfg)
		if err == nil {
			return
		}
		slog.Error("scheduled run failed", "run", name, "attempt", attempt+1, "error", err)
		if attempt >= runRetries {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(runRetryDelay):
		}
	}
}
