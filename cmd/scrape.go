package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/espartina/boletin/internal/classifier"
	"github.com/espartina/boletin/internal/config"
	"github.com/espartina/boletin/internal/logging"
	"github.com/espartina/boletin/internal/scraper"
	"github.com/espartina/boletin/internal/store"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape today's gazette and store the relevant resolutions",
	Long: `Fetch the first section of the Boletín Oficial, classify every notice for
agricultural relevance, and append the resolutions that clear the threshold
to the spreadsheet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := logging.Setup("scraper", cfg.LogDir()); err != nil {
			return err
		}
		return runScrape(cmd.Context(), cfg)
	},
}

func runScrape(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(false); err != nil {
		return err
	}
	slog.Info("starting Boletín Oficial scraper")

	notices, err := scraper.New(cfg.Gazette).FetchNotices(ctx)
	if err != nil {
		return fmt.Errorf("scraping: %w", err)
	}
	if len(notices) == 0 {
		slog.Warn("no regulations found")
		return nil
	}

	llm := classifier.New(cfg.OpenAI, cfg.OpenAIAPIKey)
	records := llm.Enrich(ctx, notices, cfg.OpenAI.RelevanceThreshold)
	if len(records) == 0 {
		slog.Info("no relevant regulations found", "threshold", cfg.OpenAI.RelevanceThreshold)
		return nil
	}

	if err := store.New(cfg.ExcelPath()).Append(records); err != nil {
		return fmt.Errorf("saving: %w", err)
	}
	slog.Info("saved relevant regulations", "count", len(records))
	return nil
}
