package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/espartina/boletin/internal/classifier"
	"github.com/espartina/boletin/internal/config"
	"github.com/espartina/boletin/internal/logging"
	"github.com/espartina/boletin/internal/mailer"
	"github.com/espartina/boletin/internal/report"
	"github.com/espartina/boletin/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Email the weekly digest of relevant resolutions",
	Long: `Read the resolutions from the configured window (archiving older rows),
render the HTML digest, and send it over SMTP. TEST_MODE routes the mail
back to EMAIL_FROM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := logging.Setup("email_report", cfg.LogDir()); err != nil {
			return err
		}
		return runReport(cmd.Context(), cfg)
	},
}

func runReport(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(true); err != nil {
		return err
	}
	slog.Info("starting weekly email report")

	recipients := mailer.Recipients(cfg)
	days := cfg.Report.Days

	records, err := store.New(cfg.ExcelPath()).ReadRecent(days, true)
	if err != nil {
		return fmt.Errorf("reading store: %w", err)
	}
	if len(records) == 0 {
		slog.Warn("no regulations found for the report window", "days", days)
		return nil
	}

	// Highest relevance first, capped for the email.
	records = report.TopByRelevance(records, cfg.Report.Top)

	llm := classifier.New(cfg.OpenAI, cfg.OpenAIAPIKey)
	periodLabel := fmt.Sprintf("los últimos %d días", days)
	html := report.Render(ctx, records, periodLabel, llm)

	m := mailer.New(cfg)
	if err := m.Send(ctx, recipients, mailer.Subject(time.Now()), html); err != nil {
		return err
	}
	slog.Info("weekly report sent")
	return nil
}
