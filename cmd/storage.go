package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/espartina/boletin/internal/config"
	"github.com/espartina/boletin/internal/store"
)

var flagArchiveDays int

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Drop resolutions older than the report window from the spreadsheet",
	Long: `Compact the spreadsheet to the rows inside the retention window. This is
the same eviction the weekly report performs; run it standalone to reclaim
the file without sending mail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		days := cfg.Report.Days
		if flagArchiveDays > 0 {
			days = flagArchiveDays
		}

		s := store.New(cfg.ExcelPath())
		before, _, err := s.Stats()
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}

		kept, err := s.ReadRecent(days, true)
		if err != nil {
			return fmt.Errorf("archiving: %w", err)
		}

		dropped := before - len(kept)
		if dropped <= 0 {
			fmt.Println("Nothing to archive.")
		} else {
			fmt.Printf("Archived %d resolution(s) older than %d days, kept %d.\n", dropped, days, len(kept))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show spreadsheet statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		s := store.New(cfg.ExcelPath())
		count, size, err := s.Stats()
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		fmt.Printf("Store: %s\n", s.Path())
		fmt.Printf("Resolutions: %d\n", count)
		fmt.Printf("Size: %s\n", formatBytes(size))
		return nil
	},
}

func init() {
	archiveCmd.Flags().IntVar(&flagArchiveDays, "days", 0, "override the retention window in days")
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
