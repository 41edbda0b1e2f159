package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "boletin",
	Short: "Boletín Oficial relevance pipeline",
	Long: "boletin scrapes Argentina's Official Gazette, scores each resolution for agricultural\n" +
		"relevance, keeps the relevant subset in a spreadsheet, and emails a weekly digest.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("boletin %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
