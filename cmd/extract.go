package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobscall-crawler/internal/structured"
)

// newExtractCmd creates the 'extract' subcommand, which turns stored
// Markdown into structured job records.
func newExtractCmd() *cobra.Command {
	var (
		date     string
		file     string
		populate bool
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract structured job records from stored Markdown",
		Long: `Sends each stored Markdown posting of a run date to Gemini, writes the
validated answer to json/<name>.json, and splits it into one
final/<name>-NNN.json per job. With --populate only the split step runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if date == "" {
				date = appInstance.Today()
			}
			var report structured.Report
			if populate {
				report, err = appInstance.Populate(cmd.Context(), date)
			} else {
				report, err = appInstance.Extract(cmd.Context(), date, file)
			}
			if err != nil {
				return fmt.Errorf("extract %s: %w", date, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files, %d succeeded, %d failed, %d jobs written\n",
				date, report.Files, report.Succeeded, report.Failed, report.JobsWritten)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "run date (YYYYMMDD), default today")
	cmd.Flags().StringVar(&file, "file", "", "process a single Markdown file")
	cmd.Flags().BoolVar(&populate, "populate", false, "only split existing json/ results into final/")
	cmd.MarkFlagsMutuallyExclusive("file", "populate")
	return cmd
}
