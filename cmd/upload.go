package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobscall-crawler/internal/app"
)

// newUploadCmd creates the 'upload' subcommand, which copies final records
// to remote storage.
func newUploadCmd() *cobra.Command {
	var (
		date   string
		dir    string
		target string
	)
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload final job records to remote storage",
		Long: `Uploads every final/*.json record of a run date to the target bucket under
<YYYYMMDD>/<name>. The command fails unless every record was uploaded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if date == "" {
				date = appInstance.Today()
			}
			report, err := appInstance.Upload(cmd.Context(), date, dir, target)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d uploaded\n", date, report.Uploaded, report.Total)
			if err != nil {
				return fmt.Errorf("upload %s: %w", date, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "run date (YYYYMMDD), default today")
	cmd.Flags().StringVar(&dir, "dir", "", "read records from this local directory instead of the artifact store")
	cmd.Flags().StringVar(&target, "target", app.TargetR2, "upload target: r2 or gcs")
	return cmd
}
