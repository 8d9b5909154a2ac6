package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/app"
)

// crawlFlags maps crawl flags to their config keys.
var crawlFlags = map[string]string{
	"mode":           "crawler.mode",
	"target-date":    "crawler.target_date",
	"window":         "crawler.freshness_window",
	"concurrency":    "crawler.concurrency",
	"max-candidates": "crawler.max_candidates",
	"backend":        "crawler.backend",
	"site":           "site.root",
}

// newCrawlCmd creates the 'crawl' subcommand, which discovers the site and
// stores fresh postings.
func newCrawlCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Discover and scrape fresh job postings",
		Long: `Maps the configured site, keeps the job posting URLs, and scrapes them in
discovery order. In rolling_window mode the crawl stops at the first posting
older than the freshness window; in target_date mode every candidate is
scraped and only postings from that date are kept.`,
		RunE: runCrawlCommand,
	}
	flags := cmd.Flags()
	flags.String("mode", "", "stopping mode: rolling_window or target_date")
	flags.String("target-date", "", "date to keep in target_date mode (YYYY-MM-DD)")
	flags.String("window", "", `freshness window, e.g. "1mo", "2w", "72h" (months are "mo"; minutes are rejected)`)
	flags.Int("concurrency", 0, "parallel fetches")
	flags.Int("max-candidates", 0, "cap on candidates considered")
	flags.String("backend", "", "fetch backend: firecrawl or colly")
	flags.String("site", "", "site root to map")
	for name, key := range crawlFlags {
		cobra.CheckErr(v.BindPFlag(key, flags.Lookup(name)))
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	res, err := appInstance.Crawl(cmd.Context(), app.NewTracker())
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}

	counters := res.State.Counters
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s (%s): %d candidates, %d accepted, %d rejected, %d failed, %d cancelled\n",
		res.Meta.RunID, res.Meta.RunDate, res.Candidates,
		counters.Accepted, counters.Rejected, counters.Failed, counters.Cancelled)
	if res.State.Halted {
		fmt.Fprintf(out, "halted by %s\n", res.State.HaltedBy)
	}
	fmt.Fprintf(out, "summary: %s\n", res.SummaryPath)

	appInstance.Logger().Info("crawl command finished", zap.String("run_id", res.Meta.RunID))
	return nil
}
