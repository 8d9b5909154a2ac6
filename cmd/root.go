// Package cmd defines and implements the CLI commands for the jobcrawler
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/app"
	"github.com/JakeFAU/jobscall-crawler/internal/config"
	"github.com/JakeFAU/jobscall-crawler/internal/logging"
	"github.com/JakeFAU/jobscall-crawler/internal/structured"
	"github.com/JakeFAU/jobscall-crawler/internal/telemetry"
	"github.com/JakeFAU/jobscall-crawler/internal/upload"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the commands need from the application services. Tests inject
// a mock through newApp.
type App interface {
	Close()
	Logger() *zap.Logger
	Today() string
	Crawl(ctx context.Context, tracker *app.Tracker) (*app.CrawlResult, error)
	Extract(ctx context.Context, runDate, file string) (structured.Report, error)
	Populate(ctx context.Context, runDate string) (structured.Report, error)
	Upload(ctx context.Context, runDate, dir, target string) (upload.Report, error)
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates the root command. Subcommand flags are bound to v so
// they override file and environment values. The returned cleanup releases
// whatever PersistentPreRunE built and must run after Execute whether or not
// the command failed.
func newRootCmd(v *viper.Viper) (*cobra.Command, func()) {
	var (
		cfgFile     string
		dev         bool
		appInstance App
		shutdown    func(context.Context) error
	)
	cleanup := func() {
		if appInstance != nil {
			appInstance.Close()
			appInstance = nil
		}
		if shutdown != nil {
			_ = shutdown(context.Background())
			shutdown = nil
		}
	}
	cmd := &cobra.Command{
		Use:   "jobcrawler",
		Short: "Crawls a job board and keeps the fresh postings.",
		Long: `jobcrawler discovers job-posting pages on a site, fetches them under
bounded concurrency, and stores each posting's article and Markdown until the
postings grow older than the freshness window. The extract and upload commands
turn stored Markdown into structured records and ship them to remote storage.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg, err := config.LoadWith(v, cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development || dev)
			if err != nil {
				return err
			}
			tp, err := telemetry.InitTracerProvider(cmd.Context(), logging.Service)
			if err != nil {
				return err
			}
			shutdown = tp.Shutdown
			appInstance, err = newApp(cmd.Context(), cfg, logger)
			if err != nil {
				appInstance = nil
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().BoolVar(&dev, "dev", false, "development logging")

	cmd.AddCommand(newCrawlCmd(v))
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newUploadCmd())
	return cmd, cleanup
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, cleanup := newRootCmd(viper.New())
	err := root.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		stop()
		logger, lerr := logging.New(false)
		if lerr != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		logger.Fatal("command execution failed", zap.Error(err))
	}
}
