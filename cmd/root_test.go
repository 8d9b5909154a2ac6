package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/app"
	"github.com/JakeFAU/jobscall-crawler/internal/config"
	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
	"github.com/JakeFAU/jobscall-crawler/internal/structured"
	"github.com/JakeFAU/jobscall-crawler/internal/upload"
)

type mockApp struct {
	mock.Mock
}

func (m *mockApp) Close()              { m.Called() }
func (m *mockApp) Logger() *zap.Logger { return zap.NewNop() }
func (m *mockApp) Today() string       { return "20240520" }

func (m *mockApp) Crawl(ctx context.Context, tracker *app.Tracker) (*app.CrawlResult, error) {
	args := m.Called(ctx, tracker)
	res, _ := args.Get(0).(*app.CrawlResult)
	return res, args.Error(1)
}

func (m *mockApp) Extract(ctx context.Context, runDate, file string) (structured.Report, error) {
	args := m.Called(ctx, runDate, file)
	return args.Get(0).(structured.Report), args.Error(1)
}

func (m *mockApp) Populate(ctx context.Context, runDate string) (structured.Report, error) {
	args := m.Called(ctx, runDate)
	return args.Get(0).(structured.Report), args.Error(1)
}

func (m *mockApp) Upload(ctx context.Context, runDate, dir, target string) (upload.Report, error) {
	args := m.Called(ctx, runDate, dir, target)
	return args.Get(0).(upload.Report), args.Error(1)
}

// runCLI executes the root command with a mock App and returns the config
// the factory saw plus stdout.
func runCLI(t *testing.T, m *mockApp, args ...string) (config.Config, string, error) {
	t.Helper()
	var seen config.Config
	orig := newApp
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (App, error) {
		seen = cfg
		return m, nil
	}
	t.Cleanup(func() { newApp = orig })

	root, cleanup := newRootCmd(viper.New())
	defer cleanup()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return seen, out.String(), err
}

func TestCrawlCommandAppliesFlags(t *testing.T) {
	m := &mockApp{}
	state := crawler.NewRunState(3)
	state.Halted = true
	state.HaltedBy = "https://example.com/job/b"
	state.Counters.Accepted = 1
	m.On("Crawl", mock.Anything, mock.AnythingOfType("*app.Tracker")).Return(&app.CrawlResult{
		Meta:        crawler.RunMetadata{RunID: "run-1", RunDate: "20240520"},
		Candidates:  3,
		State:       state,
		SummaryPath: "20240520/scraping_summary.json",
	}, nil)
	m.On("Close").Return()

	cfg, out, err := runCLI(t, m, "crawl",
		"--mode", "target_date", "--target-date", "2024-05-19",
		"--concurrency", "3", "--backend", "colly", "--window", "2w")
	require.NoError(t, err)

	assert.Equal(t, "target_date", cfg.Crawler.Mode)
	assert.Equal(t, "2024-05-19", cfg.Crawler.TargetDate)
	assert.Equal(t, 3, cfg.Crawler.Concurrency)
	assert.Equal(t, config.BackendColly, cfg.Crawler.Backend)
	assert.Equal(t, "2w", cfg.Crawler.FreshnessWindow)
	assert.Equal(t, 500, cfg.Crawler.MaxCandidates)
	assert.Contains(t, out, "3 candidates, 1 accepted")
	assert.Contains(t, out, "halted by https://example.com/job/b")
	m.AssertExpectations(t)
}

func TestCrawlCommandRejectsBadConfig(t *testing.T) {
	m := &mockApp{}
	_, _, err := runCLI(t, m, "crawl", "--mode", "newest")
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrConfig)
	m.AssertNotCalled(t, "Crawl", mock.Anything, mock.Anything)
}

func TestCrawlCommandPropagatesFailure(t *testing.T) {
	m := &mockApp{}
	m.On("Crawl", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	m.On("Close").Return().Once()
	_, _, err := runCLI(t, m, "crawl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run crawl: boom")
	m.AssertNumberOfCalls(t, "Close", 1)
}

func TestExtractCommand(t *testing.T) {
	m := &mockApp{}
	m.On("Extract", mock.Anything, "20240520", "a.md").Return(structured.Report{Files: 1, Succeeded: 1, JobsWritten: 2}, nil)
	m.On("Populate", mock.Anything, "20240501").Return(structured.Report{Files: 4, Succeeded: 4, JobsWritten: 6}, nil)
	m.On("Close").Return()

	_, out, err := runCLI(t, m, "extract", "--file", "a.md")
	require.NoError(t, err)
	assert.Contains(t, out, "20240520: 1 files, 1 succeeded, 0 failed, 2 jobs written")

	_, out, err = runCLI(t, m, "extract", "--date", "20240501", "--populate")
	require.NoError(t, err)
	assert.Contains(t, out, "6 jobs written")
	m.AssertExpectations(t)
}

func TestUploadCommand(t *testing.T) {
	m := &mockApp{}
	m.On("Upload", mock.Anything, "20240520", "", app.TargetR2).Return(upload.Report{Total: 2, Uploaded: 2}, nil)
	m.On("Upload", mock.Anything, "20240501", "/tmp/out", app.TargetGCS).
		Return(upload.Report{Total: 2, Uploaded: 1, Failed: 1}, upload.ErrIncomplete)
	m.On("Close").Return()

	_, out, err := runCLI(t, m, "upload")
	require.NoError(t, err)
	assert.Contains(t, out, "2/2 uploaded")

	_, out, err = runCLI(t, m, "upload", "--date", "20240501", "--dir", "/tmp/out", "--target", "gcs")
	require.ErrorIs(t, err, upload.ErrIncomplete)
	assert.Contains(t, out, "1/2 uploaded")
}
