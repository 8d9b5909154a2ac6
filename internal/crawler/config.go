package crawler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Mode selects the stopping policy.
type Mode string

// Supported stopping modes.
const (
	ModeRollingWindow Mode = "rolling_window"
	ModeTargetDate    Mode = "target_date"
)

// DefaultMaxCandidates caps the candidates considered when no limit is set.
const DefaultMaxCandidates = 500

// DateLayout is the ISO calendar date format used for target dates.
const DateLayout = "2006-01-02"

// Window is a calendar-aware age limit. Months and Days are applied with
// time.AddDate so "one month" tracks calendar months, not 30 days.
type Window struct {
	Months   int
	Days     int
	Duration time.Duration
}

// DefaultWindow is one calendar month.
func DefaultWindow() Window {
	return Window{Months: 1}
}

// IsZero reports whether the window is empty.
func (w Window) IsZero() bool {
	return w.Months == 0 && w.Days == 0 && w.Duration == 0
}

// Cutoff returns the oldest instant still inside the window.
func (w Window) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, -w.Months, -w.Days).Add(-w.Duration)
}

func (w Window) String() string {
	var b strings.Builder
	if w.Months > 0 {
		fmt.Fprintf(&b, "%dmo", w.Months)
	}
	if w.Days > 0 {
		fmt.Fprintf(&b, "%dd", w.Days)
	}
	if w.Duration > 0 {
		b.WriteString(w.Duration.String())
	}
	if b.Len() == 0 {
		return "0"
	}
	return b.String()
}

var (
	windowPart = regexp.MustCompile(`(\d+)(mo|y|w|d)`)
	// minuteUnit matches "m" that is neither "mo" nor "ms".
	minuteUnit = regexp.MustCompile(`\dm([^os]|$)`)
)

// ParseWindow accepts Go durations ("72h") or calendar units combined as
// "1y", "2mo", "3w", "10d", "1mo15d". Minutes are rejected: "1m" would
// otherwise read as one minute where one month was meant.
func ParseWindow(raw string) (Window, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return Window{}, fmt.Errorf("empty window")
	}
	if minuteUnit.MatchString(raw) {
		return Window{}, fmt.Errorf("window %q uses minutes; write months as \"mo\" or hours as \"h\"", raw)
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d < 0 {
			return Window{}, fmt.Errorf("window %q must not be negative", raw)
		}
		return Window{Duration: d}, nil
	}
	matches := windowPart.FindAllStringSubmatch(raw, -1)
	var consumed int
	var w Window
	for _, m := range matches {
		consumed += len(m[0])
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Window{}, fmt.Errorf("parse window %q: %w", raw, err)
		}
		switch m[2] {
		case "y":
			w.Months += 12 * n
		case "mo":
			w.Months += n
		case "w":
			w.Days += 7 * n
		case "d":
			w.Days += n
		}
	}
	if len(matches) == 0 || consumed != len(raw) {
		return Window{}, fmt.Errorf("unrecognized window %q", raw)
	}
	return w, nil
}

// CrawlConfig holds the per-run orchestration settings. It is immutable once
// built by NewCrawlConfig.
type CrawlConfig struct {
	Concurrency     int
	MaxCandidates   int
	Mode            Mode
	TargetDate      time.Time
	FreshnessWindow Window
}

// NewCrawlConfig validates and normalizes a run configuration.
func NewCrawlConfig(cfg CrawlConfig) (CrawlConfig, error) {
	if cfg.Concurrency < 1 {
		return CrawlConfig{}, &ConfigError{Field: "concurrency", Reason: "must be >= 1"}
	}
	if cfg.MaxCandidates < 0 {
		return CrawlConfig{}, &ConfigError{Field: "max_candidates", Reason: "must be >= 0"}
	}
	if cfg.MaxCandidates == 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeRollingWindow
	case ModeRollingWindow, ModeTargetDate:
	default:
		return CrawlConfig{}, &ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", cfg.Mode)}
	}
	if cfg.Mode == ModeTargetDate && cfg.TargetDate.IsZero() {
		return CrawlConfig{}, &ConfigError{Field: "target_date", Reason: "is required in target_date mode"}
	}
	if cfg.Mode == ModeRollingWindow && cfg.FreshnessWindow.IsZero() {
		cfg.FreshnessWindow = DefaultWindow()
	}
	return cfg, nil
}

// ParseTargetDate parses an ISO calendar date.
func ParseTargetDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, &ConfigError{Field: "target_date", Reason: fmt.Sprintf("must be YYYY-MM-DD: %v", err)}
	}
	return t, nil
}

// SameDate compares calendar dates, each in its own location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
