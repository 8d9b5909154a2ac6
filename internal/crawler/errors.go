package crawler

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is across the pipeline.
var (
	ErrConfig      = errors.New("invalid crawl config")
	ErrDiscovery   = errors.New("link discovery failed")
	ErrFetch       = errors.New("fetch failed")
	ErrUnreachable = errors.New("capability unreachable")
	ErrTimeout     = errors.New("capability timed out")
)

// ConfigError reports an invalid run configuration. It is raised before any
// work is dispatched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s %s", e.Field, e.Reason)
}

// Is matches ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// DiscoveryError reports that the site could not be mapped into a usable
// link collection. The run aborts before dispatch.
type DiscoveryError struct {
	SiteRoot string
	Message  string
	Cause    error
}

func (e *DiscoveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("discovery error for %s: %s: %v", e.SiteRoot, e.Message, e.Cause)
	}
	return fmt.Sprintf("discovery error for %s: %s", e.SiteRoot, e.Message)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// Is matches ErrDiscovery.
func (e *DiscoveryError) Is(target error) bool {
	return target == ErrDiscovery
}

// FetchError is a per-candidate fetch failure. It never aborts a run.
type FetchError struct {
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is matches ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
