// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

// Package config holds application configuration loaded via Koanf v2 with
// layered sources (highest priority wins): environment variables, an
// optional YAML config file, then built-in defaults.
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Photocast engine.
type Config struct {
	ICloud     ICloudConfig     `koanf:"icloud"`
	Picker     PickerConfig     `koanf:"picker"`
	Repository RepositoryConfig `koanf:"repository"`
	Jobs       JobsConfig       `koanf:"jobs"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ICloudConfig configures the shared-album crawler upstream.
//
// Environment variables: ICLOUD_HOST, ICLOUD_DEFAULT_PARTITION,
// ICLOUD_MAX_REDIRECTS, ICLOUD_REQUEST_TIMEOUT.
type ICloudConfig struct {
	// Host is the upstream host suffix; the partition is prepended as
	// "{partition}-{host}".
	Host string `koanf:"host" validate:"required"`

	// DefaultPartition is the hint used when a user has no cached partition.
	DefaultPartition string `koanf:"default_partition" validate:"required"`

	// MaxRedirects bounds the partition redirect chase.
	MaxRedirects int `koanf:"max_redirects" validate:"min=1,max=20"`

	// RequestTimeout applies to each upstream HTTP call.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// PickerConfig configures the consent-picker provider.
//
// Environment variables: PICKER_API_BASE, PICKER_OAUTH_CLIENT_ID,
// PICKER_OAUTH_CLIENT_SECRET, PICKER_OAUTH_REDIRECT_URL, PICKER_PAGE_SIZE.
type PickerConfig struct {
	// APIBase is the picker API root, e.g. https://photospicker.googleapis.com/v1.
	APIBase string `koanf:"api_base" validate:"required,url"`

	// OAuthClientID and OAuthClientSecret identify the OAuth application.
	// Empty values disable the picker provider.
	OAuthClientID     string `koanf:"oauth_client_id"`
	OAuthClientSecret string `koanf:"oauth_client_secret"`

	// OAuthRedirectURL is where the consent flow returns to.
	OAuthRedirectURL string `koanf:"oauth_redirect_url"`

	// PageSize is the mediaItems listing page size.
	PageSize int `koanf:"page_size" validate:"min=1,max=100"`

	// RequestTimeout applies to each picker HTTP call.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// Enabled reports whether the picker provider is configured.
func (c PickerConfig) Enabled() bool {
	return c.OAuthClientID != "" && c.OAuthClientSecret != ""
}

// RepositoryConfig configures the per-user state store.
//
// Environment variables: REPOSITORY_PATH, REPOSITORY_IN_MEMORY,
// REPOSITORY_GC_INTERVAL.
type RepositoryConfig struct {
	// Path is the Badger data directory.
	Path string `koanf:"path"`

	// InMemory runs Badger without disk persistence. Tests and previews only.
	InMemory bool `koanf:"in_memory"`

	// GCInterval is how often value-log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// JobsConfig configures the refresh orchestrator.
//
// Environment variables: JOBS_SLOTS, JOBS_RETRIES, JOBS_EXECUTION_TIMEOUT,
// JOBS_BULK_EXECUTION_TIMEOUT, JOBS_QUEUE_SIZE, JOBS_CHUNK_SIZE,
// JOBS_FANOUT_PER_MINUTE, JOBS_FANOUT_HOUR, JOBS_RENDER_CRAWL_TIMEOUT,
// JOBS_STALE_AFTER.
type JobsConfig struct {
	// Slots is the worker pool size.
	Slots int `koanf:"slots" validate:"min=1"`

	// Retries is how many times a failed refresh is re-attempted.
	Retries int `koanf:"retries" validate:"min=0,max=10"`

	// ExecutionTimeout bounds one single-user refresh.
	ExecutionTimeout time.Duration `koanf:"execution_timeout"`

	// BulkExecutionTimeout bounds one bulk chunk execution.
	BulkExecutionTimeout time.Duration `koanf:"bulk_execution_timeout"`

	// ScheduleTimeout bounds how long a queued job may wait before it is
	// considered abandoned.
	ScheduleTimeout time.Duration `koanf:"schedule_timeout"`

	// QueueSize bounds the dispatch queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// ChunkSize is the fan-out bulk batch size.
	ChunkSize int `koanf:"chunk_size" validate:"min=1"`

	// FanOutPerMinute caps fan-out-triggered executions starting per minute.
	FanOutPerMinute int `koanf:"fanout_per_minute" validate:"min=1"`

	// FanOutHour is the UTC hour of the daily fan-out run.
	FanOutHour int `koanf:"fanout_hour" validate:"min=0,max=23"`

	// RenderCrawlTimeout is the caller-visible timeout for the synchronous
	// on-demand crawl during a page render. Kept well below ExecutionTimeout.
	RenderCrawlTimeout time.Duration `koanf:"render_crawl_timeout"`

	// StaleAfter is the cache age beyond which a render triggers an
	// on-demand crawl.
	StaleAfter time.Duration `koanf:"stale_after"`
}

// ServerConfig configures the HTTP surface.
//
// Environment variables: SERVER_HOST, SERVER_PORT, SERVER_TIMEOUT,
// SERVER_CORS_ORIGINS, SERVER_RATE_LIMIT_REQS, SERVER_RATE_LIMIT_WINDOW.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`

	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures the zerolog logger.
//
// Environment variables: LOGGING_LEVEL, LOGGING_FORMAT, LOGGING_CALLER.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks struct-level rules plus the cross-field constraints the
// tag language cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Jobs.RenderCrawlTimeout >= c.Jobs.ExecutionTimeout {
		return fmt.Errorf("jobs.render_crawl_timeout (%s) must be below jobs.execution_timeout (%s)",
			c.Jobs.RenderCrawlTimeout, c.Jobs.ExecutionTimeout)
	}
	if c.Jobs.ExecutionTimeout > c.Jobs.BulkExecutionTimeout {
		return fmt.Errorf("jobs.execution_timeout (%s) must not exceed jobs.bulk_execution_timeout (%s)",
			c.Jobs.ExecutionTimeout, c.Jobs.BulkExecutionTimeout)
	}
	if !c.Repository.InMemory && c.Repository.Path == "" {
		return fmt.Errorf("repository.path is required unless repository.in_memory is set")
	}
	if c.Picker.Enabled() && c.Picker.OAuthRedirectURL == "" {
		return fmt.Errorf("picker.oauth_redirect_url is required when the picker provider is enabled")
	}
	return nil
}
