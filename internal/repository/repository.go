// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

// Package repository persists per-user engine state: settings, the cached
// album snapshot, crawl status, the last-good asset URL, picker sessions,
// OAuth tokens, and render counters.
//
// All state is keyed by user id. The engine never needs cross-user
// atomicity; each operation touches exactly one user's records. The store
// must tolerate concurrent per-user updates; crawl status is
// last-writer-wins and purely informational.
package repository

import (
	"context"
	"errors"

	"github.com/photocast/photocast/internal/models"
)

// ErrNotFound is returned when a user has no record for the requested field
// group. Callers treat it as "not set up yet", not as a failure.
var ErrNotFound = errors.New("repository: not found")

// Store is the persistence contract the engine consumes. Storage technology
// is an implementation detail behind this interface.
type Store interface {
	GetSettings(ctx context.Context, userID string) (models.Settings, error)
	SetSettings(ctx context.Context, userID string, s models.Settings) error

	GetCachedManifest(ctx context.Context, userID string) (models.CachedManifest, error)
	SetCachedManifest(ctx context.Context, userID string, m models.CachedManifest) error

	GetCrawlStatus(ctx context.Context, userID string) (models.CrawlStatus, error)
	SetCrawlStatus(ctx context.Context, userID string, s models.CrawlStatus) error

	SetWebStreamStatus(ctx context.Context, userID string, s models.WebStreamStatus) error

	GetLastUsedURL(ctx context.Context, userID string) (string, error)
	SetLastUsedURL(ctx context.Context, userID string, url string) error

	GetPickSession(ctx context.Context, userID string) (models.PickSession, error)
	SetPickSession(ctx context.Context, userID string, s models.PickSession) error

	GetTokens(ctx context.Context, userID string) (models.Tokens, error)
	SetTokens(ctx context.Context, userID string, t models.Tokens) error

	IncrementRenderCount(ctx context.Context, userID string) error
	GetRenderStats(ctx context.Context, userID string) (models.RenderStats, error)

	MarkUninstalled(ctx context.Context, userID string) error

	// ListRefreshableUsers returns the ids of installed, configured users,
	// oldest cached manifest first. Users without a cached manifest sort
	// before everyone else so first crawls are not starved by the fan-out.
	ListRefreshableUsers(ctx context.Context) ([]string, error)

	Close() error
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
