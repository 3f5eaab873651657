// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
service.go - Album Engine

The engine fronts every provider with shared bookkeeping: crawl status
transitions, staleness-driven on-demand crawls during renders, fallback
to the last-used URL, and render accounting. Providers stay thin; users
never see provider internals, only the status strings and the photo URL.

Status protocol: "refresh started" is written before any upstream work,
then exactly one terminal write follows ("updated" or "refresh failed:
<reason>"). A superseded run skips its terminal write so it cannot
clobber the newer run's "refresh started".
*/

package album

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/photocast/photocast/internal/logging"
	"github.com/photocast/photocast/internal/metrics"
	"github.com/photocast/photocast/internal/models"
	"github.com/photocast/photocast/internal/repository"
)

// maxReasonLen caps the failure reason persisted into crawl status.
const maxReasonLen = 200

// Engine coordinates providers, persistence, and render-time behavior.
type Engine struct {
	store     repository.Store
	providers Registry

	staleAfter         time.Duration
	renderCrawlTimeout time.Duration

	now func() time.Time
}

// NewEngine wires the album engine.
func NewEngine(store repository.Store, providers Registry, staleAfter, renderCrawlTimeout time.Duration) *Engine {
	return &Engine{
		store:              store,
		providers:          providers,
		staleAfter:         staleAfter,
		renderCrawlTimeout: renderCrawlTimeout,
		now:                time.Now,
	}
}

// RefreshUser runs one refresh for one user, owning the status
// transitions around the provider call.
func (e *Engine) RefreshUser(ctx context.Context, userID string) error {
	if err := e.store.SetCrawlStatus(ctx, userID, models.CrawlStatus{Status: models.StatusStarted}); err != nil {
		return fmt.Errorf("mark refresh started: %w", err)
	}

	start := e.now()
	provider, settings, err := e.resolveProvider(ctx, userID)
	if err == nil {
		err = provider.Refresh(ctx, userID, settings)
	}
	elapsed := e.now().Sub(start)

	providerName := "unknown"
	if provider != nil {
		providerName = string(provider.Name())
	}
	metrics.ObserveCrawl(providerName, crawlOutcome(err), elapsed)

	if err == nil {
		return e.store.SetCrawlStatus(ctx, userID, models.CrawlStatus{
			Status:        models.StatusUpdated,
			LastSuccessAt: e.now(),
		})
	}

	// A superseded run must not clobber the newer run's status.
	if errors.Is(ctx.Err(), context.Canceled) {
		logging.Debug().Str("user_id", userID).Msg("refresh superseded, skipping status write")
		return err
	}

	status := models.CrawlStatus{Status: models.StatusFailed(failReason(err))}
	if serr := e.store.SetCrawlStatus(ctx, userID, status); serr != nil {
		logging.Error().Err(serr).Str("user_id", userID).Msg("persist failed crawl status")
	}
	return err
}

// PhotoForRender resolves one photo URL for a page render. A stale or
// missing snapshot triggers a bounded synchronous crawl first; if the
// fresh path fails, the last successfully used URL is served instead so
// the display never blanks over a transient upstream failure.
func (e *Engine) PhotoForRender(ctx context.Context, userID string) (string, error) {
	provider, settings, err := e.resolveProvider(ctx, userID)
	if err != nil {
		return "", err
	}

	if e.snapshotStale(ctx, userID, provider.Name()) {
		crawlCtx, cancel := context.WithTimeout(ctx, e.renderCrawlTimeout)
		if rerr := provider.Refresh(crawlCtx, userID, settings); rerr != nil {
			logging.Warn().Err(rerr).Str("user_id", userID).Msg("on-demand crawl failed")
		}
		cancel()
	}

	url, err := provider.PhotoURL(ctx, userID, settings)
	if err != nil {
		return e.fallbackURL(ctx, userID, err)
	}

	if serr := e.store.SetLastUsedURL(ctx, userID, url); serr != nil {
		logging.Warn().Err(serr).Str("user_id", userID).Msg("persist last-used url")
	}
	e.countRender(ctx, userID)
	return url, nil
}

// Rediscover drops the cached partition hint so the next crawl starts at
// the default partition and re-follows redirects. The manifest itself is
// kept; only routing state resets.
func (e *Engine) Rediscover(ctx context.Context, userID string) error {
	cached, err := e.store.GetCachedManifest(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	cached.Partition = ""
	return e.store.SetCachedManifest(ctx, userID, cached)
}

// SaveSettings persists user settings. Saving settings re-installs a user
// previously marked uninstalled.
func (e *Engine) SaveSettings(ctx context.Context, userID string, settings models.Settings) error {
	if _, ok := e.providers[settings.Provider]; !ok {
		return fmt.Errorf("unknown provider %q", settings.Provider)
	}
	settings.UpdatedAt = e.now()
	return e.store.SetSettings(ctx, userID, settings)
}

// Settings returns the user's saved settings.
func (e *Engine) Settings(ctx context.Context, userID string) (models.Settings, error) {
	return e.store.GetSettings(ctx, userID)
}

// Status returns the user's crawl status for the settings UI.
func (e *Engine) Status(ctx context.Context, userID string) (models.CrawlStatus, error) {
	return e.store.GetCrawlStatus(ctx, userID)
}

// Uninstall marks a user removed so the fan-out stops refreshing them.
// Records are kept; saving settings again re-installs.
func (e *Engine) Uninstall(ctx context.Context, userID string) error {
	return e.store.MarkUninstalled(ctx, userID)
}

func (e *Engine) resolveProvider(ctx context.Context, userID string) (Provider, models.Settings, error) {
	settings, err := e.store.GetSettings(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.Settings{}, models.ErrNotConfigured
		}
		return nil, models.Settings{}, err
	}
	if !settings.Configured() {
		return nil, settings, models.ErrNotConfigured
	}
	provider, ok := e.providers[settings.Provider]
	if !ok {
		return nil, settings, fmt.Errorf("unknown provider %q: %w", settings.Provider, models.ErrNotConfigured)
	}
	return provider, settings, nil
}

// snapshotStale reports whether the render path should crawl before
// selecting. Only the manifest-caching provider has a snapshot to age.
func (e *Engine) snapshotStale(ctx context.Context, userID string, name models.Provider) bool {
	if name != models.ProviderICloud {
		return false
	}
	cached, err := e.store.GetCachedManifest(ctx, userID)
	if err != nil {
		return true
	}
	return e.now().Sub(cached.FetchedAt) > e.staleAfter
}

func (e *Engine) fallbackURL(ctx context.Context, userID string, cause error) (string, error) {
	last, err := e.store.GetLastUsedURL(ctx, userID)
	if err != nil || last == "" {
		return "", cause
	}

	metrics.RenderFallbacks.Inc()
	logging.Warn().Err(cause).Str("user_id", userID).Msg("render served from last-used url")
	e.countRender(ctx, userID)
	return last, nil
}

func (e *Engine) countRender(ctx context.Context, userID string) {
	if err := e.store.IncrementRenderCount(ctx, userID); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("increment render count")
	}
}

func crawlOutcome(err error) string {
	switch {
	case err == nil:
		return "updated"
	case errors.Is(err, models.ErrNoPhotosAvailable):
		return "empty"
	case errors.Is(err, models.ErrNotConfigured):
		return "not_configured"
	case models.IsParseError(err):
		return "parse_error"
	case models.IsFetchError(err):
		return "fetch_error"
	default:
		return "error"
	}
}

func failReason(err error) string {
	var reason string
	switch {
	case errors.Is(err, models.ErrNotConfigured):
		reason = "album not configured"
	case errors.Is(err, models.ErrNoPhotosAvailable):
		reason = "no photos found"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timed out"
	default:
		reason = err.Error()
	}
	if len(reason) > maxReasonLen {
		reason = reason[:maxReasonLen]
	}
	return reason
}
