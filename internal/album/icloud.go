// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
icloud.go - Shared-Album Provider

Crawl: chase the partition (hint from the cached snapshot, default
otherwise), fetch the web stream manifest, persist it. The snapshot is
persisted even when empty so staleness is measured from the last crawl,
not the last non-empty one.

Select: uniform random over selectable photos (videos excluded), largest
derivative by numeric width, then a single-GUID asset resolution to turn
the derivative checksum into a fetchable URL. Asset URLs are short-lived,
so resolution happens per render, never at crawl time.
*/

package album

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/photocast/photocast/internal/icloud"
	"github.com/photocast/photocast/internal/logging"
	"github.com/photocast/photocast/internal/metrics"
	"github.com/photocast/photocast/internal/models"
	"github.com/photocast/photocast/internal/repository"
)

// ICloudProvider serves users configured with a shared album URL.
type ICloudProvider struct {
	store repository.Store
	api   icloud.API

	defaultPartition string

	// pick is swappable for deterministic tests.
	pick func(n int) int
}

var _ Provider = (*ICloudProvider)(nil)

// NewICloudProvider wires the shared-album provider.
func NewICloudProvider(store repository.Store, api icloud.API, defaultPartition string) *ICloudProvider {
	return &ICloudProvider{
		store:            store,
		api:              api,
		defaultPartition: defaultPartition,
		pick:             rand.IntN,
	}
}

// Name implements Provider.
func (p *ICloudProvider) Name() models.Provider { return models.ProviderICloud }

// Refresh implements Provider.
func (p *ICloudProvider) Refresh(ctx context.Context, userID string, settings models.Settings) error {
	albumID, err := icloud.AlbumIDFromURL(settings.SharedAlbumURL)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrNotConfigured, err)
	}

	manifest, partition, err := p.api.FetchWebStream(ctx, p.partitionHint(ctx, userID), albumID)
	if err != nil {
		if serr := p.store.SetWebStreamStatus(ctx, userID, webStreamStatusFor(err)); serr != nil {
			logging.Warn().Err(serr).Str("user_id", userID).Msg("persist webstream status")
		}
		return err
	}

	if err := p.store.SetWebStreamStatus(ctx, userID, models.WebStreamFound); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("persist webstream status")
	}

	// Persist unconditionally, empty manifests included.
	snapshot := models.CachedManifest{
		Partition: partition,
		Manifest:  manifest,
		FetchedAt: time.Now(),
	}
	if err := p.store.SetCachedManifest(ctx, userID, snapshot); err != nil {
		return fmt.Errorf("persist manifest: %w", err)
	}

	logging.Info().
		Str("user_id", userID).
		Str("partition", partition).
		Int("photos", len(manifest.Photos)).
		Msg("album crawled")

	if len(manifest.SelectablePhotos()) == 0 {
		return models.ErrNoPhotosAvailable
	}
	return nil
}

// PhotoURL implements Provider. It selects from the cached snapshot; the
// engine decides when the snapshot is fresh enough to use.
func (p *ICloudProvider) PhotoURL(ctx context.Context, userID string, settings models.Settings) (string, error) {
	cached, err := p.store.GetCachedManifest(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", models.ErrNoPhotosAvailable
		}
		return "", err
	}

	asset, err := p.selectPhoto(ctx, cached, settings)
	if err != nil {
		return "", err
	}
	return asset.URL, nil
}

func (p *ICloudProvider) selectPhoto(ctx context.Context, cached models.CachedManifest, settings models.Settings) (models.SelectedAsset, error) {
	selectable := cached.Manifest.SelectablePhotos()
	if len(selectable) == 0 {
		return models.SelectedAsset{}, models.ErrNoPhotosAvailable
	}

	photo := selectable[p.pick(len(selectable))]
	largest, ok := photo.LargestDerivative()
	if !ok {
		return models.SelectedAsset{}, models.ErrNoPhotosAvailable
	}

	albumID, err := icloud.AlbumIDFromURL(settings.SharedAlbumURL)
	if err != nil {
		return models.SelectedAsset{}, fmt.Errorf("%w: %v", models.ErrNotConfigured, err)
	}

	locations, err := p.api.ResolveAssets(ctx, cached.Partition, albumID, []string{photo.PhotoGUID})
	if err != nil {
		metrics.AssetResolutions.WithLabelValues("fetch_error").Inc()
		return models.SelectedAsset{}, err
	}

	loc, ok := locations[largest.Checksum]
	if !ok {
		metrics.AssetResolutions.WithLabelValues("missing_derivative").Inc()
		return models.SelectedAsset{}, fmt.Errorf("photo %s checksum %s: %w",
			photo.PhotoGUID, largest.Checksum, models.ErrMissingDerivative)
	}

	metrics.AssetResolutions.WithLabelValues("ok").Inc()
	return models.SelectedAsset{
		PhotoGUID: photo.PhotoGUID,
		Checksum:  largest.Checksum,
		URL:       loc.URL(),
		Width:     largest.WidthPx(),
	}, nil
}

// partitionHint prefers the partition the last crawl resolved to; a fresh
// user starts at the default and follows redirects from there.
func (p *ICloudProvider) partitionHint(ctx context.Context, userID string) string {
	cached, err := p.store.GetCachedManifest(ctx, userID)
	if err == nil && cached.Partition != "" {
		return cached.Partition
	}
	return p.defaultPartition
}

func webStreamStatusFor(err error) models.WebStreamStatus {
	if models.IsParseError(err) {
		return models.WebStreamNotFound
	}
	return models.WebStreamError
}
