// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
provider.go - Provider Capability Contract

One engine, many upstreams. A Provider supplies the two capabilities the
engine needs: refresh the user's cached album state, and pick one photo
URL for a render. The engine owns everything around those calls: crawl
status bookkeeping, staleness, fallback, and render accounting.
*/

package album

import (
	"context"

	"github.com/photocast/photocast/internal/models"
)

// Provider is one upstream integration. Implementations must be safe for
// concurrent use across users; all per-user state lives in the repository.
type Provider interface {
	// Name identifies the provider for settings routing and metrics.
	Name() models.Provider

	// Refresh re-crawls the user's album and persists the snapshot.
	// Returning models.ErrNoPhotosAvailable marks a reachable but empty
	// album.
	Refresh(ctx context.Context, userID string, settings models.Settings) error

	// PhotoURL picks one photo for a render and returns its fetchable URL.
	PhotoURL(ctx context.Context, userID string, settings models.Settings) (string, error)
}

// Registry routes settings to the provider that serves them.
type Registry map[models.Provider]Provider

// NewRegistry indexes providers by name.
func NewRegistry(providers ...Provider) Registry {
	r := make(Registry, len(providers))
	for _, p := range providers {
		r[p.Name()] = p
	}
	return r
}
