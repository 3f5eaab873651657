// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
picker.go - Consent-Picker Provider

The picker upstream has no crawlable manifest; the picked set is resolved
live from the session on every call. Refresh therefore validates the
session and media items rather than caching bytes: it confirms the user
still has a completed pick with at least one photo. PhotoURL picks
uniformly over the photo-typed items and returns the base URL sized for
full-resolution download.
*/

package album

import (
	"context"
	"math/rand/v2"

	"github.com/photocast/photocast/internal/models"
	"github.com/photocast/photocast/internal/picker"
)

// PickerProvider serves users connected through the consent picker.
type PickerProvider struct {
	flow *picker.Flow

	pick func(n int) int
}

var _ Provider = (*PickerProvider)(nil)

// NewPickerProvider wires the picker-backed provider.
func NewPickerProvider(flow *picker.Flow) *PickerProvider {
	return &PickerProvider{flow: flow, pick: rand.IntN}
}

// Name implements Provider.
func (p *PickerProvider) Name() models.Provider { return models.ProviderPicker }

// Refresh implements Provider.
func (p *PickerProvider) Refresh(ctx context.Context, userID string, _ models.Settings) error {
	photos, err := p.flow.Photos(ctx, userID)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		return models.ErrNoPhotosAvailable
	}
	return nil
}

// PhotoURL implements Provider.
func (p *PickerProvider) PhotoURL(ctx context.Context, userID string, _ models.Settings) (string, error) {
	photos, err := p.flow.Photos(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(photos) == 0 {
		return "", models.ErrNoPhotosAvailable
	}
	item := photos[p.pick(len(photos))]
	return item.MediaFile.BaseURL + "=d", nil
}
