// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
picker.go - Consent-Picker Provider Models

Wire and state types for the consent-based picker provider. A pick session
is a consent-scoped, time-bounded handle: the user opens the picker URI,
chooses photos, and the session flips to mediaItemsSet=true. One live
session per user is the supported case; creating a new session supersedes
the previous one.
*/

package models

// PickSession is the per-user cached picker session handle.
type PickSession struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
}

// PickerSession is the upstream session resource.
type PickerSession struct {
	ID            string               `json:"id"`
	PickerURI     string               `json:"pickerUri,omitempty"`
	MediaItemsSet bool                 `json:"mediaItemsSet"`
	PollingConfig *PickerPollingConfig `json:"pollingConfig,omitempty"`
}

// PickerPollingConfig carries the upstream's suggested poll cadence.
type PickerPollingConfig struct {
	PollInterval string `json:"pollInterval"`
}

// Media item types reported by the picker provider.
const (
	MediaItemTypePhoto       = "PHOTO"
	MediaItemTypeVideo       = "VIDEO"
	MediaItemTypeUnspecified = "TYPE_UNSPECIFIED"
)

// MediaItem is one picked item from a completed session.
type MediaItem struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	MediaFile MediaFile `json:"mediaFile"`
}

// MediaFile holds the fetchable base URL of a media item.
type MediaFile struct {
	BaseURL string `json:"baseUrl"`
}

// MediaItemsPage is one page of the mediaItems listing.
type MediaItemsPage struct {
	MediaItems    []MediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// AppStateKind enumerates the picker connection states surfaced to the
// settings UI.
type AppStateKind string

// Picker app states. SessionExpired maps back to ConnectedNoSession (the
// user can immediately re-pick); token invalidation maps to NotConnected
// (the user must re-authenticate).
const (
	StateNotConnected       AppStateKind = "not-connected"
	StateConnectedNoSession AppStateKind = "connected-no-session"
	StateConnectedPicking   AppStateKind = "connected-picking"
	StateConnectedPictures  AppStateKind = "connected-pictures"
	StateError              AppStateKind = "error"
)

// AppState is the resolved picker state for one user.
type AppState struct {
	State AppStateKind `json:"state"`

	// SignInURL is set for StateNotConnected.
	SignInURL string `json:"signInUrl,omitempty"`

	// PickerURI is set for StateConnectedPicking.
	PickerURI string `json:"pickerUri,omitempty"`

	// PollInterval is the upstream's suggested poll cadence, passed through
	// for StateConnectedPicking when present.
	PollInterval string `json:"pollInterval,omitempty"`

	// ImageCount is set for StateConnectedPictures. Zero is valid: photos
	// may still be processing upstream.
	ImageCount int `json:"imageCount"`

	// Error is set for StateError.
	Error string `json:"error,omitempty"`
}
