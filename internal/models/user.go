// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

package models

import "time"

// Provider identifies which upstream integration serves a user's album.
type Provider string

// Supported providers. The engine is parameterized by provider capability;
// selection happens at the configuration boundary, never by duplicating the
// engine.
const (
	ProviderICloud Provider = "icloud"
	ProviderPicker Provider = "picker"
)

// Settings is the per-user plugin configuration persisted by the web layer.
type Settings struct {
	Provider       Provider  `json:"provider"`
	SharedAlbumURL string    `json:"shared_album_url,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Configured reports whether enough settings exist for a crawl.
func (s Settings) Configured() bool {
	switch s.Provider {
	case ProviderICloud:
		return s.SharedAlbumURL != ""
	case ProviderPicker:
		return true
	default:
		return false
	}
}

// Tokens holds the OAuth credential pair for the picker provider. Tokens are
// persisted through the repository and handed to clients per call; they are
// never stored on a shared client instance.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Scope        string    `json:"scope,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Valid reports whether both halves of the credential pair are present.
func (t Tokens) Valid() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}

// RenderStats tracks page-render activity per user.
type RenderStats struct {
	RenderCount  int64     `json:"render_count"`
	LastRenderAt time.Time `json:"last_render_at,omitempty"`
}
