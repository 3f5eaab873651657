// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
manifest.go - Shared Album Manifest Model

The manifest is one fetched snapshot of a remote shared album: the stream
name plus the ordered photo list. The upstream webstream endpoint encodes
every numeric field as a string; the model preserves that and offers typed
accessors where callers need numbers.

An empty photo list is a valid manifest ("album has no photos"), not an
error condition.
*/

package models

import (
	"strconv"
	"strings"
	"time"
)

// MediaAssetTypeVideo is the webstream marker for video entries. Videos are
// never selectable for an e-ink frame.
const MediaAssetTypeVideo = "video"

// Derivative is one size/encoding variant of a photo, keyed in the manifest
// by an opaque derivative key and identified upstream by checksum.
type Derivative struct {
	FileSize string `json:"fileSize"`
	Checksum string `json:"checksum"`
	Width    string `json:"width"`
	Height   string `json:"height"`
}

// WidthPx returns the numeric width, or 0 when unparseable.
func (d Derivative) WidthPx() int {
	n, err := strconv.Atoi(d.Width)
	if err != nil {
		return 0
	}
	return n
}

// Photo is a single album entry with its derivative variants.
type Photo struct {
	PhotoGUID      string                `json:"photoGuid"`
	BatchGUID      string                `json:"batchGuid,omitempty"`
	MediaAssetType string                `json:"mediaAssetType,omitempty"`
	Width          string                `json:"width,omitempty"`
	Height         string                `json:"height,omitempty"`
	Derivatives    map[string]Derivative `json:"derivatives"`
}

// Selectable reports whether the photo may be shown on a frame: it must not
// be a video and must carry at least one derivative.
func (p Photo) Selectable() bool {
	if strings.EqualFold(p.MediaAssetType, MediaAssetTypeVideo) {
		return false
	}
	return len(p.Derivatives) > 0
}

// LargestDerivative returns the derivative with the maximum numeric width.
// The second return is false when the photo has no derivatives.
func (p Photo) LargestDerivative() (Derivative, bool) {
	var (
		best  Derivative
		found bool
	)
	for _, d := range p.Derivatives {
		if !found || d.WidthPx() > best.WidthPx() {
			best = d
			found = true
		}
	}
	return best, found
}

// AlbumManifest is one fetched snapshot of a shared album.
type AlbumManifest struct {
	StreamName string  `json:"streamName"`
	Photos     []Photo `json:"photos"`
}

// SelectablePhotos returns the entries eligible for selection.
func (m AlbumManifest) SelectablePhotos() []Photo {
	out := make([]Photo, 0, len(m.Photos))
	for _, p := range m.Photos {
		if p.Selectable() {
			out = append(out, p)
		}
	}
	return out
}

// CachedManifest is the per-user crawler cache entry: the resolved backend
// partition, the manifest itself, and when it was fetched.
type CachedManifest struct {
	Partition string        `json:"partition"`
	Manifest  AlbumManifest `json:"manifest"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// SelectedAsset is the result of photo selection: a fetchable URL for one
// derivative of one photo.
type SelectedAsset struct {
	PhotoGUID string `json:"photo_guid"`
	Checksum  string `json:"checksum"`
	URL       string `json:"url"`
	Width     int    `json:"width"`
}
