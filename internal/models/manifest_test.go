// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

package models

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestPhotoSelectable(t *testing.T) {
	tests := []struct {
		name  string
		photo Photo
		want  bool
	}{
		{
			name: "photo with derivative",
			photo: Photo{
				PhotoGUID:   "a",
				Derivatives: map[string]Derivative{"1": {Width: "100", Checksum: "c1"}},
			},
			want: true,
		},
		{
			name: "video excluded",
			photo: Photo{
				PhotoGUID:      "b",
				MediaAssetType: "video",
				Derivatives:    map[string]Derivative{"1": {Width: "100", Checksum: "c1"}},
			},
			want: false,
		},
		{
			name: "video excluded case-insensitively",
			photo: Photo{
				PhotoGUID:      "b2",
				MediaAssetType: "VIDEO",
				Derivatives:    map[string]Derivative{"1": {Width: "100", Checksum: "c1"}},
			},
			want: false,
		},
		{
			name:  "no derivatives excluded",
			photo: Photo{PhotoGUID: "c", Derivatives: map[string]Derivative{}},
			want:  false,
		},
		{
			name:  "nil derivatives excluded",
			photo: Photo{PhotoGUID: "d"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.photo.Selectable(); got != tt.want {
				t.Errorf("Selectable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLargestDerivative(t *testing.T) {
	p := Photo{
		PhotoGUID: "a",
		Derivatives: map[string]Derivative{
			"1":  {Width: "100", Checksum: "small"},
			"2":  {Width: "2048", Checksum: "big"},
			"3":  {Width: "640", Checksum: "mid"},
			"xx": {Width: "garbage", Checksum: "bad"},
		},
	}

	d, ok := p.LargestDerivative()
	if !ok {
		t.Fatal("expected a derivative")
	}
	if d.Checksum != "big" {
		t.Errorf("expected checksum big, got %s", d.Checksum)
	}
	if d.WidthPx() != 2048 {
		t.Errorf("expected width 2048, got %d", d.WidthPx())
	}
}

func TestLargestDerivativeEmpty(t *testing.T) {
	if _, ok := (Photo{}).LargestDerivative(); ok {
		t.Error("expected no derivative for empty photo")
	}
}

func TestSelectablePhotosFilters(t *testing.T) {
	m := AlbumManifest{
		StreamName: "Holiday",
		Photos: []Photo{
			{PhotoGUID: "a", Derivatives: map[string]Derivative{"1": {Width: "10"}}},
			{PhotoGUID: "b", MediaAssetType: "video", Derivatives: map[string]Derivative{"1": {Width: "10"}}},
			{PhotoGUID: "c"},
		},
	}

	got := m.SelectablePhotos()
	if len(got) != 1 || got[0].PhotoGUID != "a" {
		t.Errorf("expected only photo a to be selectable, got %+v", got)
	}
}

func TestManifestUnmarshalWebstreamShape(t *testing.T) {
	raw := `{
		"streamName": "Family",
		"photos": [
			{
				"photoGuid": "g-1",
				"batchGuid": "b-1",
				"mediaAssetType": "video",
				"width": "4032",
				"height": "3024",
				"derivatives": {
					"342": {"fileSize": "12345", "checksum": "abc", "width": "342", "height": "256"}
				}
			}
		]
	}`

	var m AlbumManifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.StreamName != "Family" {
		t.Errorf("streamName = %q", m.StreamName)
	}
	if len(m.Photos) != 1 {
		t.Fatalf("expected 1 photo, got %d", len(m.Photos))
	}
	d, ok := m.Photos[0].Derivatives["342"]
	if !ok || d.Checksum != "abc" {
		t.Errorf("derivative not decoded: %+v", m.Photos[0].Derivatives)
	}
}
