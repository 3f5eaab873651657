// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/photocast/photocast/internal/models"
)

func TestChunks(t *testing.T) {
	users := make([]string, 250)
	for i := range users {
		users[i] = fmt.Sprintf("u-%03d", i)
	}

	got := chunks(users, 100)
	if len(got) != 3 {
		t.Fatalf("chunks = %d, want 3", len(got))
	}
	for i, wantLen := range []int{100, 100, 50} {
		if len(got[i]) != wantLen {
			t.Errorf("chunk %d len = %d, want %d", i, len(got[i]), wantLen)
		}
	}
	if got[2][49] != "u-249" {
		t.Errorf("last user = %q", got[2][49])
	}
}

func TestChunksEdgeCases(t *testing.T) {
	if got := chunks(nil, 100); got != nil {
		t.Errorf("chunks(nil) = %v", got)
	}
	if got := chunks([]string{"a", "b"}, 0); len(got) != 1 || len(got[0]) != 2 {
		t.Errorf("chunks with size 0 = %v", got)
	}
	if got := chunks([]string{"a", "b"}, 2); len(got) != 1 {
		t.Errorf("exact fit = %v", got)
	}
}

func TestFanOutRunRefreshesEveryConfiguredUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		userID := fmt.Sprintf("u-%d", i)
		err := store.SetSettings(ctx, userID, models.Settings{
			Provider:       models.ProviderICloud,
			SharedAlbumURL: "https://www.icloud.com/sharedalbum/#A" + userID,
		})
		if err != nil {
			t.Fatalf("SetSettings: %v", err)
		}
	}

	var mu sync.Mutex
	var refreshed []string
	run := func(_ context.Context, userID string) error {
		mu.Lock()
		refreshed = append(refreshed, userID)
		mu.Unlock()
		return nil
	}

	cfg := testJobsConfig()
	cfg.ChunkSize = 2
	d := NewDispatcher(run, store, cfg)
	f := NewFanOut(d, store, cfg)
	f.limiter = rate.NewLimiter(rate.Inf, 1)

	if err := f.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(refreshed) != 5 {
		t.Errorf("refreshed %d users, want 5: %v", len(refreshed), refreshed)
	}
}

func TestFanOutStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	for i := 0; i < 4; i++ {
		userID := fmt.Sprintf("u-%d", i)
		err := store.SetSettings(context.Background(), userID, models.Settings{
			Provider:       models.ProviderICloud,
			SharedAlbumURL: "https://www.icloud.com/sharedalbum/#A" + userID,
		})
		if err != nil {
			t.Fatalf("SetSettings: %v", err)
		}
	}

	calls := 0
	run := func(context.Context, string) error {
		calls++
		cancel()
		return nil
	}

	cfg := testJobsConfig()
	cfg.ChunkSize = 1
	d := NewDispatcher(run, store, cfg)
	f := NewFanOut(d, store, cfg)
	f.limiter = rate.NewLimiter(rate.Inf, 1)

	if err := f.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
	if calls >= 4 {
		t.Errorf("calls = %d, want fewer than all chunks after cancel", calls)
	}
}

func TestUntilNextRun(t *testing.T) {
	cfg := testJobsConfig()
	cfg.FanOutHour = 3

	f := NewFanOut(nil, nil, cfg)

	tests := []struct {
		now  time.Time
		want time.Duration
	}{
		{time.Date(2026, 8, 29, 1, 0, 0, 0, time.UTC), 2 * time.Hour},
		{time.Date(2026, 8, 29, 3, 0, 0, 0, time.UTC), 24 * time.Hour},
		{time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC), 4 * time.Hour},
		// The hour is interpreted in UTC regardless of the clock's zone:
		// 01:00+02:00 is 23:00 UTC, so the 03:00 UTC run is 4h away.
		{time.Date(2026, 8, 30, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600)), 4 * time.Hour},
	}

	for _, tt := range tests {
		f.now = func() time.Time { return tt.now }
		if got := f.untilNextRun(); got != tt.want {
			t.Errorf("untilNextRun at %v = %v, want %v", tt.now, got, tt.want)
		}
	}
}
