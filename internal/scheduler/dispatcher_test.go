// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/photocast/photocast/internal/config"
	"github.com/photocast/photocast/internal/models"
	"github.com/photocast/photocast/internal/repository"
)

func testJobsConfig() config.JobsConfig {
	return config.JobsConfig{
		Slots:                2,
		Retries:              2,
		ExecutionTimeout:     5 * time.Second,
		BulkExecutionTimeout: 10 * time.Second,
		ScheduleTimeout:      5 * time.Second,
		QueueSize:            16,
		ChunkSize:            100,
		FanOutPerMinute:      1,
	}
}

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	store, err := repository.NewBadgerInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestTriggerSupersedesPrevious(t *testing.T) {
	store := newTestStore(t)

	started := make(chan string, 4)
	release := make(chan struct{})
	var mu sync.Mutex
	var canceled []string

	run := func(ctx context.Context, userID string) error {
		started <- userID
		select {
		case <-ctx.Done():
			mu.Lock()
			canceled = append(canceled, userID)
			mu.Unlock()
			return ctx.Err()
		case <-release:
			return nil
		}
	}

	cfg := testJobsConfig()
	cfg.Slots = 1
	d := NewDispatcher(run, store, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Serve(ctx) }()

	if got := d.TriggerRefresh(ctx, "u-1"); got != OutcomeAccepted {
		t.Fatalf("first trigger = %q, want accepted", got)
	}
	<-started

	// Second trigger while the first is mid-flight cancels it.
	if got := d.TriggerRefresh(ctx, "u-1"); got != OutcomeSuperseded {
		t.Fatalf("second trigger = %q, want superseded", got)
	}
	<-started
	close(release)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(canceled)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("canceled runs = %d, want exactly 1", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestTriggerQueueFull(t *testing.T) {
	store := newTestStore(t)

	cfg := testJobsConfig()
	cfg.QueueSize = 1
	// No Serve: jobs stay queued.
	d := NewDispatcher(func(context.Context, string) error { return nil }, store, cfg)
	ctx := context.Background()

	if got := d.TriggerRefresh(ctx, "u-1"); got != OutcomeAccepted {
		t.Fatalf("first trigger = %q", got)
	}
	if got := d.TriggerRefresh(ctx, "u-2"); got != OutcomeQueueFull {
		t.Fatalf("second trigger = %q, want queue_full", got)
	}

	status, err := store.GetCrawlStatus(ctx, "u-1")
	if err != nil || status.Status != models.StatusScheduled {
		t.Errorf("u-1 status = %q, %v; want scheduled", status.Status, err)
	}
}

func TestQueueFullKeepsInFlightRunAlive(t *testing.T) {
	store := newTestStore(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var mu sync.Mutex
	var runCtx context.Context

	run := func(ctx context.Context, userID string) error {
		mu.Lock()
		runCtx = ctx
		mu.Unlock()
		started <- struct{}{}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
			return nil
		}
	}

	cfg := testJobsConfig()
	cfg.Slots = 1
	cfg.QueueSize = 1
	d := NewDispatcher(run, store, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Serve(ctx) }()

	if got := d.TriggerRefresh(ctx, "u-1"); got != OutcomeAccepted {
		t.Fatalf("first trigger = %q", got)
	}
	<-started // the single worker is now executing u-1

	if got := d.TriggerRefresh(ctx, "u-2"); got != OutcomeAccepted {
		t.Fatalf("filler trigger = %q", got)
	}

	// Queue is full. The rejected retrigger must leave the run in flight
	// untouched; canceling it would strand the user's status at
	// "refresh started" with no replacement job to finish it.
	if got := d.TriggerRefresh(ctx, "u-1"); got != OutcomeQueueFull {
		t.Fatalf("retrigger = %q, want queue_full", got)
	}

	mu.Lock()
	err := runCtx.Err()
	mu.Unlock()
	if err != nil {
		t.Fatalf("in-flight run canceled after queue-full trigger: %v", err)
	}

	d.mu.Lock()
	live := d.live["u-1"]
	d.mu.Unlock()
	if live == nil {
		t.Fatal("u-1 no longer tracked as live")
	}
	close(release)
}

func TestStaleQueuedJobAbandoned(t *testing.T) {
	store := newTestStore(t)

	ran := false
	d := NewDispatcher(func(context.Context, string) error { ran = true; return nil }, store, testJobsConfig())

	j := &job{userID: "u-1", enqueuedAt: time.Now().Add(-time.Minute)}
	j.ctx, j.cancel = context.WithCancel(context.Background())
	d.live["u-1"] = j

	d.dispatch(context.Background(), j)

	if ran {
		t.Error("abandoned job still executed")
	}
	status, err := store.GetCrawlStatus(context.Background(), "u-1")
	if err != nil || status.Status != models.StatusFailed("not started in time") {
		t.Errorf("status = %q, %v", status.Status, err)
	}
}

func TestRetriesOnlyTransientFailures(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
	}{
		{
			name:      "transient then success",
			errs:      []error{models.NewStatusError("https://x", 502), nil},
			wantCalls: 2,
		},
		{
			name: "transient exhausts retries",
			errs: []error{
				models.NewStatusError("https://x", 502),
				models.NewStatusError("https://x", 502),
				models.NewStatusError("https://x", 502),
			},
			wantCalls: 3, // initial + 2 retries
		},
		{
			name:      "non-transient fails fast",
			errs:      []error{&models.ParseError{URL: "https://x"}},
			wantCalls: 1,
		},
		{
			name:      "domain error fails fast",
			errs:      []error{models.ErrNoPhotosAvailable},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			run := func(context.Context, string) error {
				err := tt.errs[calls]
				calls++
				return err
			}
			d := NewDispatcher(run, store, testJobsConfig())
			d.runWithRetries(context.Background(), "u-1")
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRefreshBulkSequentialBestEffort(t *testing.T) {
	store := newTestStore(t)

	var order []string
	run := func(_ context.Context, userID string) error {
		order = append(order, userID)
		if userID == "u-2" {
			return models.ErrNoPhotosAvailable
		}
		return nil
	}
	d := NewDispatcher(run, store, testJobsConfig())

	d.RefreshBulk(context.Background(), []string{"u-1", "u-2", "u-3"})

	want := []string{"u-1", "u-2", "u-3"}
	if len(order) != len(want) {
		t.Fatalf("ran %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("ran %v, want %v", order, want)
		}
	}
}
