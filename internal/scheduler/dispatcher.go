// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
dispatcher.go - Refresh Job Dispatcher

Bounded worker pool with per-user latest-wins semantics: at most one
refresh per user is live at a time, and a newer trigger cancels the one
in flight rather than queueing behind it. The e-ink display only shows
the newest state, so finishing a superseded crawl is wasted upstream
quota.

Lifecycle of a job: trigger writes "refresh scheduled" and enqueues; a
worker either abandons it (stale in queue past the schedule timeout, or
superseded while queued) or executes it under the execution timeout with
bounded retries on transient errors. The executed refresh owns the
terminal status write, so a user's status can never stick at
"refresh started".

The dispatcher is a suture service; Serve runs the pool until the
supervisor stops it.
*/

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/photocast/photocast/internal/config"
	"github.com/photocast/photocast/internal/logging"
	"github.com/photocast/photocast/internal/metrics"
	"github.com/photocast/photocast/internal/models"
	"github.com/photocast/photocast/internal/repository"
)

// RefreshFunc runs one refresh for one user. The album engine supplies it.
type RefreshFunc func(ctx context.Context, userID string) error

// Outcome classifies what happened to a trigger.
type Outcome string

// Trigger outcomes.
const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeQueueFull  Outcome = "queue_full"
)

type job struct {
	id         string
	userID     string
	enqueuedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Dispatcher owns the refresh worker pool.
type Dispatcher struct {
	run   RefreshFunc
	store repository.Store
	cfg   config.JobsConfig

	queue chan *job

	mu   sync.Mutex
	live map[string]*job // newest job per user, queued or running
}

// NewDispatcher builds the dispatcher. Serve must be running for queued
// jobs to execute.
func NewDispatcher(run RefreshFunc, store repository.Store, cfg config.JobsConfig) *Dispatcher {
	return &Dispatcher{
		run:   run,
		store: store,
		cfg:   cfg,
		queue: make(chan *job, cfg.QueueSize),
		live:  make(map[string]*job),
	}
}

// TriggerRefresh schedules a refresh for one user. A job already live for
// the same user is canceled and superseded. Returns how the trigger was
// handled; OutcomeQueueFull means nothing was scheduled and any in-flight
// job for the user keeps running untouched.
func (d *Dispatcher) TriggerRefresh(ctx context.Context, userID string) Outcome {
	j := &job{id: uuid.NewString(), userID: userID, enqueuedAt: time.Now()}
	j.ctx, j.cancel = context.WithCancel(context.Background())

	// Enqueue and take over the live slot under one lock. The previous
	// job must not be canceled until the replacement is actually queued:
	// canceling first would leave the user with no job to write a
	// terminal status when the queue turns out to be full.
	d.mu.Lock()
	prev := d.live[userID]
	select {
	case d.queue <- j:
		d.live[userID] = j
	default:
		d.mu.Unlock()
		j.cancel()
		metrics.DispatchOutcomes.WithLabelValues(string(OutcomeQueueFull)).Inc()
		logging.Warn().Str("user_id", userID).Msg("refresh queue full, trigger dropped")
		return OutcomeQueueFull
	}
	d.mu.Unlock()

	superseded := prev != nil
	if superseded {
		prev.cancel()
	}

	if err := d.store.SetCrawlStatus(ctx, userID, models.CrawlStatus{Status: models.StatusScheduled}); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("persist scheduled status")
	}

	outcome := OutcomeAccepted
	if superseded {
		outcome = OutcomeSuperseded
	}
	metrics.DispatchOutcomes.WithLabelValues(string(outcome)).Inc()
	return outcome
}

// Serve implements suture.Service: it runs the worker pool until ctx is
// done, then waits for in-flight executions to unwind.
func (d *Dispatcher) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Slots; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			d.dispatch(ctx, j)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, j *job) {
	defer d.drop(j)

	// Superseded while queued.
	if j.ctx.Err() != nil {
		return
	}

	// Stale in queue; abandon rather than crawl with outdated intent.
	if wait := time.Since(j.enqueuedAt); wait > d.cfg.ScheduleTimeout {
		logging.Warn().Str("job_id", j.id).Str("user_id", j.userID).Dur("waited", wait).Msg("refresh abandoned, queued too long")
		status := models.CrawlStatus{Status: models.StatusFailed("not started in time")}
		if err := d.store.SetCrawlStatus(ctx, j.userID, status); err != nil {
			logging.Warn().Err(err).Str("user_id", j.userID).Msg("persist abandoned status")
		}
		return
	}

	execCtx, cancel := context.WithTimeout(j.ctx, d.cfg.ExecutionTimeout)
	defer cancel()

	logging.Debug().Str("job_id", j.id).Str("user_id", j.userID).Msg("refresh dispatched")
	d.runWithRetries(execCtx, j.userID)
}

// runWithRetries executes the refresh, retrying transient failures while
// the context is still alive. Non-transient failures (parse errors, empty
// albums, misconfiguration) fail fast.
func (d *Dispatcher) runWithRetries(ctx context.Context, userID string) {
	var err error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		if attempt > 0 {
			metrics.RefreshRetries.Inc()
			logging.Debug().Str("user_id", userID).Int("attempt", attempt).Msg("retrying refresh")
		}

		err = d.run(ctx, userID)
		if err == nil || !models.Transient(err) || ctx.Err() != nil {
			return
		}
	}
	logging.Warn().Err(err).Str("user_id", userID).Int("retries", d.cfg.Retries).Msg("refresh failed after retries")
}

// RefreshBulk refreshes users sequentially, best effort, under the bulk
// execution timeout. Used by the scheduled fan-out; individual failures
// do not stop the batch.
func (d *Dispatcher) RefreshBulk(ctx context.Context, userIDs []string) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.BulkExecutionTimeout)
	defer cancel()

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			logging.Warn().Int("remaining", remaining(userIDs, userID)).Msg("bulk refresh cut short")
			return
		}
		userCtx, userCancel := context.WithTimeout(ctx, d.cfg.ExecutionTimeout)
		d.runWithRetries(userCtx, userID)
		userCancel()
	}
}

// drop forgets a job, but only if it is still the newest one for its
// user.
func (d *Dispatcher) drop(j *job) {
	d.mu.Lock()
	if d.live[j.userID] == j {
		delete(d.live, j.userID)
	}
	d.mu.Unlock()
	j.cancel()
}

func remaining(userIDs []string, current string) int {
	for i, id := range userIDs {
		if id == current {
			return len(userIDs) - i
		}
	}
	return 0
}
