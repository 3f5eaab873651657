// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
fanout.go - Daily Refresh Fan-Out

Once a day, every installed and configured user gets a refresh. Users are
enumerated oldest-snapshot-first, split into fixed-size chunks, and the
chunks run one after another behind a global rate limiter. The limiter
is the upstream-protection valve: no matter how many users exist, chunk
starts are spaced so the shared-album API never sees a thundering herd.

FanOut is a suture service that sleeps until the configured hour, runs
one fan-out, and repeats.
*/

package scheduler

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/photocast/photocast/internal/config"
	"github.com/photocast/photocast/internal/logging"
	"github.com/photocast/photocast/internal/metrics"
	"github.com/photocast/photocast/internal/repository"
)

// FanOut schedules the daily bulk refresh.
type FanOut struct {
	dispatcher *Dispatcher
	store      repository.Store
	cfg        config.JobsConfig

	limiter *rate.Limiter

	// now and nextRun are swappable for tests.
	now func() time.Time
}

// NewFanOut wires the daily fan-out.
func NewFanOut(dispatcher *Dispatcher, store repository.Store, cfg config.JobsConfig) *FanOut {
	return &FanOut{
		dispatcher: dispatcher,
		store:      store,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.FanOutPerMinute)/60.0), 1),
		now:        time.Now,
	}
}

// Serve implements suture.Service: sleep until the next scheduled hour,
// fan out, repeat.
func (f *FanOut) Serve(ctx context.Context) error {
	for {
		wait := f.untilNextRun()
		logging.Info().Dur("sleep", wait).Msg("fan-out scheduled")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := f.Run(ctx); err != nil {
			logging.Error().Err(err).Msg("fan-out failed")
		}
	}
}

// Run performs one complete fan-out pass. It blocks until every chunk has
// run or ctx is canceled.
func (f *FanOut) Run(ctx context.Context) error {
	users, err := f.store.ListRefreshableUsers(ctx)
	if err != nil {
		return err
	}

	metrics.FanOutUsers.Set(float64(len(users)))
	logging.Info().Int("users", len(users)).Int("chunk_size", f.cfg.ChunkSize).Msg("fan-out starting")

	for _, chunk := range chunks(users, f.cfg.ChunkSize) {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		metrics.FanOutChunks.Inc()
		f.dispatcher.RefreshBulk(ctx, chunk)
	}

	logging.Info().Int("users", len(users)).Msg("fan-out complete")
	return nil
}

// untilNextRun returns the wait until the next occurrence of the
// configured UTC hour. A fan-out exactly at the boundary waits a full
// day rather than double-running.
func (f *FanOut) untilNextRun() time.Duration {
	now := f.now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), f.cfg.FanOutHour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

func chunks(userIDs []string, size int) [][]string {
	if size <= 0 {
		size = len(userIDs)
	}
	var out [][]string
	for len(userIDs) > size {
		out = append(out, userIDs[:size])
		userIDs = userIDs[size:]
	}
	if len(userIDs) > 0 {
		out = append(out, userIDs)
	}
	return out
}
