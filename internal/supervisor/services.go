// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
services.go - Supervised Service Wrappers

Small adapters giving long-running maintenance work a suture.Service
shape. The dispatcher and fan-out implement Serve themselves; only
concerns without a natural home get wrapped here.
*/

package supervisor

import (
	"context"
	"time"

	"github.com/photocast/photocast/internal/logging"
)

// GCFunc runs one garbage collection pass over the store.
type GCFunc func() error

// StoreGCService periodically runs value-log garbage collection on the
// repository. Badger reclaims space only when GC is driven externally.
type StoreGCService struct {
	gc       GCFunc
	interval time.Duration
}

// NewStoreGCService wraps a GC function as a supervised service.
func NewStoreGCService(gc GCFunc, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{gc: gc, interval: interval}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.gc(); err != nil {
				logging.Warn().Err(err).Msg("store gc pass failed")
			}
		}
	}
}

func (s *StoreGCService) String() string { return "store-gc" }
