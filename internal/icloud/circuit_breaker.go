// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

package icloud

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/photocast/photocast/internal/logging"
	"github.com/photocast/photocast/internal/metrics"
	"github.com/photocast/photocast/internal/models"
)

// breakerName labels the shared-album upstream in logs and metrics.
const breakerName = "icloud"

// BreakerClient wraps Client with a circuit breaker so a degraded upstream
// sheds load fast instead of tying up refresh slots on timeouts. The breaker
// runs on real time; unit tests exercise the wrapped client directly.
type BreakerClient struct {
	client API
	cb     *gobreaker.CircuitBreaker[any]
}

var _ API = (*BreakerClient)(nil)

// NewBreakerClient wraps client with a breaker that opens at a 60% failure
// rate over at least 10 requests, and probes again after 2 minutes.
func NewBreakerClient(client API) *BreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("upstream", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: func(err error) bool {
			// Schema mismatches and domain errors are not upstream health
			// signals; only transport and status failures count.
			return err == nil || !models.Transient(err)
		},
	})

	return &BreakerClient{client: client, cb: cb}
}

// webStreamResult bundles FetchWebStream's two values through the breaker.
type webStreamResult struct {
	manifest  models.AlbumManifest
	partition string
}

// FetchWebStream executes the crawl through the breaker.
func (b *BreakerClient) FetchWebStream(ctx context.Context, partition, albumID string) (models.AlbumManifest, string, error) {
	result, err := b.execute(func() (any, error) {
		manifest, resolved, err := b.client.FetchWebStream(ctx, partition, albumID)
		return webStreamResult{manifest: manifest, partition: resolved}, err
	})
	if err != nil {
		return models.AlbumManifest{}, partition, err
	}
	r := result.(webStreamResult)
	return r.manifest, r.partition, nil
}

// ResolveAssets executes asset resolution through the breaker.
func (b *BreakerClient) ResolveAssets(ctx context.Context, partition, albumID string, photoGUIDs []string) (map[string]AssetLocation, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.ResolveAssets(ctx, partition, albumID, photoGUIDs)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]AssetLocation), nil
}

func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		logging.Warn().Err(err).Msg("shared-album request rejected by open circuit")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
	}
	return result, err
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
