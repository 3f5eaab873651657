// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
badger.go - Badger-Backed Store

Per-user records are stored as JSON documents under composite keys:

	u/{userID}/settings
	u/{userID}/manifest
	u/{userID}/crawl_status
	u/{userID}/webstream_status
	u/{userID}/last_used_url
	u/{userID}/pick_session
	u/{userID}/tokens
	u/{userID}/render_stats
	u/{userID}/uninstalled_at

Each operation runs in its own Badger transaction; there is no multi-key
atomicity requirement because every caller touches one user at a time.
*/

package repository

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/photocast/photocast/internal/config"
	"github.com/photocast/photocast/internal/models"
)

// Key suffixes per field group.
const (
	keyPrefix          = "u/"
	fieldSettings      = "settings"
	fieldManifest      = "manifest"
	fieldCrawlStatus   = "crawl_status"
	fieldWebStream     = "webstream_status"
	fieldLastUsedURL   = "last_used_url"
	fieldPickSession   = "pick_session"
	fieldTokens        = "tokens"
	fieldRenderStats   = "render_stats"
	fieldUninstalledAt = "uninstalled_at"
)

// BadgerStore implements Store on top of a Badger key-value database.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens (or creates) the store described by cfg.
func OpenBadger(cfg config.RepositoryConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Path, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerInMemory returns a store without disk persistence, for tests.
func NewBadgerInMemory() (*BadgerStore, error) {
	return OpenBadger(config.RepositoryConfig{InMemory: true})
}

func userKey(userID, field string) []byte {
	return []byte(keyPrefix + userID + "/" + field)
}

func (s *BadgerStore) getJSON(key []byte, out any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	return err
}

func (s *BadgerStore) setJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, data))
	})
}

// GetSettings returns the user's plugin settings.
func (s *BadgerStore) GetSettings(_ context.Context, userID string) (models.Settings, error) {
	var out models.Settings
	err := s.getJSON(userKey(userID, fieldSettings), &out)
	return out, err
}

// SetSettings persists the user's plugin settings and clears any uninstall
// marker: saving settings re-installs the user.
func (s *BadgerStore) SetSettings(_ context.Context, userID string, set models.Settings) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(userKey(userID, fieldSettings), data)); err != nil {
			return err
		}
		err := txn.Delete(userKey(userID, fieldUninstalledAt))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// GetCachedManifest returns the crawler cache entry.
func (s *BadgerStore) GetCachedManifest(_ context.Context, userID string) (models.CachedManifest, error) {
	var out models.CachedManifest
	err := s.getJSON(userKey(userID, fieldManifest), &out)
	return out, err
}

// SetCachedManifest persists the crawler cache entry.
func (s *BadgerStore) SetCachedManifest(_ context.Context, userID string, m models.CachedManifest) error {
	return s.setJSON(userKey(userID, fieldManifest), m)
}

// GetCrawlStatus returns the refresh status record.
func (s *BadgerStore) GetCrawlStatus(_ context.Context, userID string) (models.CrawlStatus, error) {
	var out models.CrawlStatus
	err := s.getJSON(userKey(userID, fieldCrawlStatus), &out)
	if IsNotFound(err) {
		return models.CrawlStatus{Status: models.StatusNotStarted}, nil
	}
	return out, err
}

// SetCrawlStatus persists the refresh status record.
func (s *BadgerStore) SetCrawlStatus(_ context.Context, userID string, status models.CrawlStatus) error {
	return s.setJSON(userKey(userID, fieldCrawlStatus), status)
}

// SetWebStreamStatus persists the outcome of the latest webstream fetch.
func (s *BadgerStore) SetWebStreamStatus(_ context.Context, userID string, status models.WebStreamStatus) error {
	return s.setJSON(userKey(userID, fieldWebStream), status)
}

// GetLastUsedURL returns the last asset URL served to the user's frame.
func (s *BadgerStore) GetLastUsedURL(_ context.Context, userID string) (string, error) {
	var out string
	err := s.getJSON(userKey(userID, fieldLastUsedURL), &out)
	return out, err
}

// SetLastUsedURL persists the last asset URL served to the user's frame.
func (s *BadgerStore) SetLastUsedURL(_ context.Context, userID string, url string) error {
	return s.setJSON(userKey(userID, fieldLastUsedURL), url)
}

// GetPickSession returns the cached picker session handle.
func (s *BadgerStore) GetPickSession(_ context.Context, userID string) (models.PickSession, error) {
	var out models.PickSession
	err := s.getJSON(userKey(userID, fieldPickSession), &out)
	return out, err
}

// SetPickSession persists the picker session handle, superseding any
// previous session.
func (s *BadgerStore) SetPickSession(_ context.Context, userID string, sess models.PickSession) error {
	return s.setJSON(userKey(userID, fieldPickSession), sess)
}

// GetTokens returns the OAuth credential pair.
func (s *BadgerStore) GetTokens(_ context.Context, userID string) (models.Tokens, error) {
	var out models.Tokens
	err := s.getJSON(userKey(userID, fieldTokens), &out)
	return out, err
}

// SetTokens persists the OAuth credential pair.
func (s *BadgerStore) SetTokens(_ context.Context, userID string, t models.Tokens) error {
	return s.setJSON(userKey(userID, fieldTokens), t)
}

// IncrementRenderCount bumps the render counter and stamps last_render_at.
func (s *BadgerStore) IncrementRenderCount(_ context.Context, userID string) error {
	key := userKey(userID, fieldRenderStats)
	return s.db.Update(func(txn *badger.Txn) error {
		var stats models.RenderStats
		item, err := txn.Get(key)
		if err == nil {
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stats)
			}); err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		stats.RenderCount++
		stats.LastRenderAt = time.Now().UTC()

		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(key, data))
	})
}

// GetRenderStats returns the render counters; zero values when never rendered.
func (s *BadgerStore) GetRenderStats(_ context.Context, userID string) (models.RenderStats, error) {
	var out models.RenderStats
	err := s.getJSON(userKey(userID, fieldRenderStats), &out)
	if IsNotFound(err) {
		return models.RenderStats{}, nil
	}
	return out, err
}

// MarkUninstalled records the uninstall timestamp; the user drops out of
// fan-out listings until settings are saved again.
func (s *BadgerStore) MarkUninstalled(_ context.Context, userID string) error {
	return s.setJSON(userKey(userID, fieldUninstalledAt), time.Now().UTC())
}

// refreshCandidate pairs a user with the age marker used for ordering.
type refreshCandidate struct {
	userID    string
	fetchedAt time.Time
}

// ListRefreshableUsers enumerates installed, configured users, oldest cache
// first; users with no cached manifest come before everyone else.
func (s *BadgerStore) ListRefreshableUsers(_ context.Context) ([]string, error) {
	var candidates []refreshCandidate

	suffix := []byte("/" + fieldSettings)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if !bytes.HasSuffix(key, suffix) {
				continue
			}
			userID := string(key[len(keyPrefix) : len(key)-len(suffix)])

			var set models.Settings
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &set)
			}); err != nil {
				continue // skip undecodable records rather than abort the listing
			}
			if !set.Configured() {
				continue
			}
			if _, err := txn.Get(userKey(userID, fieldUninstalledAt)); err == nil {
				continue
			}

			cand := refreshCandidate{userID: userID}
			if item, err := txn.Get(userKey(userID, fieldManifest)); err == nil {
				var cached models.CachedManifest
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &cached)
				}); err == nil {
					cand.fetchedAt = cached.FetchedAt
				}
			}
			candidates = append(candidates, cand)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refreshable users: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].fetchedAt.Equal(candidates[j].fetchedAt) {
			return candidates[i].userID < candidates[j].userID
		}
		return candidates[i].fetchedAt.Before(candidates[j].fetchedAt)
	})

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.userID
	}
	return out, nil
}

// RunGC triggers one value-log garbage collection pass. Badger returns an
// error when nothing was collected; that is not a failure.
func (s *BadgerStore) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if err == badger.ErrNoRewrite || err == badger.ErrGCInMemoryMode {
		return nil
	}
	return err
}

// Close flushes and closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
