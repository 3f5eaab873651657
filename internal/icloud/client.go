// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
client.go - Shared Album Web API Client

The shared-album backend has no stable endpoint. Every album lives on a
partition ("p42"), and the only way to learn the right one is to ask any
partition and follow the redirect it returns:

	POST https://{partition}-{host}/{albumId}/sharedstreams/webstream
	  -> manifest JSON, or {"X-Apple-MMe-Host": "p57-{host}"}

The partition mutates rarely, so the resolved value is cached by callers as
a hint; the redirect chase restores correctness when the hint goes stale.
The chase is a bounded loop, never recursion: a redirect cycle surfaces as
ErrTooManyRedirects instead of a stack overflow.

Asset URLs come from the sibling webasseturls endpoint, keyed by derivative
checksum.
*/

package icloud

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/photocast/photocast/internal/config"
	"github.com/photocast/photocast/internal/logging"
	"github.com/photocast/photocast/internal/metrics"
	"github.com/photocast/photocast/internal/models"
)

// API is the upstream surface the engine consumes. Client implements it
// directly; BreakerClient wraps it with a circuit breaker.
type API interface {
	FetchWebStream(ctx context.Context, partition, albumID string) (models.AlbumManifest, string, error)
	ResolveAssets(ctx context.Context, partition, albumID string, photoGUIDs []string) (map[string]AssetLocation, error)
}

// AssetLocation is one entry of the webasseturls response, keyed upstream by
// derivative checksum.
type AssetLocation struct {
	URLLocation string `json:"url_location"`
	URLPath     string `json:"url_path"`
	URLExpiry   string `json:"url_expiry"`
}

// URL builds the fetchable asset URL.
func (a AssetLocation) URL() string {
	return "https://" + a.URLLocation + a.URLPath
}

// Client talks to the shared-album web API.
type Client struct {
	host             string
	defaultPartition string
	maxRedirects     int
	httpClient       *http.Client
}

var _ API = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.ICloudConfig) *Client {
	return &Client{
		host:             cfg.Host,
		defaultPartition: cfg.DefaultPartition,
		maxRedirects:     cfg.MaxRedirects,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// DefaultPartition returns the partition hint used when none is cached.
func (c *Client) DefaultPartition() string {
	return c.defaultPartition
}

// AlbumIDFromURL extracts the album identifier: everything after the '#'
// fragment marker of the shared album URL.
func AlbumIDFromURL(sharedAlbumURL string) (string, error) {
	_, fragment, found := strings.Cut(sharedAlbumURL, "#")
	if !found || fragment == "" {
		return "", fmt.Errorf("shared album URL %q has no album fragment", sharedAlbumURL)
	}
	return fragment, nil
}

// PartitionFromHost extracts the partition from a redirect host, e.g.
// "p159-sharedstreams.icloud.com" -> "p159".
func PartitionFromHost(host string) string {
	partition, _, _ := strings.Cut(host, "-")
	return partition
}

// webStreamResponse covers both valid response shapes: a manifest, or a
// redirect object naming the authoritative host.
type webStreamResponse struct {
	StreamName   string         `json:"streamName"`
	Photos       []models.Photo `json:"photos"`
	RedirectHost string         `json:"X-Apple-MMe-Host"`
}

// FetchWebStream fetches the album manifest, chasing partition redirects up
// to the configured bound. It returns the manifest together with the
// partition that finally served it, for callers to cache as the next hint.
func (c *Client) FetchWebStream(ctx context.Context, partition, albumID string) (models.AlbumManifest, string, error) {
	if partition == "" {
		partition = c.defaultPartition
	}

	for hop := 0; hop <= c.maxRedirects; hop++ {
		url := fmt.Sprintf("https://%s-%s/%s/sharedstreams/webstream", partition, c.host, albumID)

		var resp webStreamResponse
		if err := c.post(ctx, url, map[string]any{"streamCtag": nil}, &resp); err != nil {
			return models.AlbumManifest{}, partition, err
		}

		if resp.RedirectHost != "" {
			next := PartitionFromHost(resp.RedirectHost)
			logging.Debug().Str("album_id", albumID).Str("from", partition).Str("to", next).Msg("following partition redirect")
			metrics.PartitionRedirects.Inc()
			partition = next
			continue
		}

		if resp.Photos == nil {
			return models.AlbumManifest{}, partition, &models.ParseError{
				URL: url,
				Err: fmt.Errorf("response is neither a manifest nor a redirect"),
			}
		}

		return models.AlbumManifest{StreamName: resp.StreamName, Photos: resp.Photos}, partition, nil
	}

	return models.AlbumManifest{}, partition, fmt.Errorf("album %s: %w", albumID, models.ErrTooManyRedirects)
}

// assetResponse is the webasseturls response envelope.
type assetResponse struct {
	Items map[string]AssetLocation `json:"items"`
}

// ResolveAssets resolves derivative checksums to asset URLs for the given
// photo GUIDs (the engine always sends a single-photo batch).
func (c *Client) ResolveAssets(ctx context.Context, partition, albumID string, photoGUIDs []string) (map[string]AssetLocation, error) {
	if partition == "" {
		partition = c.defaultPartition
	}
	url := fmt.Sprintf("https://%s-%s/%s/sharedstreams/webasseturls", partition, c.host, albumID)

	var resp assetResponse
	if err := c.post(ctx, url, map[string]any{"photoGuids": photoGUIDs}, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return nil, &models.ParseError{URL: url, Err: fmt.Errorf("response has no items map")}
	}
	return resp.Items, nil
}

// post executes a JSON POST and decodes the response, retrying on HTTP 429
// with exponential backoff.
func (c *Client) post(ctx context.Context, url string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	resp, err := c.doWithRateLimit(ctx, url, payload)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// The webstream endpoint answers redirects with a 330 status; the body
	// still decodes, so decode-success is authoritative over the status code.
	if resp.StatusCode >= http.StatusInternalServerError {
		return models.NewStatusError(url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return models.NewStatusError(url, resp.StatusCode)
		}
		return &models.ParseError{URL: url, Err: err}
	}
	return nil
}

// doWithRateLimit executes the request, retrying on HTTP 429 with
// exponential backoff and honoring Retry-After when present.
func (c *Client) doWithRateLimit(ctx context.Context, url string, payload []byte) (*http.Response, error) {
	const maxRetries = 3
	baseDelay := time.Second

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, models.NewFetchError(url, err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()
		if attempt == maxRetries {
			return nil, models.NewStatusError(url, http.StatusTooManyRequests)
		}

		retryDelay := baseDelay * (1 << attempt)
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if d, err := time.ParseDuration(retryAfter + "s"); err == nil {
				retryDelay = d
			}
		}
		logging.Warn().Str("url", url).Dur("retry_delay", retryDelay).Int("attempt", attempt+1).Msg("upstream rate limited, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}
