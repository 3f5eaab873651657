// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
client.go - Consent-Picker API Client

REST client for the picker provider:

	POST /sessions                 -> {id, pickerUri, mediaItemsSet}
	GET  /sessions/{id}            -> {id, pickerUri?, mediaItemsSet, pollingConfig?}
	GET  /mediaItems?sessionId=... -> paged {mediaItems, nextPageToken?}

Credentials are passed per call; the client itself holds no tokens. The
upstream reports session expiry and token invalidation through error
payloads that look alike, and classifyError keeps them apart: expiry maps
to ErrSessionExpired (the user re-picks), invalid_grant maps to
ErrTokenInvalid (the user re-authenticates).
*/

package picker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/photocast/photocast/internal/config"
	"github.com/photocast/photocast/internal/models"
)

// Client talks to the picker provider API.
type Client struct {
	apiBase    string
	pageSize   int
	httpClient *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg config.PickerConfig) *Client {
	return &Client{
		apiBase:  strings.TrimSuffix(cfg.APIBase, "/"),
		pageSize: cfg.PageSize,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// CreateSession opens a new pick session. The returned pickerUri is where
// the user completes consent and photo selection.
func (c *Client) CreateSession(ctx context.Context, accessToken string) (models.PickerSession, error) {
	var out models.PickerSession
	err := c.do(ctx, http.MethodPost, c.apiBase+"/sessions", accessToken, &out)
	return out, err
}

// GetSession polls the session resource.
func (c *Client) GetSession(ctx context.Context, accessToken, sessionID string) (models.PickerSession, error) {
	var out models.PickerSession
	err := c.do(ctx, http.MethodGet, c.apiBase+"/sessions/"+url.PathEscape(sessionID), accessToken, &out)
	return out, err
}

// ListMediaItems pages through every media item picked in the session.
func (c *Client) ListMediaItems(ctx context.Context, accessToken, sessionID string) ([]models.MediaItem, error) {
	var (
		items     []models.MediaItem
		pageToken string
	)

	for {
		q := url.Values{}
		q.Set("sessionId", sessionID)
		q.Set("pageSize", strconv.Itoa(c.pageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page models.MediaItemsPage
		if err := c.do(ctx, http.MethodGet, c.apiBase+"/mediaItems?"+q.Encode(), accessToken, &page); err != nil {
			return nil, err
		}

		items = append(items, page.MediaItems...)
		pageToken = page.NextPageToken
		if pageToken == "" || len(page.MediaItems) == 0 {
			return items, nil
		}
	}
}

// CountPhotos resolves the session's media items and counts the PHOTO-typed
// ones. Zero is a valid answer while upstream is still processing.
func (c *Client) CountPhotos(ctx context.Context, accessToken, sessionID string) (int, error) {
	items, err := c.ListMediaItems(ctx, accessToken, sessionID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, item := range items {
		if item.Type == models.MediaItemTypePhoto {
			count++
		}
	}
	return count, nil
}

// PhotoItems resolves the session's media items filtered to photos.
func (c *Client) PhotoItems(ctx context.Context, accessToken, sessionID string) ([]models.MediaItem, error) {
	items, err := c.ListMediaItems(ctx, accessToken, sessionID)
	if err != nil {
		return nil, err
	}
	photos := items[:0:0]
	for _, item := range items {
		if item.Type == models.MediaItemTypePhoto {
			photos = append(photos, item)
		}
	}
	return photos, nil
}

func (c *Client) do(ctx context.Context, method, rawURL, accessToken string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.NewFetchError(rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return classifyError(rawURL, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &models.ParseError{URL: rawURL, Err: err}
	}
	return nil
}

// classifyError routes upstream failures to the recovery action they imply.
// Both session expiry and token invalidation arrive as error strings;
// collapsing them would strand the user without a way forward.
func classifyError(rawURL string, status int, body []byte) error {
	lower := strings.ToLower(string(body))

	switch {
	case strings.Contains(lower, "invalid_grant"):
		return fmt.Errorf("%s: %w", rawURL, models.ErrTokenInvalid)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", rawURL, models.ErrTokenInvalid)
	case sessionGone(status, lower):
		return fmt.Errorf("%s: %w", rawURL, models.ErrSessionExpired)
	default:
		return models.NewStatusError(rawURL, status)
	}
}

func sessionGone(status int, lowerBody string) bool {
	if status == http.StatusNotFound {
		return true
	}
	return strings.Contains(lowerBody, "session expired") ||
		strings.Contains(lowerBody, "invalid session") ||
		strings.Contains(lowerBody, "session not found")
}
