// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

package models

import (
	"strings"
	"time"
)

// Crawl status strings shown to status readers. A refresh execution advances
// monotonically: scheduled -> started -> updated | failed. Failures embed the
// reason after the StatusFailedPrefix.
const (
	StatusNotStarted   = "not started"
	StatusScheduled    = "refresh scheduled"
	StatusStarted      = "refresh started"
	StatusUpdated      = "updated"
	StatusFailedPrefix = "refresh failed: "
)

// StatusFailed builds a failure status string with the given reason.
func StatusFailed(reason string) string {
	return StatusFailedPrefix + reason
}

// CrawlStatus is the per-user refresh status record. It is purely
// informational; last-writer-wins semantics are acceptable.
type CrawlStatus struct {
	Status        string    `json:"status"`
	LastSuccessAt time.Time `json:"last_success_at,omitempty"`
}

// Failed reports whether the status records a failed refresh.
func (s CrawlStatus) Failed() bool {
	return strings.HasPrefix(s.Status, StatusFailedPrefix)
}

// WebStreamStatus records the outcome of the most recent webstream fetch,
// independent of the overall crawl status.
type WebStreamStatus string

// Webstream fetch outcomes.
const (
	WebStreamFound    WebStreamStatus = "found"
	WebStreamNotFound WebStreamStatus = "not_found"
	WebStreamError    WebStreamStatus = "error"
)
