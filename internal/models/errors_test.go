// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestFetchErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewFetchError("https://p42-sharedstreams.icloud.com/x/sharedstreams/webstream", cause)

	wrapped := fmt.Errorf("crawl user u-1: %w", err)
	if !IsFetchError(wrapped) {
		t.Error("expected IsFetchError on wrapped error")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected cause to be reachable via Unwrap")
	}
	if !Transient(wrapped) {
		t.Error("fetch errors are transient")
	}
}

func TestStatusError(t *testing.T) {
	err := NewStatusError("https://example.com/webasseturls", 503)
	if !IsFetchError(err) {
		t.Error("status errors are fetch errors")
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != 503 {
		t.Errorf("expected status 503, got %+v", fe)
	}
}

func TestParseErrorNotTransient(t *testing.T) {
	err := &ParseError{URL: "https://example.com", Err: errors.New("missing field photos")}
	if Transient(err) {
		t.Error("parse errors must not be retried")
	}
	if !IsParseError(fmt.Errorf("wrap: %w", err)) {
		t.Error("expected IsParseError on wrapped error")
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	if errors.Is(ErrSessionExpired, ErrTokenInvalid) {
		t.Error("session expiry and token invalidation must stay distinct")
	}
	if Transient(ErrNoPhotosAvailable) || Transient(ErrNotConfigured) {
		t.Error("domain sentinels are not transient")
	}
}

func TestStatusFailedRoundTrip(t *testing.T) {
	s := CrawlStatus{Status: StatusFailed("no photos found")}
	if !s.Failed() {
		t.Error("expected Failed()")
	}
	if s.Status != "refresh failed: no photos found" {
		t.Errorf("unexpected status string %q", s.Status)
	}
	if (CrawlStatus{Status: StatusUpdated}).Failed() {
		t.Error("updated is not a failure")
	}
}
