// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
errors.go - Engine Error Taxonomy

The engine distinguishes failure classes because each implies a different
recovery action for the user or the orchestrator:

  - FetchError:          network failure or non-2xx upstream response; retryable
  - ParseError:          upstream response failed schema validation; not retryable
  - ErrNoPhotosAvailable: album crawled fine but holds no selectable photo
  - ErrMissingDerivative: asset endpoint omitted the expected checksum key
  - ErrSessionExpired:    picker session no longer valid; user must re-pick
  - ErrTokenInvalid:      OAuth grant revoked; user must re-authenticate
  - ErrNotConfigured:     no album has been set up for the user yet
  - ErrTooManyRedirects:  partition redirect chase exceeded its bound

ErrSessionExpired and ErrTokenInvalid both arrive as upstream error strings
and must never be collapsed into one another: re-pick and re-auth are
different affordances.
*/

package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPhotosAvailable means the manifest holds zero selectable photos.
	ErrNoPhotosAvailable = errors.New("no photos available")

	// ErrMissingDerivative means the asset response lacked the checksum key
	// of the chosen derivative.
	ErrMissingDerivative = errors.New("derivative missing from asset response")

	// ErrSessionExpired means the upstream reported the pick session as
	// expired or invalid. Recovery: create a new session (re-pick).
	ErrSessionExpired = errors.New("pick session expired")

	// ErrTokenInvalid means the OAuth tokens were rejected (invalid_grant).
	// Recovery: full re-authentication.
	ErrTokenInvalid = errors.New("oauth token invalid")

	// ErrNotConfigured means the user has not set up an album yet.
	ErrNotConfigured = errors.New("album not configured")

	// ErrTooManyRedirects means the partition redirect chase did not
	// converge within its depth bound.
	ErrTooManyRedirects = errors.New("too many partition redirects")
)

// FetchError wraps a network failure or an unexpected upstream status code.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError builds a FetchError for a transport-level failure.
func NewFetchError(url string, err error) *FetchError {
	return &FetchError{URL: url, Err: err}
}

// NewStatusError builds a FetchError for a non-2xx response.
func NewStatusError(url string, status int) *FetchError {
	return &FetchError{URL: url, StatusCode: status}
}

// ParseError wraps an upstream response that failed schema validation.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is (or wraps) a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Transient reports whether err is worth retrying: transport and status
// failures are, schema mismatches and domain states are not.
func Transient(err error) bool {
	return IsFetchError(err)
}
