// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
state.go - Picker Connection State Machine

Resolves the per-user picker state the settings UI polls:

	not-connected        -> show sign-in URL
	connected-no-session -> offer "pick photos"
	connected-picking    -> show picker URI, keep polling
	connected-pictures   -> selection complete, show image count

The done flag is cached: once a session reports mediaItemsSet, later
AppState calls skip the session poll entirely and only count media items.
Session expiry drops the user back one state (re-pick); invalid_grant
drops them to the start (re-authenticate). Per-user state lives in the
repository, never on the Flow.
*/

package picker

import (
	"context"
	"errors"

	"github.com/photocast/photocast/internal/logging"
	"github.com/photocast/photocast/internal/metrics"
	"github.com/photocast/photocast/internal/models"
	"github.com/photocast/photocast/internal/repository"
)

// Flow drives the picker consent lifecycle for all users.
type Flow struct {
	store  repository.Store
	client *Client
	oauth  *OAuth
}

// NewFlow wires the state machine.
func NewFlow(store repository.Store, client *Client, oauth *OAuth) *Flow {
	return &Flow{store: store, client: client, oauth: oauth}
}

// AppState resolves the current picker state for a user. It never returns
// an error; failures that have no recovery action become StateError so the
// UI can render something.
func (f *Flow) AppState(ctx context.Context, userID string) models.AppState {
	state := f.appState(ctx, userID)
	metrics.PickerPolls.WithLabelValues(string(state.State)).Inc()
	return state
}

func (f *Flow) appState(ctx context.Context, userID string) models.AppState {
	token, err := f.accessToken(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrTokenInvalid) || repository.IsNotFound(err) {
			return f.notConnected(userID)
		}
		return errorState(err)
	}

	sess, err := f.store.GetPickSession(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return models.AppState{State: models.StateConnectedNoSession}
		}
		return errorState(err)
	}
	if sess.ID == "" {
		return models.AppState{State: models.StateConnectedNoSession}
	}

	if sess.Done {
		return f.picturesState(ctx, userID, token, sess.ID)
	}
	return f.pollSession(ctx, userID, token, sess)
}

// CreatePickSession opens a fresh session upstream, replacing any cached
// one, and returns the picking state holding the picker URI.
func (f *Flow) CreatePickSession(ctx context.Context, userID string) (models.AppState, error) {
	token, err := f.accessToken(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrTokenInvalid) || repository.IsNotFound(err) {
			return f.notConnected(userID), nil
		}
		return models.AppState{}, err
	}

	sess, err := f.client.CreateSession(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrTokenInvalid) {
			return f.notConnected(userID), nil
		}
		return models.AppState{}, err
	}

	if err := f.store.SetPickSession(ctx, userID, models.PickSession{ID: sess.ID}); err != nil {
		return models.AppState{}, err
	}

	logging.Info().Str("user_id", userID).Str("session_id", sess.ID).Msg("pick session created")

	state := models.AppState{
		State:     models.StateConnectedPicking,
		PickerURI: sess.PickerURI,
	}
	if sess.PollingConfig != nil {
		state.PollInterval = sess.PollingConfig.PollInterval
	}
	return state, nil
}

// Connect completes the OAuth callback: exchanges the code and persists
// the tokens for the user carried in the state parameter.
func (f *Flow) Connect(ctx context.Context, callbackURL string) (string, error) {
	userID, code, err := CallbackState(callbackURL)
	if err != nil {
		return "", err
	}

	tokens, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	if err := f.store.SetTokens(ctx, userID, tokens); err != nil {
		return "", err
	}

	logging.Info().Str("user_id", userID).Msg("picker account connected")
	return userID, nil
}

// Photos returns the picked photo items for a user with a completed
// session.
func (f *Flow) Photos(ctx context.Context, userID string) ([]models.MediaItem, error) {
	token, err := f.accessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess, err := f.store.GetPickSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.ID == "" || !sess.Done {
		return nil, models.ErrNoPhotosAvailable
	}
	return f.client.PhotoItems(ctx, token, sess.ID)
}

// AccessToken exposes a valid access token for callers fetching media
// bytes directly.
func (f *Flow) AccessToken(ctx context.Context, userID string) (string, error) {
	return f.accessToken(ctx, userID)
}

func (f *Flow) picturesState(ctx context.Context, userID, token, sessionID string) models.AppState {
	count, err := f.client.CountPhotos(ctx, token, sessionID)
	switch {
	case err == nil:
		return models.AppState{State: models.StateConnectedPictures, ImageCount: count}
	case errors.Is(err, models.ErrSessionExpired):
		return models.AppState{State: models.StateConnectedNoSession}
	case errors.Is(err, models.ErrTokenInvalid):
		return f.notConnected(userID)
	default:
		return errorState(err)
	}
}

func (f *Flow) pollSession(ctx context.Context, userID, token string, cached models.PickSession) models.AppState {
	sess, err := f.client.GetSession(ctx, token, cached.ID)
	switch {
	case errors.Is(err, models.ErrSessionExpired):
		return models.AppState{State: models.StateConnectedNoSession}
	case errors.Is(err, models.ErrTokenInvalid):
		return f.notConnected(userID)
	case err != nil:
		return errorState(err)
	}

	if sess.MediaItemsSet {
		if err := f.store.SetPickSession(ctx, userID, models.PickSession{ID: cached.ID, Done: true}); err != nil {
			return errorState(err)
		}
		// Count zero on the transition poll; the UI polls again and the
		// next call counts for real.
		return models.AppState{State: models.StateConnectedPictures, ImageCount: 0}
	}

	state := models.AppState{
		State:     models.StateConnectedPicking,
		PickerURI: sess.PickerURI,
	}
	if sess.PollingConfig != nil {
		state.PollInterval = sess.PollingConfig.PollInterval
	}
	return state
}

func (f *Flow) accessToken(ctx context.Context, userID string) (string, error) {
	stored, err := f.store.GetTokens(ctx, userID)
	if err != nil {
		return "", err
	}
	if !stored.Valid() {
		return "", models.ErrTokenInvalid
	}
	return f.oauth.AccessToken(ctx, stored, func(ctx context.Context, refreshed models.Tokens) error {
		return f.store.SetTokens(ctx, userID, refreshed)
	})
}

func (f *Flow) notConnected(userID string) models.AppState {
	return models.AppState{
		State:     models.StateNotConnected,
		SignInURL: f.oauth.SignInURL(userID),
	}
}

func errorState(err error) models.AppState {
	logging.Warn().Err(err).Msg("picker state resolution failed")
	return models.AppState{State: models.StateError, Error: err.Error()}
}
