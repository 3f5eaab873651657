// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
tokens.go - OAuth Token Handling

Wraps golang.org/x/oauth2 for the picker provider. Access tokens are often
expired by the time a background refresh runs, so every remote call goes
through a TokenSource that transparently refreshes and persists the new
token via a caller-supplied save hook. A refresh rejected with
invalid_grant means the user revoked access; that surfaces as
models.ErrTokenInvalid so the state machine can drop back to
not-connected.
*/

package picker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/photocast/photocast/internal/config"
	"github.com/photocast/photocast/internal/models"
)

// pickerScope grants read access to media items the user picked, nothing
// broader.
const pickerScope = "https://www.googleapis.com/auth/photospicker.mediaitems.readonly"

var pickerEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// TokenSaver persists refreshed tokens. It is called at most once per
// refresh, before the new token is used.
type TokenSaver func(ctx context.Context, tokens models.Tokens) error

// OAuth wires the authorization-code flow and refresh handling.
type OAuth struct {
	conf *oauth2.Config
}

// NewOAuth builds the OAuth helper from configuration.
func NewOAuth(cfg config.PickerConfig) *OAuth {
	return &OAuth{
		conf: &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       []string{pickerScope},
			Endpoint:     pickerEndpoint,
		},
	}
}

// SignInURL returns the consent URL for a user. The user identifier rides
// in the state parameter so the callback can attribute the code.
func (o *OAuth) SignInURL(userID string) string {
	return o.conf.AuthCodeURL(userID,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for tokens.
func (o *OAuth) Exchange(ctx context.Context, code string) (models.Tokens, error) {
	tok, err := o.conf.Exchange(ctx, code)
	if err != nil {
		return models.Tokens{}, mapOAuthError(err)
	}
	return fromOAuth2(tok), nil
}

// AccessToken returns a currently valid access token for the stored
// credentials, refreshing and persisting when necessary.
func (o *OAuth) AccessToken(ctx context.Context, stored models.Tokens, save TokenSaver) (string, error) {
	src := o.conf.TokenSource(ctx, toOAuth2(stored))

	tok, err := src.Token()
	if err != nil {
		return "", mapOAuthError(err)
	}

	if tok.AccessToken != stored.AccessToken && save != nil {
		refreshed := fromOAuth2(tok)
		if refreshed.RefreshToken == "" {
			refreshed.RefreshToken = stored.RefreshToken
		}
		refreshed.Scope = stored.Scope
		if err := save(ctx, refreshed); err != nil {
			return "", fmt.Errorf("persist refreshed tokens: %w", err)
		}
	}
	return tok.AccessToken, nil
}

// CallbackState extracts the user identifier from a callback URL's state
// parameter.
func CallbackState(callbackURL string) (userID, code string, err error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", "", fmt.Errorf("parse callback url: %w", err)
	}
	q := u.Query()
	userID = q.Get("state")
	code = q.Get("code")
	if userID == "" || code == "" {
		return "", "", errors.New("callback missing state or code")
	}
	return userID, code, nil
}

func mapOAuthError(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		if rErr.ErrorCode == "invalid_grant" || strings.Contains(strings.ToLower(string(rErr.Body)), "invalid_grant") {
			return fmt.Errorf("token refresh: %w", models.ErrTokenInvalid)
		}
	}
	return fmt.Errorf("token refresh: %w", err)
}

func toOAuth2(t models.Tokens) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
		TokenType:    "Bearer",
	}
}

func fromOAuth2(t *oauth2.Token) models.Tokens {
	tok := models.Tokens{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
	if tok.Expiry.IsZero() {
		tok.Expiry = time.Now().Add(time.Hour)
	}
	return tok
}
