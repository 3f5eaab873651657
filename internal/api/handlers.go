// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

/*
handlers.go - HTTP Handlers

Per-user endpoints identify the user through the {userID} route
parameter; devices and the settings UI both carry an opaque installation
id. Refresh triggers return 202 immediately; the dispatcher runs the
crawl. The render endpoint is the only one that may crawl synchronously,
and only when the cached snapshot has gone stale.
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/photocast/photocast/internal/album"
	"github.com/photocast/photocast/internal/logging"
	"github.com/photocast/photocast/internal/models"
	"github.com/photocast/photocast/internal/picker"
	"github.com/photocast/photocast/internal/scheduler"
)

// Handler bundles the engine dependencies the HTTP layer exposes.
type Handler struct {
	engine     *album.Engine
	dispatcher *scheduler.Dispatcher
	flow       *picker.Flow // nil when the picker provider is disabled
}

// NewHandler wires the HTTP handlers.
func NewHandler(engine *album.Engine, dispatcher *scheduler.Dispatcher, flow *picker.Flow) *Handler {
	return &Handler{engine: engine, dispatcher: dispatcher, flow: flow}
}

func userID(r *http.Request) string {
	return chi.URLParam(r, "userID")
}

// TriggerRefresh schedules a background refresh for the user.
// POST /api/v1/users/{userID}/refresh
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	outcome := h.dispatcher.TriggerRefresh(r.Context(), userID(r))
	if outcome == scheduler.OutcomeQueueFull {
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "refresh queue full"})
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":  models.StatusScheduled,
		"outcome": string(outcome),
	})
}

// Rediscover resets the cached partition hint and schedules a refresh.
// POST /api/v1/users/{userID}/rediscover
func (h *Handler) Rediscover(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	if err := h.engine.Rediscover(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	outcome := h.dispatcher.TriggerRefresh(r.Context(), id)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":  models.StatusScheduled,
		"outcome": string(outcome),
	})
}

// CrawlStatus returns the user's refresh status string.
// GET /api/v1/users/{userID}/status
func (h *Handler) CrawlStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Status(r.Context(), userID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// GetSettings returns the user's saved settings.
// GET /api/v1/users/{userID}/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.engine.Settings(r.Context(), userID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// SaveSettings persists settings and schedules an initial refresh.
// POST /api/v1/users/{userID}/settings
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if err := decodeJSON(r, &settings); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid settings payload"})
		return
	}

	id := userID(r)
	if err := h.engine.SaveSettings(r.Context(), id, settings); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	h.dispatcher.TriggerRefresh(r.Context(), id)
	respondJSON(w, http.StatusOK, map[string]string{"status": models.StatusScheduled})
}

// RenderPhoto resolves one photo URL for a device render.
// GET /api/v1/users/{userID}/render
func (h *Handler) RenderPhoto(w http.ResponseWriter, r *http.Request) {
	url, err := h.engine.PhotoForRender(r.Context(), userID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Uninstall marks the user removed. Called by the platform webhook when
// the plugin is uninstalled.
// POST /api/v1/users/{userID}/uninstall
func (h *Handler) Uninstall(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	if err := h.engine.Uninstall(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	logging.Info().Str("user_id", id).Msg("user uninstalled")
	respondJSON(w, http.StatusOK, map[string]string{"status": "uninstalled"})
}

// AppState resolves the picker connection state for the settings UI.
// GET /api/v1/users/{userID}/picker/state
func (h *Handler) AppState(w http.ResponseWriter, r *http.Request) {
	if h.flow == nil {
		respondJSON(w, http.StatusNotImplemented, errorResponse{Error: "picker provider not enabled"})
		return
	}
	respondJSON(w, http.StatusOK, h.flow.AppState(r.Context(), userID(r)))
}

// CreatePickSession opens a new pick session.
// POST /api/v1/users/{userID}/picker/session
func (h *Handler) CreatePickSession(w http.ResponseWriter, r *http.Request) {
	if h.flow == nil {
		respondJSON(w, http.StatusNotImplemented, errorResponse{Error: "picker provider not enabled"})
		return
	}
	state, err := h.flow.CreatePickSession(r.Context(), userID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// OAuthCallback completes the picker OAuth flow. The user id rides in the
// state parameter.
// GET /api/v1/picker/callback
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.flow == nil {
		respondJSON(w, http.StatusNotImplemented, errorResponse{Error: "picker provider not enabled"})
		return
	}
	id, err := h.flow.Connect(r.Context(), r.URL.String())
	if err != nil {
		respondError(w, err)
		return
	}
	logging.Info().Str("user_id", id).Msg("picker oauth completed")
	respondJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

// HealthLive reports process liveness.
// GET /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
