// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/photocast/photocast/internal/logging"
	"github.com/photocast/photocast/internal/models"
	"github.com/photocast/photocast/internal/repository"
)

type errorResponse struct {
	Error string `json:"error"`
}

// respondJSON writes a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warn().Err(err).Msg("write response")
	}
}

// respondError maps engine errors to HTTP status codes. Domain conditions
// the caller can act on get 4xx; everything else is a 502/500 with the
// message kept generic.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotConfigured):
		respondJSON(w, http.StatusPreconditionFailed, errorResponse{Error: "album not configured"})
	case errors.Is(err, models.ErrNoPhotosAvailable):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "no photos available"})
	case errors.Is(err, models.ErrTokenInvalid):
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "account connection expired"})
	case errors.Is(err, models.ErrSessionExpired):
		respondJSON(w, http.StatusGone, errorResponse{Error: "pick session expired"})
	case repository.IsNotFound(err):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case models.IsFetchError(err):
		respondJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream unavailable"})
	default:
		logging.Error().Err(err).Msg("request failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decodeJSON reads a bounded JSON request body.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
