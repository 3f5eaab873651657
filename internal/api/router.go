// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router assembles the HTTP surface.
type Router struct {
	handler *Handler
	mw      *ChiMiddleware
}

// NewRouter wires the router from its handler and middleware factory.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	return &Router{handler: handler, mw: mw}
}

// Setup configures all HTTP routes using the Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.mw.CORS()) // global so OPTIONS preflight is handled everywhere

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.mw.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
	})

	r.Route("/api/v1/users/{userID}", func(r chi.Router) {
		r.Use(APISecurityHeaders())

		// Refresh triggers burn upstream quota; keep them strict.
		r.With(router.mw.RateLimitRefresh()).Post("/refresh", router.handler.TriggerRefresh)
		r.With(router.mw.RateLimitRefresh()).Post("/rediscover", router.handler.Rediscover)

		// Device polling endpoint.
		r.With(router.mw.RateLimitRender()).Get("/render", router.handler.RenderPhoto)

		r.Group(func(r chi.Router) {
			r.Use(router.mw.RateLimit())

			r.Get("/status", router.handler.CrawlStatus)
			r.Get("/settings", router.handler.GetSettings)
			r.Post("/settings", router.handler.SaveSettings)
			r.Post("/uninstall", router.handler.Uninstall)

			r.Get("/picker/state", router.handler.AppState)
			r.Post("/picker/session", router.handler.CreatePickSession)
		})
	})

	r.Route("/api/v1/picker", func(r chi.Router) {
		r.Use(router.mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Get("/callback", router.handler.OAuthCallback)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
