// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

// Package main is the entry point for the Photocast server.
//
// Photocast syncs photos from shared albums and consent-picker sessions
// to e-ink display devices. It crawls album manifests in the background,
// selects photos for device renders, and exposes a small per-user REST
// API for the plugin's settings UI and the devices themselves.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, config file, and
//     environment variables (Koanf v2)
//  2. Repository: BadgerDB key-value store for per-user state
//  3. Upstream clients: shared-album client behind a circuit breaker,
//     plus the optional consent-picker client
//  4. Album engine: provider registry, selection, render path
//  5. Dispatcher and fan-out: background refresh orchestration
//  6. HTTP server: per-user REST API with Prometheus metrics
//
// Everything long-running lives in a Suture supervisor tree (data, jobs,
// api layers) so a crash in one layer restarts that layer only.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context; the supervisor tree then
// stops services gracefully with a 10 second timeout each.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/photocast/photocast/internal/album"
	"github.com/photocast/photocast/internal/api"
	"github.com/photocast/photocast/internal/config"
	"github.com/photocast/photocast/internal/icloud"
	"github.com/photocast/photocast/internal/logging"
	"github.com/photocast/photocast/internal/picker"
	"github.com/photocast/photocast/internal/repository"
	"github.com/photocast/photocast/internal/scheduler"
	"github.com/photocast/photocast/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("icloud_host", cfg.ICloud.Host).
		Bool("picker_enabled", cfg.Picker.Enabled()).
		Bool("store_in_memory", cfg.Repository.InMemory).
		Msg("Configuration loaded")

	store, err := repository.OpenBadger(cfg.Repository)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open repository")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing repository")
		}
	}()

	// Upstream clients. The shared-album client sits behind a circuit
	// breaker so a flapping upstream cannot soak every worker slot.
	icloudAPI := icloud.NewBreakerClient(icloud.NewClient(cfg.ICloud))

	var providers []album.Provider
	providers = append(providers, album.NewICloudProvider(store, icloudAPI, cfg.ICloud.DefaultPartition))

	var flow *picker.Flow
	if cfg.Picker.Enabled() {
		flow = picker.NewFlow(store, picker.NewClient(cfg.Picker), picker.NewOAuth(cfg.Picker))
		providers = append(providers, album.NewPickerProvider(flow))
	}

	engine := album.NewEngine(store, album.NewRegistry(providers...),
		cfg.Jobs.StaleAfter, cfg.Jobs.RenderCrawlTimeout)

	dispatcher := scheduler.NewDispatcher(engine.RefreshUser, store, cfg.Jobs)
	fanOut := scheduler.NewFanOut(dispatcher, store, cfg.Jobs)

	mw := api.NewChiMiddleware(cfg.Server)
	router := api.NewRouter(api.NewHandler(engine, dispatcher, flow), mw)
	httpServer := api.NewServer(cfg.Server, router.Setup())

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build supervisor tree")
	}
	tree.AddDataService(supervisor.NewStoreGCService(store.RunGC, cfg.Repository.GCInterval))
	tree.AddJobService(dispatcher)
	tree.AddJobService(fanOut)
	tree.AddAPIService(httpServer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting Photocast with supervisor tree")

	errCh := tree.ServeBackground(ctx)
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within shutdown timeout")
		}
	}

	logging.Info().Msg("Photocast stopped")
}
