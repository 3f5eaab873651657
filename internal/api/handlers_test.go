// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/photocast/photocast/internal/album"
	"github.com/photocast/photocast/internal/config"
	"github.com/photocast/photocast/internal/icloud"
	"github.com/photocast/photocast/internal/models"
	"github.com/photocast/photocast/internal/repository"
	"github.com/photocast/photocast/internal/scheduler"
)

type stubAPI struct {
	manifest  models.AlbumManifest
	partition string
	assets    map[string]icloud.AssetLocation
}

func (s *stubAPI) FetchWebStream(context.Context, string, string) (models.AlbumManifest, string, error) {
	return s.manifest, s.partition, nil
}

func (s *stubAPI) ResolveAssets(context.Context, string, string, []string) (map[string]icloud.AssetLocation, error) {
	return s.assets, nil
}

func newTestServer(t *testing.T) (*httptest.Server, repository.Store) {
	t.Helper()

	store, err := repository.NewBadgerInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	upstream := &stubAPI{
		partition: "p42",
		manifest: models.AlbumManifest{
			StreamName: "Family",
			Photos: []models.Photo{{
				PhotoGUID: "guid-1",
				Derivatives: map[string]models.Derivative{
					"768": {Checksum: "sum-1", Width: "768"},
				},
			}},
		},
		assets: map[string]icloud.AssetLocation{
			"sum-1": {URLLocation: "cvws.icloud.com", URLPath: "/a.jpg"},
		},
	}

	engine := album.NewEngine(store,
		album.NewRegistry(album.NewICloudProvider(store, upstream, "p123")),
		24*time.Hour, 5*time.Second)

	jobs := config.JobsConfig{
		Slots:                2,
		Retries:              2,
		ExecutionTimeout:     5 * time.Second,
		BulkExecutionTimeout: 10 * time.Second,
		ScheduleTimeout:      5 * time.Second,
		QueueSize:            16,
	}
	dispatcher := scheduler.NewDispatcher(engine.RefreshUser, store, jobs)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = dispatcher.Serve(ctx) }()

	mw := NewChiMiddleware(config.ServerConfig{
		CORSOrigins:     []string{"*"},
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
	})
	router := NewRouter(NewHandler(engine, dispatcher, nil), mw)

	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestSaveSettingsSchedulesRefresh(t *testing.T) {
	srv, store := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/users/u-1/settings",
		`{"provider":"icloud","shared_album_url":"https://www.icloud.com/sharedalbum/#B0a"}`)
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	settings, err := store.GetSettings(context.Background(), "u-1")
	if err != nil || settings.SharedAlbumURL == "" {
		t.Errorf("settings = %+v, %v", settings, err)
	}
}

func TestSaveSettingsRejectsBadPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/users/u-1/settings", `{"provider":`)
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTriggerRefreshAccepted(t *testing.T) {
	srv, store := newTestServer(t)

	if err := store.SetSettings(context.Background(), "u-1", models.Settings{
		Provider:       models.ProviderICloud,
		SharedAlbumURL: "https://www.icloud.com/sharedalbum/#B0a",
	}); err != nil {
		t.Fatalf("SetSettings: %v", err)
	}

	resp := postJSON(t, srv.URL+"/api/v1/users/u-1/refresh", "")
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["outcome"] != "accepted" {
		t.Errorf("outcome = %q", body["outcome"])
	}
}

func TestRenderCrawlsOnDemand(t *testing.T) {
	srv, store := newTestServer(t)

	if err := store.SetSettings(context.Background(), "u-1", models.Settings{
		Provider:       models.ProviderICloud,
		SharedAlbumURL: "https://www.icloud.com/sharedalbum/#B0a",
	}); err != nil {
		t.Fatalf("SetSettings: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/v1/users/u-1/render")
	if err != nil {
		t.Fatalf("GET render: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["url"] != "https://cvws.icloud.com/a.jpg" {
		t.Errorf("url = %q", body["url"])
	}
}

func TestRenderUnconfiguredUser(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/users/u-none/render")
	if err != nil {
		t.Fatalf("GET render: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Errorf("status = %d, want 412", resp.StatusCode)
	}
}

func TestCrawlStatusDefaultsNotStarted(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/users/u-1/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var status models.CrawlStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != models.StatusNotStarted {
		t.Errorf("status = %q, want %q", status.Status, models.StatusNotStarted)
	}
}

func TestUninstallExcludesFromFanOut(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	if err := store.SetSettings(ctx, "u-1", models.Settings{
		Provider:       models.ProviderICloud,
		SharedAlbumURL: "https://www.icloud.com/sharedalbum/#B0a",
	}); err != nil {
		t.Fatalf("SetSettings: %v", err)
	}

	resp := postJSON(t, srv.URL+"/api/v1/users/u-1/uninstall", "")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	users, err := store.ListRefreshableUsers(ctx)
	if err != nil {
		t.Fatalf("ListRefreshableUsers: %v", err)
	}
	for _, u := range users {
		if u == "u-1" {
			t.Error("uninstalled user still refreshable")
		}
	}
}

func TestPickerEndpointsWithoutFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/users/u-1/picker/state")
	if err != nil {
		t.Fatalf("GET picker state: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
