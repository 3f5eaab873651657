// Photocast - Shared Album Sync Engine for E-Ink Displays
// Copyright 2026 Photocast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photocast/photocast

package config

import (
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration must validate: %v", err)
	}
	if cfg.ICloud.DefaultPartition != "p123" {
		t.Errorf("default partition = %q", cfg.ICloud.DefaultPartition)
	}
	if cfg.Jobs.ChunkSize != 100 {
		t.Errorf("default chunk size = %d", cfg.Jobs.ChunkSize)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ICLOUD_DEFAULT_PARTITION", "p42")
	t.Setenv("JOBS_SLOTS", "5")
	t.Setenv("SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REPOSITORY_IN_MEMORY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ICloud.DefaultPartition != "p42" {
		t.Errorf("partition override = %q", cfg.ICloud.DefaultPartition)
	}
	if cfg.Jobs.Slots != 5 {
		t.Errorf("slots override = %d", cfg.Jobs.Slots)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
}

func TestEnvTransformDropsUnknown(t *testing.T) {
	if got := envTransform("PATH"); got != "" {
		t.Errorf("unknown env var mapped to %q", got)
	}
	if got := envTransform("JOBS_EXECUTION_TIMEOUT"); got != "jobs.execution_timeout" {
		t.Errorf("transform = %q", got)
	}
	if got := envTransform("ICLOUD_MAX_REDIRECTS"); got != "icloud.max_redirects" {
		t.Errorf("transform = %q", got)
	}
}

func TestValidateRejectsTimeoutInversion(t *testing.T) {
	cfg := defaultConfig()
	cfg.Jobs.RenderCrawlTimeout = 20 * time.Minute
	if err := cfg.Validate(); err == nil {
		t.Error("expected render crawl timeout above execution timeout to fail")
	}
}

func TestValidateRequiresRepositoryPath(t *testing.T) {
	cfg := defaultConfig()
	cfg.Repository.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing repository path to fail")
	}
	cfg.Repository.InMemory = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("in-memory repository should not require a path: %v", err)
	}
}

func TestValidateRequiresPickerRedirect(t *testing.T) {
	cfg := defaultConfig()
	cfg.Picker.OAuthClientID = "id"
	cfg.Picker.OAuthClientSecret = "secret"
	if err := cfg.Validate(); err == nil {
		t.Error("enabled picker without redirect URL must fail validation")
	}
	cfg.Picker.OAuthRedirectURL = "https://photocast.example/oauth/callback"
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}
