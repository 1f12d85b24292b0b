// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LENDGATE_HOME", dir)
	for _, k := range []string{
		"LENDGATE_API_URL", "LENDGATE_APP", "LENDGATE_LOG_LEVEL",
		"LENDGATE_POLL_INTERVAL_SECS", "LENDGATE_WARNING_SECS",
		"LENDGATE_CREDENTIAL_DIR", "LENDGATE_AUDIT",
	} {
		t.Setenv(k, "")
	}
	return dir
}

// =============================================================================
// GLOBAL INSTANCE TESTS
// =============================================================================

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal() can be
// safely called concurrently.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			c := Default()
			c.App = "broker"
			SetGlobal(c)
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

// TestConfig_ConcurrentMixedOperations mixes Global, SetGlobal and ReloadGlobal.
func TestConfig_ConcurrentMixedOperations(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	_ = Global()

	var wg sync.WaitGroup
	for i := 0; i < 90; i++ {
		wg.Add(1)
		switch i % 3 {
		case 0:
			go func() {
				defer wg.Done()
				if Global() == nil {
					t.Error("Global() returned nil")
				}
			}()
		case 1:
			go func() {
				defer wg.Done()
				SetGlobal(Default())
			}()
		case 2:
			go func() {
				defer wg.Done()
				_ = ReloadGlobal()
			}()
		}
	}
	wg.Wait()
}

func TestConfig_SetGlobalOverwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	_ = Global()

	custom := Default()
	custom.App = "underwriter"
	SetGlobal(custom)

	if got := Global().App; got != "underwriter" {
		t.Errorf("Expected app 'underwriter', got '%s'", got)
	}
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	require.Equal(t, 120, cfg.Session.PollIntervalSecs)
	require.Equal(t, 300, cfg.Session.WarningThresholdSecs)
	require.Equal(t, "admin", cfg.App)
	require.ElementsMatch(t, []string{"admin", "broker", "tenant", "underwriter"}, cfg.AppNames())

	admin, ok := cfg.LookupApp("ADMIN")
	require.True(t, ok)
	require.Contains(t, admin.AllowedRoles, "super_admin")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"missing scheme", func(c *Config) { c.API.BaseURL = "api.example.com" }, true},
		{"ftp scheme", func(c *Config) { c.API.BaseURL = "ftp://api.example.com" }, true},
		{"timeout zero", func(c *Config) { c.API.TimeoutSecs = 0 }, true},
		{"poll interval too short", func(c *Config) { c.Session.PollIntervalSecs = 1 }, true},
		{"warning threshold zero", func(c *Config) { c.Session.WarningThresholdSecs = 0 }, true},
		{"negative extend interval", func(c *Config) { c.Session.ExtendMinIntervalSecs = -1 }, true},
		{"unthrottled extend", func(c *Config) { c.Session.ExtendMinIntervalSecs = 0 }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, true},
		{"unknown app", func(c *Config) { c.App = "treasury" }, true},
		{"app without roles", func(c *Config) {
			c.Apps["broker"] = AppConfig{Title: "Broker Portal"}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Migrate(t *testing.T) {
	c := Default()
	c.API.BaseURL = "https://api.example.com/api/"
	c.App = " Broker "
	c.Logging.Level = "DEBUG"

	require.NoError(t, c.Migrate())
	require.Equal(t, "https://api.example.com", c.API.BaseURL)
	require.Equal(t, "broker", c.App)
	require.Equal(t, "debug", c.Logging.Level)
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

func TestConfig_SaveAndLoadTOML(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.API.BaseURL = "https://lending.example.com"
	cfg.Session.PollIntervalSecs = 60
	cfg.App = "tenant"
	require.NoError(t, Save(cfg))

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://lending.example.com", loaded.API.BaseURL)
	require.Equal(t, 60, loaded.Session.PollIntervalSecs)
	require.Equal(t, "tenant", loaded.App)
	require.Len(t, loaded.Apps, 4)
}

func TestConfig_LoadJSONFallback(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.Session.WarningThresholdSecs = 120
	require.NoError(t, SaveJSON(cfg, filepath.Join(dir, "config.json")))

	loaded, err := Load()
	require.NoError(t, err)
	require.Equal(t, 120, loaded.Session.WarningThresholdSecs)
}

func TestConfig_LoadDefaultsWhenNoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
}

func TestConfig_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("LENDGATE_API_URL", "https://staging.example.com/")
	t.Setenv("LENDGATE_APP", "underwriter")
	t.Setenv("LENDGATE_POLL_INTERVAL_SECS", "30")
	t.Setenv("LENDGATE_WARNING_SECS", "90")
	t.Setenv("LENDGATE_AUDIT", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://staging.example.com", cfg.API.BaseURL)
	require.Equal(t, "underwriter", cfg.App)
	require.Equal(t, 30, cfg.Session.PollIntervalSecs)
	require.Equal(t, 90, cfg.Session.WarningThresholdSecs)
	require.False(t, cfg.Audit.Enabled)
}

func TestConfig_DotEnvFile(t *testing.T) {
	dir := isolate(t)
	os.Unsetenv("LENDGATE_APP")
	t.Cleanup(func() { os.Unsetenv("LENDGATE_APP") })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LENDGATE_APP=broker\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "broker", cfg.App)
}

func TestConfig_CredentialDirDefault(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	got, err := cfg.CredentialDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "credentials"), got)

	cfg.Storage.CredentialDir = "/tmp/creds"
	got, err = cfg.CredentialDir()
	require.NoError(t, err)
	require.Equal(t, "/tmp/creds", got)
}

// =============================================================================
// GET / SET / CLONE
// =============================================================================

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("session.poll_interval_secs")
	require.NoError(t, err)
	require.Equal(t, 120, val)

	require.NoError(t, cfg.Set("api.base_url", "https://example.com"))
	val, err = cfg.Get("api.base_url")
	require.NoError(t, err)
	require.Equal(t, "https://example.com", val)

	require.NoError(t, cfg.Set("session.warning_threshold_secs", "60"))
	require.Equal(t, 60, cfg.Session.WarningThresholdSecs)

	require.NoError(t, cfg.Set("ui.mouse", "false"))
	require.False(t, cfg.UI.Mouse)

	_, err = cfg.Get("invalid.key")
	require.Error(t, err)
	require.Error(t, cfg.Set("", "x"))
	require.Error(t, cfg.Set("api.timeout_secs", "soon"))
}

func TestConfig_GetAllKeysResolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		require.NoError(t, err, key)
	}
}

func TestConfig_Clone(t *testing.T) {
	original := Default()
	clone := original.Clone()

	clone.App = "broker"
	admin := clone.Apps["admin"]
	admin.AllowedRoles[0] = "nobody"
	clone.Apps["admin"] = admin

	require.Equal(t, "admin", original.App)
	require.Equal(t, "super_admin", original.Apps["admin"].AllowedRoles[0])
}
