// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for lendgate.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: Platform REST API location and request timeout
//   - SessionConfig: Monitor poll interval, warning threshold, extend throttling
//   - AppConfig: Per-console title and allowed roles
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (LENDGATE_*), including .env files
//   - ~/.lendgate/config.toml
//   - ~/.lendgate/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	interval := cfg.Session.PollInterval()
package config
