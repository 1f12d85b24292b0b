// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for lendgate.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.lendgate/config.toml
//   - ~/.lendgate/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/lendgate-tui/internal/util"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete lendgate configuration.
type Config struct {
	// General settings
	Version string `toml:"version" json:"version"`
	// App is the console the TUI opens by default (key into Apps).
	App string `toml:"app" json:"app"`

	API     APIConfig     `toml:"api" json:"api"`
	Session SessionConfig `toml:"session" json:"session"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Audit   AuditConfig   `toml:"audit" json:"audit"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	UI      UIConfig      `toml:"ui" json:"ui"`

	// Apps maps an app key to its title and the roles allowed to enter it.
	Apps map[string]AppConfig `toml:"apps" json:"apps"`
}

// APIConfig contains the platform REST API settings.
type APIConfig struct {
	// BaseURL is the API root, e.g. https://api.example.com
	BaseURL string `toml:"base_url" json:"base_url"`
	// TimeoutSecs bounds each HTTP request.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// UserAgent is sent with every request.
	UserAgent string `toml:"user_agent" json:"user_agent"`
}

// SessionConfig contains session lifecycle tuning.
type SessionConfig struct {
	// PollIntervalSecs is how often the monitor asks the server for session state.
	PollIntervalSecs int `toml:"poll_interval_secs" json:"poll_interval_secs"`
	// WarningThresholdSecs is the remaining time at or below which the warning is shown.
	WarningThresholdSecs int `toml:"warning_threshold_secs" json:"warning_threshold_secs"`
	// ExtendMinIntervalSecs throttles activity-driven extend calls (0 = unthrottled).
	ExtendMinIntervalSecs int `toml:"extend_min_interval_secs" json:"extend_min_interval_secs"`
	// WatchStorage enables the cross-process credential watcher.
	WatchStorage bool `toml:"watch_storage" json:"watch_storage"`
}

// StorageConfig contains credential storage settings.
type StorageConfig struct {
	// CredentialDir holds the auth_token and auth_user files (empty = ~/.lendgate/credentials).
	CredentialDir string `toml:"credential_dir" json:"credential_dir"`
}

// AuditConfig contains session audit trail settings.
type AuditConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// DBPath is the SQLite database path (empty = ~/.lendgate/audit.db).
	DBPath string `toml:"db_path" json:"db_path"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level"`
	// Path is the log file (empty = ~/.lendgate/lendgate.log, "-" = stderr).
	Path string `toml:"path" json:"path"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	Theme string `toml:"theme" json:"theme"`
	// Mouse enables mouse reporting so pointer movement counts as activity.
	Mouse bool `toml:"mouse" json:"mouse"`
}

// AppConfig describes one administrative console.
type AppConfig struct {
	Title        string   `toml:"title" json:"title"`
	AllowedRoles []string `toml:"allowed_roles" json:"allowed_roles"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		App:     "admin",
		API: APIConfig{
			BaseURL:     "http://localhost:8080",
			TimeoutSecs: 30,
			UserAgent:   "lendgate-tui",
		},
		Session: SessionConfig{
			PollIntervalSecs:      120,
			WarningThresholdSecs:  300,
			ExtendMinIntervalSecs: 30,
			WatchStorage:          true,
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme: "dark",
			Mouse: true,
		},
		Apps: DefaultApps(),
	}
}

// DefaultApps returns the built-in console definitions.
func DefaultApps() map[string]AppConfig {
	return map[string]AppConfig{
		"admin": {
			Title:        "Admin Portal",
			AllowedRoles: []string{"super_admin", "platform_admin"},
		},
		"tenant": {
			Title:        "Tenant Admin",
			AllowedRoles: []string{"tenant_admin", "super_admin"},
		},
		"broker": {
			Title:        "Broker Portal",
			AllowedRoles: []string{"broker", "loan_officer"},
		},
		"underwriter": {
			Title:        "Underwriter Console",
			AllowedRoles: []string{"underwriter", "senior_underwriter"},
		},
	}
}

// PollInterval returns the monitor poll interval as a duration.
func (s SessionConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSecs) * time.Second
}

// WarningThreshold returns the warning threshold as a duration.
func (s SessionConfig) WarningThreshold() time.Duration {
	return time.Duration(s.WarningThresholdSecs) * time.Second
}

// ExtendMinInterval returns the minimum spacing between extend calls.
func (s SessionConfig) ExtendMinInterval() time.Duration {
	return time.Duration(s.ExtendMinIntervalSecs) * time.Second
}

// Timeout returns the per-request timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the lendgate configuration directory path.
// LENDGATE_HOME overrides the default of ~/.lendgate.
func ConfigDir() (string, error) {
	if dir := os.Getenv("LENDGATE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".lendgate"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// CredentialDir resolves the credential directory, defaulting under ConfigDir.
func (c *Config) CredentialDir() (string, error) {
	if c.Storage.CredentialDir != "" {
		return c.Storage.CredentialDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials"), nil
}

// AuditDBPath resolves the audit database path, defaulting under ConfigDir.
func (c *Config) AuditDBPath() (string, error) {
	if c.Audit.DBPath != "" {
		return c.Audit.DBPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audit.db"), nil
}

// LogPath resolves the log file path. "-" means stderr.
func (c *Config) LogPath() (string, error) {
	if c.Logging.Path != "" {
		return c.Logging.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "lendgate.log"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads .env from the working directory and the config directory.
// Variables already present in the environment are never overwritten.
func LoadDotEnv() error {
	candidates := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}

	var existing []string
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides (including .env files) are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	if err := LoadDotEnv(); err != nil {
		loadErr = err
	}

	loaded := false
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
				cfg = Default()
			} else {
				loaded = true
			}
		}
	}

	if !loaded {
		if jsonPath, err := ConfigPathJSON(); err == nil {
			if _, statErr := os.Stat(jsonPath); statErr == nil {
				if err := LoadJSON(cfg, jsonPath); err != nil {
					loadErr = fmt.Errorf("failed to load JSON config: %w", err)
					cfg = Default()
				}
			}
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}

	// Return the config (with any load error for informational purposes)
	return cfg, loadErr
}

// finish applies env overrides, migration, defaults and validation.
func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	if err := c.Migrate(); err != nil {
		return fmt.Errorf("config migration failed: %w", err)
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Config files are written 0600 (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	var buf strings.Builder
	buf.WriteString("# lendgate configuration file\n")
	buf.WriteString("# Generated by lendgate - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, []byte(buf.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
// SECURITY: Config files are written 0600 (owner read/write only).
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s'", c.API.BaseURL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("unsupported scheme '%s', must be http or https", u.Scheme),
		})
	}

	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 300 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 300, got %d", c.API.TimeoutSecs),
		})
	}

	if c.Session.PollIntervalSecs < 5 {
		errs = append(errs, ValidationError{
			Field:   "session.poll_interval_secs",
			Message: fmt.Sprintf("must be at least 5, got %d", c.Session.PollIntervalSecs),
		})
	}
	if c.Session.WarningThresholdSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "session.warning_threshold_secs",
			Message: fmt.Sprintf("must be positive, got %d", c.Session.WarningThresholdSecs),
		})
	}
	if c.Session.ExtendMinIntervalSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "session.extend_min_interval_secs",
			Message: fmt.Sprintf("must not be negative, got %d", c.Session.ExtendMinIntervalSecs),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if _, ok := c.Apps[c.App]; !ok {
		errs = append(errs, ValidationError{
			Field:   "app",
			Message: fmt.Sprintf("unknown app '%s', must be one of: %s", c.App, strings.Join(c.AppNames(), ", ")),
		})
	}
	for name, app := range c.Apps {
		if len(app.AllowedRoles) == 0 {
			errs = append(errs, ValidationError{
				Field:   "apps." + name + ".allowed_roles",
				Message: "must list at least one role",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.App == "" {
		c.App = d.App
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = d.API.UserAgent
	}
	if c.Session.PollIntervalSecs == 0 {
		c.Session.PollIntervalSecs = d.Session.PollIntervalSecs
	}
	if c.Session.WarningThresholdSecs == 0 {
		c.Session.WarningThresholdSecs = d.Session.WarningThresholdSecs
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if len(c.Apps) == 0 {
		c.Apps = d.Apps
	}
	for name, app := range c.Apps {
		if app.Title == "" {
			app.Title = name
			c.Apps[name] = app
		}
	}
}

// Migrate handles migration from old configuration formats to new ones.
func (c *Config) Migrate() error {
	// Older files stored the API URL with a trailing slash or an /api suffix.
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	c.API.BaseURL = strings.TrimSuffix(c.API.BaseURL, "/api")

	c.App = strings.ToLower(strings.TrimSpace(c.App))
	c.Logging.Level = strings.ToLower(c.Logging.Level)

	if c.Version == "" || c.Version == "0" {
		c.Version = CurrentVersion
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - LENDGATE_API_URL: overrides api.base_url
//   - LENDGATE_APP: overrides app
//   - LENDGATE_LOG_LEVEL: overrides logging.level
//   - LENDGATE_POLL_INTERVAL_SECS: overrides session.poll_interval_secs
//   - LENDGATE_WARNING_SECS: overrides session.warning_threshold_secs
//   - LENDGATE_CREDENTIAL_DIR: overrides storage.credential_dir
//   - LENDGATE_AUDIT: set to "0" or "false" to disable the audit trail
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LENDGATE_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("LENDGATE_APP"); v != "" {
		c.App = v
	}
	if v := os.Getenv("LENDGATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LENDGATE_POLL_INTERVAL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.PollIntervalSecs = n
		}
	}
	if v := os.Getenv("LENDGATE_WARNING_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.WarningThresholdSecs = n
		}
	}
	if v := os.Getenv("LENDGATE_CREDENTIAL_DIR"); v != "" {
		c.Storage.CredentialDir = v
	}
	if v := os.Getenv("LENDGATE_AUDIT"); v != "" {
		c.Audit.Enabled = !(v == "0" || strings.EqualFold(v, "false"))
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "session.poll_interval_secs").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "api.base_url").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the struct tree for a dot-notation key.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && field.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all scalar configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"app",
		"api.base_url",
		"api.timeout_secs",
		"api.user_agent",
		"session.poll_interval_secs",
		"session.warning_threshold_secs",
		"session.extend_min_interval_secs",
		"session.watch_storage",
		"storage.credential_dir",
		"audit.enabled",
		"audit.db_path",
		"logging.level",
		"logging.path",
		"ui.theme",
		"ui.mouse",
	}
}

// AppNames returns the configured app keys in sorted order.
func (c *Config) AppNames() []string {
	names := make([]string, 0, len(c.Apps))
	for name := range c.Apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupApp returns the named app definition.
func (c *Config) LookupApp(name string) (AppConfig, bool) {
	app, ok := c.Apps[strings.ToLower(name)]
	return app, ok
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Apps != nil {
		clone.Apps = make(map[string]AppConfig, len(c.Apps))
		for k, v := range c.Apps {
			v.AllowedRoles = append([]string(nil), v.AllowedRoles...)
			clone.Apps[k] = v
		}
	}
	return &clone
}

// String returns a JSON representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if cfg == nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return err
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
