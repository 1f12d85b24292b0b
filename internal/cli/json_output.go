// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting and monitoring.
//
// Every command accepts --json and emits one JSONResponse envelope.
package cli

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/jeranaias/lendgate-tui/internal/audit"
)

// JSONResponse is the response envelope for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response to stdout.
func (r *JSONResponse) Print() error {
	return r.Write(os.Stdout)
}

// Write writes the indented response to w.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// StatusData is returned by status, login and extend.
type StatusData struct {
	App           string `json:"app"`
	SignedIn      bool   `json:"signed_in"`
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Role          string `json:"role,omitempty"`
	Organization  string `json:"organization,omitempty"`
	Access        string `json:"access,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	RemainingSecs int64  `json:"remaining_secs"`
	Warning       bool   `json:"warning"`
}

// LogoutData is returned by logout.
type LogoutData struct {
	WasSignedIn  bool `json:"was_signed_in"`
	ServerLogout bool `json:"server_logout"`
}

// ExtendData is returned by extend.
type ExtendData struct {
	Acknowledged  bool  `json:"acknowledged"`
	RemainingSecs int64 `json:"remaining_secs"`
}

// HistoryData is returned by history.
type HistoryData struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
}

// ConfigData is returned by config get/set/path.
type ConfigData struct {
	Key   string      `json:"key,omitempty"`
	Value interface{} `json:"value,omitempty"`
	Path  string      `json:"path,omitempty"`
}

// VersionData is returned by version.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}
