// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PLATFORM TYPES
// =============================================================================

// User is the snapshot of the signed-in user returned at login.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id"`
}

// DisplayName returns "First Last", falling back to the email address.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Organization is the tenant the user belongs to.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ServerSessionInfo is the server's authoritative view of the session.
type ServerSessionInfo struct {
	ID           string    `json:"id"`
	ExpiresAt    Timestamp `json:"expiresAt"`
	LastActivity Timestamp `json:"lastActivity"`
}

// Remaining returns ExpiresAt - now, clamped at zero.
func (s ServerSessionInfo) Remaining(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// =============================================================================
// REQUEST / RESPONSE BODIES
// =============================================================================

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body returned by POST /api/auth/login.
type LoginResponse struct {
	User         User          `json:"user"`
	Token        string        `json:"token"`
	Organization *Organization `json:"organization,omitempty"`
}

// MeResponse is the body returned by GET /api/auth/me.
type MeResponse struct {
	User    User               `json:"user"`
	Session *ServerSessionInfo `json:"session,omitempty"`
}

// errorBody covers the error shapes the platform API returns.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// =============================================================================
// TIMESTAMP
// =============================================================================

// Timestamp decodes either an RFC 3339 string or a Unix epoch in milliseconds.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid epoch timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(ms)
	return nil
}

// MarshalJSON implements json.Marshaler using RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
