// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/lendgate-tui/internal/api"
	"github.com/jeranaias/lendgate-tui/internal/logging"
)

// Authenticator is the subset of the API client the session core needs.
type Authenticator interface {
	Me(ctx context.Context) (*api.MeResponse, error)
	ExtendSession(ctx context.Context) error
}

// Validation is the outcome of asking the server about the session.
type Validation struct {
	Valid   bool
	Session *api.ServerSessionInfo
	User    *api.User
	// Reason says why the session is invalid. Empty when valid.
	Reason string
}

// Validator wraps the auth endpoints so that failures degrade to
// "invalid" or "zero remaining" instead of surfacing as errors.
type Validator struct {
	client Authenticator
	now    func() time.Time
	logger *zap.Logger
}

// NewValidator creates a validator over client.
func NewValidator(client Authenticator) *Validator {
	return &Validator{
		client: client,
		now:    time.Now,
		logger: zap.NewNop(),
	}
}

// WithClock overrides the clock used to compute remaining time.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	if now != nil {
		v.now = now
	}
	return v
}

// WithLogger sets the structured logger.
func (v *Validator) WithLogger(l *zap.Logger) *Validator {
	v.logger = logging.OrNop(l)
	return v
}

// Now returns the validator's current time.
func (v *Validator) Now() time.Time {
	return v.now()
}

// ValidateWithServer asks GET /api/auth/me whether the session is still valid.
// Transport errors, non-2xx statuses and an expiresAt already in the past all
// yield Valid == false. It never returns an error.
func (v *Validator) ValidateWithServer(ctx context.Context) Validation {
	me, err := v.client.Me(ctx)
	if err != nil {
		v.logger.Debug("session validation failed",
			zap.Int("status", api.StatusCode(err)),
			zap.Error(err),
		)
		return Validation{Reason: err.Error()}
	}

	res := Validation{Valid: true, Session: me.Session, User: &me.User}
	if me.Session != nil && !me.Session.ExpiresAt.IsZero() && !me.Session.ExpiresAt.After(v.now()) {
		res.Valid = false
		res.Reason = "session expired"
	}
	return res
}

// RemainingSessionTime returns expiresAt minus now from a fresh validation.
// It returns 0 when the session is invalid, the server omits the session
// record, or the request fails.
func (v *Validator) RemainingSessionTime(ctx context.Context) time.Duration {
	return v.Remaining(v.ValidateWithServer(ctx))
}

// Remaining computes the remaining time for an existing validation result.
func (v *Validator) Remaining(res Validation) time.Duration {
	if !res.Valid || res.Session == nil {
		return 0
	}
	return res.Session.Remaining(v.now())
}

// ExtendSession asks the server to extend the session and reports whether it
// acknowledged. No local expiry state changes; the next poll observes the result.
func (v *Validator) ExtendSession(ctx context.Context) bool {
	if err := v.client.ExtendSession(ctx); err != nil {
		v.logger.Debug("session extend failed", zap.Error(err))
		return false
	}
	return true
}
