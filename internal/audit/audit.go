// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit records session lifecycle events to a local SQLite database.
//
// Every event is also written to the structured log, so the trail survives
// even when the database is disabled or unavailable.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/jeranaias/lendgate-tui/internal/logging"
)

// EventType names a session lifecycle event.
type EventType string

// Session event types.
const (
	EventLogin              EventType = "LOGIN"
	EventLoginFailed        EventType = "LOGIN_FAILED"
	EventLogout             EventType = "LOGOUT"
	EventSessionValidated   EventType = "SESSION_VALIDATED"
	EventSessionWarning     EventType = "SESSION_WARNING"
	EventSessionExtended    EventType = "SESSION_EXTENDED"
	EventSessionExpired     EventType = "SESSION_EXPIRED"
	EventAccessDenied       EventType = "ACCESS_DENIED"
	EventCrossProcessLogout EventType = "CROSS_PROCESS_LOGOUT"
)

// Event is one audit record.
type Event struct {
	ID      int64             `json:"id"`
	Time    time.Time         `json:"time"`
	Type    EventType         `json:"type"`
	App     string            `json:"app,omitempty"`
	UserID  string            `json:"user_id,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Recorder accepts audit events.
type Recorder interface {
	Record(e Event) error
}

// =============================================================================
// SQLITE STORE
// =============================================================================

// Store is a Recorder backed by SQLite.
type Store struct {
	db     *sql.DB
	app    string
	logger *zap.Logger
	now    func() time.Time
	mu     sync.Mutex
	closed bool
}

// Open opens (creating if needed) the audit database at path.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(SchemaVersion),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to write schema version: %w", err)
	}

	return &Store{db: db, logger: zap.NewNop(), now: time.Now}, nil
}

// WithLogger sets the structured logger events are mirrored to.
func (s *Store) WithLogger(l *zap.Logger) *Store {
	s.logger = logging.OrNop(l)
	return s
}

// WithApp stamps every recorded event with app when the event has none.
func (s *Store) WithApp(app string) *Store {
	s.app = app
	return s
}

// Record writes e. Time defaults to now.
func (s *Store) Record(e Event) error {
	if e.Time.IsZero() {
		e.Time = s.now()
	}
	if e.App == "" {
		e.App = s.app
	}

	logEvent(s.logger, e)

	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("failed to encode details: %w", err)
	}
	if e.Details == nil {
		details = []byte("{}")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("audit store closed")
	}

	_, err = s.db.Exec(
		`INSERT INTO events (ts, type, app, user_id, details) VALUES (?, ?, ?, ?, ?)`,
		e.Time.UnixMilli(), string(e.Type), e.App, e.UserID, string(details),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", e.Type, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("audit store closed")
	}

	rows, err := s.db.Query(
		`SELECT id, ts, type, app, user_id, details FROM events ORDER BY ts DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			ts      int64
			typ     string
			details string
		)
		if err := rows.Scan(&e.ID, &ts, &typ, &e.App, &e.UserID, &details); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Time = time.UnixMilli(ts)
		e.Type = EventType(typ)
		if details != "" && details != "{}" && details != "null" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode details for event %d: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// =============================================================================
// LOG-ONLY RECORDER
// =============================================================================

// LogRecorder writes events to the structured log only.
type LogRecorder struct {
	Logger *zap.Logger
}

// Record logs e.
func (r LogRecorder) Record(e Event) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	logEvent(logging.OrNop(r.Logger), e)
	return nil
}

func logEvent(l *zap.Logger, e Event) {
	fields := []zap.Field{
		zap.String("event", string(e.Type)),
		zap.Time("at", e.Time),
	}
	if e.App != "" {
		fields = append(fields, zap.String("app", e.App))
	}
	if e.UserID != "" {
		fields = append(fields, zap.String("user_id", e.UserID))
	}
	for k, v := range e.Details {
		fields = append(fields, zap.String(k, v))
	}
	l.Info("audit", fields...)
}
