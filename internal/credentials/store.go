// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credentials persists the bearer token and user snapshot.
//
// The Store is the only writer of the two credential keys. Other components
// read through it and clear credentials only via RemoveToken, which first runs
// the registered removal hooks (the session monitor uses one to cancel its
// timers) and only then deletes the stored values.
package credentials

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/lendgate-tui/internal/api"
	"github.com/jeranaias/lendgate-tui/internal/logging"
	"github.com/jeranaias/lendgate-tui/internal/util"
)

// Storage keys.
const (
	KeyToken = "auth_token"
	KeyUser  = "auth_user"
)

// Store owns the persisted credential pair {token, user}.
type Store struct {
	backend Backend
	logger  *zap.Logger

	mu     sync.Mutex
	hooks  map[int]func()
	nextID int
}

// NewStore creates a credential store over backend.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		logger:  zap.NewNop(),
		hooks:   make(map[int]func()),
	}
}

// WithLogger sets the structured logger.
func (s *Store) WithLogger(l *zap.Logger) *Store {
	s.logger = logging.OrNop(l)
	return s
}

// GetToken returns the stored bearer token.
func (s *Store) GetToken() (string, bool) {
	data, ok, err := s.backend.Get(KeyToken)
	if err != nil {
		s.logger.Warn("credential read failed", zap.String("key", KeyToken), zap.Error(err))
		return "", false
	}
	token := strings.TrimSpace(string(data))
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// SetToken stores the bearer token.
func (s *Store) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if err := s.backend.Set(KeyToken, []byte(token)); err != nil {
		return err
	}
	s.logger.Debug("token stored", zap.String("token_fp", util.Fingerprint(token)))
	return nil
}

// GetUser returns the stored user snapshot. A corrupt record reads as absent.
func (s *Store) GetUser() (*api.User, bool) {
	data, ok, err := s.backend.Get(KeyUser)
	if err != nil {
		s.logger.Warn("credential read failed", zap.String("key", KeyUser), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var user api.User
	if err := json.Unmarshal(data, &user); err != nil {
		s.logger.Warn("stored user is corrupt", zap.Error(err))
		return nil, false
	}
	return &user, true
}

// SetUser stores the user snapshot as JSON.
func (s *Store) SetUser(user api.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return s.backend.Set(KeyUser, data)
}

// Save stores user then token, so a reader that sees the token also sees the user.
func (s *Store) Save(token string, user api.User) error {
	if err := s.SetUser(user); err != nil {
		return err
	}
	return s.SetToken(token)
}

// IsAuthenticated reports whether both token and user are present locally.
// It does not contact the server.
func (s *Store) IsAuthenticated() bool {
	if _, ok := s.GetToken(); !ok {
		return false
	}
	_, ok := s.GetUser()
	return ok
}

// OnRemove registers fn to run at the start of every RemoveToken call,
// before anything is deleted. The returned func unregisters it.
func (s *Store) OnRemove(fn func()) (unregister func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.hooks[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.hooks, id)
			s.mu.Unlock()
		})
	}
}

// RemoveToken runs the removal hooks, then deletes the token and the user.
// Both deletes are attempted even if the first fails.
func (s *Store) RemoveToken() error {
	s.mu.Lock()
	ids := make([]int, 0, len(s.hooks))
	for id := range s.hooks {
		ids = append(ids, id)
	}
	hooks := make([]func(), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		hooks = append(hooks, s.hooks[id])
	}
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}

	tokenErr := s.backend.Delete(KeyToken)
	userErr := s.backend.Delete(KeyUser)
	if tokenErr != nil {
		return tokenErr
	}
	if userErr != nil {
		return userErr
	}
	s.logger.Debug("credentials cleared")
	return nil
}
