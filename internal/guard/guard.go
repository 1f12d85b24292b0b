// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package guard gates an admin console behind a valid, role-checked session.
//
// The Guard is a state machine:
//
//	Loading -> Unauthenticated | Authenticated
//	Authenticated -> AccessDenied | Granted
//	Granted <-> Warning
//	Granted | Warning -> Unauthenticated (expiry, logout, or removal elsewhere)
//
// Entering Granted starts the session monitor and attaches the activity
// extender; every path out of Granted/Warning releases both. A forced logout
// resets the machine to Loading and remounts it, which lands in
// Unauthenticated because the credentials are gone.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/lendgate-tui/internal/api"
	"github.com/jeranaias/lendgate-tui/internal/audit"
	"github.com/jeranaias/lendgate-tui/internal/credentials"
	"github.com/jeranaias/lendgate-tui/internal/logging"
	"github.com/jeranaias/lendgate-tui/internal/session"
)

// =============================================================================
// STATE
// =============================================================================

// State is a Guard state.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
	StateAccessDenied
	StateGranted
	StateWarning
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateAccessDenied:
		return "ACCESS_DENIED"
	case StateGranted:
		return "GRANTED"
	case StateWarning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// signedIn reports whether s holds a session the guard must tear down on logout.
func (s State) signedIn() bool {
	switch s {
	case StateAuthenticated, StateAccessDenied, StateGranted, StateWarning:
		return true
	}
	return false
}

// Snapshot is an immutable view of the guard for rendering.
type Snapshot struct {
	State        State
	User         *api.User
	Organization *api.Organization
	// Remaining is the countdown value while in StateWarning.
	Remaining time.Duration
	// Notice explains the last transition to Unauthenticated or AccessDenied.
	Notice string
}

// Errors returned by Login.
var (
	ErrAlreadySignedIn = errors.New("already signed in")
	ErrMissingFields   = errors.New("email and password are required")
	ErrSuperseded      = errors.New("login superseded")
)

// AuthClient is the subset of the API client the guard calls directly.
type AuthClient interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Logout(ctx context.Context) error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config wires the guard to the rest of the session core.
type Config struct {
	App          string
	AllowedRoles []string

	Store     *credentials.Store
	Client    AuthClient
	Validator *session.Validator
	Bus       *session.ActivityBus

	Monitor           session.MonitorConfig
	ExtendMinInterval time.Duration

	Recorder audit.Recorder
	Logger   *zap.Logger
}

// =============================================================================
// GUARD
// =============================================================================

// Guard is the route guard state machine for one console.
type Guard struct {
	app       string
	roles     map[string]bool
	store     *credentials.Store
	client    AuthClient
	validator *session.Validator
	bus       *session.ActivityBus
	monitor   *session.Monitor
	extender  *session.Extender
	recorder  audit.Recorder
	logger    *zap.Logger

	mu        sync.Mutex
	gen       uint64
	state     State
	user      *api.User
	org       *api.Organization
	notice    string
	countdown Countdown
	detach    func()
	unhook    func()

	listenMu  sync.Mutex
	listeners map[int]func(Snapshot)
	nextID    int
}

// New creates a guard in StateLoading. Call Mount to evaluate it.
func New(cfg Config) *Guard {
	g := &Guard{
		app:       cfg.App,
		roles:     make(map[string]bool),
		store:     cfg.Store,
		client:    cfg.Client,
		validator: cfg.Validator,
		bus:       cfg.Bus,
		recorder:  cfg.Recorder,
		logger:    logging.OrNop(cfg.Logger),
		state:     StateLoading,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, r := range cfg.AllowedRoles {
		g.roles[strings.ToLower(strings.TrimSpace(r))] = true
	}
	if g.bus == nil {
		g.bus = session.NewActivityBus()
	}
	if g.recorder == nil {
		g.recorder = audit.LogRecorder{Logger: g.logger}
	}

	monCfg := cfg.Monitor
	monCfg.DefaultExpired = func() { g.Expire("session expired") }
	g.monitor = session.NewMonitor(g.validator, monCfg).WithLogger(g.logger)

	g.extender = session.NewExtender(g.validator, cfg.ExtendMinInterval).
		WithLogger(g.logger).
		OnActivity(func(session.Activity) bool { return g.continueSession() }).
		OnExtended(func(ok bool) {
			if ok {
				g.record(audit.EventSessionExtended, g.userID(), nil)
			}
		})

	// Timers stop before credentials are deleted, whoever deletes them.
	g.unhook = g.store.OnRemove(g.monitor.Stop)
	return g
}

// Bus returns the activity bus the guard's extender listens on.
func (g *Guard) Bus() *session.ActivityBus {
	return g.bus
}

// Monitor returns the guard's session monitor.
func (g *Guard) Monitor() *session.Monitor {
	return g.monitor
}

// Extender returns the guard's activity extender.
func (g *Guard) Extender() *session.Extender {
	return g.extender
}

// Snapshot returns the current state.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Subscribe registers fn for every state change. fn runs outside the guard's
// lock and may call back into the guard.
func (g *Guard) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	g.listenMu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.listenMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.listenMu.Lock()
			delete(g.listeners, id)
			g.listenMu.Unlock()
		})
	}
}

func (g *Guard) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:  g.state,
		Notice: g.notice,
	}
	if g.user != nil {
		u := *g.user
		snap.User = &u
	}
	if g.org != nil {
		o := *g.org
		snap.Organization = &o
	}
	if g.state == StateWarning {
		snap.Remaining = g.countdown.Remaining()
	}
	return snap
}

func (g *Guard) notify(snap Snapshot) {
	g.listenMu.Lock()
	fns := make([]func(Snapshot), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.listenMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// setLocked changes state and returns the snapshot to publish after unlocking.
func (g *Guard) setLocked(s State) Snapshot {
	if g.state != s {
		g.logger.Debug("guard transition",
			zap.String("from", g.state.String()),
			zap.String("to", s.String()),
		)
	}
	g.state = s
	return g.snapshotLocked()
}

func (g *Guard) userID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.user == nil {
		return ""
	}
	return g.user.ID
}

func (g *Guard) record(t audit.EventType, userID string, details map[string]string) {
	err := g.recorder.Record(audit.Event{Type: t, App: g.app, UserID: userID, Details: details})
	if err != nil {
		g.logger.Warn("audit record failed", zap.String("event", string(t)), zap.Error(err))
	}
}

// =============================================================================
// MOUNT
// =============================================================================

// Mount evaluates the guard from StateLoading. A result that arrives after a
// newer Mount, Login, logout or Unmount is discarded.
func (g *Guard) Mount(ctx context.Context) State {
	g.mu.Lock()
	g.gen++
	gen := g.gen
	detach := g.detach
	g.detach = nil
	snap := g.setLocked(StateLoading)
	g.mu.Unlock()

	g.monitor.Stop()
	if detach != nil {
		detach()
	}
	g.notify(snap)

	if !g.store.IsAuthenticated() {
		return g.finishUnauthenticated(gen, "")
	}

	res := g.validator.ValidateWithServer(ctx)

	g.mu.Lock()
	if gen != g.gen {
		state := g.state
		g.mu.Unlock()
		g.logger.Debug("stale mount result discarded")
		return state
	}
	g.mu.Unlock()

	if !res.Valid {
		// Clear before publishing Unauthenticated so listeners see a consistent store.
		if err := g.store.RemoveToken(); err != nil {
			g.logger.Warn("failed to clear credentials", zap.Error(err))
		}
		return g.finishUnauthenticated(gen, "Your session is no longer valid. Please sign in again.")
	}

	user := res.User
	if user == nil || user.ID == "" {
		stored, ok := g.store.GetUser()
		if !ok {
			if err := g.store.RemoveToken(); err != nil {
				g.logger.Warn("failed to clear credentials", zap.Error(err))
			}
			return g.finishUnauthenticated(gen, "Stored profile is unreadable. Please sign in again.")
		}
		user = stored
	}

	g.mu.Lock()
	if gen != g.gen {
		state := g.state
		g.mu.Unlock()
		return state
	}
	g.user = user
	g.notice = ""
	snap = g.setLocked(StateAuthenticated)
	g.mu.Unlock()
	g.notify(snap)

	g.record(audit.EventSessionValidated, user.ID, nil)
	return g.authorize(gen)
}

func (g *Guard) finishUnauthenticated(gen uint64, notice string) State {
	g.mu.Lock()
	if gen != g.gen {
		state := g.state
		g.mu.Unlock()
		return state
	}
	g.user = nil
	g.org = nil
	if notice != "" {
		g.notice = notice
	}
	snap := g.setLocked(StateUnauthenticated)
	g.mu.Unlock()
	g.notify(snap)
	return StateUnauthenticated
}

// Allowed reports whether role may enter this console. An empty role set
// admits everyone.
func (g *Guard) Allowed(role string) bool {
	if len(g.roles) == 0 {
		return true
	}
	return g.roles[strings.ToLower(strings.TrimSpace(role))]
}

// authorize runs the role check and enters AccessDenied or Granted.
func (g *Guard) authorize(gen uint64) State {
	g.mu.Lock()
	if gen != g.gen || g.state != StateAuthenticated {
		state := g.state
		g.mu.Unlock()
		return state
	}
	user := g.user

	if !g.Allowed(user.Role) {
		g.notice = fmt.Sprintf("Role %q cannot access %s.", user.Role, g.appLabel())
		snap := g.setLocked(StateAccessDenied)
		g.mu.Unlock()
		g.notify(snap)
		g.record(audit.EventAccessDenied, user.ID, map[string]string{"role": user.Role})
		return StateAccessDenied
	}

	if g.detach != nil {
		g.detach()
	}
	g.detach = g.extender.Attach(g.bus)
	snap := g.setLocked(StateGranted)
	g.mu.Unlock()

	g.monitor.Start(func() { g.Expire("session expired") }, g.HandleWarning)
	g.notify(snap)
	return StateGranted
}

func (g *Guard) appLabel() string {
	if g.app == "" {
		return "this console"
	}
	return "the " + g.app + " console"
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

// Login signs in from StateUnauthenticated, stores the credentials and remounts.
func (g *Guard) Login(ctx context.Context, email, password string) (State, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return g.State(), ErrMissingFields
	}

	g.mu.Lock()
	if g.state != StateUnauthenticated {
		state := g.state
		g.mu.Unlock()
		return state, ErrAlreadySignedIn
	}
	g.gen++
	gen := g.gen
	snap := g.setLocked(StateLoading)
	g.mu.Unlock()
	g.notify(snap)

	resp, err := g.client.Login(ctx, email, password)
	if err != nil {
		g.record(audit.EventLoginFailed, "", map[string]string{
			"email":  email,
			"status": fmt.Sprint(api.StatusCode(err)),
		})
		g.finishUnauthenticated(gen, loginNotice(err))
		return StateUnauthenticated, err
	}

	g.mu.Lock()
	stale := gen != g.gen
	g.mu.Unlock()
	if stale {
		return g.State(), ErrSuperseded
	}

	if err := g.store.Save(resp.Token, resp.User); err != nil {
		g.finishUnauthenticated(gen, "Could not save credentials.")
		return StateUnauthenticated, fmt.Errorf("failed to store credentials: %w", err)
	}
	g.record(audit.EventLogin, resp.User.ID, map[string]string{"role": resp.User.Role})

	g.mu.Lock()
	g.org = resp.Organization
	g.mu.Unlock()

	return g.Mount(ctx), nil
}

func loginNotice(err error) string {
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return "Invalid email or password."
	case errors.Is(err, api.ErrRateLimited):
		return "Too many attempts. Try again shortly."
	case api.StatusCode(err) != 0:
		return fmt.Sprintf("Sign-in failed (HTTP %d).", api.StatusCode(err))
	default:
		return "Could not reach the server."
	}
}

// Logout tells the server (best effort), then forces a local logout.
// It works from any signed-in state, including AccessDenied.
func (g *Guard) Logout(ctx context.Context) {
	if err := g.client.Logout(ctx); err != nil {
		g.logger.Debug("server logout failed", zap.Error(err))
	}
	g.forceLogout(audit.EventLogout, "You have been signed out.")
}

// Expire forces a logout because the session ended. It is a no-op unless the
// guard is signed in, so repeated calls log out once.
func (g *Guard) Expire(reason string) {
	if reason == "" {
		reason = "session expired"
	}
	g.forceLogout(audit.EventSessionExpired, "Your session has expired ("+reason+"). Please sign in again.")
}

// forceLogout stops timers, detaches listeners, clears credentials and
// remounts from Loading.
func (g *Guard) forceLogout(event audit.EventType, notice string) {
	g.mu.Lock()
	if !g.state.signedIn() {
		g.mu.Unlock()
		return
	}
	userID := ""
	if g.user != nil {
		userID = g.user.ID
	}
	g.gen++
	detach := g.detach
	g.detach = nil
	g.notice = notice
	snap := g.setLocked(StateLoading)
	g.mu.Unlock()
	g.notify(snap)

	g.monitor.Stop()
	if detach != nil {
		detach()
	}
	if err := g.store.RemoveToken(); err != nil {
		g.logger.Warn("failed to clear credentials", zap.Error(err))
	}
	g.record(event, userID, nil)

	g.Mount(context.Background())
}

// =============================================================================
// WARNING / COUNTDOWN
// =============================================================================

// HandleWarning enters (or refreshes) StateWarning with the server-reported
// remaining time. It is the monitor's onWarning callback.
func (g *Guard) HandleWarning(remaining time.Duration) {
	g.mu.Lock()
	if g.state != StateGranted && g.state != StateWarning {
		g.mu.Unlock()
		return
	}
	entering := g.state == StateGranted
	g.countdown.Seed(remaining)
	snap := g.setLocked(StateWarning)
	userID := ""
	if g.user != nil {
		userID = g.user.ID
	}
	g.mu.Unlock()
	g.notify(snap)

	if entering {
		g.record(audit.EventSessionWarning, userID, map[string]string{"remaining": remaining.Round(time.Second).String()})
	}
}

// Tick advances the warning countdown by one second. When it reaches zero
// the guard logs out. Tick never contacts the server. It reports whether the
// guard is still in StateWarning afterwards.
func (g *Guard) Tick() bool {
	g.mu.Lock()
	if g.state != StateWarning {
		g.mu.Unlock()
		return false
	}
	expired := g.countdown.Tick()
	snap := g.snapshotLocked()
	g.mu.Unlock()

	if expired {
		g.Expire("countdown elapsed")
		return false
	}
	g.notify(snap)
	return true
}

// Continue leaves StateWarning and asks the server to extend the session.
// It reports whether the server acknowledged the extension.
func (g *Guard) Continue(ctx context.Context) bool {
	if !g.continueSession() {
		return false
	}
	ok := g.validator.ExtendSession(ctx)
	if ok {
		g.record(audit.EventSessionExtended, g.userID(), map[string]string{"trigger": "continue"})
	}
	return ok
}

// continueSession moves Warning back to Granted.
func (g *Guard) continueSession() bool {
	g.mu.Lock()
	if g.state != StateWarning {
		g.mu.Unlock()
		return false
	}
	g.countdown.Reset()
	snap := g.setLocked(StateGranted)
	g.mu.Unlock()
	g.notify(snap)
	return true
}

// =============================================================================
// CROSS-PROCESS CONSISTENCY
// =============================================================================

// StorageChanged re-checks local credentials after another process touched
// them. If they are gone the guard collapses to Unauthenticated without
// trying to sign in again.
func (g *Guard) StorageChanged() {
	g.mu.Lock()
	if !g.state.signedIn() || g.store.IsAuthenticated() {
		g.mu.Unlock()
		return
	}
	userID := ""
	if g.user != nil {
		userID = g.user.ID
	}
	g.gen++
	detach := g.detach
	g.detach = nil
	g.user = nil
	g.org = nil
	g.notice = "You were signed out in another window."
	snap := g.setLocked(StateUnauthenticated)
	g.mu.Unlock()

	g.monitor.Stop()
	if detach != nil {
		detach()
	}
	g.record(audit.EventCrossProcessLogout, userID, nil)
	g.notify(snap)
}

// =============================================================================
// TEARDOWN
// =============================================================================

// Unmount releases the monitor, the extender and the store hook. In-flight
// Mount or Login results are discarded. Safe to call more than once.
func (g *Guard) Unmount() {
	g.mu.Lock()
	g.gen++
	detach := g.detach
	g.detach = nil
	unhook := g.unhook
	g.unhook = nil
	g.mu.Unlock()

	g.monitor.Stop()
	if detach != nil {
		detach()
	}
	if unhook != nil {
		unhook()
	}
}
