// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lendgate-tui/internal/api"
	"github.com/jeranaias/lendgate-tui/internal/audit"
	"github.com/jeranaias/lendgate-tui/internal/credentials"
	"github.com/jeranaias/lendgate-tui/internal/session"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeAPI implements AuthClient and session.Authenticator.
type fakeAPI struct {
	mu        sync.Mutex
	user      api.User
	expiresAt time.Time
	meErr     error
	loginErr  error
	block     chan struct{}

	meCalls atomic.Int32
	extends atomic.Int32
	logouts atomic.Int32
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (*api.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &api.LoginResponse{
		Token:        "tok-" + f.user.ID,
		User:         f.user,
		Organization: &api.Organization{ID: "org-1", Name: "Acme Lending"},
	}, nil
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.logouts.Add(1)
	return nil
}

func (f *fakeAPI) Me(ctx context.Context) (*api.MeResponse, error) {
	f.meCalls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &api.MeResponse{
		User:    f.user,
		Session: &api.ServerSessionInfo{ID: "s-1", ExpiresAt: api.Timestamp{Time: f.expiresAt}},
	}, nil
}

func (f *fakeAPI) ExtendSession(ctx context.Context) error {
	f.extends.Add(1)
	return nil
}

func (f *fakeAPI) fail(err error) {
	f.mu.Lock()
	f.meErr = err
	f.mu.Unlock()
}

// recorder collects audit events.
type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Record(e audit.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recorder) count(t audit.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	api   *fakeAPI
	store *credentials.Store
	rec   *recorder
	guard *Guard
}

func newFixture(t *testing.T, role string) *fixture {
	t.Helper()
	return newFixtureWithStore(t, role, credentials.NewStore(credentials.NewMemoryBackend()))
}

func newFixtureWithStore(t *testing.T, role string, store *credentials.Store) *fixture {
	t.Helper()
	return newFixtureWith(t, role, store, 0)
}

// newFixtureWith builds a guard whose extender sends at most one extend call
// per extendMin of routine activity.
func newFixtureWith(t *testing.T, role string, store *credentials.Store, extendMin time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		api: &fakeAPI{
			user:      api.User{ID: "u-1", Email: "ops@example.com", FirstName: "Ada", Role: role},
			expiresAt: fixedNow.Add(time.Hour),
		},
		store: store,
		rec:   &recorder{},
	}
	validator := session.NewValidator(f.api).WithClock(func() time.Time { return fixedNow })
	f.guard = New(Config{
		App:          "admin",
		AllowedRoles: []string{"super_admin", "platform_admin"},
		Store:        f.store,
		Client:       f.api,
		Validator:    validator,
		Monitor:      session.MonitorConfig{Interval: time.Hour, WarningThreshold: 5 * time.Minute},
		Recorder:     f.rec,

		ExtendMinInterval: extendMin,
	})
	t.Cleanup(f.guard.Unmount)
	return f
}

// signIn stores credentials directly and mounts.
func (f *fixture) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Save("tok", f.api.user))
	require.Equal(t, StateGranted, f.guard.Mount(context.Background()))
}

func (f *fixture) assertReleased(t *testing.T) {
	t.Helper()
	assert.False(t, f.guard.Monitor().Running(), "monitor stopped")
	assert.Equal(t, 0, f.guard.Bus().Subscribers(), "extender detached")
}

// =============================================================================
// MOUNT
// =============================================================================

func TestGuard_MountWithoutCredentials(t *testing.T) {
	f := newFixture(t, "super_admin")

	require.Equal(t, StateUnauthenticated, f.guard.Mount(context.Background()))
	require.Equal(t, int32(0), f.api.meCalls.Load(), "no server call without local credentials")
	f.assertReleased(t)
}

func TestGuard_MountWithRejectedSessionClearsCredentials(t *testing.T) {
	f := newFixture(t, "super_admin")
	require.NoError(t, f.store.Save("tok", f.api.user))
	f.api.fail(api.ErrUnauthorized)

	require.Equal(t, StateUnauthenticated, f.guard.Mount(context.Background()))
	require.False(t, f.store.IsAuthenticated())
	require.NotEmpty(t, f.guard.Snapshot().Notice)
	f.assertReleased(t)
}

func TestGuard_MountWithExpiredSessionClearsCredentials(t *testing.T) {
	f := newFixture(t, "super_admin")
	require.NoError(t, f.store.Save("tok", f.api.user))
	f.api.expiresAt = fixedNow.Add(-time.Second)

	require.Equal(t, StateUnauthenticated, f.guard.Mount(context.Background()))
	require.False(t, f.store.IsAuthenticated())
}

func TestGuard_MountGrantedStartsMonitorAndExtender(t *testing.T) {
	f := newFixture(t, "platform_admin")
	f.signIn(t)

	require.True(t, f.guard.Monitor().Running())
	require.Equal(t, 1, f.guard.Monitor().ActiveLoops())
	require.Equal(t, 1, f.guard.Bus().Subscribers())
	require.Equal(t, 1, f.rec.count(audit.EventSessionValidated))

	// Remounting does not leak a second loop or subscription.
	require.Equal(t, StateGranted, f.guard.Mount(context.Background()))
	require.Equal(t, 1, f.guard.Monitor().ActiveLoops())
	require.Equal(t, 1, f.guard.Bus().Subscribers())
}

func TestGuard_AccessDenied(t *testing.T) {
	f := newFixture(t, "broker")
	require.NoError(t, f.store.Save("tok", f.api.user))

	require.Equal(t, StateAccessDenied, f.guard.Mount(context.Background()))
	require.Contains(t, f.guard.Snapshot().Notice, "broker")
	require.Equal(t, 1, f.rec.count(audit.EventAccessDenied))
	f.assertReleased(t)

	// Logout is available from the denied screen.
	f.guard.Logout(context.Background())
	require.Equal(t, StateUnauthenticated, f.guard.State())
	require.Equal(t, int32(1), f.api.logouts.Load())
	require.False(t, f.store.IsAuthenticated())
}

func TestGuard_RoleCheckIsCaseInsensitive(t *testing.T) {
	f := newFixture(t, "Super_Admin")
	f.signIn(t)
}

func TestGuard_StaleMountDiscarded(t *testing.T) {
	f := newFixture(t, "super_admin")
	require.NoError(t, f.store.Save("tok", f.api.user))
	f.api.block = make(chan struct{})

	result := make(chan State, 1)
	go func() { result <- f.guard.Mount(context.Background()) }()

	require.Eventually(t, func() bool { return f.api.meCalls.Load() == 1 }, time.Second, time.Millisecond)
	f.guard.Unmount()
	close(f.api.block)

	require.NotEqual(t, StateGranted, <-result)
	require.Equal(t, StateLoading, f.guard.State())
	f.assertReleased(t)
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

func TestGuard_LoginScenario(t *testing.T) {
	f := newFixture(t, "super_admin")
	require.Equal(t, StateUnauthenticated, f.guard.Mount(context.Background()))

	var seen []State
	var mu sync.Mutex
	unsubscribe := f.guard.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.State)
		mu.Unlock()
	})
	defer unsubscribe()

	state, err := f.guard.Login(context.Background(), " ops@example.com ", "hunter2")
	require.NoError(t, err)
	require.Equal(t, StateGranted, state)

	token, ok := f.store.GetToken()
	require.True(t, ok)
	require.Equal(t, "tok-u-1", token)

	snap := f.guard.Snapshot()
	require.NotNil(t, snap.User)
	require.Equal(t, "u-1", snap.User.ID)
	require.NotNil(t, snap.Organization)
	require.Equal(t, "Acme Lending", snap.Organization.Name)
	require.True(t, f.guard.Monitor().Running())
	require.Equal(t, 1, f.rec.count(audit.EventLogin))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, StateGranted, seen[len(seen)-1])
	require.Contains(t, seen, StateAuthenticated)
}

func TestGuard_LoginRejected(t *testing.T) {
	f := newFixture(t, "super_admin")
	f.guard.Mount(context.Background())
	f.api.loginErr = api.ErrUnauthorized

	state, err := f.guard.Login(context.Background(), "ops@example.com", "wrong")
	require.ErrorIs(t, err, api.ErrUnauthorized)
	require.Equal(t, StateUnauthenticated, state)
	require.Equal(t, "Invalid email or password.", f.guard.Snapshot().Notice)
	require.False(t, f.store.IsAuthenticated())
	require.Equal(t, 1, f.rec.count(audit.EventLoginFailed))
}

func TestGuard_LoginPreconditions(t *testing.T) {
	f := newFixture(t, "super_admin")
	f.guard.Mount(context.Background())

	_, err := f.guard.Login(context.Background(), "", "pw")
	require.ErrorIs(t, err, ErrMissingFields)

	f.signIn(t)
	_, err = f.guard.Login(context.Background(), "ops@example.com", "pw")
	require.ErrorIs(t, err, ErrAlreadySignedIn)
}

func TestGuard_Logout(t *testing.T) {
	f := newFixture(t, "super_admin")
	f.signIn(t)

	f.guard.Logout(context.Background())
	require.Equal(t, StateUnauthenticated, f.guard.State())
	require.False(t, f.store.IsAuthenticated())
	require.Equal(t, 1, f.rec.count(audit.EventLogout))
	f.assertReleased(t)

	// A second logout is a local no-op.
	f.guard.Logout(context.Background())
	require.Equal(t, 1, f.rec.count(audit.EventLogout))
}

// =============================================================================
// EXPIRY / WARNING
// =============================================================================

func TestGuard_ExpiredSessionScenario(t *testing.T) {
	f := newFixture(t, "super_admin")
	f.signIn(t)

	f.api.fail(api.ErrUnauthorized)
	require.Equal(t, session.OutcomeExpired, f.guard.Monitor().Check(context.Background()))

	require.Equal(t, StateUnauthenticated, f.guard.State())
	require.Contains(t, f.guard.Snapshot().Notice, "expired")
	require.False(t, f.store.IsAuthenticated())
	require.Equal(t, 1, f.rec.count(audit.EventSessionExpired))
	f.assertReleased(t)
	require.Eventually(t, func() bool { return f.guard.Monitor().ActiveLoops() == 0 }, time.Second, 5*time.Millisecond)
}

func TestGuard_MonitorWarningEntersWarningState(t *testing.T) {
	f := newFixture(t, "super_admin")
	f.signIn(t)

	f.api.mu.Lock()
	f.api.expiresAt = fixedNow.Add(4*time.Minute + 30*time.Second)
	f.api.mu.Unlock()

	require.Equal(t, session.OutcomeWarning, f.guard.Monitor().Check(context.Background()))
	snap := f.guard.Snapshot()
	require.Equal(t, StateWarning, snap.State)
	require.Equal(t, 4*time.Minute+30*time.Second, snap.Remaining)
	require.Equal(t, 1, f.rec.count(audit.EventSessionWarning))
}

func TestGuard_ActivityDuringWarningExtends(t *testing.T) {
	f := newFixture(t, "super_admin")
	f.signIn(t)

	f.guard.HandleWarning(4 * time.Minute)
	require.Equal(t, StateWarning, f.guard.State())

	f.guard.Bus().Publish(session.Activity{Kind: session.ActivityPointer})
	require.Equal(t, StateGranted, f.guard.State(), "warning dismissed synchronously")

	f.guard.Extender().Wait()
	require.Equal(t, int32(1), f.api.extends.Load())
	require.True(t, f.store.IsAuthenticated(), "no logout")
	require.Equal(t, 0, f.rec.count(audit.EventSessionExpired))
	require.Equal(t, 1, f.rec.count(audit.EventSessionExtended))
}

func TestGuard_ActivityDuringWarningExtendsWhenThrottled(t *testing.T) {
	f := newFixtureWith(t, "super_admin", credentials.NewStore(credentials.NewMemoryBackend()), 30*time.Second)
	f.signIn(t)

	f.guard.Bus().Publish(session.Activity{Kind: session.ActivityKey})
	f.guard.Bus().Publish(session.Activity{Kind: session.ActivityKey})
	f.guard.Extender().Wait()
	require.Equal(t, int32(1), f.api.extends.Load(), "routine activity is throttled")

	f.guard.HandleWarning(4 * time.Minute)
	f.guard.Bus().Publish(session.Activity{Kind: session.ActivityPointer})
	require.Equal(t, StateGranted, f.guard.State())

	f.guard.Extender().Wait()
	require.Equal(t, int32(2), f.api.extends.Load(), "dismissing the warning always extends")
}

func TestGuard_ContinueExtends(t *testing.T) {
	f := newFixture(t, "super_admin")
	f.signIn(t)

	require.False(t, f.guard.Continue(context.Background()), "nothing to continue outside Warning")

	f.guard.HandleWarning(time.Minute)
	require.True(t, f.guard.Continue(context.Background()))
	require.Equal(t, StateGranted, f.guard.State())
	require.Equal(t, int32(1), f.api.extends.Load())
}

func TestGuard_CountdownLogsOutExactlyOnce(t *testing.T) {
	f := newFixture(t, "super_admin")
	f.signIn(t)

	f.guard.HandleWarning(1000 * time.Millisecond)
	require.Equal(t, time.Second, f.guard.Snapshot().Remaining)

	require.False(t, f.guard.Tick())
	require.Equal(t, StateUnauthenticated, f.guard.State())
	require.False(t, f.guard.Tick())
	f.guard.Expire("again")

	require.Equal(t, 1, f.rec.count(audit.EventSessionExpired))
	require.False(t, f.store.IsAuthenticated())
	require.Equal(t, int32(0), f.api.logouts.Load(), "countdown never contacts the server")
	f.assertReleased(t)
}

func TestGuard_TickCountsDown(t *testing.T) {
	f := newFixture(t, "super_admin")
	f.signIn(t)

	require.False(t, f.guard.Tick(), "no countdown outside Warning")

	f.guard.HandleWarning(3 * time.Second)
	require.True(t, f.guard.Tick())
	require.True(t, f.guard.Tick())
	require.Equal(t, time.Second, f.guard.Snapshot().Remaining)
	require.False(t, f.guard.Tick())
	require.Equal(t, StateUnauthenticated, f.guard.State())
}

// =============================================================================
// CROSS-PROCESS
// =============================================================================

func TestGuard_StorageChangedCollapses(t *testing.T) {
	backend := credentials.NewMemoryBackend()
	f := newFixtureWithStore(t, "super_admin", credentials.NewStore(backend))
	f.signIn(t)

	// Still signed in: nothing happens.
	f.guard.StorageChanged()
	require.Equal(t, StateGranted, f.guard.State())

	other := credentials.NewStore(backend)
	require.NoError(t, other.RemoveToken())

	f.guard.StorageChanged()
	require.Equal(t, StateUnauthenticated, f.guard.State())
	require.Equal(t, 1, f.rec.count(audit.EventCrossProcessLogout))
	require.Equal(t, int32(1), f.api.meCalls.Load(), "no re-authentication")
	f.assertReleased(t)
}

func TestGuard_WatcherDrivesCrossProcessLogout(t *testing.T) {
	dir := t.TempDir()
	f := newFixtureWithStore(t, "super_admin", credentials.NewStore(credentials.NewFileBackend(dir)))
	f.signIn(t)

	w, err := credentials.NewWatcher(dir, 10*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-w.Events():
				f.guard.StorageChanged()
			case <-done:
				return
			}
		}
	}()

	other := credentials.NewStore(credentials.NewFileBackend(dir))
	require.NoError(t, other.RemoveToken())

	require.Eventually(t, func() bool {
		return f.guard.State() == StateUnauthenticated
	}, 2*time.Second, 10*time.Millisecond)
}

// =============================================================================
// TEARDOWN
// =============================================================================

func TestGuard_UnmountReleases(t *testing.T) {
	f := newFixture(t, "super_admin")
	f.signIn(t)

	f.guard.Unmount()
	f.guard.Unmount()
	f.assertReleased(t)
}

// =============================================================================
// COUNTDOWN
// =============================================================================

func TestCountdown(t *testing.T) {
	var c Countdown
	require.False(t, c.Tick(), "unarmed")

	c.Seed(1500 * time.Millisecond)
	require.True(t, c.Armed())
	require.Equal(t, 2*time.Second, c.Remaining())
	require.False(t, c.Tick())
	require.True(t, c.Tick())
	require.False(t, c.Tick())
	require.Equal(t, time.Duration(0), c.Remaining())

	c.Seed(-time.Second)
	require.True(t, c.Tick(), "non-positive seed expires on the next tick")
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Minute, "5:00"},
		{4*time.Minute + 59*time.Second, "4:59"},
		{61 * time.Second, "1:01"},
		{500 * time.Millisecond, "0:01"},
		{0, "0:00"},
		{-time.Second, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRemaining(tt.in), tt.in.String())
	}
}

func TestState_String(t *testing.T) {
	require.Equal(t, "ACCESS_DENIED", StateAccessDenied.String())
	require.Equal(t, "UNKNOWN", State(42).String())
}
