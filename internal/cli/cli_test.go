// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lendgate-tui/internal/api"
	"github.com/jeranaias/lendgate-tui/internal/config"
	"github.com/jeranaias/lendgate-tui/internal/guard"
)

// =============================================================================
// PARSE TESTS (cli.go)
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		wantCmd  Command
		validate func(*testing.T, Args)
	}{
		{
			name:    "no args opens the console",
			argv:    nil,
			wantCmd: CmdTUI,
		},
		{
			name:    "status alias with json",
			argv:    []string{"s", "--json"},
			wantCmd: CmdStatus,
			validate: func(t *testing.T, a Args) {
				if !a.JSON {
					t.Error("JSON should be true")
				}
			},
		},
		{
			name:    "login with app and email",
			argv:    []string{"--app", "broker", "login", "--email", "ops@example.com", "--password-stdin"},
			wantCmd: CmdLogin,
			validate: func(t *testing.T, a Args) {
				if a.App != "broker" {
					t.Errorf("App = %q, want broker", a.App)
				}
				if a.Email != "ops@example.com" {
					t.Errorf("Email = %q", a.Email)
				}
				if !a.PasswordStdin {
					t.Error("PasswordStdin should be true")
				}
			},
		},
		{
			name:    "login email as positional",
			argv:    []string{"login", "ops@example.com"},
			wantCmd: CmdLogin,
			validate: func(t *testing.T, a Args) {
				if a.Email != "ops@example.com" {
					t.Errorf("Email = %q", a.Email)
				}
			},
		},
		{
			name:    "history limit",
			argv:    []string{"history", "--limit", "5"},
			wantCmd: CmdHistory,
			validate: func(t *testing.T, a Args) {
				if a.Limit != 5 {
					t.Errorf("Limit = %d, want 5", a.Limit)
				}
			},
		},
		{
			name:    "history default limit",
			argv:    []string{"history"},
			wantCmd: CmdHistory,
			validate: func(t *testing.T, a Args) {
				if a.Limit != defaultHistoryLimit {
					t.Errorf("Limit = %d, want %d", a.Limit, defaultHistoryLimit)
				}
			},
		},
		{
			name:    "config set",
			argv:    []string{"config", "set", "api.base_url", "https://api.example.com"},
			wantCmd: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "set" || a.ConfigKey != "api.base_url" || a.ConfigVal != "https://api.example.com" {
					t.Errorf("got %q %q %q", a.Subcommand, a.ConfigKey, a.ConfigVal)
				}
			},
		},
		{
			name:    "app equals form",
			argv:    []string{"--app=tenant"},
			wantCmd: CmdTUI,
			validate: func(t *testing.T, a Args) {
				if a.App != "tenant" {
					t.Errorf("App = %q, want tenant", a.App)
				}
			},
		},
		{
			name:    "verbose version",
			argv:    []string{"-v", "version"},
			wantCmd: CmdVersion,
			validate: func(t *testing.T, a Args) {
				if !a.Verbose {
					t.Error("Verbose should be true")
				}
			},
		},
		{
			name:    "unknown command shows help",
			argv:    []string{"bogus"},
			wantCmd: CmdHelp,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "bogus" {
					t.Errorf("Subcommand = %q", a.Subcommand)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseArgs(tt.argv)
			if cmd != tt.wantCmd {
				t.Fatalf("command = %v, want %v", cmd, tt.wantCmd)
			}
			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser(t *testing.T) {
	p := NewArgParser([]string{"get", "session.poll_interval_secs", "--limit=5", "-n", "3", "--json"})

	if p.Subcommand() != "get" {
		t.Errorf("Subcommand() = %q", p.Subcommand())
	}
	if p.Positional(1) != "session.poll_interval_secs" {
		t.Errorf("Positional(1) = %q", p.Positional(1))
	}
	if p.Positional(5) != "" {
		t.Error("out-of-range positional should be empty")
	}
	if p.FlagIntOrDefault("limit", 0) != 5 {
		t.Errorf("limit = %d", p.FlagIntOrDefault("limit", 0))
	}
	if p.FlagIntOrDefault("n", 0) != 3 {
		t.Errorf("n = %d", p.FlagIntOrDefault("n", 0))
	}
	if p.FlagIntOrDefault("missing", 7) != 7 {
		t.Error("missing flag should use default")
	}
	if !p.BoolFlag("json") || p.BoolFlag("quiet") {
		t.Error("bool flags parsed incorrectly")
	}
	if got := JoinPositionalArgs(p, 1); got != "session.poll_interval_secs" {
		t.Errorf("JoinPositionalArgs = %q", got)
	}
}

func TestArgParser_ExplicitBool(t *testing.T) {
	p := NewArgParser([]string{"--json=false", "--quiet=true"})
	if p.BoolFlag("json") {
		t.Error("--json=false should be false")
	}
	if !p.BoolFlag("quiet") {
		t.Error("--quiet=true should be true")
	}
}

// =============================================================================
// EXIT CODES (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", ErrMissingArgument("key", "x"), ExitUsageError},
		{"config", &ConfigError{Err: errors.New("bad")}, ExitConfigError},
		{"permission", &PermissionError{App: "admin", Role: "broker"}, ExitAuthError},
		{"not signed in", errNotSignedIn, ExitAuthError},
		{"already signed in", fmt.Errorf("%w as x", guard.ErrAlreadySignedIn), ExitAuthError},
		{"unauthorized", NewCommandError("login", "sign in", "nope", api.ErrUnauthorized), ExitAuthError},
		{"refused", errors.New("dial tcp: connection refused"), ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDisplayErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayErrorJSON(&buf, &PermissionError{App: "admin", Role: "broker"})

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "permission_error", out["error_type"])
	assert.Equal(t, float64(ExitAuthError), out["exit_code"])
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

// fakePlatform serves the auth endpoints for one user.
type fakePlatform struct {
	role    string
	logouts atomic.Int32
	extends atomic.Int32
}

func (f *fakePlatform) handler(t *testing.T) http.Handler {
	user := fmt.Sprintf(`{"id":"u-1","email":"ops@example.com","first_name":"Ada","last_name":"Ng","role":%q}`, f.role)

	mux := http.NewServeMux()
	mux.HandleFunc(api.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		fmt.Fprintf(w, `{"token":"tok-1","user":%s,"organization":{"id":"org-1","name":"Acme Lending"}}`, user)
	})
	mux.HandleFunc(api.PathMe, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		expires := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		fmt.Fprintf(w, `{"user":%s,"session":{"id":"s-1","expiresAt":%q}}`, user, expires)
	})
	mux.HandleFunc(api.PathLogout, func(w http.ResponseWriter, r *http.Request) {
		f.logouts.Add(1)
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc(api.PathExtendSession, func(w http.ResponseWriter, r *http.Request) {
		f.extends.Add(1)
		w.Write([]byte(`{}`))
	})
	return mux
}

type testEnv struct {
	platform *fakePlatform
	rt       *Runtime
	out      *bytes.Buffer
}

// newTestEnv points LENDGATE_HOME at a temp dir and the API at a fake platform.
func newTestEnv(t *testing.T, role string) *testEnv {
	t.Helper()
	platform := &fakePlatform{role: role}
	server := httptest.NewServer(platform.handler(t))
	t.Cleanup(server.Close)

	t.Setenv("LENDGATE_HOME", t.TempDir())
	t.Setenv("LENDGATE_API_URL", server.URL)
	for _, key := range []string{"LENDGATE_APP", "LENDGATE_CREDENTIAL_DIR", "LENDGATE_AUDIT", "LENDGATE_LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	rt, err := NewRuntime(Args{})
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	out := &bytes.Buffer{}
	rt.Out = out
	rt.Prompt = io.Discard
	return &testEnv{platform: platform, rt: rt, out: out}
}

func (e *testEnv) stdin(s string) {
	e.rt.In = bufio.NewReader(strings.NewReader(s))
}

func (e *testEnv) login(t *testing.T, password string) error {
	t.Helper()
	e.stdin(password + "\n")
	return runLogin(context.Background(), e.rt, Args{Email: "ops@example.com", PasswordStdin: true})
}

func decodeData(t *testing.T, raw []byte, v interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestLoginStatusHistoryLogout(t *testing.T) {
	env := newTestEnv(t, "super_admin")
	ctx := context.Background()

	require.NoError(t, env.login(t, "hunter2"))
	assert.Contains(t, env.out.String(), "Admin Portal session")
	assert.Contains(t, env.out.String(), "Acme Lending")
	token, ok := env.rt.Store.GetToken()
	require.True(t, ok)
	assert.Equal(t, "tok-1", token)

	env.out.Reset()
	require.NoError(t, runStatus(ctx, env.rt, Args{JSON: true}))
	var status StatusData
	decodeData(t, env.out.Bytes(), &status)
	assert.True(t, status.SignedIn)
	assert.True(t, status.Valid)
	assert.Equal(t, "granted", status.Access)
	assert.Equal(t, "super_admin", status.Role)
	assert.Greater(t, status.RemainingSecs, int64(3000))
	assert.False(t, status.Warning)

	env.out.Reset()
	require.NoError(t, runHistory(ctx, env.rt, Args{}))
	assert.Contains(t, env.out.String(), "LOGIN")
	assert.Contains(t, env.out.String(), "SESSION_VALIDATED")

	env.out.Reset()
	require.NoError(t, runLogout(ctx, env.rt, Args{}))
	assert.Contains(t, env.out.String(), "Signed out.")
	assert.False(t, env.rt.Store.IsAuthenticated())
	assert.Equal(t, int32(1), env.platform.logouts.Load())

	env.out.Reset()
	require.NoError(t, runStatus(ctx, env.rt, Args{}))
	assert.Contains(t, env.out.String(), "Not signed in")
}

func TestLoginRejected(t *testing.T) {
	env := newTestEnv(t, "super_admin")

	err := env.login(t, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid email or password.")
	assert.Equal(t, ExitAuthError, GetExitCode(err))
	assert.False(t, env.rt.Store.IsAuthenticated())
}

func TestLoginAccessDenied(t *testing.T) {
	env := newTestEnv(t, "broker")

	err := env.login(t, "hunter2")
	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, "broker", permErr.Role)
	assert.Equal(t, ExitAuthError, GetExitCode(err))
}

func TestLoginWhenAlreadySignedIn(t *testing.T) {
	env := newTestEnv(t, "super_admin")
	require.NoError(t, env.login(t, "hunter2"))

	err := env.login(t, "hunter2")
	require.ErrorIs(t, err, guard.ErrAlreadySignedIn)
}

func TestLoginPasswordStdinNeedsEmail(t *testing.T) {
	env := newTestEnv(t, "super_admin")
	env.stdin("hunter2\n")

	err := runLogin(context.Background(), env.rt, Args{PasswordStdin: true})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestExtend(t *testing.T) {
	env := newTestEnv(t, "super_admin")
	ctx := context.Background()

	require.ErrorIs(t, runExtend(ctx, env.rt, Args{}), errNotSignedIn)

	require.NoError(t, env.login(t, "hunter2"))
	env.out.Reset()
	require.NoError(t, runExtend(ctx, env.rt, Args{JSON: true}))

	var data ExtendData
	decodeData(t, env.out.Bytes(), &data)
	assert.True(t, data.Acknowledged)
	assert.Greater(t, data.RemainingSecs, int64(3000))
	assert.Equal(t, int32(1), env.platform.extends.Load())
}

func TestLogoutWhenSignedOut(t *testing.T) {
	env := newTestEnv(t, "super_admin")

	require.NoError(t, runLogout(context.Background(), env.rt, Args{JSON: true}))
	var data LogoutData
	decodeData(t, env.out.Bytes(), &data)
	assert.False(t, data.WasSignedIn)
	assert.Equal(t, int32(0), env.platform.logouts.Load())
}

func TestUnknownApp(t *testing.T) {
	t.Setenv("LENDGATE_HOME", t.TempDir())
	t.Setenv("LENDGATE_APP", "")

	_, err := NewRuntime(Args{App: "nope"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func TestRunConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LENDGATE_HOME", home)
	cfg := config.Default()
	var out bytes.Buffer

	require.NoError(t, runConfig(cfg, &out, Args{Subcommand: "set", ConfigKey: "session.warning_threshold_secs", ConfigVal: "120"}))
	assert.Contains(t, out.String(), "session.warning_threshold_secs = 120")
	_, err := os.Stat(home + "/config.toml")
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, runConfig(cfg, &out, Args{Subcommand: "get", ConfigKey: "session.warning_threshold_secs"}))
	assert.Equal(t, "120\n", out.String())

	out.Reset()
	require.NoError(t, runConfig(cfg, &out, Args{Subcommand: "show"}))
	assert.Contains(t, out.String(), "warning_threshold_secs = 120")

	out.Reset()
	require.NoError(t, runConfig(cfg, &out, Args{Subcommand: "apps"}))
	assert.Contains(t, out.String(), "* admin")
	assert.Contains(t, out.String(), "Underwriter Console")

	err = runConfig(cfg, &out, Args{Subcommand: "get", ConfigKey: "nope.nothing"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	err = runConfig(cfg, &out, Args{Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "neon"})
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	err = runConfig(cfg, &out, Args{Subcommand: "frobnicate"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// HELPERS
// =============================================================================

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab  ", PadRight("ab", 4))
	assert.Equal(t, 4, len([]rune(PadRight("abcdef", 4))))
	assert.Equal(t, "", formatDetails(nil))
	assert.Equal(t, "a=1 b=2", formatDetails(map[string]string{"b": "2", "a": "1"}))
}
