// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/lendgate-tui/internal/logging"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// MonitorConfig holds configuration for the session monitor.
type MonitorConfig struct {
	// Interval is the fixed poll period (default: 2 minutes).
	Interval time.Duration

	// WarningThreshold is the remaining time at or below which onWarning fires
	// (default: 5 minutes).
	WarningThreshold time.Duration

	// DefaultExpired runs when the session is invalid and Start was given no
	// onExpired callback. Typically clears credentials.
	DefaultExpired func()
}

// DefaultMonitorConfig returns the default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:         2 * time.Minute,
		WarningThreshold: 5 * time.Minute,
	}
}

// Outcome describes what a single poll decided.
type Outcome int

const (
	// OutcomeIdle means the monitor was not running; nothing was checked.
	OutcomeIdle Outcome = iota
	// OutcomeValid means the session is valid and outside the warning window.
	OutcomeValid
	// OutcomeWarning means onWarning was invoked.
	OutcomeWarning
	// OutcomeExpired means the expiry path was invoked.
	OutcomeExpired
	// OutcomeDiscarded means the result arrived after Stop/Start or after a
	// newer poll, and was dropped.
	OutcomeDiscarded
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "IDLE"
	case OutcomeValid:
		return "VALID"
	case OutcomeWarning:
		return "WARNING"
	case OutcomeExpired:
		return "EXPIRED"
	case OutcomeDiscarded:
		return "DISCARDED"
	default:
		return "UNKNOWN"
	}
}

// =============================================================================
// SESSION MONITOR
// =============================================================================

// Monitor polls the server on a fixed interval. At most one poll loop runs per
// Monitor; Start replaces any running loop.
type Monitor struct {
	validator *Validator
	cfg       MonitorConfig
	logger    *zap.Logger

	mu        sync.Mutex
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	last      chan struct{}
	ctx       context.Context
	onExpired func()
	onWarning func(remaining time.Duration)
	lastSeq   uint64

	seq        atomic.Uint64
	loops      atomic.Int32
	inCallback atomic.Bool
}

// NewMonitor creates a monitor. Zero config fields take their defaults.
func NewMonitor(v *Validator, cfg MonitorConfig) *Monitor {
	d := DefaultMonitorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = d.WarningThreshold
	}
	return &Monitor{
		validator: v,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
}

// WithLogger sets the structured logger.
func (m *Monitor) WithLogger(l *zap.Logger) *Monitor {
	m.logger = logging.OrNop(l)
	return m
}

// Start begins polling. Any loop already running is stopped first, so two
// calls in a row leave exactly one loop. Either callback may be nil.
//
// When the previous loop is still inside a callback (Stop could not join
// it), the new loop waits for it to exit before polling.
func (m *Monitor) Start(onExpired func(), onWarning func(remaining time.Duration)) {
	m.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.ctx = ctx
	m.cancel = cancel
	m.done = done
	prev := m.last
	m.last = done
	m.onExpired = onExpired
	m.onWarning = onWarning
	m.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
			prev = nil
		default:
		}
	}

	if prev == nil {
		m.loops.Add(1)
		go m.loop(ctx, gen, done)
	} else {
		go func() {
			<-prev
			if ctx.Err() != nil {
				close(done)
				return
			}
			m.loops.Add(1)
			m.loop(ctx, gen, done)
		}()
	}

	m.logger.Debug("session monitor started",
		zap.Duration("interval", m.cfg.Interval),
		zap.Duration("warning_threshold", m.cfg.WarningThreshold),
	)
}

// Stop cancels the poll timer and any in-flight poll. It is safe to call
// when nothing is running, and from inside a monitor callback.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	if cancel != nil {
		// A new generation invalidates results from the stopped loop.
		m.gen++
	}
	m.cancel = nil
	m.done = nil
	m.ctx = nil
	m.onExpired = nil
	m.onWarning = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	// The loop goroutine cannot wait for itself. A loop left running here
	// exits after its callback returns, and Start hands over to the next
	// loop only once it has.
	if !m.inCallback.Load() {
		<-done
	}
	m.logger.Debug("session monitor stopped")
}

// Running reports whether a poll loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// ActiveLoops returns the number of poll loops alive right now. It never
// exceeds one.
func (m *Monitor) ActiveLoops() int {
	return int(m.loops.Load())
}

// Check runs one poll immediately against the running loop's callbacks.
// It returns OutcomeIdle if the monitor is stopped.
func (m *Monitor) Check(ctx context.Context) Outcome {
	m.mu.Lock()
	gen := m.gen
	loopCtx := m.ctx
	m.mu.Unlock()

	if loopCtx == nil {
		return OutcomeIdle
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(loopCtx, cancel)
	defer stop()

	return m.poll(ctx, gen)
}

func (m *Monitor) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	defer m.loops.Add(-1)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx, gen)
		}
	}
}

// poll validates once and dispatches the result unless it has gone stale.
// No retry within a poll; the next tick is the retry.
func (m *Monitor) poll(ctx context.Context, gen uint64) Outcome {
	seq := m.seq.Add(1)
	res := m.validator.ValidateWithServer(ctx)
	remaining := m.validator.Remaining(res)

	m.mu.Lock()
	if gen != m.gen || ctx.Err() != nil || seq < m.lastSeq {
		m.mu.Unlock()
		m.logger.Debug("stale session poll discarded", zap.Uint64("seq", seq))
		return OutcomeDiscarded
	}
	m.lastSeq = seq
	onExpired := m.onExpired
	onWarning := m.onWarning
	m.mu.Unlock()

	m.inCallback.Store(true)
	defer m.inCallback.Store(false)

	switch {
	case !res.Valid:
		m.logger.Info("session invalid", zap.String("reason", res.Reason))
		if onExpired != nil {
			onExpired()
		} else if m.cfg.DefaultExpired != nil {
			m.cfg.DefaultExpired()
		}
		return OutcomeExpired

	case remaining > 0 && remaining <= m.cfg.WarningThreshold:
		m.logger.Info("session expiring soon", zap.Duration("remaining", remaining))
		if onWarning != nil {
			onWarning(remaining)
		}
		return OutcomeWarning

	default:
		return OutcomeValid
	}
}
