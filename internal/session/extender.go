// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/lendgate-tui/internal/logging"
)

// =============================================================================
// ACTIVITY BUS
// =============================================================================

// ActivityKind classifies a user interaction.
type ActivityKind int

const (
	// ActivityPointer is mouse movement or clicks.
	ActivityPointer ActivityKind = iota
	// ActivityKey is keyboard input.
	ActivityKey
	// ActivityTouch is pasted or bracketed input.
	ActivityTouch
	// ActivityScroll is wheel scrolling or window resizing.
	ActivityScroll
)

// String returns the kind name.
func (k ActivityKind) String() string {
	switch k {
	case ActivityPointer:
		return "pointer"
	case ActivityKey:
		return "key"
	case ActivityTouch:
		return "touch"
	case ActivityScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// Activity is a single user interaction.
type Activity struct {
	Kind ActivityKind
	At   time.Time
}

// ActivityBus fans user input out to subscribers. The UI publishes every input
// event before routing it to any view, so no view can swallow it.
type ActivityBus struct {
	mu     sync.Mutex
	subs   map[int]func(Activity)
	nextID int
}

// NewActivityBus creates an empty bus.
func NewActivityBus() *ActivityBus {
	return &ActivityBus{subs: make(map[int]func(Activity))}
}

// Subscribe registers fn. The returned func removes it and may be called more than once.
func (b *ActivityBus) Subscribe(fn func(Activity)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers a to every subscriber synchronously.
func (b *ActivityBus) Publish(a Activity) {
	if a.At.IsZero() {
		a.At = time.Now()
	}

	b.mu.Lock()
	fns := make([]func(Activity), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(a)
	}
}

// Subscribers returns the current subscriber count.
func (b *ActivityBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// =============================================================================
// ACTIVITY EXTENDER
// =============================================================================

// Extender turns user activity into extend-session calls.
//
// Each activity first runs the OnActivity callback (clearing any warning),
// then, if the rate limiter allows, fires ExtendSession in the background.
// Activity that dismissed a warning always extends; the limiter only thins
// out routine activity. Extend failures are logged and otherwise ignored.
type Extender struct {
	validator  *Validator
	limiter    *rate.Limiter
	onActivity func(Activity) bool
	onExtended func(acknowledged bool)
	logger     *zap.Logger
	timeout    time.Duration

	wg sync.WaitGroup
}

// NewExtender creates an extender that sends at most one extend call per
// minInterval. A minInterval of zero sends one per activity.
func NewExtender(v *Validator, minInterval time.Duration) *Extender {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Extender{
		validator: v,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    zap.NewNop(),
		timeout:   30 * time.Second,
	}
}

// OnActivity sets the callback run synchronously for every activity. It
// returns true when the activity dismissed a warning, which sends the extend
// call regardless of the throttle.
func (e *Extender) OnActivity(fn func(Activity) bool) *Extender {
	e.onActivity = fn
	return e
}

// OnExtended sets a callback run from the background goroutine after each
// extend call completes.
func (e *Extender) OnExtended(fn func(acknowledged bool)) *Extender {
	e.onExtended = fn
	return e
}

// WithLogger sets the structured logger.
func (e *Extender) WithLogger(l *zap.Logger) *Extender {
	e.logger = logging.OrNop(l)
	return e
}

// Attach subscribes to bus. The returned detach func unsubscribes and cancels
// in-flight extend calls; it is idempotent and should be deferred.
func (e *Extender) Attach(bus *ActivityBus) (detach func()) {
	ctx, cancel := context.WithCancel(context.Background())
	unsubscribe := bus.Subscribe(func(a Activity) {
		e.handle(ctx, a)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			cancel()
		})
	}
}

// Wait blocks until in-flight extend calls finish.
func (e *Extender) Wait() {
	e.wg.Wait()
}

func (e *Extender) handle(ctx context.Context, a Activity) {
	if ctx.Err() != nil {
		return
	}
	dismissed := false
	if e.onActivity != nil {
		dismissed = e.onActivity(a)
	}
	if !e.limiter.Allow() && !dismissed {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		ok := e.validator.ExtendSession(reqCtx)
		e.logger.Debug("session extend",
			zap.Stringer("trigger", a.Kind),
			zap.Bool("acknowledged", ok),
		)
		if e.onExtended != nil && ctx.Err() == nil {
			e.onExtended(ok)
		}
	}()
}
