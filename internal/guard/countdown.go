// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guard

import (
	"fmt"
	"time"

	"github.com/jeranaias/lendgate-tui/internal/session"
)

// TickInterval is the countdown step, shared with the UI tick.
const TickInterval = session.TickInterval

// Countdown is the local, cosmetic warning timer. It is seeded from the
// server-reported remaining time and reports expiry exactly once.
// Not safe for concurrent use; the Guard holds its lock around it.
type Countdown struct {
	remaining time.Duration
	armed     bool
}

// Seed arms the countdown at d, rounded up to a whole second so a
// sub-second remainder still shows "0:01" for one tick.
func (c *Countdown) Seed(d time.Duration) {
	if d < 0 {
		d = 0
	}
	if rem := d % TickInterval; rem != 0 {
		d += TickInterval - rem
	}
	c.remaining = d
	c.armed = true
}

// Tick decrements by one step. It returns true on the tick that reaches zero
// and false on every later call.
func (c *Countdown) Tick() bool {
	if !c.armed {
		return false
	}
	c.remaining -= TickInterval
	if c.remaining > 0 {
		return false
	}
	c.remaining = 0
	c.armed = false
	return true
}

// Remaining returns the time left.
func (c *Countdown) Remaining() time.Duration {
	return c.remaining
}

// Armed reports whether the countdown is running.
func (c *Countdown) Armed() bool {
	return c.armed
}

// Reset disarms the countdown.
func (c *Countdown) Reset() {
	c.remaining = 0
	c.armed = false
}

// FormatRemaining renders d as M:SS.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
