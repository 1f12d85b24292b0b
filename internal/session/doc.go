// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session keeps a client session alive against the platform API.
//
// The server is the only authority on session validity. Nothing in this
// package computes an expiry of its own; every decision derives from the
// expiresAt reported by GET /api/auth/me.
//
// # Key Types
//
//   - Validator: asks the server whether the session is valid and how long it has left
//   - Monitor: polls the Validator on a fixed interval and raises warning/expired callbacks
//   - ActivityBus: process-wide fan-out of user input events
//   - Extender: turns activity into fire-and-forget extend-session calls
//   - TickMsg: Bubble Tea message driving the one-second warning countdown
//   - CountdownMsg: Bubble Tea message carrying the countdown after a tick
//
// # Usage
//
//	v := session.NewValidator(client)
//	mon := session.NewMonitor(v, session.DefaultMonitorConfig())
//	mon.Start(onExpired, onWarning)
//	defer mon.Stop()
//
//	bus := session.NewActivityBus()
//	detach := session.NewExtender(v, 30*time.Second).Attach(bus)
//	defer detach()
//
// Drive a warning countdown from a Bubble Tea model:
//
//	case session.TickMsg:
//	    return m, session.CountdownCmd(guard.Tick)
//	case session.CountdownMsg:
//	    if msg.Warning {
//	        return m, session.TickCmd()
//	    }
package session
