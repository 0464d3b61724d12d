/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package reconnect throttles repeated Connect attempts against the
// same BLE device address, the way the original rate limiter throttled
// repeated handshake-initiation packets per source IP: a flapping
// peripheral that keeps dropping the link shouldn't make the client
// hammer it with connect attempts.
package reconnect

import (
	"sync"
	"time"
)

const (
	attemptsPerSecond  = 5
	attemptsBurstable  = 2
	garbageCollectTime = 10 * time.Second
	attemptCost        = 1000000000 / attemptsPerSecond
	maxTokens          = attemptCost * attemptsBurstable
)

type entry struct {
	mu       sync.Mutex
	lastTime time.Time
	tokens   int64
}

// Limiter is a token bucket per device address.
type Limiter struct {
	mu      sync.RWMutex
	timeNow func() time.Time

	stopReset chan struct{} // send to reset, close to stop
	table     map[string]*entry
}

func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopReset != nil {
		close(l.stopReset)
	}
}

func (l *Limiter) Init() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.timeNow == nil {
		l.timeNow = time.Now
	}

	if l.stopReset != nil {
		close(l.stopReset)
	}

	l.stopReset = make(chan struct{})
	l.table = make(map[string]*entry)

	stopReset := l.stopReset // store in case Init is called again.

	go func() {
		ticker := time.NewTicker(garbageCollectTime)
		ticker.Stop()
		for {
			select {
			case _, ok := <-stopReset:
				ticker.Stop()
				if !ok {
					return
				}
				ticker = time.NewTicker(garbageCollectTime)
			case <-ticker.C:
				if l.cleanup() {
					ticker.Stop()
				}
			}
		}
	}()
}

func (l *Limiter) cleanup() (empty bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.table {
		e.mu.Lock()
		if l.timeNow().Sub(e.lastTime) > garbageCollectTime {
			delete(l.table, key)
		}
		e.mu.Unlock()
	}

	return len(l.table) == 0
}

// Allow reports whether a Connect attempt against device may proceed
// now, deducting a token from its bucket if so.
func (l *Limiter) Allow(device string) bool {
	l.mu.RLock()
	e := l.table[device]
	l.mu.RUnlock()

	if e == nil {
		e = new(entry)
		e.tokens = maxTokens - attemptCost
		e.lastTime = l.timeNow()
		l.mu.Lock()
		l.table[device] = e
		if len(l.table) == 1 {
			l.stopReset <- struct{}{}
		}
		l.mu.Unlock()
		return true
	}

	e.mu.Lock()
	now := l.timeNow()
	e.tokens += now.Sub(e.lastTime).Nanoseconds()
	e.lastTime = now
	if e.tokens > maxTokens {
		e.tokens = maxTokens
	}

	if e.tokens > attemptCost {
		e.tokens -= attemptCost
		e.mu.Unlock()
		return true
	}
	e.mu.Unlock()
	return false
}
