package dispatcher

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker trips after failThreshold consecutive failures and lets a single
// trial request through once coolDown has elapsed.
type Breaker struct {
	mu            sync.Mutex
	state         breakerState
	failures      int
	failThreshold int
	coolDown      time.Duration
	reopenAt      time.Time
	probing       bool
	now           func() time.Time
}

func NewBreaker(failThreshold int, coolDown time.Duration) *Breaker {
	if failThreshold < 1 {
		failThreshold = 1
	}
	return &Breaker{failThreshold: failThreshold, coolDown: coolDown, now: time.Now}
}

// Ready reports whether Acquire would currently succeed, without claiming.
func (b *Breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		return !b.probing && b.now().After(b.reopenAt)
	case stateHalfOpen:
		return !b.probing
	default:
		return true
	}
}

// Acquire claims a send slot. In the open state it moves to half-open and
// hands out the only trial request.
func (b *Breaker) Acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		if b.probing || !b.now().After(b.reopenAt) {
			return false
		}
		b.state = stateHalfOpen
		b.probing = true
		return true
	case stateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
	b.probing = false
}

func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateHalfOpen {
		b.trip()
		return
	}
	b.failures++
	if b.failures >= b.failThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = stateOpen
	b.probing = false
	b.reopenAt = b.now().Add(b.coolDown)
}
