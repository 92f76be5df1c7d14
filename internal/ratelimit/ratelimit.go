// Package ratelimit provides the token bucket used to throttle calls to Cortex
// and requests arriving on the HTTP hook intake.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaitExceeded is returned when no token became available within the limiter's max wait.
var ErrWaitExceeded = errors.New("rate limit wait exceeded")

// Limiter is a simple token bucket refilled by a background ticker.
type Limiter struct {
	tokens     chan struct{}
	quit       chan struct{}
	refillRate time.Duration
	maxWait    time.Duration
	closeOnce  sync.Once
}

// New creates a limiter allowing rps requests per second with the given burst.
// maxWait bounds how long Wait blocks; zero means 5 seconds.
func New(rps, burst int, maxWait time.Duration) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = rps
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	l := &Limiter{
		tokens:     make(chan struct{}, burst),
		quit:       make(chan struct{}),
		refillRate: time.Second / time.Duration(rps),
		maxWait:    maxWait,
	}
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}
	go l.refill()
	return l
}

func (l *Limiter) refill() {
	t := time.NewTicker(l.refillRate)
	defer t.Stop()
	for {
		select {
		case <-l.quit:
			return
		case <-t.C:
			select {
			case l.tokens <- struct{}{}:
			default:
				// bucket full
			}
		}
	}
}

// Wait blocks until a token is available, ctx is done or the max wait elapses.
func (l *Limiter) Wait(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.tokens:
		return nil
	case <-timer.C:
		return ErrWaitExceeded
	}
}

// Close stops the refill goroutine. It is safe to call more than once.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.quit) })
}
