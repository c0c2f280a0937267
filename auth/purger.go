/*
purger.go - Background sweep of expired sessions

PURPOSE:
  Resolve deletes an expired session lazily when its token is presented,
  but tokens that are never presented again would sit in the sessions
  table forever. The purger removes them on a timer.

DESIGN:
  - Runs a background goroutine with a configurable sweep interval
  - Each sweep deletes every session whose expiry is in the past
  - Start/Stop are idempotent; Stop waits for the goroutine to exit

USAGE:
  purger := auth.NewSessionPurger(store, time.Hour)
  purger.Start()
  // ... later
  purger.Stop()

SEE ALSO:
  - auth.go: lazy expiry deletion in Resolve
*/
package auth

import (
	"context"
	"log"
	"sync"
	"time"
)

const defaultPurgeInterval = time.Hour

// SessionPurger periodically deletes expired sessions.
type SessionPurger struct {
	store    Store
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewSessionPurger creates a purger sweeping at the given interval
// (default 1 hour if non-positive).
func NewSessionPurger(store Store, interval time.Duration) *SessionPurger {
	if interval <= 0 {
		interval = defaultPurgeInterval
	}
	return &SessionPurger{
		store:    store,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the background sweep. Safe to call on a running purger.
func (p *SessionPurger) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.wg.Add(1)
	go p.loop(p.stop)
}

// Stop halts the sweep and waits for the goroutine to exit. Safe to call
// on a stopped purger.
func (p *SessionPurger) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *SessionPurger) loop(stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := p.Purge(context.Background()); err != nil {
				log.Printf("session purge: %v", err)
			} else if n > 0 {
				log.Printf("session purge: removed %d expired sessions", n)
			}
		case <-stop:
			return
		}
	}
}

// Purge deletes every session that expired before now and reports how many
// were removed. Called by the background loop on each tick.
func (p *SessionPurger) Purge(ctx context.Context) (int64, error) {
	return p.store.DeleteExpiredSessions(ctx, p.now())
}
