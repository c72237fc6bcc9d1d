package web

// CSV intake (stateless parse and session import) holds the whole decoded
// file in memory while scanning it, so unbounded parallelism can exhaust
// memory under load. intakeLimiter bounds it with a semaphore: requests past
// the cap wait briefly for a slot, then get told to retry.

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// errIntakeBusy is returned when every parse slot stays occupied for the
// full wait window.
var errIntakeBusy = errors.New("too many concurrent imports, try again shortly")

const (
	defaultMaxConcurrentIntake = 4
	defaultIntakeWait          = 10 * time.Second
)

type intakeLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

func newIntakeLimiter(maxConcurrent int, maxWait time.Duration) *intakeLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentIntake
	}
	if maxWait <= 0 {
		maxWait = defaultIntakeWait
	}
	return &intakeLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// acquire blocks until a slot frees up, the wait window expires, or ctx is
// cancelled. Callers must release after a nil return.
func (l *intakeLimiter) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		// Distinguish the caller going away from the window expiring.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errIntakeBusy
	}
}

func (l *intakeLimiter) release() {
	<-l.slots
}

func (l *intakeLimiter) available() int {
	return cap(l.slots) - len(l.slots)
}

// limitIntake gates a route behind the intake limiter. A nil limiter passes
// everything through.
func (s *Server) limitIntake(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.intake == nil {
			next.ServeHTTP(w, r)
			return
		}
		if err := s.intake.acquire(r.Context()); err != nil {
			if errors.Is(err, errIntakeBusy) {
				w.Header().Set("Retry-After", "10")
				writeError(w, r, http.StatusServiceUnavailable, err.Error())
			}
			return
		}
		defer s.intake.release()
		next.ServeHTTP(w, r)
	})
}
