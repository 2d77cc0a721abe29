package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Options tune request pacing.
type Options struct {
	// RequestsPerSecond caps the sustained request rate. Zero or negative disables pacing.
	RequestsPerSecond float64
	// Burst is the number of requests allowed back to back.
	Burst int
}

// Scheduler paces outgoing requests for one scrape phase.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	s := &Scheduler{opts: opts, logger: logger.With().Str("component", "request_scheduler").Logger()}
	s.limiter = s.newLimiter()
	return s
}

// Wait blocks until the next request may be sent or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	if s == nil {
		return ctx.Err()
	}
	s.mu.Lock()
	limiter := s.limiter
	s.mu.Unlock()
	if limiter == nil {
		return ctx.Err()
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > time.Second {
		s.logger.Debug().Dur("waited", waited).Msg("request delayed by rate limit")
	}
	return nil
}

// Reset forgets previous requests so the next phase starts with a full burst.
func (s *Scheduler) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.limiter = s.newLimiter()
	s.mu.Unlock()
}

func (s *Scheduler) newLimiter() *rate.Limiter {
	if s.opts.RequestsPerSecond <= 0 {
		return nil
	}
	burst := s.opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.opts.RequestsPerSecond), burst)
}
