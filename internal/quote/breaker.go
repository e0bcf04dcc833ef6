package quote

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IlyasAtabaev731/finance/internal/domain/models"
	"github.com/IlyasAtabaev731/finance/internal/lib/logger/sl"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker stops calling a failing provider for resetTimeout after threshold
// consecutive failures. ErrNotFound answers are successes.
type Breaker struct {
	next   Lookup
	logger *slog.Logger

	mu           sync.Mutex
	state        State
	failureCount int
	threshold    int
	resetTimeout time.Duration
	lastFailure  time.Time
	probing      bool
	now          func() time.Time
}

func NewBreaker(next Lookup, threshold int, resetTimeout time.Duration, logger *slog.Logger) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		next:         next,
		logger:       logger,
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}

	q, err := b.next.Lookup(ctx, symbol)
	b.record(ctx, err)
	return q, err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) <= b.resetTimeout {
			return ErrUnavailable
		}
		b.logger.Info("quote breaker half-open")
		b.state = StateHalfOpen
		b.probing = true
	case StateHalfOpen:
		// one probe at a time
		if b.probing {
			return ErrUnavailable
		}
		b.probing = true
	}
	return nil
}

// record counts err against the provider. A lookup cut short by the
// caller's own context says nothing about provider health.
func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false

	if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)) {
		return
	}

	if err != nil && !errors.Is(err, ErrNotFound) {
		b.failureCount++
		b.lastFailure = b.now()
		b.logger.Warn("quote provider failure",
			slog.Int("failures", b.failureCount),
			slog.Int("threshold", b.threshold),
			sl.Err(err),
		)
		if b.state == StateHalfOpen || b.failureCount >= b.threshold {
			if b.state != StateOpen {
				b.logger.Warn("quote breaker open")
			}
			b.state = StateOpen
		}
		return
	}

	if b.state == StateHalfOpen {
		b.logger.Info("quote breaker closed")
	}
	b.state = StateClosed
	b.failureCount = 0
}
