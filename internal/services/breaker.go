package services

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"flashnotes-backend/internal/flashcards"
)

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerObserver is told about breaker state changes.
type BreakerObserver interface {
	BreakerStateChanged(to string)
}

// BreakerGenerator stops calling a failing generation service for a while.
// While open, Generate fails immediately with gobreaker.ErrOpenState and the
// synthesizer falls back.
type BreakerGenerator struct {
	next flashcards.Generator
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerGenerator(next flashcards.Generator, cfg BreakerConfig, logger *zap.Logger, observer BreakerObserver) *BreakerGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if observer != nil {
				observer.BreakerStateChanged(to.String())
			}
		},
	})

	return &BreakerGenerator{next: next, cb: cb}
}

func (b *BreakerGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (b *BreakerGenerator) State() gobreaker.State {
	return b.cb.State()
}
