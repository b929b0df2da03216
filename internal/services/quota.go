package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"flashnotes-backend/internal/models"
)

const quotaKeyTTL = 48 * time.Hour

// QuotaCounter is a keyed counter with expiry. RedisQuotaCounter is the
// production one.
type QuotaCounter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Decr(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (int64, error)
}

type QuotaObserver interface {
	QuotaRejected()
}

// QuotaService limits free accounts to a number of generations per UTC day.
// Premium accounts are never counted.
type QuotaService struct {
	counter  QuotaCounter
	limit    int
	now      func() time.Time
	observer QuotaObserver
}

func NewQuotaService(counter QuotaCounter, dailyLimit int, observer QuotaObserver) *QuotaService {
	return &QuotaService{
		counter:  counter,
		limit:    dailyLimit,
		now:      time.Now,
		observer: observer,
	}
}

func (s *QuotaService) today() string {
	return s.now().UTC().Format("2006-01-02")
}

func quotaKey(userID uuid.UUID, day string) string {
	return fmt.Sprintf("quota:%s:%s", userID.String(), day)
}

// Reserve takes one generation from the caller's daily allowance. The returned
// refund gives it back and is meant for requests that end up producing
// nothing. It returns a *PaymentRequiredError once the allowance is used up.
func (s *QuotaService) Reserve(ctx context.Context, userID uuid.UUID, tier string) (refund func(), err error) {
	_, refund, err = s.ReserveDay(ctx, userID, tier)
	return refund, err
}

// ReserveDay is Reserve for work that finishes outside the request. day names
// the allowance the generation was taken from and is empty for premium
// accounts; pass it to Release if the work fails.
func (s *QuotaService) ReserveDay(ctx context.Context, userID uuid.UUID, tier string) (day string, refund func(), err error) {
	if tier == models.TierPremium {
		return "", func() {}, nil
	}

	day = s.today()
	key := quotaKey(userID, day)
	n, err := s.counter.Incr(ctx, key, quotaKeyTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to count generation: %w", err)
	}

	if n > int64(s.limit) {
		s.counter.Decr(ctx, key)
		if s.observer != nil {
			s.observer.QuotaRejected()
		}
		return "", nil, &PaymentRequiredError{
			Message: fmt.Sprintf("The free plan includes %d generations per day. Upgrade to premium for unlimited flashcards.", s.limit),
		}
	}

	return day, func() {
		s.counter.Decr(context.WithoutCancel(ctx), key)
	}, nil
}

// Release gives back a generation taken by ReserveDay on day.
func (s *QuotaService) Release(ctx context.Context, userID uuid.UUID, day string) error {
	if day == "" {
		return nil
	}
	return s.counter.Decr(ctx, quotaKey(userID, day))
}

// Remaining returns how many generations are left today, or -1 for premium.
func (s *QuotaService) Remaining(ctx context.Context, userID uuid.UUID, tier string) (int, error) {
	if tier == models.TierPremium {
		return -1, nil
	}

	used, err := s.counter.Get(ctx, quotaKey(userID, s.today()))
	if err != nil {
		return 0, err
	}

	left := s.limit - int(used)
	if left < 0 {
		left = 0
	}
	return left, nil
}

type RedisQuotaCounter struct {
	client *redis.Client
}

func NewRedisQuotaCounter(client *redis.Client) *RedisQuotaCounter {
	return &RedisQuotaCounter{client: client}
}

func (c *RedisQuotaCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *RedisQuotaCounter) Decr(ctx context.Context, key string) error {
	return c.client.Decr(ctx, key).Err()
}

func (c *RedisQuotaCounter) Get(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
