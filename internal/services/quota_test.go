package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashnotes-backend/internal/models"
)

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{counts: map[string]int64{}}
}

func (m *memoryCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryCounter) Decr(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]--
	return nil
}

func (m *memoryCounter) Get(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], m.err
}

type rejectionCounter struct{ n int }

func (r *rejectionCounter) QuotaRejected() { r.n++ }

func TestQuotaService_FreeTierLimit(t *testing.T) {
	counter := newMemoryCounter()
	observer := &rejectionCounter{}
	svc := NewQuotaService(counter, 2, observer)
	userID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Reserve(ctx, userID, models.TierFree)
		require.NoError(t, err)
	}

	_, err := svc.Reserve(ctx, userID, models.TierFree)
	var payment *PaymentRequiredError
	require.ErrorAs(t, err, &payment)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 1, observer.n)

	left, err := svc.Remaining(ctx, userID, models.TierFree)
	require.NoError(t, err)
	assert.Equal(t, 0, left, "a rejected attempt must not consume quota")
}

func TestQuotaService_RefundRestoresGeneration(t *testing.T) {
	svc := NewQuotaService(newMemoryCounter(), 1, nil)
	userID := uuid.New()
	ctx := context.Background()

	refund, err := svc.Reserve(ctx, userID, models.TierFree)
	require.NoError(t, err)
	refund()

	left, err := svc.Remaining(ctx, userID, models.TierFree)
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}

func TestQuotaService_ReleaseReturnsReservedDay(t *testing.T) {
	svc := NewQuotaService(newMemoryCounter(), 1, nil)
	reserved := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	now := reserved
	svc.now = func() time.Time { return now }
	userID := uuid.New()
	ctx := context.Background()

	day, _, err := svc.ReserveDay(ctx, userID, models.TierFree)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", day)

	// The job fails after midnight; the slot goes back to the day it came from.
	now = reserved.Add(2 * time.Minute)
	require.NoError(t, svc.Release(ctx, userID, day))

	now = reserved
	left, err := svc.Remaining(ctx, userID, models.TierFree)
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}

func TestQuotaService_PremiumReservesNoDay(t *testing.T) {
	counter := newMemoryCounter()
	svc := NewQuotaService(counter, 1, nil)

	day, _, err := svc.ReserveDay(context.Background(), uuid.New(), models.TierPremium)
	require.NoError(t, err)
	assert.Empty(t, day)

	require.NoError(t, svc.Release(context.Background(), uuid.New(), day))
	assert.Empty(t, counter.counts)
}

func TestQuotaService_PremiumIsUnlimited(t *testing.T) {
	counter := newMemoryCounter()
	svc := NewQuotaService(counter, 1, nil)
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := svc.Reserve(context.Background(), userID, models.TierPremium)
		require.NoError(t, err)
	}
	assert.Empty(t, counter.counts)

	left, err := svc.Remaining(context.Background(), userID, models.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, -1, left)
}

func TestQuotaService_CountsPerDay(t *testing.T) {
	svc := NewQuotaService(newMemoryCounter(), 1, nil)
	day := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	svc.now = func() time.Time { return day }
	userID := uuid.New()

	_, err := svc.Reserve(context.Background(), userID, models.TierFree)
	require.NoError(t, err)

	day = day.Add(2 * time.Minute)
	_, err = svc.Reserve(context.Background(), userID, models.TierFree)
	assert.NoError(t, err, "a new UTC day starts a fresh allowance")
}

func TestQuotaService_CounterFailure(t *testing.T) {
	counter := newMemoryCounter()
	counter.err = errors.New("redis down")
	svc := NewQuotaService(counter, 3, nil)

	_, err := svc.Reserve(context.Background(), uuid.New(), models.TierFree)
	assert.Error(t, err)

	var payment *PaymentRequiredError
	assert.False(t, errors.As(err, &payment))
}
