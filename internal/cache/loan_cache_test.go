package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/lending-ledger/internal/domain"
)

// newTestRedis connects to TEST_REDIS_ADDR (default localhost:6379, DB 1)
// and skips when no server answers.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}

func testLoan(t *testing.T) *domain.Loan {
	t.Helper()
	loan, err := domain.NewLoan(domain.NewLoanParams{
		BorrowerID:       uuid.New(),
		AssignedAgentID:  uuid.NullUUID{UUID: uuid.New(), Valid: true},
		PrincipalAmount:  decimal.RequireFromString("10000"),
		InstallmentCount: 100,
		Terms:            domain.RateBased{InterestRatePercent: decimal.RequireFromString("12.5")},
	}, time.Now().UTC())
	require.NoError(t, err)
	return loan
}

func TestRedisLoanCache(t *testing.T) {
	ctx := context.Background()
	c := NewRedisLoanCache(newTestRedis(t), time.Minute)
	loan := testLoan(t)
	t.Cleanup(func() { _ = c.Invalidate(ctx, loan.ID) })

	_, err := c.Get(ctx, loan.ID)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, loan))

	got, err := c.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.ID, got.ID)
	assert.Equal(t, loan.AssignedAgentID, got.AssignedAgentID)
	assert.True(t, got.InitialInterestDeduction.Equal(decimal.RequireFromString("1250")))
	assert.True(t, got.InterestRate.Decimal.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, loan.Status, got.Status)

	require.NoError(t, c.Invalidate(ctx, loan.ID))
	_, err = c.Get(ctx, loan.ID)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestNopLoanCache(t *testing.T) {
	ctx := context.Background()
	c := NewNopLoanCache()
	loan := testLoan(t)

	require.NoError(t, c.Set(ctx, loan))
	_, err := c.Get(ctx, loan.ID)
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, c.Invalidate(ctx, loan.ID))
}
