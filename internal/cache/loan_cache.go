package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/lending-ledger/internal/domain"
)

// ErrMiss is returned by Get when the loan is not cached.
var ErrMiss = errors.New("cache miss")

// LoanCache keeps read copies of loans. The database stays the source of
// truth; every loan mutation invalidates the entry.
type LoanCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	Set(ctx context.Context, loan *domain.Loan) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

type redisLoanCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLoanCache(client *redis.Client, ttl time.Duration) LoanCache {
	return &redisLoanCache{client: client, ttl: ttl}
}

func loanKey(id uuid.UUID) string {
	return fmt.Sprintf("loan:%s", id)
}

func (c *redisLoanCache) Get(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	raw, err := c.client.Get(ctx, loanKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var loan domain.Loan
	if err := json.Unmarshal(raw, &loan); err != nil {
		return nil, fmt.Errorf("decode cached loan %s: %w", id, err)
	}

	return &loan, nil
}

func (c *redisLoanCache) Set(ctx context.Context, loan *domain.Loan) error {
	raw, err := json.Marshal(loan)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, loanKey(loan.ID), raw, c.ttl).Err()
}

func (c *redisLoanCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, loanKey(id)).Err()
}

// nopLoanCache is used when REDIS_ENABLED is false.
type nopLoanCache struct{}

func NewNopLoanCache() LoanCache {
	return nopLoanCache{}
}

func (nopLoanCache) Get(context.Context, uuid.UUID) (*domain.Loan, error) { return nil, ErrMiss }
func (nopLoanCache) Set(context.Context, *domain.Loan) error             { return nil }
func (nopLoanCache) Invalidate(context.Context, uuid.UUID) error         { return nil }
