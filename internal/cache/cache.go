package cache

import (
	"context"
	"time"

	"stockledger/internal/domain"
)

// StatsCache holds computed employee stats keyed by a ledger fingerprint.
type StatsCache interface {
	Get(ctx context.Context, key string) ([]domain.EmployeeStats, bool, error)
	Set(ctx context.Context, key string, value []domain.EmployeeStats, ttl time.Duration) error
}

type NoopStatsCache struct{}

func (NoopStatsCache) Get(_ context.Context, _ string) ([]domain.EmployeeStats, bool, error) {
	return nil, false, nil
}

func (NoopStatsCache) Set(_ context.Context, _ string, _ []domain.EmployeeStats, _ time.Duration) error {
	return nil
}
