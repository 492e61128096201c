package performance

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockledger/internal/cache"
	"stockledger/internal/domain"
)

// DefaultCommissionRate is the share of attributed profit paid as commission.
var DefaultCommissionRate = decimal.RequireFromString("0.10")

type Engine struct {
	cache          cache.StatsCache
	cacheTTL       time.Duration
	commissionRate decimal.Decimal
	logger         *zap.Logger
}

func NewEngine(cacheStore cache.StatsCache, cacheTTL time.Duration, commissionRate decimal.Decimal, logger *zap.Logger) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopStatsCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if !commissionRate.IsPositive() {
		commissionRate = DefaultCommissionRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cache:          cacheStore,
		cacheTTL:       cacheTTL,
		commissionRate: commissionRate,
		logger:         logger,
	}
}

func (e *Engine) CommissionRate() decimal.Decimal {
	return e.commissionRate
}

// Compute groups sales by seller and returns one entry per employee, ordered
// by commission descending and then account id ascending. Sales without a
// seller or sold by a non-employee are ignored. totals must describe exactly
// the given sales; when the counts disagree the cache is bypassed.
func (e *Engine) Compute(ctx context.Context, sales []domain.Sale, totals domain.LedgerTotals) []domain.EmployeeStats {
	if totals.SaleCount != len(sales) {
		e.logger.Warn("ledger totals do not match sales, skipping stats cache",
			zap.Int("sale_count", totals.SaleCount),
			zap.Int("sales", len(sales)),
		)
		return e.aggregate(sales)
	}

	cacheKey := buildCacheKey(totals, e.commissionRate)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err != nil {
		e.logger.Warn("stats cache read failed", zap.String("key", cacheKey), zap.Error(err))
	} else if ok {
		return cached
	}

	result := e.aggregate(sales)
	if err := e.cache.Set(ctx, cacheKey, result, e.cacheTTL); err != nil {
		e.logger.Warn("stats cache write failed", zap.String("key", cacheKey), zap.Error(err))
	}
	return result
}

func (e *Engine) aggregate(sales []domain.Sale) []domain.EmployeeStats {
	byEmployee := make(map[int64]*domain.EmployeeStats)
	for _, sale := range sales {
		if sale.SoldBy == nil || sale.SoldBy.Role != domain.RoleEmployee {
			continue
		}
		stats, ok := byEmployee[sale.SoldBy.ID]
		if !ok {
			stats = &domain.EmployeeStats{
				Employee:     *sale.SoldBy,
				TotalRevenue: decimal.Zero,
				TotalProfit:  decimal.Zero,
			}
			byEmployee[sale.SoldBy.ID] = stats
		}
		stats.SaleCount++
		stats.TotalRevenue = stats.TotalRevenue.Add(sale.Revenue())
		stats.TotalProfit = stats.TotalProfit.Add(sale.Profit())
	}

	result := make([]domain.EmployeeStats, 0, len(byEmployee))
	for _, stats := range byEmployee {
		stats.Commission = stats.TotalProfit.Mul(e.commissionRate)
		stats.Salary = stats.Commission
		result = append(result, *stats)
	}
	slices.SortFunc(result, compareStats)
	return result
}

// TopPerformer returns the employee with the highest commission. Equal
// commissions go to the lowest account id. ok is false when stats is empty.
func TopPerformer(stats []domain.EmployeeStats) (domain.EmployeeStats, bool) {
	if len(stats) == 0 {
		return domain.EmployeeStats{}, false
	}
	return slices.MinFunc(stats, compareStats), true
}

func compareStats(a, b domain.EmployeeStats) int {
	if c := b.Commission.Cmp(a.Commission); c != 0 {
		return c
	}
	switch {
	case a.Employee.ID < b.Employee.ID:
		return -1
	case a.Employee.ID > b.Employee.ID:
		return 1
	default:
		return 0
	}
}

// The ledger is append-only, so count plus running totals identify a snapshot.
func buildCacheKey(totals domain.LedgerTotals, rate decimal.Decimal) string {
	raw := fmt.Sprintf("%d|%s|%s|%s", totals.SaleCount, totals.TotalRevenue.String(), totals.TotalProfit.String(), rate.String())
	hash := sha1.Sum([]byte(raw))
	return "stockledger:employee-stats:" + hex.EncodeToString(hash[:])
}
