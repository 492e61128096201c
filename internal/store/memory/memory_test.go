package memory

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/domain"
	"stockledger/internal/store"
)

var (
	employee = domain.Account{ID: 7, Name: "Eli", Role: domain.RoleEmployee}
	manager  = domain.Account{ID: 1, Name: "Mo", Role: domain.RoleManager}
)

func dec(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	require.NoError(t, err)
	return d
}

func newStoreWithProduct(t *testing.T, stock int, reorder int) *Store {
	t.Helper()
	s := New()
	_, err := s.UpsertProduct(context.Background(), domain.Product{
		ID:           "P1",
		Name:         "Widget",
		Category:     "Hardware",
		UnitPrice:    dec(t, "5.00"),
		StockLevel:   stock,
		ReorderLevel: reorder,
	})
	require.NoError(t, err)
	return s
}

func TestAdjustStockRejectsNegativeResult(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 50, 10)

	p, err := s.AdjustStock(ctx, "P1", -45)
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockLevel)
	assert.True(t, p.IsLowStock())

	_, err = s.AdjustStock(ctx, "P1", -6)
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	got, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockLevel, "failed adjustment must not change stock")
}

func TestAdjustStockUnknownProduct(t *testing.T) {
	_, err := New().AdjustStock(context.Background(), "missing", 1)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdjustStockRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 12, 3)

	for _, q := range []int{1, 7, 40} {
		_, err := s.AdjustStock(ctx, "P1", q)
		require.NoError(t, err)
		p, err := s.AdjustStock(ctx, "P1", -q)
		require.NoError(t, err)
		assert.Equal(t, 12, p.StockLevel)
	}
}

func TestConcurrentDecrementsNeverGoNegative(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 100, 0)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 250; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AdjustStock(ctx, "P1", -1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 100, succeeded)
	assert.Equal(t, 0, p.StockLevel)
}

func TestSearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 10, 1)
	_, err := s.UpsertProduct(ctx, domain.Product{ID: "Q-9", Name: "Gadget", Category: "toys"})
	require.NoError(t, err)

	byCategory, err := s.SearchProducts(ctx, "HARD")
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "P1", byCategory[0].ID)

	byID, err := s.SearchProducts(ctx, "q-")
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "Q-9", byID[0].ID)

	none, err := s.SearchProducts(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListLowStockIsComputedAtCallTime(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 11, 10)

	low, err := s.ListLowStock(ctx)
	require.NoError(t, err)
	assert.Empty(t, low)

	_, err = s.AdjustStock(ctx, "P1", -1)
	require.NoError(t, err)

	low, err = s.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
}

func TestStockRequestApproveAppliesOnce(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 5, 10)

	req, err := s.CreateStockRequest(ctx, domain.StockRequest{
		ProductID:   "P1",
		Quantity:    20,
		CostPrice:   dec(t, "5.00"),
		SalePrice:   dec(t, "8.00"),
		RequestedBy: employee,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.True(t, req.ExpectedRevenue.Equal(dec(t, "160")))
	assert.True(t, req.ExpectedProfit.Equal(dec(t, "60")))

	decision := domain.StockRequestDecision{RequestID: req.ID, Status: domain.RequestStatusApproved, DecidedBy: manager}
	approved, err := s.DecideStockRequest(ctx, decision)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, approved.Status)
	require.NotNil(t, approved.DecidedBy)
	assert.Equal(t, manager.ID, approved.DecidedBy.ID)
	require.NotNil(t, approved.DecidedAt)

	_, err = s.DecideStockRequest(ctx, decision)
	require.ErrorIs(t, err, store.ErrInvalidState)

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 25, p.StockLevel)
}

func TestConcurrentApproveSucceedsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 0, 0)
	req, err := s.CreateStockRequest(ctx, domain.StockRequest{ProductID: "P1", Quantity: 3, RequestedBy: employee})
	require.NoError(t, err)

	const callers = 32
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.DecideStockRequest(ctx, domain.StockRequestDecision{
				RequestID: req.ID,
				Status:    domain.RequestStatusApproved,
				DecidedBy: manager,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, store.ErrInvalidState)
	}
	assert.Equal(t, 1, successes)

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockLevel)
}

func TestRejectNeverTouchesStock(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 9, 1)
	req, err := s.CreateStockRequest(ctx, domain.StockRequest{ProductID: "P1", Quantity: 4, RequestedBy: employee})
	require.NoError(t, err)

	rejected, err := s.DecideStockRequest(ctx, domain.StockRequestDecision{RequestID: req.ID, Status: domain.RequestStatusRejected, DecidedBy: manager})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusRejected, rejected.Status)

	_, err = s.DecideStockRequest(ctx, domain.StockRequestDecision{RequestID: req.ID, Status: domain.RequestStatusApproved, DecidedBy: manager})
	require.ErrorIs(t, err, store.ErrInvalidState)

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 9, p.StockLevel)
}

func TestApproveLeavesRequestPendingWhenProductVanished(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 1, 0)
	req, err := s.CreateStockRequest(ctx, domain.StockRequest{ProductID: "P1", Quantity: 2, RequestedBy: employee})
	require.NoError(t, err)

	s.mu.Lock()
	delete(s.products, "P1")
	s.mu.Unlock()

	_, err = s.DecideStockRequest(ctx, domain.StockRequestDecision{RequestID: req.ID, Status: domain.RequestStatusApproved, DecidedBy: manager})
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetStockRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, got.Status)
	assert.Nil(t, got.DecidedBy)
}

func TestCreateStockRequestValidation(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 1, 0)

	_, err := s.CreateStockRequest(ctx, domain.StockRequest{ProductID: "P1", Quantity: 0})
	require.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = s.CreateStockRequest(ctx, domain.StockRequest{ProductID: "nope", Quantity: 1})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.DecideStockRequest(ctx, domain.StockRequestDecision{RequestID: 404, Status: domain.RequestStatusApproved})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListStockRequestsByRequester(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 1, 0)
	other := domain.Account{ID: 8, Name: "Ola", Role: domain.RoleEmployee}

	for _, acct := range []domain.Account{employee, other, employee} {
		_, err := s.CreateStockRequest(ctx, domain.StockRequest{ProductID: "P1", Quantity: 1, RequestedBy: acct})
		require.NoError(t, err)
	}

	mine, err := s.ListStockRequestsByRequester(ctx, employee.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Less(t, mine[0].ID, mine[1].ID)

	all, err := s.ListStockRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordSaleSnapshotsCostAndUpdatesTotals(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 50, 10)
	seller := employee

	sale, err := s.RecordSale(ctx, domain.Sale{ProductID: "P1", Quantity: 3, SalePrice: dec(t, "8.00"), SoldBy: &seller})
	require.NoError(t, err)
	assert.NotEmpty(t, sale.ID)
	assert.Equal(t, "Widget", sale.ProductName)
	assert.True(t, sale.CostPrice.Equal(dec(t, "5.00")))

	_, err = s.UpsertProduct(ctx, domain.Product{ID: "P1", Name: "Widget", UnitPrice: dec(t, "6.00"), StockLevel: 47, ReorderLevel: 10})
	require.NoError(t, err)

	_, err = s.RecordSale(ctx, domain.Sale{ProductID: "P1", Quantity: 2, SalePrice: dec(t, "8.00"), SoldBy: &seller})
	require.NoError(t, err)

	totals, err := s.LedgerTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.SaleCount)
	assert.True(t, totals.TotalRevenue.Equal(dec(t, "40")), totals.TotalRevenue.String())
	// 3*(8-5) + 2*(8-6)
	assert.True(t, totals.TotalProfit.Equal(dec(t, "13")), totals.TotalProfit.String())

	sales, err := s.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.True(t, sales[0].CostPrice.Equal(dec(t, "5.00")), "earlier sale keeps its snapshot")
}

func TestRecordSaleInsufficientStockLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 5, 10)

	_, err := s.RecordSale(ctx, domain.Sale{ProductID: "P1", Quantity: 10, SalePrice: dec(t, "8.00")})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockLevel)

	sales, err := s.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)

	totals, err := s.LedgerTotals(ctx)
	require.NoError(t, err)
	assert.Zero(t, totals.SaleCount)
	assert.True(t, totals.TotalRevenue.IsZero())
}

func TestRecordSaleValidation(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 5, 0)

	_, err := s.RecordSale(ctx, domain.Sale{ProductID: "ghost", Quantity: 0})
	require.ErrorIs(t, err, store.ErrNotFound, "unknown product is reported before quantity")

	_, err = s.RecordSale(ctx, domain.Sale{ProductID: "P1", Quantity: 0})
	require.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestPurchaseOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 0, 0)

	_, err := s.CreatePurchaseOrder(ctx, 99, manager, time.Time{})
	require.ErrorIs(t, err, store.ErrNotFound)

	supplier, err := s.CreateSupplier(ctx, domain.Supplier{Name: " Acme "})
	require.NoError(t, err)
	assert.Equal(t, "Acme", supplier.Name)

	po, err := s.CreatePurchaseOrder(ctx, supplier.ID, manager, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, po.Status)
	assert.Empty(t, po.Items)

	_, err = s.AddPurchaseOrderItem(ctx, po.ID, "P1", 10, dec(t, "2.50"))
	require.NoError(t, err)
	po, err = s.AddPurchaseOrderItem(ctx, po.ID, "P1", 4, dec(t, "1.25"))
	require.NoError(t, err)
	assert.True(t, po.TotalAmount().Equal(dec(t, "30")))

	_, err = s.AddPurchaseOrderItem(ctx, po.ID, "ghost", 1, decimal.Zero)
	require.ErrorIs(t, err, store.ErrNotFound)

	received, err := s.SetPurchaseOrderStatus(ctx, po.ID, domain.OrderStatusReceived)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReceived, received.Status)

	back, err := s.SetPurchaseOrderStatus(ctx, po.ID, domain.OrderStatusCreated)
	require.NoError(t, err, "status is not guarded")
	assert.Equal(t, domain.OrderStatusCreated, back.Status)

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Zero(t, p.StockLevel, "purchase orders do not move stock")
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 0, 0)
	supplier, err := s.CreateSupplier(ctx, domain.Supplier{Name: "Acme"})
	require.NoError(t, err)
	po, err := s.CreatePurchaseOrder(ctx, supplier.ID, manager, time.Time{})
	require.NoError(t, err)
	po, err = s.AddPurchaseOrderItem(ctx, po.ID, "P1", 1, dec(t, "1"))
	require.NoError(t, err)

	po.Items[0].Quantity = 1000

	stored, err := s.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Items[0].Quantity)
}

func TestIngestPathBypassesStockAndAdvancesCounters(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.IngestProduct(ctx, domain.Product{ID: "P1", Name: "Widget", UnitPrice: dec(t, "5"), StockLevel: 3}))
	require.NoError(t, s.IngestSupplier(ctx, domain.Supplier{ID: 41, Name: "Acme"}))
	require.NoError(t, s.IngestPurchaseOrder(ctx, 17, 41, manager, time.Now(), "bogus"))
	require.ErrorIs(t, s.IngestPurchaseOrder(ctx, 18, 999, manager, time.Now(), "CREATED"), store.ErrNotFound)
	require.NoError(t, s.IngestOrderItem(ctx, 17, "P1", 2, dec(t, "4")))
	require.ErrorIs(t, s.IngestOrderItem(ctx, 99, "P1", 2, dec(t, "4")), store.ErrNotFound)
	require.NoError(t, s.IngestStockRequest(ctx, domain.StockRequest{ID: 30, ProductID: "P1", Quantity: 2, Status: domain.RequestStatusApproved}))
	require.NoError(t, s.IngestSale(ctx, domain.Sale{ID: "sale-5", ProductID: "P1", Quantity: 10, SalePrice: dec(t, "8"), CostPrice: dec(t, "5")}))
	require.ErrorIs(t, s.IngestSale(ctx, domain.Sale{ProductID: "ghost", Quantity: 1}), store.ErrNotFound)

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockLevel, "ingest never re-applies stock")

	po, err := s.GetPurchaseOrder(ctx, 17)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, po.Status)
	require.Len(t, po.Items, 1)

	totals, err := s.LedgerTotals(ctx)
	require.NoError(t, err)
	assert.True(t, totals.TotalProfit.Equal(dec(t, "30")))

	supplier, err := s.CreateSupplier(ctx, domain.Supplier{Name: "Next"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), supplier.ID)

	next, err := s.CreatePurchaseOrder(ctx, 41, manager, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(18), next.ID)

	req, err := s.CreateStockRequest(ctx, domain.StockRequest{ProductID: "P1", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(31), req.ID)
}

func TestSeededStoreHasAccounts(t *testing.T) {
	s, err := NewSeeded()
	require.NoError(t, err)

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, domain.RoleManager, users[0].Role)
	assert.Equal(t, domain.RoleEmployee, users[1].Role)
	assert.NotEqual(t, "manager123", users[0].Password, "seed passwords are hashed")

	low, err := s.ListLowStock(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, low)
}

func TestAdjustStockRejectsOverflow(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 5, 0)

	_, err := s.AdjustStock(ctx, "P1", math.MaxInt)
	require.ErrorIs(t, err, store.ErrInvalidArgument)

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockLevel)

	req, err := s.CreateStockRequest(ctx, domain.StockRequest{ProductID: "P1", Quantity: math.MaxInt - 1, RequestedBy: employee})
	require.NoError(t, err)
	_, err = s.DecideStockRequest(ctx, domain.StockRequestDecision{RequestID: req.ID, Status: domain.RequestStatusApproved, DecidedBy: manager})
	require.ErrorIs(t, err, store.ErrInvalidArgument)

	pending, err := s.GetStockRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, pending.Status)
	assert.Nil(t, pending.DecidedBy)
}

func TestProductVersionAdvancesWithEveryChange(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 200, 0)

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	initial := p.Version
	assert.Equal(t, int64(1), initial)

	_, err = s.AdjustStock(ctx, "P1", -500)
	require.ErrorIs(t, err, store.ErrInsufficientStock)
	p, err = s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, initial, p.Version, "rejected change keeps the version")

	const sellers = 50
	versions := make(chan int64, sellers)
	var wg sync.WaitGroup
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			updated, err := s.AdjustStock(ctx, "P1", -1)
			if assert.NoError(t, err) {
				versions <- updated.Version
			}
		}()
	}
	wg.Wait()
	close(versions)

	seen := make(map[int64]bool, sellers)
	for v := range versions {
		assert.False(t, seen[v], "version %d handed out twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, sellers)

	p, err = s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, initial+sellers, p.Version)
	assert.Equal(t, 150, p.StockLevel)
}

func TestConcurrentSalesKeepTotalsEqualToSaleSum(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 1000, 0)
	seller := employee

	const sellers = 64
	var wg sync.WaitGroup
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			price := decimal.NewFromInt(int64(6 + i%4))
			_, err := s.RecordSale(ctx, domain.Sale{ProductID: "P1", Quantity: 1 + i%3, SalePrice: price, SoldBy: &seller})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sales, err := s.ListSales(ctx)
	require.NoError(t, err)
	totals, err := s.LedgerTotals(ctx)
	require.NoError(t, err)

	revenue := decimal.Zero
	profit := decimal.Zero
	units := 0
	for _, sale := range sales {
		revenue = revenue.Add(sale.SalePrice.Mul(decimal.NewFromInt(int64(sale.Quantity))))
		profit = profit.Add(sale.Profit())
		units += sale.Quantity
	}
	assert.Equal(t, sellers, totals.SaleCount)
	assert.Len(t, sales, totals.SaleCount)
	assert.True(t, totals.TotalRevenue.Equal(revenue), "totals %s, sum %s", totals.TotalRevenue, revenue)
	assert.True(t, totals.TotalProfit.Equal(profit), "totals %s, sum %s", totals.TotalProfit, profit)

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 1000-units, p.StockLevel)

	snapshot, snapTotals, err := s.SalesSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot, snapTotals.SaleCount)
}

func TestCustomerStockMovesNeedKnownCustomer(t *testing.T) {
	ctx := context.Background()
	s := newStoreWithProduct(t, 10, 0)

	_, err := s.CreateCustomer(ctx, domain.Customer{Name: "   "})
	require.ErrorIs(t, err, store.ErrInvalidArgument)

	c, err := s.CreateCustomer(ctx, domain.Customer{Name: " Harbor Cafe ", Email: "ops@harbor.test"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "Harbor Cafe", c.Name)

	_, err = s.MoveCustomerStock(ctx, 42, "P1", -3)
	require.ErrorIs(t, err, store.ErrNotFound)
	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.StockLevel)

	p, err = s.MoveCustomerStock(ctx, c.ID, "P1", -4)
	require.NoError(t, err)
	assert.Equal(t, 6, p.StockLevel)

	_, err = s.MoveCustomerStock(ctx, c.ID, "P1", -7)
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	p, err = s.MoveCustomerStock(ctx, c.ID, "P1", 2)
	require.NoError(t, err)
	assert.Equal(t, 8, p.StockLevel)

	_, err = s.GetCustomer(ctx, 42)
	require.ErrorIs(t, err, store.ErrNotFound)
	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
}

func TestReportHistoryIsAppendOnlyAndCopied(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.SaveReport(ctx, domain.StockReport{Kind: "WEEKLY"})
	require.ErrorIs(t, err, store.ErrInvalidArgument)

	lines := []domain.StockReportLine{{ProductID: "P1", Name: "Widget", StockLevel: 2, ReorderLevel: 5, LowStock: true}}
	first, err := s.SaveReport(ctx, domain.StockReport{Kind: domain.ReportKindLowStock, CreatedBy: manager, GeneratedAt: time.Now().UTC(), Lines: lines})
	require.NoError(t, err)
	second, err := s.SaveReport(ctx, domain.StockReport{Kind: domain.ReportKindStockSummary, CreatedBy: manager, GeneratedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	lines[0].StockLevel = 99
	first.Lines[0].Name = "changed"

	reports, err := s.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, domain.ReportKindLowStock, reports[0].Kind)
	assert.Equal(t, 2, reports[0].Lines[0].StockLevel)
	assert.Equal(t, "Widget", reports[0].Lines[0].Name)
	assert.Equal(t, manager.ID, reports[0].CreatedBy.ID)

	reports[0].Lines[0].Name = "mutated"
	again, err := s.ListReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Widget", again[0].Lines[0].Name)
}
