package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockledger/internal/domain"
	"stockledger/internal/performance"
	"stockledger/internal/store"
	"stockledger/internal/xid"
)

var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Account) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Account, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Account)
	return actor, ok
}

type Option func(*Service)

// WithClock overrides the time source used for request, sale and order dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how sale identifiers are minted.
func WithIDGenerator(newID func(prefix string) string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

type Service struct {
	repo        store.Repository
	journal     store.Journal
	performance *performance.Engine
	logger      *zap.Logger
	now         func() time.Time
	newID       func(prefix string) string
}

func New(repo store.Repository, journal store.Journal, perf *performance.Engine, logger *zap.Logger, opts ...Option) *Service {
	if journal == nil {
		journal = store.NoopJournal{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if perf == nil {
		perf = performance.NewEngine(nil, 0, performance.DefaultCommissionRate, logger)
	}

	s := &Service{
		repo:        repo,
		journal:     journal,
		performance: perf,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       xid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireRole(ctx context.Context, roles ...domain.Role) (domain.Account, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Account{}, fmt.Errorf("authenticated account required: %w", ErrForbidden)
	}
	if len(roles) == 0 {
		return actor, nil
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return domain.Account{}, fmt.Errorf("%s role required: %w", roles[0], ErrForbidden)
}

func (s *Service) UpsertProduct(ctx context.Context, req domain.ProductUpsertRequest) (domain.Product, error) {
	actor, err := requireRole(ctx, domain.RoleManager)
	if err != nil {
		return domain.Product{}, err
	}

	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.ID == "" || req.Name == "" {
		return domain.Product{}, store.ErrInvalidArgument
	}
	if req.UnitPrice.IsNegative() || req.StockLevel < 0 || req.ReorderLevel < 0 {
		return domain.Product{}, store.ErrInvalidArgument
	}

	saved, err := s.repo.UpsertProduct(ctx, domain.Product{
		ID:           req.ID,
		Name:         req.Name,
		Category:     req.Category,
		UnitPrice:    req.UnitPrice,
		StockLevel:   req.StockLevel,
		ReorderLevel: req.ReorderLevel,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("product_upserted",
		zap.String("product_id", saved.ID),
		zap.String("unit_price", saved.UnitPrice.String()),
		zap.Int("stock_level", saved.StockLevel),
		zap.Int64("actor_id", actor.ID),
	)
	s.persistProduct(ctx, *saved)
	return *saved, nil
}

// AdjustStock applies a signed delta to a product's stock level.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) (domain.Product, error) {
	actor, err := requireRole(ctx, domain.RoleManager)
	if err != nil {
		return domain.Product{}, err
	}

	updated, err := s.repo.AdjustStock(ctx, strings.TrimSpace(productID), delta)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("stock_adjusted",
		zap.String("product_id", updated.ID),
		zap.Int("delta", delta),
		zap.Int("stock_level", updated.StockLevel),
		zap.Bool("low_stock", updated.IsLowStock()),
		zap.Int64("actor_id", actor.ID),
	)
	s.persistProduct(ctx, *updated)
	return *updated, nil
}

func (s *Service) IncreaseStock(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	if quantity < 1 {
		return domain.Product{}, store.ErrInvalidArgument
	}
	return s.AdjustStock(ctx, productID, quantity)
}

func (s *Service) DecreaseStock(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	if quantity < 1 {
		return domain.Product{}, store.ErrInvalidArgument
	}
	return s.AdjustStock(ctx, productID, -quantity)
}

func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error) {
	return s.repo.SearchProducts(ctx, strings.TrimSpace(keyword))
}

func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStock(ctx)
}

// StockSummary generates a report over every product and appends it to the
// report history.
func (s *Service) StockSummary(ctx context.Context) (domain.StockReport, error) {
	actor, err := requireRole(ctx, domain.RoleManager)
	if err != nil {
		return domain.StockReport{}, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.StockReport{}, err
	}
	return s.storeReport(ctx, s.buildReport(domain.ReportKindStockSummary, actor, products))
}

func (s *Service) LowStockReport(ctx context.Context) (domain.StockReport, error) {
	actor, err := requireRole(ctx, domain.RoleManager)
	if err != nil {
		return domain.StockReport{}, err
	}
	products, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return domain.StockReport{}, err
	}
	return s.storeReport(ctx, s.buildReport(domain.ReportKindLowStock, actor, products))
}

// ListReports returns every generated report, oldest first.
func (s *Service) ListReports(ctx context.Context) ([]domain.StockReport, error) {
	if _, err := requireRole(ctx, domain.RoleManager); err != nil {
		return nil, err
	}
	return s.repo.ListReports(ctx)
}

func (s *Service) storeReport(ctx context.Context, report domain.StockReport) (domain.StockReport, error) {
	saved, err := s.repo.SaveReport(ctx, report)
	if err != nil {
		return domain.StockReport{}, err
	}

	s.logger.Info("report_generated",
		zap.Int64("report_id", saved.ID),
		zap.String("kind", saved.Kind),
		zap.Int("lines", len(saved.Lines)),
		zap.Int64("actor_id", saved.CreatedBy.ID),
	)
	if err := s.journal.SaveReport(ctx, *saved); err != nil {
		s.logger.Warn("journal save report failed", zap.Int64("report_id", saved.ID), zap.Error(err))
	}
	return *saved, nil
}

func (s *Service) buildReport(kind string, actor domain.Account, products []domain.Product) domain.StockReport {
	lines := make([]domain.StockReportLine, 0, len(products))
	for _, p := range products {
		lines = append(lines, domain.StockReportLine{
			ProductID:    p.ID,
			Name:         p.Name,
			StockLevel:   p.StockLevel,
			ReorderLevel: p.ReorderLevel,
			UnitPrice:    p.UnitPrice,
			LowStock:     p.IsLowStock(),
		})
	}
	return domain.StockReport{Kind: kind, CreatedBy: actor, GeneratedAt: s.now(), Lines: lines}
}

func (s *Service) AddCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrInvalidArgument
	}

	saved, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:      req.Name,
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logger.Info("customer_created", zap.Int64("customer_id", saved.ID), zap.Int64("actor_id", actor.ID))
	if err := s.journal.SaveCustomer(ctx, *saved); err != nil {
		s.logger.Warn("journal save customer failed", zap.Int64("customer_id", saved.ID), zap.Error(err))
	}
	return *saved, nil
}

func (s *Service) GetCustomer(ctx context.Context, customerID int64) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// IssueProducts hands stock out to a known customer.
func (s *Service) IssueProducts(ctx context.Context, customerID int64, req domain.CustomerStockMovement) (domain.Product, error) {
	if req.Quantity < 1 {
		return domain.Product{}, store.ErrInvalidArgument
	}
	return s.moveCustomerStock(ctx, customerID, req.ProductID, -req.Quantity, "products_issued")
}

// ReturnProducts takes stock back from a known customer.
func (s *Service) ReturnProducts(ctx context.Context, customerID int64, req domain.CustomerStockMovement) (domain.Product, error) {
	if req.Quantity < 1 {
		return domain.Product{}, store.ErrInvalidArgument
	}
	return s.moveCustomerStock(ctx, customerID, req.ProductID, req.Quantity, "products_returned")
}

func (s *Service) moveCustomerStock(ctx context.Context, customerID int64, productID string, delta int, event string) (domain.Product, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	updated, err := s.repo.MoveCustomerStock(ctx, customerID, strings.TrimSpace(productID), delta)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info(event,
		zap.Int64("customer_id", customerID),
		zap.String("product_id", updated.ID),
		zap.Int("delta", delta),
		zap.Int("stock_level", updated.StockLevel),
		zap.Int64("actor_id", actor.ID),
	)
	s.persistProduct(ctx, *updated)
	return *updated, nil
}

func (s *Service) AddSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if _, err := requireRole(ctx, domain.RoleManager); err != nil {
		return domain.Supplier{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, store.ErrInvalidArgument
	}

	saved, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:      req.Name,
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logger.Info("supplier_created", zap.Int64("supplier_id", saved.ID), zap.String("name", saved.Name))
	if err := s.journal.SaveSupplier(ctx, *saved); err != nil {
		s.logger.Warn("journal save supplier failed", zap.Int64("supplier_id", saved.ID), zap.Error(err))
	}
	return *saved, nil
}

func (s *Service) GetSupplier(ctx context.Context, supplierID int64) (domain.Supplier, error) {
	supplier, err := s.repo.GetSupplier(ctx, supplierID)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *supplier, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrderResponse, error) {
	actor, err := requireRole(ctx, domain.RoleManager)
	if err != nil {
		return domain.PurchaseOrderResponse{}, err
	}

	po, err := s.repo.CreatePurchaseOrder(ctx, req.SupplierID, actor, s.now())
	if err != nil {
		return domain.PurchaseOrderResponse{}, err
	}

	s.logger.Info("purchase_order_created",
		zap.Int64("purchase_order_id", po.ID),
		zap.Int64("supplier_id", po.SupplierID),
		zap.Int64("actor_id", actor.ID),
	)
	s.persistPurchaseOrder(ctx, *po)
	return toPurchaseOrderResponse(*po), nil
}

func (s *Service) AddPurchaseOrderItem(ctx context.Context, purchaseOrderID int64, req domain.PurchaseOrderItemRequest) (domain.PurchaseOrderResponse, error) {
	if _, err := requireRole(ctx, domain.RoleManager); err != nil {
		return domain.PurchaseOrderResponse{}, err
	}
	if req.Quantity < 1 || req.UnitPrice.IsNegative() {
		return domain.PurchaseOrderResponse{}, store.ErrInvalidArgument
	}

	po, err := s.repo.AddPurchaseOrderItem(ctx, purchaseOrderID, strings.TrimSpace(req.ProductID), req.Quantity, req.UnitPrice)
	if err != nil {
		return domain.PurchaseOrderResponse{}, err
	}

	s.logger.Info("purchase_order_item_added",
		zap.Int64("purchase_order_id", po.ID),
		zap.String("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity),
	)
	s.persistPurchaseOrder(ctx, *po)
	return toPurchaseOrderResponse(*po), nil
}

// SetPurchaseOrderStatus accepts any known status from any current status.
func (s *Service) SetPurchaseOrderStatus(ctx context.Context, purchaseOrderID int64, req domain.PurchaseOrderStatusRequest) (domain.PurchaseOrderResponse, error) {
	if _, err := requireRole(ctx, domain.RoleManager); err != nil {
		return domain.PurchaseOrderResponse{}, err
	}
	status, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		return domain.PurchaseOrderResponse{}, fmt.Errorf("order status %q: %w", req.Status, store.ErrInvalidArgument)
	}

	po, err := s.repo.SetPurchaseOrderStatus(ctx, purchaseOrderID, status)
	if err != nil {
		return domain.PurchaseOrderResponse{}, err
	}

	s.logger.Info("purchase_order_status_set", zap.Int64("purchase_order_id", po.ID), zap.String("status", string(po.Status)))
	s.persistPurchaseOrder(ctx, *po)
	return toPurchaseOrderResponse(*po), nil
}

func (s *Service) GetPurchaseOrder(ctx context.Context, purchaseOrderID int64) (domain.PurchaseOrderResponse, error) {
	po, err := s.repo.GetPurchaseOrder(ctx, purchaseOrderID)
	if err != nil {
		return domain.PurchaseOrderResponse{}, err
	}
	return toPurchaseOrderResponse(*po), nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrderResponse, error) {
	pos, err := s.repo.ListPurchaseOrders(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.PurchaseOrderResponse, 0, len(pos))
	for _, po := range pos {
		result = append(result, toPurchaseOrderResponse(po))
	}
	return result, nil
}

func toPurchaseOrderResponse(po domain.PurchaseOrder) domain.PurchaseOrderResponse {
	return domain.PurchaseOrderResponse{PurchaseOrder: po, TotalAmount: po.TotalAmount()}
}

func (s *Service) SubmitStockRequest(ctx context.Context, req domain.StockRequestSubmitRequest) (domain.StockRequest, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return domain.StockRequest{}, err
	}

	created, err := s.repo.CreateStockRequest(ctx, domain.StockRequest{
		ProductID:   strings.TrimSpace(req.ProductID),
		Quantity:    req.Quantity,
		CostPrice:   req.CostPrice,
		SalePrice:   req.SalePrice,
		RequestedBy: actor,
		RequestedAt: s.now(),
	})
	if err != nil {
		return domain.StockRequest{}, err
	}

	s.logger.Info("stock_request_submitted",
		zap.Int64("request_id", created.ID),
		zap.String("product_id", created.ProductID),
		zap.Int("quantity", created.Quantity),
		zap.String("expected_profit", created.ExpectedProfit.String()),
		zap.Int64("actor_id", actor.ID),
	)
	s.persistStockRequest(ctx, *created)
	return *created, nil
}

func (s *Service) ApproveStockRequest(ctx context.Context, requestID int64) (domain.StockRequest, error) {
	return s.decideStockRequest(ctx, requestID, domain.RequestStatusApproved)
}

func (s *Service) RejectStockRequest(ctx context.Context, requestID int64) (domain.StockRequest, error) {
	return s.decideStockRequest(ctx, requestID, domain.RequestStatusRejected)
}

func (s *Service) decideStockRequest(ctx context.Context, requestID int64, status domain.RequestStatus) (domain.StockRequest, error) {
	actor, err := requireRole(ctx, domain.RoleManager)
	if err != nil {
		return domain.StockRequest{}, err
	}

	decided, err := s.repo.DecideStockRequest(ctx, domain.StockRequestDecision{
		RequestID: requestID,
		Status:    status,
		DecidedBy: actor,
		DecidedAt: s.now(),
	})
	if err != nil {
		return domain.StockRequest{}, err
	}

	event := "stock_request_rejected"
	if status == domain.RequestStatusApproved {
		event = "stock_request_approved"
	}
	s.logger.Info(event,
		zap.Int64("request_id", decided.ID),
		zap.String("product_id", decided.ProductID),
		zap.Int("quantity", decided.Quantity),
		zap.Int64("actor_id", actor.ID),
	)
	s.persistStockRequest(ctx, *decided)
	if status == domain.RequestStatusApproved {
		if product, err := s.repo.GetProduct(ctx, decided.ProductID); err == nil {
			s.persistProduct(ctx, *product)
		}
	}
	return *decided, nil
}

func (s *Service) GetStockRequest(ctx context.Context, requestID int64) (domain.StockRequest, error) {
	req, err := s.repo.GetStockRequest(ctx, requestID)
	if err != nil {
		return domain.StockRequest{}, err
	}
	return *req, nil
}

func (s *Service) ListStockRequests(ctx context.Context) ([]domain.StockRequest, error) {
	return s.repo.ListStockRequests(ctx)
}

// ListMyStockRequests returns the requests filed by the calling account.
func (s *Service) ListMyStockRequests(ctx context.Context) ([]domain.StockRequest, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListStockRequestsByRequester(ctx, actor.ID)
}

func (s *Service) RecordSale(ctx context.Context, req domain.SaleRecordRequest) (domain.Sale, error) {
	actor, err := requireRole(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	seller := actor
	sale, err := s.repo.RecordSale(ctx, domain.Sale{
		ID:        s.newID("sale"),
		ProductID: strings.TrimSpace(req.ProductID),
		Quantity:  req.Quantity,
		SalePrice: req.SalePrice,
		SaleDate:  s.now(),
		SoldBy:    &seller,
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.logger.Info("sale_recorded",
		zap.String("sale_id", sale.ID),
		zap.String("product_id", sale.ProductID),
		zap.Int("quantity", sale.Quantity),
		zap.String("revenue", sale.Revenue().String()),
		zap.String("profit", sale.Profit().String()),
		zap.Int64("actor_id", actor.ID),
	)
	if err := s.journal.SaveSale(ctx, *sale); err != nil {
		s.logger.Warn("journal save sale failed", zap.String("sale_id", sale.ID), zap.Error(err))
	}
	if product, err := s.repo.GetProduct(ctx, sale.ProductID); err == nil {
		s.persistProduct(ctx, *product)
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) LedgerTotals(ctx context.Context) (domain.LedgerTotals, error) {
	return s.repo.LedgerTotals(ctx)
}

func (s *Service) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	totals, err := s.repo.LedgerTotals(ctx)
	return totals.TotalRevenue, err
}

func (s *Service) TotalProfit(ctx context.Context) (decimal.Decimal, error) {
	totals, err := s.repo.LedgerTotals(ctx)
	return totals.TotalProfit, err
}

func (s *Service) EmployeeStats(ctx context.Context) ([]domain.EmployeeStats, error) {
	sales, totals, err := s.repo.SalesSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.performance.Compute(ctx, sales, totals), nil
}

func (s *Service) PerformanceSummary(ctx context.Context) (domain.PerformanceSummary, error) {
	if _, err := requireRole(ctx, domain.RoleManager); err != nil {
		return domain.PerformanceSummary{}, err
	}

	stats, err := s.EmployeeStats(ctx)
	if err != nil {
		return domain.PerformanceSummary{}, err
	}

	summary := domain.PerformanceSummary{Stats: stats, GeneratedAt: s.now()}
	if top, ok := performance.TopPerformer(stats); ok {
		summary.Top = &top
	}
	return summary, nil
}

func (s *Service) persistProduct(ctx context.Context, product domain.Product) {
	if err := s.journal.SaveProduct(ctx, product); err != nil {
		s.logger.Warn("journal save product failed", zap.String("product_id", product.ID), zap.Error(err))
	}
}

func (s *Service) persistPurchaseOrder(ctx context.Context, po domain.PurchaseOrder) {
	if err := s.journal.SavePurchaseOrder(ctx, po); err != nil {
		s.logger.Warn("journal save purchase order failed", zap.Int64("purchase_order_id", po.ID), zap.Error(err))
	}
}

func (s *Service) persistStockRequest(ctx context.Context, req domain.StockRequest) {
	if err := s.journal.SaveStockRequest(ctx, req); err != nil {
		s.logger.Warn("journal save stock request failed", zap.Int64("request_id", req.ID), zap.Error(err))
	}
}
