package memory

import (
	"context"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"stockledger/internal/domain"
	"stockledger/internal/store"
	"stockledger/internal/xid"
)

// Store keeps the whole ledger in process memory. A single RWMutex guards all
// maps, so every mutation is serialised with every other one.
type Store struct {
	mu                 sync.RWMutex
	products           map[string]domain.Product
	suppliersByID      map[int64]domain.Supplier
	purchaseOrdersByID map[int64]domain.PurchaseOrder
	stockRequestsByID  map[int64]domain.StockRequest
	sales              []domain.Sale
	totals             domain.LedgerTotals
	usersByUsername    map[string]domain.UserAccount
	customersByID      map[int64]domain.Customer
	reports            []domain.StockReport

	nextSupplierID      int64
	nextPurchaseOrderID int64
	nextStockRequestID  int64
	nextUserID          int64
	nextCustomerID      int64
	nextReportID        int64
}

var (
	_ store.Repository = (*Store)(nil)
	_ store.Ingester   = (*Store)(nil)
)

func New() *Store {
	return &Store{
		products:            make(map[string]domain.Product),
		suppliersByID:       make(map[int64]domain.Supplier),
		purchaseOrdersByID:  make(map[int64]domain.PurchaseOrder),
		stockRequestsByID:   make(map[int64]domain.StockRequest),
		sales:               make([]domain.Sale, 0, 128),
		totals:              domain.LedgerTotals{TotalRevenue: decimal.Zero, TotalProfit: decimal.Zero},
		usersByUsername:     make(map[string]domain.UserAccount),
		customersByID:       make(map[int64]domain.Customer),
		nextSupplierID:      1,
		nextPurchaseOrderID: 1,
		nextStockRequestID:  1,
		nextUserID:          1,
		nextCustomerID:      1,
		nextReportID:        1,
	}
}

// NewSeeded returns a store with demo products, a supplier and one account per
// role. Passwords come from SEED_MANAGER_PASSWORD and SEED_EMPLOYEE_PASSWORD,
// falling back to dev defaults.
func NewSeeded() (*Store, error) {
	s := New()

	products := []domain.Product{
		{ID: "P-1001", Name: "Copy Paper A4", Category: "stationery", UnitPrice: decimal.RequireFromString("4.50"), StockLevel: 80, ReorderLevel: 20},
		{ID: "P-1002", Name: "Ballpoint Pen Blue", Category: "stationery", UnitPrice: decimal.RequireFromString("0.60"), StockLevel: 300, ReorderLevel: 50},
		{ID: "P-2001", Name: "Bottled Water 500ml", Category: "beverage", UnitPrice: decimal.RequireFromString("0.45"), StockLevel: 120, ReorderLevel: 40},
		{ID: "P-2002", Name: "Ground Coffee 250g", Category: "beverage", UnitPrice: decimal.RequireFromString("5.20"), StockLevel: 12, ReorderLevel: 15},
		{ID: "P-3001", Name: "AA Batteries 4-pack", Category: "electronics", UnitPrice: decimal.RequireFromString("3.10"), StockLevel: 45, ReorderLevel: 10},
		{ID: "P-3002", Name: "USB-C Cable 1m", Category: "electronics", UnitPrice: decimal.RequireFromString("2.75"), StockLevel: 8, ReorderLevel: 10},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	s.suppliersByID[1] = domain.Supplier{ID: 1, Name: "Northwind Wholesale", Email: "orders@northwind.example", Phone: "555-0100", CreatedAt: time.Now().UTC()}
	s.nextSupplierID = 2

	for _, u := range []struct {
		username string
		name     string
		env      string
		fallback string
		role     domain.Role
	}{
		{"manager", "Morgan Manager", "SEED_MANAGER_PASSWORD", "manager123", domain.RoleManager},
		{"employee", "Emery Employee", "SEED_EMPLOYEE_PASSWORD", "employee123", domain.RoleEmployee},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(envOr(u.env, u.fallback)), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		if _, err := s.CreateUser(context.Background(), domain.UserAccount{
			Username: u.username,
			Name:     u.name,
			Password: string(hash),
			Role:     u.role,
		}); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) UpsertProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.Version = s.products[product.ID].Version + 1
	s.products[product.ID] = product
	saved := product
	return &saved, nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.adjustStockLocked(productID, delta)
}

// adjustStockLocked is the only place a stock level is written after a product
// exists. The caller must hold s.mu for writing.
func (s *Store) adjustStockLocked(productID string, delta int) (*domain.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	if delta > 0 && product.StockLevel > math.MaxInt-delta {
		return nil, fmt.Errorf("product %s: stock %d plus %d overflows: %w", productID, product.StockLevel, delta, store.ErrInvalidArgument)
	}
	next := product.StockLevel + delta
	if next < 0 {
		return nil, fmt.Errorf("product %s has %d, needs %d: %w", productID, product.StockLevel, -delta, store.ErrInsufficientStock)
	}
	product.StockLevel = next
	product.Version++
	s.products[productID] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	return s.filterProducts(func(domain.Product) bool { return true }), nil
}

func (s *Store) SearchProducts(_ context.Context, keyword string) ([]domain.Product, error) {
	needle := strings.ToLower(keyword)
	return s.filterProducts(func(p domain.Product) bool {
		return strings.Contains(strings.ToLower(p.ID), needle) ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Category), needle)
	}), nil
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.Product, error) {
	return s.filterProducts(domain.Product.IsLowStock), nil
}

func (s *Store) filterProducts(keep func(domain.Product) bool) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if keep(p) {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.ID, b.ID)
	})
	return products
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalidArgument
	}
	supplier.ID = s.nextSupplierID
	s.nextSupplierID++
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	s.suppliersByID[supplier.ID] = supplier
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) GetSupplier(_ context.Context, supplierID int64) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.suppliersByID[supplierID]
	if !ok {
		return nil, fmt.Errorf("supplier %d: %w", supplierID, store.ErrNotFound)
	}
	return &supplier, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, supplier := range s.suppliersByID {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmpInt64(a.ID, b.ID)
	})
	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(_ context.Context, supplierID int64, createdBy domain.Account, createdAt time.Time) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliersByID[supplierID]; !ok {
		return nil, fmt.Errorf("supplier %d: %w", supplierID, store.ErrNotFound)
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	po := domain.PurchaseOrder{
		ID:          s.nextPurchaseOrderID,
		SupplierID:  supplierID,
		CreatedBy:   createdBy,
		CreatedDate: createdAt,
		Status:      domain.OrderStatusCreated,
		Items:       []domain.OrderItem{},
	}
	s.nextPurchaseOrderID++
	s.purchaseOrdersByID[po.ID] = po

	saved := clonePurchaseOrder(po)
	return &saved, nil
}

func (s *Store) AddPurchaseOrderItem(_ context.Context, purchaseOrderID int64, productID string, quantity int, unitPrice decimal.Decimal) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.purchaseOrdersByID[purchaseOrderID]
	if !ok {
		return nil, fmt.Errorf("purchase order %d: %w", purchaseOrderID, store.ErrNotFound)
	}
	product, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}

	po = clonePurchaseOrder(po)
	po.AddItem(domain.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	})
	s.purchaseOrdersByID[po.ID] = po

	updated := clonePurchaseOrder(po)
	return &updated, nil
}

func (s *Store) SetPurchaseOrderStatus(_ context.Context, purchaseOrderID int64, status domain.OrderStatus) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.purchaseOrdersByID[purchaseOrderID]
	if !ok {
		return nil, fmt.Errorf("purchase order %d: %w", purchaseOrderID, store.ErrNotFound)
	}
	po.Status = status
	s.purchaseOrdersByID[po.ID] = po

	updated := clonePurchaseOrder(po)
	return &updated, nil
}

func (s *Store) GetPurchaseOrder(_ context.Context, purchaseOrderID int64) (*domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	po, ok := s.purchaseOrdersByID[purchaseOrderID]
	if !ok {
		return nil, fmt.Errorf("purchase order %d: %w", purchaseOrderID, store.ErrNotFound)
	}
	copyPO := clonePurchaseOrder(po)
	return &copyPO, nil
}

func (s *Store) ListPurchaseOrders(_ context.Context) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PurchaseOrder, 0, len(s.purchaseOrdersByID))
	for _, po := range s.purchaseOrdersByID {
		result = append(result, clonePurchaseOrder(po))
	}
	slices.SortFunc(result, func(a, b domain.PurchaseOrder) int {
		return cmpInt64(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) CreateStockRequest(_ context.Context, req domain.StockRequest) (*domain.StockRequest, error) {
	if req.Quantity < 1 || req.CostPrice.IsNegative() || req.SalePrice.IsNegative() {
		return nil, store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[req.ProductID]; !ok {
		return nil, fmt.Errorf("product %s: %w", req.ProductID, store.ErrNotFound)
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}

	req.ID = s.nextStockRequestID
	s.nextStockRequestID++
	req.ExpectedRevenue, req.ExpectedProfit = domain.ExpectedFigures(req.Quantity, req.CostPrice, req.SalePrice)
	req.Status = domain.RequestStatusPending
	req.DecidedBy = nil
	req.DecidedAt = nil
	s.stockRequestsByID[req.ID] = req

	created := cloneStockRequest(req)
	return &created, nil
}

// DecideStockRequest moves a pending request to its terminal status. For an
// approval the stock increment happens inside the same critical section, so a
// failed increment leaves the request pending and a second decision observes
// the first one.
func (s *Store) DecideStockRequest(_ context.Context, decision domain.StockRequestDecision) (*domain.StockRequest, error) {
	if decision.Status != domain.RequestStatusApproved && decision.Status != domain.RequestStatusRejected {
		return nil, store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.stockRequestsByID[decision.RequestID]
	if !ok {
		return nil, fmt.Errorf("stock request %d: %w", decision.RequestID, store.ErrNotFound)
	}
	if req.Status != domain.RequestStatusPending {
		return nil, fmt.Errorf("stock request %d is %s: %w", req.ID, req.Status, store.ErrInvalidState)
	}

	if decision.Status == domain.RequestStatusApproved {
		if _, err := s.adjustStockLocked(req.ProductID, req.Quantity); err != nil {
			return nil, err
		}
	}

	decidedAt := decision.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}
	decidedBy := decision.DecidedBy
	req.Status = decision.Status
	req.DecidedBy = &decidedBy
	req.DecidedAt = &decidedAt
	s.stockRequestsByID[req.ID] = req

	updated := cloneStockRequest(req)
	return &updated, nil
}

func (s *Store) GetStockRequest(_ context.Context, requestID int64) (*domain.StockRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.stockRequestsByID[requestID]
	if !ok {
		return nil, fmt.Errorf("stock request %d: %w", requestID, store.ErrNotFound)
	}
	copyReq := cloneStockRequest(req)
	return &copyReq, nil
}

func (s *Store) ListStockRequests(_ context.Context) ([]domain.StockRequest, error) {
	return s.filterStockRequests(func(domain.StockRequest) bool { return true }), nil
}

func (s *Store) ListStockRequestsByRequester(_ context.Context, accountID int64) ([]domain.StockRequest, error) {
	return s.filterStockRequests(func(req domain.StockRequest) bool {
		return req.RequestedBy.ID == accountID
	}), nil
}

func (s *Store) filterStockRequests(keep func(domain.StockRequest) bool) []domain.StockRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockRequest, 0, len(s.stockRequestsByID))
	for _, req := range s.stockRequestsByID {
		if keep(req) {
			result = append(result, cloneStockRequest(req))
		}
	}
	slices.SortFunc(result, func(a, b domain.StockRequest) int {
		return cmpInt64(a.ID, b.ID)
	})
	return result
}

// RecordSale snapshots the product's current unit price as the cost price,
// decrements stock and appends the sale. Nothing is written when the stock
// check fails.
func (s *Store) RecordSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[sale.ProductID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", sale.ProductID, store.ErrNotFound)
	}
	if sale.Quantity < 1 || sale.SalePrice.IsNegative() {
		return nil, store.ErrInvalidArgument
	}
	if _, err := s.adjustStockLocked(sale.ProductID, -sale.Quantity); err != nil {
		return nil, err
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now().UTC()
	}
	sale.ProductName = product.Name
	sale.CostPrice = product.UnitPrice
	sale.SoldBy = cloneAccount(sale.SoldBy)
	s.appendSaleLocked(sale)

	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) appendSaleLocked(sale domain.Sale) {
	s.sales = append(s.sales, sale)
	s.totals.TotalRevenue = s.totals.TotalRevenue.Add(sale.Revenue())
	s.totals.TotalProfit = s.totals.TotalProfit.Add(sale.Profit())
	s.totals.SaleCount++
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, len(s.sales))
	for i, sale := range s.sales {
		result[i] = cloneSale(sale)
	}
	return result, nil
}

func (s *Store) LedgerTotals(_ context.Context) (domain.LedgerTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.totals, nil
}

func (s *Store) SalesSnapshot(_ context.Context) ([]domain.Sale, domain.LedgerTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, len(s.sales))
	for i, sale := range s.sales {
		result[i] = cloneSale(sale)
	}
	return result, s.totals, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalidArgument
	}
	customer.ID = s.nextCustomerID
	s.nextCustomerID++
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(_ context.Context, customerID int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customersByID[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", customerID, store.ErrNotFound)
	}
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, customer := range s.customersByID {
		customers = append(customers, customer)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpInt64(a.ID, b.ID)
	})
	return customers, nil
}

// MoveCustomerStock checks the customer and applies the stock delta in one
// critical section. Negative deltas issue goods, positive ones take returns.
func (s *Store) MoveCustomerStock(_ context.Context, customerID int64, productID string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customersByID[customerID]; !ok {
		return nil, fmt.Errorf("customer %d: %w", customerID, store.ErrNotFound)
	}
	return s.adjustStockLocked(productID, delta)
}

// SaveReport appends a generated report to the history and assigns its id.
func (s *Store) SaveReport(_ context.Context, report domain.StockReport) (*domain.StockReport, error) {
	if report.Kind != domain.ReportKindStockSummary && report.Kind != domain.ReportKindLowStock {
		return nil, store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report.ID = s.nextReportID
	s.nextReportID++
	report = cloneReport(report)
	s.reports = append(s.reports, report)

	saved := cloneReport(report)
	return &saved, nil
}

func (s *Store) ListReports(_ context.Context) ([]domain.StockReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockReport, len(s.reports))
	for i, report := range s.reports {
		result[i] = cloneReport(report)
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidArgument
	}
	if _, exists := s.usersByUsername[username]; exists {
		return nil, store.ErrInvalidArgument
	}
	if user.Role == "" {
		user.Role = domain.RoleEmployee
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.ID > 0 {
		for _, existing := range s.usersByUsername {
			if existing.ID == user.ID {
				return nil, store.ErrInvalidArgument
			}
		}
		s.nextUserID = max(s.nextUserID, user.ID+1)
	} else {
		user.ID = s.nextUserID
		s.nextUserID++
	}
	user.Username = username
	user.Active = true
	s.usersByUsername[username] = user

	created := user
	return &created, nil
}

// ReserveUserID hands out an account id without creating the account, so a
// durable copy can be written before the in-memory one.
func (s *Store) ReserveUserID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextUserID
	s.nextUserID++
	return id, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpInt64(a.ID, b.ID)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidArgument
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpInt64(a int64, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func clonePurchaseOrder(src domain.PurchaseOrder) domain.PurchaseOrder {
	dup := src
	items := make([]domain.OrderItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}

func cloneStockRequest(src domain.StockRequest) domain.StockRequest {
	dup := src
	dup.DecidedBy = cloneAccount(src.DecidedBy)
	if src.DecidedAt != nil {
		at := *src.DecidedAt
		dup.DecidedAt = &at
	}
	return dup
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	dup.SoldBy = cloneAccount(src.SoldBy)
	return dup
}

func cloneReport(src domain.StockReport) domain.StockReport {
	dup := src
	dup.Lines = slices.Clone(src.Lines)
	return dup
}

func cloneAccount(src *domain.Account) *domain.Account {
	if src == nil {
		return nil
	}
	dup := *src
	return &dup
}
