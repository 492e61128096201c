package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
)

// Repository is the owned ledger state. Every stock change, including the ones
// triggered by approvals and sales, goes through the same check-and-set inside
// the implementation; callers only ever receive copies.
type Repository interface {
	UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) (*domain.Product, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error)
	ListLowStock(ctx context.Context) ([]domain.Product, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplier(ctx context.Context, supplierID int64) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)

	CreatePurchaseOrder(ctx context.Context, supplierID int64, createdBy domain.Account, createdAt time.Time) (*domain.PurchaseOrder, error)
	AddPurchaseOrderItem(ctx context.Context, purchaseOrderID int64, productID string, quantity int, unitPrice decimal.Decimal) (*domain.PurchaseOrder, error)
	SetPurchaseOrderStatus(ctx context.Context, purchaseOrderID int64, status domain.OrderStatus) (*domain.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, purchaseOrderID int64) (*domain.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error)

	CreateStockRequest(ctx context.Context, req domain.StockRequest) (*domain.StockRequest, error)
	DecideStockRequest(ctx context.Context, decision domain.StockRequestDecision) (*domain.StockRequest, error)
	GetStockRequest(ctx context.Context, requestID int64) (*domain.StockRequest, error)
	ListStockRequests(ctx context.Context) ([]domain.StockRequest, error)
	ListStockRequestsByRequester(ctx context.Context, accountID int64) ([]domain.StockRequest, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	MoveCustomerStock(ctx context.Context, customerID int64, productID string, delta int) (*domain.Product, error)

	SaveReport(ctx context.Context, report domain.StockReport) (*domain.StockReport, error)
	ListReports(ctx context.Context) ([]domain.StockReport, error)

	RecordSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	LedgerTotals(ctx context.Context) (domain.LedgerTotals, error)
	// SalesSnapshot returns the sales and the totals read under one lock, so
	// the totals always describe exactly the returned sales.
	SalesSnapshot(ctx context.Context) ([]domain.Sale, domain.LedgerTotals, error)

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// Ingester is the raw load path used when rebuilding state from persistent
// storage. It skips business validation and never touches stock levels beyond
// the values it is given. Records that reference missing parents are skipped
// with ErrNotFound.
type Ingester interface {
	IngestProduct(ctx context.Context, product domain.Product) error
	IngestSupplier(ctx context.Context, supplier domain.Supplier) error
	IngestPurchaseOrder(ctx context.Context, id int64, supplierID int64, createdBy domain.Account, createdDate time.Time, status string) error
	IngestOrderItem(ctx context.Context, purchaseOrderID int64, productID string, quantity int, unitPrice decimal.Decimal) error
	IngestStockRequest(ctx context.Context, req domain.StockRequest) error
	IngestSale(ctx context.Context, sale domain.Sale) error
	IngestUser(ctx context.Context, user domain.UserAccount) error
	IngestCustomer(ctx context.Context, customer domain.Customer) error
	IngestReport(ctx context.Context, report domain.StockReport) error
}

// Journal receives committed state so it can be written to durable storage.
// Failures are reported to the caller but never roll back the ledger.
type Journal interface {
	SaveProduct(ctx context.Context, product domain.Product) error
	SaveSupplier(ctx context.Context, supplier domain.Supplier) error
	SavePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error
	SaveStockRequest(ctx context.Context, req domain.StockRequest) error
	SaveSale(ctx context.Context, sale domain.Sale) error
	SaveCustomer(ctx context.Context, customer domain.Customer) error
	SaveReport(ctx context.Context, report domain.StockReport) error
}

type NoopJournal struct{}

func (NoopJournal) SaveProduct(_ context.Context, _ domain.Product) error             { return nil }
func (NoopJournal) SaveSupplier(_ context.Context, _ domain.Supplier) error           { return nil }
func (NoopJournal) SavePurchaseOrder(_ context.Context, _ domain.PurchaseOrder) error { return nil }
func (NoopJournal) SaveStockRequest(_ context.Context, _ domain.StockRequest) error   { return nil }
func (NoopJournal) SaveSale(_ context.Context, _ domain.Sale) error                   { return nil }
func (NoopJournal) SaveCustomer(_ context.Context, _ domain.Customer) error           { return nil }
func (NoopJournal) SaveReport(_ context.Context, _ domain.StockReport) error          { return nil }
