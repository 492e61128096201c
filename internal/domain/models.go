package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleManager:
		return RoleManager, true
	case RoleEmployee:
		return RoleEmployee, true
	default:
		return "", false
	}
}

// Account is the authenticated principal handed to the engine by the auth layer.
// The engine only reads it for attribution and for the employee filter in
// performance stats.
type Account struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	StockLevel   int             `json:"stock_level"`
	ReorderLevel int             `json:"reorder_level"`
	// Version increases with every committed change to the product.
	Version      int64           `json:"version"`
}

func (p Product) IsLowStock() bool {
	return p.StockLevel <= p.ReorderLevel
}

type ProductUpsertRequest struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	StockLevel   int             `json:"stock_level"`
	ReorderLevel int             `json:"reorder_level"`
}

type StockAdjustRequest struct {
	Quantity int `json:"quantity"`
}

type StockReportLine struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	StockLevel   int             `json:"stock_level"`
	ReorderLevel int             `json:"reorder_level"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LowStock     bool            `json:"low_stock"`
}

// StockReport is an immutable snapshot; once stored it is only ever listed.
type StockReport struct {
	ID          int64             `json:"id"`
	Kind        string            `json:"kind"`
	CreatedBy   Account           `json:"created_by"`
	GeneratedAt time.Time         `json:"generated_at"`
	Lines       []StockReportLine `json:"lines"`
}

const (
	ReportKindStockSummary = "STOCK_SUMMARY"
	ReportKindLowStock     = "LOW_STOCK"
)

type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CustomerStockMovement is the body of an issue or return against a customer.
type CustomerStockMovement struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderStatus string

const (
	OrderStatusCreated        OrderStatus = "CREATED"
	OrderStatusSentToSupplier OrderStatus = "SENT_TO_SUPPLIER"
	OrderStatusReceived       OrderStatus = "RECEIVED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch OrderStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case OrderStatusCreated:
		return OrderStatusCreated, true
	case OrderStatusSentToSupplier:
		return OrderStatusSentToSupplier, true
	case OrderStatusReceived:
		return OrderStatusReceived, true
	case OrderStatusCancelled:
		return OrderStatusCancelled, true
	default:
		return "", false
	}
}

// OrderItem captures quantity and unit price at the moment it is added; later
// product price changes do not affect it.
type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type PurchaseOrder struct {
	ID          int64       `json:"id"`
	SupplierID  int64       `json:"supplier_id"`
	CreatedBy   Account     `json:"created_by"`
	CreatedDate time.Time   `json:"created_date"`
	Status      OrderStatus `json:"status"`
	Items       []OrderItem `json:"items"`
}

func (po *PurchaseOrder) AddItem(item OrderItem) {
	po.Items = append(po.Items, item)
}

// TotalAmount is recomputed from the items on every call.
func (po PurchaseOrder) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range po.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

type PurchaseOrderCreateRequest struct {
	SupplierID int64 `json:"supplier_id"`
}

type PurchaseOrderItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PurchaseOrderStatusRequest struct {
	Status string `json:"status"`
}

type PurchaseOrderResponse struct {
	PurchaseOrder PurchaseOrder   `json:"purchase_order"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

type StockRequest struct {
	ID              int64           `json:"id"`
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	ExpectedRevenue decimal.Decimal `json:"expected_revenue"`
	ExpectedProfit  decimal.Decimal `json:"expected_profit"`
	RequestedBy     Account         `json:"requested_by"`
	DecidedBy       *Account        `json:"decided_by,omitempty"`
	Status          RequestStatus   `json:"status"`
	RequestedAt     time.Time       `json:"requested_at"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
}

// ExpectedFigures returns the revenue and profit a restock is projected to
// bring in at the given per-unit prices.
func ExpectedFigures(quantity int, costPrice decimal.Decimal, salePrice decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	qty := decimal.NewFromInt(int64(quantity))
	return salePrice.Mul(qty), salePrice.Sub(costPrice).Mul(qty)
}

type StockRequestSubmitRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SalePrice decimal.Decimal `json:"sale_price"`
}

type StockRequestDecision struct {
	RequestID int64
	Status    RequestStatus
	DecidedBy Account
	DecidedAt time.Time
}

type Sale struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	SaleDate    time.Time       `json:"sale_date"`
	SoldBy      *Account        `json:"sold_by,omitempty"`
}

func (s Sale) Revenue() decimal.Decimal {
	return s.SalePrice.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

func (s Sale) Profit() decimal.Decimal {
	return s.SalePrice.Sub(s.CostPrice).Mul(decimal.NewFromInt(int64(s.Quantity)))
}

type SaleRecordRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	SalePrice decimal.Decimal `json:"sale_price"`
}

type LedgerTotals struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	SaleCount    int             `json:"sale_count"`
}

type EmployeeStats struct {
	Employee     Account         `json:"employee"`
	SaleCount    int             `json:"sale_count"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	Commission   decimal.Decimal `json:"commission"`
	Salary       decimal.Decimal `json:"salary"`
}

type PerformanceSummary struct {
	Stats       []EmployeeStats `json:"stats"`
	Top         *EmployeeStats  `json:"top,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	Account     Account `json:"account"`
	ExpiresAt   string  `json:"expires_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID        int64
	Username  string
	Name      string
	Password  string
	Role      Role
	Active    bool
	CreatedAt time.Time
}

func (u UserAccount) Account() Account {
	return Account{ID: u.ID, Name: u.Name, Role: u.Role}
}
