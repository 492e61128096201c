package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/domain"
	"stockledger/internal/store"
	"stockledger/internal/xid"
)

// The Ingest* methods rebuild state from durable rows. Stock levels are taken
// as given and id counters advance past every ingested key.

func (s *Store) IngestProduct(_ context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[product.ID] = product
	return nil
}

func (s *Store) IngestSupplier(_ context.Context, supplier domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.suppliersByID[supplier.ID] = supplier
	s.nextSupplierID = max(s.nextSupplierID, supplier.ID+1)
	return nil
}

// IngestPurchaseOrder falls back to CREATED when the stored status is not one
// of the known values.
func (s *Store) IngestPurchaseOrder(_ context.Context, id int64, supplierID int64, createdBy domain.Account, createdDate time.Time, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliersByID[supplierID]; !ok {
		return fmt.Errorf("supplier %d: %w", supplierID, store.ErrNotFound)
	}
	parsed, ok := domain.ParseOrderStatus(status)
	if !ok {
		parsed = domain.OrderStatusCreated
	}

	existing := s.purchaseOrdersByID[id]
	s.purchaseOrdersByID[id] = domain.PurchaseOrder{
		ID:          id,
		SupplierID:  supplierID,
		CreatedBy:   createdBy,
		CreatedDate: createdDate,
		Status:      parsed,
		Items:       existing.Items,
	}
	s.nextPurchaseOrderID = max(s.nextPurchaseOrderID, id+1)
	return nil
}

func (s *Store) IngestOrderItem(_ context.Context, purchaseOrderID int64, productID string, quantity int, unitPrice decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.purchaseOrdersByID[purchaseOrderID]
	if !ok {
		return fmt.Errorf("purchase order %d: %w", purchaseOrderID, store.ErrNotFound)
	}
	product, ok := s.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}

	po = clonePurchaseOrder(po)
	po.AddItem(domain.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	})
	s.purchaseOrdersByID[po.ID] = po
	return nil
}

func (s *Store) IngestStockRequest(_ context.Context, req domain.StockRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[req.ProductID]; !ok {
		return fmt.Errorf("product %s: %w", req.ProductID, store.ErrNotFound)
	}
	if req.Status == "" {
		req.Status = domain.RequestStatusPending
	}
	req.ExpectedRevenue, req.ExpectedProfit = domain.ExpectedFigures(req.Quantity, req.CostPrice, req.SalePrice)
	s.stockRequestsByID[req.ID] = cloneStockRequest(req)
	s.nextStockRequestID = max(s.nextStockRequestID, req.ID+1)
	return nil
}

// IngestSale appends a historical sale and updates the running totals. Stock
// is not touched since the persisted stock level already reflects it.
func (s *Store) IngestSale(_ context.Context, sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[sale.ProductID]
	if !ok {
		return fmt.Errorf("product %s: %w", sale.ProductID, store.ErrNotFound)
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.ProductName == "" {
		sale.ProductName = product.Name
	}
	sale.SoldBy = cloneAccount(sale.SoldBy)
	s.appendSaleLocked(sale)
	return nil
}

func (s *Store) IngestUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = username
	s.usersByUsername[username] = user
	s.nextUserID = max(s.nextUserID, user.ID+1)
	return nil
}

func (s *Store) IngestCustomer(_ context.Context, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customersByID[customer.ID] = customer
	s.nextCustomerID = max(s.nextCustomerID, customer.ID+1)
	return nil
}

// IngestReport appends a stored report to the history in the order given.
func (s *Store) IngestReport(_ context.Context, report domain.StockReport) error {
	if report.Kind != domain.ReportKindStockSummary && report.Kind != domain.ReportKindLowStock {
		return store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, cloneReport(report))
	s.nextReportID = max(s.nextReportID, report.ID+1)
	return nil
}
