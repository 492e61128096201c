package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockledger/internal/domain"
	"stockledger/internal/store"
)

// HydrateStats counts what was loaded and what was skipped because a parent
// row was missing.
type HydrateStats struct {
	Users          int
	Products       int
	Suppliers      int
	PurchaseOrders int
	OrderItems     int
	StockRequests  int
	Sales          int
	Customers      int
	Reports        int
	Skipped        int
}

// Hydrate replays every persisted row into dst, parents first. Rows whose
// parent is missing are logged and skipped; any other ingest error aborts.
func (s *Store) Hydrate(ctx context.Context, dst store.Ingester, logger *zap.Logger) (HydrateStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var stats HydrateStats

	skip := func(kind string, key any, err error) error {
		if errors.Is(err, store.ErrNotFound) {
			stats.Skipped++
			logger.Warn("hydrate_skipped", zap.String("kind", kind), zap.Any("key", key), zap.Error(err))
			return nil
		}
		return fmt.Errorf("ingest %s %v: %w", kind, key, err)
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"users", func() error {
			return s.eachUser(ctx, func(user domain.UserAccount) error {
				if err := dst.IngestUser(ctx, user); err != nil {
					return skip("user", user.Username, err)
				}
				stats.Users++
				return nil
			})
		}},
		{"products", func() error {
			return s.eachProduct(ctx, func(product domain.Product) error {
				if err := dst.IngestProduct(ctx, product); err != nil {
					return skip("product", product.ID, err)
				}
				stats.Products++
				return nil
			})
		}},
		{"suppliers", func() error {
			return s.eachSupplier(ctx, func(supplier domain.Supplier) error {
				if err := dst.IngestSupplier(ctx, supplier); err != nil {
					return skip("supplier", supplier.ID, err)
				}
				stats.Suppliers++
				return nil
			})
		}},
		{"purchase_orders", func() error {
			return s.eachPurchaseOrder(ctx, func(id, supplierID int64, createdBy domain.Account, createdDate time.Time, status string) error {
				if err := dst.IngestPurchaseOrder(ctx, id, supplierID, createdBy, createdDate, status); err != nil {
					return skip("purchase_order", id, err)
				}
				stats.PurchaseOrders++
				return nil
			})
		}},
		{"order_items", func() error {
			return s.eachOrderItem(ctx, func(poID int64, productID string, quantity int, unitPrice decimal.Decimal) error {
				if err := dst.IngestOrderItem(ctx, poID, productID, quantity, unitPrice); err != nil {
					return skip("order_item", poID, err)
				}
				stats.OrderItems++
				return nil
			})
		}},
		{"stock_requests", func() error {
			return s.eachStockRequest(ctx, func(req domain.StockRequest) error {
				if err := dst.IngestStockRequest(ctx, req); err != nil {
					return skip("stock_request", req.ID, err)
				}
				stats.StockRequests++
				return nil
			})
		}},
		{"sales", func() error {
			return s.eachSale(ctx, func(sale domain.Sale) error {
				if err := dst.IngestSale(ctx, sale); err != nil {
					return skip("sale", sale.ID, err)
				}
				stats.Sales++
				return nil
			})
		}},
		{"customers", func() error {
			return s.eachCustomer(ctx, func(customer domain.Customer) error {
				if err := dst.IngestCustomer(ctx, customer); err != nil {
					return skip("customer", customer.ID, err)
				}
				stats.Customers++
				return nil
			})
		}},
		{"reports", func() error {
			return s.eachReport(ctx, func(report domain.StockReport) error {
				if err := dst.IngestReport(ctx, report); err != nil {
					return skip("report", report.ID, err)
				}
				stats.Reports++
				return nil
			})
		}},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			return stats, fmt.Errorf("hydrate %s: %w", step.name, err)
		}
	}

	logger.Info("hydrate_complete",
		zap.Int("users", stats.Users),
		zap.Int("products", stats.Products),
		zap.Int("suppliers", stats.Suppliers),
		zap.Int("purchase_orders", stats.PurchaseOrders),
		zap.Int("order_items", stats.OrderItems),
		zap.Int("stock_requests", stats.StockRequests),
		zap.Int("sales", stats.Sales),
		zap.Int("customers", stats.Customers),
		zap.Int("reports", stats.Reports),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func (s *Store) eachProduct(ctx context.Context, fn func(domain.Product) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, unit_price, stock_level, reorder_level, version
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.UnitPrice, &p.StockLevel, &p.ReorderLevel, &p.Version); err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) eachSupplier(ctx context.Context, fn func(domain.Supplier) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, created_at
		FROM suppliers
		ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Email, &sup.Phone, &sup.CreatedAt); err != nil {
			return err
		}
		sup.CreatedAt = sup.CreatedAt.UTC()
		if err := fn(sup); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) eachPurchaseOrder(ctx context.Context, fn func(id, supplierID int64, createdBy domain.Account, createdDate time.Time, status string) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_id, created_by_id, created_by_name, created_by_role, created_date, status
		FROM purchase_orders
		ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, supplierID int64
			createdBy      domain.Account
			role           string
			createdDate    time.Time
			status         string
		)
		if err := rows.Scan(&id, &supplierID, &createdBy.ID, &createdBy.Name, &role, &createdDate, &status); err != nil {
			return err
		}
		createdBy.Role = domain.Role(role)
		if err := fn(id, supplierID, createdBy, createdDate.UTC(), status); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) eachOrderItem(ctx context.Context, fn func(poID int64, productID string, quantity int, unitPrice decimal.Decimal) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT purchase_order_id, product_id, quantity, unit_price
		FROM order_items
		ORDER BY purchase_order_id, position
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			poID      int64
			productID string
			quantity  int
			unitPrice decimal.Decimal
		)
		if err := rows.Scan(&poID, &productID, &quantity, &unitPrice); err != nil {
			return err
		}
		if err := fn(poID, productID, quantity, unitPrice); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) eachStockRequest(ctx context.Context, fn func(domain.StockRequest) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, cost_price, sale_price,
			requested_by_id, requested_by_name, requested_by_role,
			decided_by_id, decided_by_name, decided_by_role,
			status, requested_at, decided_at
		FROM stock_requests
		ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			req           domain.StockRequest
			requestedRole string
			status        string
			decidedID     sql.NullInt64
			decidedName   sql.NullString
			decidedRole   sql.NullString
			decidedAt     sql.NullTime
		)
		if err := rows.Scan(
			&req.ID, &req.ProductID, &req.Quantity, &req.CostPrice, &req.SalePrice,
			&req.RequestedBy.ID, &req.RequestedBy.Name, &requestedRole,
			&decidedID, &decidedName, &decidedRole,
			&status, &req.RequestedAt, &decidedAt,
		); err != nil {
			return err
		}
		req.RequestedBy.Role = domain.Role(requestedRole)
		req.Status = domain.RequestStatus(status)
		req.RequestedAt = req.RequestedAt.UTC()
		req.DecidedBy = accountFromNull(decidedID, decidedName, decidedRole)
		if decidedAt.Valid {
			at := decidedAt.Time.UTC()
			req.DecidedAt = &at
		}
		if err := fn(req); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) eachSale(ctx context.Context, fn func(domain.Sale) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, quantity, sale_price, cost_price, sale_date,
			sold_by_id, sold_by_name, sold_by_role
		FROM sales
		ORDER BY seq
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sale     domain.Sale
			soldID   sql.NullInt64
			soldName sql.NullString
			soldRole sql.NullString
		)
		if err := rows.Scan(
			&sale.ID, &sale.ProductID, &sale.ProductName, &sale.Quantity, &sale.SalePrice, &sale.CostPrice, &sale.SaleDate,
			&soldID, &soldName, &soldRole,
		); err != nil {
			return err
		}
		sale.SaleDate = sale.SaleDate.UTC()
		sale.SoldBy = accountFromNull(soldID, soldName, soldRole)
		if err := fn(sale); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) eachCustomer(ctx context.Context, fn func(domain.Customer) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, created_at
		FROM customers
		ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) eachReport(ctx context.Context, fn func(domain.StockReport) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, created_by_id, created_by_name, created_by_role, generated_at, lines
		FROM reports
		ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			report domain.StockReport
			role   string
			lines  []byte
		)
		if err := rows.Scan(&report.ID, &report.Kind, &report.CreatedBy.ID, &report.CreatedBy.Name, &role, &report.GeneratedAt, &lines); err != nil {
			return err
		}
		if err := json.Unmarshal(lines, &report.Lines); err != nil {
			return fmt.Errorf("decode report %d lines: %w", report.ID, err)
		}
		report.CreatedBy.Role = domain.Role(role)
		report.GeneratedAt = report.GeneratedAt.UTC()
		if err := fn(report); err != nil {
			return err
		}
	}
	return rows.Err()
}
