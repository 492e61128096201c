package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"stockledger/internal/domain"
)

// SaveProduct writes a product snapshot unless a newer version is already
// stored, so journal writes that arrive out of order cannot roll stock back.
func (s *Store) SaveProduct(ctx context.Context, product domain.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, unit_price, stock_level, reorder_level, version, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			unit_price = EXCLUDED.unit_price,
			stock_level = EXCLUDED.stock_level,
			reorder_level = EXCLUDED.reorder_level,
			version = EXCLUDED.version,
			updated_at = now()
		WHERE products.version < EXCLUDED.version
	`, product.ID, product.Name, product.Category, product.UnitPrice, product.StockLevel, product.ReorderLevel, product.Version)
	return err
}

func (s *Store) SaveSupplier(ctx context.Context, supplier domain.Supplier) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, email, phone, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone
	`, supplier.ID, supplier.Name, supplier.Email, supplier.Phone, supplier.CreatedAt.UTC())
	return err
}

// SavePurchaseOrder writes the header and replaces the item rows in a single
// transaction so a reload never sees half an order.
func (s *Store) SavePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, supplier_id, created_by_id, created_by_name, created_by_role, created_date, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id)
		DO UPDATE SET status = EXCLUDED.status
	`, po.ID, po.SupplierID, po.CreatedBy.ID, po.CreatedBy.Name, string(po.CreatedBy.Role), po.CreatedDate.UTC(), string(po.Status)); err != nil {
		return fmt.Errorf("save purchase order %d: %w", po.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE purchase_order_id = $1`, po.ID); err != nil {
		return err
	}
	for i, item := range po.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (purchase_order_id, position, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)
		`, po.ID, i, item.ProductID, item.Quantity, item.UnitPrice); err != nil {
			return fmt.Errorf("save order item %d/%d: %w", po.ID, i, err)
		}
	}

	return tx.Commit()
}

func (s *Store) SaveStockRequest(ctx context.Context, req domain.StockRequest) error {
	decidedID, decidedName, decidedRole := nullAccount(req.DecidedBy)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_requests (
			id, product_id, quantity, cost_price, sale_price,
			requested_by_id, requested_by_name, requested_by_role,
			decided_by_id, decided_by_name, decided_by_role,
			status, requested_at, decided_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id)
		DO UPDATE SET
			decided_by_id = EXCLUDED.decided_by_id,
			decided_by_name = EXCLUDED.decided_by_name,
			decided_by_role = EXCLUDED.decided_by_role,
			status = EXCLUDED.status,
			decided_at = EXCLUDED.decided_at
	`,
		req.ID, req.ProductID, req.Quantity, req.CostPrice, req.SalePrice,
		req.RequestedBy.ID, req.RequestedBy.Name, string(req.RequestedBy.Role),
		decidedID, decidedName, decidedRole,
		string(req.Status), req.RequestedAt.UTC(), nullTime(req.DecidedAt),
	)
	return err
}

// SaveSale is insert-only; sales are immutable once recorded.
func (s *Store) SaveSale(ctx context.Context, sale domain.Sale) error {
	soldID, soldName, soldRole := nullAccount(sale.SoldBy)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, product_id, product_name, quantity, sale_price, cost_price, sale_date, sold_by_id, sold_by_name, sold_by_role)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING
	`, sale.ID, sale.ProductID, sale.ProductName, sale.Quantity, sale.SalePrice, sale.CostPrice, sale.SaleDate.UTC(), soldID, soldName, soldRole)
	return err
}

func (s *Store) SaveCustomer(ctx context.Context, customer domain.Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone
	`, customer.ID, customer.Name, customer.Email, customer.Phone, customer.CreatedAt.UTC())
	return err
}

// SaveReport is insert-only; the report history is append-only.
func (s *Store) SaveReport(ctx context.Context, report domain.StockReport) error {
	lines, err := json.Marshal(report.Lines)
	if err != nil {
		return fmt.Errorf("encode report %d lines: %w", report.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, kind, created_by_id, created_by_name, created_by_role, generated_at, lines)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING
	`, report.ID, report.Kind, report.CreatedBy.ID, report.CreatedBy.Name, string(report.CreatedBy.Role), report.GeneratedAt.UTC(), string(lines))
	return err
}
