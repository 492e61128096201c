package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"stockledger/internal/domain"
)

// Store keeps a durable copy of the ledger. The in-memory store stays the
// source of truth while the process runs; this package rebuilds it on start
// and receives every committed change through the Journal methods.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the ledger tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		category      TEXT NOT NULL DEFAULT '',
		unit_price    NUMERIC(14,4) NOT NULL,
		stock_level   INTEGER NOT NULL,
		reorder_level INTEGER NOT NULL,
		version       BIGINT NOT NULL DEFAULT 0,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 0`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id         BIGINT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_orders (
		id              BIGINT PRIMARY KEY,
		supplier_id     BIGINT NOT NULL REFERENCES suppliers(id),
		created_by_id   BIGINT NOT NULL,
		created_by_name TEXT NOT NULL,
		created_by_role TEXT NOT NULL,
		created_date    TIMESTAMPTZ NOT NULL,
		status          TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		purchase_order_id BIGINT NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
		position          INTEGER NOT NULL,
		product_id        TEXT NOT NULL,
		quantity          INTEGER NOT NULL,
		unit_price        NUMERIC(14,4) NOT NULL,
		PRIMARY KEY (purchase_order_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_requests (
		id                BIGINT PRIMARY KEY,
		product_id        TEXT NOT NULL,
		quantity          INTEGER NOT NULL,
		cost_price        NUMERIC(14,4) NOT NULL,
		sale_price        NUMERIC(14,4) NOT NULL,
		requested_by_id   BIGINT NOT NULL,
		requested_by_name TEXT NOT NULL,
		requested_by_role TEXT NOT NULL,
		decided_by_id     BIGINT,
		decided_by_name   TEXT,
		decided_by_role   TEXT,
		status            TEXT NOT NULL,
		requested_at      TIMESTAMPTZ NOT NULL,
		decided_at        TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id           TEXT PRIMARY KEY,
		seq          BIGSERIAL,
		product_id   TEXT NOT NULL,
		product_name TEXT NOT NULL,
		quantity     INTEGER NOT NULL,
		sale_price   NUMERIC(14,4) NOT NULL,
		cost_price   NUMERIC(14,4) NOT NULL,
		sale_date    TIMESTAMPTZ NOT NULL,
		sold_by_id   BIGINT,
		sold_by_name TEXT,
		sold_by_role TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id         BIGINT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id              BIGINT PRIMARY KEY,
		kind            TEXT NOT NULL,
		created_by_id   BIGINT NOT NULL,
		created_by_name TEXT NOT NULL,
		created_by_role TEXT NOT NULL,
		generated_at    TIMESTAMPTZ NOT NULL,
		lines           JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_users (
		id         BIGINT PRIMARY KEY,
		username   TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		password   TEXT NOT NULL,
		role       TEXT NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullAccount(account *domain.Account) (sql.NullInt64, sql.NullString, sql.NullString) {
	if account == nil {
		return sql.NullInt64{}, sql.NullString{}, sql.NullString{}
	}
	return sql.NullInt64{Int64: account.ID, Valid: true},
		sql.NullString{String: account.Name, Valid: true},
		sql.NullString{String: string(account.Role), Valid: true}
}

func accountFromNull(id sql.NullInt64, name sql.NullString, role sql.NullString) *domain.Account {
	if !id.Valid {
		return nil
	}
	return &domain.Account{ID: id.Int64, Name: name.String, Role: domain.Role(role.String)}
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return val.UTC()
}
