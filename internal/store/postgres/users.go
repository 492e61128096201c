package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/store"
)

func (s *Store) eachUser(ctx context.Context, fn func(domain.UserAccount) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, name, password, role, active, created_at
		FROM app_users
		ORDER BY id ASC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			user domain.UserAccount
			role string
		)
		if err := rows.Scan(&user.ID, &user.Username, &user.Name, &user.Password, &role, &user.Active, &user.CreatedAt); err != nil {
			return err
		}
		user.Role = domain.Role(role)
		user.CreatedAt = user.CreatedAt.UTC()
		if err := fn(user); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) SaveUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidArgument
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, username, name, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role, active = EXCLUDED.active, updated_at = now()
	`, user.ID, user.Username, user.Name, user.Password, string(user.Role), user.Active, user.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidArgument
		}
		return err
	}
	return nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidArgument
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// InsertUser creates an account row. A taken id or username is reported as
// ErrInvalidArgument.
func (s *Store) InsertUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.ID < 1 || user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidArgument
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, username, name, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, user.ID, user.Username, user.Name, user.Password, string(user.Role), user.Active, user.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidArgument
		}
		return err
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM app_users WHERE id = $1`, userID)
	return err
}

// UserRepository is the in-memory account surface the auth layer reads from.
type UserRepository interface {
	ReserveUserID(ctx context.Context) (int64, error)
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type durableUsers interface {
	InsertUser(ctx context.Context, user domain.UserAccount) error
	DeleteUser(ctx context.Context, userID int64) error
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// MirroredUsers writes account changes to Postgres before the in-memory
// repository, so an account the auth layer can see is always durable.
type MirroredUsers struct {
	primary UserRepository
	durable durableUsers
}

func (s *Store) MirrorUsers(primary UserRepository) *MirroredUsers {
	return &MirroredUsers{primary: primary, durable: s}
}

func (m *MirroredUsers) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	id, err := m.primary.ReserveUserID(ctx)
	if err != nil {
		return nil, err
	}
	user.ID = id
	user.Active = true
	if user.Role == "" {
		user.Role = domain.RoleEmployee
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	if err := m.durable.InsertUser(ctx, user); err != nil {
		return nil, err
	}
	created, err := m.primary.CreateUser(ctx, user)
	if err != nil {
		if delErr := m.durable.DeleteUser(ctx, id); delErr != nil {
			return nil, errors.Join(err, delErr)
		}
		return nil, err
	}
	return created, nil
}

func (m *MirroredUsers) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return m.primary.ListUsers(ctx)
}

func (m *MirroredUsers) UpdateUserPassword(ctx context.Context, username string, password string) error {
	if err := m.durable.UpdateUserPassword(ctx, username, password); err != nil {
		return err
	}
	return m.primary.UpdateUserPassword(ctx, username, password)
}
