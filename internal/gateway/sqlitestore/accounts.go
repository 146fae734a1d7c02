package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/model"
)

// CreateAccount registers a new login.
func (s *Store) CreateAccount(ctx context.Context, email, passwordHash string, isAdmin bool) (*model.Account, error) {
	id := ulid.Make().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, is_admin, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, email, passwordHash, isAdmin, s.now().UTC().UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, fmt.Errorf("account %s: %w", email, gateway.ErrConflict)
		}
		return nil, persistErr("creating account", err)
	}

	return s.accountByID(ctx, id)
}

// AccountByEmail returns an account, or (nil, nil) if none exists.
func (s *Store) AccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, is_admin, created_at
		 FROM accounts WHERE email = ?`, email,
	))
}

func (s *Store) accountByID(ctx context.Context, id string) (*model.Account, error) {
	a, err := s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, is_admin, created_at
		 FROM accounts WHERE id = ?`, id,
	))
	if err == nil && a == nil {
		return nil, fmt.Errorf("account %s: %w", id, gateway.ErrNotFound)
	}
	return a, err
}

func (s *Store) scanAccount(row *sql.Row) (*model.Account, error) {
	a := &model.Account{}
	var createdAt int64
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.IsAdmin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("getting account", err)
	}
	a.CreatedAt = time.Unix(0, createdAt).UTC()
	return a, nil
}
