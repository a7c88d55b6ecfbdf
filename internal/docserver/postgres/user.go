package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	userDatamodel "github.com/frahmantamala/qr-document/internal/core/datamodel/user"
	"github.com/frahmantamala/qr-document/internal/docserver"
)

const (
	selectUserByID = `SELECT id, name, department, is_active, created_at, updated_at FROM users WHERE id = $1`

	upsertUser = `
INSERT INTO users (id, name, department, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, department = EXCLUDED.department, is_active = EXCLUDED.is_active, updated_at = now()`
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) docserver.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := r.db.GetContext(ctx, &u, selectUserByID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Upsert(ctx context.Context, u *userDatamodel.User) error {
	if _, err := r.db.ExecContext(ctx, upsertUser, u.ID, u.Name, u.Department, u.IsActive); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
