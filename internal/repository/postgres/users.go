package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/ogtix/internal/repository"
)

// UserRepo reads identity-owned rows. The secret blob is provisioned by
// the identity subsystem; this core never generates or rewrites it.
type UserRepo struct {
	pool *pgxpool.Pool
	db   repository.DB
}

func (r *UserRepo) With(db repository.DB) repository.UserStore {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() repository.DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *UserRepo) SecretKey(ctx context.Context, userID int64) (string, error) {
	const op = "postgres.UserRepo.SecretKey"

	db := r.handle()

	var blob string
	err := db.QueryRow(ctx,
		`SELECT secret_key
		 FROM users
		 WHERE id = $1 AND deleted_at IS NULL`,
		userID,
	).Scan(&blob)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return blob, nil
}
