package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository"
)

type TicketRepo struct {
	pool *pgxpool.Pool
	db   repository.DB
}

func (r *TicketRepo) With(db repository.DB) repository.TicketStore {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() repository.DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *TicketRepo) CountForItem(ctx context.Context, orderItemID int64) (int, error) {
	const op = "postgres.TicketRepo.CountForItem"

	db := r.handle()

	var n int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM tickets
		 WHERE order_item_id = $1 AND deleted_at IS NULL`,
		orderItemID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return n, nil
}

// Insert tolerates a collision on the encrypted secret column: the insert
// is a no-op and inserted=false, so the issuer counts it as skipped instead
// of failing the batch.
func (r *TicketRepo) Insert(ctx context.Context, t domain.Ticket) (bool, error) {
	const op = "postgres.TicketRepo.Insert"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`INSERT INTO tickets (id, user_id, order_item_id, event_id, nb_place, secret_key, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (secret_key) DO NOTHING`,
		t.ID, t.UserID, t.OrderItemID, t.EventID, t.NbPlace, t.SecretKey, t.Status,
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return tag.RowsAffected() > 0, nil
}

func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.Get"

	db := r.handle()

	var t domain.Ticket
	err := db.QueryRow(ctx,
		`SELECT id, user_id, order_item_id, event_id, nb_place, secret_key,
		        status, created_at, used_at, deleted_at
		 FROM tickets
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	).Scan(&t.ID, &t.UserID, &t.OrderItemID, &t.EventID, &t.NbPlace, &t.SecretKey,
		&t.Status, &t.CreatedAt, &t.UsedAt, &t.DeletedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &t, nil
}

func (r *TicketRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Ticket, error) {
	const op = "postgres.TicketRepo.ListByUser"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, user_id, order_item_id, event_id, nb_place, secret_key,
		        status, created_at, used_at, deleted_at
		 FROM tickets
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.UserID, &t.OrderItemID, &t.EventID, &t.NbPlace, &t.SecretKey,
			&t.Status, &t.CreatedAt, &t.UsedAt, &t.DeletedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// SetStatus is a compare-and-set from one status to another so a ticket
// cannot be used and refunded concurrently.
func (r *TicketRepo) SetStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.TicketStatus,
	usedAt *time.Time,
) (bool, error) {
	const op = "postgres.TicketRepo.SetStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE tickets
		 SET status = $3, used_at = COALESCE($4, used_at)
		 WHERE id = $1 AND status = $2 AND deleted_at IS NULL`,
		id, from, to, usedAt,
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return tag.RowsAffected() > 0, nil
}
