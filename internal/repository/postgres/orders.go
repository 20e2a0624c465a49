package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository"
)

type OrderRepo struct {
	pool *pgxpool.Pool
	db   repository.DB
}

func (r *OrderRepo) With(db repository.DB) repository.OrderStore {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OrderRepo) handle() repository.DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts the order row and its snapshot items. Callers run it
// inside the checkout transaction; the item set is immutable afterwards.
func (r *OrderRepo) Create(
	ctx context.Context,
	userID int64,
	amount decimal.Decimal,
	items []domain.OrderItem,
) (*domain.OrderWithItems, error) {
	const op = "postgres.OrderRepo.Create"

	db := r.handle()

	var o domain.Order
	err := db.QueryRow(ctx,
		`INSERT INTO orders (user_id, amount, status)
		 VALUES ($1, $2, 'pending')
		 RETURNING id, user_id, amount, status, created_at, paid_at, deleted_at`,
		userID, amount,
	).Scan(&o.ID, &o.UserID, &o.Amount, &o.Status, &o.CreatedAt, &o.PaidAt, &o.DeletedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	out := make([]domain.OrderItem, 0, len(items))
	for _, it := range items {
		var saved domain.OrderItem
		err := db.QueryRow(ctx,
			`INSERT INTO order_items (order_id, offer_id, event_id, quantity, price, amount, nb_place)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, order_id, offer_id, event_id, quantity, price, amount, nb_place, deleted_at`,
			o.ID, it.OfferID, it.EventID, it.Quantity, it.Price, it.Amount, it.NbPlace,
		).Scan(&saved.ID, &saved.OrderID, &saved.OfferID, &saved.EventID,
			&saved.Quantity, &saved.Price, &saved.Amount, &saved.NbPlace, &saved.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, saved)
	}

	return &domain.OrderWithItems{Order: o, Items: out}, nil
}

func (r *OrderRepo) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	const op = "postgres.OrderRepo.Get"

	return r.get(ctx, orderID, op, "")
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID int64) (*domain.Order, error) {
	const op = "postgres.OrderRepo.GetForUpdate"

	return r.get(ctx, orderID, op, " FOR UPDATE")
}

func (r *OrderRepo) get(ctx context.Context, orderID int64, op, suffix string) (*domain.Order, error) {
	db := r.handle()

	var o domain.Order
	err := db.QueryRow(ctx,
		`SELECT id, user_id, amount, status, created_at, paid_at, deleted_at
		 FROM orders
		 WHERE id = $1 AND deleted_at IS NULL`+suffix,
		orderID,
	).Scan(&o.ID, &o.UserID, &o.Amount, &o.Status, &o.CreatedAt, &o.PaidAt, &o.DeletedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &o, nil
}

// MarkPaid is a compare-and-set on status; combined with the caller's row
// lock it makes concurrent payment confirmations collapse to one transition.
func (r *OrderRepo) MarkPaid(ctx context.Context, orderID int64, at time.Time) (bool, error) {
	const op = "postgres.OrderRepo.MarkPaid"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE orders
		 SET status = 'paid', paid_at = $2
		 WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL`,
		orderID, at,
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepo) Cancel(ctx context.Context, orderID int64) (bool, error) {
	const op = "postgres.OrderRepo.Cancel"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE orders
		 SET status = 'cancelled'
		 WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL`,
		orderID,
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	const op = "postgres.OrderRepo.ListByUser"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, user_id, amount, status, created_at, paid_at, deleted_at
		 FROM orders
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	return scanOrders(rows, op)
}

func (r *OrderRepo) ListItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	const op = "postgres.OrderRepo.ListItems"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, order_id, offer_id, event_id, quantity, price, amount, nb_place, deleted_at
		 FROM order_items
		 WHERE order_id = $1 AND deleted_at IS NULL
		 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.OfferID, &it.EventID,
			&it.Quantity, &it.Price, &it.Amount, &it.NbPlace, &it.DeletedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ListPaidItems feeds the reconciliation job: every live item of every paid
// order, with the order's owner for ticket attribution.
func (r *OrderRepo) ListPaidItems(ctx context.Context) ([]domain.PaidItem, error) {
	const op = "postgres.OrderRepo.ListPaidItems"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT oi.id, oi.order_id, oi.offer_id, oi.event_id,
		        oi.quantity, oi.price, oi.amount, oi.nb_place, oi.deleted_at,
		        o.user_id
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE o.status = 'paid' AND o.deleted_at IS NULL AND oi.deleted_at IS NULL
		 ORDER BY oi.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.PaidItem
	for rows.Next() {
		var p domain.PaidItem
		if err := rows.Scan(&p.Item.ID, &p.Item.OrderID, &p.Item.OfferID, &p.Item.EventID,
			&p.Item.Quantity, &p.Item.Price, &p.Item.Amount, &p.Item.NbPlace, &p.Item.DeletedAt,
			&p.UserID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func scanOrders(rows pgx.Rows, op string) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Amount, &o.Status, &o.CreatedAt, &o.PaidAt, &o.DeletedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}
