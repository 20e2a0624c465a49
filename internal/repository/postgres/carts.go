package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository"
)

type CartRepo struct {
	pool *pgxpool.Pool
	db   repository.DB
}

func (r *CartRepo) With(db repository.DB) repository.CartStore {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CartRepo) handle() repository.DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// OpenCartUpsert resolves the open-cart lookup race with the partial
// unique index on (user_id) WHERE ordered_at IS NULL: the insert either
// wins or lands on the existing open row.
func (r *CartRepo) OpenCartUpsert(ctx context.Context, userID int64) (*domain.Cart, error) {
	const op = "postgres.CartRepo.OpenCartUpsert"

	db := r.handle()

	var c domain.Cart
	err := db.QueryRow(ctx,
		`INSERT INTO carts (user_id)
		 VALUES ($1)
		 ON CONFLICT (user_id) WHERE ordered_at IS NULL
		 DO UPDATE SET modified_at = now()
		 RETURNING id, user_id, amount, created_at, modified_at, ordered_at`,
		userID,
	).Scan(&c.ID, &c.UserID, &c.Amount, &c.CreatedAt, &c.ModifiedAt, &c.OrderedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &c, nil
}

func (r *CartRepo) OpenCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	const op = "postgres.CartRepo.OpenCart"

	db := r.handle()

	var c domain.Cart
	err := db.QueryRow(ctx,
		`SELECT id, user_id, amount, created_at, modified_at, ordered_at
		 FROM carts
		 WHERE user_id = $1 AND ordered_at IS NULL`,
		userID,
	).Scan(&c.ID, &c.UserID, &c.Amount, &c.CreatedAt, &c.ModifiedAt, &c.OrderedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &c, nil
}

func (r *CartRepo) GetForUpdate(ctx context.Context, cartID int64) (*domain.Cart, error) {
	const op = "postgres.CartRepo.GetForUpdate"

	db := r.handle()

	var c domain.Cart
	err := db.QueryRow(ctx,
		`SELECT id, user_id, amount, created_at, modified_at, ordered_at
		 FROM carts
		 WHERE id = $1
		 FOR UPDATE`,
		cartID,
	).Scan(&c.ID, &c.UserID, &c.Amount, &c.CreatedAt, &c.ModifiedAt, &c.OrderedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &c, nil
}

func (r *CartRepo) Create(ctx context.Context, userID int64) (*domain.Cart, error) {
	const op = "postgres.CartRepo.Create"

	db := r.handle()

	var c domain.Cart
	err := db.QueryRow(ctx,
		`INSERT INTO carts (user_id)
		 VALUES ($1)
		 RETURNING id, user_id, amount, created_at, modified_at, ordered_at`,
		userID,
	).Scan(&c.ID, &c.UserID, &c.Amount, &c.CreatedAt, &c.ModifiedAt, &c.OrderedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &c, nil
}

func (r *CartRepo) Close(ctx context.Context, cartID int64, amount decimal.Decimal, at time.Time) error {
	const op = "postgres.CartRepo.Close"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE carts
		 SET amount = $2, ordered_at = $3, modified_at = now()
		 WHERE id = $1 AND ordered_at IS NULL`,
		cartID, amount, at,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *CartRepo) ListItems(ctx context.Context, cartID int64) ([]domain.CartItem, error) {
	const op = "postgres.CartRepo.ListItems"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, cart_id, offer_id, event_id, quantity, amount
		 FROM cart_items
		 WHERE cart_id = $1
		 ORDER BY id`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.CartItem
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.OfferID, &it.EventID, &it.Quantity, &it.Amount); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// UpsertItem keeps the (cart, offer, event) triple unique: a second add of
// the same pair replaces the line instead of duplicating it.
func (r *CartRepo) UpsertItem(ctx context.Context, item domain.CartItem) (*domain.CartItem, error) {
	const op = "postgres.CartRepo.UpsertItem"

	db := r.handle()

	var out domain.CartItem
	err := db.QueryRow(ctx,
		`INSERT INTO cart_items (cart_id, offer_id, event_id, quantity, amount)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (cart_id, offer_id, event_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity, amount = EXCLUDED.amount
		 RETURNING id, cart_id, offer_id, event_id, quantity, amount`,
		item.CartID, item.OfferID, item.EventID, item.Quantity, item.Amount,
	).Scan(&out.ID, &out.CartID, &out.OfferID, &out.EventID, &out.Quantity, &out.Amount)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &out, nil
}

func (r *CartRepo) DeleteItem(ctx context.Context, cartID, itemID int64) error {
	const op = "postgres.CartRepo.DeleteItem"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`,
		itemID, cartID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *CartRepo) DeleteItemByOffer(ctx context.Context, cartID, offerID, eventID int64) error {
	const op = "postgres.CartRepo.DeleteItemByOffer"

	db := r.handle()

	_, err := db.Exec(ctx,
		`DELETE FROM cart_items
		 WHERE cart_id = $1 AND offer_id = $2 AND event_id = $3`,
		cartID, offerID, eventID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}
