// Package repository declares the storage contracts the services depend on.
// The postgres subpackage is the production implementation; the fake
// subpackage is the in-memory implementation the service tests run against.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ogtix/internal/domain"
)

// DB is the handle queries run on: either the pool or a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store bundles every repository behind a single transactional entry point.
type Store interface {
	RunTx(ctx context.Context, opts *pgx.TxOptions, fn func(ctx context.Context, tx DB) error) error

	Carts() CartStore
	Orders() OrderStore
	Tickets() TicketStore
	Catalog() CatalogStore
	Users() UserStore
}

// CartStore manages the open cart and its line items. The one-open-cart-
// per-user rule is a storage-level unique constraint; OpenCartUpsert is the
// race-free way to obtain the open cart.
type CartStore interface {
	With(db DB) CartStore

	// OpenCartUpsert returns the user's open cart, creating it if absent.
	// Safe under concurrent callers.
	OpenCartUpsert(ctx context.Context, userID int64) (*domain.Cart, error)
	// OpenCart returns the open cart without creating one.
	OpenCart(ctx context.Context, userID int64) (*domain.Cart, error)
	// GetForUpdate loads a cart by ID with a row lock.
	GetForUpdate(ctx context.Context, cartID int64) (*domain.Cart, error)
	Create(ctx context.Context, userID int64) (*domain.Cart, error)
	// Close freezes the summed amount onto the cart and stamps ordered_at.
	Close(ctx context.Context, cartID int64, amount decimal.Decimal, at time.Time) error

	ListItems(ctx context.Context, cartID int64) ([]domain.CartItem, error)
	// UpsertItem inserts or replaces the (cart, offer, event) line.
	UpsertItem(ctx context.Context, item domain.CartItem) (*domain.CartItem, error)
	// DeleteItem removes a line from the cart; ErrNotFound if absent.
	DeleteItem(ctx context.Context, cartID, itemID int64) error
	// DeleteItemByOffer removes the (cart, offer, event) line if present.
	DeleteItemByOffer(ctx context.Context, cartID, offerID, eventID int64) error
}

type OrderStore interface {
	With(db DB) OrderStore

	// Create inserts the order and its snapshot items in one shot.
	Create(ctx context.Context, userID int64, amount decimal.Decimal, items []domain.OrderItem) (*domain.OrderWithItems, error)
	Get(ctx context.Context, orderID int64) (*domain.Order, error)
	// GetForUpdate loads the order with a row lock, the guard for the
	// pending→paid and pending→cancelled transitions.
	GetForUpdate(ctx context.Context, orderID int64) (*domain.Order, error)
	// MarkPaid is a compare-and-set: it only fires on status='pending' and
	// reports whether a row changed.
	MarkPaid(ctx context.Context, orderID int64, at time.Time) (bool, error)
	Cancel(ctx context.Context, orderID int64) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	ListItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	// ListPaidItems is the reconciliation scan: every non-deleted item of a
	// paid order, with the owning user.
	ListPaidItems(ctx context.Context) ([]domain.PaidItem, error)
}

type TicketStore interface {
	With(db DB) TicketStore

	CountForItem(ctx context.Context, orderItemID int64) (int, error)
	// Insert creates the ticket unless its encrypted secret collides with
	// an existing row, in which case it reports inserted=false.
	Insert(ctx context.Context, t domain.Ticket) (inserted bool, err error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Ticket, error)
	// SetStatus transitions a ticket out of 'valid'; usedAt is stamped for
	// the 'used' transition only.
	SetStatus(ctx context.Context, id uuid.UUID, from, to domain.TicketStatus, usedAt *time.Time) (bool, error)
}

// CatalogStore is read-only reference data owned outside this core.
type CatalogStore interface {
	With(db DB) CatalogStore

	GetOffer(ctx context.Context, id int64) (*domain.Offer, error)
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	ListOffers(ctx context.Context) ([]domain.Offer, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

// UserStore reads identity-owned data; this core never writes it.
type UserStore interface {
	With(db DB) UserStore

	// SecretKey returns the user's encrypted secret blob.
	SecretKey(ctx context.Context, userID int64) (string, error)
}
