package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/ogtix/internal/repository"
)

// Store is the pgx-backed implementation of repository.Store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

// RunTx runs fn inside a transaction. Read committed is enough here: every
// check-then-act sequence in this core takes an explicit row lock, and the
// uniqueness invariants live in constraints.
func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx repository.DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Carts() repository.CartStore      { return &CartRepo{pool: s.pool} }
func (s *Store) Orders() repository.OrderStore    { return &OrderRepo{pool: s.pool} }
func (s *Store) Tickets() repository.TicketStore  { return &TicketRepo{pool: s.pool} }
func (s *Store) Catalog() repository.CatalogStore { return &CatalogRepo{pool: s.pool} }
func (s *Store) Users() repository.UserStore      { return &UserRepo{pool: s.pool} }
