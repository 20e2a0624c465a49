package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository"
	redisrepo "github.com/kirinyoku/ogtix/internal/repository/redis"
	"github.com/kirinyoku/ogtix/internal/service/tickets"
	"github.com/kirinyoku/ogtix/internal/uow"
)

type Service struct {
	store  repository.Store
	cache  *redisrepo.Cache
	pubsub *redisrepo.OrdersPubSub
	issuer *tickets.Service
	uow    *uow.UoW
}

// New builds the order state machine. cache and pubsub may be nil; the
// issuer is required — the paid transition is what mints tickets.
func New(
	store repository.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.OrdersPubSub,
	issuer *tickets.Service,
) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		issuer: issuer,
		uow:    uow.NewUoW(store),
	}
}

// PaidResult reports one payment confirmation.
type PaidResult struct {
	AlreadyPaid   bool
	TicketsIssued int
	Skipped       int
}

// MarkPaid flips a pending order to paid and issues its tickets inside the
// same transaction, so a crash can only leave the order pending, never paid
// and half-ticketed in separate commits. Redelivered confirmations land on
// the paid branch and are a no-op; the issuer's own idempotence backstops
// any interleaving the row lock lets through.
//
// Returns:
//   - PaidResult: what the confirmation did.
//   - error: orders.ErrOrderNotFound if the order does not exist.
//   - error: orders.ErrInvalidState if the order is cancelled.
func (s *Service) MarkPaid(ctx context.Context, orderID int64) (PaidResult, error) {
	const op = "service.orders.MarkPaid"

	var res PaidResult
	var userID int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.DB,
		after func(uow.AfterCommit),
	) error {
		o, err := s.store.Orders().With(tx).GetForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s: %w", op, ErrOrderNotFound)
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		userID = o.UserID

		switch o.Status {
		case domain.OrderPaid:
			res.AlreadyPaid = true
			return nil
		case domain.OrderPending:
			// fall through to the transition
		default:
			return fmt.Errorf("%s: %w", op, ErrInvalidState)
		}

		ok, err := s.store.Orders().With(tx).MarkPaid(ctx, orderID, time.Now())
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if !ok {
			// lost the CAS despite the row lock; treat as redelivery
			res.AlreadyPaid = true
			return nil
		}

		items, err := s.store.Orders().With(tx).ListItems(ctx, orderID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		for _, item := range items {
			issued, err := s.issuer.IssueForOrderItemTx(ctx, tx, item, o.UserID)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}

			res.TicketsIssued += issued.Created
			res.Skipped += issued.Skipped
		}

		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateUserTickets(ctx, userID)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishOrderPaid(ctx, orderID, userID, res.TicketsIssued)
			}
		})

		return nil
	})
	if err != nil {
		return PaidResult{}, err
	}

	return res, nil
}

// Cancel transitions pending→cancelled. Paid orders cannot be cancelled
// through this path; both terminal states reject the transition.
func (s *Service) Cancel(ctx context.Context, userID, orderID int64) error {
	const op = "service.orders.Cancel"

	return s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.DB,
		after func(uow.AfterCommit),
	) error {
		o, err := s.store.Orders().With(tx).GetForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s: %w", op, ErrOrderNotFound)
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		if o.UserID != userID {
			return fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}

		if o.Status != domain.OrderPending {
			return fmt.Errorf("%s: %w", op, ErrInvalidState)
		}

		ok, err := s.store.Orders().With(tx).Cancel(ctx, orderID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if !ok {
			return fmt.Errorf("%s: %w", op, ErrInvalidState)
		}

		return nil
	})
}

// Get returns the order with its snapshot items, owner-scoped.
func (s *Service) Get(ctx context.Context, userID, orderID int64) (*domain.OrderWithItems, error) {
	const op = "service.orders.Get"

	o, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if o.UserID != userID {
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
	}

	items, err := s.store.Orders().ListItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &domain.OrderWithItems{Order: *o, Items: items}, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]domain.Order, error) {
	const op = "service.orders.List"

	out, err := s.store.Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}
