package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository"
	"github.com/kirinyoku/ogtix/internal/uow"
)

// Service is the cart ledger: it maintains the single open cart per user
// and turns it into a pending order at checkout.
type Service struct {
	store repository.Store
	uow   *uow.UoW
}

func New(store repository.Store) *Service {
	return &Service{
		store: store,
		uow:   uow.NewUoW(store),
	}
}

// Get returns the user's open cart with its items, creating an empty cart
// if none exists yet.
func (s *Service) Get(ctx context.Context, userID int64) (*domain.CartWithItems, error) {
	const op = "service.cart.Get"

	c, err := s.store.Carts().OpenCartUpsert(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items, err := s.store.Carts().ListItems(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &domain.CartWithItems{Cart: *c, Items: items}, nil
}

// AddItem sets the (offer, event) line of the user's open cart to the given
// quantity. Adding an already-present pair replaces the line rather than
// stacking a second one; quantity zero removes it. The client-claimed
// amount must equal price times quantity exactly, otherwise the write is
// rejected with ErrAmountMismatch.
//
// Returns:
//   - *domain.CartItem: the written line, nil when quantity was zero.
//   - error: cart.ErrInvalidQuantity if quantity is negative.
//   - error: cart.ErrOfferNotFound / cart.ErrEventNotFound for unknown refs.
//   - error: cart.ErrAmountMismatch if the claimed amount is off.
func (s *Service) AddItem(
	ctx context.Context,
	userID, offerID, eventID int64,
	quantity int,
	claimed decimal.Decimal,
) (*domain.CartItem, error) {
	const op = "service.cart.AddItem"

	if quantity < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidQuantity)
	}

	offer, err := s.store.Catalog().GetOffer(ctx, offerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOfferNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.store.Catalog().GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	want := offer.Price.Mul(decimal.NewFromInt(int64(quantity)))
	if !claimed.Equal(want) {
		return nil, fmt.Errorf("%s: %w", op, ErrAmountMismatch)
	}

	c, err := s.store.Carts().OpenCartUpsert(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if quantity == 0 {
		if err := s.store.Carts().DeleteItemByOffer(ctx, c.ID, offerID, eventID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return nil, nil
	}

	item, err := s.store.Carts().UpsertItem(ctx, domain.CartItem{
		CartID:   c.ID,
		OfferID:  offerID,
		EventID:  eventID,
		Quantity: quantity,
		Amount:   want,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return item, nil
}

// RemoveItem deletes a line from the user's open cart.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID int64) error {
	const op = "service.cart.RemoveItem"

	c, err := s.store.Carts().OpenCart(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrItemNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.Carts().DeleteItem(ctx, c.ID, itemID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrItemNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Checkout freezes the cart into a pending order. One transaction covers
// the whole flip: snapshot the items, create the order, close the cart and
// open a fresh empty one, so a concurrent checkout of the same cart blocks
// on the row lock and then fails the already-ordered check with nothing
// mutated.
//
// Returns:
//   - *domain.OrderWithItems: the created pending order.
//   - error: cart.ErrCartNotFound if the cart is missing or not the
//     caller's.
//   - error: cart.ErrCartAlreadyOrdered if it was checked out before.
//   - error: cart.ErrEmptyCart if it has no items.
func (s *Service) Checkout(ctx context.Context, userID, cartID int64) (*domain.OrderWithItems, error) {
	const op = "service.cart.Checkout"

	var out *domain.OrderWithItems

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.DB,
		after func(uow.AfterCommit),
	) error {
		carts := s.store.Carts().With(tx)

		c, err := carts.GetForUpdate(ctx, cartID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s: %w", op, ErrCartNotFound)
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		if c.UserID != userID {
			return fmt.Errorf("%s: %w", op, ErrCartNotFound)
		}

		if c.OrderedAt != nil {
			return fmt.Errorf("%s: %w", op, ErrCartAlreadyOrdered)
		}

		items, err := carts.ListItems(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if len(items) == 0 {
			return fmt.Errorf("%s: %w", op, ErrEmptyCart)
		}

		total := decimal.Zero
		orderItems := make([]domain.OrderItem, 0, len(items))

		for _, item := range items {
			offer, err := s.store.Catalog().With(tx).GetOffer(ctx, item.OfferID)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}

			total = total.Add(item.Amount)
			orderItems = append(orderItems, domain.OrderItem{
				OfferID:  item.OfferID,
				EventID:  item.EventID,
				Quantity: item.Quantity,
				Price:    offer.Price,
				Amount:   item.Amount,
				NbPlace:  offer.NbPlace,
			})
		}

		now := time.Now()

		order, err := s.store.Orders().With(tx).Create(ctx, userID, total, orderItems)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := carts.Close(ctx, c.ID, total, now); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if _, err := carts.Create(ctx, userID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		out = order

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
