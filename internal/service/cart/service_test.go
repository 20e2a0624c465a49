package cart_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository/fake"
	"github.com/kirinyoku/ogtix/internal/service/cart"
)

func newStore() *fake.Store {
	store := fake.NewStore()
	store.AddOffer(domain.Offer{ID: 1, Name: "solo", Price: decimal.NewFromInt(20), NbPlace: 1})
	store.AddOffer(domain.Offer{ID: 2, Name: "duo", Price: decimal.RequireFromString("15.50"), NbPlace: 2})
	store.AddEvent(domain.Event{ID: 1, Sport: "judo", Name: "final", StartsAt: time.Now().Add(24 * time.Hour)})

	return store
}

func TestAddItemRejectsAmountMismatch(t *testing.T) {
	store := newStore()
	svc := cart.New(store)

	_, err := svc.AddItem(context.Background(), 7, 1, 1, 2, decimal.NewFromInt(30))
	if !errors.Is(err, cart.ErrAmountMismatch) {
		t.Fatalf("err = %v, want ErrAmountMismatch", err)
	}

	cw, err := svc.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(cw.Items) != 0 {
		t.Fatalf("cart has %d items after rejected write", len(cw.Items))
	}
}

func TestAddItemRejectsNegativeQuantity(t *testing.T) {
	store := newStore()
	svc := cart.New(store)

	_, err := svc.AddItem(context.Background(), 7, 1, 1, -1, decimal.NewFromInt(-20))
	if !errors.Is(err, cart.ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestAddItemRejectsUnknownRefs(t *testing.T) {
	store := newStore()
	svc := cart.New(store)

	_, err := svc.AddItem(context.Background(), 7, 999, 1, 1, decimal.NewFromInt(20))
	if !errors.Is(err, cart.ErrOfferNotFound) {
		t.Fatalf("err = %v, want ErrOfferNotFound", err)
	}

	_, err = svc.AddItem(context.Background(), 7, 1, 999, 1, decimal.NewFromInt(20))
	if !errors.Is(err, cart.ErrEventNotFound) {
		t.Fatalf("err = %v, want ErrEventNotFound", err)
	}
}

func TestAddItemReplacesExistingLine(t *testing.T) {
	store := newStore()
	svc := cart.New(store)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, 7, 1, 1, 1, decimal.NewFromInt(20)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem(ctx, 7, 1, 1, 3, decimal.NewFromInt(60)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	cw, err := svc.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(cw.Items) != 1 {
		t.Fatalf("cart has %d lines, want 1", len(cw.Items))
	}
	if cw.Items[0].Quantity != 3 || !cw.Items[0].Amount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("line = %+v, want quantity 3 amount 60", cw.Items[0])
	}
}

func TestAddItemZeroQuantityRemovesLine(t *testing.T) {
	store := newStore()
	svc := cart.New(store)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, 7, 1, 1, 2, decimal.NewFromInt(40)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	item, err := svc.AddItem(ctx, 7, 1, 1, 0, decimal.Zero)
	if err != nil {
		t.Fatalf("AddItem qty 0: %v", err)
	}
	if item != nil {
		t.Fatalf("item = %+v, want nil", item)
	}

	cw, _ := svc.Get(ctx, 7)
	if len(cw.Items) != 0 {
		t.Fatalf("cart has %d lines, want 0", len(cw.Items))
	}
}

func TestCheckout(t *testing.T) {
	store := newStore()
	svc := cart.New(store)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, 7, 1, 1, 1, decimal.NewFromInt(20)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem(ctx, 7, 2, 1, 1, decimal.RequireFromString("15.50")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	cw, _ := svc.Get(ctx, 7)

	order, err := svc.Checkout(ctx, 7, cw.Cart.ID)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if order.Order.Status != domain.OrderPending {
		t.Errorf("order status = %q, want pending", order.Order.Status)
	}
	if want := decimal.RequireFromString("35.50"); !order.Order.Amount.Equal(want) {
		t.Errorf("order amount = %s, want %s", order.Order.Amount, want)
	}
	if len(order.Items) != 2 {
		t.Fatalf("order has %d items, want 2", len(order.Items))
	}

	// snapshot carries the offer's unit price and capacity
	if !order.Items[0].Price.Equal(decimal.NewFromInt(20)) || order.Items[0].NbPlace != 1 {
		t.Errorf("item snapshot = %+v", order.Items[0])
	}
	if !order.Items[1].Price.Equal(decimal.RequireFromString("15.50")) || order.Items[1].NbPlace != 2 {
		t.Errorf("item snapshot = %+v", order.Items[1])
	}

	// a fresh empty cart replaces the ordered one
	next, err := svc.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get after checkout: %v", err)
	}
	if next.Cart.ID == cw.Cart.ID {
		t.Error("open cart was not replaced")
	}
	if len(next.Items) != 0 {
		t.Errorf("new cart has %d items, want 0", len(next.Items))
	}
}

func TestCheckoutTwiceConflicts(t *testing.T) {
	store := newStore()
	svc := cart.New(store)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, 7, 1, 1, 1, decimal.NewFromInt(20)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	cw, _ := svc.Get(ctx, 7)

	if _, err := svc.Checkout(ctx, 7, cw.Cart.ID); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	_, err := svc.Checkout(ctx, 7, cw.Cart.ID)
	if !errors.Is(err, cart.ErrCartAlreadyOrdered) {
		t.Fatalf("err = %v, want ErrCartAlreadyOrdered", err)
	}

	list, _ := store.Orders().ListByUser(ctx, 7)
	if len(list) != 1 {
		t.Fatalf("orders = %d, want 1", len(list))
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	store := newStore()
	svc := cart.New(store)
	ctx := context.Background()

	cw, _ := svc.Get(ctx, 7)

	_, err := svc.Checkout(ctx, 7, cw.Cart.ID)
	if !errors.Is(err, cart.ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
}

func TestCheckoutForeignCart(t *testing.T) {
	store := newStore()
	svc := cart.New(store)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, 7, 1, 1, 1, decimal.NewFromInt(20)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	cw, _ := svc.Get(ctx, 7)

	_, err := svc.Checkout(ctx, 42, cw.Cart.ID)
	if !errors.Is(err, cart.ErrCartNotFound) {
		t.Fatalf("err = %v, want ErrCartNotFound", err)
	}
}
