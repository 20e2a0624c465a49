package orders_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository/fake"
	"github.com/kirinyoku/ogtix/internal/service/orders"
	"github.com/kirinyoku/ogtix/internal/service/tickets"
	"github.com/kirinyoku/ogtix/internal/vault"
)

func newService(t *testing.T, store *fake.Store) *orders.Service {
	t.Helper()

	var keys vault.Keys
	copy(keys.Master[:], []byte("0123456789abcdef0123456789abcdef"))
	keys.HMAC = []byte("hmac-test-key")

	vlt, err := vault.New(keys)
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer := tickets.New(store, nil, vlt, logger, tickets.Config{})

	return orders.New(store, nil, nil, issuer)
}

func seedPending(store *fake.Store, userID int64, quantities ...int) *domain.OrderWithItems {
	price := decimal.NewFromInt(20)

	items := make([]domain.OrderItem, 0, len(quantities))
	for _, q := range quantities {
		items = append(items, domain.OrderItem{
			OfferID:  1,
			EventID:  1,
			Quantity: q,
			Price:    price,
			Amount:   price.Mul(decimal.NewFromInt(int64(q))),
			NbPlace:  1,
		})
	}

	return store.SeedOrder(userID, domain.OrderPending, items)
}

func TestMarkPaidIssuesTickets(t *testing.T) {
	store := fake.NewStore()
	svc := newService(t, store)
	o := seedPending(store, 7, 2, 3)

	res, err := svc.MarkPaid(context.Background(), o.Order.ID)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if res.AlreadyPaid {
		t.Error("first confirmation reported as already paid")
	}
	if res.TicketsIssued != 5 {
		t.Fatalf("tickets issued = %d, want 5", res.TicketsIssued)
	}

	got, err := store.Orders().Get(context.Background(), o.Order.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.OrderPaid || got.PaidAt == nil {
		t.Fatalf("order after confirmation: status=%q paid_at=%v", got.Status, got.PaidAt)
	}

	for _, item := range o.Items {
		if n := len(store.TicketsForItem(item.ID)); n != item.Quantity {
			t.Errorf("item %d has %d tickets, want %d", item.ID, n, item.Quantity)
		}
	}
}

func TestMarkPaidRedeliveryIsNoop(t *testing.T) {
	store := fake.NewStore()
	svc := newService(t, store)
	o := seedPending(store, 7, 2)

	if _, err := svc.MarkPaid(context.Background(), o.Order.ID); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	first, err := store.Orders().Get(context.Background(), o.Order.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	res, err := svc.MarkPaid(context.Background(), o.Order.ID)
	if err != nil {
		t.Fatalf("MarkPaid redelivery: %v", err)
	}
	if !res.AlreadyPaid {
		t.Error("redelivery not reported as already paid")
	}
	if res.TicketsIssued != 0 {
		t.Errorf("redelivery issued %d tickets", res.TicketsIssued)
	}

	second, _ := store.Orders().Get(context.Background(), o.Order.ID)
	if !second.PaidAt.Equal(*first.PaidAt) {
		t.Error("paid_at changed on redelivery")
	}
	if n := len(store.TicketsForItem(o.Items[0].ID)); n != 2 {
		t.Errorf("tickets = %d, want 2", n)
	}
}

func TestMarkPaidUnknownOrder(t *testing.T) {
	store := fake.NewStore()
	svc := newService(t, store)

	_, err := svc.MarkPaid(context.Background(), 999)
	if !errors.Is(err, orders.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestMarkPaidCancelledOrder(t *testing.T) {
	store := fake.NewStore()
	svc := newService(t, store)
	o := seedPending(store, 7, 1)

	if err := svc.Cancel(context.Background(), 7, o.Order.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	_, err := svc.MarkPaid(context.Background(), o.Order.ID)
	if !errors.Is(err, orders.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}

	if n := len(store.TicketsForItem(o.Items[0].ID)); n != 0 {
		t.Errorf("cancelled order has %d tickets", n)
	}
}

func TestCancelPaidOrder(t *testing.T) {
	store := fake.NewStore()
	svc := newService(t, store)
	o := seedPending(store, 7, 1)

	if _, err := svc.MarkPaid(context.Background(), o.Order.ID); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	err := svc.Cancel(context.Background(), 7, o.Order.ID)
	if !errors.Is(err, orders.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestGetIsOwnerScoped(t *testing.T) {
	store := fake.NewStore()
	svc := newService(t, store)
	o := seedPending(store, 7, 1)

	got, err := svc.Get(context.Background(), 7, o.Order.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Items) != 1 {
		t.Errorf("items = %d, want 1", len(got.Items))
	}

	if _, err := svc.Get(context.Background(), 42, o.Order.ID); !errors.Is(err, orders.ErrOrderNotFound) {
		t.Fatalf("foreign get err = %v, want ErrOrderNotFound", err)
	}
}
