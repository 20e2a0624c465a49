package tickets_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository"
	"github.com/kirinyoku/ogtix/internal/repository/fake"
	"github.com/kirinyoku/ogtix/internal/service/tickets"
	"github.com/kirinyoku/ogtix/internal/vault"
)

func newVault(t *testing.T) *vault.Vault {
	t.Helper()

	var keys vault.Keys
	copy(keys.Master[:], []byte("0123456789abcdef0123456789abcdef"))
	keys.HMAC = []byte("hmac-test-key")

	v, err := vault.New(keys)
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}

	return v
}

func newService(t *testing.T, store *fake.Store) *tickets.Service {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return tickets.New(store, nil, newVault(t), logger, tickets.Config{})
}

func seedPaidItem(store *fake.Store, userID int64, quantity int) domain.OrderItem {
	price := decimal.NewFromInt(20)
	o := store.SeedOrder(userID, domain.OrderPaid, []domain.OrderItem{{
		OfferID:  1,
		EventID:  1,
		Quantity: quantity,
		Price:    price,
		Amount:   price.Mul(decimal.NewFromInt(int64(quantity))),
		NbPlace:  2,
	}})

	return o.Items[0]
}

func issue(t *testing.T, store *fake.Store, svc *tickets.Service, item domain.OrderItem, userID int64) tickets.IssueResult {
	t.Helper()

	var res tickets.IssueResult
	err := store.RunTx(context.Background(), &pgx.TxOptions{}, func(ctx context.Context, tx repository.DB) error {
		var err error
		res, err = svc.IssueForOrderItemTx(ctx, tx, item, userID)
		return err
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	return res
}

func TestIssueForOrderItemConverges(t *testing.T) {
	store := fake.NewStore()
	svc := newService(t, store)
	item := seedPaidItem(store, 7, 3)

	first := issue(t, store, svc, item, 7)
	if first.Created != 3 || first.Skipped != 0 {
		t.Fatalf("first pass: created=%d skipped=%d, want 3/0", first.Created, first.Skipped)
	}

	second := issue(t, store, svc, item, 7)
	if second.Created != 0 || second.Skipped != 0 {
		t.Fatalf("second pass: created=%d skipped=%d, want 0/0", second.Created, second.Skipped)
	}

	got := store.TicketsForItem(item.ID)
	if len(got) != 3 {
		t.Fatalf("tickets = %d, want 3", len(got))
	}

	for _, tk := range got {
		if tk.Status != domain.TicketValid {
			t.Errorf("ticket %s status = %q, want valid", tk.ID, tk.Status)
		}
		if tk.UserID != 7 || tk.EventID != item.EventID || tk.NbPlace != item.NbPlace {
			t.Errorf("ticket %s snapshot mismatch: %+v", tk.ID, tk)
		}
	}
}

// collideOnceStore wraps the fake so the first ticket insert reports a
// duplicate encrypted secret, the storage-level signal for a collision.
type collideOnceStore struct {
	*fake.Store
	collided bool
}

func (s *collideOnceStore) Tickets() repository.TicketStore {
	return &collideOnceTickets{TicketStore: s.Store.Tickets(), owner: s}
}

type collideOnceTickets struct {
	repository.TicketStore
	owner *collideOnceStore
}

func (t *collideOnceTickets) With(db repository.DB) repository.TicketStore {
	return &collideOnceTickets{TicketStore: t.TicketStore.With(db), owner: t.owner}
}

func (t *collideOnceTickets) Insert(ctx context.Context, tk domain.Ticket) (bool, error) {
	if !t.owner.collided {
		t.owner.collided = true
		return false, nil
	}

	return t.TicketStore.Insert(ctx, tk)
}

func TestIssueCountsSecretCollisionAsSkipped(t *testing.T) {
	inner := fake.NewStore()
	store := &collideOnceStore{Store: inner}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := tickets.New(store, nil, newVault(t), logger, tickets.Config{})

	item := seedPaidItem(inner, 7, 2)

	var res tickets.IssueResult
	err := store.RunTx(context.Background(), nil, func(ctx context.Context, tx repository.DB) error {
		var err error
		res, err = svc.IssueForOrderItemTx(ctx, tx, item, 7)
		return err
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if res.Created != 1 || res.Skipped != 1 {
		t.Fatalf("created=%d skipped=%d, want 1/1", res.Created, res.Skipped)
	}

	// the next pass fills the hole
	second, _, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if second != 1 {
		t.Fatalf("reconcile created=%d, want 1", second)
	}
	if n := len(inner.TicketsForItem(item.ID)); n != 2 {
		t.Fatalf("tickets = %d, want 2", n)
	}
}

func TestReconcileFillsAllPaidOrders(t *testing.T) {
	store := fake.NewStore()
	svc := newService(t, store)

	want := 0
	for i := 0; i < 5; i++ {
		item := seedPaidItem(store, int64(i+1), i+1)
		want += item.Quantity
	}
	// cancelled orders never get tickets
	store.SeedOrder(99, domain.OrderCancelled, []domain.OrderItem{{
		OfferID: 1, EventID: 1, Quantity: 4,
		Price:  decimal.NewFromInt(20),
		Amount: decimal.NewFromInt(80),
	}})

	created, skipped, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if created != want || skipped != 0 {
		t.Fatalf("first run: created=%d skipped=%d, want %d/0", created, skipped, want)
	}

	created, skipped, err = svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if created != 0 || skipped != 0 {
		t.Fatalf("second run: created=%d skipped=%d, want 0/0", created, skipped)
	}
}

func TestProof(t *testing.T) {
	store := fake.NewStore()
	svc := newService(t, store)
	vlt := newVault(t)

	userBlob, err := vlt.EncryptNewSecret(vault.DefaultSecretLen)
	if err != nil {
		t.Fatalf("EncryptNewSecret: %v", err)
	}
	store.AddUserSecret(7, userBlob)

	item := seedPaidItem(store, 7, 1)
	issue(t, store, svc, item, 7)

	tk := store.TicketsForItem(item.ID)[0]

	proof, err := svc.Proof(context.Background(), tk.ID, 7, false)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	if len(proof) != 64 {
		t.Fatalf("proof length = %d, want 64", len(proof))
	}

	again, err := svc.Proof(context.Background(), tk.ID, 7, false)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	if again != proof {
		t.Error("proof is not deterministic")
	}

	// operators verify tickets they do not own
	if _, err := svc.Proof(context.Background(), tk.ID, 42, true); err != nil {
		t.Errorf("operator proof: %v", err)
	}

	// other users do not
	if _, err := svc.Proof(context.Background(), tk.ID, 42, false); err == nil {
		t.Error("expected permission denied for non-owner")
	}
}

func TestMarkUsedOnce(t *testing.T) {
	store := fake.NewStore()
	svc := newService(t, store)

	item := seedPaidItem(store, 7, 1)
	issue(t, store, svc, item, 7)
	tk := store.TicketsForItem(item.ID)[0]

	if err := svc.MarkUsed(context.Background(), tk.ID); err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}

	got := store.TicketsForItem(item.ID)[0]
	if got.Status != domain.TicketUsed || got.UsedAt == nil {
		t.Fatalf("ticket after use: status=%q used_at=%v", got.Status, got.UsedAt)
	}

	if err := svc.MarkUsed(context.Background(), tk.ID); err == nil {
		t.Error("expected error on double use")
	}
}

func TestSetStatusRejectsArbitraryTargets(t *testing.T) {
	store := fake.NewStore()
	svc := newService(t, store)

	item := seedPaidItem(store, 7, 1)
	issue(t, store, svc, item, 7)
	tk := store.TicketsForItem(item.ID)[0]

	if err := svc.SetStatus(context.Background(), tk.ID, domain.TicketValid); err == nil {
		t.Error("expected rejection of transition to valid")
	}

	if err := svc.SetStatus(context.Background(), tk.ID, domain.TicketRefunded); err != nil {
		t.Fatalf("SetStatus refunded: %v", err)
	}

	// refunded is terminal
	if err := svc.SetStatus(context.Background(), tk.ID, domain.TicketCancelled); err == nil {
		t.Error("expected rejection of transition out of refunded")
	}
}
