// Package fake is an in-memory repository.Store for service tests. It
// mirrors the constraints the postgres schema enforces: one open cart per
// user, one line per (cart, offer, event), unique encrypted ticket secrets.
package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository"
)

type Store struct {
	mu sync.Mutex

	nextCartID      int64
	nextItemID      int64
	nextOrderID     int64
	nextOrderItem   int64
	carts           map[int64]*domain.Cart
	cartItems       map[int64]*domain.CartItem
	orders          map[int64]*domain.Order
	orderItems      map[int64]*domain.OrderItem
	tickets         map[uuid.UUID]*domain.Ticket
	ticketsBySecret map[string]uuid.UUID
	offers          map[int64]domain.Offer
	events          map[int64]domain.Event
	userSecrets     map[int64]string
}

func NewStore() *Store {
	return &Store{
		carts:           make(map[int64]*domain.Cart),
		cartItems:       make(map[int64]*domain.CartItem),
		orders:          make(map[int64]*domain.Order),
		orderItems:      make(map[int64]*domain.OrderItem),
		tickets:         make(map[uuid.UUID]*domain.Ticket),
		ticketsBySecret: make(map[string]uuid.UUID),
		offers:          make(map[int64]domain.Offer),
		events:          make(map[int64]domain.Event),
		userSecrets:     make(map[int64]string),
	}
}

// RunTx just runs fn; the fake has no transactions. A nil handle is passed
// through, which the accessors ignore.
func (s *Store) RunTx(ctx context.Context, _ *pgx.TxOptions, fn func(ctx context.Context, tx repository.DB) error) error {
	return fn(ctx, nil)
}

func (s *Store) Carts() repository.CartStore     { return (*cartStore)(s) }
func (s *Store) Orders() repository.OrderStore   { return (*orderStore)(s) }
func (s *Store) Tickets() repository.TicketStore { return (*ticketStore)(s) }
func (s *Store) Catalog() repository.CatalogStore {
	return (*catalogStore)(s)
}
func (s *Store) Users() repository.UserStore { return (*userStore)(s) }

// Seed helpers for tests.

func (s *Store) AddOffer(o domain.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[o.ID] = o
}

func (s *Store) AddEvent(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

func (s *Store) AddUserSecret(userID int64, blob string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userSecrets[userID] = blob
}

// SeedOrder inserts an order with items directly, returning the stored
// copy. Used to arrange paid or pending orders without going through the
// cart flow.
func (s *Store) SeedOrder(userID int64, status domain.OrderStatus, items []domain.OrderItem) *domain.OrderWithItems {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrderID++
	o := &domain.Order{
		ID:        s.nextOrderID,
		UserID:    userID,
		Status:    status,
		CreatedAt: time.Now(),
	}
	if status == domain.OrderPaid {
		now := time.Now()
		o.PaidAt = &now
	}
	s.orders[o.ID] = o

	out := &domain.OrderWithItems{Order: *o}
	for _, item := range items {
		s.nextOrderItem++
		item.ID = s.nextOrderItem
		item.OrderID = o.ID
		cp := item
		s.orderItems[item.ID] = &cp
		out.Items = append(out.Items, item)
		o.Amount = o.Amount.Add(item.Amount)
	}
	out.Order = *o

	return out
}

// TicketsForItem returns the stored tickets of one order item, for
// assertions.
func (s *Store) TicketsForItem(orderItemID int64) []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Ticket
	for _, t := range s.tickets {
		if t.OrderItemID == orderItemID && t.DeletedAt == nil {
			out = append(out, *t)
		}
	}

	return out
}

type cartStore Store

func (s *cartStore) With(repository.DB) repository.CartStore { return s }

func (s *cartStore) OpenCartUpsert(_ context.Context, userID int64) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.openCartLocked(userID); c != nil {
		cp := *c
		return &cp, nil
	}

	return s.createLocked(userID), nil
}

func (s *cartStore) OpenCart(_ context.Context, userID int64) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.openCartLocked(userID)
	if c == nil {
		return nil, repository.ErrNotFound
	}

	cp := *c
	return &cp, nil
}

func (s *cartStore) openCartLocked(userID int64) *domain.Cart {
	for _, c := range s.carts {
		if c.UserID == userID && c.OrderedAt == nil {
			return c
		}
	}

	return nil
}

func (s *cartStore) createLocked(userID int64) *domain.Cart {
	s.nextCartID++
	c := &domain.Cart{
		ID:         s.nextCartID,
		UserID:     userID,
		CreatedAt:  time.Now(),
		ModifiedAt: time.Now(),
	}
	s.carts[c.ID] = c

	cp := *c
	return &cp
}

func (s *cartStore) GetForUpdate(_ context.Context, cartID int64) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[cartID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	cp := *c
	return &cp, nil
}

func (s *cartStore) Create(_ context.Context, userID int64) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openCartLocked(userID) != nil {
		return nil, repository.ErrConflict
	}

	return s.createLocked(userID), nil
}

func (s *cartStore) Close(_ context.Context, cartID int64, amount decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[cartID]
	if !ok || c.OrderedAt != nil {
		return repository.ErrNotFound
	}

	c.Amount = &amount
	c.OrderedAt = &at
	c.ModifiedAt = at

	return nil
}

func (s *cartStore) ListItems(_ context.Context, cartID int64) ([]domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.CartItem
	for _, item := range s.cartItems {
		if item.CartID == cartID {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (s *cartStore) UpsertItem(_ context.Context, item domain.CartItem) (*domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.cartItems {
		if existing.CartID == item.CartID &&
			existing.OfferID == item.OfferID &&
			existing.EventID == item.EventID {
			existing.Quantity = item.Quantity
			existing.Amount = item.Amount
			cp := *existing
			return &cp, nil
		}
	}

	s.nextItemID++
	item.ID = s.nextItemID
	cp := item
	s.cartItems[item.ID] = &cp

	out := item
	return &out, nil
}

func (s *cartStore) DeleteItem(_ context.Context, cartID, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.cartItems[itemID]
	if !ok || item.CartID != cartID {
		return repository.ErrNotFound
	}

	delete(s.cartItems, itemID)

	return nil
}

func (s *cartStore) DeleteItemByOffer(_ context.Context, cartID, offerID, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, item := range s.cartItems {
		if item.CartID == cartID && item.OfferID == offerID && item.EventID == eventID {
			delete(s.cartItems, id)
			return nil
		}
	}

	return nil
}

type orderStore Store

func (s *orderStore) With(repository.DB) repository.OrderStore { return s }

func (s *orderStore) Create(_ context.Context, userID int64, amount decimal.Decimal, items []domain.OrderItem) (*domain.OrderWithItems, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrderID++
	o := &domain.Order{
		ID:        s.nextOrderID,
		UserID:    userID,
		Amount:    amount,
		Status:    domain.OrderPending,
		CreatedAt: time.Now(),
	}
	s.orders[o.ID] = o

	out := &domain.OrderWithItems{Order: *o}
	for _, item := range items {
		s.nextOrderItem++
		item.ID = s.nextOrderItem
		item.OrderID = o.ID
		cp := item
		s.orderItems[item.ID] = &cp
		out.Items = append(out.Items, item)
	}

	return out, nil
}

func (s *orderStore) Get(_ context.Context, orderID int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}

	cp := *o
	return &cp, nil
}

func (s *orderStore) GetForUpdate(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.Get(ctx, orderID)
}

func (s *orderStore) MarkPaid(_ context.Context, orderID int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.Status != domain.OrderPending {
		return false, nil
	}

	o.Status = domain.OrderPaid
	o.PaidAt = &at

	return true, nil
}

func (s *orderStore) Cancel(_ context.Context, orderID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.Status != domain.OrderPending {
		return false, nil
	}

	o.Status = domain.OrderCancelled

	return true, nil
}

func (s *orderStore) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Order
	for _, o := range s.orders {
		if o.UserID == userID && o.DeletedAt == nil {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	return out, nil
}

func (s *orderStore) ListItems(_ context.Context, orderID int64) ([]domain.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.OrderItem
	for _, item := range s.orderItems {
		if item.OrderID == orderID && item.DeletedAt == nil {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (s *orderStore) ListPaidItems(_ context.Context) ([]domain.PaidItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.PaidItem
	for _, item := range s.orderItems {
		if item.DeletedAt != nil {
			continue
		}

		o, ok := s.orders[item.OrderID]
		if !ok || o.Status != domain.OrderPaid || o.DeletedAt != nil {
			continue
		}

		out = append(out, domain.PaidItem{Item: *item, UserID: o.UserID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.ID < out[j].Item.ID })

	return out, nil
}

type ticketStore Store

func (s *ticketStore) With(repository.DB) repository.TicketStore { return s }

func (s *ticketStore) CountForItem(_ context.Context, orderItemID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tickets {
		if t.OrderItemID == orderItemID && t.DeletedAt == nil {
			n++
		}
	}

	return n, nil
}

func (s *ticketStore) Insert(_ context.Context, t domain.Ticket) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.ticketsBySecret[t.SecretKey]; dup {
		return false, nil
	}

	t.CreatedAt = time.Now()
	cp := t
	s.tickets[t.ID] = &cp
	s.ticketsBySecret[t.SecretKey] = t.ID

	return true, nil
}

func (s *ticketStore) Get(_ context.Context, id uuid.UUID) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok || t.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

func (s *ticketStore) ListByUser(_ context.Context, userID int64) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Ticket
	for _, t := range s.tickets {
		if t.UserID == userID && t.DeletedAt == nil {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})

	return out, nil
}

func (s *ticketStore) SetStatus(_ context.Context, id uuid.UUID, from, to domain.TicketStatus, usedAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok || t.DeletedAt != nil || t.Status != from {
		return false, nil
	}

	t.Status = to
	if usedAt != nil {
		t.UsedAt = usedAt
	}

	return true, nil
}

type catalogStore Store

func (s *catalogStore) With(repository.DB) repository.CatalogStore { return s }

func (s *catalogStore) GetOffer(_ context.Context, id int64) (*domain.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	return &o, nil
}

func (s *catalogStore) GetEvent(_ context.Context, id int64) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	return &e, nil
}

func (s *catalogStore) ListOffers(_ context.Context) ([]domain.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Offer, 0, len(s.offers))
	for _, o := range s.offers {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (s *catalogStore) ListEvents(_ context.Context) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

type userStore Store

func (s *userStore) With(repository.DB) repository.UserStore { return s }

func (s *userStore) SecretKey(_ context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok := s.userSecrets[userID]
	if !ok {
		return "", repository.ErrNotFound
	}

	return blob, nil
}
