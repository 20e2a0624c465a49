package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
)

type TicketStatus string

const (
	TicketValid     TicketStatus = "valid"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
	TicketRefunded  TicketStatus = "refunded"
)

// User is owned by the identity subsystem. This core only ever reads
// SecretKey, the user's vault-encrypted secret blob.
type User struct {
	ID        int64
	Email     string
	SecretKey string
	CreatedAt time.Time
	DeletedAt *time.Time
}

type Offer struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	NbPlace     int
}

type Event struct {
	ID          int64
	Sport       string
	Name        string
	Description string
	StartsAt    time.Time
	Location    string
}

// Cart accumulates line items for a buyer. At most one cart per user has
// OrderedAt == nil; that open cart is the only one accepting mutations.
type Cart struct {
	ID         int64
	UserID     int64
	Amount     *decimal.Decimal
	CreatedAt  time.Time
	ModifiedAt time.Time
	OrderedAt  *time.Time
}

type CartItem struct {
	ID       int64
	CartID   int64
	OfferID  int64
	EventID  int64
	Quantity int
	Amount   decimal.Decimal
}

type CartWithItems struct {
	Cart  Cart
	Items []CartItem
}

type Order struct {
	ID        int64
	UserID    int64
	Amount    decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
	PaidAt    *time.Time
	DeletedAt *time.Time
}

// OrderItem snapshots offer, event, quantity, unit price, line amount and
// admitted capacity at purchase time, decoupled from later catalog changes.
type OrderItem struct {
	ID        int64
	OrderID   int64
	OfferID   int64
	EventID   int64
	Quantity  int
	Price     decimal.Decimal
	Amount    decimal.Decimal
	NbPlace   int
	DeletedAt *time.Time
}

type OrderWithItems struct {
	Order Order
	Items []OrderItem
}

// PaidItem pairs an order item with its order's owner, the shape the
// reconciliation scan works on.
type PaidItem struct {
	Item   OrderItem
	UserID int64
}

// Ticket is an immutable audit artifact once created; only Status, UsedAt
// and DeletedAt ever change. The ID is a random UUID so it leaks neither
// issuance order nor count.
type Ticket struct {
	ID          uuid.UUID
	UserID      int64
	OrderItemID int64
	EventID     int64
	NbPlace     int
	SecretKey   string
	Status      TicketStatus
	CreatedAt   time.Time
	UsedAt      *time.Time
	DeletedAt   *time.Time
}
