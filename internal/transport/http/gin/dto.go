package httpgin

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ogtix/internal/domain"
)

type AddItemRequest struct {
	OfferID  int64           `json:"offer_id" binding:"required"`
	EventID  int64           `json:"event_id" binding:"required"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

type WebhookRequest struct {
	EventID        string `json:"event_id" binding:"required"`
	OrderReference int64  `json:"order_reference" binding:"required"`
	Outcome        string `json:"outcome" binding:"required"`
}

type TicketStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type CartItemResponse struct {
	ID       int64           `json:"id"`
	OfferID  int64           `json:"offer_id"`
	EventID  int64           `json:"event_id"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

type CartResponse struct {
	ID        int64              `json:"id"`
	Amount    *decimal.Decimal   `json:"amount,omitempty"`
	OrderedAt *time.Time         `json:"ordered_at,omitempty"`
	Items     []CartItemResponse `json:"items"`
}

type OrderItemResponse struct {
	ID       int64           `json:"id"`
	OfferID  int64           `json:"offer_id"`
	EventID  int64           `json:"event_id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
	NbPlace  int             `json:"nb_place"`
}

type OrderResponse struct {
	ID        int64               `json:"id"`
	Amount    decimal.Decimal     `json:"amount"`
	Status    string              `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	PaidAt    *time.Time          `json:"paid_at,omitempty"`
	Items     []OrderItemResponse `json:"items,omitempty"`
}

type TicketResponse struct {
	ID        string     `json:"id"`
	EventID   int64      `json:"event_id"`
	NbPlace   int        `json:"nb_place"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

type ProofResponse struct {
	TicketID string `json:"ticket_id"`
	Proof    string `json:"proof"`
}

type WebhookResponse struct {
	OrderID       int64 `json:"order_id"`
	AlreadyPaid   bool  `json:"already_paid"`
	TicketsIssued int   `json:"tickets_issued"`
}

type ReconcileResponse struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

func toCartResponse(c *domain.CartWithItems) CartResponse {
	out := CartResponse{
		ID:        c.Cart.ID,
		Amount:    c.Cart.Amount,
		OrderedAt: c.Cart.OrderedAt,
		Items:     make([]CartItemResponse, 0, len(c.Items)),
	}
	for _, item := range c.Items {
		out.Items = append(out.Items, CartItemResponse{
			ID:       item.ID,
			OfferID:  item.OfferID,
			EventID:  item.EventID,
			Quantity: item.Quantity,
			Amount:   item.Amount,
		})
	}

	return out
}

func toOrderResponse(o domain.Order, items []domain.OrderItem) OrderResponse {
	out := OrderResponse{
		ID:        o.ID,
		Amount:    o.Amount,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		PaidAt:    o.PaidAt,
	}
	for _, item := range items {
		out.Items = append(out.Items, OrderItemResponse{
			ID:       item.ID,
			OfferID:  item.OfferID,
			EventID:  item.EventID,
			Quantity: item.Quantity,
			Price:    item.Price,
			Amount:   item.Amount,
			NbPlace:  item.NbPlace,
		})
	}

	return out
}

func toTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:        t.ID.String(),
		EventID:   t.EventID,
		NbPlace:   t.NbPlace,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UsedAt:    t.UsedAt,
	}
}
