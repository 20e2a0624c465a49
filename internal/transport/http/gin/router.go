package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/ogtix/internal/domain"
	redisrepo "github.com/kirinyoku/ogtix/internal/repository/redis"
	"github.com/kirinyoku/ogtix/internal/service"
	"github.com/kirinyoku/ogtix/internal/service/cart"
	"github.com/kirinyoku/ogtix/internal/service/orders"
	"github.com/kirinyoku/ogtix/internal/service/query"
	"github.com/kirinyoku/ogtix/internal/service/tickets"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public catalog
	r.GET("/offers", handleListOffers(svcs))
	r.GET("/events", handleListEvents(svcs))

	// Payment collaborator callback, no end-user identity
	r.POST("/payments/webhook", handlePaymentWebhook(svcs, idem))

	// User API
	user := r.Group("/", IdentityMiddleware())
	{
		user.GET("/cart", handleGetCart(svcs))
		user.POST("/cart/items", handleAddItem(svcs))
		user.DELETE("/cart/items/:id", handleRemoveItem(svcs))
		user.POST("/carts/:id/checkout", handleCheckout(svcs, idem, limiter))

		user.GET("/orders", handleListOrders(svcs))
		user.GET("/orders/:id", handleGetOrder(svcs))
		user.POST("/orders/:id/cancel", handleCancelOrder(svcs))

		user.GET("/tickets", handleListTickets(svcs))
		user.GET("/tickets/:id/proof", handleTicketProof(svcs))
	}

	// Operator API
	operator := r.Group("/", IdentityMiddleware(), RequireOperator())
	{
		operator.POST("/tickets/:id/use", handleUseTicket(svcs))
		operator.POST("/tickets/:id/status", handleSetTicketStatus(svcs))
		operator.POST("/admin/reconcile", handleReconcile(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  List offers
// @Success  200  {array}  domain.Offer
// @Router   /offers [get]
func handleListOffers(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		offers, err := svcs.Query.ListOffers(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, offers, "public, max-age=60", true)
	}
}

// @Summary  List events
// @Success  200  {array}  domain.Event
// @Router   /events [get]
func handleListEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := svcs.Query.ListEvents(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, events, "public, max-age=60", true)
	}
}

// @Summary  Get the open cart
// @Success  200  {object}  CartResponse
// @Router   /cart [get]
func handleGetCart(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		cw, err := svcs.Cart.Get(c.Request.Context(), c.GetInt64(ctxUserID))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(cw))
	}
}

// @Summary  Set a cart line
// @Param    req body  AddItemRequest true "payload"
// @Success  200 {object} CartItemResponse
// @Failure  400 {object} ErrorResponse "bad quantity or amount mismatch"
// @Failure  404 {object} ErrorResponse "unknown offer or event"
// @Router   /cart/items [post]
func handleAddItem(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		item, err := svcs.Cart.AddItem(
			c.Request.Context(),
			c.GetInt64(ctxUserID),
			req.OfferID,
			req.EventID,
			req.Quantity,
			req.Amount,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		if item == nil {
			c.Status(http.StatusNoContent)
			return
		}

		c.JSON(http.StatusOK, CartItemResponse{
			ID:       item.ID,
			OfferID:  item.OfferID,
			EventID:  item.EventID,
			Quantity: item.Quantity,
			Amount:   item.Amount,
		})
	}
}

// @Summary  Remove a cart line
// @Param    id  path  int  true  "Cart item ID"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /cart/items/{id} [delete]
func handleRemoveItem(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Cart.RemoveItem(c.Request.Context(), c.GetInt64(ctxUserID), itemID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Checkout a cart (idempotent)
// @Param    id  path  int  true  "Cart ID"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} OrderResponse
// @Failure  400 {object} ErrorResponse "empty cart"
// @Failure  409 {object} ErrorResponse "already ordered / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /carts/{id}/checkout [post]
func handleCheckout(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		cartID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		userID := c.GetInt64(ctxUserID)

		if limiter != nil {
			allowed, _, retryAfter, err := limiter.Allow(
				c.Request.Context(),
				"user:"+strconv.FormatInt(userID, 10),
			)
			if err == nil && !allowed {
				c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				c.JSON(
					http.StatusTooManyRequests,
					ErrorResponse{Error: "rate limited"},
				)
				return
			}
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemCheckout(userID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		order, err := svcs.Cart.Checkout(c.Request.Context(), userID, cartID)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := toOrderResponse(order.Order, order.Items)

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  List orders
// @Success  200 {array} OrderResponse
// @Router   /orders [get]
func handleListOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Orders.List(c.Request.Context(), c.GetInt64(ctxUserID))
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]OrderResponse, 0, len(list))
		for _, o := range list {
			out = append(out, toOrderResponse(o, nil))
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Get order with items
// @Param    id  path  int  true  "Order ID"
// @Success  200 {object} OrderResponse
// @Failure  404 {object} ErrorResponse
// @Router   /orders/{id} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Orders.Get(c.Request.Context(), c.GetInt64(ctxUserID), orderID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(o.Order, o.Items))
	}
}

// @Summary  Cancel a pending order
// @Param    id  path  int  true  "Order ID"
// @Success  204
// @Failure  409 {object} ErrorResponse "not pending"
// @Router   /orders/{id}/cancel [post]
func handleCancelOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Orders.Cancel(c.Request.Context(), c.GetInt64(ctxUserID), orderID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Payment confirmation webhook (idempotent)
// @Param    req body  WebhookRequest true "payload"
// @Success  200 {object} WebhookResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "order not pending"
// @Router   /payments/webhook [post]
func handlePaymentWebhook(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req WebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if req.Outcome != "succeeded" {
			// only successful payments drive a transition; acknowledge the rest
			c.JSON(http.StatusOK, gin.H{"ignored": true})
			return
		}

		var idemStorageKey string
		if idem != nil {
			idemStorageKey = redisrepo.KeyIdemPayment(req.EventID)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Data(
					http.StatusOK,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "delivery in progress"},
				)
				return
			}
		}

		res, err := svcs.Orders.MarkPaid(c.Request.Context(), req.OrderReference)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := WebhookResponse{
			OrderID:       req.OrderReference,
			AlreadyPaid:   res.AlreadyPaid,
			TicketsIssued: res.TicketsIssued,
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
		}

		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  List own tickets
// @Success  200 {array} TicketResponse
// @Router   /tickets [get]
func handleListTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Tickets.ListForUser(c.Request.Context(), c.GetInt64(ctxUserID))
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]TicketResponse, 0, len(list))
		for _, t := range list {
			out = append(out, toTicketResponse(t))
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Compute the offline verification proof
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  200 {object} ProofResponse
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /tickets/{id}/proof [get]
func handleTicketProof(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		proof, err := svcs.Tickets.Proof(
			c.Request.Context(),
			ticketID,
			c.GetInt64(ctxUserID),
			c.GetBool(ctxOperator),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ProofResponse{
			TicketID: ticketID.String(),
			Proof:    proof,
		})
	}
}

// @Summary  Mark a ticket used at the gate
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  204
// @Failure  409 {object} ErrorResponse "not valid"
// @Router   /tickets/{id}/use [post]
func handleUseTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Tickets.MarkUsed(c.Request.Context(), ticketID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Cancel or refund a ticket
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Param    req body  TicketStatusRequest true "payload"
// @Success  204
// @Failure  409 {object} ErrorResponse "not valid"
// @Router   /tickets/{id}/status [post]
func handleSetTicketStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req TicketStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Tickets.SetStatus(
			c.Request.Context(),
			ticketID,
			domain.TicketStatus(req.Status),
		); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Re-run ticket issuance over all paid orders
// @Success  200 {object} ReconcileResponse
// @Router   /admin/reconcile [post]
func handleReconcile(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		created, skipped, err := svcs.Tickets.Reconcile(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ReconcileResponse{Created: created, Skipped: skipped})
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// cart service
	case errors.Is(err, cart.ErrCartNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "cart not found"})
		return
	case errors.Is(err, cart.ErrItemNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "cart item not found"})
		return
	case errors.Is(err, cart.ErrOfferNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "offer not found"})
		return
	case errors.Is(err, cart.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	case errors.Is(err, cart.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid quantity"})
		return
	case errors.Is(err, cart.ErrAmountMismatch):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount does not match offer price"})
		return
	case errors.Is(err, cart.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cart is empty"})
		return
	case errors.Is(err, cart.ErrCartAlreadyOrdered):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "cart already ordered"})
		return
	// orders service
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
		return
	case errors.Is(err, orders.ErrInvalidState):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "invalid order state"})
		return
	// tickets service
	case errors.Is(err, tickets.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket not found"})
		return
	case errors.Is(err, tickets.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "permission denied"})
		return
	case errors.Is(err, tickets.ErrInvalidStatus):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "invalid ticket status"})
		return
	// query service
	case errors.Is(err, query.ErrOfferNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "offer not found"})
		return
	case errors.Is(err, query.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
