// Package service bundles the business-logic layer: the cart ledger, the
// order state machine and the ticket issuer/verifier.
package service

import (
	"log/slog"
	"time"

	"github.com/kirinyoku/ogtix/internal/repository"
	redisrepo "github.com/kirinyoku/ogtix/internal/repository/redis"
	"github.com/kirinyoku/ogtix/internal/service/cart"
	"github.com/kirinyoku/ogtix/internal/service/orders"
	"github.com/kirinyoku/ogtix/internal/service/query"
	"github.com/kirinyoku/ogtix/internal/service/tickets"
	"github.com/kirinyoku/ogtix/internal/vault"
)

type Config struct {
	UserTicketsTTL time.Duration
	CatalogTTL     time.Duration
}

type Services struct {
	Cart    *cart.Service
	Orders  *orders.Service
	Tickets *tickets.Service
	Query   *query.Service
}

// New wires the three services over a shared store. cache and pubsub may
// be nil; everything degrades to direct storage access.
func New(
	store repository.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.OrdersPubSub,
	vlt *vault.Vault,
	logger *slog.Logger,
	cfg Config,
) *Services {
	ticketsSvc := tickets.New(store, cache, vlt, logger, tickets.Config{
		UserTicketsTTL: cfg.UserTicketsTTL,
	})

	return &Services{
		Cart:    cart.New(store),
		Orders:  orders.New(store, cache, pubsub, ticketsSvc),
		Tickets: ticketsSvc,
		Query:   query.New(store, cache, query.Config{CatalogTTL: cfg.CatalogTTL}),
	}
}
