package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository"
	redisrepo "github.com/kirinyoku/ogtix/internal/repository/redis"
	"github.com/kirinyoku/ogtix/internal/uow"
	"github.com/kirinyoku/ogtix/internal/vault"
)

type Config struct {
	UserTicketsTTL time.Duration
}

type Service struct {
	store  repository.Store
	cache  *redisrepo.Cache
	vault  *vault.Vault
	uow    *uow.UoW
	logger *slog.Logger
	cfg    Config
}

// New builds the ticket service. cache may be nil (the repair command runs
// without redis).
func New(
	store repository.Store,
	cache *redisrepo.Cache,
	vlt *vault.Vault,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.UserTicketsTTL <= 0 {
		cfg.UserTicketsTTL = 30 * time.Second
	}

	return &Service{
		store:  store,
		cache:  cache,
		vault:  vlt,
		uow:    uow.NewUoW(store),
		logger: logger,
		cfg:    cfg,
	}
}

// IssueResult reports one issuance pass over an order item.
type IssueResult struct {
	Created int
	Skipped int
}

// IssueForOrderItemTx materializes the missing tickets for a paid order
// item inside the caller's transaction. It converges: however many times it
// runs, the item ends up with exactly quantity tickets and never more. A
// collision on the encrypted secret column is counted as skipped; the next
// pass fills the hole with a fresh secret.
func (s *Service) IssueForOrderItemTx(
	ctx context.Context,
	tx repository.DB,
	item domain.OrderItem,
	userID int64,
) (IssueResult, error) {
	const op = "service.tickets.IssueForOrderItemTx"

	var res IssueResult

	tickets := s.store.Tickets().With(tx)

	existing, err := tickets.CountForItem(ctx, item.ID)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	missing := item.Quantity - existing
	if missing <= 0 {
		return res, nil
	}

	for i := 0; i < missing; i++ {
		secret, err := s.vault.EncryptNewSecret(vault.DefaultSecretLen)
		if err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}

		inserted, err := tickets.Insert(ctx, domain.Ticket{
			ID:          uuid.New(),
			UserID:      userID,
			OrderItemID: item.ID,
			EventID:     item.EventID,
			NbPlace:     item.NbPlace,
			SecretKey:   secret,
			Status:      domain.TicketValid,
		})
		if err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}

		if !inserted {
			// encrypted-secret collision, security-relevant anomaly
			s.logger.Warn("duplicate ticket secret on insert",
				"order_item_id", item.ID)
			res.Skipped++
			continue
		}

		res.Created++
	}

	return res, nil
}

// Reconcile is the batch-repair pass: it re-runs the issuer over every item
// of every paid order, each item in its own small transaction so one
// failure never rolls back siblings. Safe to run repeatedly and
// concurrently with live traffic.
func (s *Service) Reconcile(ctx context.Context) (created, skipped int, err error) {
	const op = "service.tickets.Reconcile"

	paid, err := s.store.Orders().ListPaidItems(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	touched := make(map[int64]struct{})

	for _, p := range paid {
		p := p

		err := s.uow.Do(ctx, func(
			ctx context.Context,
			tx repository.DB,
			after func(uow.AfterCommit),
		) error {
			res, err := s.IssueForOrderItemTx(ctx, tx, p.Item, p.UserID)
			if err != nil {
				return err
			}

			created += res.Created
			skipped += res.Skipped

			if res.Created > 0 {
				touched[p.UserID] = struct{}{}
			}

			return nil
		})
		if err != nil {
			s.logger.Error("reconcile: order item failed",
				"order_item_id", p.Item.ID, "error", err)
			skipped++
		}
	}

	if s.cache != nil {
		for userID := range touched {
			_ = s.cache.InvalidateUserTickets(ctx, userID)
		}
	}

	return created, skipped, nil
}

// Proof computes the offline-verification value for a ticket. The
// owner-or-operator check runs before any secret leaves the vault.
func (s *Service) Proof(ctx context.Context, ticketID uuid.UUID, requesterID int64, operator bool) (string, error) {
	const op = "service.tickets.Proof"

	t, err := s.store.Tickets().Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrTicketNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if !operator && t.UserID != requesterID {
		return "", fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}

	userBlob, err := s.store.Users().SecretKey(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrTicketNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	userSecret, err := s.vault.DecryptSecret(userBlob)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	ticketSecret, err := s.vault.DecryptSecret(t.SecretKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return s.vault.TicketProof(t.ID.String(), userSecret, ticketSecret), nil
}

// ListForUser returns the user's tickets through the redis cache.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]domain.Ticket, error) {
	const op = "service.tickets.ListForUser"

	load := func(ctx context.Context) ([]domain.Ticket, error) {
		return s.store.Tickets().ListByUser(ctx, userID)
	}

	if s.cache == nil {
		out, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return out, nil
	}

	out, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyUserTickets(userID), s.cfg.UserTicketsTTL, load)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// MarkUsed transitions a ticket valid→used and stamps used_at. Gate-side
// operation; operator only at the transport boundary.
func (s *Service) MarkUsed(ctx context.Context, ticketID uuid.UUID) error {
	const op = "service.tickets.MarkUsed"

	now := time.Now()
	return s.transition(ctx, op, ticketID, domain.TicketUsed, &now)
}

// SetStatus handles the operator cancel/refund transitions out of 'valid'.
func (s *Service) SetStatus(ctx context.Context, ticketID uuid.UUID, to domain.TicketStatus) error {
	const op = "service.tickets.SetStatus"

	if to != domain.TicketCancelled && to != domain.TicketRefunded {
		return fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	return s.transition(ctx, op, ticketID, to, nil)
}

func (s *Service) transition(ctx context.Context, op string, ticketID uuid.UUID, to domain.TicketStatus, usedAt *time.Time) error {
	t, err := s.store.Tickets().Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrTicketNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.store.Tickets().SetStatus(ctx, ticketID, domain.TicketValid, to, usedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !ok {
		return fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	if s.cache != nil {
		_ = s.cache.InvalidateUserTickets(ctx, t.UserID)
	}

	return nil
}
