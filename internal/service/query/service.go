// Package query serves the read-only catalog: offers and events, cached in
// redis since they change rarely and are read on every storefront view.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository"
	redisrepo "github.com/kirinyoku/ogtix/internal/repository/redis"
)

type Config struct {
	CatalogTTL time.Duration
}

type Service struct {
	store repository.Store
	cache *redisrepo.Cache
	cfg   Config
}

// New builds the catalog reader. cache may be nil.
func New(store repository.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.CatalogTTL <= 0 {
		cfg.CatalogTTL = 60 * time.Second
	}

	return &Service{store: store, cache: cache, cfg: cfg}
}

func (s *Service) ListOffers(ctx context.Context) ([]domain.Offer, error) {
	const op = "service.query.ListOffers"

	load := func(ctx context.Context) ([]domain.Offer, error) {
		return s.store.Catalog().ListOffers(ctx)
	}

	if s.cache == nil {
		out, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return out, nil
	}

	out, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyOffers(), s.cfg.CatalogTTL, load)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) ListEvents(ctx context.Context) ([]domain.Event, error) {
	const op = "service.query.ListEvents"

	load := func(ctx context.Context) ([]domain.Event, error) {
		return s.store.Catalog().ListEvents(ctx)
	}

	if s.cache == nil {
		out, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return out, nil
	}

	out, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyEvents(), s.cfg.CatalogTTL, load)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) GetOffer(ctx context.Context, id int64) (*domain.Offer, error) {
	const op = "service.query.GetOffer"

	o, err := s.store.Catalog().GetOffer(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOfferNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return o, nil
}

func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "service.query.GetEvent"

	e, err := s.store.Catalog().GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return e, nil
}
