package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/ogtix/internal/domain"
	"github.com/kirinyoku/ogtix/internal/repository"
)

// CatalogRepo reads the offer/event reference data. Catalog writes belong
// to the admin tooling outside this service.
type CatalogRepo struct {
	pool *pgxpool.Pool
	db   repository.DB
}

func (r *CatalogRepo) With(db repository.DB) repository.CatalogStore {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CatalogRepo) handle() repository.DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *CatalogRepo) GetOffer(ctx context.Context, id int64) (*domain.Offer, error) {
	const op = "postgres.CatalogRepo.GetOffer"

	db := r.handle()

	var o domain.Offer
	err := db.QueryRow(ctx,
		`SELECT id, name, description, price, nb_place
		 FROM offers WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.Name, &o.Description, &o.Price, &o.NbPlace)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &o, nil
}

func (r *CatalogRepo) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgres.CatalogRepo.GetEvent"

	db := r.handle()

	var e domain.Event
	err := db.QueryRow(ctx,
		`SELECT id, sport, name, description, starts_at, location
		 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Sport, &e.Name, &e.Description, &e.StartsAt, &e.Location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &e, nil
}

func (r *CatalogRepo) ListOffers(ctx context.Context) ([]domain.Offer, error) {
	const op = "postgres.CatalogRepo.ListOffers"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, name, description, price, nb_place
		 FROM offers
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Offer
	for rows.Next() {
		var o domain.Offer
		if err := rows.Scan(&o.ID, &o.Name, &o.Description, &o.Price, &o.NbPlace); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (r *CatalogRepo) ListEvents(ctx context.Context) ([]domain.Event, error) {
	const op = "postgres.CatalogRepo.ListEvents"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, sport, name, description, starts_at, location
		 FROM events
		 ORDER BY starts_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Sport, &e.Name, &e.Description, &e.StartsAt, &e.Location); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}
