package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/pkg/pgutils"
)

// ErrNotFound is returned when no event matches.
var ErrNotFound = errors.New("event not found")

const maxSlugAttempts = 50

const eventColumns = `id, owner_id, name, slug, description, location, starts_at, created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new event, picking the first free slug derived from its name.
// The unique index on slug decides collisions, so concurrent creates are safe.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	base := Slugify(e.Name)
	const q = `INSERT INTO events (id, owner_id, name, slug, description, location, starts_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	for n := 1; n <= maxSlugAttempts; n++ {
		slug := withSuffix(base, n)
		err := r.pool.QueryRow(ctx, q, e.OwnerID, e.Name, slug, e.Description, e.Location, e.StartsAt).
			Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
		if err == nil {
			e.Slug = slug
			return nil
		}
		if !pgutils.IsUniqueViolation(err) {
			return err
		}
	}
	return fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

// GetBySlug returns an event by its public slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM events WHERE slug = $1`, slug)
}

func (r *Repository) getOne(ctx context.Context, q string, arg interface{}) (*models.Event, error) {
	var e models.Event
	err := r.pool.QueryRow(ctx, q, arg).Scan(&e.ID, &e.OwnerID, &e.Name, &e.Slug, &e.Description, &e.Location, &e.StartsAt, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByOwner returns the organizer's events, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.Event{}
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Slug, &e.Description, &e.Location, &e.StartsAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Update saves name, description, location and date. The slug never changes.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET name = $1, description = $2, location = $3, starts_at = $4, updated_at = NOW()
		WHERE id = $5 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, e.Name, e.Description, e.Location, e.StartsAt, e.ID).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
