package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/spasuite/booking-api/pkg/errors"

	"github.com/spasuite/booking-api/internal/model"
)

type catalogRepository struct {
	BaseRepository
}

func NewCatalogRepository(db *sqlx.DB) *catalogRepository {
	return &catalogRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *catalogRepository) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, active, created_at, updated_at
		FROM clients
		WHERE id = $1
	`
	var client model.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("client", err)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

func (r *catalogRepository) GetTherapist(ctx context.Context, id uuid.UUID) (*model.Therapist, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, active, created_at, updated_at
		FROM therapists
		WHERE id = $1
	`
	var therapist model.Therapist
	if err := r.db.GetContext(ctx, &therapist, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("therapist", err)
		}
		return nil, fmt.Errorf("failed to get therapist: %w", err)
	}
	return &therapist, nil
}

func (r *catalogRepository) ListActiveTherapists(ctx context.Context) ([]*model.Therapist, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, active, created_at, updated_at
		FROM therapists
		WHERE active = true
		ORDER BY last_name, first_name, id
	`
	var therapists []*model.Therapist
	if err := r.db.SelectContext(ctx, &therapists, query); err != nil {
		return nil, fmt.Errorf("failed to list therapists: %w", err)
	}
	return therapists, nil
}

func (r *catalogRepository) CreateTherapist(ctx context.Context, t *model.Therapist) error {
	query := `
		INSERT INTO therapists (id, first_name, last_name, email, phone, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	t.Active = true

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.FirstName, t.LastName, t.Email, t.Phone, t.Active, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create therapist: %w", err)
	}
	return nil
}

func (r *catalogRepository) GetRoom(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	query := `
		SELECT id, name, position, active, created_at, updated_at
		FROM rooms
		WHERE id = $1
	`
	var room model.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("room", err)
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

// ListActiveRooms returns rooms in stable position order; the availability
// engine relies on this ordering when it picks the first free room.
func (r *catalogRepository) ListActiveRooms(ctx context.Context) ([]*model.Room, error) {
	query := `
		SELECT id, name, position, active, created_at, updated_at
		FROM rooms
		WHERE active = true
		ORDER BY position, id
	`
	var rooms []*model.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

func (r *catalogRepository) CreateRoom(ctx context.Context, room *model.Room) error {
	query := `
		INSERT INTO rooms (id, name, position, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	room.ID = uuid.New()
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	room.Active = true

	_, err := r.db.ExecContext(ctx, query,
		room.ID, room.Name, room.Position, room.Active, room.CreatedAt, room.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (r *catalogRepository) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	query := `
		SELECT id, name, description, active, created_at, updated_at
		FROM services
		WHERE id = $1
	`
	var service model.Service
	if err := r.db.GetContext(ctx, &service, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("service", err)
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &service, nil
}

func (r *catalogRepository) ListServices(ctx context.Context) ([]*model.Service, error) {
	query := `
		SELECT id, name, description, active, created_at, updated_at
		FROM services
		WHERE active = true
		ORDER BY name
	`
	var services []*model.Service
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

func (r *catalogRepository) GetVariant(ctx context.Context, id uuid.UUID) (*model.ServiceVariant, error) {
	query := `
		SELECT id, service_id, name, duration_minutes, price, active, created_at, updated_at
		FROM service_variants
		WHERE id = $1
	`
	var variant model.ServiceVariant
	if err := r.db.GetContext(ctx, &variant, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("service variant", err)
		}
		return nil, fmt.Errorf("failed to get service variant: %w", err)
	}
	return &variant, nil
}

func (r *catalogRepository) ListVariants(ctx context.Context, serviceID uuid.UUID) ([]*model.ServiceVariant, error) {
	query := `
		SELECT id, service_id, name, duration_minutes, price, active, created_at, updated_at
		FROM service_variants
		WHERE service_id = $1 AND active = true
		ORDER BY duration_minutes
	`
	var variants []*model.ServiceVariant
	if err := r.db.SelectContext(ctx, &variants, query, serviceID); err != nil {
		return nil, fmt.Errorf("failed to list service variants: %w", err)
	}
	return variants, nil
}

func (r *catalogRepository) GetAddOns(ctx context.Context, ids []uuid.UUID) ([]*model.AddOn, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT id, name, price, active, created_at, updated_at
		FROM add_ons
		WHERE id IN (?)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build add-on query: %w", err)
	}
	query = r.db.Rebind(query)

	var addOns []*model.AddOn
	if err := r.db.SelectContext(ctx, &addOns, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get add-ons: %w", err)
	}
	return addOns, nil
}

func (r *catalogRepository) GetPackageDefinition(ctx context.Context, id uuid.UUID) (*model.PackageDefinition, error) {
	query := `
		SELECT id, name, hours, price, validity_days, active, created_at, updated_at
		FROM package_definitions
		WHERE id = $1
	`
	var def model.PackageDefinition
	if err := r.db.GetContext(ctx, &def, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("package definition", err)
		}
		return nil, fmt.Errorf("failed to get package definition: %w", err)
	}
	return &def, nil
}
