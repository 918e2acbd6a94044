package facilities

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/asclepius/internal/models"
)

// Repository stores facilities in the public.facilities table.
type Repository struct {
	db  Database
	log *slog.Logger
}

// NewRepository creates a new instance of Repository with the provided Database.
// It returns a pointer to the newly created Repository.
func NewRepository(db Database, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// InitSchema creates the facilities table if it does not exist yet.
func (r *Repository) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS public.facilities (
			facility_id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			latitude DOUBLE PRECISION NOT NULL CHECK (latitude BETWEEN -90 AND 90),
			longitude DOUBLE PRECISION NOT NULL CHECK (longitude BETWEEN -180 AND 180)
		);
	`

	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create facilities table: %w", err)
	}

	return nil
}

// Load returns every facility ordered by insertion, so that ties in the
// nearest-facility search resolve the same way on every call.
func (r *Repository) Load(ctx context.Context) ([]models.Facility, error) {
	query := `
		SELECT name, latitude, longitude
		FROM public.facilities
		ORDER BY facility_id ASC;
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query facilities: %w", err)
	}
	defer rows.Close()

	facilities := make([]models.Facility, 0)
	for rows.Next() {
		var facility models.Facility
		if errScan := rows.Scan(
			&facility.Name, &facility.Location.Latitude, &facility.Location.Longitude,
		); errScan != nil {
			return nil, fmt.Errorf("failed to scan facility: %w", errScan)
		}
		facilities = append(facilities, facility)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	r.log.DebugContext(ctx, "Facilities loaded from database", "count", len(facilities))

	return facilities, nil
}

// UpsertFacility inserts a facility or moves an existing one with the same name.
func (r *Repository) UpsertFacility(ctx context.Context, facility models.Facility) error {
	if err := facility.Location.Validate(); err != nil {
		return fmt.Errorf("failed to upsert facility %q: %w", facility.Name, err)
	}

	query := `
		INSERT INTO public.facilities (name, latitude, longitude)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude;
	`

	_, err := r.db.Exec(ctx, query, facility.Name, facility.Location.Latitude, facility.Location.Longitude)
	if err != nil {
		return fmt.Errorf("failed to upsert facility %q: %w", facility.Name, err)
	}

	return nil
}

// Seed upserts all facilities in a single transaction.
func (r *Repository) Seed(ctx context.Context, facilities []models.Facility) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO public.facilities (name, latitude, longitude)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude;
	`

	for _, facility := range facilities {
		if _, err = tx.Exec(ctx, query,
			facility.Name, facility.Location.Latitude, facility.Location.Longitude,
		); err != nil {
			return fmt.Errorf("failed to seed facility %q: %w", facility.Name, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	r.log.InfoContext(ctx, "Facilities seeded", "count", len(facilities))

	return nil
}

var _ Source = (*Repository)(nil)
