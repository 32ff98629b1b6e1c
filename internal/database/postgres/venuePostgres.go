package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/lib/pq"
)

type venueRepository struct {
	db *sql.DB
}

// NewVenueRepository returns a VenueRepository backed by db.
func NewVenueRepository(db *sql.DB) VenueRepository {
	return &venueRepository{db: db}
}

const venueColumns = `id, owner_id, name, description, address, latitude, longitude, upi_id,
	max_capacity, current_occupancy, amenities, photos, opening_hours, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVenue(row rowScanner) (*entity.Venue, error) {
	var v entity.Venue
	err := row.Scan(
		&v.ID,
		&v.OwnerID,
		&v.Name,
		&v.Description,
		&v.Address,
		&v.Latitude,
		&v.Longitude,
		&v.UPIID,
		&v.MaxCapacity,
		&v.CurrentOccupancy,
		pq.Array(&v.Amenities),
		pq.Array(&v.Photos),
		&v.OpeningHours,
		&v.IsActive,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts the venue and its plans in one transaction
func (r *venueRepository) Create(ctx context.Context, venue *entity.Venue, plans []*entity.Plan) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO venues (` + venueColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = tx.ExecContext(ctx, query,
		venue.ID,
		venue.OwnerID,
		venue.Name,
		venue.Description,
		venue.Address,
		venue.Latitude,
		venue.Longitude,
		venue.UPIID,
		venue.MaxCapacity,
		venue.CurrentOccupancy,
		pq.Array(venue.Amenities),
		pq.Array(venue.Photos),
		venue.OpeningHours,
		venue.IsActive,
		venue.CreatedAt,
		venue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert venue: %w", err)
	}

	for _, plan := range plans {
		if err := insertPlan(ctx, tx, plan); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *venueRepository) GetByID(ctx context.Context, id string) (*entity.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = $1`

	venue, err := scanVenue(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrVenueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	return venue, nil
}

func (r *venueRepository) GetByOwner(ctx context.Context, ownerID string) ([]*entity.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, ownerID)
}

func (r *venueRepository) GetActive(ctx context.Context) ([]*entity.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE is_active = TRUE ORDER BY created_at`
	return r.list(ctx, query)
}

func (r *venueRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Venue, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query venues: %w", err)
	}
	defer rows.Close()

	var venues []*entity.Venue
	for rows.Next() {
		venue, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, venue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate venues: %w", err)
	}
	return venues, nil
}

func (r *venueRepository) UpdateOccupancy(ctx context.Context, id string, count int, at time.Time) error {
	query := `UPDATE venues SET current_occupancy = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, query, count, at, id)
}

func (r *venueRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	query := `UPDATE venues SET is_active = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, query, active, at, id)
}

func (r *venueRepository) execOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update venue: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrVenueNotFound
	}
	return nil
}
