package repository

import (
	"context"
	"time"

	"github.com/himanshumudigonda/musclemeter/internal/entity"
)

type VenueRepository interface {
	// Create stores a venue together with its initial plans
	Create(ctx context.Context, venue *entity.Venue, plans []*entity.Plan) error
	GetByID(ctx context.Context, id string) (*entity.Venue, error)
	GetByOwner(ctx context.Context, ownerID string) ([]*entity.Venue, error)
	GetActive(ctx context.Context) ([]*entity.Venue, error)

	// Last write wins, callers pass an already clamped count
	UpdateOccupancy(ctx context.Context, id string, count int, at time.Time) error
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
}

type PlanRepository interface {
	Create(ctx context.Context, plan *entity.Plan) error
	GetByID(ctx context.Context, id string) (*entity.Plan, error)
	GetByVenue(ctx context.Context, venueID string) ([]*entity.Plan, error)
	GetByVenues(ctx context.Context, venueIDs []string) (map[string][]*entity.Plan, error)
	UpdatePrice(ctx context.Context, id string, price float64, at time.Time) error
}

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	GetByID(ctx context.Context, id string) (*entity.Booking, error)

	// Query operations, newest first
	GetByVenue(ctx context.Context, venueID string, filter entity.BookingFilter) ([]*entity.Booking, error)
	GetByUser(ctx context.Context, userID string) ([]*entity.Booking, error)

	// UpdateStatus persists a transition decided on the entity. It only applies
	// to bookings still pending in storage and returns ErrInvalidTransition otherwise.
	UpdateStatus(ctx context.Context, booking *entity.Booking) error

	// Expiration operations
	GetPendingCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*entity.Booking, error)
}
