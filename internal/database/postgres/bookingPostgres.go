package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/himanshumudigonda/musclemeter/internal/entity"
)

type bookingRepository struct {
	db *sql.DB
}

// NewBookingRepository returns a BookingRepository backed by db.
func NewBookingRepository(db *sql.DB) BookingRepository {
	return &bookingRepository{db: db}
}

const bookingColumns = `id, user_id, venue_id, plan_id, amount, payment_reference, status,
	start_date, end_date, created_at, updated_at`

func scanBooking(row rowScanner) (*entity.Booking, error) {
	var (
		b         entity.Booking
		reference sql.NullString
		startDate sql.NullTime
		endDate   sql.NullTime
	)
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.VenueID,
		&b.PlanID,
		&b.Amount,
		&reference,
		&b.Status,
		&startDate,
		&endDate,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.PaymentReference = reference.String
	if startDate.Valid {
		t := startDate.Time.UTC()
		b.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time.UTC()
		b.EndDate = &t
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		booking.ID,
		booking.UserID,
		booking.VenueID,
		booking.PlanID,
		booking.Amount,
		nullString(booking.PaymentReference),
		booking.Status,
		nullTime(booking.StartDate),
		nullTime(booking.EndDate),
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by its ID
func (r *bookingRepository) GetByID(ctx context.Context, id string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// GetByVenue retrieves the venue's bookings, optionally restricted to one status
func (r *bookingRepository) GetByVenue(ctx context.Context, venueID string, filter entity.BookingFilter) ([]*entity.Booking, error) {
	if filter.Status == "" {
		query := `SELECT ` + bookingColumns + ` FROM bookings WHERE venue_id = $1 ORDER BY created_at DESC, id`
		return r.list(ctx, query, venueID)
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE venue_id = $1 AND status = $2 ORDER BY created_at DESC, id`
	return r.list(ctx, query, venueID, filter.Status)
}

func (r *bookingRepository) GetByUser(ctx context.Context, userID string) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC, id`
	return r.list(ctx, query, userID)
}

// GetPendingCreatedBefore returns pending bookings older than before, oldest
// first. A limit <= 0 returns all of them.
func (r *bookingRepository) GetPendingCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at, id`
	if limit <= 0 {
		return r.list(ctx, query, before)
	}
	return r.list(ctx, query+` LIMIT $2`, before, limit)
}

func (r *bookingRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// UpdateStatus writes the decided status and validity window of a booking that is still pending
func (r *bookingRepository) UpdateStatus(ctx context.Context, booking *entity.Booking) error {
	query := `
		UPDATE bookings
		SET status = $1, start_date = $2, end_date = $3, updated_at = $4
		WHERE id = $5 AND status = 'pending'
	`
	result, err := r.db.ExecContext(ctx, query,
		booking.Status,
		nullTime(booking.StartDate),
		nullTime(booking.EndDate),
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	current, err := r.GetByID(ctx, booking.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: booking %s is %s", entity.ErrInvalidTransition, current.ID, current.Status)
}
