package entity

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending  BookingStatus = "pending"
	BookingStatusApproved BookingStatus = "approved"
	BookingStatusRejected BookingStatus = "rejected"
	BookingStatusExpired  BookingStatus = "expired"
)

// ParseBookingStatus accepts the persisted status names.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case BookingStatusPending, BookingStatusApproved, BookingStatusRejected, BookingStatusExpired:
		return BookingStatus(s), nil
	default:
		return "", fmt.Errorf("%w: invalid booking status %q", ErrInvalidInput, s)
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s BookingStatus) IsTerminal() bool {
	return s != BookingStatusPending
}

type Booking struct {
	ID               string        `json:"id" db:"id"`
	UserID           string        `json:"user_id" db:"user_id"`
	VenueID          string        `json:"venue_id" db:"venue_id"`
	PlanID           string        `json:"plan_id" db:"plan_id"`
	Amount           float64       `json:"amount" db:"amount"`
	PaymentReference string        `json:"payment_reference,omitempty" db:"payment_reference"`
	Status           BookingStatus `json:"status" db:"status"`
	StartDate        *time.Time    `json:"start_date,omitempty" db:"start_date"`
	EndDate          *time.Time    `json:"end_date,omitempty" db:"end_date"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// NewBooking creates a pending booking with the amount frozen at the plan's current price.
func NewBooking(id, userID string, plan *Plan, paymentReference string, now time.Time) *Booking {
	now = now.UTC()
	return &Booking{
		ID:               id,
		UserID:           userID,
		VenueID:          plan.VenueID,
		PlanID:           plan.ID,
		Amount:           plan.Price,
		PaymentReference: paymentReference,
		Status:           BookingStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (b *Booking) transition(to BookingStatus, now time.Time) error {
	if b.Status != BookingStatusPending {
		return fmt.Errorf("%w: booking %s is %s, cannot become %s", ErrInvalidTransition, b.ID, b.Status, to)
	}
	b.Status = to
	b.UpdatedAt = now.UTC()
	return nil
}

// Approve moves a pending booking to approved and opens its validity window
// of durationDays whole days starting at now, in UTC.
func (b *Booking) Approve(durationDays int, now time.Time) error {
	if durationDays <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidPlan, durationDays)
	}
	if err := b.transition(BookingStatusApproved, now); err != nil {
		return err
	}
	start := now.UTC()
	end := start.AddDate(0, 0, durationDays)
	b.StartDate = &start
	b.EndDate = &end
	return nil
}

func (b *Booking) Reject(now time.Time) error {
	return b.transition(BookingStatusRejected, now)
}

func (b *Booking) Expire(now time.Time) error {
	return b.transition(BookingStatusExpired, now)
}

// BookingSummary is the part of a booking that venue stream subscribers see.
// It carries no payer identity, amount or payment reference.
type BookingSummary struct {
	ID        string        `json:"id"`
	VenueID   string        `json:"venue_id"`
	PlanID    string        `json:"plan_id"`
	Status    BookingStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (b *Booking) Summary() BookingSummary {
	return BookingSummary{
		ID:        b.ID,
		VenueID:   b.VenueID,
		PlanID:    b.PlanID,
		Status:    b.Status,
		UpdatedAt: b.UpdatedAt,
	}
}

// BookingFilter selects bookings for a review queue; an empty Status means all.
type BookingFilter struct {
	Status BookingStatus
}

// Matches reports whether b passes the filter.
func (f BookingFilter) Matches(b *Booking) bool {
	return f.Status == "" || b.Status == f.Status
}

// ParseBookingFilter accepts "all" or "" in addition to the status names.
func ParseBookingFilter(s string) (BookingFilter, error) {
	if s == "" || s == "all" {
		return BookingFilter{}, nil
	}
	status, err := ParseBookingStatus(s)
	if err != nil {
		return BookingFilter{}, err
	}
	return BookingFilter{Status: status}, nil
}
