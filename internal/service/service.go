package service

import (
	"context"
	"time"

	"github.com/himanshumudigonda/musclemeter/internal/discovery"
	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
)

// CapacityService tracks live venue occupancy. Mutations are owner only and
// every committed change is published to the venue's subscribers.
type CapacityService interface {
	GetOccupancy(ctx context.Context, venueID string) (*entity.Occupancy, error)
	SetOccupancy(ctx context.Context, actor entity.Actor, venueID string, count int) (*entity.Occupancy, error)
	AdjustOccupancy(ctx context.Context, actor entity.Actor, venueID string, delta int) (*entity.Occupancy, error)
	ResetOccupancy(ctx context.Context, actor entity.Actor, venueID string) (*entity.Occupancy, error)
}

// BookingService is the booking ledger.
type BookingService interface {
	CreateBooking(ctx context.Context, actor entity.Actor, req *CreateBookingRequest) (*entity.Booking, error)
	ApproveBooking(ctx context.Context, actor entity.Actor, bookingID string) (*entity.Booking, error)
	RejectBooking(ctx context.Context, actor entity.Actor, bookingID string) (*entity.Booking, error)
	GetBooking(ctx context.Context, actor entity.Actor, bookingID string) (*entity.Booking, error)

	ListVenueBookings(ctx context.Context, actor entity.Actor, venueID string, filter entity.BookingFilter) ([]*entity.Booking, error)
	ListUserBookings(ctx context.Context, actor entity.Actor) ([]*entity.Booking, error)
	GetVenueStats(ctx context.Context, actor entity.Actor, venueID string) (*entity.VenueBookingStats, error)

	// ExpireStaleBookings expires up to limit bookings left pending for longer than ttl.
	ExpireStaleBookings(ctx context.Context, ttl time.Duration, limit int) (int, error)
}

type VenueService interface {
	CreateVenue(ctx context.Context, actor entity.Actor, req *CreateVenueRequest) (*entity.VenueWithPlans, error)
	GetVenue(ctx context.Context, venueID string) (*VenueDetails, error)
	ListOwnerVenues(ctx context.Context, actor entity.Actor) ([]*entity.VenueWithPlans, error)
	DeactivateVenue(ctx context.Context, actor entity.Actor, venueID string) error

	AddPlan(ctx context.Context, actor entity.Actor, venueID string, req *PlanRequest) (*entity.Plan, error)
	UpdatePlanPrice(ctx context.Context, actor entity.Actor, venueID, planID string, price float64) (*entity.Plan, error)
	PaymentLink(ctx context.Context, venueID, planID string) (string, error)

	Discover(ctx context.Context, criteria discovery.Criteria) ([]*discovery.Item, error)
}

// EventPublisher forwards venue events to an external broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev pubsub.Event) error
}

type CreateBookingRequest struct {
	VenueID          string `json:"venue_id" binding:"required"`
	PlanID           string `json:"plan_id" binding:"required"`
	PaymentReference string `json:"payment_reference"`
}

type PlanRequest struct {
	Name         string   `json:"name" binding:"required,max=255"`
	Description  string   `json:"description" binding:"max=1000"`
	Price        float64  `json:"price"`
	DurationDays int      `json:"duration_days"`
	Features     []string `json:"features"`
	IsPopular    bool     `json:"is_popular"`
}

type CreateVenueRequest struct {
	Name        string   `json:"name" binding:"required,max=255"`
	Description string   `json:"description" binding:"max=2000"`
	Address     string   `json:"address" binding:"required"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	UPIID       string   `json:"upi_id" binding:"required"`
	MaxCapacity int      `json:"max_capacity"`
	Amenities   []string `json:"amenities"`
	Photos      []string `json:"photos"`
	// day or day range -> hours, e.g. {"mon-fri": "06:00-22:00"}
	OpeningHours map[string]string `json:"opening_hours"`
	Plans        []PlanRequest     `json:"plans"`
}

// VenueDetails is the public view of a venue with its crowd meter.
type VenueDetails struct {
	*entity.VenueWithPlans
	Occupancy *entity.Occupancy `json:"occupancy,omitempty"`
}

// TaskPublisher queues background tasks.
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	MaxRetries int                    `json:"max_retries"`
	Attempts   int                    `json:"attempts"`
}

const (
	TaskTypeSendNotification = "send_notification"
)

// Notification kinds carried in Task.Data["notification_type"]
const (
	NotificationBookingCreated  = "booking_created"
	NotificationBookingApproved = "booking_approved"
	NotificationBookingRejected = "booking_rejected"
	NotificationBookingExpired  = "booking_expired"
)
