package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	repository "github.com/himanshumudigonda/musclemeter/internal/database/postgres"
	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
	"github.com/sirupsen/logrus"
)

type bookingService struct {
	bookingRepo repository.BookingRepository
	venueRepo   repository.VenueRepository
	planRepo    repository.PlanRepository
	queue       TaskPublisher
	events      *notifier
	now         func() time.Time
}

// NewBookingService wires the booking ledger. queue may be nil, in which case
// owner and athlete notifications are skipped.
func NewBookingService(
	bookingRepo repository.BookingRepository,
	venueRepo repository.VenueRepository,
	planRepo repository.PlanRepository,
	queue TaskPublisher,
	broker pubsub.Broker,
	publishers ...EventPublisher,
) BookingService {
	return &bookingService{
		bookingRepo: bookingRepo,
		venueRepo:   venueRepo,
		planRepo:    planRepo,
		queue:       queue,
		events:      newNotifier(broker, publishers),
		now:         time.Now,
	}
}

// CreateBooking records a pending booking for the caller. The amount is frozen
// at the plan's price at this moment.
func (s *bookingService) CreateBooking(ctx context.Context, actor entity.Actor, req *CreateBookingRequest) (*entity.Booking, error) {
	if !actor.Authenticated() {
		return nil, fmt.Errorf("%w: authentication required", entity.ErrUnauthorized)
	}

	reference, err := entity.NormalizePaymentReference(req.PaymentReference)
	if err != nil {
		return nil, err
	}

	venue, err := s.venueRepo.GetByID(ctx, req.VenueID)
	if err != nil {
		return nil, err
	}
	if !venue.IsActive {
		return nil, fmt.Errorf("%w: %s", entity.ErrVenueInactive, venue.ID)
	}

	plan, err := s.planRepo.GetByID(ctx, req.PlanID)
	if errors.Is(err, entity.ErrPlanNotFound) {
		return nil, fmt.Errorf("%w: plan %s does not exist", entity.ErrInvalidPlan, req.PlanID)
	}
	if err != nil {
		return nil, err
	}
	if !plan.BelongsTo(venue.ID) {
		return nil, fmt.Errorf("%w: plan %s is not offered by venue %s", entity.ErrInvalidPlan, plan.ID, venue.ID)
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("%w: plan %s is no longer offered", entity.ErrInvalidPlan, plan.ID)
	}

	booking := entity.NewBooking(uuid.NewString(), actor.UserID, plan, reference, s.now())
	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"venue_id":   booking.VenueID,
		"plan_id":    booking.PlanID,
		"user_id":    booking.UserID,
		"amount":     booking.Amount,
	}).Info("Booking created")

	s.events.emitScoped(ctx, pubsub.EventBookingCreated, booking.VenueID, booking.Summary(), booking)
	s.notify(ctx, NotificationBookingCreated, booking, venue)
	return booking, nil
}

// ApproveBooking opens the booking's validity window using the plan's duration.
func (s *bookingService) ApproveBooking(ctx context.Context, actor entity.Actor, bookingID string) (*entity.Booking, error) {
	booking, venue, err := s.decidable(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	plan, err := s.planRepo.GetByID(ctx, booking.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan for booking %s: %w", booking.ID, err)
	}
	if err := booking.Approve(plan.DurationDays, s.now()); err != nil {
		return nil, err
	}
	if err := s.bookingRepo.UpdateStatus(ctx, booking); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"venue_id":   booking.VenueID,
		"status":     booking.Status,
		"end_date":   booking.EndDate,
	}).Info("Booking approved")

	s.events.emitScoped(ctx, pubsub.EventBookingApproved, booking.VenueID, booking.Summary(), booking)
	s.notify(ctx, NotificationBookingApproved, booking, venue)
	return booking, nil
}

func (s *bookingService) RejectBooking(ctx context.Context, actor entity.Actor, bookingID string) (*entity.Booking, error) {
	booking, venue, err := s.decidable(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	if err := booking.Reject(s.now()); err != nil {
		return nil, err
	}
	if err := s.bookingRepo.UpdateStatus(ctx, booking); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"venue_id":   booking.VenueID,
		"status":     booking.Status,
	}).Info("Booking rejected")

	s.events.emitScoped(ctx, pubsub.EventBookingRejected, booking.VenueID, booking.Summary(), booking)
	s.notify(ctx, NotificationBookingRejected, booking, venue)
	return booking, nil
}

// decidable loads a booking and checks that actor owns its venue.
func (s *bookingService) decidable(ctx context.Context, actor entity.Actor, bookingID string) (*entity.Booking, *entity.Venue, error) {
	if !actor.Authenticated() {
		return nil, nil, fmt.Errorf("%w: authentication required", entity.ErrUnauthorized)
	}
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	venue, err := ownedVenue(ctx, s.venueRepo, actor, booking.VenueID)
	if err != nil {
		return nil, nil, err
	}
	return booking, venue, nil
}

// GetBooking returns the booking to its author or to the venue owner.
func (s *bookingService) GetBooking(ctx context.Context, actor entity.Actor, bookingID string) (*entity.Booking, error) {
	if !actor.Authenticated() {
		return nil, fmt.Errorf("%w: authentication required", entity.ErrUnauthorized)
	}
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID == actor.UserID {
		return booking, nil
	}
	if _, err := ownedVenue(ctx, s.venueRepo, actor, booking.VenueID); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) ListVenueBookings(ctx context.Context, actor entity.Actor, venueID string, filter entity.BookingFilter) ([]*entity.Booking, error) {
	if _, err := ownedVenue(ctx, s.venueRepo, actor, venueID); err != nil {
		return nil, err
	}
	bookings, err := s.bookingRepo.GetByVenue(ctx, venueID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list venue bookings: %w", err)
	}
	return bookings, nil
}

func (s *bookingService) ListUserBookings(ctx context.Context, actor entity.Actor) ([]*entity.Booking, error) {
	if !actor.Authenticated() {
		return nil, fmt.Errorf("%w: authentication required", entity.ErrUnauthorized)
	}
	bookings, err := s.bookingRepo.GetByUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user bookings: %w", err)
	}
	return bookings, nil
}

// GetVenueStats recomputes revenue and counters from the venue's bookings.
func (s *bookingService) GetVenueStats(ctx context.Context, actor entity.Actor, venueID string) (*entity.VenueBookingStats, error) {
	bookings, err := s.ListVenueBookings(ctx, actor, venueID, entity.BookingFilter{})
	if err != nil {
		return nil, err
	}
	return entity.ComputeBookingStats(venueID, bookings), nil
}

func (s *bookingService) ExpireStaleBookings(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	now := s.now().UTC()
	stale, err := s.bookingRepo.GetPendingCreatedBefore(ctx, now.Add(-ttl), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get stale bookings: %w", err)
	}

	expired := 0
	for _, booking := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if err := booking.Expire(now); err != nil {
			continue
		}
		if err := s.bookingRepo.UpdateStatus(ctx, booking); err != nil {
			if errors.Is(err, entity.ErrInvalidTransition) {
				// decided by the owner in the meantime
				continue
			}
			logrus.WithField("booking_id", booking.ID).Errorf("Failed to expire booking: %v", err)
			continue
		}

		expired++
		s.events.emitScoped(ctx, pubsub.EventBookingExpired, booking.VenueID, booking.Summary(), booking)
		s.notify(ctx, NotificationBookingExpired, booking, nil)
	}

	if expired > 0 {
		logrus.WithField("count", expired).Info("Expired stale pending bookings")
	}
	return expired, nil
}

// notify queues a notification task. Queue failures are logged only.
func (s *bookingService) notify(ctx context.Context, kind string, booking *entity.Booking, venue *entity.Venue) {
	if s.queue == nil {
		return
	}

	data := map[string]interface{}{
		"notification_type": kind,
		"booking_id":        booking.ID,
		"venue_id":          booking.VenueID,
		"user_id":           booking.UserID,
		"amount":            booking.Amount,
		"status":            string(booking.Status),
	}
	if venue != nil {
		data["venue_name"] = venue.Name
	}
	if booking.EndDate != nil {
		data["end_date"] = booking.EndDate.Format(time.RFC3339)
	}

	task := &Task{
		ID:         uuid.NewString(),
		Type:       TaskTypeSendNotification,
		Data:       data,
		ExecuteAt:  s.now().UTC(),
		MaxRetries: 3,
	}
	if err := s.queue.Publish(ctx, task); err != nil {
		logrus.WithFields(logrus.Fields{
			"booking_id":        booking.ID,
			"notification_type": kind,
		}).Warnf("Failed to queue notification: %v", err)
	}
}
