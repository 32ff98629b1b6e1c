package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBookingService_CreateAndApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50, PlanRequest{Name: "Monthly", Price: 1999, DurationDays: 30})

	booking, err := f.bookings.CreateBooking(ctx, athlete, &CreateBookingRequest{
		VenueID:          v.ID,
		PlanID:           v.Plans[0].ID,
		PaymentReference: "  UTR123456789012 ",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, booking.Status)
	assert.Equal(t, 1999.0, booking.Amount)
	assert.Equal(t, "UTR123456789012", booking.PaymentReference)
	assert.Nil(t, booking.StartDate)
	assert.Nil(t, booking.EndDate)

	f.clock.Advance(2 * time.Hour)
	approvedAt := f.clock.Now()

	approved, err := f.bookings.ApproveBooking(ctx, owner, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusApproved, approved.Status)
	require.NotNil(t, approved.StartDate)
	require.NotNil(t, approved.EndDate)
	assert.True(t, approved.StartDate.Equal(approvedAt))
	assert.True(t, approved.EndDate.Equal(approvedAt.AddDate(0, 0, 30)))
	assert.Equal(t, 30*24*time.Hour, approved.EndDate.Sub(*approved.StartDate))

	stored, err := f.bookings.GetBooking(ctx, athlete, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusApproved, stored.Status)
	assert.Equal(t, time.UTC, stored.EndDate.Location())
}

func TestBookingService_DecisionsAreFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)
	booking := f.mustBooking(t, v)

	_, err := f.bookings.RejectBooking(ctx, owner, booking.ID)
	require.NoError(t, err)

	_, err = f.bookings.RejectBooking(ctx, owner, booking.ID)
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)

	_, err = f.bookings.ApproveBooking(ctx, owner, booking.ID)
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)

	stored, err := f.bookings.GetBooking(ctx, owner, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusRejected, stored.Status)
	assert.Nil(t, stored.StartDate)
}

func TestBookingService_ApproveTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)
	booking := f.mustBooking(t, v)

	first, err := f.bookings.ApproveBooking(ctx, owner, booking.ID)
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	_, err = f.bookings.ApproveBooking(ctx, owner, booking.ID)
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)

	stored, err := f.bookings.GetBooking(ctx, owner, booking.ID)
	require.NoError(t, err)
	assert.True(t, stored.StartDate.Equal(*first.StartDate))
}

func TestBookingService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)
	other := f.mustVenue(t, "Flex Hub", 50)
	closed := f.mustVenue(t, "Closed Gym", 50)
	require.NoError(t, f.venues.DeactivateVenue(ctx, owner, closed.ID))

	tests := []struct {
		name    string
		actor   entity.Actor
		req     CreateBookingRequest
		wantErr error
	}{
		{
			name:    "unauthenticated",
			actor:   nobody,
			req:     CreateBookingRequest{VenueID: v.ID, PlanID: v.Plans[0].ID},
			wantErr: entity.ErrUnauthorized,
		},
		{
			name:    "inactive venue",
			actor:   athlete,
			req:     CreateBookingRequest{VenueID: closed.ID, PlanID: closed.Plans[0].ID},
			wantErr: entity.ErrVenueInactive,
		},
		{
			name:    "plan of another venue",
			actor:   athlete,
			req:     CreateBookingRequest{VenueID: v.ID, PlanID: other.Plans[0].ID},
			wantErr: entity.ErrInvalidPlan,
		},
		{
			name:    "unknown plan",
			actor:   athlete,
			req:     CreateBookingRequest{VenueID: v.ID, PlanID: "missing"},
			wantErr: entity.ErrInvalidPlan,
		},
		{
			name:    "unknown venue",
			actor:   athlete,
			req:     CreateBookingRequest{VenueID: "missing", PlanID: v.Plans[0].ID},
			wantErr: entity.ErrVenueNotFound,
		},
		{
			name:    "reference too short",
			actor:   athlete,
			req:     CreateBookingRequest{VenueID: v.ID, PlanID: v.Plans[0].ID, PaymentReference: "12345"},
			wantErr: entity.ErrMalformedReference,
		},
		{
			name:    "reference with symbols",
			actor:   athlete,
			req:     CreateBookingRequest{VenueID: v.ID, PlanID: v.Plans[0].ID, PaymentReference: "UTR-1234567890"},
			wantErr: entity.ErrMalformedReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.bookings.CreateBooking(ctx, tt.actor, &req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	bookings, err := f.bookings.ListVenueBookings(ctx, owner, v.ID, entity.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestBookingService_AmountIsFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50, PlanRequest{Name: "Monthly", Price: 1999, DurationDays: 30})
	booking := f.mustBooking(t, v)

	_, err := f.venues.UpdatePlanPrice(ctx, owner, v.ID, v.Plans[0].ID, 2499)
	require.NoError(t, err)

	_, err = f.bookings.ApproveBooking(ctx, owner, booking.ID)
	require.NoError(t, err)

	stats, err := f.bookings.GetVenueStats(ctx, owner, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1999.0, stats.TotalRevenue)

	later := f.mustBooking(t, v)
	assert.Equal(t, 2499.0, later.Amount)
}

func TestBookingService_OnlyVenueOwnerDecides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)
	booking := f.mustBooking(t, v)

	for _, actor := range []entity.Actor{rival, athlete, nobody} {
		_, err := f.bookings.ApproveBooking(ctx, actor, booking.ID)
		assert.ErrorIs(t, err, entity.ErrUnauthorized)
		_, err = f.bookings.RejectBooking(ctx, actor, booking.ID)
		assert.ErrorIs(t, err, entity.ErrUnauthorized)
	}

	stored, err := f.bookings.GetBooking(ctx, owner, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, stored.Status)

	_, err = f.bookings.ListVenueBookings(ctx, rival, v.ID, entity.BookingFilter{})
	assert.ErrorIs(t, err, entity.ErrUnauthorized)
	_, err = f.bookings.GetVenueStats(ctx, athlete, v.ID)
	assert.ErrorIs(t, err, entity.ErrUnauthorized)
}

func TestBookingService_GetBookingVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)
	booking := f.mustBooking(t, v)

	_, err := f.bookings.GetBooking(ctx, athlete, booking.ID)
	assert.NoError(t, err)
	_, err = f.bookings.GetBooking(ctx, owner, booking.ID)
	assert.NoError(t, err)
	_, err = f.bookings.GetBooking(ctx, rival, booking.ID)
	assert.ErrorIs(t, err, entity.ErrUnauthorized)
	_, err = f.bookings.GetBooking(ctx, athlete, "missing")
	assert.ErrorIs(t, err, entity.ErrBookingNotFound)
}

func TestBookingService_ListsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, f.mustBooking(t, v).ID)
		f.clock.Advance(time.Minute)
	}
	_, err := f.bookings.ApproveBooking(ctx, owner, ids[1])
	require.NoError(t, err)

	all, err := f.bookings.ListVenueBookings(ctx, owner, v.ID, entity.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})

	pending, err := f.bookings.ListVenueBookings(ctx, owner, v.ID, entity.BookingFilter{Status: entity.BookingStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[2], pending[0].ID)
	assert.Equal(t, ids[0], pending[1].ID)

	approved, err := f.bookings.ListVenueBookings(ctx, owner, v.ID, entity.BookingFilter{Status: entity.BookingStatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, ids[1], approved[0].ID)

	mine, err := f.bookings.ListUserBookings(ctx, athlete)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
	assert.Equal(t, ids[2], mine[0].ID)
}

func TestBookingService_Stats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50,
		PlanRequest{Name: "Monthly", Price: 1999, DurationDays: 30},
		PlanRequest{Name: "Day pass", Price: 199, DurationDays: 1},
	)

	book := func(planID string) *entity.Booking {
		b, err := f.bookings.CreateBooking(ctx, athlete, &CreateBookingRequest{VenueID: v.ID, PlanID: planID})
		require.NoError(t, err)
		return b
	}
	monthly, daily := v.Plans[0].ID, v.Plans[1].ID

	a := book(monthly)
	b := book(daily)
	c := book(monthly)
	book(daily)

	_, err := f.bookings.ApproveBooking(ctx, owner, a.ID)
	require.NoError(t, err)
	_, err = f.bookings.ApproveBooking(ctx, owner, b.ID)
	require.NoError(t, err)
	_, err = f.bookings.RejectBooking(ctx, owner, c.ID)
	require.NoError(t, err)

	stats, err := f.bookings.GetVenueStats(ctx, owner, v.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2198.0, stats.TotalRevenue, 1e-9)
	assert.Equal(t, 1, stats.PendingCount)
	assert.Equal(t, 2, stats.ActiveMembers())
	assert.Equal(t, 4, stats.TotalBookings)
}

func TestBookingService_ExpireStaleBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)

	old := f.mustBooking(t, v)
	decided := f.mustBooking(t, v)
	_, err := f.bookings.ApproveBooking(ctx, owner, decided.ID)
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	fresh := f.mustBooking(t, v)
	f.clock.Advance(time.Hour)

	n, err := f.bookings.ExpireStaleBookings(ctx, 24*time.Hour, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.bookings.GetBooking(ctx, owner, old.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusExpired, got.Status)

	got, err = f.bookings.GetBooking(ctx, owner, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, got.Status)

	got, err = f.bookings.GetBooking(ctx, owner, decided.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusApproved, got.Status)

	_, err = f.bookings.ApproveBooking(ctx, owner, old.ID)
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
	assert.Contains(t, f.publisher.eventTypes(), pubsub.EventBookingExpired)
}

func TestBookingService_PublishesLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)

	var seen []pubsub.EventType
	f.hub.Subscribe(v.ID, func(_ context.Context, ev pubsub.Event) error {
		seen = append(seen, ev.Type)
		return nil
	})

	booking := f.mustBooking(t, v)
	_, err := f.bookings.ApproveBooking(ctx, owner, booking.ID)
	require.NoError(t, err)
	_, err = f.bookings.RejectBooking(ctx, owner, booking.ID)
	require.Error(t, err)

	assert.Equal(t, []pubsub.EventType{pubsub.EventBookingCreated, pubsub.EventBookingApproved}, seen)
}

func TestBookingService_StreamEventsAreRedacted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)

	var payloads []map[string]interface{}
	f.hub.Subscribe(v.ID, func(_ context.Context, ev pubsub.Event) error {
		var body map[string]interface{}
		if err := json.Unmarshal(ev.Payload, &body); err != nil {
			return err
		}
		payloads = append(payloads, body)
		return nil
	})

	booking, err := f.bookings.CreateBooking(ctx, athlete, &CreateBookingRequest{
		VenueID:          v.ID,
		PlanID:           v.Plans[0].ID,
		PaymentReference: "UPI-REF-20250301",
	})
	require.NoError(t, err)
	_, err = f.bookings.ApproveBooking(ctx, owner, booking.ID)
	require.NoError(t, err)

	require.Len(t, payloads, 2)
	for _, body := range payloads {
		assert.Equal(t, booking.ID, body["id"])
		for _, field := range []string{"payment_reference", "user_id", "amount"} {
			assert.NotContains(t, body, field)
		}
	}

	var forwarded *entity.Booking
	for _, call := range f.publisher.Calls {
		ev := call.Arguments.Get(1).(pubsub.Event)
		if ev.Type == pubsub.EventBookingCreated {
			require.NoError(t, json.Unmarshal(ev.Payload, &forwarded))
		}
	}
	require.NotNil(t, forwarded)
	assert.Equal(t, "UPI-REF-20250301", forwarded.PaymentReference)
	assert.Equal(t, athlete.UserID, forwarded.UserID)
}

func TestBookingService_QueuesNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)

	booking := f.mustBooking(t, v)
	_, err := f.bookings.ApproveBooking(ctx, owner, booking.ID)
	require.NoError(t, err)

	f.tasks.AssertNumberOfCalls(t, "Publish", 2)
	f.tasks.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(task *Task) bool {
		return task.Type == TaskTypeSendNotification &&
			task.Data["notification_type"] == NotificationBookingApproved &&
			task.Data["booking_id"] == booking.ID &&
			task.Data["venue_name"] == "Iron Den"
	}))
}
