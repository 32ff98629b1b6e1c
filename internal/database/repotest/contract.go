// Package repotest holds the behaviour every repository implementation must
// share. Storage packages run it from their own tests.
package repotest

import (
	"context"
	"testing"
	"time"

	repository "github.com/himanshumudigonda/musclemeter/internal/database/postgres"
	"github.com/himanshumudigonda/musclemeter/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Repositories struct {
	Venues   repository.VenueRepository
	Plans    repository.PlanRepository
	Bookings repository.BookingRepository
}

// Run executes the contract. newRepos is called once per subtest and must
// return repositories over empty storage.
func Run(t *testing.T, newRepos func(t *testing.T) Repositories) {
	tests := []struct {
		name string
		fn   func(t *testing.T, r Repositories)
	}{
		{"VenueRoundTrip", testVenueRoundTrip},
		{"OccupancyAndActive", testOccupancyAndActive},
		{"StatusUpdateIsConditional", testStatusUpdateIsConditional},
		{"PendingCreatedBefore", testPendingCreatedBefore},
		{"BookingsByVenue", testBookingsByVenue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newRepos(t))
		})
	}
}

var epoch = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newVenue(owner string, at time.Time) *entity.Venue {
	return &entity.Venue{
		ID:           uuid.NewString(),
		OwnerID:      owner,
		Name:         "Iron Den",
		Description:  "Free weights and a squat rack",
		Address:      "12 MG Road, Pune",
		Latitude:     18.5204,
		Longitude:    73.8567,
		UPIID:        "ironden@upi",
		MaxCapacity:  50,
		Amenities:    []string{"Showers", "Parking"},
		Photos:       []string{"https://img.example/ironden.jpg"},
		OpeningHours: entity.OpeningHours{"mon-fri": "06:00-22:00"},
		IsActive:     true,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func newPlan(venueID, name string, price float64, at time.Time) *entity.Plan {
	return &entity.Plan{
		ID:           uuid.NewString(),
		VenueID:      venueID,
		Name:         name,
		Description:  name + " access",
		Price:        price,
		DurationDays: 30,
		Features:     []string{"Locker"},
		IsActive:     true,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func seed(t *testing.T, r Repositories) (*entity.Venue, *entity.Plan) {
	t.Helper()
	venue := newVenue("owner-1", epoch)
	plan := newPlan(venue.ID, "Monthly", 1999, epoch)
	require.NoError(t, r.Venues.Create(context.Background(), venue, []*entity.Plan{plan}))
	return venue, plan
}

func newBooking(plan *entity.Plan, user string, at time.Time) *entity.Booking {
	return entity.NewBooking(uuid.NewString(), user, plan, "UPI123456789012", at)
}

func ids(bookings []*entity.Booking) []string {
	out := make([]string, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.ID)
	}
	return out
}

func testVenueRoundTrip(t *testing.T, r Repositories) {
	ctx := context.Background()
	venue := newVenue("owner-1", epoch)
	premium := newPlan(venue.ID, "Quarterly", 4999, epoch)
	basic := newPlan(venue.ID, "Monthly", 1999, epoch)
	require.NoError(t, r.Venues.Create(ctx, venue, []*entity.Plan{premium, basic}))

	got, err := r.Venues.GetByID(ctx, venue.ID)
	require.NoError(t, err)
	assert.Equal(t, venue.Name, got.Name)
	assert.Equal(t, venue.Description, got.Description)
	assert.Equal(t, venue.UPIID, got.UPIID)
	assert.InDelta(t, venue.Latitude, got.Latitude, 1e-9)
	assert.Equal(t, venue.MaxCapacity, got.MaxCapacity)
	assert.Equal(t, venue.Amenities, got.Amenities)
	assert.Equal(t, venue.Photos, got.Photos)
	assert.Equal(t, venue.OpeningHours, got.OpeningHours)
	assert.WithinDuration(t, venue.CreatedAt, got.CreatedAt, time.Millisecond)

	plans, err := r.Plans.GetByVenue(ctx, venue.ID)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, basic.ID, plans[0].ID, "cheapest first")
	assert.Equal(t, "Monthly access", plans[0].Description)
	assert.Equal(t, []string{"Locker"}, plans[0].Features)

	require.NoError(t, r.Plans.UpdatePrice(ctx, basic.ID, 2499, epoch.Add(time.Hour)))
	byVenue, err := r.Plans.GetByVenues(ctx, []string{venue.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, byVenue[venue.ID], 2)
	assert.InDelta(t, 2499, byVenue[venue.ID][0].Price, 0.001)
	assert.Empty(t, byVenue["missing"])

	mine, err := r.Venues.GetByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = r.Venues.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrVenueNotFound)
	_, err = r.Plans.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrPlanNotFound)
	assert.ErrorIs(t, r.Plans.UpdatePrice(ctx, "missing", 10, epoch), entity.ErrPlanNotFound)
}

func testOccupancyAndActive(t *testing.T, r Repositories) {
	ctx := context.Background()
	venue, _ := seed(t, r)
	later := epoch.Add(5 * time.Minute)

	require.NoError(t, r.Venues.UpdateOccupancy(ctx, venue.ID, 31, later))
	got, err := r.Venues.GetByID(ctx, venue.ID)
	require.NoError(t, err)
	assert.Equal(t, 31, got.CurrentOccupancy)
	assert.WithinDuration(t, later, got.UpdatedAt, time.Millisecond)

	require.NoError(t, r.Venues.SetActive(ctx, venue.ID, false, later))
	active, err := r.Venues.GetActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, r.Venues.UpdateOccupancy(ctx, "missing", 1, later), entity.ErrVenueNotFound)
	assert.ErrorIs(t, r.Venues.SetActive(ctx, "missing", true, later), entity.ErrVenueNotFound)
}

func testStatusUpdateIsConditional(t *testing.T, r Repositories) {
	ctx := context.Background()
	_, plan := seed(t, r)

	booking := newBooking(plan, "athlete-1", epoch)
	require.NoError(t, r.Bookings.Create(ctx, booking))

	approved := *booking
	require.NoError(t, approved.Approve(plan.DurationDays, epoch.Add(time.Hour)))
	require.NoError(t, r.Bookings.UpdateStatus(ctx, &approved))

	got, err := r.Bookings.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusApproved, got.Status)
	require.NotNil(t, got.StartDate)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, "UPI123456789012", got.PaymentReference)
	assert.InDelta(t, 1999, got.Amount, 0.001)
	assert.WithinDuration(t, booking.CreatedAt, got.CreatedAt, time.Millisecond)

	// a second decision computed from the stale pending copy must lose
	rejected := *booking
	require.NoError(t, rejected.Reject(epoch.Add(2*time.Hour)))
	assert.ErrorIs(t, r.Bookings.UpdateStatus(ctx, &rejected), entity.ErrInvalidTransition)

	got, err = r.Bookings.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusApproved, got.Status)

	ghost := newBooking(plan, "athlete-1", epoch)
	require.NoError(t, ghost.Expire(epoch))
	assert.ErrorIs(t, r.Bookings.UpdateStatus(ctx, ghost), entity.ErrBookingNotFound)
	_, err = r.Bookings.GetByID(ctx, ghost.ID)
	assert.ErrorIs(t, err, entity.ErrBookingNotFound)
}

func testPendingCreatedBefore(t *testing.T, r Repositories) {
	ctx := context.Background()
	_, plan := seed(t, r)

	var pending []*entity.Booking
	for i := 0; i < 3; i++ {
		b := newBooking(plan, "athlete-1", epoch.Add(time.Duration(i)*time.Minute))
		require.NoError(t, r.Bookings.Create(ctx, b))
		pending = append(pending, b)
	}

	decided := newBooking(plan, "athlete-2", epoch.Add(-time.Minute))
	require.NoError(t, r.Bookings.Create(ctx, decided))
	require.NoError(t, decided.Reject(epoch))
	require.NoError(t, r.Bookings.UpdateStatus(ctx, decided))

	fresh := newBooking(plan, "athlete-3", epoch.Add(time.Hour))
	require.NoError(t, r.Bookings.Create(ctx, fresh))

	cutoff := epoch.Add(10 * time.Minute)

	got, err := r.Bookings.GetPendingCreatedBefore(ctx, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, ids(pending[:2]), ids(got), "oldest first, capped at limit")

	for _, limit := range []int{0, -1} {
		got, err = r.Bookings.GetPendingCreatedBefore(ctx, cutoff, limit)
		require.NoError(t, err)
		assert.Equal(t, ids(pending), ids(got), "limit %d returns every match", limit)
	}
}

func testBookingsByVenue(t *testing.T, r Repositories) {
	ctx := context.Background()
	venue, plan := seed(t, r)

	older := newBooking(plan, "athlete-1", epoch)
	newer := newBooking(plan, "athlete-2", epoch.Add(time.Minute))
	require.NoError(t, r.Bookings.Create(ctx, older))
	require.NoError(t, r.Bookings.Create(ctx, newer))
	require.NoError(t, newer.Approve(plan.DurationDays, epoch.Add(2*time.Minute)))
	require.NoError(t, r.Bookings.UpdateStatus(ctx, newer))

	all, err := r.Bookings.GetByVenue(ctx, venue.ID, entity.BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{newer.ID, older.ID}, ids(all))

	pending, err := r.Bookings.GetByVenue(ctx, venue.ID, entity.BookingFilter{Status: entity.BookingStatusPending})
	require.NoError(t, err)
	assert.Equal(t, []string{older.ID}, ids(pending))

	mine, err := r.Bookings.GetByUser(ctx, "athlete-2")
	require.NoError(t, err)
	assert.Equal(t, []string{newer.ID}, ids(mine))

	none, err := r.Bookings.GetByVenue(ctx, "missing", entity.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}
