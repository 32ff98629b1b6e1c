package service

import (
	"context"
	"math"
	"testing"

	"github.com/himanshumudigonda/musclemeter/internal/discovery"
	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/himanshumudigonda/musclemeter/internal/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVenueService_CreateVenue(t *testing.T) {
	f := newFixture(t)

	v, err := f.venues.CreateVenue(context.Background(), owner, venueRequest("  Iron Den ", 80,
		PlanRequest{Name: "Monthly", Price: 1999, DurationDays: 30, Features: []string{"Cardio", " ", "Weights"}},
	))
	require.NoError(t, err)

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "Iron Den", v.Name)
	assert.Equal(t, owner.UserID, v.OwnerID)
	assert.Equal(t, 0, v.CurrentOccupancy)
	assert.True(t, v.IsActive)
	require.Len(t, v.Plans, 1)
	assert.Equal(t, v.ID, v.Plans[0].VenueID)
	assert.Equal(t, []string{"Cardio", "Weights"}, v.Plans[0].Features)
	assert.True(t, v.Plans[0].IsActive)
}

func TestVenueService_CreateVenueValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		actor   entity.Actor
		mutate  func(r *CreateVenueRequest)
		wantErr error
	}{
		{"athlete", athlete, func(r *CreateVenueRequest) {}, entity.ErrUnauthorized},
		{"anonymous", nobody, func(r *CreateVenueRequest) {}, entity.ErrUnauthorized},
		{"zero capacity", owner, func(r *CreateVenueRequest) { r.MaxCapacity = 0 }, entity.ErrInvalidCapacity},
		{"negative capacity", owner, func(r *CreateVenueRequest) { r.MaxCapacity = -5 }, entity.ErrInvalidCapacity},
		{"no plans", owner, func(r *CreateVenueRequest) { r.Plans = nil }, entity.ErrInvalidPlan},
		{"negative price", owner, func(r *CreateVenueRequest) { r.Plans[0].Price = -1 }, entity.ErrInvalidPlan},
		{"zero duration", owner, func(r *CreateVenueRequest) { r.Plans[0].DurationDays = 0 }, entity.ErrInvalidPlan},
		{"missing upi", owner, func(r *CreateVenueRequest) { r.UPIID = " " }, entity.ErrInvalidInput},
		{"missing name", owner, func(r *CreateVenueRequest) { r.Name = "" }, entity.ErrInvalidInput},
		{"bad latitude", owner, func(r *CreateVenueRequest) { r.Latitude = 91 }, entity.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := venueRequest("Iron Den", 50)
			tt.mutate(req)
			_, err := f.venues.CreateVenue(context.Background(), tt.actor, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	venues, err := f.venues.ListOwnerVenues(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, venues)
}

func TestVenueService_GetVenue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)

	_, err := f.capacity.SetOccupancy(ctx, owner, v.ID, 45)
	require.NoError(t, err)

	details, err := f.venues.GetVenue(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Iron Den", details.Name)
	assert.Len(t, details.Plans, 1)
	require.NotNil(t, details.Occupancy)
	assert.Equal(t, 90, details.Occupancy.Percentage)
	assert.Equal(t, entity.CrowdBusy, details.Occupancy.Level)

	_, err = f.venues.GetVenue(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrVenueNotFound)
}

func TestVenueService_ListOwnerVenues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustVenue(t, "Iron Den", 50)
	f.mustVenue(t, "Flex Hub", 50)
	_, err := f.venues.CreateVenue(ctx, rival, venueRequest("Elsewhere", 10))
	require.NoError(t, err)

	mine, err := f.venues.ListOwnerVenues(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, v := range mine {
		assert.Equal(t, owner.UserID, v.OwnerID)
		assert.NotEmpty(t, v.Plans)
	}

	_, err = f.venues.ListOwnerVenues(ctx, athlete)
	assert.ErrorIs(t, err, entity.ErrUnauthorized)
}

func TestVenueService_PlanManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)
	other, err := f.venues.CreateVenue(ctx, rival, venueRequest("Elsewhere", 10))
	require.NoError(t, err)

	plan, err := f.venues.AddPlan(ctx, owner, v.ID, &PlanRequest{Name: "Quarterly", Price: 4999, DurationDays: 90})
	require.NoError(t, err)
	assert.Equal(t, v.ID, plan.VenueID)

	_, err = f.venues.AddPlan(ctx, rival, v.ID, &PlanRequest{Name: "Sneaky", Price: 1, DurationDays: 1})
	assert.ErrorIs(t, err, entity.ErrUnauthorized)
	_, err = f.venues.AddPlan(ctx, owner, v.ID, &PlanRequest{Name: "Broken", Price: 10, DurationDays: 0})
	assert.ErrorIs(t, err, entity.ErrInvalidPlan)

	updated, err := f.venues.UpdatePlanPrice(ctx, owner, v.ID, plan.ID, 4499)
	require.NoError(t, err)
	assert.Equal(t, 4499.0, updated.Price)

	_, err = f.venues.UpdatePlanPrice(ctx, owner, v.ID, other.Plans[0].ID, 1)
	assert.ErrorIs(t, err, entity.ErrInvalidPlan)
	_, err = f.venues.UpdatePlanPrice(ctx, owner, v.ID, plan.ID, -1)
	assert.ErrorIs(t, err, entity.ErrInvalidPlan)

	details, err := f.venues.GetVenue(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, details.Plans, 2)
}

func TestVenueService_Deactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.mustVenue(t, "Iron Den", 50)
	booking := f.mustBooking(t, v)

	assert.ErrorIs(t, f.venues.DeactivateVenue(ctx, rival, v.ID), entity.ErrUnauthorized)
	require.NoError(t, f.venues.DeactivateVenue(ctx, owner, v.ID))
	require.NoError(t, f.venues.DeactivateVenue(ctx, owner, v.ID))

	items, err := f.venues.Discover(ctx, discovery.Criteria{})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = f.bookings.CreateBooking(ctx, athlete, &CreateBookingRequest{VenueID: v.ID, PlanID: v.Plans[0].ID})
	assert.ErrorIs(t, err, entity.ErrVenueInactive)

	// existing bookings can still be decided
	_, err = f.bookings.ApproveBooking(ctx, owner, booking.ID)
	assert.NoError(t, err)
}

func TestVenueService_PaymentLink(t *testing.T) {
	f := newFixture(t)
	v := f.mustVenue(t, "Iron Den", 50, PlanRequest{Name: "Monthly", Price: 1999, DurationDays: 30})

	link, err := f.venues.PaymentLink(context.Background(), v.ID, v.Plans[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "upi://pay?am=1999&cu=INR&pa=ironden%40upi&pn=Iron+Den&tn=MuscleMeter+membership", link)

	other := f.mustVenue(t, "Flex Hub", 50)
	_, err = f.venues.PaymentLink(context.Background(), v.ID, other.Plans[0].ID)
	assert.ErrorIs(t, err, entity.ErrInvalidPlan)
}

func TestVenueService_Discover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	near := f.mustVenue(t, "Near Quiet", 10)
	far, err := f.venues.CreateVenue(ctx, owner, &CreateVenueRequest{
		Name: "Far Busy", Address: "Mumbai", UPIID: "far@upi", MaxCapacity: 10,
		Latitude: 19.0760, Longitude: 72.8777,
		Amenities: []string{"Sauna"},
		Plans:     []PlanRequest{{Name: "Monthly", Price: 999, DurationDays: 30}},
	})
	require.NoError(t, err)

	_, err = f.capacity.SetOccupancy(ctx, owner, near.ID, 3)
	require.NoError(t, err)
	_, err = f.capacity.SetOccupancy(ctx, owner, far.ID, 9)
	require.NoError(t, err)

	origin := &geo.Point{Lat: 18.5204, Lng: 73.8567}

	items, err := f.venues.Discover(ctx, discovery.Criteria{Origin: origin, SortBy: discovery.SortDistance})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, near.ID, items[0].Venue.ID)
	assert.Equal(t, far.ID, items[1].Venue.ID)
	require.NotNil(t, items[1].DistanceKm)
	assert.InDelta(t, 120.0, *items[1].DistanceKm, 1.0)

	quiet, err := f.venues.Discover(ctx, discovery.Criteria{Crowd: entity.CrowdQuiet})
	require.NoError(t, err)
	require.Len(t, quiet, 1)
	assert.Equal(t, near.ID, quiet[0].Venue.ID)

	cheap, err := f.venues.Discover(ctx, discovery.Criteria{SortBy: discovery.SortPrice})
	require.NoError(t, err)
	require.Len(t, cheap, 2)
	assert.Equal(t, far.ID, cheap[0].Venue.ID)

	sauna, err := f.venues.Discover(ctx, discovery.Criteria{Amenities: []string{"sauna"}})
	require.NoError(t, err)
	require.Len(t, sauna, 1)
	assert.Equal(t, far.ID, sauna[0].Venue.ID)
}

func TestVenueService_DiscoverRejectsNonFiniteCriteria(t *testing.T) {
	f := newFixture(t)
	f.mustVenue(t, "Iron Den", 10)
	nan := math.NaN()

	_, err := f.venues.Discover(context.Background(), discovery.Criteria{MaxPrice: &nan})
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	_, err = f.venues.Discover(context.Background(), discovery.Criteria{
		Origin: &geo.Point{Lat: nan, Lng: 0},
		SortBy: discovery.SortDistance,
	})
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestVenueService_OpeningHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := venueRequest("Iron Den", 50)
	req.OpeningHours = map[string]string{" Mon-Fri ": " 06:00-22:00 ", "sun": " ", "": "10:00-14:00"}
	v, err := f.venues.CreateVenue(ctx, owner, req)
	require.NoError(t, err)
	assert.Equal(t, entity.OpeningHours{"mon-fri": "06:00-22:00"}, v.OpeningHours)

	details, err := f.venues.GetVenue(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OpeningHours{"mon-fri": "06:00-22:00"}, details.OpeningHours)

	req = venueRequest("Nan Gym", 50)
	req.Latitude = math.NaN()
	_, err = f.venues.CreateVenue(ctx, owner, req)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}
