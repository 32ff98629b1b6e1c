package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/himanshumudigonda/musclemeter/internal/database/memory"
	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishEvent(ctx context.Context, ev pubsub.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *mockEventPublisher) eventTypes() []pubsub.EventType {
	var types []pubsub.EventType
	for _, call := range m.Calls {
		types = append(types, call.Arguments.Get(1).(pubsub.Event).Type)
	}
	return types
}

type mockTaskPublisher struct {
	mock.Mock
}

func (m *mockTaskPublisher) Publish(ctx context.Context, task *Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	owner   = entity.Actor{UserID: "owner-1", Role: entity.RoleOwner}
	rival   = entity.Actor{UserID: "owner-2", Role: entity.RoleOwner}
	athlete = entity.Actor{UserID: "athlete-1", Role: entity.RoleAthlete}
	nobody  = entity.Actor{}
)

type fixture struct {
	store     *memory.Store
	hub       *pubsub.Hub
	clock     *fakeClock
	publisher *mockEventPublisher
	tasks     *mockTaskPublisher

	capacity *capacityService
	bookings *bookingService
	venues   *venueService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     memory.NewStore(),
		hub:       pubsub.NewHub(),
		clock:     &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		publisher: &mockEventPublisher{},
		tasks:     &mockTaskPublisher{},
	}
	f.publisher.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)
	f.tasks.On("Publish", mock.Anything, mock.Anything).Return(nil)

	venueRepo, planRepo, bookingRepo := f.store.Venues(), f.store.Plans(), f.store.Bookings()

	f.capacity = NewCapacityService(venueRepo, f.hub, f.publisher).(*capacityService)
	f.capacity.now = f.clock.Now
	f.bookings = NewBookingService(bookingRepo, venueRepo, planRepo, f.tasks, f.hub, f.publisher).(*bookingService)
	f.bookings.now = f.clock.Now
	f.venues = NewVenueService(venueRepo, planRepo, "MuscleMeter membership", f.hub, f.publisher).(*venueService)
	f.venues.now = f.clock.Now
	return f
}

func venueRequest(name string, capacity int, plans ...PlanRequest) *CreateVenueRequest {
	if len(plans) == 0 {
		plans = []PlanRequest{{Name: "Monthly", Price: 1999, DurationDays: 30}}
	}
	return &CreateVenueRequest{
		Name:        name,
		Address:     "12 MG Road, Pune",
		Latitude:    18.5204,
		Longitude:   73.8567,
		UPIID:       "ironden@upi",
		MaxCapacity: capacity,
		Amenities:   []string{"Showers", "Parking"},
		Plans:       plans,
	}
}

// mustVenue registers a venue for owner and returns it with its plans.
func (f *fixture) mustVenue(t *testing.T, name string, capacity int, plans ...PlanRequest) *entity.VenueWithPlans {
	t.Helper()
	v, err := f.venues.CreateVenue(context.Background(), owner, venueRequest(name, capacity, plans...))
	require.NoError(t, err)
	return v
}

func (f *fixture) mustBooking(t *testing.T, v *entity.VenueWithPlans) *entity.Booking {
	t.Helper()
	b, err := f.bookings.CreateBooking(context.Background(), athlete, &CreateBookingRequest{
		VenueID: v.ID,
		PlanID:  v.Plans[0].ID,
	})
	require.NoError(t, err)
	return b
}
