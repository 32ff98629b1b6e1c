// Package memory keeps venues, plans and bookings in process memory.
// It backs single-instance deployments without Postgres and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/himanshumudigonda/musclemeter/internal/entity"
)

// Store holds all three collections behind one lock.
type Store struct {
	mu       sync.RWMutex
	venues   map[string]*entity.Venue
	plans    map[string]*entity.Plan
	bookings map[string]*entity.Booking
	// insertion order, used to break created_at ties deterministically
	seq map[string]int
	n   int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		venues:   make(map[string]*entity.Venue),
		plans:    make(map[string]*entity.Plan),
		bookings: make(map[string]*entity.Booking),
		seq:      make(map[string]int),
	}
}

func (s *Store) Venues() *VenueRepository     { return &VenueRepository{s: s} }
func (s *Store) Plans() *PlanRepository       { return &PlanRepository{s: s} }
func (s *Store) Bookings() *BookingRepository { return &BookingRepository{s: s} }

func (s *Store) track(id string) {
	s.n++
	s.seq[id] = s.n
}

func copyVenue(v *entity.Venue) *entity.Venue {
	c := *v
	c.Amenities = append([]string(nil), v.Amenities...)
	c.Photos = append([]string(nil), v.Photos...)
	c.OpeningHours = v.OpeningHours.Clone()
	return &c
}

func copyPlan(p *entity.Plan) *entity.Plan {
	c := *p
	c.Features = append([]string(nil), p.Features...)
	return &c
}

func copyBooking(b *entity.Booking) *entity.Booking {
	c := *b
	if b.StartDate != nil {
		t := *b.StartDate
		c.StartDate = &t
	}
	if b.EndDate != nil {
		t := *b.EndDate
		c.EndDate = &t
	}
	return &c
}

type VenueRepository struct {
	s *Store
}

func (r *VenueRepository) Create(_ context.Context, venue *entity.Venue, plans []*entity.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.venues[venue.ID]; ok {
		return fmt.Errorf("venue %s already exists", venue.ID)
	}
	for _, p := range plans {
		if _, ok := r.s.plans[p.ID]; ok {
			return fmt.Errorf("plan %s already exists", p.ID)
		}
	}
	r.s.venues[venue.ID] = copyVenue(venue)
	r.s.track(venue.ID)
	for _, p := range plans {
		r.s.plans[p.ID] = copyPlan(p)
		r.s.track(p.ID)
	}
	return nil
}

func (r *VenueRepository) GetByID(_ context.Context, id string) (*entity.Venue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.venues[id]
	if !ok {
		return nil, entity.ErrVenueNotFound
	}
	return copyVenue(v), nil
}

func (r *VenueRepository) GetByOwner(_ context.Context, ownerID string) ([]*entity.Venue, error) {
	venues := r.filter(func(v *entity.Venue) bool { return v.OwnerID == ownerID })
	// newest first
	for i, j := 0, len(venues)-1; i < j; i, j = i+1, j-1 {
		venues[i], venues[j] = venues[j], venues[i]
	}
	return venues, nil
}

func (r *VenueRepository) GetActive(_ context.Context) ([]*entity.Venue, error) {
	return r.filter(func(v *entity.Venue) bool { return v.IsActive }), nil
}

// filter returns matching venues in creation order
func (r *VenueRepository) filter(keep func(v *entity.Venue) bool) []*entity.Venue {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Venue
	for _, v := range r.s.venues {
		if keep(v) {
			out = append(out, copyVenue(v))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return r.s.seq[out[i].ID] < r.s.seq[out[j].ID]
	})
	return out
}

func (r *VenueRepository) UpdateOccupancy(_ context.Context, id string, count int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.venues[id]
	if !ok {
		return entity.ErrVenueNotFound
	}
	v.CurrentOccupancy = count
	v.UpdatedAt = at
	return nil
}

func (r *VenueRepository) SetActive(_ context.Context, id string, active bool, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.venues[id]
	if !ok {
		return entity.ErrVenueNotFound
	}
	v.IsActive = active
	v.UpdatedAt = at
	return nil
}

type PlanRepository struct {
	s *Store
}

func (r *PlanRepository) Create(_ context.Context, plan *entity.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.plans[plan.ID]; ok {
		return fmt.Errorf("plan %s already exists", plan.ID)
	}
	r.s.plans[plan.ID] = copyPlan(plan)
	r.s.track(plan.ID)
	return nil
}

func (r *PlanRepository) GetByID(_ context.Context, id string) (*entity.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.plans[id]
	if !ok {
		return nil, entity.ErrPlanNotFound
	}
	return copyPlan(p), nil
}

func (r *PlanRepository) GetByVenue(ctx context.Context, venueID string) ([]*entity.Plan, error) {
	byVenue, err := r.GetByVenues(ctx, []string{venueID})
	if err != nil {
		return nil, err
	}
	return byVenue[venueID], nil
}

// GetByVenues returns plans grouped by venue, cheapest first
func (r *PlanRepository) GetByVenues(_ context.Context, venueIDs []string) (map[string][]*entity.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wanted := make(map[string]bool, len(venueIDs))
	for _, id := range venueIDs {
		wanted[id] = true
	}

	result := make(map[string][]*entity.Plan, len(venueIDs))
	for _, p := range r.s.plans {
		if wanted[p.VenueID] {
			result[p.VenueID] = append(result[p.VenueID], copyPlan(p))
		}
	}
	for _, plans := range result {
		sort.SliceStable(plans, func(i, j int) bool {
			if plans[i].Price != plans[j].Price {
				return plans[i].Price < plans[j].Price
			}
			return r.s.seq[plans[i].ID] < r.s.seq[plans[j].ID]
		})
	}
	return result, nil
}

func (r *PlanRepository) UpdatePrice(_ context.Context, id string, price float64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.plans[id]
	if !ok {
		return entity.ErrPlanNotFound
	}
	p.Price = price
	p.UpdatedAt = at
	return nil
}

type BookingRepository struct {
	s *Store
}

func (r *BookingRepository) Create(_ context.Context, booking *entity.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.bookings[booking.ID]; ok {
		return fmt.Errorf("booking %s already exists", booking.ID)
	}
	r.s.bookings[booking.ID] = copyBooking(booking)
	r.s.track(booking.ID)
	return nil
}

func (r *BookingRepository) GetByID(_ context.Context, id string) (*entity.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (r *BookingRepository) GetByVenue(_ context.Context, venueID string, filter entity.BookingFilter) ([]*entity.Booking, error) {
	return r.newestFirst(func(b *entity.Booking) bool {
		return b.VenueID == venueID && filter.Matches(b)
	}), nil
}

func (r *BookingRepository) GetByUser(_ context.Context, userID string) ([]*entity.Booking, error) {
	return r.newestFirst(func(b *entity.Booking) bool { return b.UserID == userID }), nil
}

func (r *BookingRepository) GetPendingCreatedBefore(_ context.Context, before time.Time, limit int) ([]*entity.Booking, error) {
	out := r.newestFirst(func(b *entity.Booking) bool {
		return b.Status == entity.BookingStatusPending && b.CreatedAt.Before(before)
	})
	// oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *BookingRepository) newestFirst(keep func(b *entity.Booking) bool) []*entity.Booking {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Booking
	for _, b := range r.s.bookings {
		if keep(b) {
			out = append(out, copyBooking(b))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.s.seq[out[i].ID] > r.s.seq[out[j].ID]
	})
	return out
}

func (r *BookingRepository) UpdateStatus(_ context.Context, booking *entity.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.bookings[booking.ID]
	if !ok {
		return entity.ErrBookingNotFound
	}
	if current.Status != entity.BookingStatusPending {
		return fmt.Errorf("%w: booking %s is %s", entity.ErrInvalidTransition, current.ID, current.Status)
	}
	updated := copyBooking(booking)
	updated.CreatedAt = current.CreatedAt
	r.s.bookings[booking.ID] = updated
	return nil
}
