package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	repository "github.com/himanshumudigonda/musclemeter/internal/database/postgres"
	"github.com/himanshumudigonda/musclemeter/internal/discovery"
	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/himanshumudigonda/musclemeter/internal/pkg/geo"
	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
	"github.com/sirupsen/logrus"
)

type venueService struct {
	venueRepo   repository.VenueRepository
	planRepo    repository.PlanRepository
	events      *notifier
	paymentNote string
	now         func() time.Time
}

// NewVenueService builds the venue registry and discovery service.
// paymentNote is the transaction note embedded in generated UPI links.
func NewVenueService(
	venueRepo repository.VenueRepository,
	planRepo repository.PlanRepository,
	paymentNote string,
	broker pubsub.Broker,
	publishers ...EventPublisher,
) VenueService {
	return &venueService{
		venueRepo:   venueRepo,
		planRepo:    planRepo,
		events:      newNotifier(broker, publishers),
		paymentNote: paymentNote,
		now:         time.Now,
	}
}

// CreateVenue registers a venue with its initial plans. Occupancy starts at zero.
func (s *venueService) CreateVenue(ctx context.Context, actor entity.Actor, req *CreateVenueRequest) (*entity.VenueWithPlans, error) {
	if !actor.IsOwner() {
		return nil, fmt.Errorf("%w: only owners can register venues", entity.ErrUnauthorized)
	}
	if err := validateVenueRequest(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	venue := &entity.Venue{
		ID:           uuid.NewString(),
		OwnerID:      actor.UserID,
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		Address:      strings.TrimSpace(req.Address),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		UPIID:        strings.TrimSpace(req.UPIID),
		MaxCapacity:  req.MaxCapacity,
		Amenities:    cleanList(req.Amenities),
		Photos:       cleanList(req.Photos),
		OpeningHours: cleanHours(req.OpeningHours),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	plans := make([]*entity.Plan, 0, len(req.Plans))
	for i := range req.Plans {
		plans = append(plans, newPlan(venue.ID, &req.Plans[i], now))
	}

	if err := s.venueRepo.Create(ctx, venue, plans); err != nil {
		return nil, fmt.Errorf("failed to create venue: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"venue_id": venue.ID,
		"owner_id": venue.OwnerID,
		"plans":    len(plans),
	}).Info("Venue created")

	result := &entity.VenueWithPlans{Venue: *venue, Plans: plans}
	s.events.emit(ctx, pubsub.EventVenueUpdated, venue.ID, result)
	return result, nil
}

func validateVenueRequest(req *CreateVenueRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required", entity.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Address) == "" {
		return fmt.Errorf("%w: address is required", entity.ErrInvalidInput)
	}
	if strings.TrimSpace(req.UPIID) == "" {
		return fmt.Errorf("%w: upi id is required", entity.ErrInvalidInput)
	}
	if !(geo.Point{Lat: req.Latitude, Lng: req.Longitude}).Valid() {
		return fmt.Errorf("%w: coordinates out of range", entity.ErrInvalidInput)
	}
	if req.MaxCapacity <= 0 {
		return fmt.Errorf("%w: max capacity must be positive, got %d", entity.ErrInvalidCapacity, req.MaxCapacity)
	}
	if len(req.Plans) == 0 {
		return fmt.Errorf("%w: at least one plan is required", entity.ErrInvalidPlan)
	}
	for i := range req.Plans {
		if err := validatePlanRequest(&req.Plans[i]); err != nil {
			return err
		}
	}
	return nil
}

func validatePlanRequest(req *PlanRequest) error {
	p := entity.Plan{Name: strings.TrimSpace(req.Name), Price: req.Price, DurationDays: req.DurationDays}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: plan %q needs a name, a price >= 0 and a positive duration", err, req.Name)
	}
	return nil
}

func newPlan(venueID string, req *PlanRequest, now time.Time) *entity.Plan {
	return &entity.Plan{
		ID:           uuid.NewString(),
		VenueID:      venueID,
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		Price:        req.Price,
		DurationDays: req.DurationDays,
		Features:     cleanList(req.Features),
		IsPopular:    req.IsPopular,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// cleanList trims entries and drops blanks, keeping order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// cleanHours lower-cases and trims the day keys and drops entries with no hours.
func cleanHours(in map[string]string) entity.OpeningHours {
	out := make(entity.OpeningHours, len(in))
	for day, hours := range in {
		day = strings.ToLower(strings.TrimSpace(day))
		hours = strings.TrimSpace(hours)
		if day != "" && hours != "" {
			out[day] = hours
		}
	}
	return out
}

func (s *venueService) GetVenue(ctx context.Context, venueID string) (*VenueDetails, error) {
	venue, err := s.venueRepo.GetByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	plans, err := s.planRepo.GetByVenue(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plans: %w", err)
	}

	details := &VenueDetails{VenueWithPlans: &entity.VenueWithPlans{Venue: *venue, Plans: plans}}
	if occupancy, err := entity.OccupancyOf(venue); err == nil {
		details.Occupancy = occupancy
	}
	return details, nil
}

func (s *venueService) ListOwnerVenues(ctx context.Context, actor entity.Actor) ([]*entity.VenueWithPlans, error) {
	if !actor.IsOwner() {
		return nil, fmt.Errorf("%w: owner role required", entity.ErrUnauthorized)
	}
	venues, err := s.venueRepo.GetByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner venues: %w", err)
	}
	return s.withPlans(ctx, venues)
}

func (s *venueService) withPlans(ctx context.Context, venues []*entity.Venue) ([]*entity.VenueWithPlans, error) {
	ids := make([]string, 0, len(venues))
	for _, v := range venues {
		ids = append(ids, v.ID)
	}
	plans, err := s.planRepo.GetByVenues(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get plans: %w", err)
	}

	result := make([]*entity.VenueWithPlans, 0, len(venues))
	for _, v := range venues {
		result = append(result, &entity.VenueWithPlans{Venue: *v, Plans: plans[v.ID]})
	}
	return result, nil
}

// DeactivateVenue hides the venue from discovery and blocks new bookings.
// Existing bookings are kept.
func (s *venueService) DeactivateVenue(ctx context.Context, actor entity.Actor, venueID string) error {
	venue, err := ownedVenue(ctx, s.venueRepo, actor, venueID)
	if err != nil {
		return err
	}
	if !venue.IsActive {
		return nil
	}

	now := s.now().UTC()
	if err := s.venueRepo.SetActive(ctx, venueID, false, now); err != nil {
		return fmt.Errorf("failed to deactivate venue: %w", err)
	}
	venue.IsActive = false
	venue.UpdatedAt = now

	logrus.WithField("venue_id", venueID).Info("Venue deactivated")
	s.events.emit(ctx, pubsub.EventVenueUpdated, venueID, venue)
	return nil
}

func (s *venueService) AddPlan(ctx context.Context, actor entity.Actor, venueID string, req *PlanRequest) (*entity.Plan, error) {
	if _, err := ownedVenue(ctx, s.venueRepo, actor, venueID); err != nil {
		return nil, err
	}
	if err := validatePlanRequest(req); err != nil {
		return nil, err
	}

	plan := newPlan(venueID, req, s.now().UTC())
	if err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	logrus.WithFields(logrus.Fields{"venue_id": venueID, "plan_id": plan.ID}).Info("Plan added")
	s.events.emit(ctx, pubsub.EventVenueUpdated, venueID, plan)
	return plan, nil
}

// UpdatePlanPrice changes the price offered to new bookings only.
func (s *venueService) UpdatePlanPrice(ctx context.Context, actor entity.Actor, venueID, planID string, price float64) (*entity.Plan, error) {
	if _, err := ownedVenue(ctx, s.venueRepo, actor, venueID); err != nil {
		return nil, err
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", entity.ErrInvalidPlan)
	}

	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.BelongsTo(venueID) {
		return nil, fmt.Errorf("%w: plan %s is not offered by venue %s", entity.ErrInvalidPlan, planID, venueID)
	}

	now := s.now().UTC()
	if err := s.planRepo.UpdatePrice(ctx, planID, price, now); err != nil {
		return nil, fmt.Errorf("failed to update plan price: %w", err)
	}
	plan.Price = price
	plan.UpdatedAt = now

	logrus.WithFields(logrus.Fields{"venue_id": venueID, "plan_id": planID, "price": price}).Info("Plan price updated")
	s.events.emit(ctx, pubsub.EventVenueUpdated, venueID, plan)
	return plan, nil
}

func (s *venueService) PaymentLink(ctx context.Context, venueID, planID string) (string, error) {
	venue, err := s.venueRepo.GetByID(ctx, venueID)
	if err != nil {
		return "", err
	}
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return "", err
	}
	return entity.PaymentLink(venue, plan, s.paymentNote)
}

// Discover filters and ranks the active venues.
func (s *venueService) Discover(ctx context.Context, criteria discovery.Criteria) ([]*discovery.Item, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	venues, err := s.venueRepo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	withPlans, err := s.withPlans(ctx, venues)
	if err != nil {
		return nil, err
	}
	return discovery.Apply(withPlans, criteria), nil
}
