package service

import (
	"context"
	"fmt"
	"math"
	"time"

	repository "github.com/himanshumudigonda/musclemeter/internal/database/postgres"
	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/himanshumudigonda/musclemeter/internal/pubsub"
	"github.com/sirupsen/logrus"
)

type capacityService struct {
	venueRepo repository.VenueRepository
	events    *notifier
	now       func() time.Time
}

// NewCapacityService returns the occupancy tracker. Every applied update is
// announced on broker and forwarded to publishers; delivery errors are logged only.
func NewCapacityService(
	venueRepo repository.VenueRepository,
	broker pubsub.Broker,
	publishers ...EventPublisher,
) CapacityService {
	return &capacityService{
		venueRepo: venueRepo,
		events:    newNotifier(broker, publishers),
		now:       time.Now,
	}
}

func (s *capacityService) GetOccupancy(ctx context.Context, venueID string) (*entity.Occupancy, error) {
	venue, err := s.venueRepo.GetByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	return entity.OccupancyOf(venue)
}

// SetOccupancy stores count clamped into [0, MaxCapacity]. Out of range input is not an error.
func (s *capacityService) SetOccupancy(ctx context.Context, actor entity.Actor, venueID string, count int) (*entity.Occupancy, error) {
	venue, err := ownedVenue(ctx, s.venueRepo, actor, venueID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, venue, count)
}

// AdjustOccupancy reads the current count, adds delta and stores the clamped result.
// Concurrent adjustments race; the last write wins.
func (s *capacityService) AdjustOccupancy(ctx context.Context, actor entity.Actor, venueID string, delta int) (*entity.Occupancy, error) {
	venue, err := ownedVenue(ctx, s.venueRepo, actor, venueID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, venue, saturatingAdd(venue.CurrentOccupancy, delta))
}

func (s *capacityService) ResetOccupancy(ctx context.Context, actor entity.Actor, venueID string) (*entity.Occupancy, error) {
	venue, err := ownedVenue(ctx, s.venueRepo, actor, venueID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, venue, 0)
}

func (s *capacityService) apply(ctx context.Context, venue *entity.Venue, count int) (*entity.Occupancy, error) {
	if venue.MaxCapacity <= 0 {
		return nil, fmt.Errorf("%w: venue %s has capacity %d", entity.ErrInvalidCapacity, venue.ID, venue.MaxCapacity)
	}

	previous := venue.CurrentOccupancy
	now := s.now().UTC()
	applied := venue.ApplyOccupancy(count)
	venue.UpdatedAt = now

	if err := s.venueRepo.UpdateOccupancy(ctx, venue.ID, applied, now); err != nil {
		return nil, fmt.Errorf("failed to update occupancy: %w", err)
	}

	occupancy, err := entity.OccupancyOf(venue)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"venue_id":  venue.ID,
		"requested": count,
		"previous":  previous,
		"current":   applied,
		"level":     occupancy.Level,
	}).Info("Occupancy updated")

	s.events.emit(ctx, pubsub.EventOccupancyChanged, venue.ID, occupancy)
	return occupancy, nil
}

func saturatingAdd(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	if b < 0 && a < math.MinInt-b {
		return math.MinInt
	}
	return a + b
}
