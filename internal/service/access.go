package service

import (
	"context"
	"fmt"

	repository "github.com/himanshumudigonda/musclemeter/internal/database/postgres"
	"github.com/himanshumudigonda/musclemeter/internal/entity"
)

// ownedVenue loads the venue and re-checks that actor owns it.
func ownedVenue(ctx context.Context, venues repository.VenueRepository, actor entity.Actor, venueID string) (*entity.Venue, error) {
	if !actor.Authenticated() {
		return nil, fmt.Errorf("%w: authentication required", entity.ErrUnauthorized)
	}
	venue, err := venues.GetByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if !venue.IsOwnedBy(actor.UserID) {
		return nil, fmt.Errorf("%w: venue %s is not managed by %s", entity.ErrUnauthorized, venueID, actor.UserID)
	}
	return venue, nil
}
