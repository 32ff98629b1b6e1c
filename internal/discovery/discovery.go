// Package discovery derives filtered, ranked views of venues for browsing.
package discovery

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/himanshumudigonda/musclemeter/internal/pkg/geo"
)

type SortBy string

const (
	SortNone     SortBy = ""
	SortDistance SortBy = "distance"
	SortCrowd    SortBy = "crowd"
	SortPrice    SortBy = "price"
)

func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(s) {
	case SortNone, SortDistance, SortCrowd, SortPrice:
		return SortBy(s), nil
	case "none":
		return SortNone, nil
	default:
		return "", fmt.Errorf("%w: unknown sort %q", entity.ErrInvalidInput, s)
	}
}

// Criteria is a discovery query. A nil Origin means the viewer location is unknown.
type Criteria struct {
	Search    string
	Crowd     entity.CrowdLevel // empty means all
	Amenities []string
	MinPrice  *float64
	MaxPrice  *float64
	Origin    *geo.Point
	SortBy    SortBy
}

// Validate rejects criteria that cannot be evaluated: an unknown crowd level or
// sort, a non-finite price bound or an origin outside the coordinate ranges.
func (c Criteria) Validate() error {
	if c.Crowd != "" && !c.Crowd.Valid() {
		return fmt.Errorf("%w: unknown crowd level %q", entity.ErrInvalidInput, c.Crowd)
	}
	if _, err := ParseSortBy(string(c.SortBy)); err != nil {
		return err
	}
	for name, bound := range map[string]*float64{"min_price": c.MinPrice, "max_price": c.MaxPrice} {
		if bound != nil && (math.IsNaN(*bound) || math.IsInf(*bound, 0)) {
			return fmt.Errorf("%w: %s must be a finite number", entity.ErrInvalidInput, name)
		}
	}
	if c.Origin != nil && !c.Origin.Valid() {
		return fmt.Errorf("%w: origin out of range", entity.ErrInvalidInput)
	}
	return nil
}

// Item is a venue annotated with the derived values used for filtering and ranking.
type Item struct {
	Venue      *entity.VenueWithPlans `json:"venue"`
	DistanceKm *float64               `json:"distance_km,omitempty"`
	Occupancy  *entity.Occupancy      `json:"occupancy,omitempty"`
	MinPrice   *float64               `json:"min_price,omitempty"`
}

// Build annotates venues with distance from origin, crowd view and minimum plan price.
// Venues with invalid capacity get no occupancy view.
func Build(venues []*entity.VenueWithPlans, origin *geo.Point) []*Item {
	items := make([]*Item, 0, len(venues))
	for _, v := range venues {
		item := &Item{Venue: v}
		if origin != nil {
			d := origin.DistanceTo(geo.Point{Lat: v.Latitude, Lng: v.Longitude})
			item.DistanceKm = &d
		}
		if occ, err := entity.OccupancyOf(&v.Venue); err == nil {
			item.Occupancy = occ
		}
		if p, ok := v.MinPrice(); ok {
			item.MinPrice = &p
		}
		items = append(items, item)
	}
	return items
}

// Filter keeps the items matching every criterion. Input order is preserved.
func Filter(items []*Item, c Criteria) []*Item {
	out := make([]*Item, 0, len(items))
	for _, it := range items {
		if matches(it, c) {
			out = append(out, it)
		}
	}
	return out
}

func matches(it *Item, c Criteria) bool {
	if c.Search != "" && !matchesSearch(it.Venue, c.Search) {
		return false
	}
	if c.Crowd != "" {
		if it.Occupancy == nil || it.Occupancy.Level != c.Crowd {
			return false
		}
	}
	if len(c.Amenities) > 0 && !hasAllAmenities(it.Venue.Amenities, c.Amenities) {
		return false
	}
	// venues without active plans are not priced, so the range does not apply
	if it.MinPrice != nil {
		if c.MinPrice != nil && *it.MinPrice < *c.MinPrice {
			return false
		}
		if c.MaxPrice != nil && *it.MinPrice > *c.MaxPrice {
			return false
		}
	}
	return true
}

func matchesSearch(v *entity.VenueWithPlans, term string) bool {
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(v.Name), term) || strings.Contains(strings.ToLower(v.Address), term) {
		return true
	}
	for _, a := range v.Amenities {
		if strings.Contains(strings.ToLower(a), term) {
			return true
		}
	}
	return false
}

func hasAllAmenities(have, want []string) bool {
	for _, w := range want {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		found := false
		for _, h := range have {
			if strings.Contains(strings.ToLower(h), w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Sort orders items in place by the requested key. The sort is stable and
// items missing the key keep their relative order after the ones that have it.
func Sort(items []*Item, by SortBy) {
	var key func(it *Item) (float64, bool)
	switch by {
	case SortDistance:
		key = func(it *Item) (float64, bool) {
			if it.DistanceKm == nil {
				return 0, false
			}
			return *it.DistanceKm, true
		}
	case SortCrowd:
		key = func(it *Item) (float64, bool) {
			if it.Occupancy == nil {
				return 0, false
			}
			r, err := entity.Ratio(it.Occupancy.Current, it.Occupancy.MaxCapacity)
			return r, err == nil
		}
	case SortPrice:
		key = func(it *Item) (float64, bool) {
			if it.MinPrice == nil {
				return 0, false
			}
			return *it.MinPrice, true
		}
	default:
		return
	}

	sort.SliceStable(items, func(i, j int) bool {
		ki, oki := key(items[i])
		kj, okj := key(items[j])
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		return ki < kj
	})
}

// Apply builds, filters and sorts venues according to c.
func Apply(venues []*entity.VenueWithPlans, c Criteria) []*Item {
	items := Filter(Build(venues, c.Origin), c)
	Sort(items, c.SortBy)
	return items
}
