package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OpeningHours maps a day or day range ("mon-fri", "sun") to its hours ("06:00-22:00").
type OpeningHours map[string]string

// Value encodes the hours as JSON text; lib/pq sends []byte parameters as bytea.
func (h OpeningHours) Value() (driver.Value, error) {
	if h == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(h))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (h *OpeningHours) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*h = OpeningHours{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan type %T into OpeningHours", value)
	}
	out := OpeningHours{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to decode opening hours: %w", err)
	}
	*h = out
	return nil
}

// Clone returns an independent copy.
func (h OpeningHours) Clone() OpeningHours {
	if h == nil {
		return nil
	}
	out := make(OpeningHours, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

type Venue struct {
	ID               string       `json:"id" db:"id"`
	OwnerID          string       `json:"owner_id" db:"owner_id"`
	Name             string       `json:"name" db:"name"`
	Description      string       `json:"description" db:"description"`
	Address          string       `json:"address" db:"address"`
	Latitude         float64      `json:"latitude" db:"latitude"`
	Longitude        float64      `json:"longitude" db:"longitude"`
	UPIID            string       `json:"upi_id" db:"upi_id"`
	MaxCapacity      int          `json:"max_capacity" db:"max_capacity"`
	CurrentOccupancy int          `json:"current_occupancy" db:"current_occupancy"`
	Amenities        []string     `json:"amenities" db:"amenities"`
	Photos           []string     `json:"photos" db:"photos"`
	OpeningHours     OpeningHours `json:"opening_hours" db:"opening_hours"`
	IsActive         bool         `json:"is_active" db:"is_active"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// ApplyOccupancy clamps count into [0, MaxCapacity], stores it and returns the applied value.
func (v *Venue) ApplyOccupancy(count int) int {
	v.CurrentOccupancy = ClampOccupancy(count, v.MaxCapacity)
	return v.CurrentOccupancy
}

// IsOwnedBy reports whether userID owns the venue.
func (v *Venue) IsOwnedBy(userID string) bool {
	return userID != "" && v.OwnerID == userID
}

// Occupancy is the crowd meter view of a venue.
type Occupancy struct {
	VenueID     string     `json:"venue_id"`
	Current     int        `json:"current"`
	MaxCapacity int        `json:"max_capacity"`
	Percentage  int        `json:"percentage"`
	Level       CrowdLevel `json:"level"`
	Label       string     `json:"label"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OccupancyOf builds the crowd meter view. It fails with ErrInvalidCapacity for non-positive capacity.
func OccupancyOf(v *Venue) (*Occupancy, error) {
	p, err := Percentage(v.CurrentOccupancy, v.MaxCapacity)
	if err != nil {
		return nil, err
	}
	level, err := Classify(v.CurrentOccupancy, v.MaxCapacity)
	if err != nil {
		return nil, err
	}
	label, err := CrowdLabel(v.CurrentOccupancy, v.MaxCapacity)
	if err != nil {
		return nil, err
	}
	return &Occupancy{
		VenueID:     v.ID,
		Current:     v.CurrentOccupancy,
		MaxCapacity: v.MaxCapacity,
		Percentage:  p,
		Level:       level,
		Label:       label,
		UpdatedAt:   v.UpdatedAt,
	}, nil
}

type Plan struct {
	ID           string    `json:"id" db:"id"`
	VenueID      string    `json:"venue_id" db:"venue_id"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description" db:"description"`
	Price        float64   `json:"price" db:"price"`
	DurationDays int       `json:"duration_days" db:"duration_days"`
	Features     []string  `json:"features" db:"features"`
	IsPopular    bool      `json:"is_popular" db:"is_popular"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the price and duration bounds of a plan.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return ErrInvalidPlan
	}
	if p.Price < 0 {
		return ErrInvalidPlan
	}
	if p.DurationDays <= 0 {
		return ErrInvalidPlan
	}
	return nil
}

// BelongsTo reports whether the plan is offered by venueID.
func (p *Plan) BelongsTo(venueID string) bool {
	return p.VenueID == venueID
}

type VenueWithPlans struct {
	Venue
	Plans []*Plan `json:"plans"`
}

// MinPrice returns the lowest price among active plans; ok is false when there are none.
func (v *VenueWithPlans) MinPrice() (price float64, ok bool) {
	for _, p := range v.Plans {
		if !p.IsActive {
			continue
		}
		if !ok || p.Price < price {
			price = p.Price
			ok = true
		}
	}
	return price, ok
}
