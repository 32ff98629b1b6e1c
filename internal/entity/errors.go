package entity

import "errors"

var (
	// Venue errors
	ErrVenueNotFound   = errors.New("venue not found")
	ErrVenueInactive   = errors.New("venue is not active")
	ErrInvalidCapacity = errors.New("invalid capacity")

	// Plan errors
	ErrPlanNotFound = errors.New("plan not found")
	ErrInvalidPlan  = errors.New("invalid plan")

	// Booking errors
	ErrBookingNotFound    = errors.New("booking not found")
	ErrInvalidTransition  = errors.New("booking already decided")
	ErrMalformedReference = errors.New("malformed payment reference")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized access")
)
