package entity

// VenueBookingStats is a read-side projection over a venue's bookings.
type VenueBookingStats struct {
	VenueID       string  `json:"venue_id"`
	TotalBookings int     `json:"total_bookings"`
	PendingCount  int     `json:"pending_count"`
	ApprovedCount int     `json:"approved_count"`
	RejectedCount int     `json:"rejected_count"`
	ExpiredCount  int     `json:"expired_count"`
	TotalRevenue  float64 `json:"total_revenue"`
}

// ComputeBookingStats sums approved amounts and counts bookings per status.
func ComputeBookingStats(venueID string, bookings []*Booking) *VenueBookingStats {
	s := &VenueBookingStats{VenueID: venueID}
	for _, b := range bookings {
		s.TotalBookings++
		switch b.Status {
		case BookingStatusPending:
			s.PendingCount++
		case BookingStatusApproved:
			s.ApprovedCount++
			s.TotalRevenue += b.Amount
		case BookingStatusRejected:
			s.RejectedCount++
		case BookingStatusExpired:
			s.ExpiredCount++
		}
	}
	return s
}

// ActiveMembers is the number of approved bookings.
func (s *VenueBookingStats) ActiveMembers() int {
	return s.ApprovedCount
}

// ApprovalRate is approved over decided bookings, 0 when nothing is decided.
func (s *VenueBookingStats) ApprovalRate() float64 {
	decided := s.ApprovedCount + s.RejectedCount
	if decided == 0 {
		return 0.0
	}
	return float64(s.ApprovedCount) / float64(decided)
}
