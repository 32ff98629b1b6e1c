package entity

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var paymentReferenceRe = regexp.MustCompile(`^[A-Za-z0-9]{12,22}$`)

// NormalizePaymentReference trims the operator-supplied reference and checks its shape:
// 12 to 22 ASCII letters or digits. An empty reference is allowed and returned as is.
func NormalizePaymentReference(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	if !paymentReferenceRe.MatchString(ref) {
		return "", fmt.Errorf("%w: expected 12-22 letters or digits", ErrMalformedReference)
	}
	return ref, nil
}

// PaymentLink builds a UPI deep link for paying plan at venue.
func PaymentLink(venue *Venue, plan *Plan, note string) (string, error) {
	if venue.UPIID == "" {
		return "", fmt.Errorf("%w: venue has no UPI id", ErrInvalidInput)
	}
	if !plan.BelongsTo(venue.ID) {
		return "", fmt.Errorf("%w: plan %s does not belong to venue %s", ErrInvalidPlan, plan.ID, venue.ID)
	}
	q := url.Values{}
	q.Set("pa", venue.UPIID)
	q.Set("pn", venue.Name)
	q.Set("am", strconv.FormatFloat(plan.Price, 'f', -1, 64))
	q.Set("tn", note)
	q.Set("cu", "INR")
	return "upi://pay?" + q.Encode(), nil
}
