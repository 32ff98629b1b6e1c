package entity

import (
	"fmt"
	"math"
)

type CrowdLevel string

const (
	CrowdQuiet    CrowdLevel = "quiet"
	CrowdModerate CrowdLevel = "moderate"
	CrowdBusy     CrowdLevel = "busy"
)

// Classification thresholds, as a fraction of max capacity.
const (
	ModerateThreshold = 0.5
	BusyThreshold     = 0.8
)

// rank orders levels so that quiet < moderate < busy.
func (l CrowdLevel) rank() int {
	switch l {
	case CrowdQuiet:
		return 0
	case CrowdModerate:
		return 1
	case CrowdBusy:
		return 2
	default:
		return -1
	}
}

// Less reports whether l is a lower load level than other.
func (l CrowdLevel) Less(other CrowdLevel) bool {
	return l.rank() < other.rank()
}

func (l CrowdLevel) Valid() bool {
	return l.rank() >= 0
}

// ParseCrowdLevel accepts quiet/moderate/busy and the low/medium/high aliases.
func ParseCrowdLevel(s string) (CrowdLevel, error) {
	switch s {
	case "quiet", "low":
		return CrowdQuiet, nil
	case "moderate", "medium":
		return CrowdModerate, nil
	case "busy", "high":
		return CrowdBusy, nil
	default:
		return "", fmt.Errorf("%w: unknown crowd level %q", ErrInvalidInput, s)
	}
}

// ClampOccupancy bounds count to [0, capacity].
func ClampOccupancy(count, capacity int) int {
	if count < 0 {
		return 0
	}
	if count > capacity {
		return capacity
	}
	return count
}

// Ratio returns count/capacity.
func Ratio(count, capacity int) (float64, error) {
	if capacity <= 0 {
		return 0, fmt.Errorf("%w: max capacity must be positive, got %d", ErrInvalidCapacity, capacity)
	}
	return float64(count) / float64(capacity), nil
}

// Classify maps an occupancy ratio to a crowd level.
func Classify(count, capacity int) (CrowdLevel, error) {
	ratio, err := Ratio(count, capacity)
	if err != nil {
		return "", err
	}
	switch {
	case ratio >= BusyThreshold:
		return CrowdBusy, nil
	case ratio >= ModerateThreshold:
		return CrowdModerate, nil
	default:
		return CrowdQuiet, nil
	}
}

// Percentage returns the rounded occupancy percentage in [0, 100].
func Percentage(count, capacity int) (int, error) {
	ratio, err := Ratio(count, capacity)
	if err != nil {
		return 0, err
	}
	p := int(math.Round(ratio * 100))
	if p > 100 {
		return 100, nil
	}
	if p < 0 {
		return 0, nil
	}
	return p, nil
}

var crowdLabels = map[CrowdLevel]string{
	CrowdQuiet:    "Quiet",
	CrowdModerate: "Moderate",
	CrowdBusy:     "Busy",
}

// CrowdLabel renders a short display label, e.g. "62% Full - Moderate".
func CrowdLabel(count, capacity int) (string, error) {
	p, err := Percentage(count, capacity)
	if err != nil {
		return "", err
	}
	level, err := Classify(count, capacity)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d%% Full - %s", p, crowdLabels[level]), nil
}
