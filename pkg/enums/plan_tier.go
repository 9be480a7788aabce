package enums

import (
	"fmt"
	"strings"
)

// PlanTier is a shop's subscription level. Tiers are totally ordered.
type PlanTier string

const (
	PlanFree    PlanTier = "free"
	PlanMedium  PlanTier = "medium"
	PlanPro     PlanTier = "pro"
	PlanProPlus PlanTier = "pro_plus"
)

// validPlanTiers is ordered from lowest to highest.
var validPlanTiers = []PlanTier{
	PlanFree,
	PlanMedium,
	PlanPro,
	PlanProPlus,
}

func (p PlanTier) String() string {
	return string(p)
}

func (p PlanTier) IsValid() bool {
	return p.Rank() >= 0
}

// Rank returns the tier position (0 for free) or -1 for unknown values.
func (p PlanTier) Rank() int {
	for i, candidate := range validPlanTiers {
		if candidate == p {
			return i
		}
	}
	return -1
}

// AtLeast reports whether p is the same as or above min.
func (p PlanTier) AtLeast(min PlanTier) bool {
	return p.IsValid() && min.IsValid() && p.Rank() >= min.Rank()
}

// PlanTiers returns the tiers in ascending order.
func PlanTiers() []PlanTier {
	out := make([]PlanTier, len(validPlanTiers))
	copy(out, validPlanTiers)
	return out
}

// ParsePlanTier accepts the canonical code, case insensitive.
func ParsePlanTier(value string) (PlanTier, error) {
	normalized := PlanTier(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid plan tier %q", value)
}
