package models

// Subscription tier IDs, ordered free < pro < creator_plus < enterprise
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierCreator    = "creator_plus"
	TierEnterprise = "enterprise"
)

// tierOrder ranks the known tiers. Unknown tiers rank below free so they
// never unlock anything gated.
var tierOrder = map[string]int{
	TierFree:       0,
	TierPro:        1,
	TierCreator:    2,
	TierEnterprise: 3,
}

// tierDisplayNames are the user-facing tier labels used in denial messages
var tierDisplayNames = map[string]string{
	TierFree:       "Free",
	TierPro:        "Pro",
	TierCreator:    "Creator+",
	TierEnterprise: "Enterprise",
}

// CompareTiers returns -1, 0 or 1 as a ranks below, equal to, or above b.
// Tiers not in the hierarchy compare equal to everything, so callers fall
// back to their own defaults.
func CompareTiers(a, b string) int {
	ra, okA := tierOrder[a]
	rb, okB := tierOrder[b]
	if !okA || !okB {
		return 0
	}
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// TierAtLeast reports whether userTier satisfies requiredTier.
// An unknown user tier satisfies only free; an unknown required tier is
// never satisfied.
func TierAtLeast(userTier, requiredTier string) bool {
	required, ok := tierOrder[requiredTier]
	if !ok {
		return false
	}
	have, ok := tierOrder[userTier]
	if !ok {
		have = 0
	}
	return have >= required
}

// TierDisplayName returns the user-facing label for a tier ID.
// Unknown IDs pass through unchanged.
func TierDisplayName(tierID string) string {
	if name, ok := tierDisplayNames[tierID]; ok {
		return name
	}
	return tierID
}

// IsValidTier reports whether tierID is one of the known tiers
func IsValidTier(tierID string) bool {
	_, ok := tierOrder[tierID]
	return ok
}
