package constants

// Tier names. Limits live in the tiers table; the map below is only the
// seed data and the fallback when a user references an unknown tier.
const (
	TierFree     = "free"
	TierSilver   = "silver"
	TierGold     = "gold"
	TierPlatinum = "platinum"
	TierAdmin    = "admin"
)

// UnlimitedDailyLimit marks a tier with no daily cap.
const UnlimitedDailyLimit = -1

// UnlimitedRemaining is the sentinel reported as "remaining" for unlimited
// tiers, so callers never special-case arithmetic on -1.
const UnlimitedRemaining = 999999

// TierLimits seeds the tiers table and backs TierLimit's fallback.
var TierLimits = map[string]int{
	TierFree:     5,
	TierSilver:   50,
	TierGold:     150,
	TierPlatinum: 300,
	TierAdmin:    UnlimitedDailyLimit,
}

// TierLimit returns the daily limit for a tier, defaulting to the free tier
// for unknown names.
func TierLimit(tier string) int {
	if limit, ok := TierLimits[tier]; ok {
		return limit
	}
	return TierLimits[TierFree]
}

// ValidTier reports whether name is a known tier.
func ValidTier(name string) bool {
	_, ok := TierLimits[name]
	return ok
}
