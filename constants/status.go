package constants

// ActivityStatus is the canonical status for rows in activity_logs.
type ActivityStatus string

// Stable values (store these exact strings in DB).
const (
	StatusSuccess       ActivityStatus = "success"        // unit extracted and persisted
	StatusFailed        ActivityStatus = "failed"         // unit attempted, nothing persisted
	StatusLimitExceeded ActivityStatus = "limit_exceeded" // batch rejected before any unit ran
)
