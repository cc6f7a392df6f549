// Package quota enforces per-user daily extraction limits. Usage is
// recomputed from the activity log on every check rather than kept as a
// running counter, so a crashed or restarted process never double-counts.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/basangdata/invoice-ingest/constants"
)

// QuotaExceededError reports a batch rejected outright by the daily quota.
type QuotaExceededError struct {
	Status Status
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exhausted: %d/%d used (tier %s)",
		e.Status.UsedToday, e.Status.DailyLimit, e.Status.Tier)
}

// Status is a point-in-time snapshot of a user's quota.
type Status struct {
	Tier       string
	DailyLimit int
	UsedToday  int
	CanProceed bool
}

// Unlimited reports whether the user's tier has no daily cap.
func (s Status) Unlimited() bool {
	return s.DailyLimit == constants.UnlimitedDailyLimit
}

// Remaining returns the number of units the user may still process today.
func (s Status) Remaining() int {
	if s.Unlimited() {
		return constants.UnlimitedRemaining
	}
	r := s.DailyLimit - s.UsedToday
	if r < 0 {
		return 0
	}
	return r
}

// Grant is the portion of a batch the quota allows.
type Grant struct {
	// Allowed is how many units, taken in ascending sequence order,
	// may be processed.
	Allowed int
	// Partial is set when the batch was trimmed to fit the remainder.
	Partial bool
}

// UsageCounter counts successfully processed units since a point in time.
type UsageCounter interface {
	CountSuccessSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

// Ledger answers quota questions for a single configured timezone.
type Ledger struct {
	usage UsageCounter
	loc   *time.Location
	log   *slog.Logger
	now   func() time.Time
}

func NewLedger(usage UsageCounter, loc *time.Location, logger *slog.Logger) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{
		usage: usage,
		loc:   loc,
		log:   logger.With("component", "quota"),
		now:   time.Now,
	}
}

// DayStartUTC returns the UTC instant of local midnight for the day
// containing now in loc. Counting from this instant makes the quota day
// roll over at local midnight regardless of how timestamps are stored.
func DayStartUTC(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.UTC()
}

// Check recomputes the user's usage for the current quota day and reports
// whether any further units may be processed.
func (l *Ledger) Check(ctx context.Context, userID int64, tier string, dailyLimit int) (Status, error) {
	st := Status{Tier: tier, DailyLimit: dailyLimit}
	if st.Unlimited() {
		st.CanProceed = true
		return st, nil
	}

	since := DayStartUTC(l.now(), l.loc)
	used, err := l.usage.CountSuccessSince(ctx, userID, since)
	if err != nil {
		return Status{}, err
	}
	st.UsedToday = used
	st.CanProceed = used < dailyLimit

	l.log.DebugContext(ctx, "quota.check",
		"user_id", userID,
		"tier", tier,
		"used_today", used,
		"daily_limit", dailyLimit,
		"can_proceed", st.CanProceed)
	return st, nil
}

// Plan decides how many units of a batch the status admits. When the
// remainder covers only part of the batch the grant is marked partial;
// callers take the granted units in ascending sequence order.
func (l *Ledger) Plan(st Status, unitCount int) Grant {
	if unitCount <= 0 || !st.CanProceed {
		return Grant{}
	}
	rem := st.Remaining()
	if rem >= unitCount {
		return Grant{Allowed: unitCount}
	}
	return Grant{Allowed: rem, Partial: true}
}
