package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/basangdata/invoice-ingest/constants"
	"github.com/basangdata/invoice-ingest/internal/common"
)

// Activity is one logged processing outcome. Quota accounting counts
// success rows only; failed and limit_exceeded rows exist for the audit
// trail and never consume quota.
type Activity struct {
	ID             int64
	UserID         int64
	UnitKind       constants.UnitKind
	Status         constants.ActivityStatus
	Detail         string
	ItemsExtracted int
	SizeBytes      int64
	CreatedAt      time.Time
}

// ActivityStats aggregates a user's outcomes since a point in time.
type ActivityStats struct {
	Success       int
	Failed        int
	LimitExceeded int
}

// AdminOverview aggregates platform-wide usage for admin reporting.
type AdminOverview struct {
	UsersByTier     map[string]int
	RequestsToday   int
	SuccessesToday  int
	RequestsAllTime int
}

type ActivityRepository interface {
	Append(ctx context.Context, a Activity) error
	CountSuccessSince(ctx context.Context, userID int64, since time.Time) (int, error)
	Stats(ctx context.Context, userID int64, since time.Time) (ActivityStats, error)
	Overview(ctx context.Context, dayStart time.Time) (AdminOverview, error)
}

type activityRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewActivityRepository(db *DB, logger *slog.Logger) ActivityRepository {
	return &activityRepository{db: db, logger: logger, now: time.Now}
}

func (r *activityRepository) Append(ctx context.Context, a Activity) error {
	var size any
	if a.SizeBytes > 0 {
		size = a.SizeBytes
	}
	_, err := r.db.SQL.ExecContext(ctx,
		`INSERT INTO activity (user_id, unit_kind, status, detail, items_extracted, size_bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.UserID, string(a.UnitKind), string(a.Status), common.Truncate(a.Detail, 500),
		a.ItemsExtracted, size, formatTS(r.now()))
	if err != nil {
		r.logger.Error("failed to append activity", "user_id", a.UserID, "status", a.Status, "error", err)
		return err
	}
	return nil
}

func (r *activityRepository) CountSuccessSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity
		 WHERE user_id = $1 AND status = $2 AND created_at >= $3`,
		userID, string(constants.StatusSuccess), formatTS(since)).Scan(&n)
	if err != nil {
		r.logger.Error("failed to count activity", "user_id", userID, "error", err)
		return 0, err
	}
	return n, nil
}

func (r *activityRepository) Stats(ctx context.Context, userID int64, since time.Time) (ActivityStats, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM activity
		 WHERE user_id = $1 AND created_at >= $2
		 GROUP BY status`,
		userID, formatTS(since))
	if err != nil {
		r.logger.Error("failed to read activity stats", "user_id", userID, "error", err)
		return ActivityStats{}, err
	}
	defer rows.Close()

	var st ActivityStats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return ActivityStats{}, err
		}
		switch constants.ActivityStatus(status) {
		case constants.StatusSuccess:
			st.Success = n
		case constants.StatusFailed:
			st.Failed = n
		case constants.StatusLimitExceeded:
			st.LimitExceeded = n
		}
	}
	return st, rows.Err()
}

// Overview reports platform-wide totals: accounts per tier, today's
// request and success counts since dayStart, and all-time requests.
func (r *activityRepository) Overview(ctx context.Context, dayStart time.Time) (AdminOverview, error) {
	ov := AdminOverview{UsersByTier: make(map[string]int)}

	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT tier, COUNT(*) FROM users GROUP BY tier`)
	if err != nil {
		r.logger.Error("failed to count users by tier", "error", err)
		return AdminOverview{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return AdminOverview{}, err
		}
		ov.UsersByTier[tier] = n
	}
	if err := rows.Err(); err != nil {
		return AdminOverview{}, err
	}

	if err := r.db.SQL.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity WHERE created_at >= $1`,
		formatTS(dayStart)).Scan(&ov.RequestsToday); err != nil {
		return AdminOverview{}, err
	}
	if err := r.db.SQL.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity WHERE status = $1 AND created_at >= $2`,
		string(constants.StatusSuccess), formatTS(dayStart)).Scan(&ov.SuccessesToday); err != nil {
		return AdminOverview{}, err
	}
	if err := r.db.SQL.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity`).Scan(&ov.RequestsAllTime); err != nil {
		return AdminOverview{}, err
	}
	return ov, nil
}
