package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/basangdata/invoice-ingest/constants"
	"github.com/basangdata/invoice-ingest/internal/common"
)

type Tier struct {
	Name       string
	DailyLimit int
}

type TierRepository interface {
	Get(ctx context.Context, name string) (*Tier, error)
	List(ctx context.Context) ([]Tier, error)
	SetLimit(ctx context.Context, name string, dailyLimit int) error
}

type tierRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewTierRepository(db *DB, logger *slog.Logger) TierRepository {
	return &tierRepository{db: db, logger: logger}
}

func (r *tierRepository) Get(ctx context.Context, name string) (*Tier, error) {
	var t Tier
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT name, daily_limit FROM tiers WHERE name = $1`, name).
		Scan(&t.Name, &t.DailyLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to load tier", "tier", name, "error", err)
		return nil, err
	}
	return &t, nil
}

func (r *tierRepository) List(ctx context.Context) ([]Tier, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT name, daily_limit FROM tiers ORDER BY daily_limit`)
	if err != nil {
		r.logger.Error("failed to list tiers", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []Tier
	for rows.Next() {
		var t Tier
		if err := rows.Scan(&t.Name, &t.DailyLimit); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tierRepository) SetLimit(ctx context.Context, name string, dailyLimit int) error {
	if !constants.ValidTier(name) {
		return common.NewAppError("INVALID_TIER", "unknown tier: "+name, common.ErrInvalidInput)
	}
	res, err := r.db.SQL.ExecContext(ctx,
		`UPDATE tiers SET daily_limit = $1 WHERE name = $2`, dailyLimit, name)
	if err != nil {
		r.logger.Error("failed to update tier limit", "tier", name, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}
