package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/basangdata/invoice-ingest/constants"
	"github.com/basangdata/invoice-ingest/internal/common"
)

// User is an account keyed by its messaging-platform identity. A blank
// SpreadsheetID, CustomPrompt, or SheetColumns means the configured
// defaults apply.
type User struct {
	ID            int64
	TelegramID    int64
	Username      string
	Tier          string
	DailyLimit    int
	SpreadsheetID string
	CustomPrompt  string
	SheetColumns  string
	CreatedAt     time.Time
}

// ColumnList splits the comma-separated sheet_columns override. Empty
// means the sink's canonical order.
func (u *User) ColumnList() []string {
	if strings.TrimSpace(u.SheetColumns) == "" {
		return nil
	}
	parts := strings.Split(u.SheetColumns, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}

type UserRepository interface {
	GetOrCreate(ctx context.Context, telegramID int64, username string) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	UpdateTier(ctx context.Context, userID int64, tier string) error
	UpdateSheetID(ctx context.Context, userID int64, spreadsheetID string) error
	UpdatePrompt(ctx context.Context, userID int64, prompt string) error
	UpdateColumns(ctx context.Context, userID int64, columns string) error
}

type userRepository struct {
	db       *DB
	adminIDs map[int64]struct{}
	logger   *slog.Logger
}

// NewUserRepository builds the user store. Accounts whose platform id is
// in adminIDs are upgraded to the admin tier on every GetOrCreate.
func NewUserRepository(db *DB, adminIDs []int64, logger *slog.Logger) UserRepository {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &userRepository{db: db, adminIDs: admins, logger: logger}
}

const userColumns = `u.id, u.telegram_id, u.username, u.tier, u.spreadsheet_id, u.custom_prompt, u.sheet_columns, u.created_at, t.daily_limit`

func (r *userRepository) scanUser(row *sql.Row) (*User, error) {
	var u User
	var createdAt string
	var dailyLimit sql.NullInt64
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.Tier,
		&u.SpreadsheetID, &u.CustomPrompt, &u.SheetColumns, &createdAt, &dailyLimit)
	if err != nil {
		return nil, err
	}
	if dailyLimit.Valid {
		u.DailyLimit = int(dailyLimit.Int64)
	} else {
		u.DailyLimit = constants.TierLimit(u.Tier)
	}
	if u.CreatedAt, err = parseTS(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		`SELECT `+userColumns+`
		 FROM users u LEFT JOIN tiers t ON t.name = u.tier
		 WHERE u.telegram_id = $1`, telegramID)
	u, err := r.scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to load user", "telegram_id", telegramID, "error", err)
		return nil, err
	}
	return u, nil
}

// GetOrCreate returns the user for the platform identity, registering a
// free-tier account on first contact and promoting configured admin ids.
func (r *userRepository) GetOrCreate(ctx context.Context, telegramID int64, username string) (*User, error) {
	u, err := r.GetByTelegramID(ctx, telegramID)
	if errors.Is(err, common.ErrNotFound) {
		_, ierr := r.db.SQL.ExecContext(ctx,
			`INSERT INTO users (telegram_id, username, tier, created_at) VALUES ($1, $2, $3, $4)`,
			telegramID, username, constants.TierFree, formatTS(time.Now()))
		if ierr != nil {
			r.logger.Error("failed to create user", "telegram_id", telegramID, "error", ierr)
			return nil, ierr
		}
		r.logger.Info("user registered", "telegram_id", telegramID, "username", username)
		u, err = r.GetByTelegramID(ctx, telegramID)
	}
	if err != nil {
		return nil, err
	}

	if _, isAdmin := r.adminIDs[telegramID]; isAdmin && u.Tier != constants.TierAdmin {
		if err := r.UpdateTier(ctx, u.ID, constants.TierAdmin); err != nil {
			return nil, err
		}
		r.logger.Info("user promoted to admin", "telegram_id", telegramID)
		return r.GetByTelegramID(ctx, telegramID)
	}
	return u, nil
}

func (r *userRepository) updateColumn(ctx context.Context, userID int64, column, value string) error {
	res, err := r.db.SQL.ExecContext(ctx,
		`UPDATE users SET `+column+` = $1 WHERE id = $2`, value, userID)
	if err != nil {
		r.logger.Error("failed to update user", "user_id", userID, "column", column, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *userRepository) UpdateTier(ctx context.Context, userID int64, tier string) error {
	if !constants.ValidTier(tier) {
		return common.NewAppError("INVALID_TIER", "unknown tier: "+tier, common.ErrInvalidInput)
	}
	return r.updateColumn(ctx, userID, "tier", tier)
}

func (r *userRepository) UpdateSheetID(ctx context.Context, userID int64, spreadsheetID string) error {
	return r.updateColumn(ctx, userID, "spreadsheet_id", spreadsheetID)
}

func (r *userRepository) UpdatePrompt(ctx context.Context, userID int64, prompt string) error {
	return r.updateColumn(ctx, userID, "custom_prompt", prompt)
}

func (r *userRepository) UpdateColumns(ctx context.Context, userID int64, columns string) error {
	return r.updateColumn(ctx, userID, "sheet_columns", columns)
}
