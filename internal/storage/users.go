// Package storage persists the user roster used by /stats and /broadcast.
// The generation flow itself never touches the database.
package storage

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/annaleodit/Celebrate-the-world/core/logger"
)

// Users records which Telegram users have talked to the bot.
type Users struct {
	db *sqlx.DB
}

// NewUsers wraps the shared database handle.
func NewUsers(db *sqlx.DB) *Users {
	return &Users{db: db}
}

// User is one roster row.
type User struct {
	UserID      int64  `db:"user_id"`
	DisplayName string `db:"display_name"`
}

// Record inserts the user if absent. Concurrent inserts of the same id are
// safe; the conflict arm makes the call idempotent.
func (u *Users) Record(ctx context.Context, userID int64, displayName string) error {
	const q = `
		INSERT INTO users (user_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`
	res, err := u.db.ExecContext(ctx, q, userID, displayName)
	if err != nil {
		return fmt.Errorf("storage: record user %d: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Info(ctx, "svc.users", "user.new",
			slog.Int64("user_id", userID),
		)
	}
	return nil
}

// ListIDs returns every known user id, for broadcast fan-out.
func (u *Users) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := u.db.SelectContext(ctx, &ids, `SELECT user_id FROM users ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("storage: list user ids: %w", err)
	}
	return ids, nil
}

// Count returns the roster size.
func (u *Users) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := u.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("storage: count users: %w", err)
	}
	return n, nil
}
