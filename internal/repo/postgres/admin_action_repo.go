package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subochevgeni/morrigan-postcards/internal/domain/model"
)

type AdminActionRepo struct {
	pool *pgxpool.Pool
}

func NewAdminActionRepo(pool *pgxpool.Pool) *AdminActionRepo {
	return &AdminActionRepo{pool: pool}
}

func (r *AdminActionRepo) InsertAction(ctx context.Context, action model.AdminAction) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	_, err := r.pool.Exec(ctx, `
INSERT INTO admin_actions (token, action_type, card_ids, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
`, action.Token, action.ActionType, action.CardIDs, action.CreatedAt.UTC(), action.ExpiresAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("insert admin action: %w", err)
	}

	return nil
}

func (r *AdminActionRepo) GetAction(ctx context.Context, token string) (*model.AdminAction, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	var action model.AdminAction
	err := r.pool.QueryRow(ctx, `
SELECT token, action_type, card_ids, created_at, expires_at
FROM admin_actions
WHERE token = $1
`, token).Scan(&action.Token, &action.ActionType, &action.CardIDs, &action.CreatedAt, &action.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get admin action: %w", err)
	}

	return &action, nil
}

// DeleteAction removes the row and reports whether it was still there. The
// bool is what makes double-press of an inline button resolve cleanly: only
// one caller observes true.
func (r *AdminActionRepo) DeleteAction(ctx context.Context, token string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM admin_actions WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("delete admin action: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *AdminActionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM admin_actions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired admin actions: %w", err)
	}

	return tag.RowsAffected(), nil
}
