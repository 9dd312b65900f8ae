package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subochevgeni/morrigan-postcards/internal/domain/model"
)

type RequestRepo struct {
	pool *pgxpool.Pool
}

func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

// InsertGroup appends one row per card id, all sharing the group id and
// timestamp, inside a single transaction.
func (r *RequestRepo) InsertGroup(ctx context.Context, groupID uuid.UUID, cardIDs []string, name, message string, at time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if len(cardIDs) == 0 {
		return fmt.Errorf("request group must contain at least one card id")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, cardID := range cardIDs {
		_, err := tx.Exec(ctx, `
INSERT INTO requests (group_id, postcard_id, requester_name, message, created_at)
VALUES ($1, $2, $3, $4, $5)
`, groupID, cardID, name, message, at.UTC())
		if err != nil {
			return fmt.Errorf("insert request row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ListGroupsSince reassembles the requester's submissions newer than the
// cutoff, one group per submission with its full card id set.
func (r *RequestRepo) ListGroupsSince(ctx context.Context, name string, since time.Time) ([]model.RequestGroup, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT group_id, postcard_id, created_at
FROM requests
WHERE requester_name = $1 AND created_at > $2
ORDER BY created_at DESC, id ASC
`, name, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("list request groups: %w", err)
	}
	defer rows.Close()

	groups := make([]model.RequestGroup, 0)
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var groupID uuid.UUID
		var cardID string
		var createdAt time.Time
		if err := rows.Scan(&groupID, &cardID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan request row: %w", err)
		}

		if i, ok := index[groupID]; ok {
			groups[i].CardIDs = append(groups[i].CardIDs, cardID)
			continue
		}
		index[groupID] = len(groups)
		groups = append(groups, model.RequestGroup{
			GroupID:   groupID,
			CardIDs:   []string{cardID},
			CreatedAt: createdAt,
		})
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate request rows: %w", rows.Err())
	}

	return groups, nil
}
