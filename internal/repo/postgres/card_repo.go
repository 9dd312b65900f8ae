package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subochevgeni/morrigan-postcards/internal/domain/enums"
	"github.com/subochevgeni/morrigan-postcards/internal/domain/model"
)

type CardRepo struct {
	pool *pgxpool.Pool
}

func NewCardRepo(pool *pgxpool.Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

func (r *CardRepo) InsertCard(ctx context.Context, card model.Card) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	_, err := r.pool.Exec(ctx, `
INSERT INTO cards (id, created_at, status, pending_until, category, image_key, thumb_key)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, card.ID, card.CreatedAt.UTC(), card.Status.String(), card.PendingUntil, card.Category.String(), card.ImageKey, card.ThumbKey)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert card: %w", err)
	}

	return nil
}

func (r *CardRepo) GetCard(ctx context.Context, id string) (*model.Card, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	var card model.Card
	var status, category string
	err := r.pool.QueryRow(ctx, `
SELECT id, created_at, status, pending_until, category, image_key, thumb_key
FROM cards
WHERE id = $1
`, id).Scan(&card.ID, &card.CreatedAt, &status, &card.PendingUntil, &category, &card.ImageKey, &card.ThumbKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get card: %w", err)
	}

	card.Status = enums.CardStatus(status)
	card.Category = enums.Category(category)
	return &card, nil
}

func (r *CardRepo) DeleteCard(ctx context.Context, id string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if id == "" {
		return nil
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM cards WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}

func (r *CardRepo) ListCards(ctx context.Context, limit int, category string) ([]model.Card, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	var (
		rows pgx.Rows
		err  error
	)
	if category == "" {
		rows, err = r.pool.Query(ctx, `
SELECT id, created_at, status, pending_until, category, image_key, thumb_key
FROM cards
ORDER BY created_at DESC
LIMIT $1
`, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
SELECT id, created_at, status, pending_until, category, image_key, thumb_key
FROM cards
WHERE category = $2
ORDER BY created_at DESC
LIMIT $1
`, limit, category)
	}
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	cards := make([]model.Card, 0)
	for rows.Next() {
		var card model.Card
		var status, cat string
		if err := rows.Scan(&card.ID, &card.CreatedAt, &status, &card.PendingUntil, &cat, &card.ImageKey, &card.ThumbKey); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		card.Status = enums.CardStatus(status)
		card.Category = enums.Category(cat)
		cards = append(cards, card)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate cards: %w", rows.Err())
	}

	return cards, nil
}

func (r *CardRepo) CountAvailable(ctx context.Context) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cards WHERE status = 'available'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count available cards: %w", err)
	}
	return count, nil
}

func (r *CardRepo) LastAvailable(ctx context.Context) (*model.Card, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	var card model.Card
	var status, category string
	err := r.pool.QueryRow(ctx, `
SELECT id, created_at, status, pending_until, category, image_key, thumb_key
FROM cards
WHERE status = 'available'
ORDER BY created_at DESC
LIMIT 1
`).Scan(&card.ID, &card.CreatedAt, &status, &card.PendingUntil, &category, &card.ImageKey, &card.ThumbKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last available card: %w", err)
	}

	card.Status = enums.CardStatus(status)
	card.Category = enums.Category(category)
	return &card, nil
}

func (r *CardRepo) ListRecentIDs(ctx context.Context, limit int) ([]string, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id
FROM cards
WHERE status = 'available'
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent card ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan card id: %w", err)
		}
		ids = append(ids, id)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate card ids: %w", rows.Err())
	}

	return ids, nil
}

// FilterAvailable returns the subset of ids that exist and may be offered at
// the given instant: either available outright or pending with a lapsed hold.
func (r *CardRepo) FilterAvailable(ctx context.Context, ids []string, now time.Time) ([]string, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id
FROM cards
WHERE id = ANY($1)
  AND (status = 'available' OR (status = 'pending' AND pending_until <= $2))
`, ids, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("filter available cards: %w", err)
	}
	defer rows.Close()

	found := make([]string, 0, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan available card id: %w", err)
		}
		found = append(found, id)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate available card ids: %w", rows.Err())
	}

	return found, nil
}

// ReserveAvailable flips a single card to pending with a status-guarded
// UPDATE. The guard is the whole concurrency story here: two racing calls
// cannot both see rows affected.
func (r *CardRepo) ReserveAvailable(ctx context.Context, id string, until, now time.Time) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE cards
SET status = 'pending', pending_until = $2
WHERE id = $1 AND (status = 'available' OR (status = 'pending' AND pending_until <= $3))
`, id, until.UTC(), now.UTC())
	if err != nil {
		return false, fmt.Errorf("reserve card: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *CardRepo) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE cards
SET status = 'available', pending_until = NULL
WHERE status = 'pending' AND pending_until <= $1
`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}

	return tag.RowsAffected(), nil
}
