package dedup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/subochevgeni/morrigan-postcards/internal/domain/model"
)

const defaultWindow = 20 * time.Minute

type Store interface {
	ListGroupsSince(ctx context.Context, name string, since time.Time) ([]model.RequestGroup, error)
}

// Service detects accidental re-submits: same requester name, same exact card
// id set, inside a trailing window. It is a heuristic, not an idempotency
// key — the form gives us nothing better. Message content is deliberately
// ignored.
type Service struct {
	store  Store
	window time.Duration
}

func NewService(store Store, window time.Duration) *Service {
	if window <= 0 {
		window = defaultWindow
	}
	return &Service{
		store:  store,
		window: window,
	}
}

func (s *Service) IsDuplicate(ctx context.Context, name string, ids []string, now time.Time) (bool, error) {
	if name == "" || len(ids) == 0 {
		return false, nil
	}
	if s.store == nil {
		return false, fmt.Errorf("dedup store is not configured")
	}

	groups, err := s.store.ListGroupsSince(ctx, name, now.Add(-s.window))
	if err != nil {
		return false, fmt.Errorf("list recent request groups: %w", err)
	}

	want := sortedUnique(ids)
	for _, group := range groups {
		if sameIDSet(want, sortedUnique(group.CardIDs)) {
			return true, nil
		}
	}

	return false, nil
}

func sortedUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
