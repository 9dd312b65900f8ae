package model

import (
	"time"

	"github.com/subochevgeni/morrigan-postcards/internal/domain/enums"
)

// Card is one postcard on the showcase. PendingUntil is set iff the card is
// currently held by an exchange request.
type Card struct {
	ID           string
	CreatedAt    time.Time
	Status       enums.CardStatus
	PendingUntil *time.Time
	Category     enums.Category
	ImageKey     string
	ThumbKey     string
}

// AvailableAt reports whether the card may be offered to a requester at the
// given instant. A pending card whose hold has lapsed counts as available
// even before the maintenance sweep corrects the row.
func (c Card) AvailableAt(now time.Time) bool {
	if c.Status == enums.CardAvailable {
		return true
	}
	if c.Status == enums.CardPending && c.PendingUntil != nil && !c.PendingUntil.After(now) {
		return true
	}
	return false
}
