package model

import (
	"time"

	"github.com/google/uuid"
)

// Request is one append-only row of the exchange request log. A multi-card
// cart produces one row per card id, all sharing GroupID and CreatedAt.
type Request struct {
	ID            int64
	GroupID       uuid.UUID
	PostcardID    string
	RequesterName string
	Message       string
	CreatedAt     time.Time
}

// RequestGroup is one submission reassembled from its rows.
type RequestGroup struct {
	GroupID   uuid.UUID
	CardIDs   []string
	CreatedAt time.Time
}
