package model

import "time"

const ActionBulkDeleteCards = "bulk_delete_cards"

// AdminAction is a short-lived single-use token backing an inline bot button
// whose payload does not fit into Telegram callback data.
type AdminAction struct {
	Token      string
	ActionType string
	CardIDs    []string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}
