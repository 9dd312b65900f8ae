package dto

import "time"

type CardResponse struct {
	ID           string     `json:"id"`
	CreatedAt    time.Time  `json:"createdAt"`
	Category     string     `json:"category"`
	Status       string     `json:"status"`
	PendingUntil *time.Time `json:"pendingUntil,omitempty"`
	ThumbURL     string     `json:"thumbUrl"`
	ImageURL     string     `json:"imageUrl"`
}

type CardListResponse struct {
	Items []CardResponse `json:"items"`
}

type CategoryResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type CategoryListResponse struct {
	Items []CategoryResponse `json:"items"`
}
