package models

import "time"

type Category struct {
	ID          int64     `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	CreatedBy   UserRef   `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CategoryRef struct {
	ID   int64  `json:"_id"`
	Name string `json:"name"`
}
