package models

import (
	"encoding/json"
	"time"
)

const (
	EventModelLiked   = "model_liked"
	EventUserFollowed = "user_followed"
)

type Event struct {
	ID        int64           `json:"id"`
	EventType string          `json:"eventType"`
	EventTime time.Time       `json:"eventTime"`
	Payload   json.RawMessage `json:"payload"`
}
