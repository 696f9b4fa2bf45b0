package service

import (
	"context"
	"modelhub/internal/models"
	"strconv"
	"time"
)

type EventService struct {
	events  EventStore
	timeout time.Duration
}

func NewEventService(events EventStore, timeout time.Duration) *EventService {
	return &EventService{events: events, timeout: timeout}
}

// Since returns the caller's events newer than the id in rawSince.
func (s *EventService) Since(ctx context.Context, caller *models.User, rawSince string) ([]models.Event, error) {
	var sinceID int64
	if rawSince != "" {
		id, err := strconv.ParseInt(rawSince, 10, 64)
		if err != nil || id < 0 {
			return nil, validationError("since must be a non-negative event id")
		}
		sinceID = id
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	events, err := s.events.GetEventsSince(ctx, caller.ID, sinceID)
	if err != nil {
		return nil, storeError("get events", err)
	}
	return events, nil
}
