package database

import (
	"context"
	"encoding/json"
	"fmt"
	"modelhub/internal/models"
)

// LogEvent stores an event in the recipient's journal and pushes it to the
// recipient's live connections.
func (s *Store) LogEvent(ctx context.Context, userID int64, eventType string, payload interface{}) (*models.Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	event := models.Event{EventType: eventType, Payload: payloadBytes}

	query := `
		INSERT INTO event_journal (user_id, event_type, payload)
		VALUES ($1, $2, $3)
		RETURNING id, event_time
	`
	err = s.db.QueryRow(ctx, query, userID, eventType, payloadBytes).Scan(&event.ID, &event.EventTime)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		eventBytes, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event: %w", err)
		}
		s.publisher.PublishEvent(userID, eventBytes)
	}

	return &event, nil
}

func (q *Queries) GetEventsSince(ctx context.Context, userID int64, sinceID int64) ([]models.Event, error) {
	query := `
		SELECT id, event_type, event_time, payload
		FROM event_journal
		WHERE user_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT 100
	`
	rows, err := q.db.Query(ctx, query, userID, sinceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.EventTime,
			&event.Payload,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
