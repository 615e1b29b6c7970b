// store/event_store.go
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"componentlab/api/database"
	"componentlab/api/models"
)

// EventStore persists interaction events in ClickHouse. The table is append
// only; there are no update or delete paths.
type EventStore struct {
	DB *database.ClickHouseClient
}

func NewEventStore(chClient *database.ClickHouseClient) *EventStore {
	return &EventStore{DB: chClient}
}

const eventColumns = `id, component_name, action, timestamp, user_type, user_ref`

func (s *EventStore) Append(ctx context.Context, event *models.InteractionEvent) error {
	id, err := uuid.Parse(event.ID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", event.ID, err)
	}
	var userRef *uuid.UUID
	if event.UserRef != nil {
		ref, err := uuid.Parse(*event.UserRef)
		if err != nil {
			return fmt.Errorf("invalid user reference %q: %w", *event.UserRef, err)
		}
		userRef = &ref
	}

	err = s.DB.Conn.Exec(ctx,
		`INSERT INTO interaction_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		id, event.ComponentName, event.Action, event.Timestamp, string(event.UserType), userRef,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction event: %w", err)
	}
	return nil
}

func (s *EventStore) CountAll(ctx context.Context) (uint64, error) {
	var total uint64
	if err := s.DB.Conn.QueryRow(ctx, `SELECT count() FROM interaction_events`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count interaction events: %w", err)
	}
	return total, nil
}

func (s *EventStore) FindPage(ctx context.Context, skip, limit int) ([]models.InteractionEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM interaction_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`
	return s.queryEvents(ctx, query, uint64(limit), uint64(skip))
}

func (s *EventStore) FindAll(ctx context.Context) ([]models.InteractionEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM interaction_events
		ORDER BY timestamp DESC, id DESC
	`
	return s.queryEvents(ctx, query)
}

func (s *EventStore) queryEvents(ctx context.Context, query string, args ...any) ([]models.InteractionEvent, error) {
	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query interaction events: %w", err)
	}
	defer rows.Close()

	results := []models.InteractionEvent{}
	for rows.Next() {
		var (
			id       uuid.UUID
			event    models.InteractionEvent
			userType string
			userRef  *uuid.UUID
		)
		if err := rows.Scan(&id, &event.ComponentName, &event.Action, &event.Timestamp, &userType, &userRef); err != nil {
			return nil, fmt.Errorf("failed to scan interaction event: %w", err)
		}
		event.ID = id.String()
		event.UserType = models.UserType(userType)
		if userRef != nil {
			ref := userRef.String()
			event.UserRef = &ref
		}
		results = append(results, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interaction events: %w", err)
	}
	return results, nil
}

func (s *EventStore) CountByComponent(ctx context.Context, limit int) ([]models.ComponentCount, error) {
	query := `
		SELECT component_name, count() AS total
		FROM interaction_events
		GROUP BY component_name
		ORDER BY total DESC
		LIMIT ?
	`
	rows, err := s.DB.Conn.Query(ctx, query, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query counts by component: %w", err)
	}
	defer rows.Close()

	results := []models.ComponentCount{}
	for rows.Next() {
		var r models.ComponentCount
		if err := rows.Scan(&r.Component, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan component count: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for counts by component: %w", err)
	}
	return results, nil
}

func (s *EventStore) CountByAction(ctx context.Context) ([]models.ActionCount, error) {
	query := `
		SELECT component_name, action, count() AS total
		FROM interaction_events
		GROUP BY component_name, action
		ORDER BY component_name ASC, total DESC
	`
	rows, err := s.DB.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts by action: %w", err)
	}
	defer rows.Close()

	results := []models.ActionCount{}
	for rows.Next() {
		var r models.ActionCount
		if err := rows.Scan(&r.Key.Component, &r.Key.Action, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan action count: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for counts by action: %w", err)
	}
	return results, nil
}

func (s *EventStore) CountByUserType(ctx context.Context) ([]models.UserTypeCount, error) {
	query := `
		SELECT user_type, count() AS total
		FROM interaction_events
		GROUP BY user_type
	`
	rows, err := s.DB.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts by user type: %w", err)
	}
	defer rows.Close()

	results := []models.UserTypeCount{}
	for rows.Next() {
		var (
			userType string
			count    uint64
		)
		if err := rows.Scan(&userType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan user type count: %w", err)
		}
		results = append(results, models.UserTypeCount{UserType: models.UserType(userType), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for counts by user type: %w", err)
	}
	return results, nil
}
