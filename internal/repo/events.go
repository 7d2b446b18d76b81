package repo

import (
	"context"

	"assetline/internal/domain"
)

type EventFilters struct {
	EntityKind string
	EntityID   string
	AfterID    int64
	Limit      int
}

// ListEvents returns events in id order, oldest first.
func (r Repo) ListEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id > ?`
	args := []any{f.AfterID}
	if f.EntityKind != "" {
		query += " AND entity_kind=?"
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		query += " AND entity_id=?"
		args = append(args, f.EntityID)
	}
	query += " ORDER BY id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
