package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types appended alongside lifecycle writes.
const (
	RequestCreated        = "request.created"
	RequestManagerDecided = "request.manager_decided"
	RequestPicDecided     = "request.pic_decided"
	RequestReturned       = "request.returned"
	ItemAvailabilitySet   = "item.availability_set"
	ItemCreated           = "item.created"
	UserCreated           = "user.created"
	UserRoleGranted       = "user.role_granted"
	UserRoleRevoked       = "user.role_revoked"
	APIKeyCreated         = "api_key.created"
	APIKeyRevoked         = "api_key.revoked"
)

type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

// Append writes one event inside tx so it commits or rolls back with the change
// it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload Payload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
