package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidEvent is returned when an event lacks its type, entity kind or actor.
var ErrInvalidEvent = errors.New("invalid event")

// Writer appends rows to the events log. Now defaults to time.Now.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Record is one row of the events log before insertion.
type Record struct {
	Type       string
	HubID      string
	EntityKind string
	EntityID   string
	ActorID    string
	Payload    EventPayload
}

func (r Record) validate() error {
	switch {
	case strings.TrimSpace(r.Type) == "":
		return fmt.Errorf("%w: type required", ErrInvalidEvent)
	case strings.TrimSpace(r.EntityKind) == "":
		return fmt.Errorf("%w: entity kind required for %s", ErrInvalidEvent, r.Type)
	case strings.TrimSpace(r.ActorID) == "":
		return fmt.Errorf("%w: actor required for %s", ErrInvalidEvent, r.Type)
	}
	return nil
}

// Append records an event inside the caller's transaction so it commits
// with the mutation that caused it.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, hubID, entityKind, entityID, actorID string, payload EventPayload) error {
	return w.Write(ctx, tx, Record{
		Type:       evtType,
		HubID:      hubID,
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    payload,
	})
}

func (w Writer) Write(ctx context.Context, tx *sql.Tx, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	body := []byte("{}")
	if len(rec.Payload) > 0 {
		var err error
		if body, err = json.Marshal(rec.Payload); err != nil {
			return fmt.Errorf("encode %s payload: %w", rec.Type, err)
		}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO events(ts,type,hub_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		w.stamp(), rec.Type, orNull(rec.HubID), rec.EntityKind, orNull(rec.EntityID), rec.ActorID, string(body))
	if err != nil {
		return fmt.Errorf("append %s: %w", rec.Type, err)
	}
	return nil
}

func (w Writer) stamp() string {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	return now().UTC().Format(time.RFC3339)
}

func orNull(v string) any {
	if v == "" {
		return nil
	}
	return v
}
