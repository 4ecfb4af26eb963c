// Package events appends rows to the append-only event log. Events share the
// transaction of the change they describe, so a rolled back operation leaves
// no trace in the log.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"gigline/internal/db"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one event. contractID 0 and an empty entityID are stored
// as NULL.
func (w Writer) Append(ctx context.Context, q db.Querier, evtType string, contractID int64, entityKind, entityID, actorID string, payload EventPayload) error {
	if !validType(evtType) {
		return errors.Errorf("event type %q must look like <entity>.<action>", evtType)
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal event payload")
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO events(ts,type,contract_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), evtType, orNull(contractID, 0), entityKind, orNull(entityID, ""), actorID, string(data))
	return errors.Wrapf(err, "append %s", evtType)
}

func validType(t string) bool {
	entity, action, ok := strings.Cut(t, ".")
	return ok && entity != "" && action != "" && !strings.ContainsAny(t, " *")
}

func orNull[T comparable](v, zero T) any {
	if v == zero {
		return nil
	}
	return v
}
