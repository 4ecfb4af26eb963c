package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"gigline/internal/db"
	"gigline/internal/domain"
)

type EventFilters struct {
	ContractID int64
	Type       string
	EntityKind string
	EntityID   string
}

func (f EventFilters) where(cursorClause string, cursor int64) (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.ContractID != 0 {
		clauses = append(clauses, "contract_id=?")
		args = append(args, f.ContractID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if cursor > 0 {
		clauses = append(clauses, cursorClause)
		args = append(args, cursor)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// LatestEvents pages backwards: newest first, IDs below the cursor.
func (r Repo) LatestEvents(ctx context.Context, q db.Querier, f EventFilters, cursor int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := f.where("id<?", cursor)
	query := fmt.Sprintf(`SELECT id,ts,type,contract_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	return r.queryEvents(ctx, q, query, append(args, limit)...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, q db.Querier, f EventFilters, cursor int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	where, args := f.where("id>?", cursor)
	query := fmt.Sprintf(`SELECT id,ts,type,contract_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	return r.queryEvents(ctx, q, query, append(args, limit)...)
}

func (r Repo) queryEvents(ctx context.Context, q db.Querier, query string, args ...any) ([]domain.Event, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var contractID sql.NullInt64
		var entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &contractID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.ContractID = int64Ptr(contractID)
		e.EntityID = entityID.String
		e.Payload = payload.String
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID.
func (r Repo) LatestEventID(ctx context.Context, q db.Querier) (int64, error) {
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "latest event id")
	}
	return id, nil
}
