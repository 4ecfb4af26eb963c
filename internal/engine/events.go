package engine

import (
	"context"

	"gigline/internal/domain"
	"gigline/internal/repo"
)

// EventPage is one page of the event log, newest first.
type EventPage struct {
	Items      []domain.Event `json:"items"`
	NextCursor int64          `json:"next_cursor,omitempty"`
}

// ListEvents pages the event log. Contract parties may read their contract's
// events; the unfiltered log is admin only.
func (e Engine) ListEvents(ctx context.Context, f repo.EventFilters, cursor int64, limit int, actorID string) (EventPage, error) {
	page := EventPage{Items: []domain.Event{}}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if actorID != "" {
		if f.ContractID != 0 {
			if _, err := e.GetContract(ctx, f.ContractID, actorID); err != nil {
				return page, err
			}
		} else if _, err := e.Auth.RequireAdmin(ctx, e.DB, actorID, "events.read"); err != nil {
			return page, err
		}
	}
	items, err := e.Repo.LatestEvents(ctx, e.DB, f, cursor, limit+1)
	if err != nil {
		return page, err
	}
	if len(items) > limit {
		page.NextCursor = items[limit-1].ID
		items = items[:limit]
	}
	page.Items = append(page.Items, items...)
	return page, nil
}
