package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"gigline/internal/db"
	"gigline/internal/domain"
)

const ticketColumns = `id,creator_id,assignee_id,subject,description,category,priority,status,created_at,updated_at`

func scanTicket(s scanner) (domain.Ticket, error) {
	var t domain.Ticket
	var assignee sql.NullString
	if err := s.Scan(&t.ID, &t.CreatorID, &assignee, &t.Subject, &t.Description, &t.Category, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, notFound(err)
	}
	t.AssigneeID = stringPtr(assignee)
	return t, nil
}

func (r Repo) InsertTicket(ctx context.Context, q db.Querier, t domain.Ticket) (int64, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO tickets(creator_id,assignee_id,subject,description,category,priority,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		t.CreatorID, nullableStringPtr(t.AssigneeID), t.Subject, t.Description, t.Category, t.Priority, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return 0, errors.Wrap(err, "insert ticket")
	}
	return res.LastInsertId()
}

func (r Repo) GetTicket(ctx context.Context, q db.Querier, id int64) (domain.Ticket, error) {
	return scanTicket(q.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=?`, id))
}

func (r Repo) UpdateTicket(ctx context.Context, q db.Querier, t domain.Ticket) error {
	err := expectOne(q.ExecContext(ctx, `UPDATE tickets SET assignee_id=?, status=?, updated_at=? WHERE id=?`,
		nullableStringPtr(t.AssigneeID), t.Status, t.UpdatedAt, t.ID))
	return errors.Wrapf(err, "update ticket %d", t.ID)
}

type TicketFilters struct {
	CreatorID string
	Status    string
	Priority  string
	Category  string
	Query     string
}

func (r Repo) ListTickets(ctx context.Context, q db.Querier, f TicketFilters) ([]domain.Ticket, error) {
	var (
		clauses []string
		args    []any
	)
	if f.CreatorID != "" {
		clauses = append(clauses, "creator_id=?")
		args = append(args, f.CreatorID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.Query != "" {
		clauses = append(clauses, "(subject LIKE ? OR description LIKE ?)")
		args = append(args, likePattern(f.Query), likePattern(f.Query))
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY updated_at DESC, id DESC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list tickets")
	}
	defer rows.Close()
	var res []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) InsertTicketMessage(ctx context.Context, q db.Querier, m domain.TicketMessage) (int64, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO ticket_messages(ticket_id,author_id,body,created_at) VALUES (?,?,?,?)`,
		m.TicketID, m.AuthorID, m.Body, m.CreatedAt)
	if err != nil {
		return 0, errors.Wrap(err, "insert ticket message")
	}
	return res.LastInsertId()
}

func (r Repo) ListTicketMessages(ctx context.Context, q db.Querier, ticketID int64) ([]domain.TicketMessage, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,ticket_id,author_id,body,created_at FROM ticket_messages WHERE ticket_id=? ORDER BY id`, ticketID)
	if err != nil {
		return nil, errors.Wrap(err, "list ticket messages")
	}
	defer rows.Close()
	var res []domain.TicketMessage
	for rows.Next() {
		var m domain.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.AuthorID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
