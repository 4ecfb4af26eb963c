package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gigline/internal/attach"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine/auth"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// ticketTransitions lists the moves SetTicketStatus allows. An open ticket
// reaches in_progress only through AssignTicket; a resolved ticket may be
// reopened and keeps its assignee.
var ticketTransitions = map[string][]string{
	domain.TicketOpen:       {domain.TicketClosed},
	domain.TicketInProgress: {domain.TicketResolved, domain.TicketClosed},
	domain.TicketResolved:   {domain.TicketClosed, domain.TicketInProgress},
}

type TicketCreateOptions struct {
	Subject     string
	Description string
	Category    string
	Priority    string
	Attachments []attach.File
	ActorID     string
}

func (e Engine) CreateTicket(ctx context.Context, opts TicketCreateOptions) (domain.Ticket, error) {
	var err error
	if opts.Subject, err = requireText("subject", opts.Subject); err != nil {
		return domain.Ticket{}, err
	}
	if opts.Description, err = requireText("description", opts.Description); err != nil {
		return domain.Ticket{}, err
	}
	if opts.Category, err = requireText("category", opts.Category); err != nil {
		return domain.Ticket{}, err
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	if !domain.TicketPriorities.Contains(opts.Priority) {
		return domain.Ticket{}, ValidationError{Field: "priority", Reason: "must be low, medium, high or premium"}
	}
	files, err := attach.Prepare(attach.KindTicket, opts.Attachments, e.config().Limits)
	if err != nil {
		return domain.Ticket{}, uploadError("attachments", err)
	}
	var t domain.Ticket
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		a, err := e.Auth.Account(ctx, tx, opts.ActorID)
		if err != nil {
			return err
		}
		if opts.Priority == "premium" && !a.Premium {
			return auth.ForbiddenError{Permission: "ticket.priority.premium"}
		}
		now := e.stamp()
		t = domain.Ticket{
			CreatorID:   a.ID,
			Subject:     opts.Subject,
			Description: opts.Description,
			Category:    opts.Category,
			Priority:    opts.Priority,
			Status:      domain.TicketOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		id, err := e.Repo.InsertTicket(ctx, tx, t)
		if err != nil {
			return err
		}
		t.ID = id
		if t.Attachments, err = e.storeFiles(ctx, tx, domain.OwnerTicket, fmt.Sprint(t.ID), files); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "ticket.created", 0, "ticket", fmt.Sprint(t.ID), a.ID, events.EventPayload{
			"priority": t.Priority, "category": t.Category, "attachments": len(files),
		})
	})
	return t, err
}

// ListTickets returns every ticket to admins and only their own to others.
func (e Engine) ListTickets(ctx context.Context, f repo.TicketFilters, actorID string) ([]domain.Ticket, error) {
	if f.Status != "" && !domain.TicketStatuses.Contains(f.Status) {
		return nil, ValidationError{Field: "status", Reason: "is not a ticket status"}
	}
	if f.Priority != "" && !domain.TicketPriorities.Contains(f.Priority) {
		return nil, ValidationError{Field: "priority", Reason: "is not a ticket priority"}
	}
	if actorID != "" {
		a, err := e.Auth.Account(ctx, e.DB, actorID)
		if err != nil {
			return nil, err
		}
		if a.Role != domain.RoleAdmin {
			f.CreatorID = a.ID
		}
	}
	return e.Repo.ListTickets(ctx, e.DB, f)
}

// ticketAccess loads a ticket the caller may see: its creator, its assignee or an admin.
func (e Engine) ticketAccess(ctx context.Context, q db.Querier, id int64, actorID, perm string) (domain.Ticket, domain.Account, error) {
	t, err := e.Repo.GetTicket(ctx, q, id)
	if err != nil {
		return t, domain.Account{}, err
	}
	if actorID == "" {
		return t, domain.Account{ID: "local", Role: domain.RoleAdmin}, nil
	}
	a, err := e.Auth.Account(ctx, q, actorID)
	if err != nil {
		return t, a, err
	}
	if a.Role == domain.RoleAdmin || t.CreatorID == a.ID || (t.AssigneeID != nil && *t.AssigneeID == a.ID) {
		return t, a, nil
	}
	return t, a, auth.ForbiddenError{Permission: perm}
}

func (e Engine) GetTicket(ctx context.Context, id int64, actorID string) (domain.Ticket, error) {
	t, _, err := e.ticketAccess(ctx, e.DB, id, actorID, "ticket.read")
	if err != nil {
		return domain.Ticket{}, err
	}
	if t.Attachments, err = e.Repo.ListAttachments(ctx, e.DB, domain.OwnerTicket, fmt.Sprint(t.ID)); err != nil {
		return t, err
	}
	t.Messages, err = e.Repo.ListTicketMessages(ctx, e.DB, t.ID)
	return t, err
}

// AssignTicket gives a ticket to an admin and starts work on it.
func (e Engine) AssignTicket(ctx context.Context, id int64, assigneeID, actorID string) (domain.Ticket, error) {
	assigneeID = strings.TrimSpace(assigneeID)
	var t domain.Ticket
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if actorID != "" {
			a, err := e.Auth.RequireAdmin(ctx, tx, actorID, "ticket.assign")
			if err != nil {
				return err
			}
			if assigneeID == "" {
				assigneeID = a.ID
			}
		}
		if _, err := e.Auth.RequireAdmin(ctx, tx, assigneeID, "ticket.work"); err != nil {
			return ValidationError{Field: "assignee_id", Reason: "must be an admin account"}
		}
		var err error
		t, err = e.Repo.GetTicket(ctx, tx, id)
		if err != nil {
			return err
		}
		switch t.Status {
		case domain.TicketOpen:
			t.Status = domain.TicketInProgress
		case domain.TicketInProgress:
		default:
			return TransitionError{Entity: "ticket", From: t.Status, Action: "assign"}
		}
		t.AssigneeID = &assigneeID
		t.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateTicket(ctx, tx, t); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "ticket.assigned", 0, "ticket", fmt.Sprint(t.ID), orLocal(actorID), events.EventPayload{"assignee_id": assigneeID})
	})
	return t, err
}

// SetTicketStatus moves a ticket along its lifecycle; admins and the assignee may do so.
func (e Engine) SetTicketStatus(ctx context.Context, id int64, status, actorID string) (domain.Ticket, error) {
	if !domain.TicketStatuses.Contains(status) {
		return domain.Ticket{}, ValidationError{Field: "status", Reason: "is not a ticket status"}
	}
	var t domain.Ticket
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var (
			a   domain.Account
			err error
		)
		t, a, err = e.ticketAccess(ctx, tx, id, actorID, "ticket.status")
		if err != nil {
			return err
		}
		if a.Role != domain.RoleAdmin && (t.AssigneeID == nil || *t.AssigneeID != a.ID) {
			return auth.ForbiddenError{Permission: "ticket.status"}
		}
		allowed := false
		for _, next := range ticketTransitions[t.Status] {
			if next == status {
				allowed = true
			}
		}
		if !allowed {
			return TransitionError{Entity: "ticket", From: t.Status, Action: "move to " + status}
		}
		from := t.Status
		t.Status = status
		t.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateTicket(ctx, tx, t); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "ticket.status", 0, "ticket", fmt.Sprint(t.ID), a.ID, events.EventPayload{"from": from, "to": status})
	})
	return t, err
}

func (e Engine) AddTicketMessage(ctx context.Context, id int64, body, actorID string) (domain.TicketMessage, error) {
	body, err := requireText("body", body)
	if err != nil {
		return domain.TicketMessage{}, err
	}
	var m domain.TicketMessage
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		t, a, err := e.ticketAccess(ctx, tx, id, actorID, "ticket.message")
		if err != nil {
			return err
		}
		if t.Status == domain.TicketClosed {
			return TransitionError{Entity: "ticket", From: t.Status, Action: "message"}
		}
		now := e.stamp()
		m = domain.TicketMessage{TicketID: t.ID, AuthorID: a.ID, Body: body, CreatedAt: now}
		if m.ID, err = e.Repo.InsertTicketMessage(ctx, tx, m); err != nil {
			return err
		}
		t.UpdatedAt = now
		if err := e.Repo.UpdateTicket(ctx, tx, t); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "ticket.message", 0, "ticket", fmt.Sprint(t.ID), a.ID, events.EventPayload{"message_id": m.ID})
	})
	return m, err
}

// TicketAttachment loads one attachment, bytes included.
func (e Engine) TicketAttachment(ctx context.Context, ticketID int64, attachmentID, actorID string) (domain.Attachment, error) {
	if _, _, err := e.ticketAccess(ctx, e.DB, ticketID, actorID, "ticket.read"); err != nil {
		return domain.Attachment{}, err
	}
	a, err := e.Repo.GetAttachment(ctx, e.DB, attachmentID)
	if err != nil {
		return a, err
	}
	if a.OwnerKind != domain.OwnerTicket || a.OwnerID != fmt.Sprint(ticketID) {
		return domain.Attachment{}, repo.ErrNotFound
	}
	return a, nil
}
