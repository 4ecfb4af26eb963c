package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

type ticketPath struct {
	ID int64 `path:"id"`
}

var ticketErrors = []int{
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
}

func registerTickets(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-ticket",
		Method:        http.MethodPost,
		Path:          "/tickets",
		Summary:       "Open a support ticket",
		DefaultStatus: http.StatusCreated,
		Errors:        ticketErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTicketRequest
	}) (*response[domain.Ticket], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		files, err := decodeFiles(input.Body.Attachments)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.CreateTicket(ctx, engine.TicketCreateOptions{
			Subject:     input.Body.Subject,
			Description: input.Body.Description,
			Category:    input.Body.Category,
			Priority:    input.Body.Priority,
			Attachments: files,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tickets",
		Method:      http.MethodGet,
		Path:        "/tickets",
		Summary:     "List tickets",
	}, func(ctx context.Context, input *struct {
		CreatorID string `query:"creatorId"`
		Status    string `query:"status"`
		Priority  string `query:"priority"`
		Category  string `query:"category"`
		Query     string `query:"q"`
	}) (*response[[]domain.Ticket], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTickets(ctx, repo.TicketFilters{
			CreatorID: input.CreatorID,
			Status:    input.Status,
			Priority:  input.Priority,
			Category:  input.Category,
			Query:     input.Query,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ticket",
		Method:      http.MethodGet,
		Path:        "/tickets/{id}",
		Summary:     "Get ticket with messages and attachment metadata",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *ticketPath) (*response[domain.Ticket], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTicket(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-ticket",
		Method:      http.MethodPut,
		Path:        "/tickets/{id}/assign",
		Summary:     "Assign ticket to an admin",
		Errors:      ticketErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body AssignTicketRequest
	}) (*response[domain.Ticket], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.AssignTicket(ctx, input.ID, input.Body.AssigneeID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-ticket-status",
		Method:      http.MethodPut,
		Path:        "/tickets/{id}/status",
		Summary:     "Move ticket to another status",
		Errors:      ticketErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body TicketStatusRequest
	}) (*response[domain.Ticket], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.SetTicketStatus(ctx, input.ID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-ticket-message",
		Method:        http.MethodPost,
		Path:          "/tickets/{id}/messages",
		Summary:       "Reply on a ticket",
		DefaultStatus: http.StatusCreated,
		Errors:        ticketErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body TicketMessageRequest
	}) (*response[domain.TicketMessage], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.AddTicketMessage(ctx, input.ID, input.Body.Body, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(m), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ticket-attachment",
		Method:      http.MethodGet,
		Path:        "/tickets/{id}/attachments/{attachmentId}",
		Summary:     "Download a ticket attachment as base64",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID           int64  `path:"id"`
		AttachmentID string `path:"attachmentId"`
	}) (*response[FileResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.TicketAttachment(ctx, input.ID, input.AttachmentID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(fileResponse(a)), nil
	})
}
