package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gigline/internal/domain"
	"gigline/internal/engine"
)

type taskPath struct {
	ID int64 `path:"id"`
}

var taskErrors = []int{
	http.StatusBadRequest,
	http.StatusPaymentRequired,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-task-file-data",
		Method:      http.MethodGet,
		Path:        "/tasks/get-task-file-data",
		Summary:     "List a contract's tasks with file metadata",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		EmployerID   string `query:"employerId"`
		FreelancerID string `query:"freelancerId"`
		ContractID   int64  `query:"contractId" required:"true"`
	}) (*response[[]domain.Task], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.ListTaskFileData(ctx, input.EmployerID, input.FreelancerID, input.ContractID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(tasks)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*response[domain.Task], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks/create",
		Summary:       "Create task and hold its pay in escrow",
		DefaultStatus: http.StatusCreated,
		Errors:        taskErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest
	}) (*response[domain.Task], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			ContractID: input.Body.ContractID,
			TaskFields: input.Body.fields(),
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/update/{id}",
		Summary:     "Edit task; pay is recomputed from hours",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body TaskFieldsRequest
	}) (*response[domain.Task], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.EditTask(ctx, input.ID, input.Body.fields(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/delete/{id}",
		Summary:     "Delete a pending task and refund its escrow",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *taskPath) (*response[DeleteTaskResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		refunded, err := e.DeleteTask(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(DeleteTaskResponse{TaskID: input.ID, Refunded: refunded}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-task",
		Method:      http.MethodPost,
		Path:        "/tasks/approve/{id}",
		Summary:     "Approve a submitted task and queue its payment",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *taskPath) (*response[ApproveTaskResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, st, err := e.ApproveTask(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(ApproveTaskResponse{Task: t, Settlement: st}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-task",
		Method:      http.MethodPut,
		Path:        "/tasks/reject/{id}",
		Summary:     "Reject a submitted task with a reason",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body ReasonRequest
	}) (*response[domain.Task], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.RejectTask(ctx, input.ID, input.Body.Reason, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-end-date",
		Method:      http.MethodGet,
		Path:        "/tasks/get-end-date",
		Summary:     "Contract end date",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ContractID int64 `query:"contractId" required:"true"`
	}) (*response[EndDateResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		g, err := e.Gate(ctx, input.ContractID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(EndDateResponse{ContractID: g.ContractID, EndDate: g.EndDate, IsEnded: g.IsEnded}), nil
	})
}
