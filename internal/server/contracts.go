package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

type contractPath struct {
	ID int64 `path:"id"`
}

var contractErrors = []int{
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
}

func registerContracts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-contract",
		Method:        http.MethodPost,
		Path:          "/contracts",
		Summary:       "Create contract",
		DefaultStatus: http.StatusCreated,
		Errors:        contractErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateContractRequest
	}) (*response[domain.Contract], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateContract(ctx, engine.ContractCreateOptions{
			JobID:        input.Body.JobID,
			EmployerID:   input.Body.EmployerID,
			FreelancerID: input.Body.FreelancerID,
			HourlyRate:   input.Body.HourlyRate,
			StartDate:    input.Body.StartDate,
			EndDate:      input.Body.EndDate,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contracts",
		Method:      http.MethodGet,
		Path:        "/contracts",
		Summary:     "List the caller's contracts",
	}, func(ctx context.Context, input *struct {
		EmployerID   string `query:"employerId"`
		FreelancerID string `query:"freelancerId"`
		Status       string `query:"status"`
	}) (*response[[]domain.Contract], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListContracts(ctx, repo.ContractFilters{
			EmployerID:   input.EmployerID,
			FreelancerID: input.FreelancerID,
			Status:       input.Status,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-contract",
		Method:      http.MethodGet,
		Path:        "/contracts/{id}",
		Summary:     "Get contract",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *contractPath) (*response[domain.Contract], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.GetContract(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "contract-check-status",
		Method:      http.MethodGet,
		Path:        "/contracts/checkstatus/{id}",
		Summary:     "Contract gate flags",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *contractPath) (*response[domain.ContractGate], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		g, err := e.Gate(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(g), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "contract-cancel-reason",
		Method:      http.MethodGet,
		Path:        "/contracts/cancel-reason/{id}",
		Summary:     "Latest cancellation request",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *contractPath) (*response[domain.ContractCancellation], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cc, err := e.CancelReason(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(cc), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "contract-cancel",
		Method:        http.MethodPost,
		Path:          "/contracts/cancel/{id}",
		Summary:       "Request cancellation",
		DefaultStatus: http.StatusCreated,
		Errors:        contractErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body ReasonRequest
	}) (*response[domain.ContractCancellation], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cc, err := e.RequestCancellation(ctx, input.ID, input.Body.Reason, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(cc), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "contract-cancel-resolve",
		Method:      http.MethodPut,
		Path:        "/contracts/cancel/{id}/resolve",
		Summary:     "Approve or decline a cancellation (admin)",
		Errors:      contractErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body ResolveCancellationRequest
	}) (*response[domain.ContractCancellation], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cc, err := e.ResolveCancellation(ctx, input.ID, input.Body.Approve, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(cc), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "contract-complete",
		Method:      http.MethodPost,
		Path:        "/contracts/complete/{id}",
		Summary:     "Complete contract with rating and feedback",
		Errors:      contractErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body CompleteContractRequest
	}) (*response[domain.Contract], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CompleteContract(ctx, input.ID, input.Body.Rating, input.Body.Feedback, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-settlement",
		Method:      http.MethodGet,
		Path:        "/settlements/{id}",
		Summary:     "Settlement status",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*response[domain.Settlement], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		st, err := e.GetSettlement(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(st), nil
	})
}
