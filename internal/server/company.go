package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

type ownerPath struct {
	OwnerID string `path:"ownerId"`
}

func registerCompany(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-companies",
		Method:      http.MethodGet,
		Path:        "/company",
		Summary:     "Verification queue (admin)",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
		Query  string `query:"q"`
	}) (*response[[]domain.Company], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListCompanies(ctx, repo.CompanyFilters{Status: input.Status, Query: input.Query}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-company",
		Method:      http.MethodGet,
		Path:        "/company/{ownerId}",
		Summary:     "Company profile",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *ownerPath) (*response[domain.Company], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.GetCompany(ctx, input.OwnerID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-company",
		Method:      http.MethodPut,
		Path:        "/company/{ownerId}",
		Summary:     "Create or edit company profile",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		OwnerID string `path:"ownerId"`
		Body    CompanyRequest
	}) (*response[domain.Company], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpsertCompany(ctx, input.OwnerID, engine.CompanyInput{
			Name:               input.Body.Name,
			RegistrationNumber: input.Body.RegistrationNumber,
			Industry:           input.Body.Industry,
			Website:            input.Body.Website,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-company",
		Method:      http.MethodPost,
		Path:        "/company/{ownerId}/submit",
		Summary:     "Submit company for verification",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *ownerPath) (*response[domain.Company], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.SubmitCompany(ctx, input.OwnerID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-company",
		Method:      http.MethodPut,
		Path:        "/company/{ownerId}/verify",
		Summary:     "Verify or reject a pending company (admin)",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		OwnerID string `path:"ownerId"`
		Body    VerifyCompanyRequest
	}) (*response[domain.Company], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.ReviewCompany(ctx, input.OwnerID, input.Body.Approve, input.Body.Reason, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(c), nil
	})
}
