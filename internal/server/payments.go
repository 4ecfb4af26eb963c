package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gigline/internal/domain"
	"gigline/internal/engine"
)

func registerPayments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "transactions-data",
		Method:      http.MethodGet,
		Path:        "/transactions-data/{actorId}",
		Summary:     "Payment records with a computed summary",
		Errors:      []int{http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ActorID    string `path:"actorId"`
		Kind       string `query:"kind"`
		ContractID int64  `query:"contractId"`
		Query      string `query:"q"`
		From       string `query:"from" doc:"RFC3339 or YYYY-MM-DD"`
		To         string `query:"to" doc:"RFC3339 or YYYY-MM-DD, inclusive"`
		Limit      int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*response[TransactionsResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, summary, err := e.ListTransactions(ctx, input.ActorID, engine.TransactionFilter{
			Kind:       input.Kind,
			ContractID: input.ContractID,
			Query:      input.Query,
			From:       input.From,
			To:         input.To,
			Limit:      input.Limit,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(TransactionsResponse{Items: nonNilSlice(items), Summary: summary}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-wallet",
		Method:      http.MethodGet,
		Path:        "/wallets/{actorId}",
		Summary:     "Wallet balance",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actorId"`
	}) (*response[domain.Wallet], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.Wallet(ctx, input.ActorID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(w), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deposit",
		Method:      http.MethodPost,
		Path:        "/wallets/{actorId}/deposit",
		Summary:     "Credit a wallet (admin)",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actorId"`
		Body    DepositRequest
	}) (*response[domain.Wallet], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.Deposit(ctx, input.ActorID, input.Body.Amount, input.Body.Note, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(w), nil
	})
}
