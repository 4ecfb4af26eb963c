package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"gigline/internal/domain"
	"gigline/internal/events"
)

type AccountCreateOptions struct {
	ID          string
	Role        string
	DisplayName string
	Premium     bool
	// ActorID is the caller; empty means the local CLI.
	ActorID string
}

func (e Engine) CreateAccount(ctx context.Context, opts AccountCreateOptions) (domain.Account, error) {
	switch opts.Role {
	case domain.RoleEmployer, domain.RoleFreelancer, domain.RoleAdmin:
	default:
		return domain.Account{}, ValidationError{Field: "role", Reason: "must be employer, freelancer or admin"}
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = uuid.NewString()
	}
	a := domain.Account{
		ID:          id,
		Role:        opts.Role,
		DisplayName: strings.TrimSpace(opts.DisplayName),
		Premium:     opts.Premium,
		CreatedAt:   e.stamp(),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if opts.ActorID != "" {
			if _, err := e.Auth.RequireAdmin(ctx, tx, opts.ActorID, "account.create"); err != nil {
				return err
			}
		}
		if err := e.Repo.InsertAccount(ctx, tx, a); err != nil {
			return err
		}
		if err := e.Repo.EnsureWallet(ctx, tx, a.ID, a.CreatedAt); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "account.created", 0, "account", a.ID, orLocal(opts.ActorID), events.EventPayload{"role": a.Role})
	})
	return a, err
}

func (e Engine) ListAccounts(ctx context.Context, role string) ([]domain.Account, error) {
	return e.Repo.ListAccounts(ctx, e.DB, role)
}

func (e Engine) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return e.Repo.GetAccount(ctx, e.DB, id)
}
