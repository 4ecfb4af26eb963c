package auth

import (
	"context"
	"errors"
	"fmt"

	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/repo"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// UnknownActorError is returned when the caller has no account.
type UnknownActorError struct {
	ActorID string
}

func (e UnknownActorError) Error() string {
	return fmt.Sprintf("unknown actor %q", e.ActorID)
}

// Service answers role and party questions against the accounts table.
type Service struct {
	Repo repo.Repo
}

// Account loads the caller's account.
func (s Service) Account(ctx context.Context, q db.Querier, actorID string) (domain.Account, error) {
	if actorID == "" {
		return domain.Account{}, UnknownActorError{}
	}
	a, err := s.Repo.GetAccount(ctx, q, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return a, UnknownActorError{ActorID: actorID}
	}
	return a, err
}

// RequireRole fails unless the caller holds one of roles. Admins pass every check.
func (s Service) RequireRole(ctx context.Context, q db.Querier, actorID, perm string, roles ...string) (domain.Account, error) {
	a, err := s.Account(ctx, q, actorID)
	if err != nil {
		return a, err
	}
	if a.Role == domain.RoleAdmin {
		return a, nil
	}
	for _, r := range roles {
		if a.Role == r {
			return a, nil
		}
	}
	return a, ForbiddenError{Permission: perm}
}

// RequireAdmin fails unless the caller is an admin.
func (s Service) RequireAdmin(ctx context.Context, q db.Querier, actorID, perm string) (domain.Account, error) {
	a, err := s.Account(ctx, q, actorID)
	if err != nil {
		return a, err
	}
	if a.Role != domain.RoleAdmin {
		return a, ForbiddenError{Permission: perm}
	}
	return a, nil
}

// Party identifies which side of a contract the caller stands on.
type Party int

const (
	PartyNone Party = iota
	PartyEmployer
	PartyFreelancer
	PartyAdmin
)

// ContractParty resolves the caller's relation to a contract.
func (s Service) ContractParty(ctx context.Context, q db.Querier, actorID string, c domain.Contract) (Party, error) {
	a, err := s.Account(ctx, q, actorID)
	if err != nil {
		return PartyNone, err
	}
	switch {
	case a.Role == domain.RoleAdmin:
		return PartyAdmin, nil
	case actorID == c.EmployerID:
		return PartyEmployer, nil
	case actorID == c.FreelancerID:
		return PartyFreelancer, nil
	}
	return PartyNone, nil
}

// RequireEmployerOf fails unless the caller is the contract's employer (or an admin).
func (s Service) RequireEmployerOf(ctx context.Context, q db.Querier, actorID string, c domain.Contract, perm string) error {
	p, err := s.ContractParty(ctx, q, actorID, c)
	if err != nil {
		return err
	}
	if p != PartyEmployer && p != PartyAdmin {
		return ForbiddenError{Permission: perm}
	}
	return nil
}

// RequireFreelancerOf fails unless the caller is the contract's freelancer.
// Admins are not allowed to submit work on someone's behalf.
func (s Service) RequireFreelancerOf(ctx context.Context, q db.Querier, actorID string, c domain.Contract, perm string) error {
	p, err := s.ContractParty(ctx, q, actorID, c)
	if err != nil {
		return err
	}
	if p != PartyFreelancer {
		return ForbiddenError{Permission: perm}
	}
	return nil
}

// RequireParty fails unless the caller is on either side of the contract (or an admin).
func (s Service) RequireParty(ctx context.Context, q db.Querier, actorID string, c domain.Contract, perm string) (Party, error) {
	p, err := s.ContractParty(ctx, q, actorID, c)
	if err != nil {
		return p, err
	}
	if p == PartyNone {
		return p, ForbiddenError{Permission: perm}
	}
	return p, nil
}
