package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine/auth"
	"gigline/internal/events"
	"gigline/internal/repo"
)

type ContractCreateOptions struct {
	JobID        int64
	EmployerID   string
	FreelancerID string
	HourlyRate   int64
	StartDate    string
	EndDate      string
	ActorID      string
}

func (e Engine) CreateContract(ctx context.Context, opts ContractCreateOptions) (domain.Contract, error) {
	if opts.HourlyRate <= 0 {
		return domain.Contract{}, ValidationError{Field: "hourly_rate", Reason: "must be positive"}
	}
	if opts.JobID <= 0 {
		return domain.Contract{}, ValidationError{Field: "job_id", Reason: "is required"}
	}
	start, err := parseDay("start_date", opts.StartDate)
	if err != nil {
		return domain.Contract{}, err
	}
	end, err := parseDay("end_date", opts.EndDate)
	if err != nil {
		return domain.Contract{}, err
	}
	if end.Before(start) {
		return domain.Contract{}, ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	c := domain.Contract{
		JobID:        opts.JobID,
		EmployerID:   strings.TrimSpace(opts.EmployerID),
		FreelancerID: strings.TrimSpace(opts.FreelancerID),
		HourlyRate:   opts.HourlyRate,
		StartDate:    start.Format(dateLayout),
		EndDate:      end.Format(dateLayout),
		Status:       domain.ContractActive,
		CreatedAt:    e.stamp(),
	}
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.requireAccountRole(ctx, tx, c.EmployerID, domain.RoleEmployer, "employer_id"); err != nil {
			return err
		}
		if err := e.requireAccountRole(ctx, tx, c.FreelancerID, domain.RoleFreelancer, "freelancer_id"); err != nil {
			return err
		}
		if opts.ActorID != "" && opts.ActorID != c.EmployerID {
			if _, err := e.Auth.RequireAdmin(ctx, tx, opts.ActorID, "contract.create"); err != nil {
				return err
			}
		}
		id, err := e.Repo.InsertContract(ctx, tx, c)
		if err != nil {
			return err
		}
		c.ID = id
		return e.eventWriter().Append(ctx, tx, "contract.created", c.ID, "contract", fmt.Sprint(c.ID), orLocal(opts.ActorID), events.EventPayload{
			"employer_id": c.EmployerID, "freelancer_id": c.FreelancerID, "hourly_rate": c.HourlyRate, "end_date": c.EndDate,
		})
	})
	return c, err
}

func (e Engine) requireAccountRole(ctx context.Context, q db.Querier, id, role, field string) error {
	a, err := e.Repo.GetAccount(ctx, q, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ValidationError{Field: field, Reason: fmt.Sprintf("account %q not found", id)}
	}
	if err != nil {
		return err
	}
	if a.Role != role {
		return ValidationError{Field: field, Reason: fmt.Sprintf("account %q is not a %s", id, role)}
	}
	return nil
}

// GetContract returns a contract to one of its parties.
func (e Engine) GetContract(ctx context.Context, id int64, actorID string) (domain.Contract, error) {
	c, err := e.Repo.GetContract(ctx, e.DB, id)
	if err != nil {
		return c, err
	}
	if err := e.requireParty(ctx, e.DB, actorID, c, "contract.read"); err != nil {
		return domain.Contract{}, err
	}
	return c, nil
}

// ListContracts returns contracts visible to the caller.
func (e Engine) ListContracts(ctx context.Context, f repo.ContractFilters, actorID string) ([]domain.Contract, error) {
	if actorID != "" {
		a, err := e.Auth.Account(ctx, e.DB, actorID)
		if err != nil {
			return nil, err
		}
		switch a.Role {
		case domain.RoleEmployer:
			f.EmployerID = actorID
		case domain.RoleFreelancer:
			f.FreelancerID = actorID
		}
	}
	return e.Repo.ListContracts(ctx, e.DB, f)
}

func (e Engine) requireParty(ctx context.Context, q db.Querier, actorID string, c domain.Contract, perm string) error {
	if actorID == "" {
		return nil
	}
	_, err := e.Auth.RequireParty(ctx, q, actorID, c, perm)
	return err
}

// gate derives the contract flags from stored state.
func (e Engine) gate(ctx context.Context, q db.Querier, c domain.Contract) (domain.ContractGate, error) {
	g := domain.ContractGate{ContractID: c.ID, EndDate: c.EndDate, Status: c.Status}
	end, err := parseDay("end_date", c.EndDate)
	if err != nil {
		return g, err
	}
	g.IsEnded = e.now().UTC().After(end)
	g.IsCompletedOrCancelled = c.Status != domain.ContractActive
	cc, err := e.Repo.LatestCancellation(ctx, q, c.ID)
	switch {
	case err == nil:
		g.IsCancelled = cc.Status != domain.CancellationDeclined
	case !errors.Is(err, repo.ErrNotFound):
		return g, err
	}
	counts, err := e.Repo.CountTasksByStatus(ctx, q, c.ID)
	if err != nil {
		return g, err
	}
	for status, n := range counts {
		if n > 0 && domain.IncompleteTaskStatuses.Contains(status) {
			g.HasIncompleteTasks = true
		}
	}
	return g, nil
}

// Gate returns the contract flags deciding which actions are legal.
func (e Engine) Gate(ctx context.Context, contractID int64, actorID string) (domain.ContractGate, error) {
	c, err := e.GetContract(ctx, contractID, actorID)
	if err != nil {
		return domain.ContractGate{}, err
	}
	return e.gate(ctx, e.DB, c)
}

// CancelReason returns the latest cancellation request of a contract.
func (e Engine) CancelReason(ctx context.Context, contractID int64, actorID string) (domain.ContractCancellation, error) {
	if _, err := e.GetContract(ctx, contractID, actorID); err != nil {
		return domain.ContractCancellation{}, err
	}
	return e.Repo.LatestCancellation(ctx, e.DB, contractID)
}

// RequestCancellation records a cancellation request from either party.
func (e Engine) RequestCancellation(ctx context.Context, contractID int64, reason, actorID string) (domain.ContractCancellation, error) {
	reason, err := requireText("reason", reason)
	if err != nil {
		return domain.ContractCancellation{}, err
	}
	var cc domain.ContractCancellation
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		c, err := e.Repo.GetContract(ctx, tx, contractID)
		if err != nil {
			return err
		}
		p, err := e.Auth.ContractParty(ctx, tx, actorID, c)
		if err != nil {
			return err
		}
		if p != auth.PartyEmployer && p != auth.PartyFreelancer {
			return auth.ForbiddenError{Permission: "contract.cancel"}
		}
		g, err := e.gate(ctx, tx, c)
		if err != nil {
			return err
		}
		if g.IsCompletedOrCancelled {
			return ContractGateError{ContractID: c.ID, Reason: "contract is " + c.Status}
		}
		if g.IsCancelled {
			return ContractGateError{ContractID: c.ID, Reason: "cancellation already requested"}
		}
		cc = domain.ContractCancellation{
			ContractID:  c.ID,
			RequestedBy: actorID,
			Reason:      reason,
			Status:      domain.CancellationPending,
			CreatedAt:   e.stamp(),
		}
		id, err := e.Repo.InsertCancellation(ctx, tx, cc)
		if err != nil {
			return err
		}
		cc.ID = id
		return e.eventWriter().Append(ctx, tx, "contract.cancel_requested", c.ID, "contract", fmt.Sprint(c.ID), actorID, events.EventPayload{"reason": reason})
	})
	return cc, err
}

// ResolveCancellation lets an admin approve or decline the pending request.
// Approval refunds and removes pending tasks and is refused while any task
// awaits review.
func (e Engine) ResolveCancellation(ctx context.Context, contractID int64, approve bool, actorID string) (domain.ContractCancellation, error) {
	var cc domain.ContractCancellation
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if actorID != "" {
			if _, err := e.Auth.RequireAdmin(ctx, tx, actorID, "contract.cancel.resolve"); err != nil {
				return err
			}
		}
		c, err := e.Repo.GetContract(ctx, tx, contractID)
		if err != nil {
			return err
		}
		cc, err = e.Repo.LatestCancellation(ctx, tx, contractID)
		if err != nil {
			return err
		}
		if cc.Status != domain.CancellationPending {
			return TransitionError{Entity: "cancellation", From: cc.Status, Action: "resolve"}
		}
		now := e.stamp()
		resolver := orLocal(actorID)
		if !approve {
			cc.Status = domain.CancellationDeclined
			cc.ResolvedAt, cc.ResolvedBy = &now, &resolver
			if err := e.Repo.ResolveCancellation(ctx, tx, cc.ID, cc.Status, resolver, now); err != nil {
				return err
			}
			return e.eventWriter().Append(ctx, tx, "contract.cancel_declined", c.ID, "contract", fmt.Sprint(c.ID), resolver, nil)
		}
		tasks, err := e.Repo.ListTasks(ctx, tx, repo.TaskFilters{ContractID: c.ID, Statuses: []string{domain.TaskPending, domain.TaskSubmitted}})
		if err != nil {
			return err
		}
		var refunded int64
		for _, t := range tasks {
			if t.Status == domain.TaskSubmitted {
				return ContractGateError{ContractID: c.ID, Reason: fmt.Sprintf("task %d is awaiting review", t.ID)}
			}
			if err := e.removeTask(ctx, tx, t, "contract cancelled"); err != nil {
				return err
			}
			refunded += t.TotalPay
		}
		c.Status = domain.ContractCancelled
		if err := e.Repo.UpdateContractStatus(ctx, tx, c); err != nil {
			return err
		}
		cc.Status = domain.CancellationApproved
		cc.ResolvedAt, cc.ResolvedBy = &now, &resolver
		if err := e.Repo.ResolveCancellation(ctx, tx, cc.ID, cc.Status, resolver, now); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "contract.cancel_approved", c.ID, "contract", fmt.Sprint(c.ID), resolver, events.EventPayload{
			"removed_tasks": len(tasks), "refunded": refunded,
		})
	})
	return cc, err
}

// CompleteContract closes an ended contract with the employer's rating and feedback.
func (e Engine) CompleteContract(ctx context.Context, contractID int64, rating int, feedback, actorID string) (domain.Contract, error) {
	policy := e.config().Contracts.Completion
	if rating < policy.MinRating || rating > policy.MaxRating {
		return domain.Contract{}, ValidationError{Field: "rating", Reason: fmt.Sprintf("must be between %d and %d", policy.MinRating, policy.MaxRating)}
	}
	feedback = strings.TrimSpace(feedback)
	if n := len(strings.Fields(feedback)); n < policy.MinFeedbackWords {
		return domain.Contract{}, ValidationError{Field: "feedback", Reason: fmt.Sprintf("needs at least %d words, got %d", policy.MinFeedbackWords, n)}
	}
	var c domain.Contract
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		c, err = e.Repo.GetContract(ctx, tx, contractID)
		if err != nil {
			return err
		}
		if actorID != "" {
			if err := e.Auth.RequireEmployerOf(ctx, tx, actorID, c, "contract.complete"); err != nil {
				return err
			}
		}
		g, err := e.gate(ctx, tx, c)
		if err != nil {
			return err
		}
		switch {
		case g.IsCompletedOrCancelled:
			return ContractGateError{ContractID: c.ID, Reason: "contract is " + c.Status}
		case !g.IsEnded:
			return ContractGateError{ContractID: c.ID, Reason: "contract has not ended"}
		case g.IsCancelled:
			return ContractGateError{ContractID: c.ID, Reason: "cancellation pending"}
		case g.HasIncompleteTasks:
			return ContractGateError{ContractID: c.ID, Reason: "tasks are still pending or submitted"}
		}
		now := e.stamp()
		c.Status = domain.ContractCompleted
		c.Rating = &rating
		c.Feedback = &feedback
		c.CompletedAt = &now
		if err := e.Repo.UpdateContractStatus(ctx, tx, c); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "contract.completed", c.ID, "contract", fmt.Sprint(c.ID), orLocal(actorID), events.EventPayload{"rating": rating})
	})
	return c, err
}
