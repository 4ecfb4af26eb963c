package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/repo"
)

type ledgerRef struct {
	ContractID int64
	TaskID     int64
	Note       string
}

func (r ledgerRef) entry(actorID, kind string, amount int64, now string) domain.LedgerEntry {
	le := domain.LedgerEntry{ActorID: actorID, Kind: kind, Amount: amount, Note: r.Note, CreatedAt: now}
	if r.ContractID != 0 {
		id := r.ContractID
		le.ContractID = &id
	}
	if r.TaskID != 0 {
		id := r.TaskID
		le.TaskID = &id
	}
	return le
}

// debit takes amount from the actor's wallet, failing with
// InsufficientCreditsError before any write when the balance is short.
func (e Engine) debit(ctx context.Context, q db.Querier, actorID, kind string, amount int64, ref ledgerRef) error {
	if amount <= 0 {
		return nil
	}
	now := e.stamp()
	if err := e.Repo.EnsureWallet(ctx, q, actorID, now); err != nil {
		return err
	}
	w, err := e.Repo.GetWallet(ctx, q, actorID)
	if err != nil {
		return err
	}
	if w.Balance < amount {
		return InsufficientCreditsError{Required: amount, Available: w.Balance}
	}
	if err := e.Repo.AddBalance(ctx, q, actorID, -amount, now); err != nil {
		return err
	}
	return e.Repo.InsertLedgerEntry(ctx, q, ref.entry(actorID, kind, -amount, now))
}

func (e Engine) credit(ctx context.Context, q db.Querier, actorID, kind string, amount int64, ref ledgerRef) error {
	if amount <= 0 {
		return nil
	}
	now := e.stamp()
	if err := e.Repo.EnsureWallet(ctx, q, actorID, now); err != nil {
		return err
	}
	if err := e.Repo.AddBalance(ctx, q, actorID, amount, now); err != nil {
		return err
	}
	return e.Repo.InsertLedgerEntry(ctx, q, ref.entry(actorID, kind, amount, now))
}

// adjustEscrow moves the difference between old and new pay. A raise is
// debited from the employer, a cut is returned.
func (e Engine) adjustEscrow(ctx context.Context, q db.Querier, employerID string, oldPay, newPay int64, ref ledgerRef) error {
	delta := newPay - oldPay
	switch {
	case delta > 0:
		return e.debit(ctx, q, employerID, domain.LedgerEscrowAdjust, delta, ref)
	case delta < 0:
		return e.credit(ctx, q, employerID, domain.LedgerEscrowAdjust, -delta, ref)
	}
	return nil
}

// Deposit funds a wallet. Only admins (or the local CLI, with no actor) may deposit.
func (e Engine) Deposit(ctx context.Context, targetID string, amount int64, note, actorID string) (domain.Wallet, error) {
	if amount <= 0 {
		return domain.Wallet{}, ValidationError{Field: "amount", Reason: "must be positive"}
	}
	var w domain.Wallet
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if actorID != "" {
			if _, err := e.Auth.RequireAdmin(ctx, tx, actorID, "wallet.deposit"); err != nil {
				return err
			}
		}
		if _, err := e.Repo.GetAccount(ctx, tx, targetID); err != nil {
			return err
		}
		if err := e.credit(ctx, tx, targetID, domain.LedgerDeposit, amount, ledgerRef{Note: note}); err != nil {
			return err
		}
		var err error
		w, err = e.Repo.GetWallet(ctx, tx, targetID)
		if err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "wallet.deposit", 0, "wallet", targetID, orLocal(actorID), events.EventPayload{"amount": amount, "balance": w.Balance})
	})
	return w, err
}

// Wallet returns an actor's wallet; callers may only read their own unless admin.
func (e Engine) Wallet(ctx context.Context, targetID, actorID string) (domain.Wallet, error) {
	if err := e.requireSelfOrAdmin(ctx, e.DB, targetID, actorID, "wallet.read"); err != nil {
		return domain.Wallet{}, err
	}
	w, err := e.Repo.GetWallet(ctx, e.DB, targetID)
	if errors.Is(err, repo.ErrNotFound) {
		if _, err := e.Repo.GetAccount(ctx, e.DB, targetID); err != nil {
			return domain.Wallet{}, err
		}
		return domain.Wallet{ActorID: targetID}, nil
	}
	return w, err
}

func (e Engine) requireSelfOrAdmin(ctx context.Context, q db.Querier, targetID, actorID, perm string) error {
	if actorID == "" || actorID == targetID {
		return nil
	}
	_, err := e.Auth.RequireAdmin(ctx, q, actorID, perm)
	return err
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	Kind       string
	ContractID int64
	Query      string
	From       string
	To         string
	Limit      int
}

// ListTransactions returns an actor's payment records and the summary
// computed over all of them.
func (e Engine) ListTransactions(ctx context.Context, targetID string, f TransactionFilter, actorID string) ([]domain.LedgerEntry, domain.TransactionSummary, error) {
	var summary domain.TransactionSummary
	if f.Kind != "" && !domain.LedgerKinds.Contains(f.Kind) {
		return nil, summary, ValidationError{Field: "kind", Reason: fmt.Sprintf("must be one of %s", strings.Join(domain.LedgerKinds.ToSlice(), ", "))}
	}
	if err := e.requireSelfOrAdmin(ctx, e.DB, targetID, actorID, "transactions.read"); err != nil {
		return nil, summary, err
	}
	to := f.To
	if len(to) == len(dateLayout) {
		// a bare day covers the whole day
		to += "T23:59:59Z"
	}
	entries, err := e.Repo.ListLedgerEntries(ctx, e.DB, repo.LedgerFilters{
		ActorID: targetID, Kind: f.Kind, ContractID: f.ContractID, Query: f.Query, From: f.From, To: to, Limit: f.Limit,
	})
	if err != nil {
		return nil, summary, err
	}
	sums, err := e.Repo.SumLedgerByKind(ctx, e.DB, targetID)
	if err != nil {
		return nil, summary, err
	}
	summary.TotalDeposited = sums[domain.LedgerDeposit]
	summary.TotalSpent = -(sums[domain.LedgerEscrowHold] + sums[domain.LedgerEscrowAdjust])
	summary.TotalEarned = sums[domain.LedgerRelease]
	summary.TotalRefunded = sums[domain.LedgerRefund]
	if w, err := e.Repo.GetWallet(ctx, e.DB, targetID); err == nil {
		summary.Balance = w.Balance
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, summary, err
	}
	return entries, summary, nil
}

// GetSettlement exposes a settlement to the contract parties.
func (e Engine) GetSettlement(ctx context.Context, id, actorID string) (domain.Settlement, error) {
	st, err := e.Repo.GetSettlement(ctx, e.DB, id)
	if err != nil {
		return st, err
	}
	if actorID == "" {
		return st, nil
	}
	c, err := e.Repo.GetContract(ctx, e.DB, st.ContractID)
	if err != nil {
		return st, err
	}
	if _, err := e.Auth.RequireParty(ctx, e.DB, actorID, c, "settlement.read"); err != nil {
		return domain.Settlement{}, err
	}
	return st, nil
}

func (e Engine) newSettlement(ctx context.Context, q db.Querier, t domain.Task) (domain.Settlement, error) {
	st := domain.Settlement{
		ID:           uuid.NewString(),
		TaskID:       t.ID,
		ContractID:   t.ContractID,
		FreelancerID: t.FreelancerID,
		Amount:       t.TotalPay,
		Status:       domain.SettlementProcessing,
		CreatedAt:    e.stamp(),
	}
	return st, e.Repo.InsertSettlement(ctx, q, st)
}

// SettlePending releases escrow for up to limit processing settlements, each
// in its own transaction. A settlement that cannot be released is marked
// failed and the rest continue.
func (e Engine) SettlePending(ctx context.Context, limit int) (int, error) {
	pending, err := e.Repo.ListSettlementsByStatus(ctx, e.DB, domain.SettlementProcessing, limit)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, st := range pending {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		if err := e.settle(ctx, st); err != nil {
			if ferr := e.failSettlement(ctx, st, err); ferr != nil {
				return settled, ferr
			}
			continue
		}
		settled++
	}
	return settled, nil
}

func (e Engine) settle(ctx context.Context, st domain.Settlement) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		t, err := e.Repo.GetTask(ctx, tx, st.TaskID)
		if err != nil {
			return fmt.Errorf("load task %d: %w", st.TaskID, err)
		}
		if t.Status != domain.TaskApproved {
			return fmt.Errorf("task %d is %s, not approved", t.ID, t.Status)
		}
		ref := ledgerRef{ContractID: st.ContractID, TaskID: st.TaskID, Note: "task " + t.Name}
		if err := e.credit(ctx, tx, st.FreelancerID, domain.LedgerRelease, st.Amount, ref); err != nil {
			return err
		}
		if err := e.Repo.FinishSettlement(ctx, tx, st.ID, domain.SettlementCompleted, "", e.stamp()); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "payment.released", st.ContractID, "settlement", st.ID, "system", events.EventPayload{
			"task_id": st.TaskID, "freelancer_id": st.FreelancerID, "amount": st.Amount,
		})
	})
}

func (e Engine) failSettlement(ctx context.Context, st domain.Settlement, cause error) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.FinishSettlement(ctx, tx, st.ID, domain.SettlementFailed, cause.Error(), e.stamp()); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "payment.failed", st.ContractID, "settlement", st.ID, "system", events.EventPayload{
			"task_id": st.TaskID, "error": cause.Error(),
		})
	})
}

func orLocal(actorID string) string {
	if actorID == "" {
		return "local"
	}
	return actorID
}
