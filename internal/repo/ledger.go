package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"gigline/internal/db"
	"gigline/internal/domain"
)

// Wallets

func (r Repo) EnsureWallet(ctx context.Context, q db.Querier, actorID, now string) error {
	_, err := q.ExecContext(ctx, `INSERT INTO wallets(actor_id,balance,updated_at) VALUES (?,0,?) ON CONFLICT(actor_id) DO NOTHING`, actorID, now)
	return errors.Wrapf(err, "ensure wallet %s", actorID)
}

func (r Repo) GetWallet(ctx context.Context, q db.Querier, actorID string) (domain.Wallet, error) {
	var w domain.Wallet
	err := q.QueryRowContext(ctx, `SELECT actor_id,balance,updated_at FROM wallets WHERE actor_id=?`, actorID).
		Scan(&w.ActorID, &w.Balance, &w.UpdatedAt)
	return w, notFound(err)
}

// AddBalance applies a signed delta. The CHECK constraint rejects overdrafts;
// callers check the balance first to report a typed error.
func (r Repo) AddBalance(ctx context.Context, q db.Querier, actorID string, delta int64, now string) error {
	err := expectOne(q.ExecContext(ctx, `UPDATE wallets SET balance=balance+?, updated_at=? WHERE actor_id=?`, delta, now, actorID))
	return errors.Wrapf(err, "update wallet %s", actorID)
}

// Ledger

func (r Repo) InsertLedgerEntry(ctx context.Context, q db.Querier, le domain.LedgerEntry) error {
	_, err := q.ExecContext(ctx, `INSERT INTO ledger_entries(actor_id,contract_id,task_id,kind,amount,note,created_at) VALUES (?,?,?,?,?,?,?)`,
		le.ActorID, nullableInt64Ptr(le.ContractID), nullableInt64Ptr(le.TaskID), le.Kind, le.Amount, nullable(le.Note), le.CreatedAt)
	return errors.Wrap(err, "insert ledger entry")
}

type LedgerFilters struct {
	ActorID    string
	Kind       string
	ContractID int64
	Query      string
	From       string
	To         string
	Limit      int
}

func (r Repo) ListLedgerEntries(ctx context.Context, q db.Querier, f LedgerFilters) ([]domain.LedgerEntry, error) {
	clauses := []string{"actor_id=?"}
	args := []any{f.ActorID}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if f.ContractID != 0 {
		clauses = append(clauses, "contract_id=?")
		args = append(args, f.ContractID)
	}
	if f.Query != "" {
		clauses = append(clauses, "(note LIKE ? OR kind LIKE ?)")
		args = append(args, likePattern(f.Query), likePattern(f.Query))
	}
	if f.From != "" {
		clauses = append(clauses, "created_at>=?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "created_at<=?")
		args = append(args, f.To)
	}
	query := `SELECT id,actor_id,contract_id,task_id,kind,amount,note,created_at FROM ledger_entries WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list ledger")
	}
	defer rows.Close()
	var res []domain.LedgerEntry
	for rows.Next() {
		var le domain.LedgerEntry
		var contractID, taskID sql.NullInt64
		var note sql.NullString
		if err := rows.Scan(&le.ID, &le.ActorID, &contractID, &taskID, &le.Kind, &le.Amount, &note, &le.CreatedAt); err != nil {
			return nil, err
		}
		le.ContractID = int64Ptr(contractID)
		le.TaskID = int64Ptr(taskID)
		le.Note = note.String
		res = append(res, le)
	}
	return res, rows.Err()
}

// SumLedgerByKind totals an actor's ledger amounts per kind.
func (r Repo) SumLedgerByKind(ctx context.Context, q db.Querier, actorID string) (map[string]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT kind, COALESCE(SUM(amount),0) FROM ledger_entries WHERE actor_id=? GROUP BY kind`, actorID)
	if err != nil {
		return nil, errors.Wrap(err, "sum ledger")
	}
	defer rows.Close()
	res := map[string]int64{}
	for rows.Next() {
		var kind string
		var total int64
		if err := rows.Scan(&kind, &total); err != nil {
			return nil, err
		}
		res[kind] = total
	}
	return res, rows.Err()
}

// Settlements

const settlementColumns = `id,task_id,contract_id,freelancer_id,amount,status,error,created_at,settled_at`

func scanSettlement(s scanner) (domain.Settlement, error) {
	var st domain.Settlement
	var errText, settledAt sql.NullString
	if err := s.Scan(&st.ID, &st.TaskID, &st.ContractID, &st.FreelancerID, &st.Amount, &st.Status, &errText, &st.CreatedAt, &settledAt); err != nil {
		return st, notFound(err)
	}
	st.Error = errText.String
	st.SettledAt = stringPtr(settledAt)
	return st, nil
}

func (r Repo) InsertSettlement(ctx context.Context, q db.Querier, st domain.Settlement) error {
	_, err := q.ExecContext(ctx, `INSERT INTO settlements(`+settlementColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		st.ID, st.TaskID, st.ContractID, st.FreelancerID, st.Amount, st.Status, nullable(st.Error), st.CreatedAt, nullableStringPtr(st.SettledAt))
	return errors.Wrapf(err, "insert settlement %s", st.ID)
}

func (r Repo) GetSettlement(ctx context.Context, q db.Querier, id string) (domain.Settlement, error) {
	return scanSettlement(q.QueryRowContext(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE id=?`, id))
}

func (r Repo) ListSettlementsByStatus(ctx context.Context, q db.Querier, status string, limit int) ([]domain.Settlement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.QueryContext(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE status=? ORDER BY created_at, id LIMIT ?`, status, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list settlements")
	}
	defer rows.Close()
	var res []domain.Settlement
	for rows.Next() {
		st, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

// FinishSettlement moves a processing settlement to its final status.
func (r Repo) FinishSettlement(ctx context.Context, q db.Querier, id, status, errText, settledAt string) error {
	err := expectOne(q.ExecContext(ctx, `UPDATE settlements SET status=?, error=?, settled_at=? WHERE id=? AND status=?`,
		status, nullable(errText), settledAt, id, domain.SettlementProcessing))
	return errors.Wrapf(err, "finish settlement %s", id)
}
