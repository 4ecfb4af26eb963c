package repo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"gigline/internal/db"
	"gigline/internal/domain"
)

const contractColumns = `id,job_id,employer_id,freelancer_id,hourly_rate,start_date,end_date,status,rating,feedback,created_at,completed_at`

func scanContract(s scanner) (domain.Contract, error) {
	var c domain.Contract
	var rating sql.NullInt64
	var feedback, completedAt sql.NullString
	if err := s.Scan(&c.ID, &c.JobID, &c.EmployerID, &c.FreelancerID, &c.HourlyRate, &c.StartDate, &c.EndDate,
		&c.Status, &rating, &feedback, &c.CreatedAt, &completedAt); err != nil {
		return c, notFound(err)
	}
	if rating.Valid {
		v := int(rating.Int64)
		c.Rating = &v
	}
	c.Feedback = stringPtr(feedback)
	c.CompletedAt = stringPtr(completedAt)
	return c, nil
}

func (r Repo) InsertContract(ctx context.Context, q db.Querier, c domain.Contract) (int64, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO contracts(job_id,employer_id,freelancer_id,hourly_rate,start_date,end_date,status,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		c.JobID, c.EmployerID, c.FreelancerID, c.HourlyRate, c.StartDate, c.EndDate, c.Status, c.CreatedAt)
	if err != nil {
		return 0, errors.Wrap(err, "insert contract")
	}
	return res.LastInsertId()
}

func (r Repo) GetContract(ctx context.Context, q db.Querier, id int64) (domain.Contract, error) {
	return scanContract(q.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id=?`, id))
}

type ContractFilters struct {
	EmployerID   string
	FreelancerID string
	Status       string
}

func (r Repo) ListContracts(ctx context.Context, q db.Querier, f ContractFilters) ([]domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE 1=1`
	var args []any
	if f.EmployerID != "" {
		query += ` AND employer_id=?`
		args = append(args, f.EmployerID)
	}
	if f.FreelancerID != "" {
		query += ` AND freelancer_id=?`
		args = append(args, f.FreelancerID)
	}
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY id DESC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list contracts")
	}
	defer rows.Close()
	var res []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateContractStatus(ctx context.Context, q db.Querier, c domain.Contract) error {
	err := expectOne(q.ExecContext(ctx, `UPDATE contracts SET status=?, rating=?, feedback=?, completed_at=? WHERE id=?`,
		c.Status, nullableIntPtr(c.Rating), nullableStringPtr(c.Feedback), nullableStringPtr(c.CompletedAt), c.ID))
	return errors.Wrapf(err, "update contract %d", c.ID)
}

func (r Repo) InsertCancellation(ctx context.Context, q db.Querier, cc domain.ContractCancellation) (int64, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO contract_cancellations(contract_id,requested_by,reason,status,created_at) VALUES (?,?,?,?,?)`,
		cc.ContractID, cc.RequestedBy, cc.Reason, cc.Status, cc.CreatedAt)
	if err != nil {
		return 0, errors.Wrap(err, "insert cancellation")
	}
	return res.LastInsertId()
}

// LatestCancellation returns the newest cancellation request of a contract.
func (r Repo) LatestCancellation(ctx context.Context, q db.Querier, contractID int64) (domain.ContractCancellation, error) {
	var cc domain.ContractCancellation
	var resolvedAt, resolvedBy sql.NullString
	err := q.QueryRowContext(ctx, `SELECT id,contract_id,requested_by,reason,status,created_at,resolved_at,resolved_by
FROM contract_cancellations WHERE contract_id=? ORDER BY id DESC LIMIT 1`, contractID).
		Scan(&cc.ID, &cc.ContractID, &cc.RequestedBy, &cc.Reason, &cc.Status, &cc.CreatedAt, &resolvedAt, &resolvedBy)
	if err != nil {
		return cc, notFound(err)
	}
	cc.ResolvedAt = stringPtr(resolvedAt)
	cc.ResolvedBy = stringPtr(resolvedBy)
	return cc, nil
}

func (r Repo) ResolveCancellation(ctx context.Context, q db.Querier, id int64, status, resolvedBy, resolvedAt string) error {
	err := expectOne(q.ExecContext(ctx, `UPDATE contract_cancellations SET status=?, resolved_by=?, resolved_at=? WHERE id=?`,
		status, resolvedBy, resolvedAt, id))
	return errors.Wrapf(err, "resolve cancellation %d", id)
}
