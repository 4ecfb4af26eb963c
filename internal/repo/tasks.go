package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"gigline/internal/db"
	"gigline/internal/domain"
)

const taskColumns = `id,contract_id,employer_id,freelancer_id,job_id,name,instruction,submission_requirement,status,
submission_note,reject_reason,hours,total_pay,created_at,updated_at,due_date,submission_date`

func scanTask(s scanner) (domain.Task, error) {
	var t domain.Task
	var note, reason, submitted sql.NullString
	err := s.Scan(&t.ID, &t.ContractID, &t.EmployerID, &t.FreelancerID, &t.JobID, &t.Name, &t.Instruction, &t.SubmissionRequirement,
		&t.Status, &note, &reason, &t.Hours, &t.TotalPay, &t.CreatedAt, &t.UpdatedAt, &t.DueDate, &submitted)
	if err != nil {
		return t, notFound(err)
	}
	t.SubmissionNote = stringPtr(note)
	t.RejectReason = stringPtr(reason)
	t.SubmissionDate = stringPtr(submitted)
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, q db.Querier, t domain.Task) (int64, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO tasks(contract_id,employer_id,freelancer_id,job_id,name,instruction,submission_requirement,status,
submission_note,reject_reason,hours,total_pay,created_at,updated_at,due_date,submission_date) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ContractID, t.EmployerID, t.FreelancerID, t.JobID, t.Name, t.Instruction, t.SubmissionRequirement, t.Status,
		nullableStringPtr(t.SubmissionNote), nullableStringPtr(t.RejectReason), t.Hours, t.TotalPay, t.CreatedAt, t.UpdatedAt,
		t.DueDate, nullableStringPtr(t.SubmissionDate))
	if err != nil {
		return 0, errors.Wrap(err, "insert task")
	}
	return res.LastInsertId()
}

func (r Repo) UpdateTask(ctx context.Context, q db.Querier, t domain.Task) error {
	err := expectOne(q.ExecContext(ctx, `UPDATE tasks SET name=?, instruction=?, submission_requirement=?, status=?, submission_note=?,
reject_reason=?, hours=?, total_pay=?, updated_at=?, due_date=?, submission_date=? WHERE id=?`,
		t.Name, t.Instruction, t.SubmissionRequirement, t.Status, nullableStringPtr(t.SubmissionNote), nullableStringPtr(t.RejectReason),
		t.Hours, t.TotalPay, t.UpdatedAt, t.DueDate, nullableStringPtr(t.SubmissionDate), t.ID))
	return errors.Wrapf(err, "update task %d", t.ID)
}

func (r Repo) DeleteTask(ctx context.Context, q db.Querier, id int64) error {
	return errors.Wrapf(expectOne(q.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)), "delete task %d", id)
}

func (r Repo) GetTask(ctx context.Context, q db.Querier, id int64) (domain.Task, error) {
	return scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

type TaskFilters struct {
	ContractID   int64
	EmployerID   string
	FreelancerID string
	Statuses     []string
}

func (r Repo) ListTasks(ctx context.Context, q db.Querier, f TaskFilters) ([]domain.Task, error) {
	var (
		clauses []string
		args    []any
	)
	if f.ContractID != 0 {
		clauses = append(clauses, "contract_id=?")
		args = append(args, f.ContractID)
	}
	if f.EmployerID != "" {
		clauses = append(clauses, "employer_id=?")
		args = append(args, f.EmployerID)
	}
	if f.FreelancerID != "" {
		clauses = append(clauses, "freelancer_id=?")
		args = append(args, f.FreelancerID)
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN (?"+strings.Repeat(",?", len(f.Statuses)-1)+")")
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CountTasksByStatus counts a contract's tasks per status.
func (r Repo) CountTasksByStatus(ctx context.Context, q db.Querier, contractID int64) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE contract_id=? GROUP BY status`, contractID)
	if err != nil {
		return nil, errors.Wrap(err, "count tasks")
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}
