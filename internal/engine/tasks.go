package engine

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"

	"gigline/internal/attach"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine/auth"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// TaskFields are the employer-editable parts of a task.
type TaskFields struct {
	Name                  string
	Instruction           string
	SubmissionRequirement string
	Hours                 float64
	DueDate               string
}

type TaskCreateOptions struct {
	ContractID int64
	TaskFields
	ActorID string
}

type SubmitOptions struct {
	TaskID  int64
	Note    string
	Files   []attach.File
	ActorID string
}

type UpdateSubmissionOptions struct {
	TaskID      int64
	Note        string
	KeepFileIDs []string
	Files       []attach.File
	ActorID     string
}

// validateTaskFields normalizes the fields and checks everything that needs no stored state.
func (e Engine) validateTaskFields(f TaskFields) (TaskFields, error) {
	var err error
	if f.Name, err = requireText("name", f.Name); err != nil {
		return f, err
	}
	if f.Instruction, err = requireText("instruction", f.Instruction); err != nil {
		return f, err
	}
	if f.SubmissionRequirement, err = requireText("submission_requirement", f.SubmissionRequirement); err != nil {
		return f, err
	}
	switch {
	case math.IsNaN(f.Hours) || math.IsInf(f.Hours, 0):
		return f, ValidationError{Field: "hours", Reason: "must be a finite number"}
	case f.Hours < 1:
		return f, ValidationError{Field: "hours", Reason: "must be at least 1"}
	case f.Hours > MaxTaskHours:
		return f, ValidationError{Field: "hours", Reason: fmt.Sprintf("must be at most %d", MaxTaskHours)}
	}
	due, err := parseDay("due_date", f.DueDate)
	if err != nil {
		return f, err
	}
	if due.Before(utcDay(e.now())) {
		return f, ValidationError{Field: "due_date", Reason: "must not be in the past"}
	}
	f.DueDate = due.Format(dateLayout)
	return f, nil
}

// ensureTaskTransition returns the status an action leads to from the current one.
func ensureTaskTransition(status, action string) (string, error) {
	next, ok := domain.TaskTransitions[status][action]
	if !ok {
		return "", TransitionError{Entity: "task", From: status, Action: action}
	}
	return next, nil
}

// ensureTaskMutable rejects every task change on a closed contract.
func (e Engine) ensureTaskMutable(ctx context.Context, q db.Querier, c domain.Contract) (domain.ContractGate, error) {
	g, err := e.gate(ctx, q, c)
	if err != nil {
		return g, err
	}
	if g.IsCompletedOrCancelled {
		return g, ContractGateError{ContractID: c.ID, Reason: "contract is " + c.Status}
	}
	return g, nil
}

// loadForAction loads a task and its contract, checks the caller's side and
// the transition, and returns the resulting status.
func (e Engine) loadForAction(ctx context.Context, q db.Querier, taskID int64, action, actorID string, party auth.Party) (domain.Task, domain.Contract, string, error) {
	t, err := e.Repo.GetTask(ctx, q, taskID)
	if err != nil {
		return t, domain.Contract{}, "", err
	}
	c, err := e.Repo.GetContract(ctx, q, t.ContractID)
	if err != nil {
		return t, c, "", err
	}
	if actorID != "" {
		perm := "task." + action
		switch party {
		case auth.PartyFreelancer:
			err = e.Auth.RequireFreelancerOf(ctx, q, actorID, c, perm)
		default:
			err = e.Auth.RequireEmployerOf(ctx, q, actorID, c, perm)
		}
		if err != nil {
			return t, c, "", err
		}
	}
	if _, err := e.ensureTaskMutable(ctx, q, c); err != nil {
		return t, c, "", err
	}
	next, err := ensureTaskTransition(t.Status, action)
	return t, c, next, err
}

func taskOwnerID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (e Engine) storeFiles(ctx context.Context, q db.Querier, ownerKind, ownerID string, files []attach.File) ([]domain.Attachment, error) {
	now := e.stamp()
	out := make([]domain.Attachment, 0, len(files))
	for _, f := range files {
		a := domain.Attachment{
			ID:          uuid.NewString(),
			OwnerKind:   ownerKind,
			OwnerID:     ownerID,
			Name:        f.Name,
			ContentType: f.ContentType,
			Size:        int64(len(f.Data)),
			CreatedAt:   now,
			Data:        f.Data,
		}
		if err := e.Repo.InsertAttachment(ctx, q, a); err != nil {
			return nil, err
		}
		a.Data = nil
		out = append(out, a)
	}
	return out, nil
}

func (e Engine) withFiles(ctx context.Context, q db.Querier, t domain.Task) (domain.Task, error) {
	files, err := e.Repo.ListAttachments(ctx, q, domain.OwnerTask, taskOwnerID(t.ID))
	if err != nil {
		return t, err
	}
	t.Files = files
	return t, nil
}

func taskEventPayload(t domain.Task) events.EventPayload {
	return events.EventPayload{"status": t.Status, "total_pay": t.TotalPay, "hours": t.Hours}
}

// CreateTask adds a pending task and moves its pay from the employer's wallet into escrow.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	fields, err := e.validateTaskFields(opts.TaskFields)
	if err != nil {
		return domain.Task{}, err
	}
	var t domain.Task
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		c, err := e.Repo.GetContract(ctx, tx, opts.ContractID)
		if err != nil {
			return err
		}
		if opts.ActorID != "" {
			if err := e.Auth.RequireEmployerOf(ctx, tx, opts.ActorID, c, "task.create"); err != nil {
				return err
			}
		}
		g, err := e.ensureTaskMutable(ctx, tx, c)
		if err != nil {
			return err
		}
		if g.IsEnded {
			return ContractGateError{ContractID: c.ID, Reason: "contract has ended"}
		}
		if g.IsCancelled {
			return ContractGateError{ContractID: c.ID, Reason: "cancellation pending"}
		}
		pay, err := computePay(fields.Hours, c.HourlyRate)
		if err != nil {
			return err
		}
		now := e.stamp()
		t = domain.Task{
			ContractID:            c.ID,
			EmployerID:            c.EmployerID,
			FreelancerID:          c.FreelancerID,
			JobID:                 c.JobID,
			Name:                  fields.Name,
			Instruction:           fields.Instruction,
			SubmissionRequirement: fields.SubmissionRequirement,
			Status:                domain.TaskPending,
			Hours:                 fields.Hours,
			TotalPay:              pay,
			CreatedAt:             now,
			UpdatedAt:             now,
			DueDate:               fields.DueDate,
		}
		id, err := e.Repo.InsertTask(ctx, tx, t)
		if err != nil {
			return err
		}
		t.ID = id
		if err := e.debit(ctx, tx, c.EmployerID, domain.LedgerEscrowHold, t.TotalPay, ledgerRef{ContractID: c.ID, TaskID: t.ID, Note: "task " + t.Name}); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "task.created", c.ID, "task", taskOwnerID(t.ID), orLocal(opts.ActorID), taskEventPayload(t))
	})
	return t, err
}

// EditTask changes a pending or submitted task and settles the escrow difference.
func (e Engine) EditTask(ctx context.Context, taskID int64, f TaskFields, actorID string) (domain.Task, error) {
	fields, err := e.validateTaskFields(f)
	if err != nil {
		return domain.Task{}, err
	}
	var t domain.Task
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		var (
			c    domain.Contract
			next string
			err  error
		)
		t, c, next, err = e.loadForAction(ctx, tx, taskID, domain.ActionEdit, actorID, auth.PartyEmployer)
		if err != nil {
			return err
		}
		pay, err := computePay(fields.Hours, c.HourlyRate)
		if err != nil {
			return err
		}
		oldPay := t.TotalPay
		t.Name = fields.Name
		t.Instruction = fields.Instruction
		t.SubmissionRequirement = fields.SubmissionRequirement
		t.Hours = fields.Hours
		t.DueDate = fields.DueDate
		t.TotalPay = pay
		t.Status = next
		t.UpdatedAt = e.stamp()
		ref := ledgerRef{ContractID: c.ID, TaskID: t.ID, Note: "task " + t.Name}
		if err := e.adjustEscrow(ctx, tx, c.EmployerID, oldPay, t.TotalPay, ref); err != nil {
			return err
		}
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}
		payload := taskEventPayload(t)
		payload["previous_pay"] = oldPay
		if err := e.eventWriter().Append(ctx, tx, "task.edited", c.ID, "task", taskOwnerID(t.ID), orLocal(actorID), payload); err != nil {
			return err
		}
		t, err = e.withFiles(ctx, tx, t)
		return err
	})
	return t, err
}

// SubmitTask hands in the freelancer's work: a note plus at least one file.
func (e Engine) SubmitTask(ctx context.Context, opts SubmitOptions) (domain.Task, error) {
	note, err := requireText("note", opts.Note)
	if err != nil {
		return domain.Task{}, err
	}
	if len(opts.Files) == 0 {
		return domain.Task{}, ValidationError{Field: "files", Reason: "at least one file is required"}
	}
	files, err := attach.Prepare(attach.KindTaskFile, opts.Files, e.config().Limits)
	if err != nil {
		return domain.Task{}, uploadError("files", err)
	}
	var t domain.Task
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		var next string
		var err error
		t, _, next, err = e.loadForAction(ctx, tx, opts.TaskID, domain.ActionSubmit, opts.ActorID, auth.PartyFreelancer)
		if err != nil {
			return err
		}
		now := e.stamp()
		t.Status = next
		t.SubmissionNote = &note
		t.SubmissionDate = &now
		t.UpdatedAt = now
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}
		if _, err := e.storeFiles(ctx, tx, domain.OwnerTask, taskOwnerID(t.ID), files); err != nil {
			return err
		}
		payload := taskEventPayload(t)
		payload["files"] = len(files)
		if err := e.eventWriter().Append(ctx, tx, "task.submitted", t.ContractID, "task", taskOwnerID(t.ID), orLocal(opts.ActorID), payload); err != nil {
			return err
		}
		t, err = e.withFiles(ctx, tx, t)
		return err
	})
	return t, err
}

// UpdateSubmission replaces a submitted task's files with the kept ones plus
// the new uploads, and replaces its note.
func (e Engine) UpdateSubmission(ctx context.Context, opts UpdateSubmissionOptions) (domain.Task, error) {
	note, err := requireText("note", opts.Note)
	if err != nil {
		return domain.Task{}, err
	}
	if len(opts.Files) == 0 && len(opts.KeepFileIDs) == 0 {
		return domain.Task{}, ValidationError{Field: "files", Reason: "at least one file is required"}
	}
	files, err := attach.Prepare(attach.KindTaskFile, opts.Files, e.config().Limits)
	if err != nil {
		return domain.Task{}, uploadError("files", err)
	}
	var t domain.Task
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		var next string
		var err error
		t, _, next, err = e.loadForAction(ctx, tx, opts.TaskID, domain.ActionUpdateSubmission, opts.ActorID, auth.PartyFreelancer)
		if err != nil {
			return err
		}
		existing, err := e.Repo.ListAttachments(ctx, tx, domain.OwnerTask, taskOwnerID(t.ID))
		if err != nil {
			return err
		}
		owned := make(map[string]bool, len(existing))
		for _, a := range existing {
			owned[a.ID] = true
		}
		keep := make(map[string]bool, len(opts.KeepFileIDs))
		for _, id := range opts.KeepFileIDs {
			if !owned[id] {
				return ValidationError{Field: "keep_file_ids", Reason: fmt.Sprintf("file %s does not belong to task %d", id, t.ID)}
			}
			keep[id] = true
		}
		kept := len(keep)
		if kept+len(files) == 0 {
			return ValidationError{Field: "files", Reason: "at least one file is required"}
		}
		for _, a := range existing {
			if !keep[a.ID] {
				if err := e.Repo.DeleteAttachment(ctx, tx, a.ID); err != nil {
					return err
				}
			}
		}
		if _, err := e.storeFiles(ctx, tx, domain.OwnerTask, taskOwnerID(t.ID), files); err != nil {
			return err
		}
		now := e.stamp()
		t.Status = next
		t.SubmissionNote = &note
		t.SubmissionDate = &now
		t.UpdatedAt = now
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}
		payload := taskEventPayload(t)
		payload["kept_files"] = kept
		payload["new_files"] = len(files)
		if err := e.eventWriter().Append(ctx, tx, "task.submission_updated", t.ContractID, "task", taskOwnerID(t.ID), orLocal(opts.ActorID), payload); err != nil {
			return err
		}
		t, err = e.withFiles(ctx, tx, t)
		return err
	})
	return t, err
}

// ApproveTask accepts submitted work. The returned settlement is processing;
// the settlement worker releases the escrow to the freelancer.
func (e Engine) ApproveTask(ctx context.Context, taskID int64, actorID string) (domain.Task, domain.Settlement, error) {
	var (
		t  domain.Task
		st domain.Settlement
	)
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var next string
		var err error
		t, _, next, err = e.loadForAction(ctx, tx, taskID, domain.ActionApprove, actorID, auth.PartyEmployer)
		if err != nil {
			return err
		}
		t.Status = next
		t.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}
		st, err = e.newSettlement(ctx, tx, t)
		if err != nil {
			return err
		}
		payload := taskEventPayload(t)
		payload["settlement_id"] = st.ID
		return e.eventWriter().Append(ctx, tx, "task.approved", t.ContractID, "task", taskOwnerID(t.ID), orLocal(actorID), payload)
	})
	return t, st, err
}

// RejectTask refuses submitted work and refunds the escrow to the employer.
func (e Engine) RejectTask(ctx context.Context, taskID int64, reason, actorID string) (domain.Task, error) {
	reason, err := requireText("reason", reason)
	if err != nil {
		return domain.Task{}, err
	}
	var t domain.Task
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		var next string
		var err error
		t, _, next, err = e.loadForAction(ctx, tx, taskID, domain.ActionReject, actorID, auth.PartyEmployer)
		if err != nil {
			return err
		}
		t.Status = next
		t.RejectReason = &reason
		t.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}
		ref := ledgerRef{ContractID: t.ContractID, TaskID: t.ID, Note: "rejected: " + reason}
		if err := e.credit(ctx, tx, t.EmployerID, domain.LedgerRefund, t.TotalPay, ref); err != nil {
			return err
		}
		payload := taskEventPayload(t)
		payload["reason"] = reason
		if err := e.eventWriter().Append(ctx, tx, "task.rejected", t.ContractID, "task", taskOwnerID(t.ID), orLocal(actorID), payload); err != nil {
			return err
		}
		t, err = e.withFiles(ctx, tx, t)
		return err
	})
	return t, err
}

// DeleteTask removes a pending task and returns the refunded amount.
func (e Engine) DeleteTask(ctx context.Context, taskID int64, actorID string) (int64, error) {
	var refunded int64
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		t, _, _, err := e.loadForAction(ctx, tx, taskID, domain.ActionDelete, actorID, auth.PartyEmployer)
		if err != nil {
			return err
		}
		if err := e.removeTask(ctx, tx, t, "task deleted"); err != nil {
			return err
		}
		refunded = t.TotalPay
		return e.eventWriter().Append(ctx, tx, "task.deleted", t.ContractID, "task", taskOwnerID(t.ID), orLocal(actorID), events.EventPayload{"refunded": refunded})
	})
	return refunded, err
}

// removeTask refunds a task's escrow and deletes it with its files.
func (e Engine) removeTask(ctx context.Context, q db.Querier, t domain.Task, note string) error {
	if err := e.credit(ctx, q, t.EmployerID, domain.LedgerRefund, t.TotalPay, ledgerRef{ContractID: t.ContractID, TaskID: t.ID, Note: note}); err != nil {
		return err
	}
	if err := e.Repo.DeleteAttachmentsOf(ctx, q, domain.OwnerTask, taskOwnerID(t.ID)); err != nil {
		return err
	}
	return e.Repo.DeleteTask(ctx, q, t.ID)
}

// GetTask returns a task with its file metadata to a contract party.
func (e Engine) GetTask(ctx context.Context, taskID int64, actorID string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, e.DB, taskID)
	if err != nil {
		return t, err
	}
	c, err := e.Repo.GetContract(ctx, e.DB, t.ContractID)
	if err != nil {
		return t, err
	}
	if err := e.requireParty(ctx, e.DB, actorID, c, "task.read"); err != nil {
		return domain.Task{}, err
	}
	return e.withFiles(ctx, e.DB, t)
}

// ListTaskFileData returns a contract's tasks with their file metadata. The
// employer and freelancer IDs must match the contract when given.
func (e Engine) ListTaskFileData(ctx context.Context, employerID, freelancerID string, contractID int64, actorID string) ([]domain.Task, error) {
	c, err := e.GetContract(ctx, contractID, actorID)
	if err != nil {
		return nil, err
	}
	if (employerID != "" && employerID != c.EmployerID) || (freelancerID != "" && freelancerID != c.FreelancerID) {
		return nil, ValidationError{Field: "contract_id", Reason: "does not match the employer and freelancer"}
	}
	tasks, err := e.Repo.ListTasks(ctx, e.DB, repo.TaskFilters{ContractID: c.ID})
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i], err = e.withFiles(ctx, e.DB, tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// TaskFile loads a submission file, bytes included, for a contract party.
func (e Engine) TaskFile(ctx context.Context, fileID, actorID string) (domain.Attachment, error) {
	a, err := e.Repo.GetAttachment(ctx, e.DB, fileID)
	if err != nil {
		return a, err
	}
	if a.OwnerKind != domain.OwnerTask {
		return domain.Attachment{}, repo.ErrNotFound
	}
	taskID, err := strconv.ParseInt(a.OwnerID, 10, 64)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("attachment %s has bad owner %q", a.ID, a.OwnerID)
	}
	if _, err := e.GetTask(ctx, taskID, actorID); err != nil {
		return domain.Attachment{}, err
	}
	return a, nil
}
