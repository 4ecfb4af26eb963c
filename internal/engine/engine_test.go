package engine_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigline/internal/attach"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/engine/auth"
	"gigline/internal/migrate"
	"gigline/internal/repo"
)

type testEnv struct {
	Engine   engine.Engine
	Ctx      context.Context
	Contract domain.Contract
	clock    *time.Time
}

func (env testEnv) advance(d time.Duration) {
	*env.clock = env.clock.Add(d)
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	eng := engine.New(conn, config.Default())
	clock := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return clock }
	ctx := context.Background()

	for _, a := range []engine.AccountCreateOptions{
		{ID: "admin", Role: domain.RoleAdmin},
		{ID: "emp", Role: domain.RoleEmployer, DisplayName: "Acme"},
		{ID: "free", Role: domain.RoleFreelancer},
		{ID: "other", Role: domain.RoleFreelancer},
	} {
		_, err := eng.CreateAccount(ctx, a)
		require.NoError(t, err)
	}
	_, err = eng.Deposit(ctx, "emp", 1000, "seed", "admin")
	require.NoError(t, err)
	c, err := eng.CreateContract(ctx, engine.ContractCreateOptions{
		JobID: 7, EmployerID: "emp", FreelancerID: "free", HourlyRate: 20,
		StartDate: "2024-01-01", EndDate: "2024-01-31", ActorID: "emp",
	})
	require.NoError(t, err)
	return testEnv{Engine: eng, Ctx: ctx, Contract: c, clock: &clock}
}

func (env testEnv) createTask(t *testing.T, hours float64) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ContractID: env.Contract.ID,
		TaskFields: engine.TaskFields{
			Name: "Landing page", Instruction: "Build it", SubmissionRequirement: "Zip of sources",
			Hours: hours, DueDate: "2024-01-20",
		},
		ActorID: "emp",
	})
	require.NoError(t, err)
	return task
}

func (env testEnv) submit(t *testing.T, taskID int64) domain.Task {
	t.Helper()
	task, err := env.Engine.SubmitTask(env.Ctx, engine.SubmitOptions{
		TaskID:  taskID,
		Note:    "done",
		Files:   []attach.File{{Name: "work.txt", ContentType: "text/plain", Data: []byte("result")}},
		ActorID: "free",
	})
	require.NoError(t, err)
	return task
}

func (env testEnv) balance(t *testing.T, actorID string) int64 {
	t.Helper()
	w, err := env.Engine.Wallet(env.Ctx, actorID, "")
	require.NoError(t, err)
	return w.Balance
}

func TestTaskPayFollowsHours(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 5)
	assert.Equal(t, int64(100), task.TotalPay)
	assert.Equal(t, domain.TaskPending, task.Status)
	assert.Equal(t, int64(900), env.balance(t, "emp"))

	task, err := env.Engine.EditTask(env.Ctx, task.ID, engine.TaskFields{
		Name: "Landing page", Instruction: "Build it", SubmissionRequirement: "Zip of sources",
		Hours: 8, DueDate: "2024-01-22",
	}, "emp")
	require.NoError(t, err)
	assert.Equal(t, int64(160), task.TotalPay)
	assert.Equal(t, "2024-01-22", task.DueDate)
	assert.Equal(t, int64(840), env.balance(t, "emp"))

	task, err = env.Engine.EditTask(env.Ctx, task.ID, engine.TaskFields{
		Name: "Landing page", Instruction: "Build it", SubmissionRequirement: "Zip of sources",
		Hours: 2.5, DueDate: "2024-01-22",
	}, "emp")
	require.NoError(t, err)
	assert.Equal(t, int64(50), task.TotalPay)
	assert.Equal(t, int64(950), env.balance(t, "emp"))
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	base := engine.TaskFields{Name: "n", Instruction: "i", SubmissionRequirement: "s", Hours: 1, DueDate: "2024-01-10"}
	cases := map[string]func(f *engine.TaskFields){
		"hours":                  func(f *engine.TaskFields) { f.Hours = 0.5 },
		"due_date":               func(f *engine.TaskFields) { f.DueDate = "2024-01-09" },
		"name":                   func(f *engine.TaskFields) { f.Name = "   " },
		"instruction":            func(f *engine.TaskFields) { f.Instruction = "" },
		"submission_requirement": func(f *engine.TaskFields) { f.SubmissionRequirement = "" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			f := base
			mutate(&f)
			_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ContractID: env.Contract.ID, TaskFields: f, ActorID: "emp"})
			var verr engine.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, field, verr.Field)
		})
	}
	// due today is allowed
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ContractID: env.Contract.ID, TaskFields: base, ActorID: "emp"})
	require.NoError(t, err)
}

func TestInsufficientCreditsLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ContractID: env.Contract.ID,
		TaskFields: engine.TaskFields{Name: "big", Instruction: "i", SubmissionRequirement: "s", Hours: 100, DueDate: "2024-01-20"},
		ActorID:    "emp",
	})
	var credits engine.InsufficientCreditsError
	require.True(t, errors.As(err, &credits), "got %v", err)
	assert.Equal(t, int64(2000), credits.Required)
	assert.Equal(t, int64(1000), credits.Available)

	tasks, err := env.Engine.ListTaskFileData(env.Ctx, "emp", "free", env.Contract.ID, "emp")
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, int64(1000), env.balance(t, "emp"))

	task := env.createTask(t, 40)
	_, err = env.Engine.EditTask(env.Ctx, task.ID, engine.TaskFields{
		Name: "n", Instruction: "i", SubmissionRequirement: "s", Hours: 60, DueDate: "2024-01-20",
	}, "emp")
	require.True(t, errors.As(err, &credits), "got %v", err)
	got, err := env.Engine.GetTask(env.Ctx, task.ID, "emp")
	require.NoError(t, err)
	assert.Equal(t, int64(800), got.TotalPay)
}

func TestEditSubmittedTaskKeepsSubmission(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 5)
	task = env.submit(t, task.ID)
	require.Len(t, task.Files, 1)
	fileID := task.Files[0].ID
	assert.Equal(t, int64(900), env.balance(t, "emp"))

	task, err := env.Engine.EditTask(env.Ctx, task.ID, engine.TaskFields{
		Name: "Landing page v2", Instruction: "Build it", SubmissionRequirement: "Zip of sources",
		Hours: 7, DueDate: "2024-01-25",
	}, "emp")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskSubmitted, task.Status)
	assert.Equal(t, int64(140), task.TotalPay)
	assert.Equal(t, int64(860), env.balance(t, "emp"))

	got, err := env.Engine.GetTask(env.Ctx, task.ID, "free")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskSubmitted, got.Status)
	assert.Equal(t, "Landing page v2", got.Name)
	require.NotNil(t, got.SubmissionNote)
	assert.Equal(t, "done", *got.SubmissionNote)
	require.Len(t, got.Files, 1)
	assert.Equal(t, fileID, got.Files[0].ID)

	file, err := env.Engine.TaskFile(env.Ctx, fileID, "emp")
	require.NoError(t, err)
	assert.Equal(t, []byte("result"), file.Data)

	// the freelancer cannot edit
	_, err = env.Engine.EditTask(env.Ctx, task.ID, engine.TaskFields{
		Name: "x", Instruction: "i", SubmissionRequirement: "s", Hours: 1, DueDate: "2024-01-25",
	}, "free")
	var forbidden auth.ForbiddenError
	assert.True(t, errors.As(err, &forbidden), "got %v", err)
}

func TestHoursOutOfRangeRejected(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 5)
	for name, hours := range map[string]float64{
		"huge":     1e300,
		"over max": engine.MaxTaskHours + 1,
		"nan":      math.NaN(),
		"+inf":     math.Inf(1),
		"-inf":     math.Inf(-1),
	} {
		t.Run(name, func(t *testing.T) {
			f := engine.TaskFields{Name: "n", Instruction: "i", SubmissionRequirement: "s", Hours: hours, DueDate: "2024-01-20"}
			_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ContractID: env.Contract.ID, TaskFields: f, ActorID: "emp"})
			var verr engine.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, "hours", verr.Field)

			_, err = env.Engine.EditTask(env.Ctx, task.ID, f, "emp")
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, "hours", verr.Field)
			assert.Equal(t, int64(900), env.balance(t, "emp"))
		})
	}

	got, err := env.Engine.GetTask(env.Ctx, task.ID, "emp")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.TotalPay)
}

func TestPayOverflowRejected(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.Engine.CreateContract(env.Ctx, engine.ContractCreateOptions{
		JobID: 8, EmployerID: "emp", FreelancerID: "other", HourlyRate: math.MaxInt64 / 2,
		StartDate: "2024-01-01", EndDate: "2024-01-31", ActorID: "emp",
	})
	require.NoError(t, err)
	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ContractID: c.ID,
		TaskFields: engine.TaskFields{Name: "n", Instruction: "i", SubmissionRequirement: "s", Hours: 3, DueDate: "2024-01-20"},
		ActorID:    "emp",
	})
	var verr engine.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "hours", verr.Field)
	assert.Equal(t, int64(1000), env.balance(t, "emp"))
}

func TestTaskLifecycleApproveAndSettle(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 5)

	_, err := env.Engine.SubmitTask(env.Ctx, engine.SubmitOptions{TaskID: task.ID, Note: "done", ActorID: "free"})
	var verr engine.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "files", verr.Field)

	_, err = env.Engine.SubmitTask(env.Ctx, engine.SubmitOptions{
		TaskID: task.ID, Note: "done", ActorID: "emp",
		Files: []attach.File{{Name: "a.txt", Data: []byte("x")}},
	})
	var forbidden auth.ForbiddenError
	require.True(t, errors.As(err, &forbidden), "employer must not submit: %v", err)

	task = env.submit(t, task.ID)
	assert.Equal(t, domain.TaskSubmitted, task.Status)
	require.NotNil(t, task.SubmissionDate)
	require.Len(t, task.Files, 1)

	_, err = env.Engine.DeleteTask(env.Ctx, task.ID, "emp")
	var terr engine.TransitionError
	require.True(t, errors.As(err, &terr), "delete after submit: %v", err)

	task, st, err := env.Engine.ApproveTask(env.Ctx, task.ID, "emp")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskApproved, task.Status)
	assert.Equal(t, domain.SettlementProcessing, st.Status)
	assert.Equal(t, int64(100), st.Amount)
	assert.Equal(t, int64(0), env.balance(t, "free"))

	n, err := env.Engine.SettlePending(env.Ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	st, err = env.Engine.GetSettlement(env.Ctx, st.ID, "free")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementCompleted, st.Status)
	assert.Equal(t, int64(100), env.balance(t, "free"))
	assert.Equal(t, int64(900), env.balance(t, "emp"))

	n, err = env.Engine.SettlePending(env.Ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, action := range []func() error{
		func() error { _, err := env.Engine.RejectTask(env.Ctx, task.ID, "late", "emp"); return err },
		func() error { _, _, err := env.Engine.ApproveTask(env.Ctx, task.ID, "emp"); return err },
		func() error {
			_, err := env.Engine.SubmitTask(env.Ctx, engine.SubmitOptions{
				TaskID: task.ID, Note: "again", ActorID: "free",
				Files: []attach.File{{Name: "a.txt", Data: []byte("x")}},
			})
			return err
		},
	} {
		err := action()
		require.True(t, errors.As(err, &terr), "terminal task moved: %v", err)
		assert.Equal(t, domain.TaskApproved, terr.From)
	}
	_, err = env.Engine.EditTask(env.Ctx, task.ID, engine.TaskFields{Name: "n", Instruction: "i", SubmissionRequirement: "s", Hours: 2, DueDate: "2024-01-20"}, "emp")
	require.True(t, errors.As(err, &terr))
}

func TestRejectRequiresReasonAndRefunds(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 5)
	env.submit(t, task.ID)

	_, err := env.Engine.RejectTask(env.Ctx, task.ID, "  ", "emp")
	var verr engine.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "reason", verr.Field)

	// blank reason is refused before the task is even read
	_, err = env.Engine.RejectTask(env.Ctx, 9999, "", "emp")
	require.True(t, errors.As(err, &verr))

	task, err = env.Engine.RejectTask(env.Ctx, task.ID, "missing sources", "emp")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskRejected, task.Status)
	require.NotNil(t, task.RejectReason)
	assert.Equal(t, "missing sources", *task.RejectReason)
	assert.Equal(t, int64(1000), env.balance(t, "emp"))

	_, err = env.Engine.UpdateSubmission(env.Ctx, engine.UpdateSubmissionOptions{
		TaskID: task.ID, Note: "again", Files: []attach.File{{Name: "b.txt", Data: []byte("y")}}, ActorID: "free",
	})
	var terr engine.TransitionError
	require.True(t, errors.As(err, &terr))
}

func TestDeleteOnlyWhilePending(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 3)
	refunded, err := env.Engine.DeleteTask(env.Ctx, task.ID, "emp")
	require.NoError(t, err)
	assert.Equal(t, int64(60), refunded)
	assert.Equal(t, int64(1000), env.balance(t, "emp"))
	_, err = env.Engine.GetTask(env.Ctx, task.ID, "emp")
	assert.True(t, errors.Is(err, repo.ErrNotFound))
}

func TestUpdateSubmissionReplacesFiles(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 2)
	task = env.submit(t, task.ID)
	keep := task.Files[0].ID

	task, err := env.Engine.UpdateSubmission(env.Ctx, engine.UpdateSubmissionOptions{
		TaskID: task.ID, Note: "v2", KeepFileIDs: []string{keep},
		Files:   []attach.File{{Name: "extra.txt", ContentType: "text/plain", Data: []byte("more")}},
		ActorID: "free",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskSubmitted, task.Status)
	require.Len(t, task.Files, 2)
	assert.Equal(t, "v2", *task.SubmissionNote)

	task, err = env.Engine.UpdateSubmission(env.Ctx, engine.UpdateSubmissionOptions{
		TaskID: task.ID, Note: "v3", KeepFileIDs: []string{keep}, ActorID: "free",
	})
	require.NoError(t, err)
	require.Len(t, task.Files, 1)
	assert.Equal(t, keep, task.Files[0].ID)

	_, err = env.Engine.UpdateSubmission(env.Ctx, engine.UpdateSubmissionOptions{
		TaskID: task.ID, Note: "v4", KeepFileIDs: []string{"not-mine"}, ActorID: "free",
	})
	var verr engine.ValidationError
	require.True(t, errors.As(err, &verr))

	file, err := env.Engine.TaskFile(env.Ctx, keep, "emp")
	require.NoError(t, err)
	assert.Equal(t, []byte("result"), file.Data)
	_, err = env.Engine.TaskFile(env.Ctx, keep, "other")
	var forbidden auth.ForbiddenError
	assert.True(t, errors.As(err, &forbidden))
}

func TestSubmitRespectsFileCeiling(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Limits.TaskFileBytes = 4
	task := env.createTask(t, 1)
	_, err := env.Engine.SubmitTask(env.Ctx, engine.SubmitOptions{
		TaskID: task.ID, Note: "n", ActorID: "free",
		Files: []attach.File{{Name: "big.txt", ContentType: "text/plain", Data: []byte("12345")}},
	})
	var tooLarge attach.TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, int64(4), tooLarge.Limit)
	var verr engine.ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestCompleteContractGate(t *testing.T) {
	env := newTestEnv(t)
	feedback := "Great work delivered on time with clear communication and solid code"
	task := env.createTask(t, 1)

	_, err := env.Engine.CompleteContract(env.Ctx, env.Contract.ID, 5, feedback, "emp")
	var gerr engine.ContractGateError
	require.True(t, errors.As(err, &gerr))
	assert.Contains(t, gerr.Reason, "not ended")

	env.advance(30 * 24 * time.Hour)
	g, err := env.Engine.Gate(env.Ctx, env.Contract.ID, "free")
	require.NoError(t, err)
	assert.True(t, g.IsEnded)
	assert.True(t, g.HasIncompleteTasks)

	_, err = env.Engine.CompleteContract(env.Ctx, env.Contract.ID, 5, feedback, "emp")
	require.True(t, errors.As(err, &gerr))
	assert.Contains(t, gerr.Reason, "pending or submitted")

	env.submit(t, task.ID)
	_, err = env.Engine.CompleteContract(env.Ctx, env.Contract.ID, 5, feedback, "emp")
	require.True(t, errors.As(err, &gerr))

	_, _, err = env.Engine.ApproveTask(env.Ctx, task.ID, "emp")
	require.NoError(t, err)

	var verr engine.ValidationError
	_, err = env.Engine.CompleteContract(env.Ctx, env.Contract.ID, 0, feedback, "emp")
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "rating", verr.Field)
	_, err = env.Engine.CompleteContract(env.Ctx, env.Contract.ID, 6, feedback, "emp")
	require.True(t, errors.As(err, &verr))
	_, err = env.Engine.CompleteContract(env.Ctx, env.Contract.ID, 4, "nice work", "emp")
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "feedback", verr.Field)

	_, err = env.Engine.CompleteContract(env.Ctx, env.Contract.ID, 4, feedback, "free")
	var forbidden auth.ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	c, err := env.Engine.CompleteContract(env.Ctx, env.Contract.ID, 4, feedback, "emp")
	require.NoError(t, err)
	assert.Equal(t, domain.ContractCompleted, c.Status)
	require.NotNil(t, c.Rating)
	assert.Equal(t, 4, *c.Rating)

	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ContractID: env.Contract.ID,
		TaskFields: engine.TaskFields{Name: "n", Instruction: "i", SubmissionRequirement: "s", Hours: 1, DueDate: "2024-03-01"},
		ActorID:    "emp",
	})
	require.True(t, errors.As(err, &gerr))
}

func TestCancellationFlow(t *testing.T) {
	env := newTestEnv(t)
	pending := env.createTask(t, 2)

	_, err := env.Engine.RequestCancellation(env.Ctx, env.Contract.ID, "", "free")
	var verr engine.ValidationError
	require.True(t, errors.As(err, &verr))

	_, err = env.Engine.RequestCancellation(env.Ctx, env.Contract.ID, "scope changed", "other")
	var forbidden auth.ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	cc, err := env.Engine.RequestCancellation(env.Ctx, env.Contract.ID, "scope changed", "free")
	require.NoError(t, err)
	assert.Equal(t, domain.CancellationPending, cc.Status)

	_, err = env.Engine.RequestCancellation(env.Ctx, env.Contract.ID, "again", "emp")
	var gerr engine.ContractGateError
	require.True(t, errors.As(err, &gerr), "duplicate cancel: %v", err)

	g, err := env.Engine.Gate(env.Ctx, env.Contract.ID, "emp")
	require.NoError(t, err)
	assert.True(t, g.IsCancelled)
	assert.False(t, g.IsCompletedOrCancelled)

	reason, err := env.Engine.CancelReason(env.Ctx, env.Contract.ID, "emp")
	require.NoError(t, err)
	assert.Equal(t, "scope changed", reason.Reason)

	_, err = env.Engine.ResolveCancellation(env.Ctx, env.Contract.ID, true, "emp")
	require.True(t, errors.As(err, &forbidden))

	cc, err = env.Engine.ResolveCancellation(env.Ctx, env.Contract.ID, true, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.CancellationApproved, cc.Status)
	assert.Equal(t, int64(1000), env.balance(t, "emp"))
	_, err = env.Engine.GetTask(env.Ctx, pending.ID, "emp")
	assert.True(t, errors.Is(err, repo.ErrNotFound))

	g, err = env.Engine.Gate(env.Ctx, env.Contract.ID, "emp")
	require.NoError(t, err)
	assert.True(t, g.IsCompletedOrCancelled)
}

func TestCancellationBlockedBySubmittedWork(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 2)
	env.submit(t, task.ID)
	_, err := env.Engine.RequestCancellation(env.Ctx, env.Contract.ID, "budget", "emp")
	require.NoError(t, err)
	_, err = env.Engine.ResolveCancellation(env.Ctx, env.Contract.ID, true, "admin")
	var gerr engine.ContractGateError
	require.True(t, errors.As(err, &gerr))

	cc, err := env.Engine.ResolveCancellation(env.Ctx, env.Contract.ID, false, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.CancellationDeclined, cc.Status)
	g, err := env.Engine.Gate(env.Ctx, env.Contract.ID, "emp")
	require.NoError(t, err)
	assert.False(t, g.IsCancelled)
	assert.Equal(t, domain.ContractActive, g.Status)
}

func TestTransactionsSummary(t *testing.T) {
	env := newTestEnv(t)
	a := env.createTask(t, 5)
	b := env.createTask(t, 2)
	env.submit(t, a.ID)
	env.submit(t, b.ID)
	_, _, err := env.Engine.ApproveTask(env.Ctx, a.ID, "emp")
	require.NoError(t, err)
	_, err = env.Engine.RejectTask(env.Ctx, b.ID, "wrong format", "emp")
	require.NoError(t, err)
	_, err = env.Engine.SettlePending(env.Ctx, 10)
	require.NoError(t, err)

	entries, summary, err := env.Engine.ListTransactions(env.Ctx, "emp", engine.TransactionFilter{}, "emp")
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.Equal(t, int64(1000), summary.TotalDeposited)
	assert.Equal(t, int64(140), summary.TotalSpent)
	assert.Equal(t, int64(40), summary.TotalRefunded)
	assert.Equal(t, int64(900), summary.Balance)

	refunds, _, err := env.Engine.ListTransactions(env.Ctx, "emp", engine.TransactionFilter{Kind: domain.LedgerRefund}, "admin")
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.True(t, strings.Contains(refunds[0].Note, "wrong format"))

	_, summary, err = env.Engine.ListTransactions(env.Ctx, "free", engine.TransactionFilter{}, "free")
	require.NoError(t, err)
	assert.Equal(t, int64(100), summary.TotalEarned)

	_, _, err = env.Engine.ListTransactions(env.Ctx, "emp", engine.TransactionFilter{}, "free")
	var forbidden auth.ForbiddenError
	assert.True(t, errors.As(err, &forbidden))
}

func TestEventsRecorded(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, 1)
	env.submit(t, task.ID)
	evts, err := env.Engine.Repo.EventsAfter(env.Ctx, env.Engine.DB, repo.EventFilters{ContractID: env.Contract.ID}, 0, 0)
	require.NoError(t, err)
	var types []string
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{"contract.created", "task.created", "task.submitted"}, types)
}
