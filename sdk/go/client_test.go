package giglinesdk_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	giglinesdk "gigline/sdk/go"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/logging"
	"gigline/internal/migrate"
	"gigline/internal/server"
)

type fixture struct {
	url        string
	contractID int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	workspace := t.TempDir()
	_, err := db.EnsureWorkspace(workspace)
	require.NoError(t, err)
	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))

	cfg := config.Default()
	cfg.Settlement.Interval = 20 * time.Millisecond
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	for _, a := range []engine.AccountCreateOptions{
		{ID: "admin", Role: domain.RoleAdmin},
		{ID: "emp", Role: domain.RoleEmployer},
		{ID: "free", Role: domain.RoleFreelancer},
	} {
		_, err := e.CreateAccount(ctx, a)
		require.NoError(t, err)
	}
	_, err = e.Deposit(ctx, "emp", 200, "seed", "")
	require.NoError(t, err)
	c, err := e.CreateContract(ctx, engine.ContractCreateOptions{
		JobID: 7, EmployerID: "emp", FreelancerID: "free", HourlyRate: 20,
		StartDate: "2024-01-01", EndDate: "2024-01-31",
	})
	require.NoError(t, err)

	log := logging.Discard()
	handler, err := server.New(server.Config{
		Engine:   e,
		BasePath: "/api",
		Auth:     server.AuthConfig{JWTSecret: "sdk-secret", AllowActorHeader: true},
		Logger:   log,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	bgCtx, cancel := context.WithCancel(context.Background())
	wait := server.StartBackground(bgCtx, e, log)
	t.Cleanup(func() {
		cancel()
		wait()
		ts.Close()
		conn.Close()
	})
	return fixture{url: ts.URL + "/api", contractID: c.ID}
}

func (f fixture) client(actor string) *giglinesdk.Client {
	return giglinesdk.New(f.url, giglinesdk.WithActor(actor), giglinesdk.WithTimeout(5*time.Second))
}

func landingPage(hours float64) giglinesdk.TaskInput {
	return giglinesdk.TaskInput{
		Name:                  "Landing page",
		Instruction:           "Build the landing page",
		SubmissionRequirement: "Zip archive",
		Hours:                 hours,
		DueDate:               "2024-01-20",
	}
}

func TestTaskStoreFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := giglinesdk.NewTaskStore(f.client("emp"), f.contractID)
	free := giglinesdk.NewTaskStore(f.client("free"), f.contractID)

	require.NoError(t, emp.Refresh(ctx))
	assert.True(t, emp.Loaded())
	assert.Empty(t, emp.List())

	task, err := emp.Create(ctx, landingPage(5))
	require.NoError(t, err)
	assert.Equal(t, int64(100), task.TotalPay)
	assert.Equal(t, "pending", task.Status)

	gate, err := emp.Gate(ctx)
	require.NoError(t, err)
	assert.True(t, gate.HasIncompleteTasks)

	task, err = emp.Edit(ctx, task.ID, landingPage(6))
	require.NoError(t, err)
	assert.Equal(t, int64(120), task.TotalPay)

	require.NoError(t, free.Refresh(ctx))
	require.Len(t, free.List(), 1)
	task, err = free.Submit(ctx, task.ID, "first cut", []giglinesdk.File{
		{Name: "index.html", ContentType: "text/html", Data: []byte("<html></html>")},
		{Name: "notes.txt", Data: []byte("notes")},
	})
	require.NoError(t, err)
	assert.Equal(t, "submitted", task.Status)
	require.Len(t, task.Files, 2)

	var keep string
	for _, file := range task.Files {
		if file.Name == "index.html" {
			keep = file.ID
		}
	}
	require.NotEmpty(t, keep)
	task, err = free.UpdateSubmission(ctx, task.ID, "second cut", []string{keep}, []giglinesdk.File{
		{Name: "readme.txt", Data: []byte("readme")},
	})
	require.NoError(t, err)
	require.Len(t, task.Files, 2)
	require.NotNil(t, task.SubmissionNote)
	assert.Equal(t, "second cut", *task.SubmissionNote)

	file, err := f.client("emp").DownloadTaskFile(ctx, keep)
	require.NoError(t, err)
	assert.Equal(t, "index.html", file.Name)
	assert.Equal(t, "<html></html>", string(file.Data))

	_, _, err = free.Approve(ctx, task.ID)
	require.Error(t, err)
	assert.True(t, giglinesdk.IsCode(err, "forbidden"))
	cached, ok := free.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, "submitted", cached.Status)

	task, settlement, err := emp.Approve(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", task.Status)
	assert.Equal(t, int64(120), settlement.Amount)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	settled, err := f.client("free").WaitForSettlement(waitCtx, settlement.ID, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "completed", settled.Status)

	txns, err := f.client("free").Transactions(ctx, "free", giglinesdk.TransactionQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(120), txns.Summary.TotalEarned)

	gate, err = emp.Gate(ctx)
	require.NoError(t, err)
	assert.False(t, gate.HasIncompleteTasks)
}

func TestTaskStoreDeleteRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := giglinesdk.NewTaskStore(f.client("emp"), f.contractID)

	task, err := emp.Create(ctx, landingPage(3))
	require.NoError(t, err)
	refunded, err := emp.Delete(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), refunded)
	_, ok := emp.Get(task.ID)
	assert.False(t, ok)

	wallet, err := f.client("emp").Wallet(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, int64(200), wallet.Balance)
}

func TestInsufficientCreditsError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := giglinesdk.NewTaskStore(f.client("emp"), f.contractID)

	_, err := emp.Create(ctx, landingPage(11))
	require.Error(t, err)
	var apiErr *giglinesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 402, apiErr.Status)
	assert.True(t, apiErr.IsInsufficientCredits())
	required, available := apiErr.Credits()
	assert.Equal(t, int64(220), required)
	assert.Equal(t, int64(200), available)
	assert.Empty(t, emp.List())
}

func TestTicketsAndCompanyThroughClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.client("emp")
	admin := f.client("admin")

	ticket, err := emp.CreateTicket(ctx, giglinesdk.TicketInput{
		Subject:     "Payment missing",
		Description: "The settlement did not arrive",
		Category:    "payments",
		Attachments: []giglinesdk.File{{Name: "proof.txt", ContentType: "text/plain", Data: []byte("proof")}},
	})
	require.NoError(t, err)
	require.Len(t, ticket.Attachments, 1)

	att, err := emp.TicketAttachment(ctx, ticket.ID, ticket.Attachments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "proof", string(att.Data))

	ticket, err = admin.AssignTicket(ctx, ticket.ID, "admin")
	require.NoError(t, err)
	require.NotNil(t, ticket.AssigneeID)
	_, err = admin.AddTicketMessage(ctx, ticket.ID, "Looking into it")
	require.NoError(t, err)
	list, err := admin.ListTickets(ctx, giglinesdk.TicketQuery{CreatorID: "emp"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = emp.UpsertCompany(ctx, "emp", giglinesdk.CompanyInput{Name: "Acme", RegistrationNumber: "RC-1"})
	require.NoError(t, err)
	doc, err := emp.UploadCompanyDocument(ctx, "emp", giglinesdk.File{Name: "cert.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 cert")})
	require.NoError(t, err)
	company, err := emp.SubmitCompany(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, "pending", company.Status)

	_, err = emp.VerifyCompany(ctx, "emp", true, "")
	assert.True(t, giglinesdk.IsCode(err, "forbidden"))
	company, err = admin.VerifyCompany(ctx, "emp", true, "")
	require.NoError(t, err)
	assert.Equal(t, "verified", company.Status)

	got, err := admin.DownloadCompanyDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "cert.pdf", got.Name)

	page, err := admin.Events(ctx, giglinesdk.EventQuery{EntityKind: "company"})
	require.NoError(t, err)
	assert.NotEmpty(t, page.Items)
}

func TestTaskStoreGateSeesContractCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := giglinesdk.NewTaskStore(f.client("emp"), f.contractID)

	_, ok := emp.CachedGate()
	assert.False(t, ok)
	gate, err := emp.Gate(ctx)
	require.NoError(t, err)
	assert.False(t, gate.IsCancelled)

	_, err = f.client("free").RequestCancellation(ctx, f.contractID, "scope changed")
	require.NoError(t, err)
	cached, ok := emp.CachedGate()
	require.True(t, ok)
	assert.False(t, cached.IsCancelled)

	gate, err = emp.Gate(ctx)
	require.NoError(t, err)
	assert.True(t, gate.IsCancelled)

	_, err = f.client("admin").ResolveCancellation(ctx, f.contractID, true)
	require.NoError(t, err)
	gate, err = emp.Gate(ctx)
	require.NoError(t, err)
	assert.True(t, gate.IsCompletedOrCancelled)
	cached, ok = emp.CachedGate()
	require.True(t, ok)
	assert.Equal(t, gate, cached)
}
