package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigline/internal/attach"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/engine/auth"
	"gigline/internal/repo"
)

func TestTicketLifecycle(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.CreateTicket(env.Ctx, engine.TicketCreateOptions{
		Subject: "Payment missing", Description: "d", Category: "billing", Priority: "premium", ActorID: "emp",
	})
	var forbidden auth.ForbiddenError
	require.True(t, errors.As(err, &forbidden), "premium priority for a regular account: %v", err)

	tk, err := env.Engine.CreateTicket(env.Ctx, engine.TicketCreateOptions{
		Subject: "Payment missing", Description: "Task 3 was approved yesterday", Category: "billing", Priority: "high",
		Attachments: []attach.File{{Name: "receipt.txt", ContentType: "text/plain", Data: []byte("receipt")}},
		ActorID:     "emp",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketOpen, tk.Status)
	require.Len(t, tk.Attachments, 1)

	_, err = env.Engine.GetTicket(env.Ctx, tk.ID, "free")
	require.True(t, errors.As(err, &forbidden))

	list, err := env.Engine.ListTickets(env.Ctx, repo.TicketFilters{Query: "approved"}, "emp")
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = env.Engine.ListTickets(env.Ctx, repo.TicketFilters{}, "free")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = env.Engine.SetTicketStatus(env.Ctx, tk.ID, domain.TicketResolved, "emp")
	require.True(t, errors.As(err, &forbidden))

	tk, err = env.Engine.AssignTicket(env.Ctx, tk.ID, "", "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketInProgress, tk.Status)
	require.NotNil(t, tk.AssigneeID)
	assert.Equal(t, "admin", *tk.AssigneeID)

	_, err = env.Engine.AddTicketMessage(env.Ctx, tk.ID, "Looking into it", "admin")
	require.NoError(t, err)
	_, err = env.Engine.AddTicketMessage(env.Ctx, tk.ID, "Thanks", "emp")
	require.NoError(t, err)

	tk, err = env.Engine.SetTicketStatus(env.Ctx, tk.ID, domain.TicketResolved, "admin")
	require.NoError(t, err)
	tk, err = env.Engine.SetTicketStatus(env.Ctx, tk.ID, domain.TicketClosed, "admin")
	require.NoError(t, err)

	_, err = env.Engine.AddTicketMessage(env.Ctx, tk.ID, "one more thing", "emp")
	var terr engine.TransitionError
	require.True(t, errors.As(err, &terr))

	full, err := env.Engine.GetTicket(env.Ctx, tk.ID, "emp")
	require.NoError(t, err)
	assert.Len(t, full.Messages, 2)

	file, err := env.Engine.TicketAttachment(env.Ctx, tk.ID, full.Attachments[0].ID, "emp")
	require.NoError(t, err)
	assert.Equal(t, []byte("receipt"), file.Data)
	_, err = env.Engine.TicketAttachment(env.Ctx, tk.ID+1, full.Attachments[0].ID, "admin")
	assert.True(t, errors.Is(err, repo.ErrNotFound))
}

func TestTicketReachesInProgressOnlyByAssignment(t *testing.T) {
	env := newTestEnv(t)
	tk, err := env.Engine.CreateTicket(env.Ctx, engine.TicketCreateOptions{
		Subject: "Login loop", Description: "d", Category: "account", ActorID: "free",
	})
	require.NoError(t, err)

	_, err = env.Engine.SetTicketStatus(env.Ctx, tk.ID, domain.TicketInProgress, "admin")
	var terr engine.TransitionError
	require.True(t, errors.As(err, &terr), "got %v", err)
	assert.Equal(t, domain.TicketOpen, terr.From)
	got, err := env.Engine.GetTicket(env.Ctx, tk.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketOpen, got.Status)
	assert.Nil(t, got.AssigneeID)

	tk, err = env.Engine.AssignTicket(env.Ctx, tk.ID, "admin", "admin")
	require.NoError(t, err)
	tk, err = env.Engine.SetTicketStatus(env.Ctx, tk.ID, domain.TicketResolved, "admin")
	require.NoError(t, err)

	// reopening keeps the assignee
	tk, err = env.Engine.SetTicketStatus(env.Ctx, tk.ID, domain.TicketInProgress, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketInProgress, tk.Status)
	require.NotNil(t, tk.AssigneeID)
	assert.Equal(t, "admin", *tk.AssigneeID)
}

func TestTicketAttachmentCeiling(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Limits.TicketAttachmentsTotalBytes = 8
	_, err := env.Engine.CreateTicket(env.Ctx, engine.TicketCreateOptions{
		Subject: "s", Description: "d", Category: "c", ActorID: "free",
		Attachments: []attach.File{
			{Name: "a.txt", ContentType: "text/plain", Data: []byte("12345")},
			{Name: "b.txt", ContentType: "text/plain", Data: []byte("12345")},
		},
	})
	var tooLarge attach.TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, int64(10), tooLarge.Size)
}

func TestCompanyVerification(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.UpsertCompany(env.Ctx, "free", engine.CompanyInput{Name: "Solo"}, "free")
	var forbidden auth.ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	c, err := env.Engine.UpsertCompany(env.Ctx, "emp", engine.CompanyInput{Name: "Acme Ltd", Industry: "Retail"}, "emp")
	require.NoError(t, err)
	assert.Equal(t, domain.CompanyUnverified, c.Status)

	_, err = env.Engine.SubmitCompany(env.Ctx, "emp", "emp")
	var verr engine.ValidationError
	require.True(t, errors.As(err, &verr), "submit without documents: %v", err)

	doc, err := env.Engine.AddCompanyDocument(env.Ctx, "emp", attach.File{Name: "reg.pdf", Data: []byte("%PDF-1.4 registration")}, "emp")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)

	c, err = env.Engine.SubmitCompany(env.Ctx, "emp", "emp")
	require.NoError(t, err)
	assert.Equal(t, domain.CompanyPending, c.Status)

	_, err = env.Engine.UpsertCompany(env.Ctx, "emp", engine.CompanyInput{Name: "Acme 2"}, "emp")
	var terr engine.TransitionError
	require.True(t, errors.As(err, &terr))

	queue, err := env.Engine.ListCompanies(env.Ctx, repo.CompanyFilters{Status: domain.CompanyPending}, "admin")
	require.NoError(t, err)
	require.Len(t, queue, 1)

	_, err = env.Engine.ReviewCompany(env.Ctx, "emp", false, "", "admin")
	require.True(t, errors.As(err, &verr))

	c, err = env.Engine.ReviewCompany(env.Ctx, "emp", false, "blurry scan", "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.CompanyRejected, c.Status)

	c, err = env.Engine.SubmitCompany(env.Ctx, "emp", "emp")
	require.NoError(t, err)
	c, err = env.Engine.ReviewCompany(env.Ctx, "emp", true, "", "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.CompanyVerified, c.Status)
	assert.Nil(t, c.RejectReason)

	c, err = env.Engine.UpsertCompany(env.Ctx, "emp", engine.CompanyInput{Name: "Acme Group"}, "emp")
	require.NoError(t, err)
	assert.Equal(t, domain.CompanyUnverified, c.Status)
	assert.Len(t, c.Documents, 1)

	got, err := env.Engine.CompanyDocument(env.Ctx, doc.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, "reg.pdf", got.Name)
}
