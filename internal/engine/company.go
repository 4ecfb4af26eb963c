package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"gigline/internal/attach"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine/auth"
	"gigline/internal/events"
	"gigline/internal/repo"
)

type CompanyInput struct {
	Name               string
	RegistrationNumber string
	Industry           string
	Website            string
}

// requireOwnerOrAdmin passes the company owner (who must be an employer) and admins.
func (e Engine) requireOwnerOrAdmin(ctx context.Context, q db.Querier, ownerID, actorID, perm string) error {
	if actorID == "" {
		return nil
	}
	a, err := e.Auth.Account(ctx, q, actorID)
	if err != nil {
		return err
	}
	if a.Role == domain.RoleAdmin || (a.ID == ownerID && a.Role == domain.RoleEmployer) {
		return nil
	}
	return auth.ForbiddenError{Permission: perm}
}

func (e Engine) GetCompany(ctx context.Context, ownerID, actorID string) (domain.Company, error) {
	if err := e.requireOwnerOrAdmin(ctx, e.DB, ownerID, actorID, "company.read"); err != nil {
		return domain.Company{}, err
	}
	c, err := e.Repo.GetCompany(ctx, e.DB, ownerID)
	if err != nil {
		return c, err
	}
	c.Documents, err = e.Repo.ListAttachments(ctx, e.DB, domain.OwnerCompany, ownerID)
	return c, err
}

// UpsertCompany writes the profile. Changing a verified or rejected profile
// sends it back to unverified; a profile under review cannot change.
func (e Engine) UpsertCompany(ctx context.Context, ownerID string, in CompanyInput, actorID string) (domain.Company, error) {
	name, err := requireText("name", in.Name)
	if err != nil {
		return domain.Company{}, err
	}
	var c domain.Company
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.requireOwnerOrAdmin(ctx, tx, ownerID, actorID, "company.write"); err != nil {
			return err
		}
		if err := e.requireAccountRole(ctx, tx, ownerID, domain.RoleEmployer, "owner_id"); err != nil {
			return err
		}
		existing, err := e.Repo.GetCompany(ctx, tx, ownerID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			existing = domain.Company{OwnerID: ownerID, Status: domain.CompanyUnverified}
		case err != nil:
			return err
		case existing.Status == domain.CompanyPending:
			return TransitionError{Entity: "company", From: existing.Status, Action: "edit"}
		}
		c = existing
		c.Name = name
		c.RegistrationNumber = strings.TrimSpace(in.RegistrationNumber)
		c.Industry = strings.TrimSpace(in.Industry)
		c.Website = strings.TrimSpace(in.Website)
		c.Status = domain.CompanyUnverified
		c.RejectReason = nil
		c.UpdatedAt = e.stamp()
		if err := e.Repo.UpsertCompany(ctx, tx, c); err != nil {
			return err
		}
		if c.Documents, err = e.Repo.ListAttachments(ctx, tx, domain.OwnerCompany, ownerID); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "company.updated", 0, "company", ownerID, orLocal(actorID), events.EventPayload{
			"name": c.Name, "previous_status": existing.Status,
		})
	})
	return c, err
}

func (e Engine) AddCompanyDocument(ctx context.Context, ownerID string, file attach.File, actorID string) (domain.Attachment, error) {
	files, err := attach.Prepare(attach.KindCompanyDocument, []attach.File{file}, e.config().Limits)
	if err != nil {
		return domain.Attachment{}, uploadError("file", err)
	}
	var doc domain.Attachment
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.requireOwnerOrAdmin(ctx, tx, ownerID, actorID, "company.write"); err != nil {
			return err
		}
		c, err := e.Repo.GetCompany(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if c.Status == domain.CompanyPending {
			return TransitionError{Entity: "company", From: c.Status, Action: "add document to"}
		}
		stored, err := e.storeFiles(ctx, tx, domain.OwnerCompany, ownerID, files)
		if err != nil {
			return err
		}
		doc = stored[0]
		return e.eventWriter().Append(ctx, tx, "company.document_added", 0, "company", ownerID, orLocal(actorID), events.EventPayload{
			"document_id": doc.ID, "name": doc.Name, "size": doc.Size,
		})
	})
	return doc, err
}

// SubmitCompany asks for verification; at least one document is required.
func (e Engine) SubmitCompany(ctx context.Context, ownerID, actorID string) (domain.Company, error) {
	var c domain.Company
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.requireOwnerOrAdmin(ctx, tx, ownerID, actorID, "company.submit"); err != nil {
			return err
		}
		var err error
		c, err = e.Repo.GetCompany(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if c.Status != domain.CompanyUnverified && c.Status != domain.CompanyRejected {
			return TransitionError{Entity: "company", From: c.Status, Action: "submit"}
		}
		if c.Documents, err = e.Repo.ListAttachments(ctx, tx, domain.OwnerCompany, ownerID); err != nil {
			return err
		}
		if len(c.Documents) == 0 {
			return ValidationError{Field: "documents", Reason: "at least one document is required"}
		}
		c.Status = domain.CompanyPending
		c.RejectReason = nil
		c.UpdatedAt = e.stamp()
		if err := e.Repo.UpsertCompany(ctx, tx, c); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, "company.submitted", 0, "company", ownerID, orLocal(actorID), events.EventPayload{"documents": len(c.Documents)})
	})
	return c, err
}

// ReviewCompany lets an admin verify or reject a pending profile.
func (e Engine) ReviewCompany(ctx context.Context, ownerID string, approve bool, reason, actorID string) (domain.Company, error) {
	reason = strings.TrimSpace(reason)
	if !approve && reason == "" {
		return domain.Company{}, ValidationError{Field: "reason", Reason: "is required when rejecting"}
	}
	var c domain.Company
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if actorID != "" {
			if _, err := e.Auth.RequireAdmin(ctx, tx, actorID, "company.verify"); err != nil {
				return err
			}
		}
		var err error
		c, err = e.Repo.GetCompany(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if c.Status != domain.CompanyPending {
			return TransitionError{Entity: "company", From: c.Status, Action: "review"}
		}
		evt := "company.verified"
		if approve {
			c.Status = domain.CompanyVerified
		} else {
			c.Status = domain.CompanyRejected
			c.RejectReason = &reason
			evt = "company.rejected"
		}
		c.UpdatedAt = e.stamp()
		if err := e.Repo.UpsertCompany(ctx, tx, c); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, evt, 0, "company", ownerID, orLocal(actorID), events.EventPayload{"reason": reason})
	})
	return c, err
}

// ListCompanies is the admin review queue.
func (e Engine) ListCompanies(ctx context.Context, f repo.CompanyFilters, actorID string) ([]domain.Company, error) {
	if actorID != "" {
		if _, err := e.Auth.RequireAdmin(ctx, e.DB, actorID, "company.list"); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListCompanies(ctx, e.DB, f)
}

// CompanyDocument loads one document, bytes included.
func (e Engine) CompanyDocument(ctx context.Context, fileID, actorID string) (domain.Attachment, error) {
	a, err := e.Repo.GetAttachment(ctx, e.DB, fileID)
	if err != nil {
		return a, err
	}
	if a.OwnerKind != domain.OwnerCompany {
		return domain.Attachment{}, repo.ErrNotFound
	}
	if err := e.requireOwnerOrAdmin(ctx, e.DB, a.OwnerID, actorID, "company.read"); err != nil {
		return domain.Attachment{}, err
	}
	return a, nil
}
