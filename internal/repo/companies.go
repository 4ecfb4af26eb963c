package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"gigline/internal/db"
	"gigline/internal/domain"
)

const companyColumns = `owner_id,name,registration_number,industry,website,status,reject_reason,updated_at`

func scanCompany(s scanner) (domain.Company, error) {
	var c domain.Company
	var reg, industry, website, reason sql.NullString
	if err := s.Scan(&c.OwnerID, &c.Name, &reg, &industry, &website, &c.Status, &reason, &c.UpdatedAt); err != nil {
		return c, notFound(err)
	}
	c.RegistrationNumber = reg.String
	c.Industry = industry.String
	c.Website = website.String
	c.RejectReason = stringPtr(reason)
	return c, nil
}

func (r Repo) GetCompany(ctx context.Context, q db.Querier, ownerID string) (domain.Company, error) {
	return scanCompany(q.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE owner_id=?`, ownerID))
}

func (r Repo) UpsertCompany(ctx context.Context, q db.Querier, c domain.Company) error {
	_, err := q.ExecContext(ctx, `INSERT INTO companies(`+companyColumns+`) VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(owner_id) DO UPDATE SET name=excluded.name, registration_number=excluded.registration_number,
industry=excluded.industry, website=excluded.website, status=excluded.status, reject_reason=excluded.reject_reason,
updated_at=excluded.updated_at`,
		c.OwnerID, c.Name, nullable(c.RegistrationNumber), nullable(c.Industry), nullable(c.Website), c.Status,
		nullableStringPtr(c.RejectReason), c.UpdatedAt)
	return errors.Wrapf(err, "upsert company %s", c.OwnerID)
}

type CompanyFilters struct {
	Status string
	Query  string
}

func (r Repo) ListCompanies(ctx context.Context, q db.Querier, f CompanyFilters) ([]domain.Company, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Query != "" {
		clauses = append(clauses, "(name LIKE ? OR registration_number LIKE ? OR industry LIKE ?)")
		p := likePattern(f.Query)
		args = append(args, p, p, p)
	}
	query := `SELECT ` + companyColumns + ` FROM companies`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY updated_at DESC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list companies")
	}
	defer rows.Close()
	var res []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
