package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
)

// Repo is the SQL storage layer. Every method takes the Querier to run on so
// callers can keep reads and writes inside one transaction.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func likePattern(q string) string {
	return "%" + q + "%"
}

// Accounts

func (r Repo) InsertAccount(ctx context.Context, q db.Querier, a domain.Account) error {
	_, err := q.ExecContext(ctx, `INSERT INTO accounts(id,role,display_name,premium,created_at) VALUES (?,?,?,?,?)`,
		a.ID, a.Role, nullable(a.DisplayName), a.Premium, a.CreatedAt)
	return errors.Wrapf(err, "insert account %s", a.ID)
}

func scanAccount(s scanner) (domain.Account, error) {
	var a domain.Account
	var name sql.NullString
	if err := s.Scan(&a.ID, &a.Role, &name, &a.Premium, &a.CreatedAt); err != nil {
		return a, notFound(err)
	}
	a.DisplayName = name.String
	return a, nil
}

func (r Repo) GetAccount(ctx context.Context, q db.Querier, id string) (domain.Account, error) {
	return scanAccount(q.QueryRowContext(ctx, `SELECT id,role,display_name,premium,created_at FROM accounts WHERE id=?`, id))
}

func (r Repo) ListAccounts(ctx context.Context, q db.Querier, role string) ([]domain.Account, error) {
	query := `SELECT id,role,display_name,premium,created_at FROM accounts`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, role)
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list accounts")
	}
	defer rows.Close()
	var res []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// App config

func (r Repo) UpsertConfig(ctx context.Context, q db.Querier, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := cfg.ToYAML()
	if err != nil {
		return errors.Wrap(err, "render config")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = q.ExecContext(ctx, `INSERT INTO app_config(id,config_yaml,created_at,updated_at) VALUES (1,?,?,?)
ON CONFLICT(id) DO UPDATE SET config_yaml=excluded.config_yaml, updated_at=excluded.updated_at`, string(payload), now, now)
	return errors.Wrap(err, "upsert config")
}

func (r Repo) GetConfig(ctx context.Context, q db.Querier) (*config.Config, error) {
	var payload string
	if err := q.QueryRowContext(ctx, `SELECT config_yaml FROM app_config WHERE id=1`).Scan(&payload); err != nil {
		return nil, notFound(err)
	}
	return config.FromYAML([]byte(payload))
}
