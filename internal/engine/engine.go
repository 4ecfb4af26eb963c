package engine

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"gigline/internal/config"
	"gigline/internal/engine/auth"
	"gigline/internal/events"
	"gigline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{Now: time.Now},
		Auth:   auth.Service{Repo: r},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// eventWriter stamps events with the engine clock.
func (e Engine) eventWriter() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

func (e Engine) config() *config.Config {
	if e.Config == nil {
		return config.Default()
	}
	return e.Config
}

// inTx runs fn in one transaction, committing only when fn succeeds.
func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

const dateLayout = "2006-01-02"

// parseDay accepts YYYY-MM-DD or RFC3339 and returns the UTC calendar day.
func parseDay(field, in string) (time.Time, error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return time.Time{}, ValidationError{Field: field, Reason: "is required"}
	}
	if t, err := time.Parse(dateLayout, in); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, in)
	if err != nil {
		return time.Time{}, ValidationError{Field: field, Reason: "must be a date (YYYY-MM-DD)"}
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MaxTaskHours caps the hours a single task may bill.
const MaxTaskHours = 10000

// computePay is hours x hourly rate rounded to whole credits. The result must
// be a positive amount that fits in int64.
func computePay(hours float64, rate int64) (int64, error) {
	pay := math.Round(hours * float64(rate))
	if math.IsNaN(pay) || pay < 1 || pay >= math.MaxInt64 {
		return 0, ValidationError{Field: "hours", Reason: "yields a total pay out of range"}
	}
	return int64(pay), nil
}

func requireText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ValidationError{Field: field, Reason: "is required"}
	}
	return v, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
