package repo

import (
	"context"

	"github.com/pkg/errors"

	"gigline/internal/db"
	"gigline/internal/domain"
)

func (r Repo) InsertAttachment(ctx context.Context, q db.Querier, a domain.Attachment) error {
	_, err := q.ExecContext(ctx, `INSERT INTO attachments(id,owner_kind,owner_id,name,content_type,size,data,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.OwnerKind, a.OwnerID, a.Name, a.ContentType, a.Size, a.Data, a.CreatedAt)
	return errors.Wrapf(err, "insert attachment %s", a.ID)
}

// ListAttachments returns metadata only; Data stays nil.
func (r Repo) ListAttachments(ctx context.Context, q db.Querier, ownerKind, ownerID string) ([]domain.Attachment, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,owner_kind,owner_id,name,content_type,size,created_at FROM attachments
WHERE owner_kind=? AND owner_id=? ORDER BY created_at, name`, ownerKind, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list attachments")
	}
	defer rows.Close()
	var res []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.OwnerKind, &a.OwnerID, &a.Name, &a.ContentType, &a.Size, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// GetAttachment loads one attachment including its bytes.
func (r Repo) GetAttachment(ctx context.Context, q db.Querier, id string) (domain.Attachment, error) {
	var a domain.Attachment
	err := q.QueryRowContext(ctx, `SELECT id,owner_kind,owner_id,name,content_type,size,data,created_at FROM attachments WHERE id=?`, id).
		Scan(&a.ID, &a.OwnerKind, &a.OwnerID, &a.Name, &a.ContentType, &a.Size, &a.Data, &a.CreatedAt)
	return a, notFound(err)
}

func (r Repo) DeleteAttachment(ctx context.Context, q db.Querier, id string) error {
	return errors.Wrapf(expectOne(q.ExecContext(ctx, `DELETE FROM attachments WHERE id=?`, id)), "delete attachment %s", id)
}

func (r Repo) DeleteAttachmentsOf(ctx context.Context, q db.Querier, ownerKind, ownerID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM attachments WHERE owner_kind=? AND owner_id=?`, ownerKind, ownerID)
	return errors.Wrap(err, "delete attachments")
}
