package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/znz-systems/mailgate/internal/models"
	"github.com/znz-systems/mailgate/internal/store"
)

type InboxStore struct {
	db *sqlx.DB
}

func NewInboxStore(db *sqlx.DB) *InboxStore {
	return &InboxStore{db: db}
}

// InsertInbound writes a visible inbox row. A repeated message identifier is
// rejected by idx_inbox_msgid and reported as InsertDuplicate.
func (s *InboxStore) InsertInbound(ctx context.Context, params models.InboxEntryCreateParams) (store.InsertOutcome, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_inbox
		 (domain, local_part, to_email, from_email, subject, body_text, status, created_at, message_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		params.Domain, params.LocalPart, params.ToEmail, params.FromEmail,
		params.Subject, params.BodyText, models.InboxVisible, params.CreatedAt,
		nullString(params.MessageID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.InsertDuplicate, nil
		}
		return store.InsertFailed, err
	}
	return store.InsertInserted, nil
}

// ListInbox returns one page of entries, newest first, and the total number of
// entries matching the filter.
func (s *InboxStore) ListInbox(ctx context.Context, domain, localPart, status string, page, pageSize int) ([]models.InboxEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	entries := make([]models.InboxEntry, 0, pageSize)
	err := s.db.SelectContext(ctx, &entries,
		`SELECT id, domain, local_part, to_email, from_email, subject, body_text, status, created_at,
		        COALESCE(message_id, '') AS message_id
		 FROM email_inbox
		 WHERE domain = $1 AND local_part = $2 AND status = $3
		 ORDER BY created_at DESC, id DESC
		 LIMIT $4 OFFSET $5`,
		domain, localPart, status, pageSize, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list inbox: %w", err)
	}

	var total int
	err = s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM email_inbox
		 WHERE domain = $1 AND local_part = $2 AND status = $3`,
		domain, localPart, status,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("count inbox: %w", err)
	}
	return entries, total, nil
}

// SoftDelete hides an entry owned by the given mailbox. An id owned by another
// mailbox matches nothing and yields zero affected rows.
func (s *InboxStore) SoftDelete(ctx context.Context, id int64, domain, localPart string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE email_inbox SET status = $1
		 WHERE id = $2 AND domain = $3 AND local_part = $4`,
		models.InboxDeleted, id, domain, localPart,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
