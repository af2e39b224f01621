package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/znz-systems/mailgate/internal/models"
	"github.com/znz-systems/mailgate/internal/store"
)

type MailboxStore struct {
	db *sqlx.DB
}

func NewMailboxStore(db *sqlx.DB) *MailboxStore {
	return &MailboxStore{db: db}
}

func (s *MailboxStore) CreateMailbox(ctx context.Context, domain, localPart, secret string, createdAt int64) (*models.Mailbox, error) {
	m := &models.Mailbox{
		Domain:    domain,
		LocalPart: localPart,
		Secret:    secret,
		Status:    models.MailboxActive,
		CreatedAt: createdAt,
	}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO mailboxes (domain, local_part, secret, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		m.Domain, m.LocalPart, m.Secret, m.Status, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return m, nil
}

func (s *MailboxStore) LookupMailbox(ctx context.Context, domain, localPart string) (*models.Mailbox, error) {
	return s.getOne(ctx,
		`SELECT id, domain, local_part, secret, status, created_at
		 FROM mailboxes WHERE domain = $1 AND local_part = $2 LIMIT 1`,
		domain, localPart,
	)
}

func (s *MailboxStore) LookupMailboxBySecret(ctx context.Context, secret string) (*models.Mailbox, error) {
	return s.getOne(ctx,
		`SELECT id, domain, local_part, secret, status, created_at
		 FROM mailboxes WHERE secret = $1 LIMIT 1`,
		secret,
	)
}

func (s *MailboxStore) getOne(ctx context.Context, query string, args ...interface{}) (*models.Mailbox, error) {
	var m models.Mailbox
	if err := s.db.GetContext(ctx, &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}
