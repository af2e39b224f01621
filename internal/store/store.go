package store

import (
	"context"
	"errors"

	"github.com/znz-systems/mailgate/internal/models"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("store: duplicate entry")
)

// InsertOutcome classifies the result of persisting an inbound message.
type InsertOutcome int

const (
	// InsertFailed means the row was not written; the accompanying error says why.
	InsertFailed InsertOutcome = iota
	// InsertInserted means a new inbox row was written.
	InsertInserted
	// InsertDuplicate means a row with the same message identifier already exists.
	InsertDuplicate
)

func (o InsertOutcome) String() string {
	switch o {
	case InsertInserted:
		return "inserted"
	case InsertDuplicate:
		return "duplicate"
	default:
		return "failed"
	}
}

// Persisted reports whether the message is stored, either by this call or an earlier one.
func (o InsertOutcome) Persisted() bool {
	return o == InsertInserted || o == InsertDuplicate
}

type InboxStore interface {
	InsertInbound(ctx context.Context, params models.InboxEntryCreateParams) (InsertOutcome, error)
	ListInbox(ctx context.Context, domain, localPart, status string, page, pageSize int) ([]models.InboxEntry, int, error)
	SoftDelete(ctx context.Context, id int64, domain, localPart string) (int64, error)
}

// MailboxLookup is the read side used by ingestion to decide forwarding.
type MailboxLookup interface {
	LookupMailbox(ctx context.Context, domain, localPart string) (*models.Mailbox, error)
}

type MailboxStore interface {
	MailboxLookup
	LookupMailboxBySecret(ctx context.Context, secret string) (*models.Mailbox, error)
	CreateMailbox(ctx context.Context, domain, localPart, secret string, createdAt int64) (*models.Mailbox, error)
}
