package mailbox

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/znz-systems/mailgate/internal/inbound"
	"github.com/znz-systems/mailgate/internal/models"
	"github.com/znz-systems/mailgate/internal/store"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50

	// MaxPage keeps (page-1)*limit within a Postgres OFFSET.
	MaxPage = math.MaxInt32 / MaxPageSize
)

var (
	ErrMissingKey       = errors.New("missing key")
	ErrInvalidKey       = errors.New("invalid key")
	ErrInactiveKey      = errors.New("inactive key")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrDomainNotAllowed = errors.New("domain not allowed")
	ErrMailboxExists    = errors.New("mailbox already exists")
)

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DomainPolicy limits the domains mailboxes may be created under.
type DomainPolicy interface {
	DomainAllowed(domain string) bool
}

type CreateInput struct {
	Email string
}

type InboxInput struct {
	Key    string
	Page   int
	Limit  int
	Status string // o1 (default) or o2
}

type DeleteInput struct {
	Key string
	ID  int64
}

type InboxPage struct {
	Email string
	Page  int
	Limit int
	Total int
	List  []models.InboxEntry
}

type Service struct {
	mailboxes store.MailboxStore
	inbox     store.InboxStore
	domains   DomainPolicy
	newSecret func() (string, error)
	now       func() time.Time
}

func NewService(mailboxes store.MailboxStore, inbox store.InboxStore, domains DomainPolicy) *Service {
	return &Service{
		mailboxes: mailboxes,
		inbox:     inbox,
		domains:   domains,
		newSecret: GenerateSecret,
		now:       time.Now,
	}
}

// Create registers an active mailbox for the address and returns it with its
// freshly generated secret.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Mailbox, error) {
	key := inbound.ResolveRoutingKey(in.Email)
	if !key.Valid() {
		return nil, &ValidationError{Field: "email", Err: ErrInvalidEmail}
	}
	if s.domains != nil && !s.domains.DomainAllowed(key.Domain) {
		return nil, &ValidationError{Field: "email", Err: ErrDomainNotAllowed}
	}

	secret, err := s.newSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	mb, err := s.mailboxes.CreateMailbox(ctx, key.Domain, key.LocalPart, secret, s.now().UnixMilli())
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrMailboxExists
		}
		return nil, fmt.Errorf("create mailbox: %w", err)
	}
	return mb, nil
}

// Verify resolves a secret to its mailbox and requires the mailbox to be active.
func (s *Service) Verify(ctx context.Context, key string) (*models.Mailbox, error) {
	mb, err := s.Authorize(ctx, key)
	if err != nil {
		return nil, err
	}
	if !mb.IsActive() {
		return nil, ErrInactiveKey
	}
	return mb, nil
}

// Authorize resolves a secret to its mailbox regardless of mailbox status.
func (s *Service) Authorize(ctx context.Context, key string) (*models.Mailbox, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrMissingKey
	}
	mb, err := s.mailboxes.LookupMailboxBySecret(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("lookup mailbox by secret: %w", err)
	}
	return mb, nil
}

// Inbox lists the key's entries with the requested status, visible by
// default, newest first.
func (s *Service) Inbox(ctx context.Context, in InboxInput) (*InboxPage, error) {
	mb, err := s.Authorize(ctx, in.Key)
	if err != nil {
		return nil, err
	}

	status, err := inboxStatus(in.Status)
	if err != nil {
		return nil, err
	}

	page, limit := NormalizePage(in.Page, in.Limit)
	entries, total, err := s.inbox.ListInbox(ctx, mb.Domain, mb.LocalPart, status, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return &InboxPage{
		Email: mb.Address(),
		Page:  page,
		Limit: limit,
		Total: total,
		List:  entries,
	}, nil
}

// Delete hides one entry of the key's mailbox. Ids belonging to other
// mailboxes are ignored without error.
func (s *Service) Delete(ctx context.Context, in DeleteInput) error {
	mb, err := s.Authorize(ctx, in.Key)
	if err != nil {
		return err
	}
	if in.ID <= 0 {
		return &ValidationError{Field: "id", Err: ErrInvalidID}
	}
	if _, err := s.inbox.SoftDelete(ctx, in.ID, mb.Domain, mb.LocalPart); err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	return nil
}

func inboxStatus(v string) (string, error) {
	switch v = strings.ToLower(strings.TrimSpace(v)); v {
	case "":
		return models.InboxVisible, nil
	case models.InboxVisible, models.InboxDeleted:
		return v, nil
	default:
		return "", &ValidationError{Field: "status", Err: ErrInvalidStatus}
	}
}

// NormalizePage applies the listing defaults: page clamped to 1..MaxPage,
// limit 10 when unset and otherwise clamped to 1..50.
func NormalizePage(page, limit int) (int, int) {
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	switch {
	case limit == 0:
		limit = DefaultPageSize
	case limit < 1:
		limit = 1
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return page, limit
}
