package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/znz-systems/mailgate/internal/mailbox"
	"github.com/znz-systems/mailgate/internal/metrics"
	"github.com/znz-systems/mailgate/internal/models"
	"github.com/znz-systems/mailgate/internal/store"
)

// --- Shared mock stores used by mailbox_api_test.go ---

type mockMailboxStore struct {
	byAddr   map[string]*models.Mailbox
	bySecret map[string]*models.Mailbox
	nextID   int64
	err      error
}

func newMockMailboxStore() *mockMailboxStore {
	return &mockMailboxStore{
		byAddr:   make(map[string]*models.Mailbox),
		bySecret: make(map[string]*models.Mailbox),
		nextID:   1,
	}
}

func (m *mockMailboxStore) add(mb *models.Mailbox) {
	m.byAddr[mb.Address()] = mb
	m.bySecret[mb.Secret] = mb
}

func (m *mockMailboxStore) CreateMailbox(_ context.Context, domain, localPart, secret string, createdAt int64) (*models.Mailbox, error) {
	mb := &models.Mailbox{
		ID:        m.nextID,
		Domain:    domain,
		LocalPart: localPart,
		Secret:    secret,
		Status:    models.MailboxActive,
		CreatedAt: createdAt,
	}
	if _, ok := m.byAddr[mb.Address()]; ok {
		return nil, store.ErrDuplicate
	}
	m.nextID++
	m.add(mb)
	return mb, nil
}

func (m *mockMailboxStore) LookupMailbox(_ context.Context, domain, localPart string) (*models.Mailbox, error) {
	mb, ok := m.byAddr[localPart+"@"+domain]
	if !ok {
		return nil, store.ErrNotFound
	}
	return mb, nil
}

func (m *mockMailboxStore) LookupMailboxBySecret(_ context.Context, secret string) (*models.Mailbox, error) {
	if m.err != nil {
		return nil, m.err
	}
	mb, ok := m.bySecret[secret]
	if !ok {
		return nil, store.ErrNotFound
	}
	return mb, nil
}

type mockInboxStore struct {
	entries []models.InboxEntry
}

func (m *mockInboxStore) InsertInbound(_ context.Context, _ models.InboxEntryCreateParams) (store.InsertOutcome, error) {
	return store.InsertFailed, errors.New("not implemented")
}

func (m *mockInboxStore) ListInbox(_ context.Context, domain, localPart, status string, page, pageSize int) ([]models.InboxEntry, int, error) {
	var matched []models.InboxEntry
	for _, e := range m.entries {
		if e.Domain == domain && e.LocalPart == localPart && e.Status == status {
			matched = append(matched, e)
		}
	}
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (m *mockInboxStore) SoftDelete(_ context.Context, id int64, domain, localPart string) (int64, error) {
	for i := range m.entries {
		e := &m.entries[i]
		if e.ID == id && e.Domain == domain && e.LocalPart == localPart {
			e.Status = models.InboxDeleted
			return 1, nil
		}
	}
	return 0, nil
}

type openDomains struct{}

func (openDomains) DomainAllowed(string) bool { return true }

type apiFixture struct {
	mailboxes *mockMailboxStore
	inbox     *mockInboxStore
	metrics   *metrics.Metrics
	handler   *MailboxAPIHandler
}

func newAPIFixture() *apiFixture {
	f := &apiFixture{
		mailboxes: newMockMailboxStore(),
		inbox:     &mockInboxStore{},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	svc := mailbox.NewService(f.mailboxes, f.inbox, openDomains{})
	f.handler = NewMailboxAPIHandler(svc, f.metrics)
	return f
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, rr.Body.String())
	}
	return body
}
