package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/znz-systems/mailgate/internal/mailbox"
	"github.com/znz-systems/mailgate/internal/models"
)

func post(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestHandleCreate(t *testing.T) {
	f := newAPIFixture()

	rr := post(f.handler.HandleCreate, "/create", `{"email":"Alice@Example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["ok"] != true || body["email"] != "alice@example.com" {
		t.Fatalf("unexpected body: %v", body)
	}
	key, _ := body["key"].(string)
	if len(key) != 16 {
		t.Fatalf("expected 16 character key, got %q", key)
	}
	if _, ok := f.mailboxes.bySecret[key]; !ok {
		t.Fatal("returned key was not stored")
	}

	rr = post(f.handler.HandleCreate, "/create", `{"email":"alice@example.com"}`)
	body = decodeBody(t, rr)
	if rr.Code != http.StatusOK || body["ok"] != false || body["msg"] != "mailbox already exists" {
		t.Fatalf("expected duplicate failure, got %d %v", rr.Code, body)
	}
}

func TestHandleCreate_InvalidInput(t *testing.T) {
	f := newAPIFixture()
	tests := map[string]string{
		`{}`:                 "invalid email",
		`{"email":"no-at"}`:  "invalid email",
		`{"email":"@x.com"}`: "invalid email",
		`not json`:           "invalid JSON body",
		`{"email": 42}`:      "invalid JSON body",
	}
	for in, msg := range tests {
		rr := post(f.handler.HandleCreate, "/create", in)
		body := decodeBody(t, rr)
		if rr.Code != http.StatusOK || body["ok"] != false || body["msg"] != msg {
			t.Errorf("input %s: expected %q, got %d %v", in, msg, rr.Code, body)
		}
	}
	if got := testutil.ToFloat64(f.metrics.APIRequestsTotal.WithLabelValues("create", "false")); got != float64(len(tests)) {
		t.Fatalf("expected %d failed create metrics, got %v", len(tests), got)
	}
}

func TestHandleVerify(t *testing.T) {
	f := newAPIFixture()
	f.mailboxes.add(&models.Mailbox{ID: 1, Domain: "example.com", LocalPart: "on", Secret: "GOODKEY", Status: models.MailboxActive})
	f.mailboxes.add(&models.Mailbox{ID: 2, Domain: "example.com", LocalPart: "off", Secret: "OLDKEY", Status: models.MailboxDisabled})

	rr := post(f.handler.HandleVerify, "/verify", `{"key":"GOODKEY"}`)
	body := decodeBody(t, rr)
	if body["ok"] != true || body["email"] != "on@example.com" {
		t.Fatalf("unexpected body: %v", body)
	}

	tests := map[string]string{
		`{}`:               "missing key",
		`{"key":"nope"}`:   "invalid key",
		`{"key":"OLDKEY"}`: "inactive key",
	}
	for in, msg := range tests {
		body := decodeBody(t, post(f.handler.HandleVerify, "/verify", in))
		if body["ok"] != false || body["msg"] != msg {
			t.Errorf("input %s: expected %q, got %v", in, msg, body)
		}
	}
}

func TestHandleInbox(t *testing.T) {
	f := newAPIFixture()
	f.mailboxes.add(&models.Mailbox{ID: 1, Domain: "example.com", LocalPart: "alice", Secret: "KEY", Status: models.MailboxActive})
	f.inbox.entries = []models.InboxEntry{
		{ID: 3, Domain: "example.com", LocalPart: "alice", FromEmail: "a@x.com", Subject: "s3", BodyText: "b3", Status: models.InboxVisible, CreatedAt: 3},
		{ID: 2, Domain: "example.com", LocalPart: "alice", Status: models.InboxDeleted, CreatedAt: 2},
		{ID: 1, Domain: "example.com", LocalPart: "alice", Subject: "s1", Status: models.InboxVisible, CreatedAt: 1},
		{ID: 9, Domain: "example.com", LocalPart: "bob", Status: models.InboxVisible, CreatedAt: 9},
	}

	req := httptest.NewRequest(http.MethodGet, "/inbox?key=KEY&page=abc&limit=500", nil)
	rr := httptest.NewRecorder()
	f.handler.HandleInbox(rr, req)

	body := decodeBody(t, rr)
	if body["ok"] != true || body["email"] != "alice@example.com" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["page"] != float64(1) || body["limit"] != float64(50) || body["total"] != float64(2) {
		t.Fatalf("unexpected paging: %v", body)
	}
	list := body["list"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 visible entries, got %d", len(list))
	}
	first := list[0].(map[string]any)
	if first["id"] != float64(3) || first["from_email"] != "a@x.com" || first["subject"] != "s3" || first["body_text"] != "b3" {
		t.Fatalf("unexpected first entry: %v", first)
	}
}

func TestHandleInbox_StatusAndPaging(t *testing.T) {
	f := newAPIFixture()
	f.mailboxes.add(&models.Mailbox{ID: 1, Domain: "example.com", LocalPart: "alice", Secret: "KEY", Status: models.MailboxActive})
	f.inbox.entries = []models.InboxEntry{
		{ID: 1, Domain: "example.com", LocalPart: "alice", Status: models.InboxVisible},
		{ID: 2, Domain: "example.com", LocalPart: "alice", Status: models.InboxDeleted},
	}

	get := func(query string) map[string]any {
		rr := httptest.NewRecorder()
		f.handler.HandleInbox(rr, httptest.NewRequest(http.MethodGet, "/inbox?key=KEY"+query, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", query, rr.Code)
		}
		return decodeBody(t, rr)
	}

	body := get("&status=O2")
	list, _ := body["list"].([]any)
	if body["ok"] != true || len(list) != 1 || list[0].(map[string]any)["id"] != float64(2) {
		t.Fatalf("expected the deleted entry, got %v", body)
	}

	if body := get("&status=archived"); body["ok"] != false || body["msg"] != "invalid status" {
		t.Fatalf("expected invalid status, got %v", body)
	}

	body = get("&page=9223372036854775807&limit=10")
	if body["ok"] != true || body["page"] != float64(mailbox.MaxPage) {
		t.Fatalf("expected capped page, got %v", body)
	}
}

func TestHandleInbox_KeySources(t *testing.T) {
	f := newAPIFixture()
	f.mailboxes.add(&models.Mailbox{ID: 1, Domain: "example.com", LocalPart: "alice", Secret: "KEY", Status: models.MailboxActive})

	bearer := httptest.NewRequest(http.MethodGet, "/inbox", nil)
	bearer.Header.Set("Authorization", "Bearer KEY")
	header := httptest.NewRequest(http.MethodGet, "/inbox", nil)
	header.Header.Set("X-Secret", "KEY")
	posted := httptest.NewRequest(http.MethodPost, "/inbox", strings.NewReader(`{"key":"KEY","page":"1","limit":5}`))

	for name, req := range map[string]*http.Request{"bearer": bearer, "x-secret": header, "body": posted} {
		rr := httptest.NewRecorder()
		f.handler.HandleInbox(rr, req)
		body := decodeBody(t, rr)
		if body["ok"] != true {
			t.Errorf("%s: expected ok, got %v", name, body)
		}
	}

	rr := httptest.NewRecorder()
	f.handler.HandleInbox(rr, httptest.NewRequest(http.MethodGet, "/inbox", nil))
	if body := decodeBody(t, rr); body["ok"] != false || body["msg"] != "missing key" {
		t.Fatalf("expected missing key, got %v", body)
	}
}

func TestHandleInbox_StoreErrorIs500(t *testing.T) {
	f := newAPIFixture()
	f.mailboxes.err = errors.New("connection refused")

	rr := httptest.NewRecorder()
	f.handler.HandleInbox(rr, httptest.NewRequest(http.MethodGet, "/inbox?key=KEY", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["ok"] != false || strings.Contains(body["msg"].(string), "connection refused") {
		t.Fatalf("internal error details must not leak: %v", body)
	}
}

func TestHandleDelete(t *testing.T) {
	f := newAPIFixture()
	f.mailboxes.add(&models.Mailbox{ID: 1, Domain: "example.com", LocalPart: "alice", Secret: "KEY", Status: models.MailboxActive})
	f.inbox.entries = []models.InboxEntry{
		{ID: 7, Domain: "example.com", LocalPart: "alice", Status: models.InboxVisible},
		{ID: 8, Domain: "example.com", LocalPart: "bob", Status: models.InboxVisible},
	}

	body := decodeBody(t, post(f.handler.HandleDelete, "/delete", `{"key":"KEY","id":"7"}`))
	if body["ok"] != true {
		t.Fatalf("expected ok, got %v", body)
	}
	if f.inbox.entries[0].Status != models.InboxDeleted {
		t.Fatal("expected entry 7 to be soft-deleted")
	}

	body = decodeBody(t, post(f.handler.HandleDelete, "/delete", `{"key":"KEY","id":8}`))
	if body["ok"] != true || f.inbox.entries[1].Status != models.InboxVisible {
		t.Fatalf("foreign id must be a no-op success, got %v", body)
	}

	body = decodeBody(t, post(f.handler.HandleDelete, "/delete", `{"key":"KEY"}`))
	if body["ok"] != false || body["msg"] != "invalid id" {
		t.Fatalf("expected invalid id, got %v", body)
	}
}

func TestNotFound(t *testing.T) {
	rr := httptest.NewRecorder()
	NotFound(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["ok"] != false || body["msg"] != "Not Found" {
		t.Fatalf("unexpected body: %v", body)
	}
}
