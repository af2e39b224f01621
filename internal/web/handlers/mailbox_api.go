package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/znz-systems/mailgate/internal/mailbox"
	"github.com/znz-systems/mailgate/internal/metrics"
	"github.com/znz-systems/mailgate/internal/models"
)

const maxAPIBodyBytes int64 = 64 * 1024

// MailboxService is the mailbox operation set exposed over HTTP.
type MailboxService interface {
	Create(ctx context.Context, in mailbox.CreateInput) (*models.Mailbox, error)
	Verify(ctx context.Context, key string) (*models.Mailbox, error)
	Inbox(ctx context.Context, in mailbox.InboxInput) (*mailbox.InboxPage, error)
	Delete(ctx context.Context, in mailbox.DeleteInput) error
}

// MailboxAPIHandler serves the key-gated mailbox API. Every answer uses the
// {ok, msg} envelope; business failures are reported with HTTP 200.
type MailboxAPIHandler struct {
	mailboxes MailboxService
	metrics   *metrics.Metrics
}

func NewMailboxAPIHandler(mailboxes MailboxService, m *metrics.Metrics) *MailboxAPIHandler {
	return &MailboxAPIHandler{mailboxes: mailboxes, metrics: m}
}

type createResponse struct {
	envelope
	Email string `json:"email"`
	Key   string `json:"key"`
}

type verifyResponse struct {
	envelope
	Email string `json:"email"`
}

type inboxItem struct {
	ID        int64  `json:"id"`
	FromEmail string `json:"from_email"`
	Subject   string `json:"subject"`
	BodyText  string `json:"body_text"`
	CreatedAt int64  `json:"created_at"`
}

type inboxResponse struct {
	envelope
	Email string      `json:"email"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Total int         `json:"total"`
	List  []inboxItem `json:"list"`
}

// HandleCreate registers a mailbox: POST /create {"email": "..."}.
func (h *MailboxAPIHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, "create", err)
		return
	}

	mb, err := h.mailboxes.Create(r.Context(), mailbox.CreateInput{Email: req.Email})
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	h.metrics.APIRequest("create", true)
	writeJSON(w, http.StatusOK, createResponse{
		envelope: okEnvelope("created"),
		Email:    mb.Address(),
		Key:      mb.Secret,
	})
}

// HandleVerify checks a secret: POST /verify {"key": "..."}.
func (h *MailboxAPIHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, "verify", err)
		return
	}

	mb, err := h.mailboxes.Verify(r.Context(), requestKey(r, req.Key))
	if err != nil {
		h.fail(w, "verify", err)
		return
	}
	h.metrics.APIRequest("verify", true)
	writeJSON(w, http.StatusOK, verifyResponse{
		envelope: okEnvelope("verified"),
		Email:    mb.Address(),
	})
}

// HandleInbox lists entries: GET /inbox?key=&page=&limit=&status= or
// POST /inbox with the same fields in a JSON body.
func (h *MailboxAPIHandler) HandleInbox(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key    string  `json:"key"`
		Page   flexInt `json:"page"`
		Limit  flexInt `json:"limit"`
		Status string  `json:"status"`
	}
	if r.Method == http.MethodPost {
		if err := decodeJSON(w, r, &req); err != nil {
			h.fail(w, "inbox", err)
			return
		}
	} else {
		q := r.URL.Query()
		req.Page = flexInt(queryInt(q.Get("page")))
		req.Limit = flexInt(queryInt(q.Get("limit")))
		req.Status = q.Get("status")
	}

	page, err := h.mailboxes.Inbox(r.Context(), mailbox.InboxInput{
		Key:    requestKey(r, req.Key),
		Page:   int(req.Page),
		Limit:  int(req.Limit),
		Status: req.Status,
	})
	if err != nil {
		h.fail(w, "inbox", err)
		return
	}

	list := make([]inboxItem, 0, len(page.List))
	for _, e := range page.List {
		list = append(list, inboxItem{
			ID:        e.ID,
			FromEmail: e.FromEmail,
			Subject:   e.Subject,
			BodyText:  e.BodyText,
			CreatedAt: e.CreatedAt,
		})
	}
	h.metrics.APIRequest("inbox", true)
	writeJSON(w, http.StatusOK, inboxResponse{
		envelope: okEnvelope("ok"),
		Email:    page.Email,
		Page:     page.Page,
		Limit:    page.Limit,
		Total:    page.Total,
		List:     list,
	})
}

// HandleDelete soft-deletes one entry: POST /delete {"key": "...", "id": 1}.
func (h *MailboxAPIHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string  `json:"key"`
		ID  flexInt `json:"id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, "delete", err)
		return
	}

	err := h.mailboxes.Delete(r.Context(), mailbox.DeleteInput{
		Key: requestKey(r, req.Key),
		ID:  int64(req.ID),
	})
	if err != nil {
		h.fail(w, "delete", err)
		return
	}
	h.metrics.APIRequest("delete", true)
	writeJSON(w, http.StatusOK, okEnvelope("deleted"))
}

func (h *MailboxAPIHandler) fail(w http.ResponseWriter, op string, err error) {
	h.metrics.APIRequest(op, false)

	var verr *mailbox.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, mailbox.ErrMissingKey),
		errors.Is(err, mailbox.ErrInvalidKey),
		errors.Is(err, mailbox.ErrInactiveKey),
		errors.Is(err, mailbox.ErrMailboxExists):
		writeJSON(w, http.StatusOK, failEnvelope(err.Error()))
	default:
		slog.Error("mailbox api request failed", "op", op, "error", err)
		writeJSON(w, http.StatusInternalServerError, failEnvelope("internal error"))
	}
}

// requestKey picks the mailbox secret from the query string, then the body,
// then the Authorization bearer token, then the X-Secret header.
func requestKey(r *http.Request, bodyKey string) string {
	if k := strings.TrimSpace(r.URL.Query().Get("key")); k != "" {
		return k
	}
	if k := strings.TrimSpace(bodyKey); k != "" {
		return k
	}
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		if k := strings.TrimSpace(auth[7:]); k != "" {
			return k
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Secret"))
}

// decodeJSON reads a JSON object body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxAPIBodyBytes)
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &mailbox.ValidationError{Field: "body", Err: errors.New("payload too large")}
		}
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(buf.Bytes())) == 0 {
		return nil
	}
	if err := json.Unmarshal(buf.Bytes(), v); err != nil {
		return &mailbox.ValidationError{Field: "body", Err: errors.New("invalid JSON body")}
	}
	return nil
}

// flexInt accepts a JSON number or a numeric string. Anything else decodes as 0.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	*f = flexInt(queryInt(s))
	return nil
}

func queryInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}
