package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/znz-systems/mailgate/internal/inbound"
)

const defaultInboundAPIMaxBodyBytes int64 = 10 * 1024 * 1024

// Ingester handles one raw inbound message.
type Ingester interface {
	Handle(ctx context.Context, env inbound.Envelope, raw []byte) inbound.Result
}

// InboundAPIHandler accepts raw RFC 822 messages over HTTP, for mail providers
// that deliver by webhook instead of SMTP.
type InboundAPIHandler struct {
	ingester     Ingester
	apiToken     string
	maxBodyBytes int64
}

func NewInboundAPIHandler(ingester Ingester, apiToken string, maxBodyBytes int64) *InboundAPIHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultInboundAPIMaxBodyBytes
	}
	return &InboundAPIHandler{
		ingester:     ingester,
		apiToken:     strings.TrimSpace(apiToken),
		maxBodyBytes: maxBodyBytes,
	}
}

// HandleReceiveEmail reads the raw message body and the optional
// X-Envelope-From and X-Envelope-To headers. Once the body is read the answer
// is always 200 "ok", whatever happens to the message afterwards.
func (h *InboundAPIHandler) HandleReceiveEmail(w http.ResponseWriter, r *http.Request) {
	if h.apiToken != "" && !validBearerToken(r.Header.Get("Authorization"), h.apiToken) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		slog.Error("failed to read inbound message body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	env := inbound.Envelope{
		From: strings.TrimSpace(r.Header.Get("X-Envelope-From")),
		To:   strings.TrimSpace(r.Header.Get("X-Envelope-To")),
	}
	ack := h.ingester.Handle(r.Context(), env, raw).Ack()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(ack.Status)
	_, _ = io.WriteString(w, ack.Body)
}

func validBearerToken(headerValue, expected string) bool {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(headerValue, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, prefix))
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}
