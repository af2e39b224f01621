package inbound

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const (
	// DefaultMaxBodyChars caps the stored body, counted in characters.
	DefaultMaxBodyChars = 200000

	// EmptyBodyPlaceholder is stored when a message has neither a text nor an HTML body.
	EmptyBodyPlaceholder = "(empty content)"
)

// ErrUnparseable is returned when the payload cannot be read as a message at all.
var ErrUnparseable = errors.New("unparseable message")

// Message is the normalized view of a raw RFC 822 message.
type Message struct {
	Sender     string
	Recipient  string // lower-cased, empty when the message names none
	Subject    string
	Body       string
	MessageID  string // empty when absent
	ReceivedAt int64  // epoch milliseconds
}

// ParseMessage extracts the fields needed for routing and storage. Malformed
// parts are skipped; only an empty payload or an unreadable header block fails.
func ParseMessage(raw []byte, receivedAt int64, maxBodyChars int) (Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Message{}, fmt.Errorf("%w: empty payload", ErrUnparseable)
	}
	if maxBodyChars <= 0 {
		maxBodyChars = DefaultMaxBodyChars
	}

	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return Message{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	defer reader.Close()

	msg := Message{
		Sender:     cleanText(senderFromHeader(&reader.Header)),
		Recipient:  cleanText(recipientFromHeader(&reader.Header)),
		Subject:    cleanText(subjectFromHeader(&reader.Header)),
		MessageID:  cleanText(strings.TrimSpace(reader.Header.Get("Message-Id"))),
		ReceivedAt: receivedAt,
	}

	text, html := readBodies(reader)
	body := strings.TrimSpace(cleanText(firstNonEmpty(text, html)))
	if body == "" {
		body = EmptyBodyPlaceholder
	}
	msg.Body = truncateChars(body, maxBodyChars)
	return msg, nil
}

func senderFromHeader(h *mail.Header) string {
	if list, err := h.AddressList("From"); err == nil && len(list) > 0 && list[0].Address != "" {
		return list[0].Address
	}
	return strings.TrimSpace(h.Get("From"))
}

func recipientFromHeader(h *mail.Header) string {
	list, err := h.AddressList("To")
	if err != nil || len(list) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(list[0].Address))
}

func subjectFromHeader(h *mail.Header) string {
	subject, err := h.Subject()
	if err != nil {
		return strings.TrimSpace(h.Get("Subject"))
	}
	return strings.TrimSpace(subject)
}

// readBodies returns the first non-empty plain-text and HTML inline parts, trimmed.
func readBodies(reader *mail.Reader) (text, html string) {
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return text, html
		}
		if part == nil {
			return text, html
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return text, html
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType := "text/plain"
		if ct := header.Get("Content-Type"); ct != "" {
			parsed, _, perr := mime.ParseMediaType(ct)
			if perr != nil {
				continue
			}
			mediaType = strings.ToLower(parsed)
		}
		if mediaType != "text/plain" && mediaType != "text/html" {
			continue
		}

		payload, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		content := strings.TrimSpace(string(payload))
		switch {
		case mediaType == "text/plain" && text == "":
			text = content
		case mediaType == "text/html" && html == "":
			html = content
		}
	}
}

// cleanText makes s storable as Postgres TEXT. Undecodable 8-bit bytes, such
// as those left by a missing, wrong or unknown charset, become U+FFFD and NUL
// bytes are dropped.
func cleanText(s string) string {
	if strings.IndexByte(s, 0) >= 0 {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

func truncateChars(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
