package inbound

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
)

const (
	maxMessageBytes = 10 * 1024 * 1024 // 10MB
	handleTimeout   = 30 * time.Second
)

// Ingester is the message handler behind every entry point.
type Ingester interface {
	Handle(ctx context.Context, env Envelope, raw []byte) Result
}

// Server accepts mail for any recipient over SMTP and hands each message to
// the ingester. Delivery is always acknowledged once the data is read.
type Server struct {
	smtpServer *smtp.Server
	ingester   Ingester
}

func NewServer(addr, domain string, ingester Ingester) *Server {
	s := &Server{ingester: ingester}

	smtpSrv := smtp.NewServer(s)
	smtpSrv.Addr = addr
	smtpSrv.Domain = domain
	smtpSrv.ReadTimeout = 30 * time.Second
	smtpSrv.WriteTimeout = 30 * time.Second
	smtpSrv.MaxMessageBytes = maxMessageBytes
	smtpSrv.MaxRecipients = 1
	smtpSrv.AllowInsecureAuth = true

	s.smtpServer = smtpSrv
	return s
}

func (s *Server) Addr() string {
	return s.smtpServer.Addr
}

func (s *Server) Start() error {
	slog.Info("inbound SMTP server starting", "addr", s.smtpServer.Addr)
	if err := s.smtpServer.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.smtpServer.Shutdown(ctx)
}

// NewSession implements smtp.Backend.
func (s *Server) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{server: s}, nil
}

type session struct {
	server *Server
	from   string
	to     string
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt accepts any address. Unknown and disabled mailboxes are handled after
// the message is stored, by forwarding it.
func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.to = strings.ToLower(strings.TrimSpace(to))
	return nil
}

func (s *session) Data(r io.Reader) error {
	// r enforces MaxMessageBytes itself and fails with smtp.ErrDataTooLarge.
	raw, err := io.ReadAll(r)
	if err != nil {
		slog.Error("failed to read inbound message data", "from", s.from, "to", s.to, "error", err)
		var smtpErr *smtp.SMTPError
		if errors.As(err, &smtpErr) {
			return smtpErr
		}
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "error reading message, try again",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	res := s.server.ingester.Handle(ctx, Envelope{From: s.from, To: s.to}, raw)
	slog.Debug("inbound SMTP message handled",
		"ingest_id", res.IngestID, "persist", res.Persist.String(), "forwarded", res.Forwarded)
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = ""
}

func (s *session) Logout() error {
	return nil
}
