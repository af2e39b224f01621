package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

var smtpSendMail = smtp.SendMail

// ErrIncompleteCredentials is returned when only one of user and password is set.
var ErrIncompleteCredentials = errors.New("mail: SMTP user and password must be set together")

// SMTPForwarder relays raw messages through an SMTP server unchanged.
type SMTPForwarder struct {
	host string
	port int
	user string
	pass string
	from string
}

// NewSMTPForwarder creates a relay client. Authentication is used only when
// both user and pass are set.
func NewSMTPForwarder(host string, port int, user, pass, from string) (*SMTPForwarder, error) {
	if (user == "") != (pass == "") {
		return nil, ErrIncompleteCredentials
	}
	return &SMTPForwarder{
		host: host,
		port: port,
		user: user,
		pass: pass,
		from: from,
	}, nil
}

// Forward sends raw to a single recipient with the configured envelope sender.
// The relay call has no deadline of its own, so ctx is only checked up front.
func (c *SMTPForwarder) Forward(ctx context.Context, raw []byte, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", c.host, c.port)

	var auth sasl.Client
	if c.user != "" && c.pass != "" {
		auth = sasl.NewPlainClient("", c.user, c.pass)
	}

	if err := smtpSendMail(addr, auth, c.from, []string{to}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("mail: relay to %s via %s: %w", to, addr, err)
	}
	return nil
}

func (c *SMTPForwarder) Name() string {
	return "smtp"
}
