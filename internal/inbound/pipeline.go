package inbound

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/znz-systems/mailgate/internal/metrics"
	"github.com/znz-systems/mailgate/internal/models"
	"github.com/znz-systems/mailgate/internal/store"
)

const (
	// ReasonUnparseableMessage marks a forward caused by a parse failure.
	ReasonUnparseableMessage = "unparseable_message"
	// ReasonPersistFailed marks a forward for an active mailbox whose inbox
	// row could not be written.
	ReasonPersistFailed = "persist_failed"
)

// Forwarder re-sends a raw message to a single address.
type Forwarder interface {
	Forward(ctx context.Context, raw []byte, to string) error
}

// TaskRunner starts work that must not hold up the caller.
type TaskRunner interface {
	Go(ctx context.Context, name string, fn func(context.Context) error)
}

// Envelope carries the SMTP-level sender and recipient, either of which may be empty.
type Envelope struct {
	From string
	To   string
}

// Ack is the response every ingestion ends with.
type Ack struct {
	Status int
	Body   string
}

var Acknowledged = Ack{Status: http.StatusOK, Body: "ok"}

// Result describes what happened to one message. It is informational; the
// sender is always acknowledged.
type Result struct {
	IngestID  string
	Parsed    bool
	Key       RoutingKey
	Persist   store.InsertOutcome
	Decision  Decision
	Forwarded bool // a forward was scheduled, not necessarily delivered
}

func (r Result) Ack() Ack {
	return Acknowledged
}

type PipelineConfig struct {
	FallbackAddress string
	MaxBodyChars    int
}

type Pipeline struct {
	inbox     store.InboxStore
	mailboxes store.MailboxLookup
	forwarder Forwarder
	tasks     TaskRunner
	metrics   *metrics.Metrics
	cfg       PipelineConfig
	now       func() time.Time
}

func NewPipeline(inbox store.InboxStore, mailboxes store.MailboxLookup, forwarder Forwarder, tasks TaskRunner, m *metrics.Metrics, cfg PipelineConfig) *Pipeline {
	if cfg.MaxBodyChars <= 0 {
		cfg.MaxBodyChars = DefaultMaxBodyChars
	}
	return &Pipeline{
		inbox:     inbox,
		mailboxes: mailboxes,
		forwarder: forwarder,
		tasks:     tasks,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Handle runs one message through parse, persist, route and forward. It never
// fails: every error is logged and the message still reaches either the inbox
// or the fallback address. Forwarding runs in the background.
func (p *Pipeline) Handle(ctx context.Context, env Envelope, raw []byte) Result {
	res := Result{IngestID: uuid.NewString()}
	log := slog.With("ingest_id", res.IngestID)

	msg, err := ParseMessage(raw, p.now().UnixMilli(), p.cfg.MaxBodyChars)
	if err != nil {
		log.Warn("inbound message unparseable", "envelope_from", env.From, "envelope_to", env.To, "error", err)
		p.metrics.Ingest("unparseable")
		res.Decision = Decision{Forward: true, Reason: ReasonUnparseableMessage}
		p.scheduleForward(ctx, log, raw, res.Decision.Reason)
		res.Forwarded = true
		return res
	}
	res.Parsed = true
	p.metrics.Ingest("parsed")

	sender := msg.Sender
	if sender == "" {
		sender = cleanText(strings.TrimSpace(env.From))
	}
	recipient := msg.Recipient
	if recipient == "" {
		recipient = cleanText(strings.ToLower(strings.TrimSpace(env.To)))
	}
	res.Key = ResolveRoutingKey(recipient)
	log = log.With("to", recipient, "message_id", msg.MessageID)
	log.Info("inbound message parsed", "from", sender, "subject", msg.Subject)

	outcome, err := p.inbox.InsertInbound(ctx, models.InboxEntryCreateParams{
		Domain:    res.Key.Domain,
		LocalPart: res.Key.LocalPart,
		ToEmail:   recipient,
		FromEmail: sender,
		Subject:   msg.Subject,
		BodyText:  msg.Body,
		CreatedAt: msg.ReceivedAt,
		MessageID: msg.MessageID,
	})
	res.Persist = outcome
	p.metrics.Persist(outcome.String())
	switch {
	case err != nil:
		log.Error("failed to persist inbound message", "error", err)
	case outcome == store.InsertDuplicate:
		log.Info("inbound message already stored")
	default:
		log.Info("inbound message stored")
	}

	var mb *models.Mailbox
	var lookupErr error
	if res.Key.Valid() {
		mb, lookupErr = p.mailboxes.LookupMailbox(ctx, res.Key.Domain, res.Key.LocalPart)
		if errors.Is(lookupErr, store.ErrNotFound) {
			mb, lookupErr = nil, nil
		}
		if lookupErr != nil {
			log.Error("failed to look up mailbox", "error", lookupErr)
		}
	}

	res.Decision = ShouldForward(res.Key, mb, lookupErr)
	if !res.Decision.Forward && !outcome.Persisted() {
		// the inbox never got it, so the fallback copy is the only one
		res.Decision = Decision{Forward: true, Reason: ReasonPersistFailed}
	}
	if !res.Decision.Forward {
		log.Info("inbound message kept in inbox", "reason", res.Decision.Reason)
		return res
	}
	p.scheduleForward(ctx, log, raw, res.Decision.Reason)
	res.Forwarded = true
	return res
}

func (p *Pipeline) scheduleForward(ctx context.Context, log *slog.Logger, raw []byte, reason string) {
	to := p.cfg.FallbackAddress
	log.Info("forwarding inbound message", "fallback", to, "reason", reason)
	p.tasks.Go(ctx, "forward", func(ctx context.Context) error {
		if err := p.forwarder.Forward(ctx, raw, to); err != nil {
			p.metrics.Forward("failed")
			log.Error("failed to forward inbound message", "fallback", to, "error", err)
			return err
		}
		p.metrics.Forward("sent")
		log.Info("inbound message forwarded", "fallback", to)
		return nil
	})
}
