package models

// Mailbox statuses. Anything other than MailboxActive is treated as disabled.
const (
	MailboxActive   = "active"
	MailboxDisabled = "disabled"
)

// Inbox entry statuses.
const (
	InboxVisible = "o1"
	InboxDeleted = "o2"
)

type Mailbox struct {
	ID        int64  `db:"id"`
	Domain    string `db:"domain"`
	LocalPart string `db:"local_part"`
	Secret    string `db:"secret"`
	Status    string `db:"status"`
	CreatedAt int64  `db:"created_at"` // epoch milliseconds
}

// Address returns the mailbox address derived from its routing key.
func (m *Mailbox) Address() string {
	return m.LocalPart + "@" + m.Domain
}

// IsActive reports whether mail for this mailbox should stay in the inbox only.
func (m *Mailbox) IsActive() bool {
	return m.Status == MailboxActive
}

type InboxEntry struct {
	ID        int64  `db:"id"`
	Domain    string `db:"domain"`
	LocalPart string `db:"local_part"`
	ToEmail   string `db:"to_email"`
	FromEmail string `db:"from_email"`
	Subject   string `db:"subject"`
	BodyText  string `db:"body_text"`
	Status    string `db:"status"`
	CreatedAt int64  `db:"created_at"` // epoch milliseconds
	MessageID string `db:"message_id"` // empty when the message carried none
}

type InboxEntryCreateParams struct {
	Domain    string
	LocalPart string
	ToEmail   string
	FromEmail string
	Subject   string
	BodyText  string
	CreatedAt int64
	MessageID string
}
