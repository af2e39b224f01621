package inbound

import "github.com/znz-systems/mailgate/internal/models"

// Forward reasons, also used as log values.
const (
	ReasonUnparseableKey = "unparseable_key"
	ReasonLookupFailed   = "lookup_failed"
	ReasonNoMailbox      = "no_mailbox"
	ReasonInactive       = "mailbox_inactive"
	ReasonActive         = "mailbox_active"
)

type Decision struct {
	Forward bool
	Reason  string
}

// ShouldForward decides whether a message also goes to the fallback address.
// Any doubt about the mailbox resolves to forwarding. A nil mailbox with a nil
// error means no record exists.
func ShouldForward(key RoutingKey, mb *models.Mailbox, lookupErr error) Decision {
	switch {
	case !key.Valid():
		return Decision{Forward: true, Reason: ReasonUnparseableKey}
	case lookupErr != nil:
		return Decision{Forward: true, Reason: ReasonLookupFailed}
	case mb == nil:
		return Decision{Forward: true, Reason: ReasonNoMailbox}
	case !mb.IsActive():
		return Decision{Forward: true, Reason: ReasonInactive}
	default:
		return Decision{Forward: false, Reason: ReasonActive}
	}
}
