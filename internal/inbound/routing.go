package inbound

import "strings"

// RoutingKey identifies a mailbox. The zero value means the recipient could not
// be split into a local part and a domain.
type RoutingKey struct {
	LocalPart string
	Domain    string
}

func (k RoutingKey) Valid() bool {
	return k.LocalPart != "" && k.Domain != ""
}

func (k RoutingKey) String() string {
	if !k.Valid() {
		return ""
	}
	return k.LocalPart + "@" + k.Domain
}

// ResolveRoutingKey lower-cases the recipient and splits it on the first "@".
func ResolveRoutingKey(recipient string) RoutingKey {
	addr := strings.ToLower(strings.TrimSpace(recipient))
	local, domain, ok := strings.Cut(addr, "@")
	if !ok {
		return RoutingKey{}
	}
	local = strings.TrimSpace(local)
	domain = strings.TrimSpace(domain)
	if local == "" || domain == "" {
		return RoutingKey{}
	}
	return RoutingKey{LocalPart: local, Domain: domain}
}
