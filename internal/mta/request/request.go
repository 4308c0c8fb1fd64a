// Package request defines the normalized triplet both MTA front-ends
// (Postfix policy delegation and the SunJMS UDP listener) decode their
// wire format into before handing it to the orchestrator, which is
// otherwise protocol-agnostic.
package request

import "net"

// Triplet is the greylisting key plus the extra fields SPF and the
// HELO-aware checks need.
type Triplet struct {
	ClientAddress net.IP
	Sender        string
	Recipient     string
	Helo          string
}

// Key returns the canonical (client, sender, recipient) string used by the
// Bloom ring, delegated to the bloom package's own canonicalization so
// there is exactly one place that defines "the same triplet".
func (t Triplet) Key(canon func(sender, recipient, client string) string) string {
	return canon(t.Sender, t.Recipient, t.ClientAddress.String())
}
