package types

import "time"

const (
	// PairingInactiveTTL is the lifetime of a pairing that has not been used yet.
	PairingInactiveTTL = 5 * time.Minute
	// PairingActiveTTL is the lifetime after the first successful exchange.
	PairingActiveTTL = 30 * 24 * time.Hour
)

// Pairing is the provisional encrypted channel used to bootstrap a session.
type Pairing struct {
	Topic             Topic                `json:"topic"`
	Relay             RelayProtocolOptions `json:"relay"`
	PeerMetadata      *AppMetadata         `json:"peer_metadata,omitempty"`
	Active            bool                 `json:"active"`
	Expiry            int64                `json:"expiry"`
	RegisteredMethods []string             `json:"registered_methods,omitempty"`
}

// NewPairing returns an inactive pairing expiring PairingInactiveTTL after now.
func NewPairing(topic Topic, relay RelayProtocolOptions, methods []string, now time.Time) Pairing {
	return Pairing{
		Topic:             topic,
		Relay:             relay,
		Expiry:            now.Add(PairingInactiveTTL).Unix(),
		RegisteredMethods: append([]string(nil), methods...),
	}
}

// Activate marks the pairing active and extends its lifetime.
func (p *Pairing) Activate(now time.Time) {
	p.Active = true
	p.Expiry = now.Add(PairingActiveTTL).Unix()
}

// ExpiryDate returns Expiry as a time.
func (p Pairing) ExpiryDate() time.Time { return Unix(p.Expiry) }

// IsExpired reports whether the pairing expired at now.
func (p Pairing) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiryDate())
}
