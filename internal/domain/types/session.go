package types

import "time"

// Namespace groups the accounts, methods and events granted under one
// CAIP-2 namespace or chain.
type Namespace struct {
	Chains   []string `json:"chains,omitempty"`
	Accounts []string `json:"accounts"`
	Methods  []string `json:"methods"`
	Events   []string `json:"events"`
}

// Namespaces maps a namespace key ("eip155" or "eip155:1") to its grant.
type Namespaces map[string]Namespace

// Clone returns a deep copy.
func (n Namespaces) Clone() Namespaces {
	if n == nil {
		return nil
	}
	out := make(Namespaces, len(n))
	for k, v := range n {
		out[k] = Namespace{
			Chains:   append([]string(nil), v.Chains...),
			Accounts: append([]string(nil), v.Accounts...),
			Methods:  append([]string(nil), v.Methods...),
			Events:   append([]string(nil), v.Events...),
		}
	}
	return out
}

// Participant is one side of a session.
type Participant struct {
	PublicKey string      `json:"public_key"`
	Metadata  AppMetadata `json:"metadata"`
}

// Session is a settled authorization channel between two parties.
type Session struct {
	Topic            Topic                `json:"topic"`
	PairingTopic     Topic                `json:"pairing_topic,omitempty"`
	Relay            RelayProtocolOptions `json:"relay"`
	Self             Participant          `json:"self"`
	Peer             Participant          `json:"peer"`
	Controller       string               `json:"controller"`
	Namespaces       Namespaces           `json:"namespaces"`
	Expiry           int64                `json:"expiry"`
	Acknowledged     bool                 `json:"acknowledged"`
	SelfIsController bool                 `json:"self_is_controller"`

	// Timestamp is the id timestamp (unix millis) of the last applied
	// namespace update.
	Timestamp int64 `json:"timestamp"`
}

// PeerIsController reports whether the peer holds update rights. Controller
// decides when set, SelfIsController otherwise.
func (s Session) PeerIsController() bool {
	if s.Controller != "" {
		return s.Controller == s.Peer.PublicKey
	}
	return !s.SelfIsController
}

// ExpiryDate returns Expiry as a time.
func (s Session) ExpiryDate() time.Time { return Unix(s.Expiry) }

// IsExpired reports whether the session expired at now.
func (s Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiryDate())
}

const (
	// SessionDefaultTTL is the lifetime of a freshly settled session.
	SessionDefaultTTL = 7 * 24 * time.Hour
	// SessionMaxTTL bounds how far an extension may push the expiry.
	SessionMaxTTL = 7 * 24 * time.Hour
)
