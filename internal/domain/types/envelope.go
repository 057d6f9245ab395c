package types

// EnvelopeType selects the envelope layout.
type EnvelopeType byte

const (
	// EnvelopeType0 is used once both sides share the topic's symmetric key.
	EnvelopeType0 EnvelopeType = 0
	// EnvelopeType1 carries the sender's public key for first contact.
	EnvelopeType1 EnvelopeType = 1
)

// SerializeOptions selects the envelope type. For type1, the key is the
// agreement between SelfPublicKey and PeerPublicKey.
type SerializeOptions struct {
	Type          EnvelopeType
	SelfPublicKey X25519Public
	PeerPublicKey X25519Public
}

// EnvelopeInfo describes a decoded envelope.
type EnvelopeInfo struct {
	Type            EnvelopeType
	SenderPublicKey *X25519Public // type1 only
}
