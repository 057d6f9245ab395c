package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"walletconnect/internal/domain"
)

// TopicFromKey returns hex(sha256(key)).
func TopicFromKey(key domain.SymmetricKey) domain.Topic {
	sum := sha256.Sum256(key[:])
	return hex.EncodeToString(sum[:])
}

// TopicFromPublicKey returns hex(sha256(pub)), the topic a key owner
// listens on for type1 envelopes.
func TopicFromPublicKey(pub domain.X25519Public) domain.Topic {
	sum := sha256.Sum256(pub[:])
	return hex.EncodeToString(sum[:])
}

// RandomSymmetricKey returns 32 random bytes.
func RandomSymmetricKey() (domain.SymmetricKey, error) {
	var k domain.SymmetricKey
	_, err := rand.Read(k[:])
	return k, err
}

// RandomTopic returns 32 random bytes, hex-encoded.
func RandomTopic() (domain.Topic, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
