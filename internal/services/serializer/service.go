package serializer

import (
	"encoding/json"
	"fmt"

	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/protocol/envelope"
)

var (
	// ErrKeyNotFound is returned when no key is installed for the topic.
	// There is no plaintext fallback.
	ErrKeyNotFound = domaintypes.NewError(domaintypes.KindCrypto, "serializer: no key for topic")
	// ErrDecode is returned when a decrypted payload is not valid JSON for
	// the target.
	ErrDecode = domaintypes.NewError(domaintypes.KindCrypto, "serializer: payload decode failed")
	// ErrUnknownType is returned for an envelope type this client cannot build.
	ErrUnknownType = domaintypes.NewError(domaintypes.KindCrypto, "serializer: unknown envelope type")
)

// Service implements domain.Serializer.
type Service struct {
	kms domain.KeyManager
}

// New returns a serializer using kms for key lookups.
func New(kms domain.KeyManager) *Service { return &Service{kms: kms} }

// Serialize JSON-encodes payload and seals it for topic.
//
// Type0 uses the topic's symmetric key. Type1 derives the key from
// opts.SelfPublicKey and opts.PeerPublicKey and embeds SelfPublicKey so the
// receiver can derive the same key.
func (s *Service) Serialize(topic domain.Topic, payload any, opts domain.SerializeOptions) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serializer: encode payload: %w", err)
	}

	switch opts.Type {
	case domain.EnvelopeType0:
		key, ok, err := s.kms.GetSymmetricKey(topic)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrKeyNotFound, topic)
		}
		return envelope.Seal(key, plaintext, nil)

	case domain.EnvelopeType1:
		keys, err := s.kms.PerformKeyAgreement(opts.SelfPublicKey, opts.PeerPublicKey.Hex())
		if err != nil {
			return "", err
		}
		self := opts.SelfPublicKey
		return envelope.Seal(keys.SharedKey, plaintext, &self)

	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownType, opts.Type)
	}
}

// Deserialize opens message received on topic and JSON-decodes it into out.
//
// Steps:
//  1. If topic has a symmetric key, try it as a type0 envelope.
//  2. Otherwise, or if that fails, if one of our public keys is bound to
//     topic, read the sender key from a type1 envelope and derive the key.
//  3. Decode the plaintext into out. out is only valid when err is nil.
func (s *Service) Deserialize(topic domain.Topic, message string, out any) (domain.EnvelopeInfo, error) {
	var lastErr error

	key, ok, err := s.kms.GetSymmetricKey(topic)
	if err != nil {
		return domain.EnvelopeInfo{}, err
	}
	if ok {
		pt, err := envelope.Open(key, message, domain.EnvelopeType0)
		if err == nil {
			return domain.EnvelopeInfo{Type: domain.EnvelopeType0}, decode(pt, out)
		}
		lastErr = err
	}

	self, ok, err := s.kms.GetPublicKey(topic)
	if err != nil {
		return domain.EnvelopeInfo{}, err
	}
	if ok {
		info, pt, err := s.openType1(self, message)
		if err == nil {
			return info, decode(pt, out)
		}
		lastErr = err
	}

	if lastErr == nil {
		return domain.EnvelopeInfo{}, fmt.Errorf("%w: %s", ErrKeyNotFound, topic)
	}
	return domain.EnvelopeInfo{}, lastErr
}

func (s *Service) openType1(self domain.X25519Public, message string) (domain.EnvelopeInfo, []byte, error) {
	env, err := envelope.Decode(message, domain.EnvelopeType1)
	if err != nil {
		return domain.EnvelopeInfo{}, nil, err
	}
	keys, err := s.kms.PerformKeyAgreement(self, env.PublicKey.Hex())
	if err != nil {
		return domain.EnvelopeInfo{}, nil, err
	}
	pt, err := env.Open(keys.SharedKey)
	if err != nil {
		return domain.EnvelopeInfo{}, nil, err
	}
	return domain.EnvelopeInfo{Type: domain.EnvelopeType1, SenderPublicKey: env.PublicKey}, pt, nil
}

func decode(plaintext []byte, out any) error {
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// Compile-time assertion that Service implements domain.Serializer.
var _ domain.Serializer = (*Service)(nil)
