// Package crypto exposes the minimal primitives used by the protocol engine.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     PublicFromPrivate, DH)
//   - Shared key derivation: HKDF-SHA256 over the raw DH secret (DeriveSharedKey)
//   - Topic derivation and random topics/keys (TopicFromKey, RandomTopic,
//     RandomSymmetricKey)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental reallocations. Callers should treat returned secrets as
// sensitive and zero them with memzero when practical.
package crypto
