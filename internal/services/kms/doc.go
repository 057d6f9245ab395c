// Package kms is the key management service: it owns every private key,
// agreement secret and per-topic symmetric key, and persists them through a
// domain.KeychainStore.
//
// Each topic has at most one active symmetric key. Setting a key for a topic
// replaces the previous one, whether it was installed directly or derived by
// key agreement.
package kms
