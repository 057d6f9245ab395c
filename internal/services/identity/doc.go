// Package identity exposes the client identity presented to the relay.
//
// The client id is the did:key of a persistent Ed25519 key held by the key
// manager. The package also enforces the passphrase policy for the
// encrypted keychain.
package identity
