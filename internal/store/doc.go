// Package store provides file-based persistence for the client's state.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk. All methods are concurrency-safe via
// internal locking. Every store also runs purely in memory when constructed
// with an empty directory.
//
// The package includes stores for:
//   - Key material, encrypted at rest (KeychainFileStore)
//   - Pairings (PairingFileStore)
//   - Settled sessions (SessionFileStore)
//   - RPC history (HistoryFileStore)
package store
