// Package history is the RPC idempotency ledger. Every request sent or
// received is recorded by id before it is acted on, and every response is
// matched against its request exactly once.
package history
