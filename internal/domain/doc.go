// Package domain holds the protocol data model (topics, keys, pairings,
// sessions, RPC records, relay messages) and the contracts between stores,
// the relay and the engines. The types and interfaces subpackages are
// re-exported here so callers import a single package.
package domain
