// Package pairing manages the provisional channels used to bootstrap
// sessions.
//
// A pairing starts inactive with a short lifetime when it is created or
// joined from a URI. The first successful exchange on its topic activates it
// and extends the lifetime. Expired pairings are purged lazily on read and
// periodically by Sweep.
package pairing
