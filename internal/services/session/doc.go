// Package session keeps settled sessions in sync between the controller and
// the non-controller.
//
// The controller proposes namespace updates and expiry extensions. The
// non-controller validates each request, checks that it came from the
// controller and answers with exactly one response. Namespace updates are
// ordered by the timestamp embedded in the request id, so a late update never
// overwrites a newer one.
package session
