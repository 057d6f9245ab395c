// Package main runs the in-memory irn relay used during development and
// tests.
//
// Protocol
//
//	GET /  (websocket upgrade)
//	    JSON-RPC 2.0 over text frames: irn_subscribe, irn_batchSubscribe,
//	    irn_unsubscribe and irn_publish from clients; irn_subscription
//	    pushes from the relay, which the client acknowledges.
//
//	GET /metrics
//	    Prometheus metrics, on --addr or on --metrics-addr when set.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - A message published to a topic with no other subscriber is kept in a
//     mailbox until its TTL and delivered on the next subscribe.
//   - With --verify-auth the "auth" query parameter must carry an EdDSA JWT
//     issued by a did:key for this relay's origin.
//   - The default listen address is :8080.
//
// The relay never sees plaintext: messages are envelopes sealed with keys
// only the two peers hold.
package main
