// Package relay is the client side of the irn relay protocol: a websocket
// transport, a JSON-RPC dispatcher that matches relay acknowledgements to
// requests, and a Client implementing domain.RelayClient on top.
//
// Layers, bottom up:
//   - WebSocket: one gorilla/websocket connection with a single writer, a
//     read loop and ping/pong keepalive.
//   - Dispatcher: frames irn requests, keeps the pending-ack map keyed by
//     request id, and queues relay-initiated requests to one ordered
//     dispatch goroutine.
//   - Client: subscribe, unsubscribe, batch subscribe and publish; acks
//     irn_subscription pushes and fans them out to listeners.
//   - Automatic and Manual: connection strategies deciding when the socket
//     connects.
//
// Calls fail fast with ErrNotConnected while the socket is down. Calls that
// were in flight when the socket dropped are not failed; they wait for the
// caller's context or the ack timeout.
package relay
