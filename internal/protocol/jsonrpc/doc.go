// Package jsonrpc implements the JSON-RPC 2.0 framing shared by the relay
// protocol and the peer protocol.
//
// Request ids embed their creation time: unixMillis*1000 plus three random
// digits. Timestamp recovers the millisecond part, which the session engine
// uses to order namespace updates independently of delivery order.
//
// Value is a tagged JSON value. It keeps the original bytes so params and
// results survive a decode/encode cycle without losing structure.
package jsonrpc
