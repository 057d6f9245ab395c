package types

import "walletconnect/internal/protocol/jsonrpc"

// RPCRecord correlates one request with at most one response.
type RPCRecord struct {
	ID        int64             `json:"id"`
	Topic     Topic             `json:"topic"`
	Origin    Origin            `json:"origin"`
	Request   jsonrpc.Request   `json:"request"`
	Response  *jsonrpc.Response `json:"response,omitempty"`
	CreatedAt int64             `json:"created_at"` // unix seconds
}

// Pending reports whether the record still awaits a response.
func (r RPCRecord) Pending() bool { return r.Response == nil }
