package types

import (
	"time"

	"walletconnect/internal/protocol/jsonrpc"
)

// ConnectionStatus is the state of the relay transport.
type ConnectionStatus int

const (
	Disconnected ConnectionStatus = iota
	Connected
)

func (s ConnectionStatus) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// PublishOptions are the per-message relay delivery options.
type PublishOptions struct {
	TTL    int // seconds
	Tag    int
	Prompt bool
}

// RelayMessage is a message pushed by the relay on a subscribed topic.
type RelayMessage struct {
	SubscriptionID string
	Topic          Topic
	Message        string
	PublishedAt    time.Time
	Tag            int
	Attestation    string
}

// InboundRequest is a decoded peer request on a topic.
type InboundRequest struct {
	Topic       Topic
	Request     jsonrpc.Request
	PublishedAt time.Time
	Tag         int
}

// InboundResponse is a decoded peer response matched to our request.
type InboundResponse struct {
	Topic       Topic
	Request     jsonrpc.Request
	Response    jsonrpc.Response
	PublishedAt time.Time
}
