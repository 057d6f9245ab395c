package interfaces

import (
	"context"

	domaintypes "walletconnect/internal/domain/types"
)

// RelayClient is how we talk to the relay server over its JSON-RPC protocol.
type RelayClient interface {
	Publish(ctx context.Context, topic domaintypes.Topic, message string, opts domaintypes.PublishOptions) error
	Subscribe(ctx context.Context, topic domaintypes.Topic) (string, error)
	Unsubscribe(ctx context.Context, topic domaintypes.Topic) error
	BatchSubscribe(ctx context.Context, topics []domaintypes.Topic) ([]string, error)

	OnMessage(fn func(domaintypes.RelayMessage)) (cancel func())
	OnConnectionStatus(fn func(domaintypes.ConnectionStatus)) (cancel func())
}
