package interfaces

import (
	"context"
	"time"

	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/protocol/jsonrpc"
	"walletconnect/internal/protocol/methods"
)

// KeyManager owns all key material: agreement key pairs and per-topic
// symmetric keys.
type KeyManager interface {
	CreateX25519KeyPair() (domaintypes.X25519Public, error)
	PerformKeyAgreement(self domaintypes.X25519Public, peerHex string) (domaintypes.AgreementKeys, error)

	CreateSymmetricKey(topic domaintypes.Topic) (domaintypes.SymmetricKey, error)
	SetSymmetricKey(key domaintypes.SymmetricKey, topic domaintypes.Topic) error
	GetSymmetricKey(topic domaintypes.Topic) (domaintypes.SymmetricKey, bool, error)
	SetAgreementSecret(keys domaintypes.AgreementKeys, topic domaintypes.Topic) error
	GetAgreementSecret(topic domaintypes.Topic) (domaintypes.AgreementKeys, bool, error)
	SetPublicKey(pub domaintypes.X25519Public, topic domaintypes.Topic) error
	GetPublicKey(topic domaintypes.Topic) (domaintypes.X25519Public, bool, error)

	DeleteSymmetricKey(topic domaintypes.Topic) error
	DeletePrivateKey(pubHex string) error
	DeletePublicKey(topic domaintypes.Topic) error
}

// Serializer turns payloads into topic-addressed envelopes and back.
type Serializer interface {
	Serialize(topic domaintypes.Topic, payload any, opts domaintypes.SerializeOptions) (string, error)
	Deserialize(topic domaintypes.Topic, message string, out any) (domaintypes.EnvelopeInfo, error)
}

// RPCHistory is the idempotency ledger of requests and responses.
type RPCHistory interface {
	Set(request jsonrpc.Request, topic domaintypes.Topic, origin domaintypes.Origin) error
	Resolve(response jsonrpc.Response) (domaintypes.RPCRecord, error)
	Get(id int64) (domaintypes.RPCRecord, bool, error)
	GetPending() ([]domaintypes.RPCRecord, error)
	DeleteAll(topic domaintypes.Topic) error
	RemoveOutdated(maxAge time.Duration) error
}

// Networking sends and receives peer JSON-RPC over the relay.
type Networking interface {
	Subscribe(ctx context.Context, topic domaintypes.Topic) error
	Unsubscribe(ctx context.Context, topic domaintypes.Topic) error

	Request(ctx context.Context, topic domaintypes.Topic, method methods.Method, params any) (jsonrpc.Request, error)
	RespondSuccess(ctx context.Context, topic domaintypes.Topic, id int64, method methods.Method) error
	RespondError(ctx context.Context, topic domaintypes.Topic, id int64, method methods.Method, reason domaintypes.Reason) error

	OnRequest(method methods.Method, fn func(domaintypes.InboundRequest)) (cancel func())
	OnResponse(method methods.Method, fn func(domaintypes.InboundResponse)) (cancel func())
}
