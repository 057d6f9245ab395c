package domain

import (
	interfaces "walletconnect/internal/domain/interfaces"
	types "walletconnect/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Topic                = types.Topic
	RelayProtocolOptions = types.RelayProtocolOptions
	AppMetadata          = types.AppMetadata
	Origin               = types.Origin
	X25519Public         = types.X25519Public
	X25519Private        = types.X25519Private
	SymmetricKey         = types.SymmetricKey
	AgreementKeys        = types.AgreementKeys
	Pairing              = types.Pairing
	Session              = types.Session
	Participant          = types.Participant
	Namespace            = types.Namespace
	Namespaces           = types.Namespaces
	RPCRecord            = types.RPCRecord
	Reason               = types.Reason
	ConnectionStatus     = types.ConnectionStatus
	PublishOptions       = types.PublishOptions
	RelayMessage         = types.RelayMessage
	InboundRequest       = types.InboundRequest
	InboundResponse      = types.InboundResponse
	EnvelopeType         = types.EnvelopeType
	SerializeOptions     = types.SerializeOptions
	EnvelopeInfo         = types.EnvelopeInfo
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	KeychainStore = interfaces.KeychainStore
	PairingStore  = interfaces.PairingStore
	SessionStore  = interfaces.SessionStore
	HistoryStore  = interfaces.HistoryStore
	RelayClient   = interfaces.RelayClient
	KeyManager    = interfaces.KeyManager
	Serializer    = interfaces.Serializer
	RPCHistory    = interfaces.RPCHistory
	Networking    = interfaces.Networking
)

// Constant re-exports.
const (
	OriginLocal  = types.OriginLocal
	OriginRemote = types.OriginRemote

	Connected    = types.Connected
	Disconnected = types.Disconnected

	EnvelopeType0 = types.EnvelopeType0
	EnvelopeType1 = types.EnvelopeType1
)
