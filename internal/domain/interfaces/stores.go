package interfaces

import domaintypes "walletconnect/internal/domain/types"

// KeychainStore holds raw secret material by name. Only the KMS reads it.
type KeychainStore interface {
	SetSecret(name string, secret []byte) error
	GetSecret(name string) ([]byte, bool, error)
	DeleteSecret(name string) error
}

// PairingStore persists pairings by topic.
type PairingStore interface {
	SavePairing(pairing domaintypes.Pairing) error
	LoadPairing(topic domaintypes.Topic) (domaintypes.Pairing, bool, error)
	DeletePairing(topic domaintypes.Topic) error
	ListPairings() ([]domaintypes.Pairing, error)
}

// SessionStore persists settled sessions by topic.
type SessionStore interface {
	SaveSession(session domaintypes.Session) error
	LoadSession(topic domaintypes.Topic) (domaintypes.Session, bool, error)
	DeleteSession(topic domaintypes.Topic) error
	ListSessions() ([]domaintypes.Session, error)
}

// HistoryStore persists RPC records by id.
type HistoryStore interface {
	SaveRecord(record domaintypes.RPCRecord) error
	LoadRecord(id int64) (domaintypes.RPCRecord, bool, error)
	ListRecords() ([]domaintypes.RPCRecord, error)
	DeleteRecords(ids []int64) error
}
