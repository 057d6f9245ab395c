package types

import (
	"encoding/hex"
	"time"
)

// Topic identifies a logical relay channel: 32 bytes, lowercase hex.
type Topic = string

// TopicLength is the hex length of a topic.
const TopicLength = 64

// IsValidTopic reports whether t is 64 lowercase hex characters.
func IsValidTopic(t string) bool {
	if len(t) != TopicLength {
		return false
	}
	for _, c := range t {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	_, err := hex.DecodeString(t)
	return err == nil
}

// RelayProtocolOptions selects the relay protocol for a channel.
type RelayProtocolOptions struct {
	Protocol string `json:"protocol"`
	Data     string `json:"data,omitempty"`
}

// DefaultRelayProtocol is the relay protocol used when none is given.
const DefaultRelayProtocol = "irn"

// AppMetadata describes a peer application.
type AppMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

// Origin records which side emitted an RPC request.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Unix converts seconds to a time.Time. Zero stays zero.
func Unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
