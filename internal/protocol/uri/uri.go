// Package uri encodes and parses the pairing bootstrap URI:
//
//	wc:<topic>@2?relay-protocol=irn&symKey=<64 hex>&methods=a,b
package uri

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
)

const (
	scheme  = "wc"
	version = "2"
)

var (
	ErrScheme        = errors.New("uri: scheme must be wc")
	ErrVersion       = errors.New("uri: unsupported version")
	ErrTopic         = errors.New("uri: invalid topic")
	ErrSymKey        = errors.New("uri: invalid symKey")
	ErrRelayProtocol = errors.New("uri: missing relay-protocol")
	ErrExpiry        = errors.New("uri: invalid expiryTimestamp")
)

// URI is the out-of-band payload that bootstraps a pairing.
type URI struct {
	Topic           domain.Topic
	SymKey          domain.SymmetricKey
	Relay           domain.RelayProtocolOptions
	Methods         []string
	ExpiryTimestamp int64 // unix seconds, 0 when absent
}

// String renders the absolute URI.
func (u URI) String() string {
	var b strings.Builder
	b.WriteString(scheme + ":" + u.Topic + "@" + version)
	b.WriteString("?relay-protocol=" + url.QueryEscape(u.Relay.Protocol))
	if u.Relay.Data != "" {
		b.WriteString("&relay-data=" + url.QueryEscape(u.Relay.Data))
	}
	b.WriteString("&symKey=" + u.SymKey.Hex())
	if len(u.Methods) > 0 {
		b.WriteString("&methods=" + strings.Join(u.Methods, ","))
	}
	if u.ExpiryTimestamp > 0 {
		b.WriteString("&expiryTimestamp=" + strconv.FormatInt(u.ExpiryTimestamp, 10))
	}
	return b.String()
}

// Parse decodes s. Both "wc:" and "wc://" forms are accepted.
func Parse(s string) (URI, error) {
	rest, ok := strings.CutPrefix(s, scheme+":")
	if !ok {
		return URI{}, ErrScheme
	}
	rest = strings.TrimPrefix(rest, "//")

	path, rawQuery, _ := strings.Cut(rest, "?")
	topic, ver, ok := strings.Cut(path, "@")
	if !ok || ver != version {
		return URI{}, fmt.Errorf("%w: %q", ErrVersion, ver)
	}
	if !domaintypes.IsValidTopic(topic) {
		return URI{}, ErrTopic
	}

	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return URI{}, fmt.Errorf("uri query: %w", err)
	}
	out := URI{Topic: topic}

	out.Relay.Protocol = q.Get("relay-protocol")
	if out.Relay.Protocol == "" {
		return URI{}, ErrRelayProtocol
	}
	out.Relay.Data = q.Get("relay-data")

	key, err := domaintypes.ParseSymmetricKey(q.Get("symKey"))
	if err != nil {
		return URI{}, fmt.Errorf("%w: %v", ErrSymKey, err)
	}
	out.SymKey = key

	if m := q.Get("methods"); m != "" {
		for _, name := range strings.Split(m, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Methods = append(out.Methods, name)
			}
		}
	}
	if e := q.Get("expiryTimestamp"); e != "" {
		if out.ExpiryTimestamp, err = strconv.ParseInt(e, 10, 64); err != nil || out.ExpiryTimestamp < 0 {
			return URI{}, ErrExpiry
		}
	}
	return out, nil
}
