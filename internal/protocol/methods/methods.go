// Package methods is the registry of peer protocol methods.
//
// Every method carries the relay tags used for its request and response,
// the relay TTL in seconds and whether the relay should prompt the
// recipient. Higher-level modules build on this registry.
package methods

import "time"

// Method describes one peer protocol method.
type Method struct {
	Name        string
	RequestTag  int
	ResponseTag int
	TTL         int // seconds
	Prompt      bool
}

// TTLDuration returns TTL as a duration.
func (m Method) TTLDuration() time.Duration { return time.Duration(m.TTL) * time.Second }

const (
	minute = 60
	day    = 24 * 60 * minute
)

var (
	PairingDelete = Method{Name: "wc_pairingDelete", RequestTag: 1000, ResponseTag: 1001, TTL: day}
	PairingPing   = Method{Name: "wc_pairingPing", RequestTag: 1002, ResponseTag: 1003, TTL: 30}
	PairingExtend = Method{Name: "wc_pairingExtend", RequestTag: 1004, ResponseTag: 1005, TTL: 30}

	SessionPropose = Method{Name: "wc_sessionPropose", RequestTag: 1100, ResponseTag: 1101, TTL: 5 * minute, Prompt: true}
	SessionSettle  = Method{Name: "wc_sessionSettle", RequestTag: 1102, ResponseTag: 1103, TTL: 5 * minute}
	SessionUpdate  = Method{Name: "wc_sessionUpdate", RequestTag: 1104, ResponseTag: 1105, TTL: day}
	SessionExtend  = Method{Name: "wc_sessionExtend", RequestTag: 1106, ResponseTag: 1107, TTL: day}
	SessionRequest = Method{Name: "wc_sessionRequest", RequestTag: 1108, ResponseTag: 1109, TTL: 5 * minute, Prompt: true}
	SessionEvent   = Method{Name: "wc_sessionEvent", RequestTag: 1110, ResponseTag: 1111, TTL: 5 * minute, Prompt: true}
	SessionDelete  = Method{Name: "wc_sessionDelete", RequestTag: 1112, ResponseTag: 1113, TTL: day}
	SessionPing    = Method{Name: "wc_sessionPing", RequestTag: 1114, ResponseTag: 1115, TTL: 30}
)

// Registry indexes methods by name and tag.
type Registry struct {
	byName map[string]Method
	byTag  map[int]Method
}

// NewRegistry indexes ms. Later entries replace earlier ones with the same
// name or tag.
func NewRegistry(ms ...Method) *Registry {
	r := &Registry{byName: make(map[string]Method), byTag: make(map[int]Method)}
	for _, m := range ms {
		r.Register(m)
	}
	return r
}

// Default returns a registry of every core method.
func Default() *Registry {
	return NewRegistry(
		PairingDelete, PairingPing, PairingExtend,
		SessionPropose, SessionSettle, SessionUpdate, SessionExtend,
		SessionRequest, SessionEvent, SessionDelete, SessionPing,
	)
}

// Register adds m, letting vertical modules extend the registry. It must
// not run concurrently with lookups.
func (r *Registry) Register(m Method) {
	r.byName[m.Name] = m
	r.byTag[m.RequestTag] = m
	r.byTag[m.ResponseTag] = m
}

// ByName looks a method up by name.
func (r *Registry) ByName(name string) (Method, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// ByTag looks a method up by request or response tag. isRequest reports
// which of the two tags matched.
func (r *Registry) ByTag(tag int) (m Method, isRequest bool, ok bool) {
	m, ok = r.byTag[tag]
	if !ok {
		return Method{}, false, false
	}
	return m, m.RequestTag == tag, true
}
