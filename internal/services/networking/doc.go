// Package networking carries peer JSON-RPC over the relay.
//
// Outbound requests are recorded in the RPC history, sealed for the topic
// and published with the method's tag, TTL and prompt flag. Inbound
// envelopes are opened, parsed and routed: requests by method name,
// responses by the method of the request they answer. Envelopes that do not
// open or parse are dropped.
package networking
