// Package serializer turns JSON payloads into topic-addressed envelopes and
// back, looking up key material in the key manager.
package serializer
