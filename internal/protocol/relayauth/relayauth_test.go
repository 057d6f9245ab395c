package relayauth_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"walletconnect/internal/crypto"
	"walletconnect/internal/protocol/relayauth"
)

func TestDIDKey_RoundTrip(t *testing.T) {
	_, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	did := relayauth.EncodeDIDKey(pub)
	if !strings.HasPrefix(did, "did:key:z6Mk") {
		t.Fatalf("unexpected did prefix: %s", did)
	}
	got, err := relayauth.DecodeDIDKey(did)
	if err != nil {
		t.Fatalf("DecodeDIDKey: %v", err)
	}
	if !got.Equal(pub) {
		t.Fatal("decoded key mismatch")
	}
	if _, err := relayauth.DecodeDIDKey("did:web:example.com"); !errors.Is(err, relayauth.ErrInvalidDID) {
		t.Fatalf("want ErrInvalidDID, got %v", err)
	}
}

func TestJWT_SignVerify(t *testing.T) {
	priv, pub, _ := crypto.GenerateEd25519()
	now := time.Now()
	tok, err := relayauth.SignJWT(priv, "wss://relay.example", time.Hour, now)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	claims, err := relayauth.VerifyJWT(tok, "wss://relay.example", now)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	if claims.Issuer != relayauth.EncodeDIDKey(pub) {
		t.Fatalf("issuer = %s", claims.Issuer)
	}

	if _, err := relayauth.VerifyJWT(tok, "wss://other", now); !errors.Is(err, relayauth.ErrInvalidToken) {
		t.Fatalf("wrong audience: want ErrInvalidToken, got %v", err)
	}
	if _, err := relayauth.VerifyJWT(tok, "wss://relay.example", now.Add(2*time.Hour)); !errors.Is(err, relayauth.ErrInvalidToken) {
		t.Fatalf("expired: want ErrInvalidToken, got %v", err)
	}
}
