package identity_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"walletconnect/internal/protocol/relayauth"
	"walletconnect/internal/services/identity"
	"walletconnect/internal/services/kms"
	"walletconnect/internal/store"
)

func TestClientID_StableAcrossCalls(t *testing.T) {
	svc := identity.New(kms.New(store.NewMemoryKeychain()))
	a, err := svc.ClientID()
	if err != nil {
		t.Fatalf("ClientID: %v", err)
	}
	b, _ := svc.ClientID()
	if a != b {
		t.Fatalf("client id changed: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "did:key:z") {
		t.Fatalf("unexpected client id %s", a)
	}
	fp, err := svc.Fingerprint()
	if err != nil || len(fp) != 24 || strings.Count(fp, "-") != 4 {
		t.Fatalf("Fingerprint: %q %v", fp, err)
	}
}

func TestAuthToken_VerifiesAgainstClientID(t *testing.T) {
	svc := identity.New(kms.New(store.NewMemoryKeychain()))
	tok, err := svc.AuthToken("wss://relay.example.com")
	if err != nil {
		t.Fatalf("AuthToken: %v", err)
	}
	claims, err := relayauth.VerifyJWT(tok, "wss://relay.example.com", time.Now())
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	id, _ := svc.ClientID()
	if claims.Issuer != id {
		t.Fatalf("issuer %s, want %s", claims.Issuer, id)
	}
}

func TestValidatePassphrase(t *testing.T) {
	cases := map[string]bool{
		"short":                 false,
		"alllowercaseletters1!": false,
		"NoDigitsHere!!!":       false,
		"NoSymbols12345":        false,
		"Correct-Horse-42":      true,
	}
	for p, ok := range cases {
		err := identity.ValidatePassphrase(p)
		if ok && err != nil {
			t.Errorf("%q: unexpected error %v", p, err)
		}
		if !ok && !errors.Is(err, identity.ErrWeakPassphrase) {
			t.Errorf("%q: want ErrWeakPassphrase, got %v", p, err)
		}
	}
}
