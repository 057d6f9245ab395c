package kms_test

import (
	"errors"
	"testing"

	"walletconnect/internal/crypto"
	"walletconnect/internal/domain"
	"walletconnect/internal/services/kms"
	"walletconnect/internal/store"
)

func newKMS() *kms.Service { return kms.New(store.NewMemoryKeychain()) }

func TestSetSymmetricKey_ReplacesPrevious(t *testing.T) {
	k := newKMS()
	topic, _ := crypto.RandomTopic()
	k1, _ := crypto.RandomSymmetricKey()
	k2, _ := crypto.RandomSymmetricKey()

	if err := k.SetSymmetricKey(k1, topic); err != nil {
		t.Fatalf("set k1: %v", err)
	}
	if err := k.SetSymmetricKey(k2, topic); err != nil {
		t.Fatalf("set k2: %v", err)
	}
	got, ok, err := k.GetAgreementSecret(topic)
	if err != nil || !ok {
		t.Fatalf("GetAgreementSecret: ok=%v err=%v", ok, err)
	}
	if got.SharedKey != k2 {
		t.Fatal("want the replacement key")
	}
}

func TestPerformKeyAgreement_BothSidesDeriveSameTopic(t *testing.T) {
	a, b := newKMS(), newKMS()
	aPub, err := a.CreateX25519KeyPair()
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	bPub, err := b.CreateX25519KeyPair()
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	ka, err := a.PerformKeyAgreement(aPub, bPub.Hex())
	if err != nil {
		t.Fatalf("agree a: %v", err)
	}
	kb, err := b.PerformKeyAgreement(bPub, aPub.Hex())
	if err != nil {
		t.Fatalf("agree b: %v", err)
	}
	if ka.SharedKey != kb.SharedKey || ka.Topic != kb.Topic {
		t.Fatal("agreement mismatch")
	}
	if ka.Topic != crypto.TopicFromKey(ka.SharedKey) {
		t.Fatal("topic must be sha256(shared key)")
	}

	if err := a.SetAgreementSecret(ka, ka.Topic); err != nil {
		t.Fatalf("SetAgreementSecret: %v", err)
	}
	got, ok, _ := a.GetAgreementSecret(ka.Topic)
	if !ok || got.PublicKey != aPub {
		t.Fatalf("stored agreement: %+v", got)
	}
}

func TestPerformKeyAgreement_UnknownSelfKey(t *testing.T) {
	k := newKMS()
	peer, _ := newKMS().CreateX25519KeyPair()
	_, err := k.PerformKeyAgreement(domain.X25519Public{1}, peer.Hex())
	if !errors.Is(err, kms.ErrKeyNotFound) {
		t.Fatalf("want ErrKeyNotFound, got %v", err)
	}
}

func TestDeletes_AreIdempotent(t *testing.T) {
	k := newKMS()
	topic, _ := crypto.RandomTopic()
	if _, err := k.CreateSymmetricKey(topic); err != nil {
		t.Fatalf("CreateSymmetricKey: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := k.DeleteSymmetricKey(topic); err != nil {
			t.Fatalf("delete #%d: %v", i, err)
		}
	}
	if _, ok, _ := k.GetSymmetricKey(topic); ok {
		t.Fatal("key still present after delete")
	}
	if err := k.DeletePublicKey(topic); err != nil {
		t.Fatalf("DeletePublicKey on absent key: %v", err)
	}
}

func TestClientSigningKey_Stable(t *testing.T) {
	k := newKMS()
	a, err := k.ClientSigningKey()
	if err != nil {
		t.Fatalf("ClientSigningKey: %v", err)
	}
	b, err := k.ClientSigningKey()
	if err != nil {
		t.Fatalf("ClientSigningKey again: %v", err)
	}
	if !a.Equal(b) {
		t.Fatal("signing key changed between calls")
	}
}
