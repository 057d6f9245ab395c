// internal/store/file_store_test.go
package store_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"walletconnect/internal/domain"
	"walletconnect/internal/protocol/jsonrpc"
	"walletconnect/internal/store"
)

func TestKeychain_PersistsAcrossOpen(t *testing.T) {
	home := t.TempDir()

	kc, err := store.OpenKeychainFileStore(home, "pass")
	if err != nil {
		t.Fatalf("open keychain: %v", err)
	}
	if err := kc.SetSecret("topic-a", []byte{1, 2, 3}); err != nil {
		t.Fatalf("set secret: %v", err)
	}
	if err := kc.SetSecret("topic-b", []byte{4}); err != nil {
		t.Fatalf("set secret: %v", err)
	}
	if err := kc.DeleteSecret("topic-b"); err != nil {
		t.Fatalf("delete secret: %v", err)
	}

	again, err := store.OpenKeychainFileStore(home, "pass")
	if err != nil {
		t.Fatalf("reopen keychain: %v", err)
	}
	got, ok, err := again.GetSecret("topic-a")
	if err != nil || !ok {
		t.Fatalf("get secret: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("mismatch after reopen: %v", got)
	}
	if _, ok, _ := again.GetSecret("topic-b"); ok {
		t.Fatal("deleted secret came back")
	}
}

func TestKeychain_WrongPassphrase_Fails(t *testing.T) {
	home := t.TempDir()
	kc, err := store.OpenKeychainFileStore(home, "correct")
	if err != nil {
		t.Fatalf("open keychain: %v", err)
	}
	if err := kc.SetSecret("k", []byte{9}); err != nil {
		t.Fatalf("set secret: %v", err)
	}
	if _, err := store.OpenKeychainFileStore(home, "wrong"); err == nil {
		t.Fatal("expected error with wrong passphrase")
	}
}

func TestKeychain_NotPlaintextOnDisk(t *testing.T) {
	home := t.TempDir()
	kc, err := store.OpenKeychainFileStore(home, "pass")
	if err != nil {
		t.Fatalf("open keychain: %v", err)
	}
	secret := []byte("super-secret-material")
	if err := kc.SetSecret("k", secret); err != nil {
		t.Fatalf("set secret: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(home, "keychain.json.enc"))
	if err != nil {
		t.Fatalf("read keychain: %v", err)
	}
	if bytes.Contains(b, secret) {
		t.Fatal("secret stored in plaintext")
	}
}

func TestPairingStore_SaveLoadDelete(t *testing.T) {
	for name, dir := range map[string]string{"file": t.TempDir(), "memory": ""} {
		t.Run(name, func(t *testing.T) {
			var ps domain.PairingStore = store.NewPairingFileStore(dir)
			p := domain.Pairing{Topic: "aa", Expiry: time.Now().Add(time.Hour).Unix()}

			if err := ps.SavePairing(p); err != nil {
				t.Fatalf("save pairing: %v", err)
			}
			got, ok, err := ps.LoadPairing("aa")
			if err != nil || !ok {
				t.Fatalf("load pairing: ok=%v err=%v", ok, err)
			}
			if got.Expiry != p.Expiry {
				t.Fatalf("mismatch after load")
			}
			if err := ps.DeletePairing("aa"); err != nil {
				t.Fatalf("delete pairing: %v", err)
			}
			if err := ps.DeletePairing("aa"); err != nil {
				t.Fatalf("second delete should be a no-op: %v", err)
			}
			if _, ok, _ := ps.LoadPairing("aa"); ok {
				t.Fatal("pairing still present")
			}
		})
	}
}

func TestSessionStore_CopiesNamespaces(t *testing.T) {
	ss := store.NewSessionFileStore("")
	s := domain.Session{
		Topic: "bb",
		Namespaces: domain.Namespaces{
			"eip155": {Accounts: []string{"eip155:1:0xab"}, Methods: []string{"eth_sign"}, Events: []string{}},
		},
	}
	if err := ss.SaveSession(s); err != nil {
		t.Fatalf("save session: %v", err)
	}
	s.Namespaces["eip155"].Methods[0] = "mutated"

	got, _, err := ss.LoadSession("bb")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if got.Namespaces["eip155"].Methods[0] != "eth_sign" {
		t.Fatal("stored session aliased caller namespaces")
	}
}

func TestHistoryStore_ListOrderedAndDelete(t *testing.T) {
	hs := store.NewHistoryFileStore(t.TempDir())
	for _, id := range []int64{3, 1, 2} {
		r := domain.RPCRecord{ID: id, Topic: "cc", Request: jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: id, Method: "m"}}
		if err := hs.SaveRecord(r); err != nil {
			t.Fatalf("save record: %v", err)
		}
	}
	if err := hs.DeleteRecords([]int64{2}); err != nil {
		t.Fatalf("delete records: %v", err)
	}
	rs, err := hs.ListRecords()
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(rs) != 2 || rs[0].ID != 1 || rs[1].ID != 3 {
		t.Fatalf("unexpected records: %+v", rs)
	}
}
