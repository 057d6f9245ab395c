package namespaces_test

import (
	"errors"
	"testing"

	"walletconnect/internal/domain"
	"walletconnect/internal/protocol/namespaces"
)

func valid() domain.Namespaces {
	return domain.Namespaces{
		"eip155": {
			Chains:   []string{"eip155:1", "eip155:137"},
			Accounts: []string{"eip155:1:0xab16a96d359ec26a11e2c2b3d8f8b8942d5bfcdb"},
			Methods:  []string{"eth_sendTransaction", "personal_sign"},
			Events:   []string{"accountsChanged"},
		},
		"cosmos:cosmoshub-4": {
			Accounts: []string{"cosmos:cosmoshub-4:cosmos1t2uflqwqe0fsj0shcfkrvpukewcw40yjj6hdc0"},
			Methods:  []string{"cosmos_signDirect"},
			Events:   []string{},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := namespaces.Validate(valid()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(domain.Namespaces){
		"empty map": func(ns domain.Namespaces) {
			for k := range ns {
				delete(ns, k)
			}
		},
		"bad key": func(ns domain.Namespaces) { ns["EIP155"] = ns["eip155"] },
		"no accounts": func(ns domain.Namespaces) {
			n := ns["eip155"]
			n.Accounts = nil
			ns["eip155"] = n
		},
		"account not caip10": func(ns domain.Namespaces) {
			n := ns["eip155"]
			n.Accounts = []string{"0xab16"}
			ns["eip155"] = n
		},
		"account outside key": func(ns domain.Namespaces) {
			n := ns["cosmos:cosmoshub-4"]
			n.Accounts = []string{"eip155:1:0xab"}
			ns["cosmos:cosmoshub-4"] = n
		},
		"account on undeclared chain": func(ns domain.Namespaces) {
			n := ns["eip155"]
			n.Accounts = []string{"eip155:10:0xab"}
			ns["eip155"] = n
		},
		"chains under chain key": func(ns domain.Namespaces) {
			n := ns["cosmos:cosmoshub-4"]
			n.Chains = []string{"cosmos:cosmoshub-4"}
			ns["cosmos:cosmoshub-4"] = n
		},
		"empty method": func(ns domain.Namespaces) {
			n := ns["eip155"]
			n.Methods = []string{"personal_sign", ""}
			ns["eip155"] = n
		},
		"empty event": func(ns domain.Namespaces) {
			n := ns["eip155"]
			n.Events = []string{" "}
			ns["eip155"] = n
		},
	}
	for name, mutate := range cases {
		ns := valid()
		mutate(ns)
		if err := namespaces.Validate(ns); !errors.Is(err, namespaces.ErrInvalid) {
			t.Errorf("%s: want ErrInvalid, got %v", name, err)
		}
	}
}

func TestIsChainID(t *testing.T) {
	for s, want := range map[string]bool{
		"eip155:1":           true,
		"cosmos:cosmoshub-4": true,
		"eip155":             false,
		"ab:1":               false,
		"eip155:":            false,
	} {
		if got := namespaces.IsChainID(s); got != want {
			t.Errorf("IsChainID(%q) = %v, want %v", s, got, want)
		}
	}
}
