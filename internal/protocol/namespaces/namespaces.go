// Package namespaces validates the grammar of session namespaces: CAIP-2
// chain ids, CAIP-10 accounts and non-empty method/event entries.
package namespaces

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"walletconnect/internal/domain"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid namespaces")

var (
	namespaceRe = regexp.MustCompile(`^[-a-z0-9]{3,8}$`)
	referenceRe = regexp.MustCompile(`^[-_a-zA-Z0-9]{1,32}$`)
	addressRe   = regexp.MustCompile(`^[-.%a-zA-Z0-9]{1,128}$`)
)

// IsNamespace reports whether s is a bare CAIP-2 namespace ("eip155").
func IsNamespace(s string) bool { return namespaceRe.MatchString(s) }

// IsChainID reports whether s is a CAIP-2 chain id ("eip155:1").
func IsChainID(s string) bool {
	ns, ref, ok := strings.Cut(s, ":")
	return ok && namespaceRe.MatchString(ns) && referenceRe.MatchString(ref)
}

// SplitAccount splits a CAIP-10 account into its chain id and address.
func SplitAccount(s string) (chain, address string, ok bool) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return "", "", false
	}
	chain, address = s[:i], s[i+1:]
	if !IsChainID(chain) || !addressRe.MatchString(address) {
		return "", "", false
	}
	return chain, address, true
}

// Validate checks ns and returns an error wrapping ErrInvalid on the first
// violation.
func Validate(ns domain.Namespaces) error {
	if len(ns) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalid)
	}
	for key, n := range ns {
		if err := validateOne(key, n); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
		}
	}
	return nil
}

func validateOne(key string, n domain.Namespace) error {
	bare := IsNamespace(key)
	if !bare && !IsChainID(key) {
		return errors.New("key is neither a namespace nor a chain id")
	}

	chains := make(map[string]bool, len(n.Chains))
	if len(n.Chains) > 0 && !bare {
		return errors.New("chains only allowed under a bare namespace key")
	}
	for _, c := range n.Chains {
		if !IsChainID(c) || !belongs(c, key) {
			return fmt.Errorf("chain %q not in namespace", c)
		}
		chains[c] = true
	}

	if len(n.Accounts) == 0 {
		return errors.New("no accounts")
	}
	for _, a := range n.Accounts {
		chain, _, ok := SplitAccount(a)
		if !ok {
			return fmt.Errorf("account %q is not CAIP-10", a)
		}
		if !belongs(chain, key) {
			return fmt.Errorf("account %q outside %s", a, key)
		}
		if len(chains) > 0 && !chains[chain] {
			return fmt.Errorf("account %q on undeclared chain", a)
		}
	}

	for _, m := range n.Methods {
		if strings.TrimSpace(m) == "" {
			return errors.New("empty method")
		}
	}
	for _, e := range n.Events {
		if strings.TrimSpace(e) == "" {
			return errors.New("empty event")
		}
	}
	return nil
}

// belongs reports whether chain lives under key, which is either a bare
// namespace or a chain id.
func belongs(chain, key string) bool {
	if chain == key {
		return true
	}
	ns, _, _ := strings.Cut(chain, ":")
	return ns == key
}
