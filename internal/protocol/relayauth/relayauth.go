// Package relayauth authenticates a client to the relay: the client's
// Ed25519 key is encoded as a did:key and signs a short-lived EdDSA JWT that
// is sent in the socket URL.
package relayauth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

const (
	didPrefix = "did:key:"
	// multibase prefix for base58btc
	base58btc = "z"

	// DefaultTTL is the lifetime of a relay auth token.
	DefaultTTL = 24 * time.Hour
)

// multicodec varint for ed25519-pub.
var ed25519Multicodec = []byte{0xed, 0x01}

var (
	ErrInvalidDID   = errors.New("relayauth: invalid did:key")
	ErrInvalidToken = errors.New("relayauth: invalid token")
)

// EncodeDIDKey returns did:key:z<base58btc(0xed01 ‖ pub)>.
func EncodeDIDKey(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, len(ed25519Multicodec)+len(pub))
	buf = append(buf, ed25519Multicodec...)
	buf = append(buf, pub...)
	return didPrefix + base58btc + base58.Encode(buf)
}

// DecodeDIDKey parses an Ed25519 did:key.
func DecodeDIDKey(did string) (ed25519.PublicKey, error) {
	rest, ok := strings.CutPrefix(did, didPrefix+base58btc)
	if !ok {
		return nil, ErrInvalidDID
	}
	raw, err := base58.Decode(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}
	if len(raw) != len(ed25519Multicodec)+ed25519.PublicKeySize ||
		raw[0] != ed25519Multicodec[0] || raw[1] != ed25519Multicodec[1] {
		return nil, ErrInvalidDID
	}
	return ed25519.PublicKey(raw[len(ed25519Multicodec):]), nil
}

// Claims are the relay auth claims. Subject is a random per-token value.
type Claims struct {
	jwt.RegisteredClaims
}

// SignJWT issues a token for aud (the relay URL) valid for ttl from now.
func SignJWT(priv ed25519.PrivateKey, aud string, ttl time.Duration, now time.Time) (string, error) {
	var sub [32]byte
	if _, err := rand.Read(sub[:]); err != nil {
		return "", err
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return "", errors.New("relayauth: not an ed25519 key")
	}
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    EncodeDIDKey(pub),
		Subject:   hex.EncodeToString(sub[:]),
		Audience:  jwt.ClaimStrings{aud},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
}

// VerifyJWT checks the signature against the issuer's did:key, the
// audience and the expiry.
func VerifyJWT(token, aud string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		c, ok := t.Claims.(*Claims)
		if !ok {
			return nil, ErrInvalidToken
		}
		return DecodeDIDKey(c.Issuer)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithAudience(aud),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
