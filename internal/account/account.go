// Package account derives ledger identities from ed25519 keys. An identity handle is an Ethereum style address:
// the last 20 bytes of the keccak256 hash of the public key, hex encoded with a 0x prefix.
package account

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const addressLen = 20

var (
	// ErrInvalidKey is returned when key material has the wrong size.
	ErrInvalidKey = errors.New("invalid key")
)

// Address returns the identity handle owned by pub.
func Address(pub ed25519.PublicKey) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-addressLen:])
}

// NormalizeAddress lower-cases addr and makes sure it's a 40-character hex string prefixed with 0x.
// The second return value is false if addr is not a valid address.
func NormalizeAddress(addr string) (string, bool) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = strings.TrimPrefix(addr, "0x")
	if len(addr) != addressLen*2 {
		return "", false
	}

	_, err := hex.DecodeString(addr)
	if err != nil {
		return "", false
	}

	return "0x" + addr, true
}

// Verify reports whether sig is a valid signature of msg by pub.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

type Key struct {
	priv ed25519.PrivateKey
}

// NewKeyFromSeed rebuilds a key from its 32 byte seed.
func NewKeyFromSeed(seed []byte) (*Key, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidKey, ed25519.SeedSize, len(seed))
	}
	return &Key{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func GenerateKey() (*Key, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Key{priv: priv}, nil
}

func (k *Key) PublicKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

func (k *Key) Seed() []byte {
	return k.priv.Seed()
}

func (k *Key) Address() string {
	return Address(k.PublicKey())
}

func (k *Key) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}
