// Package otp generates fixed-length numeric one-time codes and the keyed
// digests under which they are stored.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// DefaultLength is used when a Generator is built with a non-positive length.
const DefaultLength = 6

// Generator produces uniformly random decimal codes of a fixed length.
type Generator struct {
	length int
	limit  *big.Int
}

func NewGenerator(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	return &Generator{length: length, limit: limit}
}

func (g *Generator) Length() int { return g.length }

// Generate returns a code in [0, 10^length) left-padded with zeros.
func (g *Generator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, g.limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", g.length, n), nil
}

// Hasher derives keyed BLAKE2b-256 digests so the TTL store never holds a
// cleartext code. The same code always maps to the same digest for a pepper.
type Hasher struct {
	key []byte
}

// NewHasher keys the digest with pepper. BLAKE2b accepts keys up to 64 bytes;
// longer peppers are first reduced with an unkeyed BLAKE2b-512.
func NewHasher(pepper string) *Hasher {
	key := []byte(pepper)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &Hasher{key: key}
}

func (h *Hasher) Digest(code string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// key length is bounded in NewHasher
		panic(err)
	}
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal compares two digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
