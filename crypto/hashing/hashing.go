// Package hashing provides the SHA-256 based hashing used across the
// protocol: domain-separated digests for Fiat-Shamir challenges and the
// election hash chain, HMAC tags and key derivation for share encryption,
// and canonical-JSON artifact digests.
//
// Every digest is computed over a label followed by a sequence of
// length-prefixed items, so no two distinct input sequences can produce the
// same byte stream.
package hashing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/voteguard/voteguard-node/crypto/modular"
)

// Size is the digest size in bytes.
const Size = sha256.Size

// Hasher accumulates length-prefixed items under a domain-separation label.
type Hasher struct {
	items [][]byte
}

// New returns a Hasher seeded with the given domain-separation label.
func New(label string) *Hasher {
	h := &Hasher{}
	h.items = append(h.items, []byte(label))
	return h
}

// Bytes appends a raw byte item.
func (h *Hasher) Bytes(b []byte) *Hasher {
	cp := make([]byte, len(b))
	copy(cp, b)
	h.items = append(h.items, cp)
	return h
}

// String appends a string item.
func (h *Hasher) String(s string) *Hasher {
	return h.Bytes([]byte(s))
}

// BigInt appends the big-endian bytes of x. Nil hashes as the empty item.
func (h *Hasher) BigInt(x *big.Int) *Hasher {
	if x == nil {
		return h.Bytes(nil)
	}
	return h.Bytes(x.Bytes())
}

// Element appends a group element.
func (h *Hasher) Element(e modular.Element) *Hasher {
	return h.BigInt(e.BigInt())
}

// Scalar appends a field element.
func (h *Hasher) Scalar(s modular.Scalar) *Hasher {
	return h.BigInt(s.BigInt())
}

// Uint64 appends an integer item in fixed-width big-endian form.
func (h *Hasher) Uint64(x uint64) *Hasher {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], x)
	return h.Bytes(buf[:])
}

// Sum returns the digest of the accumulated items.
func (h *Hasher) Sum() []byte {
	d := sha256.New()
	var lenBuf [4]byte
	for _, item := range h.items {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(item)))
		d.Write(lenBuf[:])
		d.Write(item)
	}
	return d.Sum(nil)
}

// SumScalar reduces the digest into the exponent field, which is how
// Fiat-Shamir challenges are derived.
func (h *Hasher) SumScalar(f *modular.Field) modular.Scalar {
	return f.Scalar(new(big.Int).SetBytes(h.Sum()))
}

// HMAC returns the HMAC-SHA256 tag of data under key.
func HMAC(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}

// VerifyHMAC reports whether tag is the HMAC-SHA256 of data under key,
// in constant time.
func VerifyHMAC(key, data, tag []byte) bool {
	return hmac.Equal(HMAC(key, data), tag)
}

// DeriveKey derives a 32-byte symmetric key from a shared secret and a
// context label, HKDF-extract style: HMAC(label, secret).
func DeriveKey(label string, secret []byte) []byte {
	return HMAC([]byte(label), secret)
}

// JSONDigest serializes v to canonical JSON and returns the serialized
// bytes together with their SHA-256 digest. The returned bytes are the
// artifact that gets published; re-serializing with different whitespace or
// key order would change the digest, so producers must pin these exact
// bytes.
func JSONDigest(v any) ([]byte, []byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("canonical json: %w", err)
	}
	sum := sha256.Sum256(data)
	return data, sum[:], nil
}
