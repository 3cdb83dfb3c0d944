package hashing

import "encoding/binary"

// ExpandKey stretches a 32-byte key into length bytes of pad material,
// counter-mode over HMAC-SHA256. Used to pad share plaintexts whose width
// follows the field order, which exceeds one digest for real parameter
// sets.
func ExpandKey(key []byte, label string, length int) []byte {
	out := make([]byte, 0, length)
	var ctr [4]byte
	for i := uint32(1); len(out) < length; i++ {
		binary.BigEndian.PutUint32(ctr[:], i)
		block := HMAC(key, append([]byte(label), ctr[:]...))
		out = append(out, block...)
	}
	return out[:length]
}
