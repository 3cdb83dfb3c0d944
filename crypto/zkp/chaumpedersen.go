package zkp

import (
	"fmt"
	"io"

	"github.com/voteguard/voteguard-node/crypto/hashing"
	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/types"
)

// ChaumPedersenProof proves equality of discrete logs: knowledge of a single
// witness w with X1 = g^w and X2 = base2^w. It is used both for the
// selection-limit proof of a contest (base2 = joint key, witness = sum of
// the encryption nonces) and for decryption correctness (base2 = ciphertext
// alpha, witness = secret key material).
type ChaumPedersenProof struct {
	CommitmentA *types.BigInt `json:"commitment_a" cbor:"1,keyasint"`
	CommitmentB *types.BigInt `json:"commitment_b" cbor:"2,keyasint"`
	Challenge   *types.BigInt `json:"challenge" cbor:"3,keyasint"`
	Response    *types.BigInt `json:"response" cbor:"4,keyasint"`
}

// EqualityChallenge derives the Fiat-Shamir challenge of a Chaum-Pedersen
// equality statement. It is exported because the threshold decryption proof
// computes the same challenge jointly across guardians.
func EqualityChallenge(f *modular.Field, context []byte, base2, x1, x2, a, b modular.Element) modular.Scalar {
	return hashing.New("VG-chaum-pedersen").
		Bytes(context).
		Element(base2).
		Element(x1).
		Element(x2).
		Element(a).
		Element(b).
		SumScalar(f)
}

// ProveEquality proves that x1 = g^w and x2 = base2^w for the given witness
// w, bound to context.
func ProveEquality(rng io.Reader, g *modular.Group, context []byte, base2 modular.Element, witness modular.Scalar, x1, x2 modular.Element) (*ChaumPedersenProof, error) {
	u, err := g.Field().RandomScalar(rng)
	if err != nil {
		return nil, err
	}
	o := g.Ops()
	a := o.BaseExp(u)
	b := o.Exp(base2, u)
	c := EqualityChallenge(g.Field(), context, base2, x1, x2, a, b)
	z := o.Add(u, o.MulScalar(c, witness))
	if err := o.Err(); err != nil {
		return nil, fmt.Errorf("chaum-pedersen prove: %w", err)
	}
	return &ChaumPedersenProof{
		CommitmentA: types.FromBigInt(a.BigInt()),
		CommitmentB: types.FromBigInt(b.BigInt()),
		Challenge:   types.FromBigInt(c.BigInt()),
		Response:    types.FromBigInt(z.BigInt()),
	}, nil
}

// Verify checks the equality proof. It returns false on any malformed or
// forged input.
func (p *ChaumPedersenProof) Verify(g *modular.Group, context []byte, base2, x1, x2 modular.Element) bool {
	if p == nil || p.CommitmentA == nil || p.CommitmentB == nil || p.Challenge == nil || p.Response == nil {
		return false
	}
	a, err := g.ValidElement(p.CommitmentA.MathBigInt())
	if err != nil {
		return false
	}
	b, err := g.ValidElement(p.CommitmentB.MathBigInt())
	if err != nil {
		return false
	}
	c := g.Field().Scalar(p.Challenge.MathBigInt())
	z := g.Field().Scalar(p.Response.MathBigInt())
	if !c.Equal(EqualityChallenge(g.Field(), context, base2, x1, x2, a, b)) {
		return false
	}
	// g^z == a * x1^c  and  base2^z == b * x2^c
	o := g.Ops()
	lhs1 := o.BaseExp(z)
	rhs1 := o.Mul(a, o.Exp(x1, c))
	lhs2 := o.Exp(base2, z)
	rhs2 := o.Mul(b, o.Exp(x2, c))
	if o.Err() != nil {
		return false
	}
	return lhs1.Equal(rhs1) && lhs2.Equal(rhs2)
}
