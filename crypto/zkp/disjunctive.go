package zkp

import (
	"fmt"
	"io"

	"github.com/voteguard/voteguard-node/crypto/hashing"
	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/types"
)

// SelectionProof is a disjunctive Chaum-Pedersen proof that an exponential
// ElGamal ciphertext (alpha, beta) = (g^xi, g^sigma * K^xi) encrypts
// sigma = 0 or sigma = 1, without revealing which. One branch transcript is
// real and the other simulated; the two branch challenges must sum to the
// Fiat-Shamir digest of both commitments, which is what prevents simulating
// both.
type SelectionProof struct {
	CommitA0   *types.BigInt `json:"commit_a0" cbor:"1,keyasint"`
	CommitB0   *types.BigInt `json:"commit_b0" cbor:"2,keyasint"`
	CommitA1   *types.BigInt `json:"commit_a1" cbor:"3,keyasint"`
	CommitB1   *types.BigInt `json:"commit_b1" cbor:"4,keyasint"`
	Challenge0 *types.BigInt `json:"challenge0" cbor:"5,keyasint"`
	Challenge1 *types.BigInt `json:"challenge1" cbor:"6,keyasint"`
	Response0  *types.BigInt `json:"response0" cbor:"7,keyasint"`
	Response1  *types.BigInt `json:"response1" cbor:"8,keyasint"`
}

func selectionChallenge(f *modular.Field, context []byte, key, alpha, beta, a0, b0, a1, b1 modular.Element) modular.Scalar {
	return hashing.New("VG-selection").
		Bytes(context).
		Element(key).
		Element(alpha).
		Element(beta).
		Element(a0).
		Element(b0).
		Element(a1).
		Element(b1).
		SumScalar(f)
}

// ProveSelection proves that (alpha, beta) encrypts sigma under the public
// key, where sigma must be 0 or 1 and xi is the encryption nonce.
func ProveSelection(rng io.Reader, g *modular.Group, context []byte, key modular.Element, alpha, beta modular.Element, xi modular.Scalar, sigma uint8) (*SelectionProof, error) {
	if sigma > 1 {
		return nil, fmt.Errorf("selection prove: plaintext %d out of range", sigma)
	}
	f := g.Field()

	// Simulated branch: the one for the value NOT encrypted.
	simChallenge, err := f.RandomScalar(rng)
	if err != nil {
		return nil, err
	}
	simResponse, err := f.RandomScalar(rng)
	if err != nil {
		return nil, err
	}
	u, err := f.RandomScalar(rng)
	if err != nil {
		return nil, err
	}

	o := g.Ops()

	// Simulated commitments for branch m (the false statement):
	//   a = g^z / alpha^c,  b = K^z / (beta/g^m)^c
	sim := 1 - sigma
	betaOverM := beta
	if sim == 1 {
		betaOverM = o.Div(beta, g.Generator())
	}
	simA := o.Div(o.BaseExp(simResponse), o.Exp(alpha, simChallenge))
	simB := o.Div(o.Exp(key, simResponse), o.Exp(betaOverM, simChallenge))

	// Real commitments for branch sigma.
	realA := o.BaseExp(u)
	realB := o.Exp(key, u)

	var a0, b0, a1, b1 modular.Element
	if sigma == 0 {
		a0, b0, a1, b1 = realA, realB, simA, simB
	} else {
		a0, b0, a1, b1 = simA, simB, realA, realB
	}

	c := selectionChallenge(f, context, key, alpha, beta, a0, b0, a1, b1)
	realChallenge := o.Sub(c, simChallenge)
	realResponse := o.Add(u, o.MulScalar(realChallenge, xi))
	if err := o.Err(); err != nil {
		return nil, fmt.Errorf("selection prove: %w", err)
	}

	p := &SelectionProof{
		CommitA0: types.FromBigInt(a0.BigInt()),
		CommitB0: types.FromBigInt(b0.BigInt()),
		CommitA1: types.FromBigInt(a1.BigInt()),
		CommitB1: types.FromBigInt(b1.BigInt()),
	}
	if sigma == 0 {
		p.Challenge0 = types.FromBigInt(realChallenge.BigInt())
		p.Response0 = types.FromBigInt(realResponse.BigInt())
		p.Challenge1 = types.FromBigInt(simChallenge.BigInt())
		p.Response1 = types.FromBigInt(simResponse.BigInt())
	} else {
		p.Challenge0 = types.FromBigInt(simChallenge.BigInt())
		p.Response0 = types.FromBigInt(simResponse.BigInt())
		p.Challenge1 = types.FromBigInt(realChallenge.BigInt())
		p.Response1 = types.FromBigInt(realResponse.BigInt())
	}
	return p, nil
}

// Verify checks that (alpha, beta) encrypts 0 or 1 under the public key.
// It returns false on any malformed or forged input.
func (p *SelectionProof) Verify(g *modular.Group, context []byte, key, alpha, beta modular.Element) bool {
	if p == nil {
		return false
	}
	for _, v := range []*types.BigInt{
		p.CommitA0, p.CommitB0, p.CommitA1, p.CommitB1,
		p.Challenge0, p.Challenge1, p.Response0, p.Response1,
	} {
		if v == nil {
			return false
		}
	}
	f := g.Field()
	a0, err := g.ValidElement(p.CommitA0.MathBigInt())
	if err != nil {
		return false
	}
	b0, err := g.ValidElement(p.CommitB0.MathBigInt())
	if err != nil {
		return false
	}
	a1, err := g.ValidElement(p.CommitA1.MathBigInt())
	if err != nil {
		return false
	}
	b1, err := g.ValidElement(p.CommitB1.MathBigInt())
	if err != nil {
		return false
	}
	c0 := f.Scalar(p.Challenge0.MathBigInt())
	c1 := f.Scalar(p.Challenge1.MathBigInt())
	z0 := f.Scalar(p.Response0.MathBigInt())
	z1 := f.Scalar(p.Response1.MathBigInt())

	o := g.Ops()

	// The branch challenges must add up to the digest of the full
	// transcript.
	c := selectionChallenge(f, context, key, alpha, beta, a0, b0, a1, b1)
	if !c.Equal(o.Add(c0, c1)) {
		return false
	}

	// Branch 0: g^z0 == a0 * alpha^c0,  K^z0 == b0 * beta^c0
	if lhs, rhs := o.BaseExp(z0), o.Mul(a0, o.Exp(alpha, c0)); o.Err() != nil || !lhs.Equal(rhs) {
		return false
	}
	if lhs, rhs := o.Exp(key, z0), o.Mul(b0, o.Exp(beta, c0)); o.Err() != nil || !lhs.Equal(rhs) {
		return false
	}

	// Branch 1: g^z1 == a1 * alpha^c1,  K^z1 == b1 * (beta/g)^c1
	betaOver1 := o.Div(beta, g.Generator())
	if lhs, rhs := o.BaseExp(z1), o.Mul(a1, o.Exp(alpha, c1)); o.Err() != nil || !lhs.Equal(rhs) {
		return false
	}
	if lhs, rhs := o.Exp(key, z1), o.Mul(b1, o.Exp(betaOver1, c1)); o.Err() != nil || !lhs.Equal(rhs) {
		return false
	}
	return o.Err() == nil
}
