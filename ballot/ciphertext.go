// Package ballot implements the ballot encryption engine: exponential
// ElGamal encryption of selection vectors under the joint public key,
// disjunctive well-formedness proofs per option, a selection-limit proof
// per contest, device chaining and confirmation codes. Encrypted ballots
// are created client-side, submitted once and immutable thereafter; anyone
// holding the pre-voting data can re-verify them.
package ballot

import (
	"fmt"

	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/types"
)

// Ciphertext is an ElGamal pair over the subgroup: alpha = g^xi,
// beta = g^sigma * K^xi.
type Ciphertext struct {
	Alpha *types.BigInt `json:"alpha" cbor:"1,keyasint"`
	Beta  *types.BigInt `json:"beta" cbor:"2,keyasint"`
}

// Elements rebinds the ciphertext to the group, validating subgroup
// membership of both components.
func (ct *Ciphertext) Elements(g *modular.Group) (alpha, beta modular.Element, err error) {
	if ct == nil || ct.Alpha == nil || ct.Beta == nil {
		return modular.Element{}, modular.Element{}, fmt.Errorf("ballot: incomplete ciphertext")
	}
	alpha, err = g.ValidElement(ct.Alpha.MathBigInt())
	if err != nil {
		return modular.Element{}, modular.Element{}, fmt.Errorf("ballot: alpha: %w", err)
	}
	beta, err = g.ValidElement(ct.Beta.MathBigInt())
	if err != nil {
		return modular.Element{}, modular.Element{}, fmt.Errorf("ballot: beta: %w", err)
	}
	return alpha, beta, nil
}

// Mul returns the component-wise product of two ciphertexts, which
// encrypts the sum of their plaintexts. This is the homomorphism the tally
// is built on.
func (ct *Ciphertext) Mul(g *modular.Group, other *Ciphertext) (*Ciphertext, error) {
	a1, b1, err := ct.Elements(g)
	if err != nil {
		return nil, err
	}
	a2, b2, err := other.Elements(g)
	if err != nil {
		return nil, err
	}
	o := g.Ops()
	alpha := o.Mul(a1, a2)
	beta := o.Mul(b1, b2)
	if err := o.Err(); err != nil {
		return nil, err
	}
	return &Ciphertext{
		Alpha: types.FromBigInt(alpha.BigInt()),
		Beta:  types.FromBigInt(beta.BigInt()),
	}, nil
}

// Scale exponentiates both components by the weight, multiplying the
// plaintext contribution by that integer. Scaling is only meaningful
// before accumulation.
func (ct *Ciphertext) Scale(g *modular.Group, weight modular.Scalar) (*Ciphertext, error) {
	alpha, beta, err := ct.Elements(g)
	if err != nil {
		return nil, err
	}
	o := g.Ops()
	sa := o.Exp(alpha, weight)
	sb := o.Exp(beta, weight)
	if err := o.Err(); err != nil {
		return nil, err
	}
	return &Ciphertext{
		Alpha: types.FromBigInt(sa.BigInt()),
		Beta:  types.FromBigInt(sb.BigInt()),
	}, nil
}
