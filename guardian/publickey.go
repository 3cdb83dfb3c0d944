package guardian

import (
	"fmt"
	"math/big"

	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/crypto/zkp"
	"github.com/voteguard/voteguard-node/election"
	"github.com/voteguard/voteguard-node/types"
)

// PublicKey is guardian i's public key: the ordered coefficient commitments
// g^a_m with a Schnorr proof of knowledge per coefficient. It is shared
// globally via the bulletin board.
type PublicKey struct {
	GuardianIndex          uint32              `json:"guardian_index" cbor:"1,keyasint"`
	Label                  string              `json:"label" cbor:"2,keyasint"`
	CoefficientCommitments []*types.BigInt     `json:"coefficient_commitments" cbor:"3,keyasint"`
	CoefficientProofs      []*zkp.SchnorrProof `json:"coefficient_proofs" cbor:"4,keyasint"`
}

// Validate checks that the key is internally consistent for the given
// parameter set: right number of commitments, every commitment a subgroup
// member, and every knowledge proof valid. A failed validation routes into
// the public complaint path, not a local abort.
func (pk *PublicKey) Validate(params *election.Parameters, paramHash []byte) error {
	if pk.GuardianIndex == 0 || pk.GuardianIndex > params.Varying.GuardianCount {
		return fmt.Errorf("guardian: public key index %d out of range [1,%d]",
			pk.GuardianIndex, params.Varying.GuardianCount)
	}
	if len(pk.CoefficientCommitments) != int(params.Varying.Threshold) {
		return fmt.Errorf("guardian %d: %d coefficient commitments, want %d",
			pk.GuardianIndex, len(pk.CoefficientCommitments), params.Varying.Threshold)
	}
	if len(pk.CoefficientProofs) != len(pk.CoefficientCommitments) {
		return fmt.Errorf("guardian %d: %d coefficient proofs, want %d",
			pk.GuardianIndex, len(pk.CoefficientProofs), len(pk.CoefficientCommitments))
	}
	g := params.Group()
	for m, commit := range pk.CoefficientCommitments {
		if commit == nil {
			return fmt.Errorf("guardian %d: missing commitment %d", pk.GuardianIndex, m)
		}
		elem, err := g.ValidElement(commit.MathBigInt())
		if err != nil {
			return fmt.Errorf("guardian %d: commitment %d: %w", pk.GuardianIndex, m, err)
		}
		if !pk.CoefficientProofs[m].Verify(g, proofContext(paramHash, pk.GuardianIndex, m), elem) {
			return fmt.Errorf("guardian %d: coefficient proof %d failed", pk.GuardianIndex, m)
		}
	}
	return nil
}

// ConstantCommitment returns g^a_0, the guardian's contribution to the
// joint public key and its encryption key for directed shares.
func (pk *PublicKey) ConstantCommitment(g *modular.Group) (modular.Element, error) {
	if len(pk.CoefficientCommitments) == 0 || pk.CoefficientCommitments[0] == nil {
		return modular.Element{}, fmt.Errorf("guardian %d: empty public key", pk.GuardianIndex)
	}
	return g.ValidElement(pk.CoefficientCommitments[0].MathBigInt())
}

// ShareCommitment computes, entirely from public data, the commitment to
// the share this guardian dealt to recipient j:
//
//	g^P_i(j) = Π_m (g^a_m)^(j^m)
//
// the polynomial evaluation check in the exponent used both to validate a
// decrypted share and to verify decryption proof responses.
func (pk *PublicKey) ShareCommitment(g *modular.Group, recipient uint32) (modular.Element, error) {
	f := g.Field()
	o := g.Ops()
	acc := g.One()
	xPower := big.NewInt(1)
	xv := new(big.Int).SetUint64(uint64(recipient))
	q := f.Order()
	for m, commit := range pk.CoefficientCommitments {
		if commit == nil {
			return modular.Element{}, fmt.Errorf("guardian %d: missing commitment %d", pk.GuardianIndex, m)
		}
		elem, err := g.ValidElement(commit.MathBigInt())
		if err != nil {
			return modular.Element{}, fmt.Errorf("guardian %d: commitment %d: %w", pk.GuardianIndex, m, err)
		}
		acc = o.Mul(acc, o.Exp(elem, f.Scalar(xPower)))
		xPower.Mul(xPower, xv)
		xPower.Mod(xPower, q)
	}
	if err := o.Err(); err != nil {
		return modular.Element{}, err
	}
	return acc, nil
}

// JointShareCommitment computes g^s_j for recipient j across all dealers,
// the public commitment to guardian j's combined secret key share.
func JointShareCommitment(g *modular.Group, publicKeys []*PublicKey, recipient uint32) (modular.Element, error) {
	o := g.Ops()
	acc := g.One()
	for _, pk := range publicKeys {
		sc, err := pk.ShareCommitment(g, recipient)
		if err != nil {
			return modular.Element{}, err
		}
		acc = o.Mul(acc, sc)
	}
	if err := o.Err(); err != nil {
		return modular.Element{}, err
	}
	return acc, nil
}
