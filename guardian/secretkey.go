// Package guardian implements the per-guardian key material of the
// protocol: polynomial secret keys for Shamir sharing, public keys made of
// coefficient commitments and knowledge proofs, encrypted point-value
// shares exchanged between guardians, and the combination of validated
// shares into each guardian's portion of the joint secret key.
//
// Failures in this package are inherently public: an invalid peer key or
// share routes into a Status complaint naming the offending guardians,
// published on the bulletin board for adjudication, rather than aborting
// the election locally.
package guardian

import (
	"fmt"
	"io"
	"math/big"

	"github.com/voteguard/voteguard-node/crypto/hashing"
	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/crypto/zkp"
	"github.com/voteguard/voteguard-node/election"
	"github.com/voteguard/voteguard-node/types"
)

// SecretKey is guardian i's secret polynomial of degree k-1 over the
// exponent field. The constant coefficient is the guardian's own secret;
// evaluations at the other guardians' indices are the shares dealt to them.
// It is persisted only locally, encrypted at rest, and never transmitted.
type SecretKey struct {
	GuardianIndex uint32          `json:"guardian_index"`
	Label         string          `json:"label"`
	Coefficients  []*types.BigInt `json:"coefficients"`
}

// Generate draws a fresh secret key for guardian index from the supplied
// randomness source: k random polynomial coefficients, the constant term
// being the guardian's own secret. Fresh randomness each call; there is no
// reproducibility guarantee.
func Generate(rng io.Reader, params *election.Parameters, index uint32, label string) (*SecretKey, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if index == 0 || index > params.Varying.GuardianCount {
		return nil, fmt.Errorf("guardian: index %d out of range [1,%d]", index, params.Varying.GuardianCount)
	}
	f := params.Group().Field()
	coeffs := make([]*types.BigInt, params.Varying.Threshold)
	for m := range coeffs {
		for {
			c, err := f.RandomScalar(rng)
			if err != nil {
				return nil, fmt.Errorf("guardian: draw coefficient: %w", err)
			}
			// A zero constant term would make the guardian's key
			// contribution trivial.
			if m == 0 && c.IsZero() {
				continue
			}
			coeffs[m] = types.FromBigInt(c.BigInt())
			break
		}
	}
	return &SecretKey{GuardianIndex: index, Label: label, Coefficients: coeffs}, nil
}

// coefficientScalars rebinds the serialized coefficients to the field.
func (sk *SecretKey) coefficientScalars(f *modular.Field) []modular.Scalar {
	out := make([]modular.Scalar, len(sk.Coefficients))
	for m, c := range sk.Coefficients {
		out[m] = f.Scalar(c.MathBigInt())
	}
	return out
}

// EvaluateAt evaluates the secret polynomial at x, which for x = j is the
// share dealt to guardian j.
func (sk *SecretKey) EvaluateAt(f *modular.Field, x uint32) modular.Scalar {
	q := f.Order()
	result := new(big.Int)
	xPower := big.NewInt(1)
	xv := new(big.Int).SetUint64(uint64(x))
	for _, c := range sk.Coefficients {
		term := new(big.Int).Mul(c.MathBigInt(), xPower)
		result.Add(result, term)
		result.Mod(result, q)
		xPower.Mul(xPower, xv)
		xPower.Mod(xPower, q)
	}
	return f.Scalar(result)
}

// proofContext binds a coefficient knowledge proof to the parameter set,
// the guardian and the coefficient position, so proofs cannot be replayed
// across elections, guardians or positions.
func proofContext(paramHash []byte, index uint32, coeff int) []byte {
	return hashing.New("VG-guardian-key").
		Bytes(paramHash).
		Uint64(uint64(index)).
		Uint64(uint64(coeff)).
		Sum()
}

// PublicKey derives the guardian's public key: one Pedersen-style
// commitment g^a_m per coefficient, each with a Schnorr proof of knowledge
// bound to the parameter hash.
func (sk *SecretKey) PublicKey(rng io.Reader, params *election.Parameters, paramHash []byte) (*PublicKey, error) {
	g := params.Group()
	commitments := make([]*types.BigInt, len(sk.Coefficients))
	proofList := make([]*zkp.SchnorrProof, len(sk.Coefficients))
	for m, c := range sk.coefficientScalars(g.Field()) {
		commit, err := g.BaseExp(c)
		if err != nil {
			return nil, fmt.Errorf("guardian: commit coefficient %d: %w", m, err)
		}
		proof, err := zkp.ProveSchnorr(rng, g, proofContext(paramHash, sk.GuardianIndex, m), c, commit)
		if err != nil {
			return nil, fmt.Errorf("guardian: prove coefficient %d: %w", m, err)
		}
		commitments[m] = types.FromBigInt(commit.BigInt())
		proofList[m] = proof
	}
	return &PublicKey{
		GuardianIndex:          sk.GuardianIndex,
		Label:                  sk.Label,
		CoefficientCommitments: commitments,
		CoefficientProofs:      proofList,
	}, nil
}
