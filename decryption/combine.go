package decryption

import (
	"errors"
	"fmt"
	"sort"

	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/prevoting"
	"github.com/voteguard/voteguard-node/types"
)

var (
	// ErrInsufficientShares means fewer than threshold valid shares were
	// supplied for a ciphertext. The remedy is recruiting more guardians,
	// not investigating misbehavior, so it is distinct from every
	// validation error.
	ErrInsufficientShares = errors.New("decryption: insufficient shares for threshold")
	// ErrDuplicateShare means two shares carried the same guardian
	// index. Duplicates are rejected, not deduplicated.
	ErrDuplicateShare = errors.New("decryption: duplicate guardian share")
)

// CombinedShare is the Lagrange combination of a quorum of decryption
// shares for one ciphertext: M = Π M_i^λ_i = alpha^s where s is the joint
// secret. Participants records which guardian indices contributed, in
// ascending order; the proof responses must come from exactly this set.
type CombinedShare struct {
	Value        *types.BigInt `json:"value" cbor:"1,keyasint"`
	Participants []int         `json:"participants" cbor:"2,keyasint"`
}

// CombineShares combines a quorum of at least threshold shares by
// Lagrange interpolation in the exponent.
func CombineShares(pvd *prevoting.PreVotingData, shares []*Share) (*CombinedShare, error) {
	g := pvd.Group()
	f := g.Field()
	threshold := int(pvd.Parameters.Varying.Threshold)

	seen := make(map[uint32]bool, len(shares))
	participants := make([]int, 0, len(shares))
	values := make(map[int]modular.Element, len(shares))
	for _, s := range shares {
		if s == nil || s.Value == nil {
			continue
		}
		if seen[s.GuardianIndex] {
			return nil, fmt.Errorf("%w: guardian %d", ErrDuplicateShare, s.GuardianIndex)
		}
		seen[s.GuardianIndex] = true
		v, err := g.ValidElement(s.Value.MathBigInt())
		if err != nil {
			return nil, fmt.Errorf("decryption: share of guardian %d: %w", s.GuardianIndex, err)
		}
		participants = append(participants, int(s.GuardianIndex))
		values[int(s.GuardianIndex)] = v
	}
	if len(participants) < threshold {
		return nil, fmt.Errorf("%w: %d shares, need %d", ErrInsufficientShares, len(participants), threshold)
	}
	sort.Ints(participants)

	lagrange, err := f.LagrangeCoefficients(participants)
	if err != nil {
		return nil, err
	}
	o := g.Ops()
	combined := g.One()
	for _, id := range participants {
		combined = o.Mul(combined, o.Exp(values[id], lagrange[id]))
	}
	if err := o.Err(); err != nil {
		return nil, err
	}
	return &CombinedShare{
		Value:        types.FromBigInt(combined.BigInt()),
		Participants: participants,
	}, nil
}

// Element rebinds the combined share to the group.
func (cs *CombinedShare) Element(g *modular.Group) (modular.Element, error) {
	if cs == nil || cs.Value == nil {
		return modular.Element{}, fmt.Errorf("decryption: empty combined share")
	}
	return g.ValidElement(cs.Value.MathBigInt())
}
