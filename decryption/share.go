// Package decryption implements threshold decryption of the encrypted
// tally. Per ciphertext the flow is: each participating guardian computes
// a partial decryption share (1), commits to Chaum-Pedersen randomness
// (2), a quorum of shares is combined by Lagrange interpolation in the
// exponent (3), every contributing guardian produces its response share
// against the joint challenge (4), and the combiner verifies all proof
// shares and recovers the bounded plaintext (5). Any invalid proof share
// is individually attributable to its guardian.
package decryption

import (
	"fmt"

	"github.com/voteguard/voteguard-node/ballot"
	"github.com/voteguard/voteguard-node/guardian"
	"github.com/voteguard/voteguard-node/prevoting"
	"github.com/voteguard/voteguard-node/tally"
	"github.com/voteguard/voteguard-node/types"
)

// Share is one guardian's partial decryption of one ciphertext:
// M_i = alpha^s_i where s_i is the guardian's secret key share.
type Share struct {
	GuardianIndex uint32        `json:"guardian_index" cbor:"1,keyasint"`
	Value         *types.BigInt `json:"value" cbor:"2,keyasint"`
}

// ComputeShare computes this guardian's decryption share for a single
// ciphertext.
func ComputeShare(pvd *prevoting.PreVotingData, keyShare *guardian.SecretKeyShare, ct *ballot.Ciphertext) (*Share, error) {
	g := pvd.Group()
	alpha, _, err := ct.Elements(g)
	if err != nil {
		return nil, err
	}
	s := g.Field().Scalar(keyShare.Share.MathBigInt())
	m, err := alpha.Exp(s)
	if err != nil {
		return nil, fmt.Errorf("decryption: share: %w", err)
	}
	return &Share{
		GuardianIndex: keyShare.GuardianIndex,
		Value:         types.FromBigInt(m.BigInt()),
	}, nil
}

// TallyShares is one guardian's decryption shares for the whole tally,
// mirroring the tally layout: per contest, one share per option, nil for
// options nobody voted on.
type TallyShares struct {
	GuardianIndex uint32              `json:"guardian_index" cbor:"1,keyasint"`
	Contests      map[uint32][]*Share `json:"contests" cbor:"2,keyasint"`
}

// ComputeTallyShares computes this guardian's decryption share for every
// ciphertext in the tally.
func ComputeTallyShares(pvd *prevoting.PreVotingData, keyShare *guardian.SecretKeyShare, t *tally.Encrypted) (*TallyShares, error) {
	out := &TallyShares{
		GuardianIndex: keyShare.GuardianIndex,
		Contests:      make(map[uint32][]*Share, len(t.Contests)),
	}
	for contestIndex, cts := range t.Contests {
		shares := make([]*Share, len(cts))
		for i, ct := range cts {
			if ct == nil {
				continue
			}
			s, err := ComputeShare(pvd, keyShare, ct)
			if err != nil {
				return nil, fmt.Errorf("decryption: contest %d option %d: %w", contestIndex, i+1, err)
			}
			shares[i] = s
		}
		out.Contests[contestIndex] = shares
	}
	return out, nil
}
