package guardian

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/voteguard/voteguard-node/election"
	"github.com/voteguard/voteguard-node/types"
)

// SecretKeyShare is guardian j's portion of the joint secret key: the sum
// over all dealers of the shares directed to j. Persisted only locally,
// encrypted at rest.
type SecretKeyShare struct {
	GuardianIndex uint32        `json:"guardian_index"`
	Share         *types.BigInt `json:"share"`
}

// MissingSharesError reports the dealers whose shares were absent or
// unvalidated when combining a key share. Key generation, unlike
// decryption, needs a share from every guardian; the remedy is a public
// complaint naming these dealers, not a local retry.
type MissingSharesError struct {
	Dealers []uint32
}

func (e *MissingSharesError) Error() string {
	parts := make([]string, len(e.Dealers))
	for i, d := range e.Dealers {
		parts[i] = fmt.Sprint(d)
	}
	return "guardian: missing validated shares from dealers " + strings.Join(parts, ",")
}

// ComputeSecretKeyShare combines the validated shares directed to this
// guardian into its final key share s_j = Σ_i P_i(j) mod q, with one share
// required from every dealer in publicKeys. publicKeys is the included
// guardian set: an excluded (misbehaving) guardian is simply left out of
// it, and the resulting shares then belong to the joint key computed over
// the same reduced set. The guardian's own share is evaluated locally from
// its secret key rather than round-tripped through encryption.
func ComputeSecretKeyShare(params *election.Parameters, publicKeys []*PublicKey, shares []*ValidatedShare, my *SecretKey) (*SecretKeyShare, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	f := params.Group().Field()

	byDealer := make(map[uint32]*ValidatedShare, len(shares))
	for _, s := range shares {
		if s.RecipientIndex != my.GuardianIndex {
			return nil, fmt.Errorf("guardian: share from dealer %d directed to %d, not to %d",
				s.DealerIndex, s.RecipientIndex, my.GuardianIndex)
		}
		if _, dup := byDealer[s.DealerIndex]; dup {
			return nil, fmt.Errorf("guardian: duplicate share from dealer %d", s.DealerIndex)
		}
		byDealer[s.DealerIndex] = s
	}

	sum := new(big.Int)
	q := f.Order()
	var missing []uint32
	included := false
	for _, pk := range publicKeys {
		dealer := pk.GuardianIndex
		if dealer == my.GuardianIndex {
			included = true
		}
		var value *big.Int
		switch {
		case dealer == my.GuardianIndex:
			value = my.EvaluateAt(f, my.GuardianIndex).BigInt()
		case byDealer[dealer] != nil:
			value = byDealer[dealer].Value.MathBigInt()
		default:
			missing = append(missing, dealer)
			continue
		}
		sum.Add(sum, value)
		sum.Mod(sum, q)
	}
	if !included {
		return nil, fmt.Errorf("guardian: guardian %d not in the included set", my.GuardianIndex)
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, &MissingSharesError{Dealers: missing}
	}

	// Cross-check the combined share against the public commitments of
	// every dealer before trusting it for decryption.
	g := params.Group()
	lhs, err := g.BaseExp(f.Scalar(sum))
	if err != nil {
		return nil, err
	}
	rhs, err := JointShareCommitment(g, publicKeys, my.GuardianIndex)
	if err != nil {
		return nil, err
	}
	if !lhs.Equal(rhs) {
		return nil, fmt.Errorf("guardian: combined key share does not match public commitments")
	}

	return &SecretKeyShare{
		GuardianIndex: my.GuardianIndex,
		Share:         types.FromBigInt(sum),
	}, nil
}
