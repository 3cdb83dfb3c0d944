package decryption

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/voteguard/voteguard-node/ballot"
	"github.com/voteguard/voteguard-node/crypto/zkp"
	"github.com/voteguard/voteguard-node/guardian"
	"github.com/voteguard/voteguard-node/log"
	"github.com/voteguard/voteguard-node/prevoting"
	"github.com/voteguard/voteguard-node/tally"
	"github.com/voteguard/voteguard-node/types"
)

// InvalidProofSharesError names every guardian whose proof response failed
// verification for some ciphertext. Each failing share is individually
// attributable, so misbehavior is never reported as an anonymous
// aggregate failure.
type InvalidProofSharesError struct {
	Guardians []int
}

func (e *InvalidProofSharesError) Error() string {
	ids := make([]string, len(e.Guardians))
	for i, id := range e.Guardians {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("decryption: invalid proof shares from guardians [%s]", strings.Join(ids, " "))
}

// OptionResult is the decrypted tally of one option together with the
// Chaum-Pedersen proof that the decryption is correct. A nil Proof is
// only valid for options no ballot contributed to, which decrypt to zero
// votes trivially.
type OptionResult struct {
	Votes uint64                  `json:"votes" cbor:"1,keyasint"`
	Proof *zkp.ChaumPedersenProof `json:"proof,omitempty" cbor:"2,keyasint,omitempty"`
}

// DecryptCiphertext runs the combiner's side of the protocol for a single
// ciphertext: combine the quorum's shares, verify every guardian's proof
// response individually, assemble the aggregate well-formedness proof and
// recover the bounded plaintext.
//
// The shares, commits and responses must all come from the same guardian
// set. Verification of the responses implies the shares themselves are
// correct, so no separate share check is needed.
func DecryptCiphertext(pvd *prevoting.PreVotingData, ct *ballot.Ciphertext, shares []*Share, commits []*ProofCommit, responses []*ProofResponse, maxPlain uint64) (*OptionResult, error) {
	g := pvd.Group()
	f := g.Field()
	alpha, beta, err := ct.Elements(g)
	if err != nil {
		return nil, err
	}
	key, err := pvd.JointKeyElement()
	if err != nil {
		return nil, err
	}

	combined, err := CombineShares(pvd, shares)
	if err != nil {
		return nil, err
	}
	combinedElem, err := combined.Element(g)
	if err != nil {
		return nil, err
	}
	// Empty share entries are skipped the same way CombineShares skips
	// them, so a hollow artifact cannot shadow an honest guardian's share
	// under the same index.
	shareByIndex := make(map[int]*Share, len(shares))
	for _, s := range shares {
		if s == nil || s.Value == nil {
			continue
		}
		shareByIndex[int(s.GuardianIndex)] = s
	}
	responseByIndex := make(map[int]*ProofResponse, len(responses))
	for _, r := range responses {
		if r == nil || r.Response == nil {
			continue
		}
		if _, dup := responseByIndex[int(r.GuardianIndex)]; dup {
			return nil, fmt.Errorf("%w: response of guardian %d", ErrDuplicateShare, r.GuardianIndex)
		}
		responseByIndex[int(r.GuardianIndex)] = r
	}

	a, b, commitByIndex, err := aggregateCommits(g, combined.Participants, commits)
	if err != nil {
		return nil, err
	}
	c := jointChallenge(pvd, alpha, key, combinedElem, a, b)
	lagrange, err := f.LagrangeCoefficients(combined.Participants)
	if err != nil {
		return nil, err
	}

	// Per-guardian response check: g^z_i == a_i·(S_i^λ_i)^c and
	// alpha^z_i == b_i·(M_i^λ_i)^c, with S_i the guardian's joint share
	// commitment from the key ceremony. A guardian cannot pass both with
	// anything but λ_i-weighted use of its real key share.
	var invalid []int
	o := g.Ops()
	zSum := f.Zero()
	for _, id := range combined.Participants {
		resp, ok := responseByIndex[id]
		if !ok {
			return nil, fmt.Errorf("decryption: no proof response from guardian %d", id)
		}
		pc := commitByIndex[id]
		shareCommit, err := guardian.JointShareCommitment(g, pvd.GuardianKeys, uint32(id))
		if err != nil {
			return nil, fmt.Errorf("decryption: share commitment of guardian %d: %w", id, err)
		}
		mi, err := g.ValidElement(shareByIndex[id].Value.MathBigInt())
		if err != nil {
			return nil, fmt.Errorf("decryption: share of guardian %d: %w", id, err)
		}
		ai, err := g.ValidElement(pc.CommitA.MathBigInt())
		if err != nil {
			return nil, fmt.Errorf("decryption: commit of guardian %d: %w", id, err)
		}
		bi, err := g.ValidElement(pc.CommitB.MathBigInt())
		if err != nil {
			return nil, fmt.Errorf("decryption: commit of guardian %d: %w", id, err)
		}
		z := f.Scalar(resp.Response.MathBigInt())

		lhs1 := o.BaseExp(z)
		rhs1 := o.Mul(ai, o.Exp(o.Exp(shareCommit, lagrange[id]), c))
		lhs2 := o.Exp(alpha, z)
		rhs2 := o.Mul(bi, o.Exp(o.Exp(mi, lagrange[id]), c))
		if err := o.Err(); err != nil {
			return nil, err
		}
		if !lhs1.Equal(rhs1) || !lhs2.Equal(rhs2) {
			invalid = append(invalid, id)
			continue
		}
		zSum = o.Add(zSum, z)
	}
	if len(invalid) > 0 {
		sort.Ints(invalid)
		return nil, &InvalidProofSharesError{Guardians: invalid}
	}
	if err := o.Err(); err != nil {
		return nil, err
	}

	// T = beta / M, then the bounded discrete log recovers the tally.
	plainElem := o.Div(beta, combinedElem)
	if err := o.Err(); err != nil {
		return nil, err
	}
	t, err := g.DLog(plainElem, maxPlain)
	if err != nil {
		return nil, fmt.Errorf("decryption: %w", err)
	}
	return &OptionResult{
		Votes: t.Uint64(),
		Proof: &zkp.ChaumPedersenProof{
			CommitmentA: types.FromBigInt(a.BigInt()),
			CommitmentB: types.FromBigInt(b.BigInt()),
			Challenge:   types.FromBigInt(c.BigInt()),
			Response:    types.FromBigInt(zSum.BigInt()),
		},
	}, nil
}

// Decryption is the verifiable result of decrypting an encrypted tally:
// per contest, the decrypted count and correctness proof of every option.
type Decryption struct {
	Contests     map[uint32][]*OptionResult `json:"contests" cbor:"1,keyasint"`
	Ballots      uint64                     `json:"ballots" cbor:"2,keyasint"`
	Participants []int                      `json:"participants" cbor:"3,keyasint"`
}

// ciphertextInputs gathers the per-guardian artifacts for one slot of the
// tally. Missing or short per-guardian slices are reported against the
// guardian that published them.
func ciphertextInputs(contest uint32, option int, shareSets []*TallyShares, commitSets []*TallyProofCommits, responseSets []*TallyProofResponses) ([]*Share, []*ProofCommit, []*ProofResponse, error) {
	shares := make([]*Share, 0, len(shareSets))
	for _, set := range shareSets {
		ss := set.Contests[contest]
		if option >= len(ss) {
			return nil, nil, nil, fmt.Errorf("decryption: guardian %d published no share for contest %d option %d",
				set.GuardianIndex, contest, option+1)
		}
		shares = append(shares, ss[option])
	}
	commits := make([]*ProofCommit, 0, len(commitSets))
	for _, set := range commitSets {
		cs := set.Contests[contest]
		if option >= len(cs) {
			return nil, nil, nil, fmt.Errorf("decryption: guardian %d published no proof commit for contest %d option %d",
				set.GuardianIndex, contest, option+1)
		}
		commits = append(commits, cs[option])
	}
	responses := make([]*ProofResponse, 0, len(responseSets))
	for _, set := range responseSets {
		rs := set.Contests[contest]
		if option >= len(rs) {
			return nil, nil, nil, fmt.Errorf("decryption: guardian %d published no proof response for contest %d option %d",
				set.GuardianIndex, contest, option+1)
		}
		responses = append(responses, rs[option])
	}
	return shares, commits, responses, nil
}

// Compute decrypts the whole tally from the participating guardians'
// published shares, proof commits and proof responses. Ciphertexts are
// processed in parallel, one worker per contest. Options no ballot voted
// on decrypt to zero without guardian involvement.
func Compute(pvd *prevoting.PreVotingData, t *tally.Encrypted, shareSets []*TallyShares, commitSets []*TallyProofCommits, responseSets []*TallyProofResponses) (*Decryption, error) {
	result := &Decryption{
		Contests:     make(map[uint32][]*OptionResult, len(t.Contests)),
		Ballots:      t.Ballots,
		Participants: participantSet(shareSets),
	}
	// Preallocate so workers only write into their own contest's slice.
	for contestIndex, cts := range t.Contests {
		result.Contests[contestIndex] = make([]*OptionResult, len(cts))
	}

	var wg errgroup.Group
	for contestIndex, cts := range t.Contests {
		out := result.Contests[contestIndex]
		wg.Go(func() error {
			for i, ct := range cts {
				if ct == nil {
					out[i] = &OptionResult{Votes: 0}
					continue
				}
				shares, commits, responses, err := ciphertextInputs(contestIndex, i, shareSets, commitSets, responseSets)
				if err != nil {
					return err
				}
				r, err := DecryptCiphertext(pvd, ct, shares, commits, responses, t.MaxPlaintext)
				if err != nil {
					return fmt.Errorf("decryption: contest %d option %d: %w", contestIndex, i+1, err)
				}
				out[i] = r
			}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}
	log.Infow("tally decrypted", "contests", len(result.Contests),
		"ballots", result.Ballots, "participants", len(result.Participants))
	return result, nil
}

// Verify checks a published decryption against the encrypted tally using
// only public data. It returns false on any mismatch and never panics.
func (d *Decryption) Verify(pvd *prevoting.PreVotingData, t *tally.Encrypted) bool {
	if d == nil || t == nil {
		return false
	}
	g := pvd.Group()
	key, err := pvd.JointKeyElement()
	if err != nil {
		return false
	}
	if len(d.Contests) != len(t.Contests) {
		return false
	}
	for contestIndex, cts := range t.Contests {
		results, ok := d.Contests[contestIndex]
		if !ok || len(results) != len(cts) {
			return false
		}
		for i, ct := range cts {
			r := results[i]
			if r == nil {
				return false
			}
			if ct == nil {
				// Nothing was encrypted, so nothing to prove.
				if r.Votes != 0 || r.Proof != nil {
					return false
				}
				continue
			}
			alpha, beta, err := ct.Elements(g)
			if err != nil {
				return false
			}
			o := g.Ops()
			// The proof shows beta / g^votes = alpha^s, i.e. the claimed
			// count matches the joint secret behind the election key.
			x2 := o.Div(beta, o.BaseExp(g.Field().ScalarUint64(r.Votes)))
			if o.Err() != nil {
				return false
			}
			if !r.Proof.Verify(g, pvd.ExtendedBaseHash, alpha, key, x2) {
				return false
			}
		}
	}
	return true
}
