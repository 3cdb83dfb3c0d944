package decryption

import (
	"fmt"
	"io"
	"sort"

	"github.com/voteguard/voteguard-node/ballot"
	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/crypto/zkp"
	"github.com/voteguard/voteguard-node/guardian"
	"github.com/voteguard/voteguard-node/prevoting"
	"github.com/voteguard/voteguard-node/tally"
	"github.com/voteguard/voteguard-node/types"
)

// ProofCommit is the first Chaum-Pedersen move of one guardian for one
// ciphertext: (a_i, b_i) = (g^u_i, alpha^u_i). It is published; the nonce
// u_i stays local.
type ProofCommit struct {
	GuardianIndex uint32        `json:"guardian_index" cbor:"1,keyasint"`
	CommitA       *types.BigInt `json:"commit_a" cbor:"2,keyasint"`
	CommitB       *types.BigInt `json:"commit_b" cbor:"3,keyasint"`
}

// ProofCommitSecret is the retained nonce u_i matching a ProofCommit. It
// must survive, encrypted at rest, between the commit and response steps,
// and is never transmitted.
type ProofCommitSecret struct {
	GuardianIndex uint32        `json:"guardian_index"`
	Nonce         *types.BigInt `json:"nonce"`
}

// GenerateProofCommit draws the Chaum-Pedersen commitment for one
// ciphertext.
func GenerateProofCommit(rng io.Reader, pvd *prevoting.PreVotingData, keyShare *guardian.SecretKeyShare, ct *ballot.Ciphertext) (*ProofCommit, *ProofCommitSecret, error) {
	g := pvd.Group()
	alpha, _, err := ct.Elements(g)
	if err != nil {
		return nil, nil, err
	}
	u, err := g.Field().RandomScalar(rng)
	if err != nil {
		return nil, nil, fmt.Errorf("decryption: commit nonce: %w", err)
	}
	o := g.Ops()
	a := o.BaseExp(u)
	b := o.Exp(alpha, u)
	if err := o.Err(); err != nil {
		return nil, nil, fmt.Errorf("decryption: commit: %w", err)
	}
	return &ProofCommit{
			GuardianIndex: keyShare.GuardianIndex,
			CommitA:       types.FromBigInt(a.BigInt()),
			CommitB:       types.FromBigInt(b.BigInt()),
		}, &ProofCommitSecret{
			GuardianIndex: keyShare.GuardianIndex,
			Nonce:         types.FromBigInt(u.BigInt()),
		}, nil
}

// ProofResponse is the second Chaum-Pedersen move of one guardian for one
// ciphertext: z_i = u_i + c·λ_i·s_i, where c is the joint challenge and
// λ_i the Lagrange coefficient of the participating set.
type ProofResponse struct {
	GuardianIndex uint32        `json:"guardian_index" cbor:"1,keyasint"`
	Response      *types.BigInt `json:"response" cbor:"2,keyasint"`
}

// aggregateCommits multiplies the participating guardians' commitments
// into the joint commitment (a, b) = (g^Σu_i, alpha^Σu_i). Commits must
// cover exactly the participant set.
func aggregateCommits(g *modular.Group, participants []int, commits []*ProofCommit) (a, b modular.Element, byIndex map[int]*ProofCommit, err error) {
	byIndex = make(map[int]*ProofCommit, len(commits))
	for _, pc := range commits {
		if pc == nil || pc.CommitA == nil || pc.CommitB == nil {
			return modular.Element{}, modular.Element{}, nil, fmt.Errorf("decryption: incomplete proof commit")
		}
		if _, dup := byIndex[int(pc.GuardianIndex)]; dup {
			return modular.Element{}, modular.Element{}, nil, fmt.Errorf("%w: commit of guardian %d", ErrDuplicateShare, pc.GuardianIndex)
		}
		byIndex[int(pc.GuardianIndex)] = pc
	}
	o := g.Ops()
	a, b = g.One(), g.One()
	for _, id := range participants {
		pc, ok := byIndex[id]
		if !ok {
			return modular.Element{}, modular.Element{}, nil, fmt.Errorf("decryption: no proof commit from guardian %d", id)
		}
		ca, err := g.ValidElement(pc.CommitA.MathBigInt())
		if err != nil {
			return modular.Element{}, modular.Element{}, nil, fmt.Errorf("decryption: commit of guardian %d: %w", id, err)
		}
		cb, err := g.ValidElement(pc.CommitB.MathBigInt())
		if err != nil {
			return modular.Element{}, modular.Element{}, nil, fmt.Errorf("decryption: commit of guardian %d: %w", id, err)
		}
		a = o.Mul(a, ca)
		b = o.Mul(b, cb)
	}
	if err := o.Err(); err != nil {
		return modular.Element{}, modular.Element{}, nil, err
	}
	return a, b, byIndex, nil
}

// jointChallenge derives the challenge every contributing guardian
// responds to. It binds the extended base hash, the ciphertext, the joint
// key, the combined share and the aggregate commitment, so responses are
// only valid for this exact decryption instance.
func jointChallenge(pvd *prevoting.PreVotingData, alpha, key, combined, a, b modular.Element) modular.Scalar {
	return zkp.EqualityChallenge(pvd.Group().Field(), pvd.ExtendedBaseHash, alpha, key, combined, a, b)
}

// GenerateProofResponse computes this guardian's response share for one
// ciphertext, using the retained commit secret and the published commits
// of the whole participating set.
func GenerateProofResponse(pvd *prevoting.PreVotingData, keyShare *guardian.SecretKeyShare, secret *ProofCommitSecret, ct *ballot.Ciphertext, combined *CombinedShare, commits []*ProofCommit) (*ProofResponse, error) {
	if secret.GuardianIndex != keyShare.GuardianIndex {
		return nil, fmt.Errorf("decryption: commit secret belongs to guardian %d, key share to %d",
			secret.GuardianIndex, keyShare.GuardianIndex)
	}
	g := pvd.Group()
	f := g.Field()
	alpha, _, err := ct.Elements(g)
	if err != nil {
		return nil, err
	}
	key, err := pvd.JointKeyElement()
	if err != nil {
		return nil, err
	}
	combinedElem, err := combined.Element(g)
	if err != nil {
		return nil, err
	}
	a, b, _, err := aggregateCommits(g, combined.Participants, commits)
	if err != nil {
		return nil, err
	}
	lagrange, err := f.LagrangeCoefficients(combined.Participants)
	if err != nil {
		return nil, err
	}
	lambda, ok := lagrange[int(keyShare.GuardianIndex)]
	if !ok {
		return nil, fmt.Errorf("decryption: guardian %d is not in the participating set", keyShare.GuardianIndex)
	}

	c := jointChallenge(pvd, alpha, key, combinedElem, a, b)
	o := g.Ops()
	u := f.Scalar(secret.Nonce.MathBigInt())
	s := f.Scalar(keyShare.Share.MathBigInt())
	z := o.Add(u, o.MulScalar(c, o.MulScalar(lambda, s)))
	if err := o.Err(); err != nil {
		return nil, fmt.Errorf("decryption: response: %w", err)
	}
	return &ProofResponse{
		GuardianIndex: keyShare.GuardianIndex,
		Response:      types.FromBigInt(z.BigInt()),
	}, nil
}

// TallyProofCommits carries one guardian's proof commitments for every
// ciphertext in the tally, and TallyProofSecrets the matching nonces. The
// secrets for all ciphertexts must be persisted together with an atomic
// write before any commitment is published: losing part of them would
// leave the guardian unable to respond for some ciphertexts.
type TallyProofCommits struct {
	GuardianIndex uint32                    `json:"guardian_index" cbor:"1,keyasint"`
	Contests      map[uint32][]*ProofCommit `json:"contests" cbor:"2,keyasint"`
}

// TallyProofSecrets mirrors TallyProofCommits with the retained nonces.
type TallyProofSecrets struct {
	GuardianIndex uint32                          `json:"guardian_index"`
	Contests      map[uint32][]*ProofCommitSecret `json:"contests"`
}

// GenerateTallyProofCommits draws commitments for every ciphertext of the
// tally. The returned secrets are complete for all ciphertexts; the caller
// persists them atomically before publishing the commits.
func GenerateTallyProofCommits(rng io.Reader, pvd *prevoting.PreVotingData, keyShare *guardian.SecretKeyShare, t *tally.Encrypted) (*TallyProofCommits, *TallyProofSecrets, error) {
	commits := &TallyProofCommits{
		GuardianIndex: keyShare.GuardianIndex,
		Contests:      make(map[uint32][]*ProofCommit, len(t.Contests)),
	}
	secrets := &TallyProofSecrets{
		GuardianIndex: keyShare.GuardianIndex,
		Contests:      make(map[uint32][]*ProofCommitSecret, len(t.Contests)),
	}
	for contestIndex, cts := range t.Contests {
		cs := make([]*ProofCommit, len(cts))
		ss := make([]*ProofCommitSecret, len(cts))
		for i, ct := range cts {
			if ct == nil {
				continue
			}
			commit, secret, err := GenerateProofCommit(rng, pvd, keyShare, ct)
			if err != nil {
				return nil, nil, fmt.Errorf("decryption: contest %d option %d: %w", contestIndex, i+1, err)
			}
			cs[i] = commit
			ss[i] = secret
		}
		commits.Contests[contestIndex] = cs
		secrets.Contests[contestIndex] = ss
	}
	return commits, secrets, nil
}

// TallyProofResponses carries one guardian's response shares for every
// ciphertext in the tally.
type TallyProofResponses struct {
	GuardianIndex uint32                      `json:"guardian_index" cbor:"1,keyasint"`
	Contests      map[uint32][]*ProofResponse `json:"contests" cbor:"2,keyasint"`
}

// participantSet returns the sorted guardian indices appearing in the
// per-guardian tally share sets.
func participantSet(shareSets []*TallyShares) []int {
	out := make([]int, 0, len(shareSets))
	for _, s := range shareSets {
		out = append(out, int(s.GuardianIndex))
	}
	sort.Ints(out)
	return out
}
