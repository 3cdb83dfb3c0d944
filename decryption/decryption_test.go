package decryption

import (
	"crypto/rand"
	"math/big"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/voteguard/voteguard-node/ballot"
	"github.com/voteguard/voteguard-node/election"
	"github.com/voteguard/voteguard-node/guardian"
	"github.com/voteguard/voteguard-node/prevoting"
	"github.com/voteguard/voteguard-node/tally"
	"github.com/voteguard/voteguard-node/types"
)

func buildElection(c *qt.C, n, k uint32) (*election.Parameters, *election.Manifest, []*guardian.SecretKey, []*guardian.PublicKey) {
	params := &election.Parameters{
		Fixed: election.InsecureTestParameters(),
		Varying: election.VaryingParameters{
			GuardianCount:  n,
			Threshold:      k,
			Date:           time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			BallotChaining: election.ChainingProhibited,
		},
	}
	manifest := &election.Manifest{
		Label: "test",
		Contests: []election.Contest{
			{Label: "mayor", SelectionLimit: 1, Options: []election.Option{{Label: "a"}, {Label: "b"}}},
		},
		BallotStyles: []election.BallotStyle{{Label: "full", Contests: []uint32{1}}},
	}
	_, paramHash, err := params.Hash()
	c.Assert(err, qt.IsNil)
	secretKeys := make([]*guardian.SecretKey, n)
	publicKeys := make([]*guardian.PublicKey, n)
	for i := uint32(1); i <= n; i++ {
		sk, err := guardian.Generate(rand.Reader, params, i, "g")
		c.Assert(err, qt.IsNil)
		pk, err := sk.PublicKey(rand.Reader, params, paramHash)
		c.Assert(err, qt.IsNil)
		secretKeys[i-1] = sk
		publicKeys[i-1] = pk
	}
	return params, manifest, secretKeys, publicKeys
}

// keyShareFor runs the share exchange for one guardian over the included
// dealer set and combines its secret key share.
func keyShareFor(c *qt.C, params *election.Parameters, included []*guardian.PublicKey, secretKeys []*guardian.SecretKey, my uint32) *guardian.SecretKeyShare {
	mySecret := secretKeys[my-1]
	var shares []*guardian.ValidatedShare
	for _, dealer := range included {
		if dealer.GuardianIndex == my {
			continue
		}
		res, err := guardian.EncryptShareFor(rand.Reader, params, secretKeys[dealer.GuardianIndex-1], included[indexOf(included, my)])
		c.Assert(err, qt.IsNil)
		vs, err := res.Share.DecryptAndValidate(params, dealer, mySecret)
		c.Assert(err, qt.IsNil)
		shares = append(shares, vs)
	}
	ks, err := guardian.ComputeSecretKeyShare(params, included, shares, mySecret)
	c.Assert(err, qt.IsNil)
	return ks
}

func indexOf(keys []*guardian.PublicKey, gi uint32) int {
	for i, pk := range keys {
		if pk.GuardianIndex == gi {
			return i
		}
	}
	return -1
}

func castBallots(c *qt.C, pvd *prevoting.PreVotingData, votes [][]uint8) *tally.Encrypted {
	tb := tally.NewBuilder(pvd)
	for i, v := range votes {
		b, err := ballot.EncryptFromSelections(rand.Reader, pvd, 1,
			ballot.NewDevice("booth"), []byte{byte(i)}, ballot.Selections{1: v}, nil)
		c.Assert(err, qt.IsNil)
		c.Assert(b.Verify(pvd), qt.IsTrue)
		c.Assert(tb.Update(b), qt.IsNil)
	}
	return tb.Finalize()
}

// decryptTally runs the full guardian-side protocol for the participating
// key shares and the combiner-side Compute.
func decryptTally(c *qt.C, pvd *prevoting.PreVotingData, et *tally.Encrypted, keyShares []*guardian.SecretKeyShare) (*Decryption, error) {
	var shareSets []*TallyShares
	var commitSets []*TallyProofCommits
	secretsByGuardian := make(map[uint32]*TallyProofSecrets)
	for _, ks := range keyShares {
		ts, err := ComputeTallyShares(pvd, ks, et)
		c.Assert(err, qt.IsNil)
		commits, secrets, err := GenerateTallyProofCommits(rand.Reader, pvd, ks, et)
		c.Assert(err, qt.IsNil)
		shareSets = append(shareSets, ts)
		commitSets = append(commitSets, commits)
		secretsByGuardian[ks.GuardianIndex] = secrets
	}

	var responseSets []*TallyProofResponses
	for _, ks := range keyShares {
		resp := &TallyProofResponses{
			GuardianIndex: ks.GuardianIndex,
			Contests:      make(map[uint32][]*ProofResponse),
		}
		for contestIndex, cts := range et.Contests {
			rs := make([]*ProofResponse, len(cts))
			for i, ct := range cts {
				if ct == nil {
					continue
				}
				var shares []*Share
				var commits []*ProofCommit
				for j, set := range shareSets {
					shares = append(shares, set.Contests[contestIndex][i])
					commits = append(commits, commitSets[j].Contests[contestIndex][i])
				}
				combined, err := CombineShares(pvd, shares)
				c.Assert(err, qt.IsNil)
				secret := secretsByGuardian[ks.GuardianIndex].Contests[contestIndex][i]
				r, err := GenerateProofResponse(pvd, ks, secret, ct, combined, commits)
				c.Assert(err, qt.IsNil)
				rs[i] = r
			}
			resp.Contests[contestIndex] = rs
		}
		responseSets = append(responseSets, resp)
	}
	return Compute(pvd, et, shareSets, commitSets, responseSets)
}

func contestVotes(d *Decryption, contest uint32) []uint64 {
	out := make([]uint64, len(d.Contests[contest]))
	for i, r := range d.Contests[contest] {
		out[i] = r.Votes
	}
	return out
}

func TestThresholdDecryptionRoundTrip(t *testing.T) {
	c := qt.New(t)
	params, manifest, secretKeys, publicKeys := buildElection(c, 3, 2)
	pvd, err := prevoting.Compute(params, manifest, publicKeys, nil)
	c.Assert(err, qt.IsNil)

	keyShares := make([]*guardian.SecretKeyShare, 3)
	for i := uint32(1); i <= 3; i++ {
		keyShares[i-1] = keyShareFor(c, params, publicKeys, secretKeys, i)
	}

	// Five ballots: 3 votes for option a, 2 for option b.
	et := castBallots(c, pvd, [][]uint8{{1, 0}, {0, 1}, {1, 0}, {1, 0}, {0, 1}})

	d, err := decryptTally(c, pvd, et, keyShares[:2])
	c.Assert(err, qt.IsNil)
	c.Assert(contestVotes(d, 1), qt.DeepEquals, []uint64{3, 2})
	c.Assert(d.Ballots, qt.Equals, uint64(5))
	c.Assert(d.Participants, qt.DeepEquals, []int{1, 2})
	c.Assert(d.Verify(pvd, et), qt.IsTrue)

	// Any threshold subset recovers the same counts.
	for _, subset := range [][]*guardian.SecretKeyShare{
		{keyShares[0], keyShares[2]},
		{keyShares[1], keyShares[2]},
		keyShares,
	} {
		d2, err := decryptTally(c, pvd, et, subset)
		c.Assert(err, qt.IsNil)
		c.Assert(contestVotes(d2, 1), qt.DeepEquals, []uint64{3, 2})
		c.Assert(d2.Verify(pvd, et), qt.IsTrue)
	}
}

func TestDecryptionVerifyRejectsTamper(t *testing.T) {
	c := qt.New(t)
	params, manifest, secretKeys, publicKeys := buildElection(c, 3, 2)
	pvd, err := prevoting.Compute(params, manifest, publicKeys, nil)
	c.Assert(err, qt.IsNil)
	keyShares := []*guardian.SecretKeyShare{
		keyShareFor(c, params, publicKeys, secretKeys, 1),
		keyShareFor(c, params, publicKeys, secretKeys, 2),
	}
	et := castBallots(c, pvd, [][]uint8{{1, 0}, {0, 1}})

	d, err := decryptTally(c, pvd, et, keyShares)
	c.Assert(err, qt.IsNil)
	c.Assert(d.Verify(pvd, et), qt.IsTrue)

	// A doctored count no longer matches its proof.
	d.Contests[1][0].Votes++
	c.Assert(d.Verify(pvd, et), qt.IsFalse)
	d.Contests[1][0].Votes--
	c.Assert(d.Verify(pvd, et), qt.IsTrue)

	// A doctored proof fails.
	d.Contests[1][1].Proof.Response = types.FromBigInt(
		new(big.Int).Add(d.Contests[1][1].Proof.Response.MathBigInt(), big.NewInt(1)))
	c.Assert(d.Verify(pvd, et), qt.IsFalse)

	var nilD *Decryption
	c.Assert(nilD.Verify(pvd, et), qt.IsFalse)
}

func TestDecryptionVerifyBindsToElection(t *testing.T) {
	c := qt.New(t)
	params, manifest, secretKeys, publicKeys := buildElection(c, 3, 2)
	pvdA, err := prevoting.Compute(params, manifest, publicKeys, nil)
	c.Assert(err, qt.IsNil)

	// A second ceremony under the same parameters and manifest yields a
	// different joint key and extended base hash.
	_, _, _, otherKeys := buildElection(c, 3, 2)
	pvdB, err := prevoting.Compute(params, manifest, otherKeys, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(pvdA.ExtendedBaseHash.String(), qt.Not(qt.Equals), pvdB.ExtendedBaseHash.String())

	keyShares := []*guardian.SecretKeyShare{
		keyShareFor(c, params, publicKeys, secretKeys, 1),
		keyShareFor(c, params, publicKeys, secretKeys, 2),
	}
	et := castBallots(c, pvdA, [][]uint8{{1, 0}})
	d, err := decryptTally(c, pvdA, et, keyShares)
	c.Assert(err, qt.IsNil)
	c.Assert(d.Verify(pvdA, et), qt.IsTrue)

	// The proofs are bound to the election hash chain; under the other
	// chain they are replays and fail.
	c.Assert(d.Verify(pvdB, et), qt.IsFalse)
}

func TestCombineSharesErrors(t *testing.T) {
	c := qt.New(t)
	params, manifest, secretKeys, publicKeys := buildElection(c, 3, 2)
	pvd, err := prevoting.Compute(params, manifest, publicKeys, nil)
	c.Assert(err, qt.IsNil)
	ks1 := keyShareFor(c, params, publicKeys, secretKeys, 1)
	et := castBallots(c, pvd, [][]uint8{{1, 0}})
	ct := et.Ciphertext(1, 0)
	c.Assert(ct, qt.IsNotNil)

	s1, err := ComputeShare(pvd, ks1, ct)
	c.Assert(err, qt.IsNil)

	// One share is below the threshold of two.
	_, err = CombineShares(pvd, []*Share{s1})
	c.Assert(err, qt.ErrorIs, ErrInsufficientShares)

	// The same guardian twice is rejected, not deduplicated.
	_, err = CombineShares(pvd, []*Share{s1, s1})
	c.Assert(err, qt.ErrorIs, ErrDuplicateShare)

	// Nil entries are skipped, not counted.
	_, err = CombineShares(pvd, []*Share{s1, nil, nil})
	c.Assert(err, qt.ErrorIs, ErrInsufficientShares)
}

func TestDecryptCiphertextAttributesInvalidResponse(t *testing.T) {
	c := qt.New(t)
	params, manifest, secretKeys, publicKeys := buildElection(c, 3, 2)
	pvd, err := prevoting.Compute(params, manifest, publicKeys, nil)
	c.Assert(err, qt.IsNil)
	keyShares := []*guardian.SecretKeyShare{
		keyShareFor(c, params, publicKeys, secretKeys, 1),
		keyShareFor(c, params, publicKeys, secretKeys, 2),
	}
	et := castBallots(c, pvd, [][]uint8{{1, 0}})
	ct := et.Ciphertext(1, 0)

	var shares []*Share
	var commits []*ProofCommit
	var secrets []*ProofCommitSecret
	for _, ks := range keyShares {
		s, err := ComputeShare(pvd, ks, ct)
		c.Assert(err, qt.IsNil)
		commit, secret, err := GenerateProofCommit(rand.Reader, pvd, ks, ct)
		c.Assert(err, qt.IsNil)
		shares = append(shares, s)
		commits = append(commits, commit)
		secrets = append(secrets, secret)
	}
	combined, err := CombineShares(pvd, shares)
	c.Assert(err, qt.IsNil)

	var responses []*ProofResponse
	for i, ks := range keyShares {
		r, err := GenerateProofResponse(pvd, ks, secrets[i], ct, combined, commits)
		c.Assert(err, qt.IsNil)
		responses = append(responses, r)
	}

	// The honest transcript decrypts.
	r, err := DecryptCiphertext(pvd, ct, shares, commits, responses, et.MaxPlaintext)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Votes, qt.Equals, uint64(1))

	// A doctored response from guardian 2 is attributed to guardian 2.
	responses[1] = &ProofResponse{
		GuardianIndex: 2,
		Response: types.FromBigInt(
			new(big.Int).Add(responses[1].Response.MathBigInt(), big.NewInt(1))),
	}
	_, err = DecryptCiphertext(pvd, ct, shares, commits, responses, et.MaxPlaintext)
	var invalid *InvalidProofSharesError
	c.Assert(err, qt.ErrorAs, &invalid)
	c.Assert(invalid.Guardians, qt.DeepEquals, []int{2})
	c.Assert(err, qt.ErrorMatches, ".*invalid proof shares from guardians \\[2\\].*")
}

func TestDecryptCiphertextIgnoresHollowShares(t *testing.T) {
	c := qt.New(t)
	params, manifest, secretKeys, publicKeys := buildElection(c, 3, 2)
	pvd, err := prevoting.Compute(params, manifest, publicKeys, nil)
	c.Assert(err, qt.IsNil)
	keyShares := []*guardian.SecretKeyShare{
		keyShareFor(c, params, publicKeys, secretKeys, 1),
		keyShareFor(c, params, publicKeys, secretKeys, 2),
	}
	et := castBallots(c, pvd, [][]uint8{{1, 0}})
	ct := et.Ciphertext(1, 0)

	var shares []*Share
	var commits []*ProofCommit
	var secrets []*ProofCommitSecret
	for _, ks := range keyShares {
		s, err := ComputeShare(pvd, ks, ct)
		c.Assert(err, qt.IsNil)
		commit, secret, err := GenerateProofCommit(rand.Reader, pvd, ks, ct)
		c.Assert(err, qt.IsNil)
		shares = append(shares, s)
		commits = append(commits, commit)
		secrets = append(secrets, secret)
	}
	combined, err := CombineShares(pvd, shares)
	c.Assert(err, qt.IsNil)
	var responses []*ProofResponse
	for i, ks := range keyShares {
		r, err := GenerateProofResponse(pvd, ks, secrets[i], ct, combined, commits)
		c.Assert(err, qt.IsNil)
		responses = append(responses, r)
	}

	// A valueless share colliding with an honest guardian's index must
	// not displace the honest share or crash the combiner.
	withHollow := append([]*Share{{GuardianIndex: 1}}, shares...)
	r, err := DecryptCiphertext(pvd, ct, withHollow, commits, responses, et.MaxPlaintext)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Votes, qt.Equals, uint64(1))

	// Same when the hollow share trails the honest one.
	withHollow = append(append([]*Share{}, shares...), &Share{GuardianIndex: 1})
	r, err = DecryptCiphertext(pvd, ct, withHollow, commits, responses, et.MaxPlaintext)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Votes, qt.Equals, uint64(1))
}

// TestMisbehavingDealerExcluded walks the complaint path end to end: a
// dealer hands out a share inconsistent with its own commitments, the
// recipient detects it and accuses, the dealer is excluded, key generation
// re-runs over the reduced set and the remaining guardians still decrypt
// a correct tally.
func TestMisbehavingDealerExcluded(t *testing.T) {
	c := qt.New(t)
	params, manifest, secretKeys, publicKeys := buildElection(c, 3, 2)
	_, paramHash, err := params.Hash()
	c.Assert(err, qt.IsNil)

	// Guardian 2 deals guardian 3 a share from a doctored polynomial.
	doctored := &guardian.SecretKey{
		GuardianIndex: 2,
		Coefficients: []*types.BigInt{
			types.FromBigInt(new(big.Int).Add(secretKeys[1].Coefficients[0].MathBigInt(), big.NewInt(1))),
			secretKeys[1].Coefficients[1],
		},
	}
	badRes, err := guardian.EncryptShareFor(rand.Reader, params, doctored, publicKeys[2])
	c.Assert(err, qt.IsNil)
	_, err = badRes.Share.DecryptAndValidate(params, publicKeys[1], secretKeys[2])
	c.Assert(err, qt.ErrorIs, guardian.ErrShareInconsistent)

	// Guardian 3's peer validation turns that into a public accusation.
	honest1, err := guardian.EncryptShareFor(rand.Reader, params, secretKeys[0], publicKeys[2])
	c.Assert(err, qt.IsNil)
	_, status, err := guardian.ValidatePeers(params, paramHash, publicKeys,
		[]*guardian.EncryptedShare{honest1.Share, badRes.Share}, secretKeys[2])
	c.Assert(err, qt.IsNil)
	c.Assert(status.Kind, qt.Equals, guardian.StatusSharesVerificationFailed)
	c.Assert(status.Accused, qt.DeepEquals, []uint32{2})

	// Guardian 2 is excluded; the election re-keys over {1,3}.
	pvd, err := prevoting.Compute(params, manifest, publicKeys, []uint32{2})
	c.Assert(err, qt.IsNil)
	included := pvd.GuardianKeys
	c.Assert(included, qt.HasLen, 2)
	keyShares := []*guardian.SecretKeyShare{
		keyShareFor(c, params, included, secretKeys, 1),
		keyShareFor(c, params, included, secretKeys, 3),
	}

	// A single ballot voting option a decrypts to [1, 0].
	et := castBallots(c, pvd, [][]uint8{{1, 0}})
	d, err := decryptTally(c, pvd, et, keyShares)
	c.Assert(err, qt.IsNil)
	c.Assert(contestVotes(d, 1), qt.DeepEquals, []uint64{1, 0})
	c.Assert(d.Participants, qt.DeepEquals, []int{1, 3})
	c.Assert(d.Verify(pvd, et), qt.IsTrue)
}

func TestComputeHandlesEmptySlots(t *testing.T) {
	c := qt.New(t)
	params, manifest, secretKeys, publicKeys := buildElection(c, 3, 2)
	manifest.Contests = append(manifest.Contests, election.Contest{
		Label: "quiet", SelectionLimit: 1,
		Options: []election.Option{{Label: "x"}, {Label: "y"}},
	})
	pvd, err := prevoting.Compute(params, manifest, publicKeys, nil)
	c.Assert(err, qt.IsNil)
	keyShares := []*guardian.SecretKeyShare{
		keyShareFor(c, params, publicKeys, secretKeys, 1),
		keyShareFor(c, params, publicKeys, secretKeys, 2),
	}

	// Ballot style 1 covers only contest 1; contest 2 stays empty.
	et := castBallots(c, pvd, [][]uint8{{1, 0}})
	c.Assert(et.Contests[2], qt.HasLen, 2)

	d, err := decryptTally(c, pvd, et, keyShares)
	c.Assert(err, qt.IsNil)
	c.Assert(contestVotes(d, 1), qt.DeepEquals, []uint64{1, 0})
	c.Assert(contestVotes(d, 2), qt.DeepEquals, []uint64{0, 0})
	c.Assert(d.Contests[2][0].Proof, qt.IsNil)
	c.Assert(d.Verify(pvd, et), qt.IsTrue)
}
