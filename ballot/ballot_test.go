package ballot

import (
	"crypto/rand"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/voteguard/voteguard-node/election"
	"github.com/voteguard/voteguard-node/guardian"
	"github.com/voteguard/voteguard-node/prevoting"
	"github.com/voteguard/voteguard-node/types"
)

// testPVD runs a single-guardian ceremony and returns the pre-voting data
// for a two-contest manifest under the given chaining policy.
func testPVD(c *qt.C, chaining election.BallotChaining) *prevoting.PreVotingData {
	params := &election.Parameters{
		Fixed: election.InsecureTestParameters(),
		Varying: election.VaryingParameters{
			GuardianCount:  1,
			Threshold:      1,
			Date:           time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			BallotChaining: chaining,
		},
	}
	manifest := &election.Manifest{
		Label: "test",
		Contests: []election.Contest{
			{Label: "mayor", SelectionLimit: 1, Options: []election.Option{{Label: "a"}, {Label: "b"}}},
			{Label: "council", SelectionLimit: 2, Options: []election.Option{{Label: "x"}, {Label: "y"}, {Label: "z"}}},
		},
		BallotStyles: []election.BallotStyle{{Label: "full", Contests: []uint32{1, 2}}},
	}
	_, paramHash, err := params.Hash()
	c.Assert(err, qt.IsNil)
	sk, err := guardian.Generate(rand.Reader, params, 1, "g")
	c.Assert(err, qt.IsNil)
	pk, err := sk.PublicKey(rand.Reader, params, paramHash)
	c.Assert(err, qt.IsNil)
	pvd, err := prevoting.Compute(params, manifest, []*guardian.PublicKey{pk}, nil)
	c.Assert(err, qt.IsNil)
	return pvd
}

func testSelections() Selections {
	return Selections{
		1: {1, 0},
		2: {0, 1, 1},
	}
}

func TestEncryptVerifyRoundTrip(t *testing.T) {
	c := qt.New(t)
	pvd := testPVD(c, election.ChainingProhibited)
	device := NewDevice("booth-1")

	b, err := EncryptFromSelections(rand.Reader, pvd, 1, device, []byte("primary nonce"), testSelections(), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(b.Contests, qt.HasLen, 2)
	c.Assert(b.Contests[0].Selections, qt.HasLen, 2)
	c.Assert(b.Contests[1].Selections, qt.HasLen, 3)
	c.Assert(b.ChainField, qt.HasLen, 0)
	c.Assert(b.ConfirmationCode, qt.HasLen, 32)
	c.Assert(b.Verify(pvd), qt.IsTrue)
}

func TestEncryptDeterministicNonces(t *testing.T) {
	c := qt.New(t)
	pvd := testPVD(c, election.ChainingProhibited)
	device := NewDevice("booth-1")

	// The same primary nonce reproduces the same ciphertexts; proofs use
	// fresh randomness but the confirmation code covers only ciphertexts.
	b1, err := EncryptFromSelections(rand.Reader, pvd, 1, device, []byte("nonce"), testSelections(), nil)
	c.Assert(err, qt.IsNil)
	b2, err := EncryptFromSelections(rand.Reader, pvd, 1, device, []byte("nonce"), testSelections(), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(b2.ConfirmationCode.String(), qt.Equals, b1.ConfirmationCode.String())

	b3, err := EncryptFromSelections(rand.Reader, pvd, 1, device, []byte("other"), testSelections(), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(b3.ConfirmationCode.String(), qt.Not(qt.Equals), b1.ConfirmationCode.String())
}

func TestEncryptSelectionErrors(t *testing.T) {
	c := qt.New(t)
	pvd := testPVD(c, election.ChainingProhibited)
	device := NewDevice("booth-1")
	nonce := []byte("nonce")

	// Missing contest.
	_, err := EncryptFromSelections(rand.Reader, pvd, 1, device, nonce, Selections{1: {1, 0}}, nil)
	c.Assert(err, qt.IsNotNil)

	// Wrong vector length.
	s := testSelections()
	s[1] = []uint8{1}
	_, err = EncryptFromSelections(rand.Reader, pvd, 1, device, nonce, s, nil)
	c.Assert(err, qt.ErrorMatches, ".*options.*")

	// Over the selection limit.
	s = testSelections()
	s[1] = []uint8{1, 1}
	_, err = EncryptFromSelections(rand.Reader, pvd, 1, device, nonce, s, nil)
	c.Assert(err, qt.ErrorMatches, ".*limit.*")

	// Under the selection limit.
	s = testSelections()
	s[2] = []uint8{1, 0, 0}
	_, err = EncryptFromSelections(rand.Reader, pvd, 1, device, nonce, s, nil)
	c.Assert(err, qt.ErrorMatches, ".*limit.*")

	// Non-binary selection.
	s = testSelections()
	s[1] = []uint8{2, 0}
	_, err = EncryptFromSelections(rand.Reader, pvd, 1, device, nonce, s, nil)
	c.Assert(err, qt.ErrorMatches, ".*0 or 1.*")

	// Unknown ballot style.
	_, err = EncryptFromSelections(rand.Reader, pvd, 9, device, nonce, testSelections(), nil)
	c.Assert(err, qt.IsNotNil)
}

func TestVerifyTamperDetection(t *testing.T) {
	c := qt.New(t)
	pvd := testPVD(c, election.ChainingProhibited)
	device := NewDevice("booth-1")

	b, err := EncryptFromSelections(rand.Reader, pvd, 1, device, []byte("nonce"), testSelections(), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(b.Verify(pvd), qt.IsTrue)

	// Swapped ciphertexts break the per-option proofs.
	b.Contests[0].Selections[0], b.Contests[0].Selections[1] =
		b.Contests[0].Selections[1], b.Contests[0].Selections[0]
	c.Assert(b.Verify(pvd), qt.IsFalse)

	// Tampered confirmation code.
	b, err = EncryptFromSelections(rand.Reader, pvd, 1, device, []byte("nonce"), testSelections(), nil)
	c.Assert(err, qt.IsNil)
	b.ConfirmationCode = append(types.HexBytes{}, b.ConfirmationCode...)
	b.ConfirmationCode[0] ^= 0x01
	c.Assert(b.Verify(pvd), qt.IsFalse)

	// A chain field under a prohibited policy is rejected.
	b, err = EncryptFromSelections(rand.Reader, pvd, 1, device, []byte("nonce"), testSelections(), nil)
	c.Assert(err, qt.IsNil)
	b.ChainField = []byte("stray chain")
	c.Assert(b.Verify(pvd), qt.IsFalse)
}

func TestVerifyBindsToElection(t *testing.T) {
	c := qt.New(t)
	// Two elections with identical parameters and manifest but different
	// guardian key material, so only the hash chain tells them apart.
	pvdA := testPVD(c, election.ChainingProhibited)
	pvdB := testPVD(c, election.ChainingProhibited)
	c.Assert(pvdA.ExtendedBaseHash.String(), qt.Not(qt.Equals), pvdB.ExtendedBaseHash.String())
	device := NewDevice("booth-1")

	b, err := EncryptFromSelections(rand.Reader, pvdA, 1, device, []byte("nonce"), testSelections(), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(b.Verify(pvdA), qt.IsTrue)

	// Replayed against the other election the proofs no longer bind.
	c.Assert(b.Verify(pvdB), qt.IsFalse)
}

func TestChaining(t *testing.T) {
	c := qt.New(t)
	pvd := testPVD(c, election.ChainingRequired)
	device := NewDevice("booth-1")

	// First ballot of a device chains from the baseline.
	b1, err := EncryptFromSelections(rand.Reader, pvd, 1, device, []byte("n1"), testSelections(), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(b1.ChainField, qt.HasLen, 32)
	c.Assert(b1.Verify(pvd), qt.IsTrue)
	c.Assert(b1.VerifyChain(pvd, nil), qt.IsTrue)

	// The second ballot chains from the first one's confirmation code.
	b2, err := EncryptFromSelections(rand.Reader, pvd, 1, device, []byte("n2"), testSelections(), b1.ConfirmationCode)
	c.Assert(err, qt.IsNil)
	c.Assert(b2.Verify(pvd), qt.IsTrue)
	c.Assert(b2.VerifyChain(pvd, b1.ConfirmationCode), qt.IsTrue)

	// The chain does not verify against the wrong predecessor.
	c.Assert(b2.VerifyChain(pvd, b2.ConfirmationCode), qt.IsFalse)
	c.Assert(b2.VerifyChain(pvd, nil), qt.IsFalse)

	// A required chain field cannot be stripped.
	b1.ChainField = nil
	c.Assert(b1.Verify(pvd), qt.IsFalse)
}

func TestCiphertextHomomorphism(t *testing.T) {
	c := qt.New(t)
	pvd := testPVD(c, election.ChainingProhibited)
	g := pvd.Group()
	device := NewDevice("booth-1")

	b1, err := EncryptFromSelections(rand.Reader, pvd, 1, device, []byte("n1"), testSelections(), nil)
	c.Assert(err, qt.IsNil)
	b2, err := EncryptFromSelections(rand.Reader, pvd, 1, device, []byte("n2"), testSelections(), nil)
	c.Assert(err, qt.IsNil)

	ct1 := b1.Contests[0].Selections[0]
	ct2 := b2.Contests[0].Selections[0]

	// Mul is commutative on the ciphertext components.
	p1, err := ct1.Mul(g, ct2)
	c.Assert(err, qt.IsNil)
	p2, err := ct2.Mul(g, ct1)
	c.Assert(err, qt.IsNil)
	c.Assert(p1.Alpha.MathBigInt().Cmp(p2.Alpha.MathBigInt()), qt.Equals, 0)
	c.Assert(p1.Beta.MathBigInt().Cmp(p2.Beta.MathBigInt()), qt.Equals, 0)

	// Scaling by 3 equals multiplying three copies.
	f := g.Field()
	scaled, err := ct1.Scale(g, f.ScalarUint64(3))
	c.Assert(err, qt.IsNil)
	triple, err := ct1.Mul(g, ct1)
	c.Assert(err, qt.IsNil)
	triple, err = triple.Mul(g, ct1)
	c.Assert(err, qt.IsNil)
	c.Assert(scaled.Alpha.MathBigInt().Cmp(triple.Alpha.MathBigInt()), qt.Equals, 0)
	c.Assert(scaled.Beta.MathBigInt().Cmp(triple.Beta.MathBigInt()), qt.Equals, 0)

	// Ballot-level scaling covers every contest.
	m, err := b1.Scale(g, f.ScalarUint64(2))
	c.Assert(err, qt.IsNil)
	c.Assert(m[1], qt.HasLen, 2)
	c.Assert(m[2], qt.HasLen, 3)
}
