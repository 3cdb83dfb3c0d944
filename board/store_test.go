package board

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/voteguard/voteguard-node/db"
	"github.com/voteguard/voteguard-node/db/memdb"
	"github.com/voteguard/voteguard-node/guardian"
)

func newStore(c *qt.C) *Store {
	database, err := memdb.New(db.Options{})
	c.Assert(err, qt.IsNil)
	return NewStore(database)
}

func testConfig() *Config {
	return &Config{
		ManifestURL:        "https://example.org/manifest.json",
		ManifestHash:       []byte("manifest-hash"),
		ParametersURL:      "https://example.org/parameters.json",
		ParametersHash:     []byte("parameters-hash"),
		VotingStart:        time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		VotingEnd:          time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC),
		DecryptionDeadline: time.Date(2026, 5, 3, 20, 0, 0, 0, time.UTC),
		Guardians:          []string{"alice", "bob", "carol"},
	}
}

func TestConfigRoundTrip(t *testing.T) {
	c := qt.New(t)
	s := newStore(c)
	ctx := context.Background()

	_, err := s.Config(ctx)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	cfg := testConfig()
	c.Assert(s.SetConfig(ctx, cfg), qt.IsNil)

	got, err := s.Config(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Guardians, qt.DeepEquals, cfg.Guardians)
	c.Assert(got.VotingStart.Equal(cfg.VotingStart), qt.IsTrue)

	// The configuration is write-once.
	c.Assert(s.SetConfig(ctx, cfg), qt.ErrorIs, ErrAlreadyPublished)

	// Cached read returns the same value.
	again, err := s.Config(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(again.Guardians, qt.DeepEquals, cfg.Guardians)
}

func TestGuardianIndex(t *testing.T) {
	c := qt.New(t)
	cfg := testConfig()
	c.Assert(cfg.GuardianIndex("alice"), qt.Equals, uint32(1))
	c.Assert(cfg.GuardianIndex("carol"), qt.Equals, uint32(3))
	c.Assert(cfg.GuardianIndex("mallory"), qt.Equals, uint32(0))
}

func TestGuardianRecordAssembly(t *testing.T) {
	c := qt.New(t)
	s := newStore(c)
	ctx := context.Background()

	_, err := s.Guardian(ctx, 1)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	c.Assert(s.PublishPublicKey(ctx, 1, []byte("pk-1")), qt.IsNil)
	c.Assert(s.PublishEncryptedShares(ctx, 1, []byte("shares-1")), qt.IsNil)
	status := &guardian.Status{Kind: guardian.StatusVerificationSuccessful}
	c.Assert(s.PublishStatus(ctx, 1, status), qt.IsNil)

	rec, err := s.Guardian(ctx, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Index, qt.Equals, uint32(1))
	c.Assert(string(rec.PublicKey), qt.Equals, "pk-1")
	c.Assert(string(rec.EncryptedShares), qt.Equals, "shares-1")
	c.Assert(rec.Status.Kind, qt.Equals, guardian.StatusVerificationSuccessful)
	c.Assert(rec.Excluded, qt.IsFalse)
	c.Assert(rec.DecryptionShare, qt.IsNil)

	// Decryption artifacts land in separate slots.
	c.Assert(s.PublishDecryptionShare(ctx, 1, []byte("ds-1")), qt.IsNil)
	c.Assert(s.PublishProofCommits(ctx, 1, []byte("dc-1")), qt.IsNil)
	c.Assert(s.PublishProofResponses(ctx, 1, []byte("dr-1")), qt.IsNil)
	rec, err = s.Guardian(ctx, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(string(rec.DecryptionShare), qt.Equals, "ds-1")
	c.Assert(string(rec.ProofCommits), qt.Equals, "dc-1")
	c.Assert(string(rec.ProofResponses), qt.Equals, "dr-1")
}

func TestWriteOnceSlots(t *testing.T) {
	c := qt.New(t)
	s := newStore(c)
	ctx := context.Background()

	c.Assert(s.PublishPublicKey(ctx, 1, []byte("pk")), qt.IsNil)
	c.Assert(s.PublishPublicKey(ctx, 1, []byte("pk2")), qt.ErrorIs, ErrAlreadyPublished)
	// Another guardian's slot is independent.
	c.Assert(s.PublishPublicKey(ctx, 2, []byte("pk")), qt.IsNil)

	c.Assert(s.PublishEncryptedTally(ctx, []byte("tally")), qt.IsNil)
	c.Assert(s.PublishEncryptedTally(ctx, []byte("tally2")), qt.ErrorIs, ErrAlreadyPublished)
	data, err := s.EncryptedTally(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "tally")

	// Status and the excluded flag are overwritable.
	c.Assert(s.PublishStatus(ctx, 1, &guardian.Status{Kind: guardian.StatusVerificationSuccessful}), qt.IsNil)
	c.Assert(s.PublishStatus(ctx, 1, &guardian.Status{
		Kind:    guardian.StatusSharesVerificationFailed,
		Accused: []uint32{2},
	}), qt.IsNil)
	rec, err := s.Guardian(ctx, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Status.Kind, qt.Equals, guardian.StatusSharesVerificationFailed)

	c.Assert(s.SetExcluded(ctx, 2, true), qt.IsNil)
	rec, err = s.Guardian(ctx, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Excluded, qt.IsTrue)
	c.Assert(s.SetExcluded(ctx, 2, false), qt.IsNil)
	rec, err = s.Guardian(ctx, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Excluded, qt.IsFalse)
}

func TestGuardiansListing(t *testing.T) {
	c := qt.New(t)
	s := newStore(c)
	ctx := context.Background()

	// Listing needs the configuration for the guardian count.
	_, err := s.Guardians(ctx)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	c.Assert(s.SetConfig(ctx, testConfig()), qt.IsNil)
	c.Assert(s.PublishPublicKey(ctx, 2, []byte("pk-2")), qt.IsNil)

	records, err := s.Guardians(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(records, qt.HasLen, 3)
	c.Assert(records[0].Index, qt.Equals, uint32(1))
	c.Assert(records[0].PublicKey, qt.IsNil)
	c.Assert(string(records[1].PublicKey), qt.Equals, "pk-2")
	c.Assert(records[2].Index, qt.Equals, uint32(3))
}

func TestResultRoundTrip(t *testing.T) {
	c := qt.New(t)
	s := newStore(c)
	ctx := context.Background()

	_, err := s.Result(ctx)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	result := &Result{
		Contests: map[uint32][]uint64{1: {3, 2}, 2: {1, 4}},
		Ballots:  5,
	}
	c.Assert(s.PublishResult(ctx, result), qt.IsNil)
	c.Assert(s.PublishResult(ctx, result), qt.ErrorIs, ErrAlreadyPublished)

	got, err := s.Result(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Ballots, qt.Equals, uint64(5))
	c.Assert(got.Contests[1], qt.DeepEquals, []uint64{3, 2})
	c.Assert(got.Contests[2], qt.DeepEquals, []uint64{1, 4})
}

func TestArtifactCodec(t *testing.T) {
	c := qt.New(t)

	status := &guardian.Status{Kind: guardian.StatusKeyVerificationFailed, Accused: []uint32{3, 1}}
	data, err := EncodeArtifact(status)
	c.Assert(err, qt.IsNil)

	// Deterministic encoding.
	data2, err := EncodeArtifact(status)
	c.Assert(err, qt.IsNil)
	c.Assert(data2, qt.DeepEquals, data)

	decoded := &guardian.Status{}
	c.Assert(DecodeArtifact(data, decoded), qt.IsNil)
	c.Assert(decoded.Kind, qt.Equals, status.Kind)
	c.Assert(decoded.Accused, qt.DeepEquals, status.Accused)

	c.Assert(DecodeArtifact([]byte("not cbor"), decoded), qt.IsNotNil)
}
