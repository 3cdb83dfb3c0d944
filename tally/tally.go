// Package tally homomorphically accumulates accepted ballots into the
// encrypted tally: per contest and option, the component-wise product of
// every ballot's ciphertexts. Which ballots count (one per voting
// identity, last submission wins) is decided by the bulletin-board lookup;
// this package trusts its caller to pass exactly the ballots to be
// counted.
package tally

import (
	"fmt"

	"github.com/voteguard/voteguard-node/ballot"
	"github.com/voteguard/voteguard-node/prevoting"
	"github.com/voteguard/voteguard-node/types"
)

// Encrypted is the homomorphically accumulated tally: per 1-based contest
// index, one ciphertext per option. A contest nobody voted on keeps nil
// entries, which decrypt to zero votes for every option rather than being
// an error.
type Encrypted struct {
	Contests map[uint32][]*ballot.Ciphertext `json:"contests" cbor:"1,keyasint"`
	Ballots  uint64                          `json:"ballots" cbor:"2,keyasint"`
	// MaxPlaintext bounds the discrete-log search during decryption: the
	// accumulated weight of all counted ballots.
	MaxPlaintext uint64 `json:"max_plaintext" cbor:"3,keyasint"`
}

// Builder accumulates ballots into an encrypted tally.
type Builder struct {
	pvd      *prevoting.PreVotingData
	contests map[uint32][]*ballot.Ciphertext
	ballots  uint64
	maxPlain uint64
}

// NewBuilder creates a tally builder for the election described by the
// pre-voting data.
func NewBuilder(pvd *prevoting.PreVotingData) *Builder {
	return &Builder{
		pvd:      pvd,
		contests: make(map[uint32][]*ballot.Ciphertext),
	}
}

func (tb *Builder) accumulate(contestIndex uint32, cts []*ballot.Ciphertext) error {
	contest, err := tb.pvd.Manifest.Contest(contestIndex)
	if err != nil {
		return err
	}
	if len(cts) != len(contest.Options) {
		return fmt.Errorf("tally: contest %d has %d options, ballot carries %d",
			contestIndex, len(contest.Options), len(cts))
	}
	g := tb.pvd.Group()
	acc, ok := tb.contests[contestIndex]
	if !ok {
		acc = make([]*ballot.Ciphertext, len(contest.Options))
		tb.contests[contestIndex] = acc
	}
	for i, ct := range cts {
		if acc[i] == nil {
			// First contribution: validate and copy.
			if _, _, err := ct.Elements(g); err != nil {
				return err
			}
			acc[i] = &ballot.Ciphertext{
				Alpha: types.FromBigInt(ct.Alpha.MathBigInt()),
				Beta:  types.FromBigInt(ct.Beta.MathBigInt()),
			}
			continue
		}
		sum, err := acc[i].Mul(g, ct)
		if err != nil {
			return fmt.Errorf("tally: contest %d option %d: %w", contestIndex, i+1, err)
		}
		acc[i] = sum
	}
	return nil
}

// Update accumulates one accepted ballot with weight 1.
func (tb *Builder) Update(b *ballot.Encrypted) error {
	for _, contest := range b.Contests {
		if err := tb.accumulate(contest.ContestIndex, contest.Selections); err != nil {
			return err
		}
	}
	tb.ballots++
	tb.maxPlain += tb.maxContestLimit()
	return nil
}

// UpdateWeighted scales the ballot by the given positive integer weight
// and accumulates the result, so the ballot counts as weight identical
// votes. Scale-then-accumulate ordering is an invariant of the tally.
func (tb *Builder) UpdateWeighted(b *ballot.Encrypted, weight uint64) error {
	if weight == 0 {
		return fmt.Errorf("tally: ballot weight must be positive")
	}
	g := tb.pvd.Group()
	scaled, err := b.Scale(g, g.Field().ScalarUint64(weight))
	if err != nil {
		return err
	}
	for contestIndex, cts := range scaled {
		if err := tb.accumulate(contestIndex, cts); err != nil {
			return err
		}
	}
	tb.ballots++
	tb.maxPlain += weight * tb.maxContestLimit()
	return nil
}

// maxContestLimit is the largest selection limit in the manifest, the
// per-ballot upper bound any single option's count can grow by.
func (tb *Builder) maxContestLimit() uint64 {
	max := uint64(1)
	for _, c := range tb.pvd.Manifest.Contests {
		if uint64(c.SelectionLimit) > max {
			max = uint64(c.SelectionLimit)
		}
	}
	return max
}

// Finalize returns the encrypted tally accumulated so far. Contests with
// no accepted ballots are filled with nil ciphertext slots, which
// downstream decryption reports as zero votes.
func (tb *Builder) Finalize() *Encrypted {
	for i, c := range tb.pvd.Manifest.Contests {
		contestIndex := uint32(i + 1)
		if _, ok := tb.contests[contestIndex]; !ok {
			tb.contests[contestIndex] = make([]*ballot.Ciphertext, len(c.Options))
		}
	}
	return &Encrypted{
		Contests:     tb.contests,
		Ballots:      tb.ballots,
		MaxPlaintext: tb.maxPlain,
	}
}

// Ciphertext returns the accumulated ciphertext for one option, or nil
// when no ballot contributed to it.
func (t *Encrypted) Ciphertext(contest uint32, option int) *ballot.Ciphertext {
	cts, ok := t.Contests[contest]
	if !ok || option < 0 || option >= len(cts) {
		return nil
	}
	return cts[option]
}
