package election

import (
	"fmt"

	"github.com/voteguard/voteguard-node/crypto/hashing"
	"github.com/voteguard/voteguard-node/types"
)

// Option is one selectable option within a contest.
type Option struct {
	Label string `json:"label"`
}

// Contest is an ordered set of options with a selection limit: the exact
// number of options a voter marks in this contest.
type Contest struct {
	Label          string   `json:"label"`
	SelectionLimit uint32   `json:"selection_limit"`
	Options        []Option `json:"options"`
}

// BallotStyle names the subset of contests a given class of voters votes on.
// Contest indices are 1-based, matching their position in the manifest.
type BallotStyle struct {
	Label    string   `json:"label"`
	Contests []uint32 `json:"contests"`
}

// Manifest is the static description of the contests, options and ballot
// styles of an election. Indices are 1-based, dense and immutable after
// creation; its canonical JSON hash must be stable under serialization.
type Manifest struct {
	Label        string        `json:"label"`
	Contests     []Contest     `json:"contests"`
	BallotStyles []BallotStyle `json:"ballot_styles"`
}

// Validate checks internal consistency of the manifest.
func (m *Manifest) Validate() error {
	if len(m.Contests) == 0 {
		return fmt.Errorf("election: manifest has no contests")
	}
	for i, c := range m.Contests {
		if len(c.Options) == 0 {
			return fmt.Errorf("election: contest %d has no options", i+1)
		}
		if c.SelectionLimit == 0 || int(c.SelectionLimit) > len(c.Options) {
			return fmt.Errorf("election: contest %d selection limit %d out of range [1,%d]",
				i+1, c.SelectionLimit, len(c.Options))
		}
	}
	if len(m.BallotStyles) == 0 {
		return fmt.Errorf("election: manifest has no ballot styles")
	}
	for i, bs := range m.BallotStyles {
		if len(bs.Contests) == 0 {
			return fmt.Errorf("election: ballot style %d has no contests", i+1)
		}
		seen := make(map[uint32]bool, len(bs.Contests))
		for _, ci := range bs.Contests {
			if ci == 0 || int(ci) > len(m.Contests) {
				return fmt.Errorf("election: ballot style %d references contest %d, manifest has %d",
					i+1, ci, len(m.Contests))
			}
			if seen[ci] {
				return fmt.Errorf("election: ballot style %d references contest %d twice", i+1, ci)
			}
			seen[ci] = true
		}
	}
	return nil
}

// Contest returns the 1-based contest, or an error for an out-of-range
// index.
func (m *Manifest) Contest(index uint32) (*Contest, error) {
	if index == 0 || int(index) > len(m.Contests) {
		return nil, fmt.Errorf("election: contest index %d out of range [1,%d]", index, len(m.Contests))
	}
	return &m.Contests[index-1], nil
}

// BallotStyle returns the 1-based ballot style, or an error for an
// out-of-range index.
func (m *Manifest) BallotStyle(index uint32) (*BallotStyle, error) {
	if index == 0 || int(index) > len(m.BallotStyles) {
		return nil, fmt.Errorf("election: ballot style index %d out of range [1,%d]", index, len(m.BallotStyles))
	}
	return &m.BallotStyles[index-1], nil
}

// Hash returns the canonical JSON bytes of the manifest and their SHA-256
// digest, the manifest hash pinned on the bulletin board.
func (m *Manifest) Hash() (canonical []byte, digest types.HexBytes, err error) {
	data, sum, err := hashing.JSONDigest(m)
	if err != nil {
		return nil, nil, fmt.Errorf("election: manifest hash: %w", err)
	}
	return data, sum, nil
}
