package ballot

import (
	"fmt"

	"github.com/voteguard/voteguard-node/crypto/modular"
)

// Scale multiplies the ballot's plaintext contribution by an integer
// weight, for weighted voting, by exponentiating every ciphertext
// component. It returns the bare ciphertext matrix: proofs do not survive
// scaling, and a scaled ballot exists only to be accumulated. Scaling must
// happen before accumulation; scaling an accumulated tally is not
// equivalent and not supported.
func (b *Encrypted) Scale(g *modular.Group, weight modular.Scalar) (map[uint32][]*Ciphertext, error) {
	out := make(map[uint32][]*Ciphertext, len(b.Contests))
	for _, contest := range b.Contests {
		scaled := make([]*Ciphertext, len(contest.Selections))
		for i, ct := range contest.Selections {
			s, err := ct.Scale(g, weight)
			if err != nil {
				return nil, fmt.Errorf("ballot: scale contest %d option %d: %w", contest.ContestIndex, i+1, err)
			}
			scaled[i] = s
		}
		out[contest.ContestIndex] = scaled
	}
	return out, nil
}
