package modular

import (
	"fmt"
	"math/big"
)

// DLog finds m such that beta == g^m for the group generator g, searching
// the bounded interval [0, max] with the baby-step giant-step algorithm.
// Vote counts are small integers, so the interval stays tiny compared to the
// group order. It is deterministic and always finds m when it exists; an
// error means beta does not encode a value in the interval.
func (g *Group) DLog(beta Element, max uint64) (*big.Int, error) {
	if beta.v == nil || !sameGroup(beta.g, g) {
		return nil, fmt.Errorf("%w: dlog target from a different group", ErrFieldMismatch)
	}

	// m = ceil(sqrt(max)) using integer arithmetic only.
	m := new(big.Int).Sqrt(new(big.Int).SetUint64(max))
	if new(big.Int).Mul(m, m).Cmp(new(big.Int).SetUint64(max)) < 0 {
		m.Add(m, big.NewInt(1))
	}
	if m.Sign() == 0 {
		m = big.NewInt(1)
	}
	mU64 := m.Uint64()

	// Baby steps: table of g^j for j in [0, m-1].
	baby := big.NewInt(1)
	table := make(map[string]uint64, mU64+1)
	for j := uint64(0); j < mU64; j++ {
		table[string(baby.Bytes())] = j
		baby.Mul(baby, g.generator)
		baby.Mod(baby, g.modulus)
	}

	// Giant-step increment g^-m.
	c := new(big.Int).Exp(g.generator, m, g.modulus)
	c.ModInverse(c, g.modulus)

	giant := new(big.Int).Set(beta.v)
	for i := uint64(0); i <= mU64; i++ {
		if j, ok := table[string(giant.Bytes())]; ok {
			x := new(big.Int).SetUint64(i*mU64 + j)
			if x.Cmp(new(big.Int).SetUint64(max)) <= 0 {
				return x, nil
			}
		}
		giant.Mul(giant, c)
		giant.Mod(giant, g.modulus)
	}
	return nil, fmt.Errorf("modular: discrete log not found in [0,%d]", max)
}
