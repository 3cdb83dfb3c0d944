package modular

import (
	"fmt"
	"math/big"
)

// LagrangeCoefficients computes, for each index i in indices, the Lagrange
// basis coefficient at x=0 over the field:
//
//	λ_i = Π_{j≠i} (-j) / (i-j)  mod q
//
// These are the weights used to interpolate a shared secret (or a value in
// the exponent) from point-value shares at the guardian indices. Indices
// must be distinct and non-zero.
func (f *Field) LagrangeCoefficients(indices []int) (map[int]Scalar, error) {
	coeffs := make(map[int]Scalar, len(indices))
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i == 0 {
			return nil, fmt.Errorf("modular: lagrange index must be non-zero")
		}
		if seen[i] {
			return nil, fmt.Errorf("modular: duplicate lagrange index %d", i)
		}
		seen[i] = true
	}
	for _, i := range indices {
		numerator := big.NewInt(1)
		denominator := big.NewInt(1)
		for _, j := range indices {
			if i == j {
				continue
			}
			num := big.NewInt(int64(-j))
			num.Mod(num, f.order)
			numerator.Mul(numerator, num)
			numerator.Mod(numerator, f.order)

			den := big.NewInt(int64(i - j))
			den.Mod(den, f.order)
			denominator.Mul(denominator, den)
			denominator.Mod(denominator, f.order)
		}
		denominatorInv := new(big.Int).ModInverse(denominator, f.order)
		if denominatorInv == nil {
			return nil, fmt.Errorf("modular: no inverse for lagrange denominator %v", denominator)
		}
		v := new(big.Int).Mul(numerator, denominatorInv)
		v.Mod(v, f.order)
		coeffs[i] = Scalar{v: v, f: f}
	}
	return coeffs, nil
}
