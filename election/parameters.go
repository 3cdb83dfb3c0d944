// Package election defines the static description of an election: the
// cryptographic domain parameters, the manifest of contests and options, and
// the canonical hashes that pin both.
package election

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/voteguard/voteguard-node/crypto/hashing"
	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/types"
)

// BallotChaining is the policy for binding ballots from the same device into
// a hash chain.
type BallotChaining string

const (
	// ChainingProhibited omits the device chain binding entirely.
	ChainingProhibited BallotChaining = "prohibited"
	// ChainingAllowed binds each ballot to the device's previous
	// confirmation code when one exists.
	ChainingAllowed BallotChaining = "allowed"
	// ChainingRequired additionally rejects ballots without a chain field.
	ChainingRequired BallotChaining = "required"
)

// FixedParameters describe the cryptographic domain: a safe prime p, the
// subgroup order q = (p-1)/2 and a generator g of the order-q subgroup. The
// Source field records the public specification the primes were derived
// from, which is what proves they were not adversarially chosen.
type FixedParameters struct {
	Source string        `json:"source"`
	PBits  int           `json:"p_bits"`
	P      *types.BigInt `json:"p"`
	Q      *types.BigInt `json:"q"`
	G      *types.BigInt `json:"g"`

	groupOnce sync.Once
	group     *modular.Group
}

// Group returns the modular group for these parameters, built once.
func (fp *FixedParameters) Group() *modular.Group {
	fp.groupOnce.Do(func() {
		fp.group = modular.NewGroup(fp.P.MathBigInt(), fp.Q.MathBigInt(), fp.G.MathBigInt())
	})
	return fp.group
}

// modp2048 is the 2048-bit MODP group of RFC 3526 section 3. p is a safe
// prime; q = (p-1)/2 is prime; g = 4 is a quadratic residue and therefore
// generates the order-q subgroup.
const modp2048 = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
	"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
	"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
	"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB" +
	"9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718" +
	"3995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF"

var standardParameters = sync.OnceValue(func() *FixedParameters {
	p, ok := new(big.Int).SetString(modp2048, 16)
	if !ok {
		panic("malformed MODP-2048 prime constant")
	}
	q := new(big.Int).Rsh(new(big.Int).Sub(p, big.NewInt(1)), 1)
	return &FixedParameters{
		Source: "RFC3526-MODP-2048",
		PBits:  2048,
		P:      types.FromBigInt(p),
		Q:      types.FromBigInt(q),
		G:      types.FromBigInt(big.NewInt(4)),
	}
})

// StandardParameters returns the process-wide standard parameter set. The
// value is built lazily, once, and must not be mutated; alternate parameter
// sets are always passed explicitly.
func StandardParameters() *FixedParameters {
	return standardParameters()
}

// insecureTestPrime is a 256-bit safe prime (2^255 + 0x2ff7f) found by
// deterministic upward search from 2^255 + 1. Far too small for real use;
// it keeps test exponentiations cheap.
const insecureTestPrime = "800000000000000000000000000000000000000000000000000000000002ff7f"

var insecureTestParameters = sync.OnceValue(func() *FixedParameters {
	p, ok := new(big.Int).SetString(insecureTestPrime, 16)
	if !ok {
		panic("malformed test prime constant")
	}
	q := new(big.Int).Rsh(new(big.Int).Sub(p, big.NewInt(1)), 1)
	return &FixedParameters{
		Source: "INSECURE-TEST-256",
		PBits:  256,
		P:      types.FromBigInt(p),
		Q:      types.FromBigInt(q),
		G:      types.FromBigInt(big.NewInt(4)),
	}
})

// InsecureTestParameters returns a small parameter set for tests only.
func InsecureTestParameters() *FixedParameters {
	return insecureTestParameters()
}

// VaryingParameters are the per-election protocol parameters.
type VaryingParameters struct {
	GuardianCount  uint32         `json:"guardian_count"`  // n
	Threshold      uint32         `json:"threshold"`       // k
	Date           time.Time      `json:"date"`
	Info           string         `json:"info"`
	BallotChaining BallotChaining `json:"ballot_chaining"`
}

// Parameters bundles the fixed and varying parameters of one election.
type Parameters struct {
	Fixed   *FixedParameters  `json:"fixed"`
	Varying VaryingParameters `json:"varying"`
}

// Validate checks the parameter invariants. Violations are domain errors,
// fatal and non-retryable, caught before any network interaction.
func (p *Parameters) Validate() error {
	if p.Fixed == nil || p.Fixed.P == nil || p.Fixed.Q == nil || p.Fixed.G == nil {
		return fmt.Errorf("election: missing fixed parameters")
	}
	if p.Varying.GuardianCount == 0 {
		return fmt.Errorf("election: guardian count must be positive")
	}
	if p.Varying.Threshold == 0 || p.Varying.Threshold > p.Varying.GuardianCount {
		return fmt.Errorf("election: threshold %d out of range [1,%d]",
			p.Varying.Threshold, p.Varying.GuardianCount)
	}
	switch p.Varying.BallotChaining {
	case ChainingProhibited, ChainingAllowed, ChainingRequired:
	default:
		return fmt.Errorf("election: unknown ballot chaining policy %q", p.Varying.BallotChaining)
	}
	return nil
}

// Group returns the modular group of the fixed parameters.
func (p *Parameters) Group() *modular.Group {
	return p.Fixed.Group()
}

// Hash returns the canonical JSON bytes of the parameters and their SHA-256
// digest. The digest is the parameter hash pinned on the bulletin board.
func (p *Parameters) Hash() (canonical []byte, digest types.HexBytes, err error) {
	data, sum, err := hashing.JSONDigest(p)
	if err != nil {
		return nil, nil, fmt.Errorf("election: parameter hash: %w", err)
	}
	return data, sum, nil
}
