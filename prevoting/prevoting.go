// Package prevoting derives the verification context of an election: the
// joint public key ballots are encrypted against, and the hash chain that
// binds parameters, manifest and every guardian public key into a single
// extended base hash. That hash is threaded through every subsequent proof,
// so a proof generated for one election instance can never verify under
// another.
package prevoting

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/voteguard/voteguard-node/crypto/hashing"
	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/election"
	"github.com/voteguard/voteguard-node/guardian"
	"github.com/voteguard/voteguard-node/types"
)

// ErrIncompletePublicKeys means the joint key cannot be formed because a
// non-excluded guardian's public key is absent or invalid.
var ErrIncompletePublicKeys = errors.New("prevoting: incomplete guardian public keys")

// Hashes is the first stage of the hash chain, derived from the static
// election description alone.
type Hashes struct {
	ParameterHash types.HexBytes `json:"parameter_hash" cbor:"1,keyasint"`
	ManifestHash  types.HexBytes `json:"manifest_hash" cbor:"2,keyasint"`
	BaseHash      types.HexBytes `json:"base_hash" cbor:"3,keyasint"`
}

// ComputeHashes computes the parameter, manifest and base hashes.
func ComputeHashes(params *election.Parameters, manifest *election.Manifest) (*Hashes, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	_, paramHash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	_, manifestHash, err := manifest.Hash()
	if err != nil {
		return nil, err
	}
	base := hashing.New("VG-base").
		Bytes(paramHash).
		Bytes(manifestHash).
		Sum()
	return &Hashes{
		ParameterHash: paramHash,
		ManifestHash:  manifestHash,
		BaseHash:      base,
	}, nil
}

// PreVotingData is everything a verifier needs before the first ballot is
// cast: parameters, manifest, the hash chain, the joint public key and the
// extended base hash binding them all.
type PreVotingData struct {
	Parameters       *election.Parameters  `json:"parameters"`
	Manifest         *election.Manifest    `json:"manifest"`
	Hashes           *Hashes               `json:"hashes"`
	GuardianKeys     []*guardian.PublicKey `json:"guardian_keys"`
	JointKey         *types.BigInt         `json:"joint_key"`
	ExtendedBaseHash types.HexBytes        `json:"extended_base_hash"`
}

// Compute validates every supplied guardian public key and derives the
// joint key and extended base hash. publicKeys must contain exactly one key
// for every guardian index in [1,n] not listed in excluded; otherwise it
// fails with ErrIncompletePublicKeys. Exclusion shrinks the dealer set, so
// re-running key generation with a different excluded list yields a
// different joint key and a different hash chain.
func Compute(params *election.Parameters, manifest *election.Manifest, publicKeys []*guardian.PublicKey, excluded []uint32) (*PreVotingData, error) {
	hashes, err := ComputeHashes(params, manifest)
	if err != nil {
		return nil, err
	}
	g := params.Group()

	byIndex := make(map[uint32]*guardian.PublicKey, len(publicKeys))
	for _, pk := range publicKeys {
		if pk == nil {
			return nil, fmt.Errorf("%w: nil public key", ErrIncompletePublicKeys)
		}
		if _, dup := byIndex[pk.GuardianIndex]; dup {
			return nil, fmt.Errorf("%w: duplicate key for guardian %d", ErrIncompletePublicKeys, pk.GuardianIndex)
		}
		byIndex[pk.GuardianIndex] = pk
	}

	var included []*guardian.PublicKey
	for i := uint32(1); i <= params.Varying.GuardianCount; i++ {
		if slices.Contains(excluded, i) {
			continue
		}
		pk, ok := byIndex[i]
		if !ok {
			return nil, fmt.Errorf("%w: no key for guardian %d", ErrIncompletePublicKeys, i)
		}
		if err := pk.Validate(params, hashes.ParameterHash); err != nil {
			return nil, fmt.Errorf("%w: guardian %d: %v", ErrIncompletePublicKeys, i, err)
		}
		included = append(included, pk)
	}
	if len(included) < int(params.Varying.Threshold) {
		return nil, fmt.Errorf("%w: %d keys left after exclusions, threshold is %d",
			ErrIncompletePublicKeys, len(included), params.Varying.Threshold)
	}
	sort.Slice(included, func(i, j int) bool {
		return included[i].GuardianIndex < included[j].GuardianIndex
	})

	// Joint key: product of every included guardian's constant-term
	// commitment.
	o := g.Ops()
	joint := g.One()
	for _, pk := range included {
		cc, err := pk.ConstantCommitment(g)
		if err != nil {
			return nil, fmt.Errorf("%w: guardian %d: %v", ErrIncompletePublicKeys, pk.GuardianIndex, err)
		}
		joint = o.Mul(joint, cc)
	}
	if err := o.Err(); err != nil {
		return nil, err
	}

	// Extended base hash: base hash, joint key, then every guardian's
	// commitments in index order.
	h := hashing.New("VG-extended").
		Bytes(hashes.BaseHash).
		Element(joint)
	for _, pk := range included {
		h.Uint64(uint64(pk.GuardianIndex))
		for _, c := range pk.CoefficientCommitments {
			h.BigInt(c.MathBigInt())
		}
	}

	return &PreVotingData{
		Parameters:       params,
		Manifest:         manifest,
		Hashes:           hashes,
		GuardianKeys:     included,
		JointKey:         types.FromBigInt(joint.BigInt()),
		ExtendedBaseHash: h.Sum(),
	}, nil
}

// Group returns the modular group of the election parameters.
func (pvd *PreVotingData) Group() *modular.Group {
	return pvd.Parameters.Group()
}

// JointKeyElement rebinds the joint key to the group.
func (pvd *PreVotingData) JointKeyElement() (modular.Element, error) {
	if pvd.JointKey == nil {
		return modular.Element{}, fmt.Errorf("prevoting: missing joint key")
	}
	return pvd.Group().ValidElement(pvd.JointKey.MathBigInt())
}
