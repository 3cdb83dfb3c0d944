package ballot

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/voteguard/voteguard-node/crypto/hashing"
	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/crypto/zkp"
	"github.com/voteguard/voteguard-node/election"
	"github.com/voteguard/voteguard-node/prevoting"
	"github.com/voteguard/voteguard-node/types"
)

// Device identifies the voting device a ballot was produced on. Ballots
// from the same device form a hash chain when the election's chaining
// policy asks for one.
type Device struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
}

// NewDevice creates a device with a fresh random identifier.
func NewDevice(label string) Device {
	return Device{ID: uuid.New(), Label: label}
}

// Selections is the plaintext ballot: per 1-based contest index, the 0/1
// selection vector over that contest's options.
type Selections map[uint32][]uint8

// ContestEncrypted is the encrypted form of one contest: one ciphertext
// and one disjunctive proof per option, plus the proof that the selections
// sum to the contest's selection limit.
type ContestEncrypted struct {
	ContestIndex    uint32                  `json:"contest_index" cbor:"1,keyasint"`
	Selections      []*Ciphertext           `json:"selections" cbor:"2,keyasint"`
	SelectionProofs []*zkp.SelectionProof   `json:"selection_proofs" cbor:"3,keyasint"`
	LimitProof      *zkp.ChaumPedersenProof `json:"limit_proof" cbor:"4,keyasint"`
}

// Encrypted is a full encrypted ballot.
type Encrypted struct {
	BallotStyleIndex uint32              `json:"ballot_style_index" cbor:"1,keyasint"`
	DeviceID         string              `json:"device_id" cbor:"2,keyasint"`
	Contests         []*ContestEncrypted `json:"contests" cbor:"3,keyasint"`
	ChainField       types.HexBytes      `json:"chain_field,omitempty" cbor:"4,keyasint,omitempty"`
	ConfirmationCode types.HexBytes      `json:"confirmation_code" cbor:"5,keyasint"`
}

// selectionNonce derives the encryption nonce for one option
// deterministically from the primary nonce. A voter who keeps the primary
// nonce can recompute every ciphertext of their ballot and audit it.
func selectionNonce(f *modular.Field, extendedHash, primaryNonce []byte, contest, option uint32) modular.Scalar {
	return hashing.New("VG-nonce").
		Bytes(extendedHash).
		Bytes(primaryNonce).
		Uint64(uint64(contest)).
		Uint64(uint64(option)).
		SumScalar(f)
}

// selectionContext binds an option's disjunctive proof to the election and
// the option's position.
func selectionContext(extendedHash []byte, contest, option uint32) []byte {
	return hashing.New("VG-selection-ctx").
		Bytes(extendedHash).
		Uint64(uint64(contest)).
		Uint64(uint64(option)).
		Sum()
}

// limitContext binds a contest's selection-limit proof to the election and
// the contest.
func limitContext(extendedHash []byte, contest uint32) []byte {
	return hashing.New("VG-limit-ctx").
		Bytes(extendedHash).
		Uint64(uint64(contest)).
		Sum()
}

// chainBaseline is the chain field of the first ballot of a device.
func chainBaseline(extendedHash []byte, deviceID string) types.HexBytes {
	return hashing.New("VG-chain-base").
		Bytes(extendedHash).
		String(deviceID).
		Sum()
}

// confirmationCode hashes the whole encrypted ballot into the code the
// voter takes home, chaining in the device's previous code when chaining
// is active.
func confirmationCode(extendedHash []byte, deviceID string, chainField types.HexBytes, contests []*ContestEncrypted) types.HexBytes {
	h := hashing.New("VG-confirmation").
		Bytes(extendedHash).
		String(deviceID).
		Bytes(chainField)
	for _, c := range contests {
		h.Uint64(uint64(c.ContestIndex))
		for _, ct := range c.Selections {
			h.BigInt(ct.Alpha.MathBigInt())
			h.BigInt(ct.Beta.MathBigInt())
		}
	}
	return h.Sum()
}

// EncryptFromSelections encrypts a plaintext selection against the joint
// public key. The per-ciphertext nonces derive deterministically from
// primaryNonce; rng feeds only the zero-knowledge proofs. previousCode is
// the device's previous confirmation code, empty for the device's first
// ballot.
func EncryptFromSelections(rng io.Reader, pvd *prevoting.PreVotingData, styleIndex uint32, device Device, primaryNonce []byte, selections Selections, previousCode types.HexBytes) (*Encrypted, error) {
	style, err := pvd.Manifest.BallotStyle(styleIndex)
	if err != nil {
		return nil, err
	}
	key, err := pvd.JointKeyElement()
	if err != nil {
		return nil, err
	}
	g := pvd.Group()
	f := g.Field()
	hE := pvd.ExtendedBaseHash
	deviceID := device.ID.String()

	if len(selections) != len(style.Contests) {
		return nil, fmt.Errorf("ballot: %d contests selected, style has %d", len(selections), len(style.Contests))
	}

	var contests []*ContestEncrypted
	for _, contestIndex := range style.Contests {
		contest, err := pvd.Manifest.Contest(contestIndex)
		if err != nil {
			return nil, err
		}
		vector, ok := selections[contestIndex]
		if !ok {
			return nil, fmt.Errorf("ballot: no selections for contest %d", contestIndex)
		}
		if len(vector) != len(contest.Options) {
			return nil, fmt.Errorf("ballot: contest %d has %d options, got %d selections",
				contestIndex, len(contest.Options), len(vector))
		}

		total := uint32(0)
		for _, s := range vector {
			if s > 1 {
				return nil, fmt.Errorf("ballot: contest %d selection must be 0 or 1", contestIndex)
			}
			total += uint32(s)
		}
		if total != contest.SelectionLimit {
			return nil, fmt.Errorf("ballot: contest %d selects %d options, limit is %d",
				contestIndex, total, contest.SelectionLimit)
		}

		enc := &ContestEncrypted{ContestIndex: contestIndex}
		o := g.Ops()
		nonceSum := f.Zero()
		aggAlpha := g.One()
		aggBeta := g.One()
		for option := range vector {
			sigma := vector[option]
			xi := selectionNonce(f, hE, primaryNonce, contestIndex, uint32(option+1))

			alpha := o.BaseExp(xi)
			beta := o.Exp(key, xi)
			if sigma == 1 {
				beta = o.Mul(beta, g.Generator())
			}
			if err := o.Err(); err != nil {
				return nil, fmt.Errorf("ballot: encrypt contest %d: %w", contestIndex, err)
			}

			proof, err := zkp.ProveSelection(rng, g, selectionContext(hE, contestIndex, uint32(option+1)),
				key, alpha, beta, xi, sigma)
			if err != nil {
				return nil, fmt.Errorf("ballot: contest %d option %d: %w", contestIndex, option+1, err)
			}

			enc.Selections = append(enc.Selections, &Ciphertext{
				Alpha: types.FromBigInt(alpha.BigInt()),
				Beta:  types.FromBigInt(beta.BigInt()),
			})
			enc.SelectionProofs = append(enc.SelectionProofs, proof)

			nonceSum = o.Add(nonceSum, xi)
			aggAlpha = o.Mul(aggAlpha, alpha)
			aggBeta = o.Mul(aggBeta, beta)
		}

		// The aggregate ciphertext encrypts the selection total with
		// nonce Σxi. Proving it encrypts exactly the selection limit
		// needs no extra secret: the witness is the nonce sum.
		limit := f.ScalarUint64(uint64(contest.SelectionLimit))
		gLimit := o.BaseExp(limit)
		x2 := o.Div(aggBeta, gLimit)
		if err := o.Err(); err != nil {
			return nil, fmt.Errorf("ballot: contest %d sum: %w", contestIndex, err)
		}
		limitProof, err := zkp.ProveEquality(rng, g, limitContext(hE, contestIndex), key, nonceSum, aggAlpha, x2)
		if err != nil {
			return nil, fmt.Errorf("ballot: contest %d limit proof: %w", contestIndex, err)
		}
		enc.LimitProof = limitProof
		contests = append(contests, enc)
	}

	var chainField types.HexBytes
	switch pvd.Parameters.Varying.BallotChaining {
	case election.ChainingProhibited:
		// No device binding at all.
	case election.ChainingAllowed, election.ChainingRequired:
		if len(previousCode) > 0 {
			chainField = previousCode
		} else {
			chainField = chainBaseline(hE, deviceID)
		}
	}

	return &Encrypted{
		BallotStyleIndex: styleIndex,
		DeviceID:         deviceID,
		Contests:         contests,
		ChainField:       chainField,
		ConfirmationCode: confirmationCode(hE, deviceID, chainField, contests),
	}, nil
}
