// Package board defines the bulletin-board collaborator the protocol
// publishes to and audits from, and a key-value backed implementation.
//
// The board is the system of record for every public protocol artifact:
// election configuration, guardian public keys and encrypted shares,
// ceremony statuses, the encrypted tally, decryption shares with their
// proof material, and the final result. Secret material never reaches
// it. Artifacts cross the interface as opaque bytes: compact
// deterministic CBOR for cryptographic objects, canonical JSON for the
// human-auditable manifest and parameters whose SHA-256 digest is pinned
// in the configuration.
package board

import (
	"context"
	"errors"
	"time"

	"github.com/voteguard/voteguard-node/guardian"
	"github.com/voteguard/voteguard-node/types"
)

var (
	// ErrNotFound means the requested artifact has not been published.
	ErrNotFound = errors.New("board: artifact not found")
	// ErrAlreadyPublished means the artifact slot is write-once and
	// already holds a value.
	ErrAlreadyPublished = errors.New("board: artifact already published")
)

// Config is the election configuration pinned on the board. The manifest
// and parameters themselves live at the referenced URLs; the hashes over
// their canonical JSON bytes are what verifiers trust.
type Config struct {
	ManifestURL    string         `json:"manifest_url" cbor:"1,keyasint"`
	ManifestHash   types.HexBytes `json:"manifest_hash" cbor:"2,keyasint"`
	ParametersURL  string         `json:"parameters_url" cbor:"3,keyasint"`
	ParametersHash types.HexBytes `json:"parameters_hash" cbor:"4,keyasint"`
	VotingStart    time.Time      `json:"voting_start" cbor:"5,keyasint"`
	VotingEnd      time.Time      `json:"voting_end" cbor:"6,keyasint"`
	// DecryptionDeadline bounds how long guardians have to publish their
	// decryption shares after voting ends.
	DecryptionDeadline time.Time `json:"decryption_deadline" cbor:"7,keyasint"`
	// Guardians are the account identifiers of the guardians, in
	// ceremony order: guardian index i is Guardians[i-1].
	Guardians []string `json:"guardians" cbor:"8,keyasint"`
}

// GuardianIndex returns the 1-based guardian index of account, or 0 when
// the account is not a guardian.
func (c *Config) GuardianIndex(account string) uint32 {
	for i, a := range c.Guardians {
		if a == account {
			return uint32(i + 1)
		}
	}
	return 0
}

// GuardianRecord is everything the board holds for one guardian. Byte
// fields are nil until the guardian publishes them.
type GuardianRecord struct {
	Index           uint32           `json:"index" cbor:"1,keyasint"`
	PublicKey       []byte           `json:"public_key,omitempty" cbor:"2,keyasint,omitempty"`
	EncryptedShares []byte           `json:"encrypted_shares,omitempty" cbor:"3,keyasint,omitempty"`
	Status          *guardian.Status `json:"status,omitempty" cbor:"4,keyasint,omitempty"`
	DecryptionShare []byte           `json:"decryption_share,omitempty" cbor:"5,keyasint,omitempty"`
	ProofCommits    []byte           `json:"proof_commits,omitempty" cbor:"6,keyasint,omitempty"`
	ProofResponses  []byte           `json:"proof_responses,omitempty" cbor:"7,keyasint,omitempty"`
	// Excluded marks a guardian voted out of the ceremony after failed
	// validation. Excluded guardians keep their record for auditing but
	// contribute nothing downstream.
	Excluded bool `json:"excluded" cbor:"8,keyasint"`
}

// Result is the published plaintext outcome: per contest, one count per
// option in option order.
type Result struct {
	Contests map[uint32][]uint64 `json:"contests" cbor:"1,keyasint"`
	Ballots  uint64              `json:"ballots" cbor:"2,keyasint"`
}

// Board is the bulletin-board ledger. Implementations may talk to a
// remote chain; reads return ErrNotFound for anything unpublished, and
// the core never retries on transport failures.
type Board interface {
	// Config returns the pinned election configuration.
	Config(ctx context.Context) (*Config, error)

	// Guardian returns the record of one guardian by 1-based index.
	Guardian(ctx context.Context, index uint32) (*GuardianRecord, error)
	// Guardians returns every guardian record in index order.
	Guardians(ctx context.Context) ([]*GuardianRecord, error)

	// EncryptedTally returns the published encrypted tally bytes.
	EncryptedTally(ctx context.Context) ([]byte, error)
	// Result returns the published plaintext result.
	Result(ctx context.Context) (*Result, error)

	SetConfig(ctx context.Context, cfg *Config) error
	PublishPublicKey(ctx context.Context, index uint32, data []byte) error
	PublishEncryptedShares(ctx context.Context, index uint32, data []byte) error
	PublishStatus(ctx context.Context, index uint32, status *guardian.Status) error
	SetExcluded(ctx context.Context, index uint32, excluded bool) error
	PublishEncryptedTally(ctx context.Context, data []byte) error
	PublishDecryptionShare(ctx context.Context, index uint32, data []byte) error
	PublishProofCommits(ctx context.Context, index uint32, data []byte) error
	PublishProofResponses(ctx context.Context, index uint32, data []byte) error
	PublishResult(ctx context.Context, result *Result) error
}
