package guardian

import (
	"fmt"

	"github.com/voteguard/voteguard-node/election"
	"github.com/voteguard/voteguard-node/log"
)

// StatusKind is the outcome a guardian publishes after validating its
// peers' keys and shares.
type StatusKind string

const (
	// StatusVerificationSuccessful means every peer key and share
	// checked out.
	StatusVerificationSuccessful StatusKind = "verification_successful"
	// StatusKeyVerificationFailed accuses the listed guardians of
	// publishing invalid public keys.
	StatusKeyVerificationFailed StatusKind = "key_verification_failed"
	// StatusSharesVerificationFailed accuses the listed guardians of
	// dealing invalid encrypted shares.
	StatusSharesVerificationFailed StatusKind = "shares_verification_failed"
)

// Status is a guardian's published verdict on its peers. Accused lists the
// implicated guardian indices so a human coordinator can act; it is empty
// for a successful verification.
type Status struct {
	Kind    StatusKind `json:"kind" cbor:"1,keyasint"`
	Accused []uint32   `json:"accused,omitempty" cbor:"2,keyasint,omitempty"`
}

// Validate checks structural consistency of a status value.
func (s *Status) Validate() error {
	switch s.Kind {
	case StatusVerificationSuccessful:
		if len(s.Accused) > 0 {
			return fmt.Errorf("guardian: successful status must not accuse anyone")
		}
	case StatusKeyVerificationFailed, StatusSharesVerificationFailed:
		if len(s.Accused) == 0 {
			return fmt.Errorf("guardian: %s status must name the accused guardians", s.Kind)
		}
	default:
		return fmt.Errorf("guardian: unknown status kind %q", s.Kind)
	}
	return nil
}

// ValidatePeers runs the full peer-validation pass a guardian performs
// after key exchange: every peer public key is validated, then every share
// directed to this guardian is decrypted and validated. It returns the
// validated shares plus the Status to publish; invalid peers land in the
// status, never in the error. The error is reserved for local problems
// (bad own key material, parameter mismatch).
func ValidatePeers(params *election.Parameters, paramHash []byte, publicKeys []*PublicKey, shares []*EncryptedShare, my *SecretKey) ([]*ValidatedShare, *Status, error) {
	var badKeys []uint32
	valid := make(map[uint32]*PublicKey, len(publicKeys))
	for _, pk := range publicKeys {
		if pk.GuardianIndex == my.GuardianIndex {
			valid[pk.GuardianIndex] = pk
			continue
		}
		if err := pk.Validate(params, paramHash); err != nil {
			log.Warnw("peer public key failed validation",
				"guardian", pk.GuardianIndex, "error", err.Error())
			badKeys = append(badKeys, pk.GuardianIndex)
			continue
		}
		valid[pk.GuardianIndex] = pk
	}
	if len(badKeys) > 0 {
		return nil, &Status{Kind: StatusKeyVerificationFailed, Accused: badKeys}, nil
	}

	var badShares []uint32
	var validated []*ValidatedShare
	for _, es := range shares {
		if es.RecipientIndex != my.GuardianIndex || es.DealerIndex == my.GuardianIndex {
			continue
		}
		dealer, ok := valid[es.DealerIndex]
		if !ok {
			badShares = append(badShares, es.DealerIndex)
			continue
		}
		vs, err := es.DecryptAndValidate(params, dealer, my)
		if err != nil {
			log.Warnw("peer share failed validation",
				"dealer", es.DealerIndex, "error", err.Error())
			badShares = append(badShares, es.DealerIndex)
			continue
		}
		validated = append(validated, vs)
	}
	if len(badShares) > 0 {
		return validated, &Status{Kind: StatusSharesVerificationFailed, Accused: badShares}, nil
	}
	return validated, &Status{Kind: StatusVerificationSuccessful}, nil
}
