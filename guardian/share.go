package guardian

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/voteguard/voteguard-node/crypto/hashing"
	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/election"
	"github.com/voteguard/voteguard-node/types"
)

var (
	// ErrShareAuthentication means the encrypted share failed its
	// integrity tag: it was corrupted in transit or on the board.
	ErrShareAuthentication = errors.New("guardian: share authentication failed")
	// ErrShareInconsistent means the share decrypted cleanly but does not
	// match the dealer's published commitments: the dealer cheated. This
	// is the trigger for the public complaint path.
	ErrShareInconsistent = errors.New("guardian: share inconsistent with dealer commitments")
)

// EncryptedShare is a point-value share of the dealer's secret polynomial,
// encrypted for one recipient with hashed ElGamal: an ephemeral g^xi, the
// padded share value, and an integrity tag. Only the recipient can decrypt;
// everyone can see who it is directed to.
type EncryptedShare struct {
	DealerIndex    uint32         `json:"dealer_index" cbor:"1,keyasint"`
	RecipientIndex uint32         `json:"recipient_index" cbor:"2,keyasint"`
	Ephemeral      *types.BigInt  `json:"ephemeral" cbor:"3,keyasint"`
	Ciphertext     types.HexBytes `json:"ciphertext" cbor:"4,keyasint"`
	Tag            types.HexBytes `json:"tag" cbor:"5,keyasint"`
}

// ShareEncryptionResult pairs the encrypted share with the ephemeral secret
// the dealer retains. Revealing the secret later lets the dealer prove in a
// dispute what the share actually contained.
type ShareEncryptionResult struct {
	Share  *EncryptedShare
	Secret *types.BigInt
}

// ValidatedShare is a decrypted share that passed the consistency check
// against the dealer's commitments.
type ValidatedShare struct {
	DealerIndex    uint32
	RecipientIndex uint32
	Value          *types.BigInt
}

// shareKeys derives the pad and tag keys for one directed share from the
// Diffie-Hellman secret.
func shareKeys(dealer, recipient uint32, ephemeral, recipientKey, dhSecret modular.Element) (pad, tag []byte) {
	k := hashing.New("VG-share-key").
		Uint64(uint64(dealer)).
		Uint64(uint64(recipient)).
		Element(ephemeral).
		Element(recipientKey).
		Element(dhSecret).
		Sum()
	return hashing.DeriveKey("pad", k), hashing.DeriveKey("tag", k)
}

func shareTagInput(es *EncryptedShare) []byte {
	return hashing.New("VG-share-tag").
		Uint64(uint64(es.DealerIndex)).
		Uint64(uint64(es.RecipientIndex)).
		BigInt(es.Ephemeral.MathBigInt()).
		Bytes(es.Ciphertext).
		Sum()
}

// EncryptShareFor evaluates the dealer's polynomial at the recipient's
// index and encrypts the value for the recipient's constant-term
// commitment key.
func EncryptShareFor(rng io.Reader, params *election.Parameters, dealer *SecretKey, recipient *PublicKey) (*ShareEncryptionResult, error) {
	g := params.Group()
	f := g.Field()

	recipientKey, err := recipient.ConstantCommitment(g)
	if err != nil {
		return nil, fmt.Errorf("guardian: recipient key: %w", err)
	}
	xi, err := f.RandomScalar(rng)
	if err != nil {
		return nil, fmt.Errorf("guardian: share nonce: %w", err)
	}

	o := g.Ops()
	ephemeral := o.BaseExp(xi)
	dhSecret := o.Exp(recipientKey, xi)
	if err := o.Err(); err != nil {
		return nil, fmt.Errorf("guardian: share encryption: %w", err)
	}

	value := dealer.EvaluateAt(f, recipient.GuardianIndex)
	width := (f.Order().BitLen() + 7) / 8
	plain := make([]byte, width)
	value.BigInt().FillBytes(plain)

	padKey, tagKey := shareKeys(dealer.GuardianIndex, recipient.GuardianIndex, ephemeral, recipientKey, dhSecret)
	pad := hashing.ExpandKey(padKey, "VG-share-pad", width)
	ct := make([]byte, width)
	subtle.XORBytes(ct, plain, pad)

	es := &EncryptedShare{
		DealerIndex:    dealer.GuardianIndex,
		RecipientIndex: recipient.GuardianIndex,
		Ephemeral:      types.FromBigInt(ephemeral.BigInt()),
		Ciphertext:     ct,
	}
	es.Tag = hashing.HMAC(tagKey, shareTagInput(es))
	return &ShareEncryptionResult{
		Share:  es,
		Secret: types.FromBigInt(xi.BigInt()),
	}, nil
}

// DecryptAndValidate decrypts the share with the recipient's secret key and
// checks it against the dealer's published commitments. It returns
// ErrShareAuthentication for a corrupted share and ErrShareInconsistent for
// a share that authenticates but fails the polynomial evaluation check in
// the exponent, meaning the dealer cheated.
func (es *EncryptedShare) DecryptAndValidate(params *election.Parameters, dealer *PublicKey, my *SecretKey) (*ValidatedShare, error) {
	if es.RecipientIndex != my.GuardianIndex {
		return nil, fmt.Errorf("guardian: share directed to %d, not to %d", es.RecipientIndex, my.GuardianIndex)
	}
	if es.DealerIndex != dealer.GuardianIndex {
		return nil, fmt.Errorf("guardian: share claims dealer %d, public key is %d", es.DealerIndex, dealer.GuardianIndex)
	}
	g := params.Group()
	f := g.Field()

	if es.Ephemeral == nil {
		return nil, fmt.Errorf("%w: missing ephemeral", ErrShareAuthentication)
	}
	ephemeral, err := g.ValidElement(es.Ephemeral.MathBigInt())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShareAuthentication, err)
	}
	width := (f.Order().BitLen() + 7) / 8
	if len(es.Ciphertext) != width {
		return nil, fmt.Errorf("%w: ciphertext width %d, want %d", ErrShareAuthentication, len(es.Ciphertext), width)
	}

	if len(my.Coefficients) == 0 || my.Coefficients[0] == nil {
		return nil, fmt.Errorf("guardian: empty secret key")
	}

	// Recompute the DH secret from the recipient side.
	mySecret := f.Scalar(my.Coefficients[0].MathBigInt())
	o := g.Ops()
	recipientKey := o.BaseExp(mySecret)
	dhSecret := o.Exp(ephemeral, mySecret)
	if err := o.Err(); err != nil {
		return nil, fmt.Errorf("guardian: share decryption: %w", err)
	}

	padKey, tagKey := shareKeys(es.DealerIndex, es.RecipientIndex, ephemeral, recipientKey, dhSecret)
	if !hashing.VerifyHMAC(tagKey, shareTagInput(es), es.Tag) {
		return nil, ErrShareAuthentication
	}

	pad := hashing.ExpandKey(padKey, "VG-share-pad", width)
	plain := make([]byte, width)
	subtle.XORBytes(plain, es.Ciphertext, pad)
	value := f.Scalar(new(types.BigInt).SetBytes(plain).MathBigInt())

	// Polynomial evaluation check in the exponent: g^value must equal the
	// dealer's share commitment for this recipient.
	lhs, err := g.BaseExp(value)
	if err != nil {
		return nil, fmt.Errorf("guardian: share check: %w", err)
	}
	rhs, err := dealer.ShareCommitment(g, es.RecipientIndex)
	if err != nil {
		return nil, fmt.Errorf("guardian: share check: %w", err)
	}
	if !lhs.Equal(rhs) {
		return nil, ErrShareInconsistent
	}
	return &ValidatedShare{
		DealerIndex:    es.DealerIndex,
		RecipientIndex: es.RecipientIndex,
		Value:          types.FromBigInt(value.BigInt()),
	}, nil
}
