package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voteguard/voteguard-node/board"
	"github.com/voteguard/voteguard-node/guardian"
	"github.com/voteguard/voteguard-node/log"
)

// Keystore entry names for ceremony secrets.
const (
	secretKeyEntry    = "secret-key"
	keyShareEntry     = "key-share"
	shareSecretsEntry = "share-dispute-secrets"
)

// keygen generates this guardian's polynomial, stores it locally and
// publishes the public key with its coefficient proofs.
func (n *node) keygen(ctx context.Context) error {
	if n.cfg.Guardian.Index == 0 {
		return fmt.Errorf("guardian.index not set")
	}
	params, err := n.loadParameters()
	if err != nil {
		return err
	}
	_, paramHash, err := params.Hash()
	if err != nil {
		return err
	}
	ks, err := n.keystore()
	if err != nil {
		return err
	}

	sk, err := guardian.Generate(rand.Reader, params, n.cfg.Guardian.Index, n.cfg.Guardian.Account)
	if err != nil {
		return err
	}
	pk, err := sk.PublicKey(rand.Reader, params, paramHash)
	if err != nil {
		return err
	}

	skJSON, err := json.Marshal(sk)
	if err != nil {
		return err
	}
	if err := ks.Put(secretKeyEntry, skJSON); err != nil {
		return err
	}

	data, err := board.EncodeArtifact(pk)
	if err != nil {
		return err
	}
	if err := n.approve(ctx, fmt.Sprintf("publish public key of guardian %d", sk.GuardianIndex)); err != nil {
		return err
	}
	if err := n.board.PublishPublicKey(ctx, sk.GuardianIndex, data); err != nil {
		return err
	}
	log.Infow("public key published", "guardian", sk.GuardianIndex)
	return nil
}

// loadSecretKey reads this guardian's polynomial from the keystore.
func (n *node) loadSecretKey() (*guardian.SecretKey, error) {
	ks, err := n.keystore()
	if err != nil {
		return nil, err
	}
	data, err := ks.Get(secretKeyEntry)
	if err != nil {
		return nil, fmt.Errorf("load secret key (run keygen first?): %w", err)
	}
	sk := &guardian.SecretKey{}
	if err := json.Unmarshal(data, sk); err != nil {
		return nil, err
	}
	return sk, nil
}

// peerPublicKeys decodes the published public keys of every non-excluded
// guardian, in index order.
func (n *node) peerPublicKeys(ctx context.Context) ([]*guardian.PublicKey, error) {
	records, err := n.board.Guardians(ctx)
	if err != nil {
		return nil, err
	}
	var keys []*guardian.PublicKey
	for _, rec := range records {
		if rec.Excluded || rec.PublicKey == nil {
			continue
		}
		pk := &guardian.PublicKey{}
		if err := board.DecodeArtifact(rec.PublicKey, pk); err != nil {
			return nil, fmt.Errorf("guardian %d public key: %w", rec.Index, err)
		}
		keys = append(keys, pk)
	}
	return keys, nil
}

// shares encrypts a key share for every peer and publishes the batch. The
// dealer's dispute secrets go to the keystore in one atomic write.
func (n *node) shares(ctx context.Context) error {
	params, err := n.loadParameters()
	if err != nil {
		return err
	}
	_, paramHash, err := params.Hash()
	if err != nil {
		return err
	}
	sk, err := n.loadSecretKey()
	if err != nil {
		return err
	}
	keys, err := n.peerPublicKeys(ctx)
	if err != nil {
		return err
	}

	var encrypted []*guardian.EncryptedShare
	secrets := make(map[string]string)
	for _, pk := range keys {
		if pk.GuardianIndex == sk.GuardianIndex {
			continue
		}
		if err := pk.Validate(params, paramHash); err != nil {
			return fmt.Errorf("guardian %d public key: %w", pk.GuardianIndex, err)
		}
		res, err := guardian.EncryptShareFor(rand.Reader, params, sk, pk)
		if err != nil {
			return err
		}
		encrypted = append(encrypted, res.Share)
		secrets[fmt.Sprintf("dispute-%d", pk.GuardianIndex)] = res.Secret.String()
	}
	if len(encrypted) == 0 {
		return fmt.Errorf("no peer public keys on the board yet")
	}

	secretsJSON, err := json.Marshal(secrets)
	if err != nil {
		return err
	}
	ks, err := n.keystore()
	if err != nil {
		return err
	}
	if err := ks.Put(shareSecretsEntry, secretsJSON); err != nil {
		return err
	}

	data, err := board.EncodeArtifact(encrypted)
	if err != nil {
		return err
	}
	if err := n.approve(ctx, fmt.Sprintf("publish %d encrypted key shares", len(encrypted))); err != nil {
		return err
	}
	if err := n.board.PublishEncryptedShares(ctx, sk.GuardianIndex, data); err != nil {
		return err
	}
	log.Infow("encrypted shares published", "guardian", sk.GuardianIndex, "recipients", len(encrypted))
	return nil
}

// inboundShares collects the shares addressed to this guardian from every
// dealer's published batch.
func (n *node) inboundShares(ctx context.Context, my uint32) ([]*guardian.EncryptedShare, error) {
	records, err := n.board.Guardians(ctx)
	if err != nil {
		return nil, err
	}
	var shares []*guardian.EncryptedShare
	for _, rec := range records {
		if rec.Excluded || rec.Index == my || rec.EncryptedShares == nil {
			continue
		}
		var batch []*guardian.EncryptedShare
		if err := board.DecodeArtifact(rec.EncryptedShares, &batch); err != nil {
			return nil, fmt.Errorf("guardian %d shares: %w", rec.Index, err)
		}
		for _, es := range batch {
			if es.RecipientIndex == my {
				shares = append(shares, es)
			}
		}
	}
	return shares, nil
}

// validate checks every peer's key and inbound share and publishes the
// resulting ceremony status, including accusations.
func (n *node) validate(ctx context.Context) error {
	params, err := n.loadParameters()
	if err != nil {
		return err
	}
	_, paramHash, err := params.Hash()
	if err != nil {
		return err
	}
	sk, err := n.loadSecretKey()
	if err != nil {
		return err
	}
	keys, err := n.peerPublicKeys(ctx)
	if err != nil {
		return err
	}
	shares, err := n.inboundShares(ctx, sk.GuardianIndex)
	if err != nil {
		return err
	}

	_, status, err := guardian.ValidatePeers(params, paramHash, keys, shares, sk)
	if err != nil {
		return err
	}
	if err := n.approve(ctx, fmt.Sprintf("publish ceremony status %q", status.Kind)); err != nil {
		return err
	}
	if err := n.board.PublishStatus(ctx, sk.GuardianIndex, status); err != nil {
		return err
	}
	log.Infow("ceremony status published", "guardian", sk.GuardianIndex,
		"status", status.Kind, "accused", status.Accused)
	return nil
}

// combine validates the inbound shares once more and combines them into
// this guardian's secret key share, stored locally.
func (n *node) combine(ctx context.Context) error {
	params, err := n.loadParameters()
	if err != nil {
		return err
	}
	_, paramHash, err := params.Hash()
	if err != nil {
		return err
	}
	sk, err := n.loadSecretKey()
	if err != nil {
		return err
	}
	keys, err := n.peerPublicKeys(ctx)
	if err != nil {
		return err
	}
	shares, err := n.inboundShares(ctx, sk.GuardianIndex)
	if err != nil {
		return err
	}

	validated, status, err := guardian.ValidatePeers(params, paramHash, keys, shares, sk)
	if err != nil {
		return err
	}
	if status.Kind != guardian.StatusVerificationSuccessful {
		return fmt.Errorf("ceremony validation failed (%s), accused guardians: %v", status.Kind, status.Accused)
	}
	keyShare, err := guardian.ComputeSecretKeyShare(params, keys, validated, sk)
	if err != nil {
		var missing *guardian.MissingSharesError
		if errors.As(err, &missing) {
			return fmt.Errorf("dealers %v have not published shares yet: %w", missing.Dealers, err)
		}
		return err
	}

	data, err := json.Marshal(keyShare)
	if err != nil {
		return err
	}
	ks, err := n.keystore()
	if err != nil {
		return err
	}
	if err := ks.Put(keyShareEntry, data); err != nil {
		return err
	}
	log.Infow("secret key share combined", "guardian", sk.GuardianIndex, "dealers", len(keys))
	return nil
}
