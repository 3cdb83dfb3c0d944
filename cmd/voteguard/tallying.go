package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/voteguard/voteguard-node/ballot"
	"github.com/voteguard/voteguard-node/board"
	"github.com/voteguard/voteguard-node/decryption"
	"github.com/voteguard/voteguard-node/guardian"
	"github.com/voteguard/voteguard-node/log"
	"github.com/voteguard/voteguard-node/prevoting"
	"github.com/voteguard/voteguard-node/tally"
)

const proofSecretsEntry = "decryption-proof-secrets"

// preVotingData assembles the pre-voting context from the published
// guardian keys, honoring exclusions.
func (n *node) preVotingData(ctx context.Context) (*prevoting.PreVotingData, error) {
	params, err := n.loadParameters()
	if err != nil {
		return nil, err
	}
	manifest, err := n.loadManifest()
	if err != nil {
		return nil, err
	}
	records, err := n.board.Guardians(ctx)
	if err != nil {
		return nil, err
	}
	var keys []*guardian.PublicKey
	var excluded []uint32
	for _, rec := range records {
		if rec.Excluded {
			excluded = append(excluded, rec.Index)
			continue
		}
		if rec.PublicKey == nil {
			continue
		}
		pk := &guardian.PublicKey{}
		if err := board.DecodeArtifact(rec.PublicKey, pk); err != nil {
			return nil, fmt.Errorf("guardian %d public key: %w", rec.Index, err)
		}
		keys = append(keys, pk)
	}
	return prevoting.Compute(params, manifest, keys, excluded)
}

// tally reads the accepted ballots from the datadir ballots directory,
// verifies each against the pre-voting data, accumulates them and
// publishes the encrypted tally. Which ballots land in the directory is
// the board indexer's responsibility (last submission per voter wins).
func (n *node) tally(ctx context.Context) error {
	pvd, err := n.preVotingData(ctx)
	if err != nil {
		return err
	}
	dir := filepath.Join(n.cfg.Datadir, "ballots")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read ballots directory: %w", err)
	}

	builder := tally.NewBuilder(pvd)
	accepted, rejected := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cbor") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		b := &ballot.Encrypted{}
		if err := board.DecodeArtifact(data, b); err != nil {
			return fmt.Errorf("ballot %s: %w", entry.Name(), err)
		}
		if !b.Verify(pvd) {
			log.Warnw("rejecting ballot with invalid proofs", "file", entry.Name())
			rejected++
			continue
		}
		if err := builder.Update(b); err != nil {
			return fmt.Errorf("ballot %s: %w", entry.Name(), err)
		}
		accepted++
	}
	if accepted == 0 {
		return fmt.Errorf("no valid ballots in %s", dir)
	}

	encTally := builder.Finalize()
	data, err := board.EncodeArtifact(encTally)
	if err != nil {
		return err
	}
	if err := n.approve(ctx, fmt.Sprintf("publish encrypted tally of %d ballots", accepted)); err != nil {
		return err
	}
	if err := n.board.PublishEncryptedTally(ctx, data); err != nil {
		return err
	}
	log.Infow("encrypted tally published", "accepted", accepted, "rejected", rejected)
	return nil
}

// loadKeyShare reads this guardian's combined secret key share.
func (n *node) loadKeyShare() (*guardian.SecretKeyShare, error) {
	ks, err := n.keystore()
	if err != nil {
		return nil, err
	}
	data, err := ks.Get(keyShareEntry)
	if err != nil {
		return nil, fmt.Errorf("load key share (run combine first?): %w", err)
	}
	share := &guardian.SecretKeyShare{}
	if err := json.Unmarshal(data, share); err != nil {
		return nil, err
	}
	return share, nil
}

// encryptedTally reads and decodes the published tally.
func (n *node) encryptedTally(ctx context.Context) (*tally.Encrypted, error) {
	data, err := n.board.EncryptedTally(ctx)
	if err != nil {
		return nil, err
	}
	t := &tally.Encrypted{}
	if err := board.DecodeArtifact(data, t); err != nil {
		return nil, fmt.Errorf("encrypted tally: %w", err)
	}
	return t, nil
}

// decryptShare computes this guardian's decryption shares and proof
// commitments for the whole tally and publishes both. The proof nonces
// are stored in one atomic keystore write before anything is published,
// so an abort cannot strand a half-committed guardian.
func (n *node) decryptShare(ctx context.Context) error {
	pvd, err := n.preVotingData(ctx)
	if err != nil {
		return err
	}
	keyShare, err := n.loadKeyShare()
	if err != nil {
		return err
	}
	t, err := n.encryptedTally(ctx)
	if err != nil {
		return err
	}

	shares, err := decryption.ComputeTallyShares(pvd, keyShare, t)
	if err != nil {
		return err
	}
	commits, secrets, err := decryption.GenerateTallyProofCommits(rand.Reader, pvd, keyShare, t)
	if err != nil {
		return err
	}

	secretsJSON, err := json.Marshal(secrets)
	if err != nil {
		return err
	}
	ks, err := n.keystore()
	if err != nil {
		return err
	}
	if err := ks.Put(proofSecretsEntry, secretsJSON); err != nil {
		return err
	}

	sharesData, err := board.EncodeArtifact(shares)
	if err != nil {
		return err
	}
	commitsData, err := board.EncodeArtifact(commits)
	if err != nil {
		return err
	}
	if err := n.approve(ctx, "publish decryption shares and proof commitments"); err != nil {
		return err
	}
	if err := n.board.PublishDecryptionShare(ctx, keyShare.GuardianIndex, sharesData); err != nil {
		return err
	}
	if err := n.board.PublishProofCommits(ctx, keyShare.GuardianIndex, commitsData); err != nil {
		return err
	}
	log.Infow("decryption shares published", "guardian", keyShare.GuardianIndex)
	return nil
}

// decryptionArtifacts collects the published share and commit sets of
// every participating guardian.
func (n *node) decryptionArtifacts(ctx context.Context) ([]*decryption.TallyShares, []*decryption.TallyProofCommits, []*decryption.TallyProofResponses, error) {
	records, err := n.board.Guardians(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	var shareSets []*decryption.TallyShares
	var commitSets []*decryption.TallyProofCommits
	var responseSets []*decryption.TallyProofResponses
	for _, rec := range records {
		if rec.Excluded || rec.DecryptionShare == nil {
			continue
		}
		shares := &decryption.TallyShares{}
		if err := board.DecodeArtifact(rec.DecryptionShare, shares); err != nil {
			return nil, nil, nil, fmt.Errorf("guardian %d decryption share: %w", rec.Index, err)
		}
		// Artifacts bind to the board slot they were published under; a
		// guardian cannot speak for another guardian's index.
		if shares.GuardianIndex != rec.Index {
			return nil, nil, nil, fmt.Errorf("guardian %d decryption share claims index %d", rec.Index, shares.GuardianIndex)
		}
		shareSets = append(shareSets, shares)
		if rec.ProofCommits != nil {
			commits := &decryption.TallyProofCommits{}
			if err := board.DecodeArtifact(rec.ProofCommits, commits); err != nil {
				return nil, nil, nil, fmt.Errorf("guardian %d proof commits: %w", rec.Index, err)
			}
			if commits.GuardianIndex != rec.Index {
				return nil, nil, nil, fmt.Errorf("guardian %d proof commits claim index %d", rec.Index, commits.GuardianIndex)
			}
			commitSets = append(commitSets, commits)
		}
		if rec.ProofResponses != nil {
			responses := &decryption.TallyProofResponses{}
			if err := board.DecodeArtifact(rec.ProofResponses, responses); err != nil {
				return nil, nil, nil, fmt.Errorf("guardian %d proof responses: %w", rec.Index, err)
			}
			if responses.GuardianIndex != rec.Index {
				return nil, nil, nil, fmt.Errorf("guardian %d proof responses claim index %d", rec.Index, responses.GuardianIndex)
			}
			responseSets = append(responseSets, responses)
		}
	}
	sort.Slice(shareSets, func(i, j int) bool { return shareSets[i].GuardianIndex < shareSets[j].GuardianIndex })
	sort.Slice(commitSets, func(i, j int) bool { return commitSets[i].GuardianIndex < commitSets[j].GuardianIndex })
	sort.Slice(responseSets, func(i, j int) bool { return responseSets[i].GuardianIndex < responseSets[j].GuardianIndex })
	return shareSets, commitSets, responseSets, nil
}

// decryptRespond computes this guardian's proof responses against the
// joint challenge, once every participant's shares and commitments are on
// the board.
func (n *node) decryptRespond(ctx context.Context) error {
	pvd, err := n.preVotingData(ctx)
	if err != nil {
		return err
	}
	keyShare, err := n.loadKeyShare()
	if err != nil {
		return err
	}
	t, err := n.encryptedTally(ctx)
	if err != nil {
		return err
	}
	shareSets, commitSets, _, err := n.decryptionArtifacts(ctx)
	if err != nil {
		return err
	}

	ks, err := n.keystore()
	if err != nil {
		return err
	}
	secretsJSON, err := ks.Get(proofSecretsEntry)
	if err != nil {
		return fmt.Errorf("load proof secrets (run decrypt-share first?): %w", err)
	}
	secrets := &decryption.TallyProofSecrets{}
	if err := json.Unmarshal(secretsJSON, secrets); err != nil {
		return err
	}

	responses := &decryption.TallyProofResponses{
		GuardianIndex: keyShare.GuardianIndex,
		Contests:      make(map[uint32][]*decryption.ProofResponse, len(t.Contests)),
	}
	for contestIndex, cts := range t.Contests {
		rs := make([]*decryption.ProofResponse, len(cts))
		for i, ct := range cts {
			if ct == nil {
				continue
			}
			var shares []*decryption.Share
			for _, set := range shareSets {
				if ss := set.Contests[contestIndex]; i < len(ss) {
					shares = append(shares, ss[i])
				}
			}
			var commits []*decryption.ProofCommit
			for _, set := range commitSets {
				if cs := set.Contests[contestIndex]; i < len(cs) {
					commits = append(commits, cs[i])
				}
			}
			combined, err := decryption.CombineShares(pvd, shares)
			if err != nil {
				return fmt.Errorf("contest %d option %d: %w", contestIndex, i+1, err)
			}
			ss := secrets.Contests[contestIndex]
			if i >= len(ss) || ss[i] == nil {
				return fmt.Errorf("contest %d option %d: no stored proof secret", contestIndex, i+1)
			}
			resp, err := decryption.GenerateProofResponse(pvd, keyShare, ss[i], ct, combined, commits)
			if err != nil {
				return fmt.Errorf("contest %d option %d: %w", contestIndex, i+1, err)
			}
			rs[i] = resp
		}
		responses.Contests[contestIndex] = rs
	}

	data, err := board.EncodeArtifact(responses)
	if err != nil {
		return err
	}
	if err := n.approve(ctx, "publish decryption proof responses"); err != nil {
		return err
	}
	if err := n.board.PublishProofResponses(ctx, keyShare.GuardianIndex, data); err != nil {
		return err
	}
	log.Infow("proof responses published", "guardian", keyShare.GuardianIndex)
	return nil
}

// finalize combines the published decryption artifacts into the verified
// plaintext result and publishes it.
func (n *node) finalize(ctx context.Context) error {
	pvd, err := n.preVotingData(ctx)
	if err != nil {
		return err
	}
	t, err := n.encryptedTally(ctx)
	if err != nil {
		return err
	}
	shareSets, commitSets, responseSets, err := n.decryptionArtifacts(ctx)
	if err != nil {
		return err
	}

	d, err := decryption.Compute(pvd, t, shareSets, commitSets, responseSets)
	if err != nil {
		return err
	}
	result := &board.Result{
		Contests: make(map[uint32][]uint64, len(d.Contests)),
		Ballots:  d.Ballots,
	}
	for contestIndex, options := range d.Contests {
		counts := make([]uint64, len(options))
		for i, opt := range options {
			counts[i] = opt.Votes
		}
		result.Contests[contestIndex] = counts
	}

	if err := n.approve(ctx, "publish plaintext election result"); err != nil {
		return err
	}
	if err := n.board.PublishResult(ctx, result); err != nil {
		return err
	}
	log.Infow("result published", "contests", len(result.Contests), "ballots", result.Ballots)
	return nil
}

// verify independently recomputes the decryption from public artifacts
// and checks it against the published result.
func (n *node) verify(ctx context.Context) error {
	pvd, err := n.preVotingData(ctx)
	if err != nil {
		return err
	}
	t, err := n.encryptedTally(ctx)
	if err != nil {
		return err
	}
	shareSets, commitSets, responseSets, err := n.decryptionArtifacts(ctx)
	if err != nil {
		return err
	}
	d, err := decryption.Compute(pvd, t, shareSets, commitSets, responseSets)
	if err != nil {
		return fmt.Errorf("decryption artifacts do not verify: %w", err)
	}
	if !d.Verify(pvd, t) {
		return fmt.Errorf("recomputed decryption fails proof verification")
	}

	published, err := n.board.Result(ctx)
	if err != nil {
		return err
	}
	if len(published.Contests) != len(d.Contests) {
		return fmt.Errorf("published result has %d contests, decryption %d", len(published.Contests), len(d.Contests))
	}
	for contestIndex, counts := range published.Contests {
		options := d.Contests[contestIndex]
		if len(options) != len(counts) {
			return fmt.Errorf("contest %d: published %d options, decryption %d", contestIndex, len(counts), len(options))
		}
		for i, count := range counts {
			if options[i].Votes != count {
				return fmt.Errorf("contest %d option %d: published %d votes, decryption %d",
					contestIndex, i+1, count, options[i].Votes)
			}
		}
	}
	log.Infow("election verified", "contests", len(d.Contests), "ballots", d.Ballots)
	return nil
}
