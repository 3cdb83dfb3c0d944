package board

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/voteguard/voteguard-node/db"
	"github.com/voteguard/voteguard-node/db/prefixeddb"
	"github.com/voteguard/voteguard-node/guardian"
	"github.com/voteguard/voteguard-node/log"
)

// Key-value namespaces inside the board database.
var (
	configKey          = []byte("cfg")
	tallyKey           = []byte("t")
	resultKey          = []byte("r")
	publicKeyPrefix    = []byte("gk/")
	sharesPrefix       = []byte("gs/")
	statusPrefix       = []byte("gst/")
	excludedPrefix     = []byte("gx/")
	decryptSharePrefix = []byte("ds/")
	proofCommitPrefix  = []byte("dc/")
	proofRespPrefix    = []byte("dr/")
)

const cacheSize = 256

// Store implements Board over a key-value database. It serves both as a
// local mirror of a remote ledger and as the system of record in tests
// and single-node deployments. Every artifact slot except status and the
// excluded flag is write-once, matching append-only ledger semantics.
type Store struct {
	db    db.Database
	cache *lru.Cache[string, any]
}

var _ Board = (*Store)(nil)

// NewStore creates a board store on top of database, under its own key
// namespace.
func NewStore(database db.Database) *Store {
	cache, err := lru.New[string, any](cacheSize)
	if err != nil {
		log.Fatalf("create board cache: %v", err)
	}
	return &Store{
		db:    prefixeddb.NewPrefixedDatabase(database, []byte("bb_")),
		cache: cache,
	}
}

func guardianKey(prefix []byte, index uint32) []byte {
	key := make([]byte, len(prefix), len(prefix)+4)
	copy(key, prefix)
	return binary.BigEndian.AppendUint32(key, index)
}

// putOnce writes key unless it already holds a value.
func (s *Store) putOnce(key, data []byte) error {
	tx := s.db.WriteTx()
	defer tx.Discard()
	if _, err := tx.Get(key); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyPublished, key)
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	if err := tx.Set(key, data); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) put(key, data []byte) error {
	tx := s.db.WriteTx()
	defer tx.Discard()
	if err := tx.Set(key, data); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) get(key []byte) ([]byte, error) {
	data, err := s.db.Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

func (s *Store) Config(_ context.Context) (*Config, error) {
	if cached, ok := s.cache.Get(string(configKey)); ok {
		return cached.(*Config), nil
	}
	data, err := s.get(configKey)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := DecodeArtifact(data, cfg); err != nil {
		return nil, err
	}
	s.cache.Add(string(configKey), cfg)
	return cfg, nil
}

func (s *Store) SetConfig(_ context.Context, cfg *Config) error {
	data, err := EncodeArtifact(cfg)
	if err != nil {
		return err
	}
	if err := s.putOnce(configKey, data); err != nil {
		return err
	}
	s.cache.Remove(string(configKey))
	log.Infow("election configuration pinned", "guardians", len(cfg.Guardians))
	return nil
}

func (s *Store) Guardian(_ context.Context, index uint32) (*GuardianRecord, error) {
	rec := &GuardianRecord{Index: index}
	found := false
	for _, slot := range []struct {
		prefix []byte
		out    *[]byte
	}{
		{publicKeyPrefix, &rec.PublicKey},
		{sharesPrefix, &rec.EncryptedShares},
		{decryptSharePrefix, &rec.DecryptionShare},
		{proofCommitPrefix, &rec.ProofCommits},
		{proofRespPrefix, &rec.ProofResponses},
	} {
		data, err := s.db.Get(guardianKey(slot.prefix, index))
		if errors.Is(err, db.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		*slot.out = data
		found = true
	}
	if data, err := s.db.Get(guardianKey(statusPrefix, index)); err == nil {
		status := &guardian.Status{}
		if err := DecodeArtifact(data, status); err != nil {
			return nil, err
		}
		rec.Status = status
		found = true
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, err
	}
	if data, err := s.db.Get(guardianKey(excludedPrefix, index)); err == nil {
		rec.Excluded = bytes.Equal(data, []byte{1})
		found = true
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: guardian %d", ErrNotFound, index)
	}
	return rec, nil
}

func (s *Store) Guardians(ctx context.Context) ([]*GuardianRecord, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*GuardianRecord, 0, len(cfg.Guardians))
	for i := range cfg.Guardians {
		index := uint32(i + 1)
		rec, err := s.Guardian(ctx, index)
		if errors.Is(err, ErrNotFound) {
			rec = &GuardianRecord{Index: index}
		} else if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) EncryptedTally(_ context.Context) ([]byte, error) {
	return s.get(tallyKey)
}

func (s *Store) Result(_ context.Context) (*Result, error) {
	if cached, ok := s.cache.Get(string(resultKey)); ok {
		return cached.(*Result), nil
	}
	data, err := s.get(resultKey)
	if err != nil {
		return nil, err
	}
	result := &Result{}
	if err := DecodeArtifact(data, result); err != nil {
		return nil, err
	}
	s.cache.Add(string(resultKey), result)
	return result, nil
}

func (s *Store) PublishPublicKey(_ context.Context, index uint32, data []byte) error {
	return s.putOnce(guardianKey(publicKeyPrefix, index), data)
}

func (s *Store) PublishEncryptedShares(_ context.Context, index uint32, data []byte) error {
	return s.putOnce(guardianKey(sharesPrefix, index), data)
}

// PublishStatus overwrites: a guardian may re-validate after the guardian
// set changes.
func (s *Store) PublishStatus(_ context.Context, index uint32, status *guardian.Status) error {
	data, err := EncodeArtifact(status)
	if err != nil {
		return err
	}
	return s.put(guardianKey(statusPrefix, index), data)
}

func (s *Store) SetExcluded(_ context.Context, index uint32, excluded bool) error {
	flag := []byte{0}
	if excluded {
		flag = []byte{1}
		log.Warnw("guardian excluded from ceremony", "guardian", index)
	}
	return s.put(guardianKey(excludedPrefix, index), flag)
}

func (s *Store) PublishEncryptedTally(_ context.Context, data []byte) error {
	return s.putOnce(tallyKey, data)
}

func (s *Store) PublishDecryptionShare(_ context.Context, index uint32, data []byte) error {
	return s.putOnce(guardianKey(decryptSharePrefix, index), data)
}

func (s *Store) PublishProofCommits(_ context.Context, index uint32, data []byte) error {
	return s.putOnce(guardianKey(proofCommitPrefix, index), data)
}

func (s *Store) PublishProofResponses(_ context.Context, index uint32, data []byte) error {
	return s.putOnce(guardianKey(proofRespPrefix, index), data)
}

func (s *Store) PublishResult(_ context.Context, result *Result) error {
	data, err := EncodeArtifact(result)
	if err != nil {
		return err
	}
	if err := s.putOnce(resultKey, data); err != nil {
		return err
	}
	log.Infow("election result published", "contests", len(result.Contests), "ballots", result.Ballots)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
