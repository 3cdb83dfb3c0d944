// Package keystore is the guardian's local encrypted secret store. It
// persists the secret material the ceremony and decryption flows need
// between process restarts: the guardian secret key, the combined secret
// key share, and the per-ciphertext proof nonces between the commit and
// response steps of decryption.
//
// Blobs are sealed with ChaCha20-Poly1305 under an argon2id-derived key.
// Opening with the wrong password is reported as ErrWrongPassword;
// tampered or truncated data as ErrCorrupted. Multi-entry batches are
// written in a single transaction, so an abort between decryption steps
// never leaves a partial set of proof nonces behind.
package keystore

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/voteguard/voteguard-node/db"
	"github.com/voteguard/voteguard-node/db/prefixeddb"
)

var (
	// ErrWrongPassword means the password does not match the one the
	// store was created with.
	ErrWrongPassword = errors.New("keystore: wrong password")
	// ErrCorrupted means the stored data fails authentication under the
	// correct key, or is structurally broken.
	ErrCorrupted = errors.New("keystore: data corrupted")
	// ErrNotFound means no entry exists under the requested name.
	ErrNotFound = errors.New("keystore: entry not found")
)

// argon2id parameters. Moderate cost: the store guards an interactive
// guardian login, not a password database.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	saltSize   = 16
)

var (
	saltKey  = []byte("salt")
	checkKey = []byte("check")
)

// checkPlaintext is a fixed known value sealed at store creation. Failing
// to open it under a candidate key distinguishes a wrong password from
// corruption of an individual entry.
var checkPlaintext = []byte("voteguard-keystore-v1")

// Store is an open keystore bound to one password-derived key.
type Store struct {
	db  db.Database
	key []byte
}

// Open unlocks (or initializes) a keystore inside database under the
// given password. A fresh store generates its salt and seals a key-check
// value; reopening verifies the password against it.
func Open(database db.Database, password []byte) (*Store, error) {
	kdb := prefixeddb.NewPrefixedDatabase(database, []byte("ks_"))

	salt, err := kdb.Get(saltKey)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return initialize(kdb, password)
	case err != nil:
		return nil, err
	}
	if len(salt) != saltSize {
		return nil, fmt.Errorf("%w: bad salt length %d", ErrCorrupted, len(salt))
	}
	key := deriveKey(password, salt)
	sealed, err := kdb.Get(checkKey)
	if err != nil {
		return nil, fmt.Errorf("%w: missing key check", ErrCorrupted)
	}
	if structurallyBroken(sealed) {
		return nil, fmt.Errorf("%w: key check too short", ErrCorrupted)
	}
	// The check value authenticates the key itself, so a failure to open
	// a well-formed blob means the password is wrong, not corruption.
	plain, err := open(key, checkKey, sealed)
	if err != nil {
		return nil, ErrWrongPassword
	}
	if string(plain) != string(checkPlaintext) {
		return nil, ErrWrongPassword
	}
	return &Store{db: kdb, key: key}, nil
}

func initialize(kdb db.Database, password []byte) (*Store, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("keystore: salt: %w", err)
	}
	key := deriveKey(password, salt)
	sealed, err := seal(key, checkKey, checkPlaintext)
	if err != nil {
		return nil, err
	}
	tx := kdb.WriteTx()
	defer tx.Discard()
	if err := tx.Set(saltKey, salt); err != nil {
		return nil, err
	}
	if err := tx.Set(checkKey, sealed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Store{db: kdb, key: key}, nil
}

func deriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)
}

// seal encrypts plaintext, binding it to its entry name so blobs cannot
// be swapped between entries.
func seal(key, name, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("keystore: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, name), nil
}

func open(key, name, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if structurallyBroken(sealed) {
		return nil, fmt.Errorf("%w: sealed blob too short", ErrCorrupted)
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, name)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrCorrupted)
	}
	return plain, nil
}

func structurallyBroken(sealed []byte) bool {
	return len(sealed) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead
}

func entryKey(name string) []byte {
	key := make([]byte, 0, 2+len(name))
	key = append(key, []byte("e/")...)
	return append(key, name...)
}

// Put seals and stores one named blob.
func (s *Store) Put(name string, plaintext []byte) error {
	return s.PutBatch(map[string][]byte{name: plaintext})
}

// PutBatch seals and stores several named blobs in one transaction.
// Either all entries land or none do, so an interrupted multi-step flow
// never observes a partial batch.
func (s *Store) PutBatch(entries map[string][]byte) error {
	tx := s.db.WriteTx()
	defer tx.Discard()
	for name, plaintext := range entries {
		sealed, err := seal(s.key, []byte(name), plaintext)
		if err != nil {
			return err
		}
		if err := tx.Set(entryKey(name), sealed); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get opens one named blob.
func (s *Store) Get(name string) ([]byte, error) {
	sealed, err := s.db.Get(entryKey(name))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	plain, err := open(s.key, []byte(name), sealed)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", name, err)
	}
	return plain, nil
}

// Delete removes one named blob. Deleting a missing entry is not an
// error.
func (s *Store) Delete(name string) error {
	tx := s.db.WriteTx()
	defer tx.Discard()
	if err := tx.Delete(entryKey(name)); err != nil {
		return err
	}
	return tx.Commit()
}

// Names returns the stored entry names in sorted order.
func (s *Store) Names() ([]string, error) {
	var names []string
	err := s.db.Iterate([]byte("e/"), func(k, _ []byte) bool {
		names = append(names, string(k[2:]))
		return true
	})
	return names, err
}
