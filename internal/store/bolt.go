// Package store is the encrypted local store: a single BoltDB file holding
// pending reports, API keys, and the access log, with every value sealed
// under a key drawn from the OS secret vault before it ever touches disk.
package store

import (
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/airadcr/airadcr-desktop/internal/crypto"
)

var (
	bucketPendingReports = []byte("pending_reports")
	bucketAPIKeys        = []byte("api_keys")
	bucketAccessLogs     = []byte("access_logs")
	bucketSettings       = []byte("settings")

	bucketIdxPatient   = []byte("idx_patient")
	bucketIdxAccession = []byte("idx_accession")
	bucketIdxExam      = []byte("idx_exam")
)

var allBuckets = [][]byte{
	bucketPendingReports, bucketAPIKeys, bucketAccessLogs, bucketSettings,
	bucketIdxPatient, bucketIdxAccession, bucketIdxExam,
}

// Store wraps a BoltDB database holding at-rest-encrypted rows. mu
// serializes every transaction the way a single shared handle requires;
// bbolt permits one writer at a time internally, but the gate also covers
// reads so a panic inside one operation can never leave a half-held lock
// for the next.
type Store struct {
	mu  sync.Mutex
	db  *bolt.DB
	key []byte
}

// update runs fn inside a write transaction, serialized behind mu. A panic
// inside fn is recovered so the gate is never left poisoned; the panic
// value is returned as an error and the next operation proceeds normally.
func (s *Store) update(fn func(*bolt.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store: recovered panic in update: %v", r)
		}
	}()
	return s.db.Update(fn)
}

// view runs fn inside a read-only transaction, serialized behind mu for
// the same poisoned-gate protection as update.
func (s *Store) view(fn func(*bolt.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store: recovered panic in view: %v", r)
		}
	}()
	return s.db.View(fn)
}

// Open creates or opens the encrypted store at path, sealing every value
// written under key. Callers obtain key from secrets.Vault.DBKey() and
// pass the same key on every subsequent Open.
func Open(path string, key []byte) (*Store, error) {
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("open store: key must be %d bytes, got %d", crypto.KeySize, len(key))
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db, key: key}, nil
}

// Close closes the underlying BoltDB.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path backing this store.
func (s *Store) Path() string {
	return s.db.Path()
}

// Check runs BoltDB's internal consistency check, used by the backup
// subsystem to validate a copy before retaining it.
func (s *Store) Check() error {
	return s.view(func(tx *bolt.Tx) error {
		errc := tx.Check()
		for err := range errc {
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SizeBytes returns an estimate of the live file size via page count ×
// page size, used for the size-introspection operation.
func (s *Store) SizeBytes() (int64, error) {
	var size int64
	err := s.view(func(tx *bolt.Tx) error {
		size = int64(tx.Size())
		return nil
	})
	return size, err
}

func (s *Store) seal(plaintext []byte) ([]byte, error) {
	return crypto.Seal(s.key, plaintext)
}

func (s *Store) open(sealed []byte) ([]byte, error) {
	return crypto.Open(s.key, sealed)
}

// SaveSetting stores a setting key-value pair.
func (s *Store) SaveSetting(key, value string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSettings)
		sealed, err := s.seal([]byte(value))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), sealed)
	})
}

// LoadSetting loads a setting by key. Returns empty string if absent.
func (s *Store) LoadSetting(key string) (string, error) {
	var val string
	err := s.view(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSettings)
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		plain, err := s.open(v)
		if err != nil {
			return err
		}
		val = string(plain)
		return nil
	})
	return val, err
}
