package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/google/uuid"

	"github.com/airadcr/airadcr-desktop/internal/auth"
)

// APIKey is a credential accepted on the ingestion server's x-api-key
// header. The raw key is never persisted — only its prefix and hash.
type APIKey struct {
	ID        string    `json:"id"`
	KeyPrefix string    `json:"key_prefix"`
	KeyHash   string    `json:"key_hash"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func apiKeyStoreKey(id string) []byte { return []byte("key::" + id) }

// CreateAPIKey mints a new key, persists (prefix, hash), and returns the
// plaintext exactly once alongside the stored record.
func (s *Store) CreateAPIKey(name string) (plaintext string, rec APIKey, err error) {
	plaintext, prefix, hash, err := auth.GenerateAPIKey()
	if err != nil {
		return "", APIKey{}, err
	}
	rec = APIKey{
		ID:        uuid.NewString(),
		KeyPrefix: prefix,
		KeyHash:   hash,
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.putAPIKey(rec); err != nil {
		return "", APIKey{}, err
	}
	return plaintext, rec, nil
}

// SeedAPIKey persists a pre-generated key record, used for the first-run
// seed whose raw value may come from an operator-supplied environment
// variable rather than GenerateAPIKey.
func (s *Store) SeedAPIKey(rec APIKey) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return s.putAPIKey(rec)
}

func (s *Store) putAPIKey(rec APIKey) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal api key: %w", err)
	}
	sealed, err := s.seal(data)
	if err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAPIKeys).Put(apiKeyStoreKey(rec.ID), sealed)
	})
}

// ValidateAPIKey compares the (prefix, SHA-256(raw)) tuple against every
// active stored key, constant-time on the hash comparison. Returns the
// matching record, or ErrNotFound if no active key matches.
func (s *Store) ValidateAPIKey(raw string) (APIKey, error) {
	prefix := auth.Prefix(raw)
	if prefix == "" {
		return APIKey{}, ErrNotFound
	}
	hash := auth.HashKey(raw)

	var match APIKey
	found := false
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAPIKeys).ForEach(func(_, v []byte) error {
			plain, err := s.open(v)
			if err != nil {
				return nil
			}
			var rec APIKey
			if json.Unmarshal(plain, &rec) != nil {
				return nil
			}
			if !rec.IsActive || rec.KeyPrefix != prefix {
				return nil
			}
			if auth.ConstantTimeEqual(rec.KeyHash, hash) {
				match = rec
				found = true
			}
			return nil
		})
	})
	if err != nil {
		return APIKey{}, err
	}
	if !found {
		return APIKey{}, ErrNotFound
	}
	return match, nil
}

// ListAPIKeys returns every stored key record (never the raw key).
func (s *Store) ListAPIKeys() ([]APIKey, error) {
	var keys []APIKey
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAPIKeys).ForEach(func(_, v []byte) error {
			plain, err := s.open(v)
			if err != nil {
				return nil
			}
			var rec APIKey
			if json.Unmarshal(plain, &rec) != nil {
				return nil
			}
			keys = append(keys, rec)
			return nil
		})
	})
	return keys, err
}

// RevokeAPIKeyByPrefix soft-flips is_active to false for the key whose
// prefix matches, as surfaced on the DELETE /api-keys/{prefix} route.
func (s *Store) RevokeAPIKeyByPrefix(prefix string) error {
	keys, err := s.ListAPIKeys()
	if err != nil {
		return err
	}
	for _, rec := range keys {
		if rec.KeyPrefix == prefix {
			return s.RevokeAPIKey(rec.ID)
		}
	}
	return ErrNotFound
}

// RevokeAPIKey soft-flips is_active to false.
func (s *Store) RevokeAPIKey(id string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAPIKeys)
		sealed := b.Get(apiKeyStoreKey(id))
		if sealed == nil {
			return ErrNotFound
		}
		plain, err := s.open(sealed)
		if err != nil {
			return err
		}
		var rec APIKey
		if err := json.Unmarshal(plain, &rec); err != nil {
			return err
		}
		rec.IsActive = false

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		newSealed, err := s.seal(data)
		if err != nil {
			return err
		}
		return b.Put(apiKeyStoreKey(id), newSealed)
	})
}
