package store

import (
	"errors"
	"testing"
)

func TestCreateAndValidateAPIKey(t *testing.T) {
	s := testStore(t)
	plaintext, rec, err := s.CreateAPIKey("dictation-station-1")
	if err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	if rec.KeyPrefix == "" || rec.KeyHash == "" {
		t.Fatal("expected prefix and hash to be populated")
	}

	got, err := s.ValidateAPIKey(plaintext)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("got key id %q, want %q", got.ID, rec.ID)
	}
}

func TestValidateAPIKeyRejectsWrongKey(t *testing.T) {
	s := testStore(t)
	if _, _, err := s.CreateAPIKey("station-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ValidateAPIKey("ard_totally-wrong-value-here"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeAPIKeyRejectsFutureValidation(t *testing.T) {
	s := testStore(t)
	plaintext, rec, err := s.CreateAPIKey("station-2")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RevokeAPIKey(rec.ID); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}
	if _, err := s.ValidateAPIKey(plaintext); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected revoked key to fail validation, got %v", err)
	}
}

func TestListAPIKeysNeverExposesRawKey(t *testing.T) {
	s := testStore(t)
	if _, _, err := s.CreateAPIKey("station-3"); err != nil {
		t.Fatal(err)
	}
	keys, err := s.ListAPIKeys()
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
	if keys[0].Name != "station-3" {
		t.Errorf("name = %q", keys[0].Name)
	}
}

func TestSeedAPIKeyFromOperatorSuppliedValue(t *testing.T) {
	s := testStore(t)
	rec := APIKey{
		KeyPrefix: "ard_seed",
		KeyHash:   "0123456789abcdef",
		Name:      "seed-key",
		IsActive:  true,
	}
	if err := s.SeedAPIKey(rec); err != nil {
		t.Fatalf("SeedAPIKey: %v", err)
	}
	keys, err := s.ListAPIKeys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0].Name != "seed-key" {
		t.Fatalf("unexpected keys: %+v", keys)
	}
}
