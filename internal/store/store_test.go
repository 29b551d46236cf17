package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/airadcr/airadcr-desktop/internal/crypto"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := crypto.NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	return key
}

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testKey(t))
	if err != nil {
		t.Fatalf("Open(%q): %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRejectsWrongKeySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	if _, err := Open(path, []byte("too-short")); err == nil {
		t.Fatal("expected error opening with an undersized key")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := testStore(t)

	if err := s.SaveSetting("iframe_url", "https://app.airadcr.com/embed"); err != nil {
		t.Fatalf("SaveSetting: %v", err)
	}
	got, err := s.LoadSetting("iframe_url")
	if err != nil {
		t.Fatalf("LoadSetting: %v", err)
	}
	if got != "https://app.airadcr.com/embed" {
		t.Errorf("got %q", got)
	}
}

func TestLoadSettingMissing(t *testing.T) {
	s := testStore(t)
	got, err := s.LoadSetting("nonexistent")
	if err != nil {
		t.Fatalf("LoadSetting: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestUpdateRecoversPanicAndLeavesGateUsable(t *testing.T) {
	s := testStore(t)

	err := s.update(func(tx *bolt.Tx) error {
		panic("simulated corruption mid-transaction")
	})
	if err == nil {
		t.Fatal("expected update to return an error after a recovered panic")
	}

	// The gate must still be usable for the next operation.
	if err := s.SaveSetting("after_panic", "still works"); err != nil {
		t.Fatalf("SaveSetting after recovered panic: %v", err)
	}
	got, err := s.LoadSetting("after_panic")
	if err != nil {
		t.Fatalf("LoadSetting after recovered panic: %v", err)
	}
	if got != "still works" {
		t.Errorf("got %q, want %q", got, "still works")
	}
}

func TestValuesAreEncryptedAtRest(t *testing.T) {
	s := testStore(t)
	secret := "do-not-leak-me-plaintext-marker"
	if err := s.SaveSetting("secret", secret); err != nil {
		t.Fatal(err)
	}
	path := s.Path()
	s.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read db file: %v", err)
	}
	if bytes.Contains(raw, []byte(secret)) {
		t.Fatal("plaintext setting value found unencrypted in db file")
	}
}
