package maintenance

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/airadcr/airadcr-desktop/internal/crypto"
	"github.com/airadcr/airadcr-desktop/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	key, err := crypto.NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRunCleanupSweepsExpiredReportsAndLogs(t *testing.T) {
	st := testStore(t)
	s := New(st, t.TempDir(), 14*24*time.Hour, "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	now := time.Now().UTC()
	if err := st.UpsertReport(store.PendingReport{TechnicalID: "old1", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)}); err != nil {
		t.Fatalf("UpsertReport: %v", err)
	}
	if err := st.AppendAccessLog(store.AccessLog{Path: "/x", Timestamp: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("AppendAccessLog: %v", err)
	}

	s.runCleanup(0) // a zero retention sweeps every access log entry

	if n, err := st.SweepExpiredReports(); err != nil || n != 0 {
		t.Errorf("expired reports left after cleanup: n=%d err=%v", n, err)
	}
	if logs, err := st.ListAccessLogs(10, 0); err != nil || len(logs) != 0 {
		t.Errorf("access logs left after cleanup: %d (err=%v)", len(logs), err)
	}
	if _, err := st.SizeBytes(); err != nil {
		t.Errorf("SizeBytes after cleanup: %v", err)
	}
}

func TestRunBackupWritesAndPrunesFile(t *testing.T) {
	st := testStore(t)
	dir := t.TempDir()
	s := New(st, dir, 14*24*time.Hour, "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	stale := filepath.Join(dir, "store-stale.db")
	if err := os.WriteFile(stale, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-30 * 24 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	s.runBackup()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("expected backup older than retention to be pruned, stat err = %v", err)
	}

	latest, err := store.LatestBackup(dir)
	if err != nil {
		t.Fatalf("LatestBackup: %v", err)
	}
	if latest == "" {
		t.Error("expected a backup file to exist after runBackup")
	}
}

func TestRunTextfileWritesSnapshot(t *testing.T) {
	st := testStore(t)
	path := filepath.Join(t.TempDir(), "metrics.prom")
	s := New(st, t.TempDir(), 14*24*time.Hour, path, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s.runTextfile()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected metrics textfile to exist: %v", err)
	}
}
