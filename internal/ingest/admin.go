package ingest

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// devAdminKeyDefault is used only when neither AIRADCR_ADMIN_KEY nor
// ~/.airadcr/admin.key is present. A warning is always logged when it is
// reached.
const devAdminKeyDefault = "airadcr-dev-admin-key"

// adminKey holds the resolved admin-key hash as a one-shot value, written
// once at server construction and read-only thereafter.
type adminKey struct {
	hash [32]byte
}

func resolveAdminKey(log *slog.Logger) *adminKey {
	if v := os.Getenv("AIRADCR_ADMIN_KEY"); v != "" {
		return &adminKey{hash: sha256.Sum256([]byte(v))}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		path := filepath.Join(home, ".airadcr", "admin.key")
		if data, rerr := os.ReadFile(path); rerr == nil {
			key := strings.TrimSpace(string(data))
			if key != "" {
				return &adminKey{hash: sha256.Sum256([]byte(key))}
			}
		}
	}

	log.Warn("AIRADCR_ADMIN_KEY not set and ~/.airadcr/admin.key not found; using development default admin key")
	return &adminKey{hash: sha256.Sum256([]byte(devAdminKeyDefault))}
}

// matches reports whether raw is the configured admin key, constant-time.
func (a *adminKey) matches(raw string) bool {
	if raw == "" {
		return false
	}
	candidate := sha256.Sum256([]byte(raw))
	return subtle.ConstantTimeCompare(candidate[:], a.hash[:]) == 1
}
