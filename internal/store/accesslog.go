package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Outcome classes recorded on every access log row.
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNotFound     = "not_found"
	OutcomeBadRequest   = "bad_request"
	OutcomeError        = "error"
)

const maxUserAgentLen = 200

// AccessLog is one append-only row recording an ingestion server request.
type AccessLog struct {
	ID         uint64    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	PeerAddr   string    `json:"peer_addr"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	Outcome    string    `json:"outcome"`
	KeyPrefix  string    `json:"key_prefix,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RequestID  string    `json:"request_id"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

func accessLogKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// AppendAccessLog writes one row, assigning it the bucket's next monotonic
// sequence id — the canonical ordering for log rows, independent of any
// clock skew between requests.
func (s *Store) AppendAccessLog(entry AccessLog) error {
	if entry.UserAgent != "" && len(entry.UserAgent) > maxUserAgentLen {
		entry.UserAgent = entry.UserAgent[:maxUserAgentLen]
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAccessLogs)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		entry.ID = id

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal access log: %w", err)
		}
		sealed, err := s.seal(data)
		if err != nil {
			return err
		}
		return b.Put(accessLogKey(id), sealed)
	})
}

// ListAccessLogs returns rows newest-first, applying limit/offset.
func (s *Store) ListAccessLogs(limit, offset int) ([]AccessLog, error) {
	var entries []AccessLog
	err := s.view(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAccessLogs).Cursor()
		skipped := 0
		for k, v := c.Last(); k != nil && len(entries) < limit; k, v = c.Prev() {
			if skipped < offset {
				skipped++
				continue
			}
			plain, err := s.open(v)
			if err != nil {
				continue
			}
			var entry AccessLog
			if json.Unmarshal(plain, &entry) != nil {
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

// AccessLogStats aggregates the access log for the observability surface.
type AccessLogStats struct {
	TotalsByOutcome map[string]int `json:"totals_by_outcome"`
	TopPaths        map[string]int `json:"top_paths"`
	AverageDuration float64        `json:"average_duration_ms"`
	Last24h         int            `json:"last_24h"`
}

// AggregateAccessLogs scans the full log once, computing totals by
// outcome, per-path counts, average duration, and a trailing-24h count.
func (s *Store) AggregateAccessLogs() (AccessLogStats, error) {
	stats := AccessLogStats{
		TotalsByOutcome: make(map[string]int),
		TopPaths:        make(map[string]int),
	}
	var durationSum int64
	var n int
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccessLogs).ForEach(func(_, v []byte) error {
			plain, err := s.open(v)
			if err != nil {
				return nil
			}
			var entry AccessLog
			if json.Unmarshal(plain, &entry) != nil {
				return nil
			}
			stats.TotalsByOutcome[entry.Outcome]++
			stats.TopPaths[entry.Path]++
			durationSum += entry.DurationMs
			n++
			if entry.Timestamp.After(cutoff) {
				stats.Last24h++
			}
			return nil
		})
	})
	if err != nil {
		return AccessLogStats{}, err
	}
	if n > 0 {
		stats.AverageDuration = float64(durationSum) / float64(n)
	}
	return stats, nil
}

// SweepAccessLogs deletes rows older than maxAge, returning the count
// removed.
func (s *Store) SweepAccessLogs(maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0

	err := s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAccessLogs)
		c := b.Cursor()

		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			plain, err := s.open(v)
			if err != nil {
				continue
			}
			var entry AccessLog
			if json.Unmarshal(plain, &entry) != nil {
				continue
			}
			if entry.Timestamp.Before(cutoff) {
				keyCopy := make([]byte, len(k))
				copy(keyCopy, k)
				stale = append(stale, keyCopy)
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}
