package store

import (
	"testing"
	"time"
)

func TestAppendAndListAccessLogs(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 3; i++ {
		if err := s.AppendAccessLog(AccessLog{
			PeerAddr:   "127.0.0.1",
			Method:     "GET",
			Path:       "/health",
			StatusCode: 200,
			Outcome:    OutcomeSuccess,
			RequestID:  "req-x",
			DurationMs: int64(i),
		}); err != nil {
			t.Fatalf("AppendAccessLog: %v", err)
		}
	}

	entries, err := s.ListAccessLogs(10, 0)
	if err != nil {
		t.Fatalf("ListAccessLogs: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// Newest (highest monotonic id / last appended) first.
	if entries[0].DurationMs != 2 {
		t.Errorf("expected newest-first ordering, got duration %d first", entries[0].DurationMs)
	}
	if entries[0].ID <= entries[1].ID {
		t.Errorf("expected descending monotonic ids, got %d then %d", entries[0].ID, entries[1].ID)
	}
}

func TestListAccessLogsRespectsLimitAndOffset(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 5; i++ {
		if err := s.AppendAccessLog(AccessLog{Path: "/x", Outcome: OutcomeSuccess}); err != nil {
			t.Fatal(err)
		}
	}
	page, err := s.ListAccessLogs(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d entries, want 2", len(page))
	}
}

func TestUserAgentTruncated(t *testing.T) {
	s := testStore(t)
	long := make([]byte, maxUserAgentLen+50)
	for i := range long {
		long[i] = 'a'
	}
	if err := s.AppendAccessLog(AccessLog{Path: "/x", Outcome: OutcomeSuccess, UserAgent: string(long)}); err != nil {
		t.Fatal(err)
	}
	entries, err := s.ListAccessLogs(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries[0].UserAgent) != maxUserAgentLen {
		t.Errorf("user agent length = %d, want %d", len(entries[0].UserAgent), maxUserAgentLen)
	}
}

func TestAggregateAccessLogs(t *testing.T) {
	s := testStore(t)
	if err := s.AppendAccessLog(AccessLog{Path: "/pending-report", Outcome: OutcomeSuccess, DurationMs: 10}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendAccessLog(AccessLog{Path: "/pending-report", Outcome: OutcomeUnauthorized, DurationMs: 20}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.AggregateAccessLogs()
	if err != nil {
		t.Fatalf("AggregateAccessLogs: %v", err)
	}
	if stats.TotalsByOutcome[OutcomeSuccess] != 1 || stats.TotalsByOutcome[OutcomeUnauthorized] != 1 {
		t.Errorf("totals by outcome = %+v", stats.TotalsByOutcome)
	}
	if stats.TopPaths["/pending-report"] != 2 {
		t.Errorf("top paths = %+v", stats.TopPaths)
	}
	if stats.AverageDuration != 15 {
		t.Errorf("average duration = %v, want 15", stats.AverageDuration)
	}
	if stats.Last24h != 2 {
		t.Errorf("last24h = %d, want 2", stats.Last24h)
	}
}

func TestSweepAccessLogsByAge(t *testing.T) {
	s := testStore(t)
	if err := s.AppendAccessLog(AccessLog{
		Path:      "/old",
		Outcome:   OutcomeSuccess,
		Timestamp: time.Now().UTC().Add(-48 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendAccessLog(AccessLog{Path: "/new", Outcome: OutcomeSuccess}); err != nil {
		t.Fatal(err)
	}

	n, err := s.SweepAccessLogs(24 * time.Hour)
	if err != nil {
		t.Fatalf("SweepAccessLogs: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d, want 1", n)
	}
	entries, err := s.ListAccessLogs(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Path != "/new" {
		t.Errorf("unexpected surviving entries: %+v", entries)
	}
}
