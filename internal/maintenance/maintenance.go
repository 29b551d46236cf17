// Package maintenance runs the store's cleanup and backup cadence on a
// cron.Cron scheduler, the same library the teacher already uses to parse
// and validate schedule expressions.
package maintenance

import (
	"log/slog"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/airadcr/airadcr-desktop/internal/metrics"
	"github.com/airadcr/airadcr-desktop/internal/store"
)

// cleanupSchedule matches the documented ten-minute cleanup cadence.
const cleanupSchedule = "@every 10m"

// backupSchedule runs once a day; the exact minute is arbitrary but fixed
// so two instances on the same host don't both pick the top of the hour.
const backupSchedule = "17 3 * * *"

// textfileSchedule matches node_exporter's typical textfile-collector poll
// interval; frequent enough that a stale snapshot is never mistaken for a
// live scrape, cheap enough to run alongside the cleanup job.
const textfileSchedule = "@every 1m"

// Scheduler wraps a cron.Cron bound to one store and backup directory.
type Scheduler struct {
	cron        *cron.Cron
	store       *store.Store
	backupDir   string
	maxAge      time.Duration
	metricsPath string
	log         *slog.Logger
}

// New constructs a Scheduler. backupRetention bounds how long pruneBackups
// keeps prior backup files. metricsPath is where the node_exporter textfile
// snapshot is written; pass "" to skip that job entirely.
func New(s *store.Store, backupDir string, backupRetention time.Duration, metricsPath string, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		store:       s,
		backupDir:   backupDir,
		maxAge:      backupRetention,
		metricsPath: metricsPath,
		log:         log,
	}
}

// Start registers the cleanup and backup jobs (plus the textfile job when
// a metrics path is set), starts the scheduler's own goroutine, and runs
// one backup right away in the background.
// logRetention bounds how far back access-log entries are kept;
// expired-report cleanup has no duration parameter since each row already
// carries its own expires_at. Start is idempotent only in the sense that
// cron.Cron.Start is; callers should call it exactly once.
func (s *Scheduler) Start(logRetention time.Duration) error {
	if _, err := s.cron.AddFunc(cleanupSchedule, func() { s.runCleanup(logRetention) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(backupSchedule, s.runBackup); err != nil {
		return err
	}
	if s.metricsPath != "" {
		if _, err := s.cron.AddFunc(textfileSchedule, s.runTextfile); err != nil {
			return err
		}
	}
	s.cron.Start()
	go s.runBackup()
	return nil
}

// Stop blocks until any in-flight job finishes, then stops the scheduler.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runCleanup(logRetention time.Duration) {
	expired, err := s.store.SweepExpiredReports()
	if err != nil {
		s.log.Warn("sweep expired reports failed", "error", err)
	} else if expired > 0 {
		s.log.Info("swept expired reports", "count", expired)
	}

	swept, err := s.store.SweepAccessLogs(logRetention)
	if err != nil {
		s.log.Warn("sweep access logs failed", "error", err)
	} else if swept > 0 {
		s.log.Info("swept access logs", "count", swept)
	}

	if size, err := s.store.SizeBytes(); err == nil {
		metrics.StoreSizeBytes.Set(float64(size))
	}
}

func (s *Scheduler) runBackup() {
	path, err := s.store.Backup(s.backupDir)
	if err != nil {
		s.log.Warn("backup failed", "error", err)
		return
	}
	s.log.Info("backup complete", "path", path)

	pruned, err := store.PruneBackups(s.backupDir, s.maxAge)
	if err != nil {
		s.log.Warn("prune backups failed", "error", err)
		return
	}
	if pruned > 0 {
		s.log.Info("pruned old backups", "count", pruned)
	}
}

func (s *Scheduler) runTextfile() {
	if err := metrics.WriteTextfile(s.metricsPath); err != nil {
		s.log.Warn("write metrics textfile failed", "error", err)
	}
}
