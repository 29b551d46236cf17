package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/google/uuid"
)

// Report lifecycle states.
const (
	StatusPending   = "pending"
	StatusRetrieved = "retrieved"
	StatusExpired   = "expired"
)

// ErrNotFound is returned when a lookup finds no matching, unexpired row.
var ErrNotFound = errors.New("store: not found")

// PendingReport is a pre-report delivered by an upstream RIS/PACS, or
// materialized locally from a Hub Client fallback fetch.
type PendingReport struct {
	ID                string          `json:"id"`
	TechnicalID       string          `json:"technical_id"`
	PatientID         string          `json:"patient_id,omitempty"`
	AccessionNumber   string          `json:"accession_number,omitempty"`
	ExamUID           string          `json:"exam_uid,omitempty"`
	StudyInstanceUID  string          `json:"study_instance_uid,omitempty"`
	Structured        json.RawMessage `json:"structured"`
	SourceType        string          `json:"source_type"`
	AIModules         []string        `json:"ai_modules,omitempty"`
	Modality          string          `json:"modality,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	ExpiresAt         time.Time       `json:"expires_at"`
	RetrievedAt       time.Time       `json:"retrieved_at,omitempty"`
}

func reportKey(tid string) []byte { return []byte("tid::" + tid) }

func idxKey(value, tid string) []byte { return []byte(value + "::" + tid) }

func idxPrefix(value string) []byte { return []byte(value + "::") }

// UpsertReport replaces any existing row for the same TechnicalID and
// rewrites its RIS-correlation index entries.
func (s *Store) UpsertReport(r PendingReport) error {
	if r.TechnicalID == "" {
		return errors.New("store: technical_id is required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if !r.ExpiresAt.After(r.CreatedAt) {
		return errors.New("store: expires_at must be after created_at")
	}
	if r.Status == "" {
		r.Status = StatusPending
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal pending report: %w", err)
	}
	sealed, err := s.seal(data)
	if err != nil {
		return err
	}

	return s.update(func(tx *bolt.Tx) error {
		reports := tx.Bucket(bucketPendingReports)

		// Replace-on-conflict: drop the prior row's index entries first.
		if prevSealed := reports.Get(reportKey(r.TechnicalID)); prevSealed != nil {
			prevPlain, err := s.open(prevSealed)
			if err == nil {
				var prev PendingReport
				if json.Unmarshal(prevPlain, &prev) == nil {
					removeIndexEntries(tx, prev)
				}
			}
		}

		if err := reports.Put(reportKey(r.TechnicalID), sealed); err != nil {
			return err
		}
		return putIndexEntries(tx, r)
	})
}

func putIndexEntries(tx *bolt.Tx, r PendingReport) error {
	if r.PatientID != "" {
		if err := tx.Bucket(bucketIdxPatient).Put(idxKey(r.PatientID, r.TechnicalID), []byte(r.TechnicalID)); err != nil {
			return err
		}
	}
	if r.AccessionNumber != "" {
		if err := tx.Bucket(bucketIdxAccession).Put(idxKey(r.AccessionNumber, r.TechnicalID), []byte(r.TechnicalID)); err != nil {
			return err
		}
	}
	if r.ExamUID != "" {
		if err := tx.Bucket(bucketIdxExam).Put(idxKey(r.ExamUID, r.TechnicalID), []byte(r.TechnicalID)); err != nil {
			return err
		}
	}
	if r.StudyInstanceUID != "" && r.StudyInstanceUID != r.ExamUID {
		if err := tx.Bucket(bucketIdxExam).Put(idxKey(r.StudyInstanceUID, r.TechnicalID), []byte(r.TechnicalID)); err != nil {
			return err
		}
	}
	return nil
}

func removeIndexEntries(tx *bolt.Tx, r PendingReport) {
	if r.PatientID != "" {
		_ = tx.Bucket(bucketIdxPatient).Delete(idxKey(r.PatientID, r.TechnicalID))
	}
	if r.AccessionNumber != "" {
		_ = tx.Bucket(bucketIdxAccession).Delete(idxKey(r.AccessionNumber, r.TechnicalID))
	}
	if r.ExamUID != "" {
		_ = tx.Bucket(bucketIdxExam).Delete(idxKey(r.ExamUID, r.TechnicalID))
	}
	if r.StudyInstanceUID != "" && r.StudyInstanceUID != r.ExamUID {
		_ = tx.Bucket(bucketIdxExam).Delete(idxKey(r.StudyInstanceUID, r.TechnicalID))
	}
}

// GetReport fetches a row by TechnicalID, visible only while unexpired.
func (s *Store) GetReport(tid string) (PendingReport, error) {
	var r PendingReport
	err := s.view(func(tx *bolt.Tx) error {
		sealed := tx.Bucket(bucketPendingReports).Get(reportKey(tid))
		if sealed == nil {
			return ErrNotFound
		}
		plain, err := s.open(sealed)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(plain, &r); err != nil {
			return err
		}
		if r.Status == StatusExpired || !r.ExpiresAt.After(time.Now().UTC()) {
			return ErrNotFound
		}
		return nil
	})
	return r, err
}

// FindReportByRIS looks up the newest unexpired row matching any of the
// non-empty RIS identifiers, OR-composed, newest created_at wins.
func (s *Store) FindReportByRIS(patientID, accessionNumber, examUID string) (PendingReport, error) {
	tids := make(map[string]struct{})

	err := s.view(func(tx *bolt.Tx) error {
		collect := func(bucket []byte, value string) {
			if value == "" {
				return
			}
			c := tx.Bucket(bucket).Cursor()
			prefix := idxPrefix(value)
			for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
				tids[string(v)] = struct{}{}
			}
		}
		collect(bucketIdxPatient, patientID)
		collect(bucketIdxAccession, accessionNumber)
		collect(bucketIdxExam, examUID)
		return nil
	})
	if err != nil {
		return PendingReport{}, err
	}

	var best PendingReport
	found := false
	now := time.Now().UTC()
	for tid := range tids {
		r, err := s.GetReport(tid)
		if err != nil {
			continue
		}
		if r.ExpiresAt.Before(now) {
			continue
		}
		if !found || r.CreatedAt.After(best.CreatedAt) {
			best = r
			found = true
		}
	}
	if !found {
		return PendingReport{}, ErrNotFound
	}
	return best, nil
}

// MarkRetrieved flips a row's status to retrieved and stamps retrieved_at.
func (s *Store) MarkRetrieved(tid string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPendingReports)
		sealed := b.Get(reportKey(tid))
		if sealed == nil {
			return ErrNotFound
		}
		plain, err := s.open(sealed)
		if err != nil {
			return err
		}
		var r PendingReport
		if err := json.Unmarshal(plain, &r); err != nil {
			return err
		}
		r.Status = StatusRetrieved
		r.RetrievedAt = time.Now().UTC()

		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		newSealed, err := s.seal(data)
		if err != nil {
			return err
		}
		return b.Put(reportKey(tid), newSealed)
	})
}

// DeleteReport hard-deletes a row and its index entries.
func (s *Store) DeleteReport(tid string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPendingReports)
		sealed := b.Get(reportKey(tid))
		if sealed == nil {
			return ErrNotFound
		}
		plain, err := s.open(sealed)
		if err == nil {
			var r PendingReport
			if json.Unmarshal(plain, &r) == nil {
				removeIndexEntries(tx, r)
			}
		}
		return b.Delete(reportKey(tid))
	})
}

// SweepExpiredReports deletes every row whose expires_at has passed,
// returning the count removed. Best-effort: a single bad row is skipped,
// not fatal to the sweep.
func (s *Store) SweepExpiredReports() (int, error) {
	now := time.Now().UTC()
	removed := 0

	err := s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPendingReports)
		c := b.Cursor()

		var toDelete []PendingReport
		for k, v := c.First(); k != nil; k, v = c.Next() {
			plain, err := s.open(v)
			if err != nil {
				continue
			}
			var r PendingReport
			if json.Unmarshal(plain, &r) != nil {
				continue
			}
			if !r.ExpiresAt.After(now) {
				toDelete = append(toDelete, r)
			}
		}

		for _, r := range toDelete {
			removeIndexEntries(tx, r)
			if err := b.Delete(reportKey(r.TechnicalID)); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}
