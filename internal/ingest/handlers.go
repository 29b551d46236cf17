package ingest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/airadcr/airadcr-desktop/internal/store"
	"github.com/airadcr/airadcr-desktop/internal/validate"
)

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /health/extended", s.requireAdmin(s.handleHealthExtended))
	s.mux.Handle("GET /metrics", s.requireAdmin(s.handleMetrics))

	s.mux.Handle("POST /pending-report", s.requireAPIKey(s.handleCreateReport))
	s.mux.HandleFunc("GET /pending-report", s.handleGetReport)
	s.mux.Handle("DELETE /pending-report", s.requireAPIKey(s.handleDeleteReport))

	s.mux.HandleFunc("GET /find-report", s.handleFindReport)
	s.mux.Handle("POST /open-report", s.requireAPIKey(s.handleOpenReport))
	s.mux.Handle("GET /teo-hub/fetch", s.requireAPIKey(s.handleTeoHubFetch))

	s.mux.Handle("POST /api-keys", s.requireAdmin(s.handleCreateAPIKey))
	s.mux.Handle("GET /api-keys", s.requireAdmin(s.handleListAPIKeys))
	s.mux.Handle("DELETE /api-keys/{prefix}", s.requireAdmin(s.handleRevokeAPIKey))
}

func (s *Server) requireAPIKey(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("x-api-key")
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing x-api-key", "x-api-key")
			return
		}
		if _, err := s.deps.Store.ValidateAPIKey(raw); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid api key", "x-api-key")
			return
		}
		next(w, r)
	})
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.admin.matches(r.Header.Get("x-admin-key")) {
			writeError(w, http.StatusUnauthorized, "invalid admin key", "x-admin-key")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthExtended(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Store.AggregateAccessLogs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "aggregation failed", "")
		return
	}
	size, err := s.deps.Store.SizeBytes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store size unavailable", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"store_bytes":  size,
		"hub_enabled":  s.deps.Config.HubEnabled(),
		"access_stats": stats,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promMetricsHandler().ServeHTTP(w, r)
}

type createReportRequest struct {
	TechnicalID      string          `json:"technical_id"`
	PatientID        string          `json:"patient_id,omitempty"`
	AccessionNumber  string          `json:"accession_number,omitempty"`
	ExamUID          string          `json:"exam_uid,omitempty"`
	StudyInstanceUID string          `json:"study_instance_uid,omitempty"`
	Structured       json.RawMessage `json:"structured"`
	SourceType       string          `json:"source_type,omitempty"`
	AIModules        []string        `json:"ai_modules,omitempty"`
	Modality         string          `json:"modality,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	ExpiresInHours   int             `json:"expires_in_hours,omitempty"`
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body", "")
		return
	}
	if !validate.TechnicalID(req.TechnicalID) {
		writeError(w, http.StatusBadRequest, "technical_id must match ^[A-Za-z0-9_-]{1,64}$", "technical_id")
		return
	}

	expiresInHours := req.ExpiresInHours
	if expiresInHours <= 0 {
		expiresInHours = int(s.deps.Config.ReportRetention().Hours())
	}
	now := time.Now().UTC()

	rec := store.PendingReport{
		TechnicalID:      req.TechnicalID,
		PatientID:        req.PatientID,
		AccessionNumber:  req.AccessionNumber,
		ExamUID:          req.ExamUID,
		StudyInstanceUID: req.StudyInstanceUID,
		Structured:       req.Structured,
		SourceType:       req.SourceType,
		AIModules:        req.AIModules,
		Modality:         req.Modality,
		Metadata:         req.Metadata,
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Duration(expiresInHours) * time.Hour),
	}
	if err := s.deps.Store.UpsertReport(rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist report", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"technical_id":  rec.TechnicalID,
		"retrieval_url": "/pending-report?tid=" + rec.TechnicalID,
		"expires_at":    rec.ExpiresAt,
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	tid := r.URL.Query().Get("tid")
	if tid == "" {
		writeError(w, http.StatusBadRequest, "tid is required", "tid")
		return
	}
	rec, err := s.deps.Store.GetReport(tid)
	if errors.Is(err, store.ErrNotFound) || (err == nil && rec.Status == store.StatusRetrieved) {
		writeError(w, http.StatusNotFound, "no pending report for tid", "tid")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed", "")
		return
	}
	if err := s.deps.Store.MarkRetrieved(tid); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark retrieved", "")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	tid := r.URL.Query().Get("tid")
	if tid == "" {
		writeError(w, http.StatusBadRequest, "tid is required", "tid")
		return
	}
	if err := s.deps.Store.DeleteReport(tid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no pending report for tid", "tid")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleFindReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	patientID := q.Get("patient_id")
	accession := q.Get("accession_number")
	examUID := firstNonEmpty(q.Get("exam_uid"), q.Get("study_uid"))
	if patientID == "" && accession == "" && examUID == "" {
		writeError(w, http.StatusBadRequest, "at least one identifier is required", "")
		return
	}
	rec, err := s.deps.Store.FindReportByRIS(patientID, accession, examUID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no matching report", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed", "")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

type openReportRequest struct {
	TID             string `json:"tid,omitempty"`
	PatientID       string `json:"patient_id,omitempty"`
	AccessionNumber string `json:"accession_number,omitempty"`
	ExamUID         string `json:"exam_uid,omitempty"`
	StudyUID        string `json:"study_uid,omitempty"`
}

// resolveOpenReport finds or, when possible, materializes the report named
// by req, returning the resolved tid and its source.
func (s *Server) resolveOpenReport(r *http.Request, req openReportRequest) (string, string, error) {
	examUID := firstNonEmpty(req.ExamUID, req.StudyUID)

	if req.TID != "" {
		if _, err := s.deps.Store.GetReport(req.TID); err == nil {
			return req.TID, "local", nil
		}
	}
	if req.PatientID != "" || req.AccessionNumber != "" || examUID != "" {
		if rec, err := s.deps.Store.FindReportByRIS(req.PatientID, req.AccessionNumber, examUID); err == nil {
			return rec.TechnicalID, "local", nil
		}
	}

	if s.deps.Config.HubEnabled() && req.PatientID != "" && examUID != "" {
		report, err := s.deps.Hub.FetchAIReport(r.Context(), req.PatientID, examUID)
		if err != nil {
			return "", "", err
		}
		structured, merr := json.Marshal(report)
		if merr != nil {
			return "", "", merr
		}
		tid := "teo_" + randomHex(8)
		now := time.Now().UTC()
		rec := store.PendingReport{
			TechnicalID: tid,
			PatientID:   req.PatientID,
			ExamUID:     examUID,
			Structured:  structured,
			SourceType:  "teo_hub",
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.deps.Config.ReportRetention()),
		}
		if err := s.deps.Store.UpsertReport(rec); err != nil {
			return "", "", err
		}
		return tid, "teo_hub", nil
	}

	return "", "", store.ErrNotFound
}

func randomHex(n int) string {
	b := make([]byte, n/2+1)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:n]
}

func (s *Server) handleOpenReport(w http.ResponseWriter, r *http.Request) {
	var req openReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body", "")
		return
	}

	tid, source, err := s.resolveOpenReport(r, req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no matching report", "")
			return
		}
		writeError(w, http.StatusBadGateway, "upstream fetch failed", "")
		return
	}
	if !validate.TechnicalID(tid) {
		writeError(w, http.StatusInternalServerError, "resolved tid failed validation", "")
		return
	}

	if s.deps.View == nil || !s.deps.View.Ready() {
		retryAfterHeader(w, 2)
		writeError(w, http.StatusServiceUnavailable, "embedded view not ready", "")
		return
	}

	s.deps.Nav.Publish(tid)
	s.deps.View.Foreground()

	writeJSON(w, http.StatusOK, map[string]string{
		"technical_id": tid,
		"navigated_to": tid,
		"source":       source,
	})
}

func (s *Server) handleTeoHubFetch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := openReportRequest{
		TID:             q.Get("tid"),
		PatientID:       q.Get("patient_id"),
		AccessionNumber: q.Get("accession_number"),
		ExamUID:         q.Get("exam_uid"),
		StudyUID:        q.Get("study_uid"),
	}
	tid, source, err := s.resolveOpenReport(r, req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no matching report", "")
			return
		}
		writeError(w, http.StatusBadGateway, "upstream fetch failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"technical_id": tid, "source": source})
}

type createAPIKeyRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body", "")
		return
	}
	plaintext, rec, err := s.deps.Store.CreateAPIKey(req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "key creation failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"api_key":    plaintext,
		"key_prefix": rec.KeyPrefix,
		"name":       rec.Name,
		"created_at": rec.CreatedAt,
	})
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.deps.Store.ListAPIKeys()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list failed", "")
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	prefix := r.PathValue("prefix")
	if err := s.deps.Store.RevokeAPIKeyByPrefix(prefix); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no key with that prefix", "prefix")
			return
		}
		writeError(w, http.StatusInternalServerError, "revoke failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
