package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/airadcr/airadcr-desktop/internal/config"
)

// testConfig points a Client at a local httptest server without going
// through loadTLS — the fake client is injected directly, TLS verification
// aside.
func testConfig(t *testing.T, srv *httptest.Server) config.TeoHubConfig {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return config.TeoHubConfig{
		Enabled:          true,
		Host:             u.Hostname(),
		Port:             port,
		HealthPath:       "/health",
		GetReportPath:    "/reports",
		SubmitPath:       "/reports/approved",
		TotalTimeoutMs:   2000,
		ConnectTimeoutMs: 2000,
		RetryCount:       2,
		RetryBaseMs:      1,
	}
}

func clientFor(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := New(testConfig(t, srv))
	c.once.Do(func() {
		c.httpClient = srv.Client()
	})
	return c
}

func TestHealth(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ServiceStatus{Status: "ok", Version: "1.0"})
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("status = %q, want ok", status.Status)
	}
}

func TestDisabledShortCircuits(t *testing.T) {
	c := New(config.TeoHubConfig{Enabled: false})
	_, err := c.Health(context.Background())
	herr, ok := err.(*Error)
	if !ok || herr.Kind != KindDisabled {
		t.Fatalf("expected KindDisabled, got %v", err)
	}
}

func TestFetchAIReportNotFoundIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	_, err := c.FetchAIReport(context.Background(), "P1", "S1")
	herr, ok := err.(*Error)
	if !ok || herr.Kind != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call for a 404, got %d", calls)
	}
}

func TestFetchAIReportRetriesOn500(t *testing.T) {
	calls := 0
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(AIReport{})
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	if _, err := c.FetchAIReport(context.Background(), "P1", "S1"); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls (1 failure + 1 retry), got %d", calls)
	}
}

func TestSubmitApprovedReport(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["patient_id"] != "P1" {
			t.Errorf("patient_id = %q", body["patient_id"])
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	status, err := c.SubmitApprovedReport(context.Background(), "P1", "S1", "final text", nil)
	if err != nil {
		t.Fatalf("SubmitApprovedReport: %v", err)
	}
	if status != "accepted" {
		t.Errorf("status = %q", status)
	}
}

func TestSubmitApprovedReportRejectsPatientIdentifyingMetadata(t *testing.T) {
	calls := 0
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	_, err := c.SubmitApprovedReport(context.Background(), "P1", "S1", "final text",
		json.RawMessage(`{"patient_name":"Jane Doe"}`))
	herr, ok := err.(*Error)
	if !ok || herr.Kind != KindPatientUnsafe {
		t.Fatalf("expected KindPatientUnsafe, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no network call, got %d", calls)
	}
}

func TestMaskIDs(t *testing.T) {
	if got := maskOne("PATIENT12345"); got != "PATI****" {
		t.Errorf("maskOne = %q", got)
	}
	if got := maskOne("ab"); got != "ab****" {
		t.Errorf("maskOne short = %q", got)
	}
}
