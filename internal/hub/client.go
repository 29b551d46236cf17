// Package hub is the typed client for the upstream AI-report provider.
// One shared *http.Client is built lazily from configuration and reused
// for every request.
package hub

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/airadcr/airadcr-desktop/internal/backoff"
	"github.com/airadcr/airadcr-desktop/internal/config"
	"github.com/airadcr/airadcr-desktop/internal/metrics"
	"github.com/airadcr/airadcr-desktop/internal/validate"
)

// Client is the shared, lazily-initialized HTTP client to the Hub.
type Client struct {
	cfg config.TeoHubConfig

	once       sync.Once
	httpClient *http.Client
	initErr    error
}

// New constructs a Client from configuration. TLS material is loaded
// lazily on first use, not at construction time.
func New(cfg config.TeoHubConfig) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) ensureClient() (*http.Client, error) {
	c.once.Do(func() {
		transport := &http.Transport{
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DialContext:         (&net.Dialer{Timeout: time.Duration(c.cfg.ConnectTimeoutMs) * time.Millisecond}).DialContext,
		}
		if c.cfg.TLSEnabled {
			tlsConfig, err := loadTLS(c.cfg.CAFile, c.cfg.ClientCertFile, c.cfg.ClientKeyFile)
			if err != nil {
				c.initErr = tlsErr(err)
				return
			}
			if u, perr := url.Parse(c.baseURL()); perr == nil {
				tlsConfig.ServerName = u.Hostname()
			}
			transport.TLSClientConfig = tlsConfig
		}
		c.httpClient = &http.Client{
			Transport: transport,
			Timeout:   time.Duration(c.cfg.TotalTimeoutMs) * time.Millisecond,
		}
	})
	return c.httpClient, c.initErr
}

// loadTLS reads the CA certificate and, if client certificate material is
// present, configures mTLS. A CA file alone is sufficient for server-only
// verification.
func loadTLS(caFile, certFile, keyFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read CA cert %s: %w", caFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA cert %s", caFile)
		}
		cfg.RootCAs = pool
	}

	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert/key: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

func (c *Client) baseURL() string {
	return fmt.Sprintf("https://%s:%d", c.cfg.Host, c.cfg.Port)
}

// ServiceStatus is the health descriptor returned by the Hub.
type ServiceStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Health checks the Hub's health endpoint.
func (c *Client) Health(ctx context.Context) (ServiceStatus, error) {
	var status ServiceStatus
	err := c.doWithRetry(ctx, http.MethodGet, c.cfg.HealthPath, nil, "", &status)
	return status, err
}

// AIReport is the nested document returned by fetch_ai_report.
type AIReport struct {
	Result struct {
		Translation struct {
			Language       string `json:"language"`
			TranslatedText string `json:"translated_text"`
		} `json:"translation"`
		StructuredReport struct {
			Title      string `json:"title"`
			Results    string `json:"results"`
			Conclusion string `json:"conclusion"`
		} `json:"structured_report"`
	} `json:"result"`
}

// FetchAIReport retrieves the AI-generated pre-report for a patient/study.
func (c *Client) FetchAIReport(ctx context.Context, patientID, studyUID string) (AIReport, error) {
	q := url.Values{}
	q.Set("patient_id", patientID)
	q.Set("study_uid", studyUID)
	path := c.cfg.GetReportPath + "?" + q.Encode()

	var report AIReport
	err := c.doWithRetry(ctx, http.MethodGet, path, nil, maskIDs(patientID, studyUID), &report)
	return report, err
}

// SubmitApprovedReport posts the radiologist-approved final text back to
// the Hub. metadata, if present, is a structured document attached to the
// submission (e.g. section edits); it is rejected before anything is sent
// if any of its keys look personally-identifying — the only checkpoint
// between locally-held identifiers and the network.
func (c *Client) SubmitApprovedReport(ctx context.Context, patientID, studyUID, approvedReport string, metadata json.RawMessage) (string, error) {
	if err := validate.PatientSafe(metadata); err != nil {
		return "", patientUnsafeErr(err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"patient_id":      patientID,
		"study_uid":       studyUID,
		"approved_report": approvedReport,
		"metadata":        metadata,
	})
	if err != nil {
		return "", parseErr(err)
	}

	var resp struct {
		Status string `json:"status"`
	}
	err = c.doWithRetry(ctx, http.MethodPost, c.cfg.SubmitPath, body, maskIDs(patientID, studyUID), &resp)
	return resp.Status, err
}

// doWithRetry runs one logical operation with exponential backoff, short-
// circuiting immediately when the client is disabled and never retrying a
// deterministic 401/403/404 response.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte, maskedIDs string, out interface{}) error {
	if !c.cfg.Enabled {
		return disabledErr()
	}

	if _, err := c.ensureClient(); err != nil {
		return err
	}

	b := backoff.New(time.Duration(c.cfg.RetryBaseMs)*time.Millisecond, 30*time.Second)
	var lastErr error

	for attempt := 0; attempt <= c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			metrics.HubRetries.Inc()
			select {
			case <-time.After(b.Next()):
			case <-ctx.Done():
				return networkErr(ctx.Err())
			}
		}

		statusErr := c.doOnce(ctx, method, path, body, out)
		if statusErr == nil {
			metrics.HubRequestsTotal.WithLabelValues(path, "success").Inc()
			return nil
		}
		herr, ok := statusErr.(*Error)
		if !ok {
			lastErr = networkErr(statusErr)
			continue
		}
		if !herr.Retryable() {
			metrics.HubRequestsTotal.WithLabelValues(path, herr.Kind.String()).Inc()
			return herr
		}
		lastErr = herr
	}
	metrics.HubRequestsTotal.WithLabelValues(path, "error").Inc()
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out interface{}) error {
	httpClient, err := c.ensureClient()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, bytes.NewReader(body))
	if err != nil {
		return networkErr(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIToken != "" {
		req.Header.Set("API_TOKEN", c.cfg.APIToken)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return networkErr(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFoundErr(path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return unauthorizedErr(resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return httpErr(resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkErr(err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return parseErr(err)
	}
	return nil
}

// maskIDs renders patient identifiers as first-four-characters-plus-stars
// for safe inclusion in log lines.
func maskIDs(ids ...string) string {
	masked := make([]string, len(ids))
	for i, id := range ids {
		masked[i] = maskOne(id)
	}
	out := ""
	for i, m := range masked {
		if i > 0 {
			out += ","
		}
		out += m
	}
	return out
}

func maskOne(id string) string {
	if id == "" {
		return ""
	}
	if len(id) <= 4 {
		return id + "****"
	}
	return id[:4] + "****"
}

