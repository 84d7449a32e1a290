// Package sdk provides a Go client for the clearsettle dashboard API.
//
// Basic usage:
//
//	c := sdk.NewClient("http://localhost:8080", accessCode)
//	stats, err := c.Stats(ctx)
//
// The access code is printed by `clearsettle serve` at startup.
package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Stats summarizes the monitored settlement collections.
type Stats struct {
	Settlements  int    `json:"settlements"`
	Flagged      int    `json:"flagged"`
	Failed       int    `json:"failed"`
	AuditEntries int    `json:"audit_entries"`
	ChainOK      bool   `json:"chain_ok"`
	ChainReason  string `json:"chain_reason,omitempty"`
}

// Anomaly is one settlement flagged by a detector.
type Anomaly struct {
	TransactionID  string  `json:"transaction_id"`
	Status         string  `json:"status"`
	ISIN           string  `json:"ISIN"`
	AnomalyScore   float64 `json:"anomaly_score"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// AuditEntry is one record from the hash-chained audit log.
type AuditEntry struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	Timestamp     string `json:"timestamp"`
	Action        string `json:"action"`
	Actor         string `json:"actor"`
	PreviousHash  string `json:"previous_hash"`
	Hash          string `json:"hash"`
}

// VerifyResult reports the outcome of a server-side chain verification.
type VerifyResult struct {
	Entries int    `json:"entries"`
	OK      bool   `json:"ok"`
	Broken  int    `json:"broken"`
	Reason  string `json:"reason,omitempty"`
}

// AuditQuery filters AuditLog calls. Zero values mean no filter.
type AuditQuery struct {
	TransactionID string
	Since         string // RFC 3339 lower bound
	Limit         int
}

// APIError is returned for non-200 API responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clearsettle: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running clearsettle dashboard server.
type Client struct {
	baseURL    string
	accessCode string
	httpClient *http.Client
}

// NewClient creates a client authenticated with the given access code.
func NewClient(baseURL, accessCode string) *Client {
	return &Client{
		baseURL:    baseURL,
		accessCode: accessCode,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Stats fetches the settlement and audit chain summary.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.get(ctx, "/api/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Anomalies fetches every settlement currently flagged by a detector.
func (c *Client) Anomalies(ctx context.Context) ([]Anomaly, error) {
	var rows []Anomaly
	if err := c.get(ctx, "/api/anomalies", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AuditLog fetches audit entries matching the query, newest first.
func (c *Client) AuditLog(ctx context.Context, q AuditQuery) ([]AuditEntry, error) {
	params := url.Values{}
	if q.TransactionID != "" {
		params.Set("txn", q.TransactionID)
	}
	if q.Since != "" {
		params.Set("since", q.Since)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	path := "/api/audit"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var entries []AuditEntry
	if err := c.get(ctx, path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// VerifyChain asks the server to verify its audit chain end to end.
func (c *Client) VerifyChain(ctx context.Context) (*VerifyResult, error) {
	var res VerifyResult
	if err := c.get(ctx, "/api/verify", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: "unhealthy"}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Access-Code", c.accessCode)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
