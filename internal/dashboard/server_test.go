package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/store"
	"github.com/clearsettle/clearsettle/internal/txn"
	"github.com/google/uuid"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewStore(filepath.Join(dir, "test.db"), logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Defaults()
	return NewServer(cfg, st, logger)
}

func loginSession(t *testing.T, srv *Server, handler http.Handler) *http.Cookie {
	t.Helper()

	form := url.Values{"code": {srv.AccessCode()}}
	req := httptest.NewRequest("POST", "/dashboard/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie after login")
	return nil
}

func TestServer_LoginFlow(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	// Unauthenticated dashboard request redirects to login.
	req := httptest.NewRequest("GET", "/dashboard", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("dashboard without auth: status = %d, want 302", w.Code)
	}

	req = httptest.NewRequest("GET", "/dashboard/login", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login page: status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "access code") {
		t.Error("login page should mention the access code")
	}

	// Wrong code re-renders the login page with an error.
	form := url.Values{"code": {"99999999"}}
	if srv.AccessCode() == "99999999" {
		form.Set("code", "00000001")
	}
	req = httptest.NewRequest("POST", "/dashboard/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("wrong code: status = %d, want 200 (re-render login)", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid") {
		t.Error("wrong code response should contain 'Invalid'")
	}

	// Correct code sets a session cookie and redirects.
	form = url.Values{"code": {srv.AccessCode()}}
	req = httptest.NewRequest("POST", "/dashboard/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("correct code: status = %d, want 302 redirect", w.Code)
	}

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			sessionCookie = c
			break
		}
	}
	if sessionCookie == nil {
		t.Fatal("no session cookie set after login")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	req = httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(sessionCookie)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("dashboard with session: status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Settlements") {
		t.Error("overview should contain 'Settlements'")
	}
}

func TestServer_DashboardPages(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	records := []txn.Record{
		{"transaction_id": "DASH-1", "status": "settled", "ISIN": "US0000000001", "anomaly_score": 0.4},
		{"transaction_id": "DASH-2", "status": "failed", "ISIN": "US0000000002", "anomaly_score": 9.9,
			"anomaly_detected": true, "recommendation": "Investigate manually"},
	}
	if err := srv.store.BatchWrite(records); err != nil {
		t.Fatal(err)
	}
	if err := srv.store.AppendAudit(store.AuditEntry{
		ID:            uuid.NewString(),
		TransactionID: "DASH-2",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Action:        "Settlement status updated to 'failed'",
		Actor:         "AI Engine",
		PreviousHash:  "0000",
		Hash:          "deadbeef",
	}); err != nil {
		t.Fatal(err)
	}

	pages := []struct {
		path     string
		contains string
	}{
		{"/dashboard", "Settlements"},
		{"/dashboard/anomalies", "DASH-2"},
		{"/dashboard/audit", "AI Engine"},
	}

	for _, p := range pages {
		req := httptest.NewRequest("GET", p.path, nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", p.path, w.Code)
		}
		if !strings.Contains(w.Body.String(), p.contains) {
			t.Errorf("%s: body should contain %q", p.path, p.contains)
		}
	}
}

func TestServer_AnomaliesHidesUnflagged(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	records := []txn.Record{
		{"transaction_id": "CLEAN-1", "status": "settled", "ISIN": "US0000000009", "anomaly_score": 0.1},
	}
	if err := srv.store.BatchWrite(records); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/dashboard/anomalies", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("anomalies: status = %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), "CLEAN-1") {
		t.Error("unflagged settlement should not appear on anomalies page")
	}
}

func TestServer_HealthAndMetricsOpen(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("health: status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("metrics: status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "clearsettle_settlements_total") {
		t.Error("metrics should export clearsettle_settlements_total")
	}
	if !strings.Contains(body, "clearsettle_audit_chain_intact") {
		t.Error("metrics should export clearsettle_audit_chain_intact")
	}
}

func TestServer_APIAccessCode(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	records := []txn.Record{
		{"transaction_id": "API-1", "status": "failed", "ISIN": "US0000000003", "anomaly_score": 1.5,
			"anomaly_detected": true},
	}
	if err := srv.store.BatchWrite(records); err != nil {
		t.Fatal(err)
	}

	// Missing access code is rejected with 401, not a login redirect.
	req := httptest.NewRequest("GET", "/api/stats", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("api without code: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/stats", nil)
	req.Header.Set("X-Access-Code", srv.AccessCode())
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("api with code: status = %d, want 200", w.Code)
	}
	var stats struct {
		Settlements int `json:"settlements"`
		Flagged     int `json:"flagged"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Settlements != 1 || stats.Flagged != 1 {
		t.Errorf("stats = %+v, want 1 settlement, 1 flagged", stats)
	}

	req = httptest.NewRequest("GET", "/api/anomalies", nil)
	req.Header.Set("X-Access-Code", srv.AccessCode())
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("api anomalies: status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "API-1") {
		t.Error("anomalies API should include API-1")
	}
}

func TestAuth_SessionExpiry(t *testing.T) {
	a := NewAuth()
	token := a.CreateSession()
	if !a.ValidateSession(token) {
		t.Fatal("fresh session should validate")
	}

	a.mu.Lock()
	s := a.sessions[token]
	s.createdAt = time.Now().Add(-sessionDuration - time.Minute)
	a.sessions[token] = s
	a.mu.Unlock()

	if a.ValidateSession(token) {
		t.Error("expired session should not validate")
	}
}

func TestAuth_AccessCodeFormat(t *testing.T) {
	a := NewAuth()
	code := a.AccessCode()
	if len(code) != 8 {
		t.Fatalf("access code length = %d, want 8", len(code))
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Fatalf("access code %q contains non-digit", code)
		}
	}
	if !a.ValidateCode(code) {
		t.Error("own access code should validate")
	}
	if a.ValidateCode("") {
		t.Error("empty code should not validate")
	}
}
