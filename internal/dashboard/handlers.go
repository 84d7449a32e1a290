package dashboard

import (
	"net/http"
	"time"

	"github.com/clearsettle/clearsettle/internal/auditchain"
	"github.com/clearsettle/clearsettle/internal/store"
	"github.com/clearsettle/clearsettle/internal/txn"
)

type overviewStats struct {
	Settlements  int    `json:"settlements"`
	Flagged      int    `json:"flagged"`
	Failed       int    `json:"failed"`
	AuditEntries int    `json:"audit_entries"`
	ChainOK      bool   `json:"chain_ok"`
	ChainReason  string `json:"chain_reason,omitempty"`
}

type flaggedRow struct {
	TransactionID  string  `json:"transaction_id"`
	Status         string  `json:"status"`
	ISIN           string  `json:"ISIN"`
	AnomalyScore   float64 `json:"anomaly_score"`
	Recommendation string  `json:"recommendation,omitempty"`
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginTmpl.Execute(w, nil)
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	code := r.FormValue("code")
	if !s.auth.ValidateCode(code) {
		s.logger.Info("dashboard login failed", "ip", r.RemoteAddr)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = loginTmpl.Execute(w, map[string]any{"Error": "Invalid access code. Check your terminal."})
		return
	}

	token := s.auth.CreateSession()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sessionDuration),
	})
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Server) overviewStats() (overviewStats, error) {
	records, err := s.store.StreamAll()
	if err != nil {
		return overviewStats{}, err
	}

	stats := overviewStats{Settlements: len(records)}
	for _, r := range records {
		if flagged, _ := r[txn.FieldAnomalyDetected].(bool); flagged {
			stats.Flagged++
		}
		if r.Status() == "failed" {
			stats.Failed++
		}
	}

	entries, err := s.store.AuditChain()
	if err != nil {
		return stats, err
	}
	stats.AuditEntries = len(entries)
	res := auditchain.Verify(entries)
	stats.ChainOK = res.OK
	stats.ChainReason = res.Reason
	return stats, nil
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	stats, err := s.overviewStats()
	if err != nil {
		s.logger.Error("overview query failed", "error", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = overviewTmpl.Execute(w, stats)
}

func (s *Server) flaggedRows() ([]flaggedRow, error) {
	records, err := s.store.StreamAll()
	if err != nil {
		return nil, err
	}

	var rows []flaggedRow
	for _, rec := range records {
		if flagged, _ := rec[txn.FieldAnomalyDetected].(bool); !flagged {
			continue
		}
		id, _ := rec.TransactionID()
		isin, _ := rec[txn.FieldISIN].(string)
		recommendation, _ := rec[txn.FieldRecommendation].(string)
		rows = append(rows, flaggedRow{
			TransactionID:  id,
			Status:         rec.Status(),
			ISIN:           isin,
			AnomalyScore:   rec.AnomalyScore(),
			Recommendation: recommendation,
		})
	}
	return rows, nil
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	rows, err := s.flaggedRows()
	if err != nil {
		s.logger.Error("anomalies query failed", "error", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = anomaliesTmpl.Execute(w, rows)
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.QueryAudit(store.AuditQuery{Limit: 200})
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = auditTmpl.Execute(w, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.CountSettlements(); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
