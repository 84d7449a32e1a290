package dashboard

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/clearsettle/clearsettle/internal/auditchain"
	"github.com/clearsettle/clearsettle/internal/store"
)

// writeJSON writes a JSON response, logging encode failures.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding API response", "error", err)
	}
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.overviewStats()
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		http.Error(w, `{"error":"store unavailable"}`, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, stats)
}

func (s *Server) handleAPIAnomalies(w http.ResponseWriter, r *http.Request) {
	rows, err := s.flaggedRows()
	if err != nil {
		s.logger.Error("anomalies query failed", "error", err)
		http.Error(w, `{"error":"store unavailable"}`, http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []flaggedRow{}
	}
	s.writeJSON(w, rows)
}

func (s *Server) handleAPIAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.store.QueryAudit(store.AuditQuery{
		TransactionID: r.URL.Query().Get("txn"),
		Since:         r.URL.Query().Get("since"),
		Limit:         limit,
	})
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		http.Error(w, `{"error":"store unavailable"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	s.writeJSON(w, entries)
}

func (s *Server) handleAPIVerify(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.AuditChain()
	if err != nil {
		s.logger.Error("chain query failed", "error", err)
		http.Error(w, `{"error":"store unavailable"}`, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, auditchain.Verify(entries))
}
