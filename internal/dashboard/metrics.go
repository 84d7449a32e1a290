package dashboard

import (
	"github.com/clearsettle/clearsettle/internal/auditchain"
	"github.com/prometheus/client_golang/prometheus"
)

// registry builds a Prometheus registry whose gauges read the store at
// scrape time, so /metrics always reflects the current collections.
func (s *Server) registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "clearsettle_settlements_total",
		Help: "Number of settlement documents in the store.",
	}, func() float64 {
		n, err := s.store.CountSettlements()
		if err != nil {
			return -1
		}
		return float64(n)
	}))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "clearsettle_flagged_settlements_total",
		Help: "Number of settlements flagged by any anomaly detector.",
	}, func() float64 {
		stats, err := s.overviewStats()
		if err != nil {
			return -1
		}
		return float64(stats.Flagged)
	}))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "clearsettle_audit_entries_total",
		Help: "Number of entries in the hash-chained audit log.",
	}, func() float64 {
		n, err := s.store.CountAudit()
		if err != nil {
			return -1
		}
		return float64(n)
	}))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "clearsettle_audit_chain_intact",
		Help: "1 when the audit chain verifies end to end, 0 when broken.",
	}, func() float64 {
		entries, err := s.store.AuditChain()
		if err != nil {
			return 0
		}
		if auditchain.Verify(entries).OK {
			return 1
		}
		return 0
	}))

	return reg
}
