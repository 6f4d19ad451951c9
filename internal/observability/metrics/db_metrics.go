package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "pool_balance",
			Help: "Current pool balance in currency micro-units",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT balance FROM pool_state WHERE id = 1")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "admitted_reports",
			Help: "Total admitted energy reports",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM energy_reports")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "registered_installations",
			Help: "Total registered installations",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM installations")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
