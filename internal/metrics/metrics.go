package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigchain_orders_created_total",
		Help: "Orders created with a verified deposit.",
	})

	DepositsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gigchain_deposits_rejected_total",
		Help: "Deposit verifications rejected, by reason.",
	}, []string{"reason"})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gigchain_settlements_total",
		Help: "Completed settlements, by type (release, auto_release, refund).",
	}, []string{"type"})

	SettlementFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gigchain_settlement_failures_total",
		Help: "Settlement attempts that failed, by error kind.",
	}, []string{"kind"})

	InsufficientFundsAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigchain_insufficient_funds_alerts_total",
		Help: "Settlements blocked because the custodian balance cannot cover the payout. Page the operator.",
	})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gigchain_settlement_duration_seconds",
		Help:    "Wall time of a settlement, claim through on-chain confirmation.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	SweepOverdueFound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gigchain_sweep_overdue_orders",
		Help: "Orders past the grace window found by the last sweep.",
	})

	ReconcilerRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigchain_reconciler_repairs_total",
		Help: "Claimed settlements the reconciler matched or re-issued.",
	})

	DisputesFiled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gigchain_disputes_filed_total",
		Help: "Disputes filed by order parties.",
	})
)
