package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "deposit_monitor"

// Metrics holds the Prometheus collectors shared by the scanning pipeline.
// Build one per process with New and pass it to the components that report.
type Metrics struct {
	GatewayQueueDepth    prometheus.Gauge
	GatewayWindowCalls   prometheus.Gauge
	GatewayTasks         *prometheus.CounterVec
	GatewayThrottleWaits prometheus.Counter

	ScanRuns           *prometheus.CounterVec
	ScanDuration       *prometheus.HistogramVec
	WalletsScanned     *prometheus.CounterVec
	PriorityDowngrades *prometheus.CounterVec

	BalanceReads        *prometheus.CounterVec
	DepositsDetected    *prometheus.CounterVec
	FalseZeroSuppressed prometheus.Counter

	WebhookDeliveries    *prometheus.CounterVec
	WebhooksDeregistered prometheus.Counter
	AdminAlerts          *prometheus.CounterVec
	DispatchQueueDepth   prometheus.Gauge
	DispatchDropped      prometheus.Counter
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GatewayQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "rpc_gateway", Name: "queue_depth",
			Help: "Number of balance queries waiting in the RPC gateway queue",
		}),
		GatewayWindowCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "rpc_gateway", Name: "window_calls",
			Help: "Calls started in the current rate window",
		}),
		GatewayTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rpc_gateway", Name: "tasks_total",
			Help: "Settled gateway tasks by status",
		}, []string{"status"}),
		GatewayThrottleWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rpc_gateway", Name: "throttle_waits_total",
			Help: "Times the gateway worker waited for the rate window to reset",
		}),
		ScanRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "runs_total",
			Help: "Tier scan runs by outcome",
		}, []string{"tier", "status"}),
		ScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "run_duration_seconds",
			Help:    "Tier scan duration",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 900},
		}, []string{"tier"}),
		WalletsScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "wallets_scanned_total",
			Help: "Wallet scans by tier and outcome",
		}, []string{"tier", "status"}),
		PriorityDowngrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "priority_downgrades_total",
			Help: "Wallets downgraded by the decay job",
		}, []string{"from", "to"}),
		BalanceReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scanner", Name: "balance_reads_total",
			Help: "On-chain balance reads by chain and status",
		}, []string{"chain", "status"}),
		DepositsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "deposits_detected_total",
			Help: "Deposits recorded by chain and token",
		}, []string{"chain", "token"}),
		FalseZeroSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "false_zero_suppressed_total",
			Help: "Zero reads ignored because the stored balance was positive",
		}),
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notification", Name: "webhook_deliveries_total",
			Help: "Webhook deliveries by result",
		}, []string{"result"}),
		WebhooksDeregistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notification", Name: "webhooks_deregistered_total",
			Help: "Webhooks deleted after reaching the failure limit",
		}),
		AdminAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notification", Name: "admin_alerts_total",
			Help: "Admin alerts by result",
		}, []string{"result"}),
		DispatchQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "notification", Name: "queue_depth",
			Help: "Deposit events waiting for dispatch",
		}),
		DispatchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notification", Name: "queue_full_total",
			Help: "Deposit events left for the outbox sweeper because the queue was full",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.GatewayQueueDepth, m.GatewayWindowCalls, m.GatewayTasks, m.GatewayThrottleWaits,
			m.ScanRuns, m.ScanDuration, m.WalletsScanned, m.PriorityDowngrades,
			m.BalanceReads, m.DepositsDetected, m.FalseZeroSuppressed,
			m.WebhookDeliveries, m.WebhooksDeregistered, m.AdminAlerts,
			m.DispatchQueueDepth, m.DispatchDropped,
		)
	}

	return m
}

// NewNop returns collectors that are not registered anywhere
func NewNop() *Metrics {
	return New(nil)
}
