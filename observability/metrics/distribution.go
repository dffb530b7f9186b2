package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DistributionMetrics tracks the value-distribution engine.
type DistributionMetrics struct {
	deposits         prometheus.Counter
	depositedValue   prometheus.Counter
	payoutsPaid      *prometheus.CounterVec
	payoutFailures   prometheus.Counter
	manualClaims     prometheus.Counter
	poolBalance      *prometheus.GaugeVec
	sweptValue       *prometheus.CounterVec
	snapshotCursor   *prometheus.GaugeVec
	cyclesClosed     prometheus.Counter
	roundingDust     *prometheus.GaugeVec
	claimGuardResets prometheus.Counter
}

var (
	distributionOnce     sync.Once
	distributionRegistry *DistributionMetrics
)

// Distribution returns the process-wide distribution metric set.
func Distribution() *DistributionMetrics {
	distributionOnce.Do(func() {
		distributionRegistry = &DistributionMetrics{
			deposits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "distribution_deposits_total",
				Help: "Count of funding-source deposits accepted.",
			}),
			depositedValue: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "distribution_deposited_value_total",
				Help: "Total inbound value apportioned into category pools.",
			}),
			payoutsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "distribution_payouts_total",
				Help: "Count of successful push payouts by path.",
			}, []string{"path"}),
			payoutFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "distribution_payout_failures_total",
				Help: "Count of individual push transfers rejected mid-batch.",
			}),
			manualClaims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "distribution_manual_claims_total",
				Help: "Count of successful holder-initiated manual claims.",
			}),
			poolBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "distribution_pool_balance",
				Help: "Live pool balance per category and purpose.",
			}, []string{"category", "purpose"}),
			sweptValue: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "distribution_swept_value_total",
				Help: "Leftover value forwarded to the treasury per cycle.",
			}, []string{"cycle"}),
			snapshotCursor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "distribution_snapshot_cursor",
				Help: "Snapshot batch cursor per registry for the active cycle.",
			}, []string{"registry"}),
			cyclesClosed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "distribution_cycles_closed_total",
				Help: "Count of cycles marked closed.",
			}),
			roundingDust: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "distribution_rounding_dust",
				Help: "Undistributed remainder recorded per cycle at close.",
			}, []string{"cycle"}),
			claimGuardResets: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "distribution_claim_guard_resets_total",
				Help: "Count of administrative claim-guard releases.",
			}),
		}
		prometheus.MustRegister(
			distributionRegistry.deposits,
			distributionRegistry.depositedValue,
			distributionRegistry.payoutsPaid,
			distributionRegistry.payoutFailures,
			distributionRegistry.manualClaims,
			distributionRegistry.poolBalance,
			distributionRegistry.sweptValue,
			distributionRegistry.snapshotCursor,
			distributionRegistry.cyclesClosed,
			distributionRegistry.roundingDust,
			distributionRegistry.claimGuardResets,
		)
	})
	return distributionRegistry
}

// RecordDeposit counts a deposit and its value (value capped to float range).
func (m *DistributionMetrics) RecordDeposit(value float64) {
	if m == nil {
		return
	}
	m.deposits.Inc()
	if value > 0 {
		m.depositedValue.Add(value)
	}
}

// RecordPayouts counts successful and failed batch payouts.
func (m *DistributionMetrics) RecordPayouts(paid, failed uint64) {
	if m == nil {
		return
	}
	if paid > 0 {
		m.payoutsPaid.WithLabelValues("auto").Add(float64(paid))
	}
	if failed > 0 {
		m.payoutFailures.Add(float64(failed))
	}
}

// RecordManualClaim counts one pull claim.
func (m *DistributionMetrics) RecordManualClaim() {
	if m == nil {
		return
	}
	m.manualClaims.Inc()
	m.payoutsPaid.WithLabelValues("manual").Inc()
}

// SetPoolBalance publishes a live pool figure.
func (m *DistributionMetrics) SetPoolBalance(category, purpose string, value float64) {
	if m == nil {
		return
	}
	m.poolBalance.WithLabelValues(category, purpose).Set(value)
}

// RecordSweep publishes the swept leftover for a cycle.
func (m *DistributionMetrics) RecordSweep(cycle uint64, value float64) {
	if m == nil {
		return
	}
	m.sweptValue.WithLabelValues(strconv.FormatUint(cycle, 10)).Add(value)
	m.cyclesClosed.Inc()
}

// SetSnapshotCursor publishes snapshot batch progress.
func (m *DistributionMetrics) SetSnapshotCursor(registry string, cursor float64) {
	if m == nil {
		return
	}
	m.snapshotCursor.WithLabelValues(registry).Set(cursor)
}

// RecordDust publishes the rounding remainder observed at close.
func (m *DistributionMetrics) RecordDust(cycle uint64, value float64) {
	if m == nil {
		return
	}
	m.roundingDust.WithLabelValues(strconv.FormatUint(cycle, 10)).Set(value)
}

// RecordClaimGuardReset counts an administrative guard release.
func (m *DistributionMetrics) RecordClaimGuardReset() {
	if m == nil {
		return
	}
	m.claimGuardResets.Inc()
}
