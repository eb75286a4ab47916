package scheduler

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/julianstephens/petminder/internal/reconcile"
)

// Metrics exposes Prometheus collectors that report scheduler activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	armedTimers  prometheus.Gauge
	fires        *prometheus.CounterVec
	responses    *prometheus.CounterVec
	syncFailures *prometheus.CounterVec
	reconciled   *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns metrics registered with the global registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics registers the scheduler collectors with reg. Collectors that
// are already registered are reused; any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		armedTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "petminder",
			Subsystem: "scheduler",
			Name:      "armed_timers",
			Help:      "Wake-up timers currently armed, including skip transitions.",
		}),
		fires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petminder",
			Subsystem: "scheduler",
			Name:      "fires_total",
			Help:      "Timer fires by outcome.",
		}, []string{"result"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petminder",
			Subsystem: "scheduler",
			Name:      "responses_total",
			Help:      "Alarm responses applied, by kind.",
		}, []string{"kind"}),
		syncFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petminder",
			Subsystem: "scheduler",
			Name:      "sync_failures_total",
			Help:      "Remote calls that failed and left local state unchanged.",
		}, []string{"op"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petminder",
			Subsystem: "reconcile",
			Name:      "reminders_total",
			Help:      "Reminders classified during reconciliation, by partition.",
		}, []string{"partition"}),
	}

	register := func(c prometheus.Collector) prometheus.Collector {
		if err := reg.Register(c); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				return already.ExistingCollector
			}
			panic(err)
		}
		return c
	}
	m.armedTimers = register(m.armedTimers).(prometheus.Gauge)
	m.fires = register(m.fires).(*prometheus.CounterVec)
	m.responses = register(m.responses).(*prometheus.CounterVec)
	m.syncFailures = register(m.syncFailures).(*prometheus.CounterVec)
	m.reconciled = register(m.reconciled).(*prometheus.CounterVec)
	return m
}

func (m *Metrics) setArmed(n int) {
	if m == nil {
		return
	}
	m.armedTimers.Set(float64(n))
}

func (m *Metrics) fire(result string) {
	if m == nil {
		return
	}
	m.fires.WithLabelValues(result).Inc()
}

func (m *Metrics) response(kind ResponseKind) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) syncFailure(op string) {
	if m == nil {
		return
	}
	m.syncFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) reconcile(res reconcile.Result) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues("unchanged").Add(float64(len(res.Unchanged)))
	m.reconciled.WithLabelValues("created").Add(float64(len(res.Created)))
	m.reconciled.WithLabelValues("updated").Add(float64(len(res.Updated)))
	m.reconciled.WithLabelValues("deleted").Add(float64(len(res.Deleted)))
}
