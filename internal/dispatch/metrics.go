package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

// OutcomeOK labels successful calls. Failed calls are labelled with their
// ledger error code, or "error" for infrastructure failures.
const OutcomeOK = "ok"

type dispatchMetrics struct {
	calls      *prometheus.CounterVec
	deposited  prometheus.Counter
	withdrawn  prometheus.Counter
	balance    prometheus.Gauge
	generation prometheus.Gauge
}

func (m *dispatchMetrics) init(promRegistry prometheus.Registerer, namespace string) {
	promautoFactory := promauto.With(promRegistry)
	m.calls = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calls_total",
		Help:      "calls handled, by operation and outcome",
	}, []string{"op", "outcome"})
	m.deposited = promautoFactory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deposited_amount_total",
		Help:      "sum of accepted deposit amounts",
	})
	m.withdrawn = promautoFactory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "withdrawn_amount_total",
		Help:      "sum of withdrawn amounts",
	})
	m.balance = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "balance",
		Help:      "custodied balance after the last committed call",
	})
	m.generation = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "generation",
		Help:      "highest generation whose initializer has run",
	})
}

func (m *dispatchMetrics) observeCall(op Op, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(string(op), outcome(err)).Inc()
}

// observeCommit records the events and resulting state of a committed call.
func (m *dispatchMetrics) observeCommit(events []ledger.Event, st ledger.State) {
	if m == nil {
		return
	}
	for _, ev := range events {
		switch ev.Kind {
		case ledger.EventDeposited:
			m.deposited.Add(float64(ev.Amount))
		case ledger.EventWithdrawn:
			m.withdrawn.Add(float64(ev.Amount))
		}
	}
	m.balance.Set(float64(st.Balance))
	m.generation.Set(float64(st.InitGeneration))
}

func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := ledger.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}
