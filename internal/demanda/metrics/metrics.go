package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics expõe contadores e latências do workflow de demandas.
type Metrics struct {
	// Transições por ação e resultado (ok, forbidden, invalid_transition, ...)
	Transitions *prometheus.CounterVec

	// Demandas abertas por tipo
	Created *prometheus.CounterVec

	ApplyLatency prometheus.Histogram
	ListLatency  *prometheus.HistogramVec
}

// New registra as métricas no registry padrão.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registra as métricas em reg. Testes usam um registry próprio
// para não colidir com o padrão.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "demandas_transitions_total",
			Help: "Total de ações de workflow por ação e resultado",
		}, []string{"action", "outcome"}),

		Created: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "demandas_created_total",
			Help: "Total de demandas abertas por tipo",
		}, []string{"tipo"}),

		ApplyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "demandas_apply_duration_seconds",
			Help:    "Duração de uma ação de workflow incluindo leitura e gravação",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		ListLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "demandas_list_duration_seconds",
			Help:    "Duração da listagem por papel",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"role"}),
	}
}

// IncTransition conta uma ação de workflow.
func (m *Metrics) IncTransition(action, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(action, outcome).Inc()
	}
}

// IncCreated conta uma demanda aberta.
func (m *Metrics) IncCreated(tipo string) {
	if m != nil {
		m.Created.WithLabelValues(tipo).Inc()
	}
}

// ObserveApply registra a duração de ApplyAction.
func (m *Metrics) ObserveApply(d time.Duration) {
	if m != nil {
		m.ApplyLatency.Observe(d.Seconds())
	}
}

// ObserveList registra a duração de uma listagem.
func (m *Metrics) ObserveList(role string, d time.Duration) {
	if m != nil {
		m.ListLatency.WithLabelValues(role).Observe(d.Seconds())
	}
}
