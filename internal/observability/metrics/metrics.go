package metrics

import "github.com/prometheus/client_golang/prometheus"

// SearchMetrics exposes counters/histograms for availability searches.
type SearchMetrics struct {
	searchesTotal *prometheus.CounterVec
	windowDays    prometheus.Histogram
	resultsCount  prometheus.Histogram
}

func NewSearchMetrics(reg prometheus.Registerer) *SearchMetrics {
	m := &SearchMetrics{
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicebook",
			Subsystem: "availability",
			Name:      "searches_total",
			Help:      "Availability searches by outcome",
		}, []string{"outcome"}),
		windowDays: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voicebook",
			Subsystem: "availability",
			Name:      "search_window_days",
			Help:      "Search window size that produced results",
			Buckets:   []float64{7, 14, 30},
		}),
		resultsCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voicebook",
			Subsystem: "availability",
			Name:      "results_count",
			Help:      "Slots returned per successful search",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.searchesTotal, m.windowDays, m.resultsCount)
	return m
}

func (m *SearchMetrics) ObserveSearch(outcome string, windowDays, results int) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(outcome).Inc()
	if results > 0 {
		m.windowDays.Observe(float64(windowDays))
		m.resultsCount.Observe(float64(results))
	}
}

// BookingMetrics exposes counters for booking orchestration.
type BookingMetrics struct {
	stepsTotal *prometheus.CounterVec
	plansTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicebook",
			Subsystem: "booking",
			Name:      "steps_total",
			Help:      "Booking steps by status",
		}, []string{"status"}),
		plansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicebook",
			Subsystem: "booking",
			Name:      "plans_total",
			Help:      "Executed plans by aggregate outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stepsTotal, m.plansTotal)
	return m
}

func (m *BookingMetrics) ObserveStep(status string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObservePlan(outcome string) {
	if m == nil {
		return
	}
	m.plansTotal.WithLabelValues(outcome).Inc()
}
